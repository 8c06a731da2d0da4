// Copyright 2024 SAP SE
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sapcc/capsule-operator/internal/controller"
	"github.com/sapcc/capsule-operator/internal/event"
)

var installCmd = &cobra.Command{
	Use:   string(event.Install),
	Short: "Install the Capsule manifests and create the CapsuleConfiguration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return dispatch(cmd, event.Event{Type: event.Install})
	},
}

var configChangedCmd = &cobra.Command{
	Use:   string(event.ConfigChanged),
	Short: "Propagate configuration changes into the CapsuleConfiguration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return dispatch(cmd, event.Event{Type: event.ConfigChanged})
	},
}

var workloadReadyCmd = &cobra.Command{
	Use:   string(event.WorkloadReady),
	Short: "Start the Capsule manager and patch its StatefulSet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return dispatch(cmd, event.Event{Type: event.WorkloadReady})
	},
}

var actionCmd = &cobra.Command{
	Use:   string(event.Action),
	Short: "Run a user action",
}

var fortuneFail string

var fortuneCmd = &cobra.Command{
	Use:   controller.FortuneAction,
	Short: "Tell a fortune",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		params := map[string]string{}
		if fortuneFail != "" {
			params["fail"] = fortuneFail
		}
		return dispatch(cmd, event.NewAction(controller.FortuneAction, params))
	},
}

func init() {
	fortuneCmd.Flags().StringVar(&fortuneFail, "fail", "", "Fail the action with this message")
	actionCmd.AddCommand(fortuneCmd)
}
