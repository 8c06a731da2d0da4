// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package controller wires the Capsule operator components to lifecycle events
package controller

import (
	"context"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/sapcc/capsule-operator/internal/config"
	"github.com/sapcc/capsule-operator/internal/event"
	"github.com/sapcc/capsule-operator/internal/installer"
	"github.com/sapcc/capsule-operator/internal/manifest"
	"github.com/sapcc/capsule-operator/internal/pebble"
	"github.com/sapcc/capsule-operator/internal/status"
)

const (
	FortuneAction = "fortune"
	Fortune       = "A bug in the code is worth two in the documentation."

	ManagerLayerLabel = "capsule"
	managerService    = "capsule"
	managerCommand    = "/manager"

	msgInvalidConfig       = "invalid configuration"
	msgCreatingResources   = "creating kubernetes resources"
	msgResourcesFailed     = "kubernetes resource creation failed"
	msgUpdatingConfig      = "updating capsule configuration"
	msgConfigFailed        = "capsule configuration update failed"
	msgConfiguringWorkload = "configuring workload"
	msgWorkloadFailed      = "workload configuration failed"
	msgSelectorsFailed     = "service selector update failed"
	msgStatusFailed        = "unable to update unit status"
)

type Installer interface {
	Install(ctx context.Context, vars manifest.Context) (installer.InstallReport, error)
}

type ConfigurationReconciler interface {
	Reconcile(ctx context.Context, name string, vars manifest.Context) error
}

type WorkloadPatcher interface {
	EnsurePatched(ctx context.Context, name, namespace string) (bool, error)
	FixServiceSelectors(ctx context.Context, namespace string) error
}

// CapsuleCharm handles the lifecycle events of the Capsule operator.
type CapsuleCharm struct {
	Config     *config.Config
	Installer  Installer
	Reconciler ConfigurationReconciler
	Patcher    WorkloadPatcher
	Container  pebble.Container
	Status     status.UnitStatus

	PatchStatefulSet    bool
	FixServiceSelectors bool
}

func NewCapsuleCharm(cfg *config.Config, inst Installer, reconciler ConfigurationReconciler, patcher WorkloadPatcher,
	container pebble.Container, unitStatus status.UnitStatus) *CapsuleCharm {
	return &CapsuleCharm{
		Config:              cfg,
		Installer:           inst,
		Reconciler:          reconciler,
		Patcher:             patcher,
		Container:           container,
		Status:              unitStatus,
		PatchStatefulSet:    true,
		FixServiceSelectors: true,
	}
}

// SetupWithRouter registers the event handlers with the router.
func (c *CapsuleCharm) SetupWithRouter(router *event.Router) error {
	if c.FixServiceSelectors {
		router.OnStartup(c.fixServiceSelectors)
	}

	if err := router.Register(event.Install, c.install); err != nil {
		return err
	}
	if err := router.Register(event.ConfigChanged, c.configChanged); err != nil {
		return err
	}
	if err := router.Register(event.WorkloadReady, c.workloadReady); err != nil {
		return err
	}
	return router.RegisterAction(FortuneAction, c.fortune)
}

func (c *CapsuleCharm) install(ctx context.Context, _ event.Event) event.Result {
	logger := log.FromContext(ctx)

	vars, err := manifest.NewContext(c.Config)
	if err != nil {
		return c.blocked(ctx, err, msgInvalidConfig)
	}

	if err := c.Status.SetMaintenance(ctx, msgCreatingResources); err != nil {
		logger.Error(err, msgStatusFailed)
		return event.Failed(msgStatusFailed)
	}

	report, err := c.Installer.Install(ctx, vars)
	if err != nil {
		return c.blocked(ctx, err, msgResourcesFailed)
	}
	// the install manifests carry the default selectors again
	if c.FixServiceSelectors {
		if err := c.fixServiceSelectors(ctx); err != nil {
			return event.Failed(msgSelectorsFailed)
		}
	}

	return c.active(ctx, map[string]any{
		"created":      report.Created,
		"replaced":     report.Replaced,
		"instantiated": report.Instantiated,
	})
}

func (c *CapsuleCharm) configChanged(ctx context.Context, _ event.Event) event.Result {
	logger := log.FromContext(ctx)

	vars, err := manifest.NewContext(c.Config)
	if err != nil {
		return c.blocked(ctx, err, msgInvalidConfig)
	}

	if err := c.Status.SetMaintenance(ctx, msgUpdatingConfig); err != nil {
		logger.Error(err, msgStatusFailed)
		return event.Failed(msgStatusFailed)
	}

	if err := c.Reconciler.Reconcile(ctx, c.Config.CapsuleConfigurationName, vars); err != nil {
		return c.blocked(ctx, err, msgConfigFailed)
	}

	return c.active(ctx, nil)
}

func (c *CapsuleCharm) workloadReady(ctx context.Context, _ event.Event) event.Result {
	logger := log.FromContext(ctx)

	if err := c.Status.SetMaintenance(ctx, msgConfiguringWorkload); err != nil {
		logger.Error(err, msgStatusFailed)
		return event.Failed(msgStatusFailed)
	}

	if err := c.Container.AddLayer(ManagerLayerLabel, ManagerLayer(c.Config.Namespace), true); err != nil {
		return c.blocked(ctx, err, msgWorkloadFailed)
	}
	if err := c.Container.Autostart(); err != nil {
		return c.blocked(ctx, err, msgWorkloadFailed)
	}

	data := map[string]any{"patched": false}
	if c.PatchStatefulSet {
		patched, err := c.Patcher.EnsurePatched(ctx, c.Config.Name, c.Config.Namespace)
		if err != nil {
			return c.blocked(ctx, err, msgWorkloadFailed)
		}
		data["patched"] = patched
	}

	return c.active(ctx, data)
}

// fixServiceSelectors blocks the unit when the Services cannot be updated.
func (c *CapsuleCharm) fixServiceSelectors(ctx context.Context) error {
	if err := c.Patcher.FixServiceSelectors(ctx, c.Config.Namespace); err != nil {
		c.blocked(ctx, err, msgSelectorsFailed)
		return err
	}
	return nil
}

func (c *CapsuleCharm) fortune(_ context.Context, ev event.Event) event.Result {
	if message := ev.Params["fail"]; message != "" {
		return event.Failed(message)
	}
	return event.Succeeded(map[string]any{"fortune": Fortune})
}

// ManagerLayer runs the Capsule manager in the workload container.
func ManagerLayer(namespace string) pebble.Layer {
	return pebble.Layer{
		Summary:     "capsule layer",
		Description: "pebble config layer for capsule",
		Services: map[string]pebble.Service{
			managerService: {
				Override:    pebble.OverrideReplace,
				Summary:     "capsule",
				Command:     managerCommand,
				Startup:     pebble.StartupEnabled,
				Environment: map[string]string{"NAMESPACE": namespace},
			},
		},
	}
}

// blocked logs the cause and reports only the short message to the unit status.
func (c *CapsuleCharm) blocked(ctx context.Context, cause error, message string) event.Result {
	logger := log.FromContext(ctx)
	logger.Error(cause, message)

	if err := c.Status.SetBlocked(ctx, message); err != nil {
		logger.Error(err, msgStatusFailed)
	}
	return event.Failed(message)
}

func (c *CapsuleCharm) active(ctx context.Context, data map[string]any) event.Result {
	if err := c.Status.SetActive(ctx); err != nil {
		log.FromContext(ctx).Error(err, msgStatusFailed)
		return event.Failed(msgStatusFailed)
	}
	return event.Succeeded(data)
}
