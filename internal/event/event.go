// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package event routes lifecycle events to their handlers
package event

import (
	"errors"
	"fmt"

	"github.com/sapcc/capsule-operator/internal/metrics"
)

type Type string

const (
	Install       Type = "install"
	ConfigChanged Type = "config-changed"
	WorkloadReady Type = "workload-ready"
	Action        Type = "action"
)

// Event is a single lifecycle event. Action and Params are only set for
// Action events.
type Event struct {
	Type   Type
	Action string
	Params map[string]string
}

func NewAction(name string, params map[string]string) Event {
	return Event{Type: Action, Action: name, Params: params}
}

func (e Event) Name() string {
	if e.Type == Action {
		return fmt.Sprintf("%s:%s", e.Type, e.Action)
	}
	return string(e.Type)
}

type Outcome int

const (
	Success Outcome = iota
	Failure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return metrics.OutcomeSuccess
	case Failure:
		return metrics.OutcomeFailure
	}
	return "unknown"
}

// Result is returned by every handler. Message is shown to users and stays
// short; details belong in the log.
type Result struct {
	Outcome Outcome
	Message string
	Data    map[string]any
}

func Succeeded(data map[string]any) Result {
	return Result{Outcome: Success, Data: data}
}

func Failed(message string) Result {
	return Result{Outcome: Failure, Message: message}
}

func (r Result) Err() error {
	if r.Outcome == Success {
		return nil
	}
	return errors.New(r.Message)
}
