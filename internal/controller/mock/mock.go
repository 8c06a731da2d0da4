// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package mock provides mock implementations of the collaborators of the charm handlers.
package mock

import (
	"context"
	"errors"

	"github.com/sapcc/capsule-operator/internal/installer"
	"github.com/sapcc/capsule-operator/internal/manifest"
	"github.com/sapcc/capsule-operator/internal/pebble"
	"github.com/sapcc/capsule-operator/internal/status"
)

type FileReaderMock struct {
	FileContent map[string]string
	ReturnError bool
}

func (f *FileReaderMock) ReadFile(fileName string) ([]byte, error) {
	if f.ReturnError {
		return nil, errors.New("error")
	}
	return []byte(f.FileContent[fileName]), nil
}

type InstallerMock struct {
	InstallFunc  func(ctx context.Context, vars manifest.Context) (installer.InstallReport, error)
	InstallCalls int
}

func (i *InstallerMock) Install(ctx context.Context, vars manifest.Context) (installer.InstallReport, error) {
	i.InstallCalls++
	return i.InstallFunc(ctx, vars)
}

type ReconcilerMock struct {
	ReconcileFunc  func(ctx context.Context, name string, vars manifest.Context) error
	ReconcileCalls int
}

func (r *ReconcilerMock) Reconcile(ctx context.Context, name string, vars manifest.Context) error {
	r.ReconcileCalls++
	return r.ReconcileFunc(ctx, name, vars)
}

type PatcherMock struct {
	EnsurePatchedFunc        func(ctx context.Context, name, namespace string) (bool, error)
	EnsurePatchedCalls       int
	FixServiceSelectorsFunc  func(ctx context.Context, namespace string) error
	FixServiceSelectorsCalls int
}

func (p *PatcherMock) EnsurePatched(ctx context.Context, name, namespace string) (bool, error) {
	p.EnsurePatchedCalls++
	return p.EnsurePatchedFunc(ctx, name, namespace)
}

func (p *PatcherMock) FixServiceSelectors(ctx context.Context, namespace string) error {
	p.FixServiceSelectorsCalls++
	return p.FixServiceSelectorsFunc(ctx, namespace)
}

type ContainerMock struct {
	Layers         map[string]pebble.Layer
	Combine        bool
	AutostartCalls int
	ReturnError    bool
}

func (c *ContainerMock) AddLayer(label string, layer pebble.Layer, combine bool) error {
	if c.ReturnError {
		return errors.New("unable to add layer")
	}
	if c.Layers == nil {
		c.Layers = map[string]pebble.Layer{}
	}
	c.Layers[label] = layer
	c.Combine = combine
	return nil
}

func (c *ContainerMock) Autostart() error {
	if c.ReturnError {
		return errors.New("unable to autostart")
	}
	c.AutostartCalls++
	return nil
}

type Transition struct {
	State   status.State
	Message string
}

// StatusMock records every unit status transition.
type StatusMock struct {
	Transitions []Transition
	ReturnError bool
}

func (s *StatusMock) SetMaintenance(_ context.Context, message string) error {
	return s.set(status.Maintenance, message)
}

func (s *StatusMock) SetActive(_ context.Context) error {
	return s.set(status.Active, "")
}

func (s *StatusMock) SetBlocked(_ context.Context, message string) error {
	return s.set(status.Blocked, message)
}

func (s *StatusMock) set(state status.State, message string) error {
	if s.ReturnError {
		return errors.New("unable to update status")
	}
	s.Transitions = append(s.Transitions, Transition{State: state, Message: message})
	return nil
}

func (s *StatusMock) Last() Transition {
	if len(s.Transitions) == 0 {
		return Transition{}
	}
	return s.Transitions[len(s.Transitions)-1]
}
