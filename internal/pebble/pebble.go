// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package pebble manages the service layers of the workload container
package pebble

import (
	"fmt"

	"github.com/canonical/pebble/client"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSocket = "/charm/containers/capsule/pebble.socket"

	OverrideReplace = "replace"
	StartupEnabled  = "enabled"
)

type Service struct {
	Override    string            `yaml:"override,omitempty"`
	Summary     string            `yaml:"summary,omitempty"`
	Command     string            `yaml:"command"`
	Startup     string            `yaml:"startup,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty"`
}

// Layer is a pebble configuration layer.
type Layer struct {
	Summary     string             `yaml:"summary,omitempty"`
	Description string             `yaml:"description,omitempty"`
	Services    map[string]Service `yaml:"services"`
}

func (l Layer) Marshal() ([]byte, error) {
	return yaml.Marshal(l)
}

type Container interface {
	AddLayer(label string, layer Layer, combine bool) error
	Autostart() error
}

// Client talks to the pebble daemon of the workload container.
type Client struct {
	pebble *client.Client
}

func NewClient(socket string) (*Client, error) {
	if socket == "" {
		socket = DefaultSocket
	}
	pebble, err := client.New(&client.Config{Socket: socket})
	if err != nil {
		return nil, fmt.Errorf("unable to create pebble client for %s: %w", socket, err)
	}
	return &Client{pebble: pebble}, nil
}

func (c *Client) AddLayer(label string, layer Layer, combine bool) error {
	data, err := layer.Marshal()
	if err != nil {
		return fmt.Errorf("unable to marshal layer %s: %w", label, err)
	}

	err = c.pebble.AddLayer(&client.AddLayerOptions{
		Combine:   combine,
		Label:     label,
		LayerData: data,
	})
	if err != nil {
		return fmt.Errorf("unable to add layer %s: %w", label, err)
	}
	return nil
}

// Autostart starts every service with startup enabled.
func (c *Client) Autostart() error {
	if _, err := c.pebble.AutoStart(&client.ServiceOptions{}); err != nil {
		return fmt.Errorf("unable to autostart services: %w", err)
	}
	return nil
}
