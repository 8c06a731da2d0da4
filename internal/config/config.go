// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

// Package config provides functionality to deal with operator configuration
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cast"
)

const (
	DefaultConfigPath               = "/etc/config/config.json"
	DefaultUserGroups               = "capsule.clastix.io"
	DefaultCapsuleConfigurationName = "default"
)

type FileReader interface {
	ReadFile(fileName string) ([]byte, error)
}

type ConfigReader struct{}

func (f *ConfigReader) ReadFile(fileName string) (byteValue []byte, err error) {
	file, err := os.Open(fileName) //nolint:gosec
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			byteValue, err = nil, closeErr
		}
	}()

	return io.ReadAll(file)
}

type Config struct {
	reader FileReader
	path   string

	Namespace                string `json:"namespace"`
	Name                     string `json:"name"`
	CapsuleImage             string `json:"capsule-image"`
	UserGroups               string `json:"user-groups"`
	ForceTenantPrefix        bool   `json:"force-tenant-prefix"`
	ProtectedNamespaceRegex  string `json:"protected-namespace-regex"`
	CapsuleConfigurationName string `json:"capsule-configuration-name"`
}

func NewDefaultConfiguration(configReader FileReader, path string) *Config {
	if path == "" {
		path = DefaultConfigPath
	}
	return &Config{
		reader:                   configReader,
		path:                     path,
		Namespace:                "",
		Name:                     "",
		CapsuleImage:             "",
		UserGroups:               DefaultUserGroups,
		ForceTenantPrefix:        false,
		ProtectedNamespaceRegex:  "",
		CapsuleConfigurationName: DefaultCapsuleConfigurationName,
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("namespace:%s,name:%s,capsuleImage:%s,userGroups:%s,forceTenantPrefix:%t,protectedNamespaceRegex:%s,capsuleConfigurationName:%s",
		c.Namespace, c.Name, c.CapsuleImage, c.UserGroups, c.ForceTenantPrefix, c.ProtectedNamespaceRegex, c.CapsuleConfigurationName)
}

// UnmarshalJSON accepts force-tenant-prefix as a JSON boolean or as a string
// such as "true".
func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	aux := struct {
		*plain
		ForceTenantPrefix any `json:"force-tenant-prefix"`
	}{plain: (*plain)(c)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.ForceTenantPrefix == nil {
		return nil
	}

	forceTenantPrefix, err := cast.ToBoolE(aux.ForceTenantPrefix)
	if err != nil {
		return fmt.Errorf("invalid force-tenant-prefix: %w", err)
	}
	c.ForceTenantPrefix = forceTenantPrefix
	return nil
}

func (c *Config) Validate() error {
	if c.Namespace == "" {
		return errors.New("namespace is required")
	}
	if c.Name == "" {
		return errors.New("application name is required")
	}
	if c.CapsuleImage == "" {
		return errors.New("capsule image is required")
	}
	if c.CapsuleConfigurationName == "" {
		return errors.New("capsule configuration name is required")
	}
	return nil
}

func (c *Config) Reload() error {
	if err := c.readJSONAndUnmarshal(c.path); err != nil {
		return fmt.Errorf("unable to read %s: %w", c.path, err)
	}
	return c.Validate()
}

func (c *Config) readJSONAndUnmarshal(fileName string) error {
	byteValue, err := c.reader.ReadFile(fileName)
	if err != nil {
		return err
	}

	return json.Unmarshal(byteValue, c)
}
