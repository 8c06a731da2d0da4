// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/sapcc/capsule-operator/internal/config"
)

var ErrMissingValue = errors.New("required configuration value is missing")

// Context holds the values templates are rendered with. It is built once per
// event from the configuration and never changes afterwards.
type Context struct {
	namespace               string
	appName                 string
	image                   string
	userGroups              string
	forceTenantPrefix       bool
	protectedNamespaceRegex string
	configurationName       string
}

func NewContext(cfg *config.Config) (Context, error) {
	switch {
	case cfg.Namespace == "":
		return Context{}, fmt.Errorf("%w: namespace", ErrMissingValue)
	case cfg.Name == "":
		return Context{}, fmt.Errorf("%w: name", ErrMissingValue)
	case cfg.CapsuleImage == "":
		return Context{}, fmt.Errorf("%w: capsule-image", ErrMissingValue)
	case cfg.CapsuleConfigurationName == "":
		return Context{}, fmt.Errorf("%w: capsule-configuration-name", ErrMissingValue)
	}

	if cfg.ProtectedNamespaceRegex != "" {
		if _, err := regexp.Compile(cfg.ProtectedNamespaceRegex); err != nil {
			return Context{}, fmt.Errorf("invalid protected-namespace-regex: %w", err)
		}
	}

	return Context{
		namespace:               cfg.Namespace,
		appName:                 cfg.Name,
		image:                   cfg.CapsuleImage,
		userGroups:              cfg.UserGroups,
		forceTenantPrefix:       cfg.ForceTenantPrefix,
		protectedNamespaceRegex: cfg.ProtectedNamespaceRegex,
		configurationName:       cfg.CapsuleConfigurationName,
	}, nil
}

func (c Context) Namespace() string {
	return c.namespace
}

func (c Context) AppName() string {
	return c.appName
}

func (c Context) Image() string {
	return c.image
}

// UserGroups splits the comma separated user-groups option, dropping blanks.
func (c Context) UserGroups() []string {
	groups := lo.Map(strings.Split(c.userGroups, ","), func(group string, _ int) string {
		return strings.TrimSpace(group)
	})
	return lo.Compact(groups)
}

func (c Context) ForceTenantPrefix() bool {
	return c.forceTenantPrefix
}

func (c Context) ProtectedNamespaceRegex() string {
	return c.protectedNamespaceRegex
}

// ConfigurationName names the CapsuleConfiguration created on install and
// reconciled on config changes.
func (c Context) ConfigurationName() string {
	return c.configurationName
}

// Values returns a fresh map for template execution.
func (c Context) Values() map[string]any {
	return map[string]any{
		"namespace":                  c.namespace,
		"app_name":                   c.appName,
		"image":                      c.image,
		"user_groups":                c.userGroups,
		"user_groups_list":           c.UserGroups(),
		"force_tenant_prefix":        c.forceTenantPrefix,
		"protected_namespace_regex":  c.protectedNamespaceRegex,
		"capsule_configuration_name": c.configurationName,
	}
}
