// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"testing/fstest"

	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/sapcc/capsule-operator/internal/config"
	"github.com/sapcc/capsule-operator/internal/manifest"
)

const (
	CapsuleGroup   = "capsule.clastix.io"
	CapsuleVersion = "v1alpha1"
)

var (
	CapsuleConfigurationGVK = schema.GroupVersionKind{Group: CapsuleGroup, Version: CapsuleVersion, Kind: "CapsuleConfiguration"}
	TenantGVK               = schema.GroupVersionKind{Group: CapsuleGroup, Version: "v1beta1", Kind: "Tenant"}
)

const CapsuleConfigurationCRD = `apiVersion: apiextensions.k8s.io/v1
kind: CustomResourceDefinition
metadata:
  name: capsuleconfigurations.capsule.clastix.io
spec:
  group: capsule.clastix.io
  names:
    kind: CapsuleConfiguration
    listKind: CapsuleConfigurationList
    plural: capsuleconfigurations
    singular: capsuleconfiguration
  scope: Cluster
  versions:
  - name: v1alpha1
    served: true
    storage: true
    schema:
      openAPIV3Schema:
        type: object
        x-kubernetes-preserve-unknown-fields: true
`

const TenantCRD = `apiVersion: apiextensions.k8s.io/v1
kind: CustomResourceDefinition
metadata:
  name: tenants.capsule.clastix.io
spec:
  group: capsule.clastix.io
  names:
    kind: Tenant
    listKind: TenantList
    plural: tenants
    singular: tenant
  scope: Cluster
  versions:
  - name: v1alpha1
    served: true
    storage: false
    schema:
      openAPIV3Schema:
        type: object
        x-kubernetes-preserve-unknown-fields: true
  - name: v1beta1
    served: true
    storage: true
    schema:
      openAPIV3Schema:
        type: object
        x-kubernetes-preserve-unknown-fields: true
`

const ServicesManifest = `apiVersion: v1
kind: Service
metadata:
  name: capsule-webhook-service
  namespace: {{ .namespace }}
spec:
  ports:
  - port: 443
    targetPort: 9443
  selector:
    control-plane: controller-manager
---
apiVersion: v1
kind: Secret
metadata:
  name: capsule-tls
  namespace: {{ .namespace }}
`

const CapsuleConfigurationInstance = `apiVersion: capsule.clastix.io/v1alpha1
kind: CapsuleConfiguration
metadata:
  name: {{ .capsule_configuration_name }}
  annotations:
    capsule.clastix.io/mutating-webhook-configuration-name: capsule-mutating-webhook-configuration
spec:
  userGroups:
{{- range .user_groups_list }}
  - {{ . }}
{{- end }}
  forceTenantPrefix: {{ .force_tenant_prefix }}
  protectedNamespaceRegex: {{ .protected_namespace_regex | quote }}
`

// ManifestFS returns a manifest directory with the bootstrap CRDs, a services
// manifest and the CapsuleConfiguration instance template.
func ManifestFS() fstest.MapFS {
	return fstest.MapFS{
		manifest.DefaultBootstrap:                 {Data: []byte(TenantCRD + "---\n" + CapsuleConfigurationCRD)},
		"services" + manifest.TemplateExtension:   {Data: []byte(ServicesManifest)},
		"install-CapsuleConfiguration.yaml.tmpl": {Data: []byte(CapsuleConfigurationInstance)},
	}
}

func NewConfig() *config.Config {
	cfg := config.NewDefaultConfiguration(nil, "")
	cfg.Namespace = "ns1"
	cfg.Name = "capsule"
	cfg.CapsuleImage = "clastix/capsule:v0.1.1"
	cfg.UserGroups = "a,b,c"
	cfg.ForceTenantPrefix = true
	cfg.ProtectedNamespaceRegex = ".*system.*"
	return cfg
}

func NewContext() manifest.Context {
	vars, err := manifest.NewContext(NewConfig())
	if err != nil {
		panic(err)
	}
	return vars
}
