// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package crd derives resource descriptors from CustomResourceDefinitions
// and creates instances of the described kinds
package crd

import (
	"fmt"

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Descriptor identifies a custom resource type.
type Descriptor struct {
	Group      string
	Version    string
	Kind       string
	Plural     string
	Namespaced bool
}

// DescriptorFromCRD uses the storage version, falling back to the first
// served one.
func DescriptorFromCRD(crd *apiextensionsv1.CustomResourceDefinition) (Descriptor, error) {
	version := ""
	for _, v := range crd.Spec.Versions {
		if v.Storage {
			version = v.Name
			break
		}
		if version == "" && v.Served {
			version = v.Name
		}
	}
	if version == "" {
		return Descriptor{}, fmt.Errorf("CRD %s has no served version", crd.Name)
	}

	return Descriptor{
		Group:      crd.Spec.Group,
		Version:    version,
		Kind:       crd.Spec.Names.Kind,
		Plural:     crd.Spec.Names.Plural,
		Namespaced: crd.Spec.Scope == apiextensionsv1.NamespaceScoped,
	}, nil
}

func (d Descriptor) GroupVersionKind() schema.GroupVersionKind {
	return schema.GroupVersionKind{Group: d.Group, Version: d.Version, Kind: d.Kind}
}

func (d Descriptor) GroupVersionResource() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: d.Group, Version: d.Version, Resource: d.Plural}
}

func (d Descriptor) APIVersion() string {
	return d.GroupVersionKind().GroupVersion().String()
}

func (d Descriptor) String() string {
	return d.Plural + "." + d.Group + "/" + d.Version
}
