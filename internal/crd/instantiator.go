// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package crd

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/sapcc/capsule-operator/internal/kube"
	"github.com/sapcc/capsule-operator/internal/manifest"
	"github.com/sapcc/capsule-operator/internal/metrics"
)

// ConfigurationKind is the custom resource kind holding Capsule's settings.
const ConfigurationKind = "CapsuleConfiguration"

var ErrDescriptorNotFound = errors.New("custom resource definition not found in bootstrap manifest")

// Result describes what Instantiate did for one CRD.
type Result struct {
	Skipped  bool
	Created  int
	Replaced int
}

func (r Result) Applied() int {
	return r.Created + r.Replaced
}

// Instantiator resolves the CapsuleConfiguration descriptor from the bootstrap
// manifest and creates instances from per-kind templates. The descriptor is
// resolved once and kept for the lifetime of the Instantiator, even if the
// CRD changes afterwards.
type Instantiator struct {
	k8sClient client.Client
	source    *manifest.Source

	mu         sync.Mutex
	descriptor *Descriptor
}

func NewInstantiator(k8sClient client.Client, source *manifest.Source) *Instantiator {
	return &Instantiator{
		k8sClient: k8sClient,
		source:    source,
	}
}

// ResolveDescriptor scans the bootstrap manifest for the CapsuleConfiguration
// CRD. Failed lookups are not remembered.
func (i *Instantiator) ResolveDescriptor(vars manifest.Context) (Descriptor, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.descriptor != nil {
		return *i.descriptor, nil
	}

	resources, err := i.source.Render(i.source.BootstrapFile(), vars)
	if err != nil {
		return Descriptor{}, err
	}

	for _, resource := range resources {
		if !resource.IsCRD() {
			continue
		}
		crd, err := resource.CRD()
		if err != nil {
			return Descriptor{}, err
		}
		if crd.Spec.Names.Kind != ConfigurationKind {
			continue
		}
		descriptor, err := DescriptorFromCRD(crd)
		if err != nil {
			return Descriptor{}, err
		}
		i.descriptor = &descriptor
		return descriptor, nil
	}

	return Descriptor{}, fmt.Errorf("%w: kind %s in %s", ErrDescriptorNotFound, ConfigurationKind, i.source.BootstrapFile())
}

// Instantiate renders the install template of the kind declared by parentCRD
// and applies every document as an instance of desc. A kind without a
// template is skipped.
func (i *Instantiator) Instantiate(ctx context.Context, desc Descriptor, parentCRD *manifest.Resource, vars manifest.Context) (Result, error) {
	crd, err := parentCRD.CRD()
	if err != nil {
		return Result{}, err
	}
	kind := crd.Spec.Names.Kind
	logger := log.FromContext(ctx).WithValues("kind", kind)

	file, found, err := i.source.KindFile(kind)
	if err != nil {
		return Result{}, fmt.Errorf("unable to look up template for %s: %w", kind, err)
	}
	if !found {
		logger.V(1).Info("no instance template, skipping", "file", file)
		return Result{Skipped: true}, nil
	}

	resources, err := i.source.Render(file, vars)
	if err != nil {
		return Result{}, err
	}

	result := Result{}
	for _, resource := range resources {
		instance := newInstance(desc, resource, vars)
		outcome, err := kube.CreateOrReplace(ctx, i.k8sClient, instance)
		if err != nil {
			metrics.RecordResource(desc.Kind, metrics.OutcomeFailed)
			return result, err
		}
		metrics.RecordResource(desc.Kind, string(outcome))

		switch outcome {
		case kube.Created:
			result.Created++
		case kube.Replaced:
			result.Replaced++
		}
		logger.Info("custom resource applied", "name", instance.GetName(), "outcome", outcome)
	}

	return result, nil
}

func newInstance(desc Descriptor, resource *manifest.Resource, vars manifest.Context) *unstructured.Unstructured {
	instance := &unstructured.Unstructured{Object: map[string]any{}}
	for _, field := range []string{"metadata", "spec"} {
		if value, ok := resource.Object.Object[field]; ok {
			instance.Object[field] = runtime.DeepCopyJSONValue(value)
		}
	}
	instance.SetAPIVersion(desc.APIVersion())
	instance.SetKind(desc.Kind)

	switch {
	case !desc.Namespaced:
		instance.SetNamespace("")
	case instance.GetNamespace() == "":
		instance.SetNamespace(vars.Namespace())
	}
	return instance
}
