// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package configuration propagates option changes into the CapsuleConfiguration resource
package configuration

import (
	"context"
	"errors"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/sapcc/capsule-operator/internal/crd"
	"github.com/sapcc/capsule-operator/internal/kube"
	"github.com/sapcc/capsule-operator/internal/manifest"
	"github.com/sapcc/capsule-operator/internal/metrics"
)

var ErrNotFound = errors.New("capsule configuration not found")

type DescriptorResolver interface {
	ResolveDescriptor(vars manifest.Context) (crd.Descriptor, error)
}

type Reconciler struct {
	k8sClient client.Client
	resolver  DescriptorResolver
}

func NewReconciler(k8sClient client.Client, resolver DescriptorResolver) *Reconciler {
	return &Reconciler{
		k8sClient: k8sClient,
		resolver:  resolver,
	}
}

// Reconcile overwrites userGroups, forceTenantPrefix and
// protectedNamespaceRegex of the named CapsuleConfiguration and replaces the
// resource. Everything else is written back as read. The resource is never
// created here.
func (r *Reconciler) Reconcile(ctx context.Context, name string, vars manifest.Context) error {
	desc, err := r.resolver.ResolveDescriptor(vars)
	if err != nil {
		return err
	}

	logger := log.FromContext(ctx).WithValues("kind", desc.Kind, "name", name)

	key := client.ObjectKey{Name: name}
	if desc.Namespaced {
		key.Namespace = vars.Namespace()
	}

	cfg := &unstructured.Unstructured{}
	cfg.SetGroupVersionKind(desc.GroupVersionKind())
	err = r.k8sClient.Get(ctx, key, cfg)
	switch kube.Classify(err) {
	case kube.KindNone:
	case kube.KindNotFound:
		return fmt.Errorf("%w: %s %s", ErrNotFound, desc.Kind, key)
	default:
		return fmt.Errorf("unable to get %s %s: %w", desc.Kind, key, err)
	}

	if err := setSpec(cfg, vars); err != nil {
		return err
	}

	if err := r.k8sClient.Update(ctx, cfg); err != nil {
		metrics.RecordResource(desc.Kind, metrics.OutcomeFailed)
		return fmt.Errorf("unable to replace %s %s: %w", desc.Kind, key, err)
	}
	metrics.RecordResource(desc.Kind, string(kube.Replaced))

	logger.Info("capsule configuration updated",
		"userGroups", vars.UserGroups(),
		"forceTenantPrefix", vars.ForceTenantPrefix(),
		"protectedNamespaceRegex", vars.ProtectedNamespaceRegex())
	return nil
}

func setSpec(cfg *unstructured.Unstructured, vars manifest.Context) error {
	if err := unstructured.SetNestedStringSlice(cfg.Object, vars.UserGroups(), "spec", "userGroups"); err != nil {
		return fmt.Errorf("unable to set spec.userGroups: %w", err)
	}
	if err := unstructured.SetNestedField(cfg.Object, vars.ForceTenantPrefix(), "spec", "forceTenantPrefix"); err != nil {
		return fmt.Errorf("unable to set spec.forceTenantPrefix: %w", err)
	}
	if err := unstructured.SetNestedField(cfg.Object, vars.ProtectedNamespaceRegex(), "spec", "protectedNamespaceRegex"); err != nil {
		return fmt.Errorf("unable to set spec.protectedNamespaceRegex: %w", err)
	}
	return nil
}
