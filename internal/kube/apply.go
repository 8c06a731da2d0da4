// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package kube

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

type Outcome string

const (
	Created  Outcome = "created"
	Replaced Outcome = "replaced"
)

// CreateOrReplace creates obj. When it already exists the live object is
// replaced wholesale with obj. Every other failure is returned.
func CreateOrReplace(ctx context.Context, k8sClient client.Client, obj *unstructured.Unstructured) (Outcome, error) {
	logger := log.FromContext(ctx).WithValues("kind", obj.GetKind(), "name", obj.GetName(), "namespace", obj.GetNamespace())

	err := k8sClient.Create(ctx, obj.DeepCopy())
	switch Classify(err) {
	case KindNone:
		logger.Info("resource created")
		return Created, nil
	case KindConflict:
		logger.Info("replacing resource", "resource", obj.Object)
	default:
		logger.V(1).Info("failed to create resource", "resource", obj.Object)
		return "", fmt.Errorf("unable to create %s %s: %w", obj.GetKind(), displayName(obj), err)
	}

	live := &unstructured.Unstructured{}
	live.SetGroupVersionKind(obj.GroupVersionKind())
	if err := k8sClient.Get(ctx, client.ObjectKeyFromObject(obj), live); err != nil {
		return "", fmt.Errorf("unable to get %s %s: %w", obj.GetKind(), displayName(obj), err)
	}

	replacement := obj.DeepCopy()
	replacement.SetResourceVersion(live.GetResourceVersion())
	if err := k8sClient.Update(ctx, replacement); err != nil {
		return "", fmt.Errorf("unable to replace %s %s: %w", obj.GetKind(), displayName(obj), err)
	}

	return Replaced, nil
}

func displayName(obj client.Object) string {
	if obj.GetNamespace() == "" {
		return obj.GetName()
	}
	return client.ObjectKeyFromObject(obj).String()
}
