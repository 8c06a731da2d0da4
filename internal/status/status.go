// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package status provides helper functionality for reporting the unit status of the operator
package status

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

type State string

const (
	Maintenance State = "maintenance"
	Active      State = "active"
	Blocked     State = "blocked"
)

const (
	StateKey   = "state"
	MessageKey = "message"

	nameSuffix = "-status"
)

type UnitStatus interface {
	SetMaintenance(ctx context.Context, message string) error
	SetActive(ctx context.Context) error
	SetBlocked(ctx context.Context, message string) error
}

func NewConfigMapStatusHandler(k8sClient client.Client, namespace, appName string) UnitStatus {
	return ConfigMapStatusHandler{
		k8sClient: k8sClient,
		key:       client.ObjectKey{Namespace: namespace, Name: appName + nameSuffix},
		appName:   appName,
	}
}

// ConfigMapStatusHandler keeps the unit status in the ConfigMap <app>-status.
type ConfigMapStatusHandler struct {
	k8sClient client.Client
	key       client.ObjectKey
	appName   string
}

func (h ConfigMapStatusHandler) SetMaintenance(ctx context.Context, message string) error {
	return h.update(ctx, Maintenance, message)
}

func (h ConfigMapStatusHandler) SetActive(ctx context.Context) error {
	return h.update(ctx, Active, "")
}

func (h ConfigMapStatusHandler) SetBlocked(ctx context.Context, message string) error {
	return h.update(ctx, Blocked, message)
}

func (h ConfigMapStatusHandler) update(ctx context.Context, state State, message string) error {
	log.FromContext(ctx).Info("unit status changed", "state", state, "message", message)

	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		cm := &corev1.ConfigMap{}
		err := h.k8sClient.Get(ctx, h.key, cm)
		if apierrors.IsNotFound(err) {
			cm = h.newConfigMap()
			setState(cm, state, message)
			return h.k8sClient.Create(ctx, cm)
		}
		if err != nil {
			return err
		}

		setState(cm, state, message)
		return h.k8sClient.Update(ctx, cm)
	})
}

func (h ConfigMapStatusHandler) newConfigMap() *corev1.ConfigMap {
	return &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      h.key.Name,
			Namespace: h.key.Namespace,
			Labels: map[string]string{
				"app.kubernetes.io/name":       h.appName,
				"app.kubernetes.io/managed-by": "capsule-operator",
			},
		},
	}
}

func setState(cm *corev1.ConfigMap, state State, message string) {
	if cm.Data == nil {
		cm.Data = map[string]string{}
	}
	cm.Data[StateKey] = string(state)
	cm.Data[MessageKey] = message
}
