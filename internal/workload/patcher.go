// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package workload adjusts the Capsule StatefulSet and Services created outside the install manifests
package workload

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/sapcc/capsule-operator/internal/kube"
)

const (
	DefaultVolumeName        = "cert"
	DefaultSecretName        = "capsule-tls"
	DefaultMountPath         = "/tmp/k8s-webhook-server/serving-certs"
	DefaultContainerIndex    = 1
	DefaultSelectorLabel     = "control-plane"
	ReplacementSelectorLabel = "app.kubernetes.io/name"
	WebhookServiceName       = "capsule-webhook-service"
	MetricsServiceName       = "capsule-controller-manager-metrics-service"
)

var ErrContainerIndexOutOfRange = errors.New("container index out of range")

// Patcher mounts the webhook serving certificate into the Capsule manager
// container and points the Capsule Services at the operator managed pods.
type Patcher struct {
	k8sClient client.Client

	VolumeName string
	SecretName string
	MountPath  string
	// ContainerIndex selects the manager container in the pod template.
	ContainerIndex int

	Services             []string
	DefaultSelectorLabel string
	SelectorLabel        string
	SelectorValue        string
}

func NewPatcher(k8sClient client.Client, appName string) *Patcher {
	return &Patcher{
		k8sClient:            k8sClient,
		VolumeName:           DefaultVolumeName,
		SecretName:           DefaultSecretName,
		MountPath:            DefaultMountPath,
		ContainerIndex:       DefaultContainerIndex,
		Services:             []string{WebhookServiceName, MetricsServiceName},
		DefaultSelectorLabel: DefaultSelectorLabel,
		SelectorLabel:        ReplacementSelectorLabel,
		SelectorValue:        appName,
	}
}

// EnsurePatched adds the certificate volume and its mount to the named
// StatefulSet unless the mount is already there. It reports whether a patch
// was sent.
func (p *Patcher) EnsurePatched(ctx context.Context, name, namespace string) (bool, error) {
	logger := log.FromContext(ctx).WithValues("statefulset", name, "namespace", namespace)

	sts := &appsv1.StatefulSet{}
	if err := p.k8sClient.Get(ctx, client.ObjectKey{Namespace: namespace, Name: name}, sts); err != nil {
		return false, fmt.Errorf("unable to get statefulset %s/%s: %w", namespace, name, err)
	}

	podSpec := &sts.Spec.Template.Spec
	if p.ContainerIndex < 0 || p.ContainerIndex >= len(podSpec.Containers) {
		return false, fmt.Errorf("%w: statefulset %s/%s has %d containers, index %d requested",
			ErrContainerIndexOutOfRange, namespace, name, len(podSpec.Containers), p.ContainerIndex)
	}

	container := podSpec.Containers[p.ContainerIndex]
	if lo.ContainsBy(container.VolumeMounts, func(mount corev1.VolumeMount) bool {
		return mount.Name == p.VolumeName && mount.MountPath == p.MountPath
	}) {
		logger.V(1).Info("statefulset already patched")
		return false, nil
	}

	base := sts.DeepCopy()
	if !lo.ContainsBy(podSpec.Volumes, func(volume corev1.Volume) bool { return volume.Name == p.VolumeName }) {
		podSpec.Volumes = append(podSpec.Volumes, corev1.Volume{
			Name: p.VolumeName,
			VolumeSource: corev1.VolumeSource{
				Secret: &corev1.SecretVolumeSource{SecretName: p.SecretName},
			},
		})
	}
	podSpec.Containers[p.ContainerIndex].VolumeMounts = append(podSpec.Containers[p.ContainerIndex].VolumeMounts, corev1.VolumeMount{
		Name:      p.VolumeName,
		MountPath: p.MountPath,
		ReadOnly:  true,
	})

	if err := p.k8sClient.Patch(ctx, sts, client.MergeFrom(base)); err != nil {
		return false, fmt.Errorf("unable to patch statefulset %s/%s: %w", namespace, name, err)
	}

	logger.Info("statefulset patched", "volume", p.VolumeName, "mountPath", p.MountPath)
	return true, nil
}

// FixServiceSelectors drops the default selector label from the Capsule
// Services and selects the operator's pods instead. Services that do not exist
// yet are skipped; they are created on install.
func (p *Patcher) FixServiceSelectors(ctx context.Context, namespace string) error {
	logger := log.FromContext(ctx).WithValues("namespace", namespace)

	for _, name := range p.Services {
		svc := &corev1.Service{}
		err := p.k8sClient.Get(ctx, client.ObjectKey{Namespace: namespace, Name: name}, svc)
		switch kube.Classify(err) {
		case kube.KindNone:
		case kube.KindNotFound:
			logger.V(1).Info("service not found, skipping selector fix", "service", name)
			continue
		default:
			return fmt.Errorf("unable to get service %s/%s: %w", namespace, name, err)
		}

		if !p.fixSelector(svc) {
			continue
		}
		if err := p.k8sClient.Update(ctx, svc); err != nil {
			return fmt.Errorf("unable to update service %s/%s: %w", namespace, name, err)
		}
		logger.Info("service selector updated", "service", name, "selector", svc.Spec.Selector)
	}
	return nil
}

func (p *Patcher) fixSelector(svc *corev1.Service) bool {
	changed := false
	if _, ok := svc.Spec.Selector[p.DefaultSelectorLabel]; ok {
		delete(svc.Spec.Selector, p.DefaultSelectorLabel)
		changed = true
	}
	if value, ok := svc.Spec.Selector[p.SelectorLabel]; !ok || value != p.SelectorValue {
		if svc.Spec.Selector == nil {
			svc.Spec.Selector = map[string]string{}
		}
		svc.Spec.Selector[p.SelectorLabel] = p.SelectorValue
		changed = true
	}
	return changed
}
