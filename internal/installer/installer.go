// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package installer applies the rendered install manifests to the cluster
package installer

import (
	"context"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/sapcc/capsule-operator/internal/crd"
	"github.com/sapcc/capsule-operator/internal/kube"
	"github.com/sapcc/capsule-operator/internal/manifest"
	"github.com/sapcc/capsule-operator/internal/metrics"
)

type InstallReport struct {
	Created      int
	Replaced     int
	Instantiated int
}

type Installer struct {
	k8sClient    client.Client
	source       *manifest.Source
	instantiator *crd.Instantiator

	EstablishedInterval time.Duration
	EstablishedTimeout  time.Duration
}

func New(k8sClient client.Client, source *manifest.Source, instantiator *crd.Instantiator) *Installer {
	return &Installer{
		k8sClient:           k8sClient,
		source:              source,
		instantiator:        instantiator,
		EstablishedInterval: kube.DefaultEstablishedInterval,
		EstablishedTimeout:  kube.DefaultEstablishedTimeout,
	}
}

// Install applies every install manifest in file and document order. The
// first failure aborts the installation. Once the CapsuleConfiguration CRD is
// applied and Established, its instance is created.
func (i *Installer) Install(ctx context.Context, vars manifest.Context) (InstallReport, error) {
	logger := log.FromContext(ctx)
	report := InstallReport{}

	files, err := i.source.InstallFiles()
	if err != nil {
		return report, err
	}

	for _, file := range files {
		resources, err := i.source.Render(file, vars)
		if err != nil {
			return report, err
		}
		logger.V(1).Info("applying manifest", "file", file, "resources", len(resources))

		for _, resource := range resources {
			if err := i.apply(ctx, resource, vars, &report); err != nil {
				return report, err
			}
		}
	}

	logger.Info("installation finished", "created", report.Created, "replaced", report.Replaced, "instantiated", report.Instantiated)
	return report, nil
}

func (i *Installer) apply(ctx context.Context, resource *manifest.Resource, vars manifest.Context, report *InstallReport) error {
	kind := resource.GroupVersionKind.Kind

	outcome, err := kube.CreateOrReplace(ctx, i.k8sClient, resource.Object)
	if err != nil {
		metrics.RecordResource(kind, metrics.OutcomeFailed)
		return err
	}
	metrics.RecordResource(kind, string(outcome))

	switch outcome {
	case kube.Created:
		report.Created++
	case kube.Replaced:
		report.Replaced++
	}

	if !resource.IsCRD() {
		return nil
	}
	definition, err := resource.CRD()
	if err != nil {
		return err
	}
	if definition.Spec.Names.Kind != crd.ConfigurationKind {
		return nil
	}

	if err := kube.WaitForEstablished(ctx, i.k8sClient, definition.Name, i.EstablishedInterval, i.EstablishedTimeout); err != nil {
		return err
	}

	desc, err := i.instantiator.ResolveDescriptor(vars)
	if err != nil {
		return err
	}
	result, err := i.instantiator.Instantiate(ctx, desc, resource, vars)
	if err != nil {
		return err
	}
	report.Instantiated += result.Applied()
	return nil
}
