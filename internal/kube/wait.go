// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package kube

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apiextensions-apiserver/pkg/apihelpers"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

const (
	DefaultEstablishedInterval = 500 * time.Millisecond
	DefaultEstablishedTimeout  = 60 * time.Second
)

// WaitForEstablished blocks until the named CRD reports the Established
// condition. Instances of a kind created earlier race the API server's
// registration of the type.
func WaitForEstablished(ctx context.Context, k8sClient client.Client, name string, interval, timeout time.Duration) error {
	logger := log.FromContext(ctx).WithValues("crd", name)
	logger.Info("waiting for CRD to be established")

	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true, func(ctx context.Context) (bool, error) {
		crd := &apiextensionsv1.CustomResourceDefinition{}
		err := k8sClient.Get(ctx, client.ObjectKey{Name: name}, crd)
		switch Classify(err) {
		case KindNone:
			return apihelpers.IsCRDConditionTrue(crd, apiextensionsv1.Established), nil
		case KindNotFound:
			return false, nil
		default:
			return false, err
		}
	})
	if err != nil {
		return fmt.Errorf("CRD %s not established: %w", name, err)
	}

	logger.Info("CRD established")
	return nil
}
