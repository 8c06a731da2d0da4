// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package kube wraps the Kubernetes API calls the operator issues
package kube

import (
	"errors"
	"net/http"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindConflict
	KindNotFound
	KindOther
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindConflict:
		return "Conflict"
	case KindNotFound:
		return "NotFound"
	case KindOther:
		return "Other"
	}
	return "Unknown"
}

// Classify maps an API error onto the cases callers act on. Any status with
// code 409 counts as a conflict.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var status apierrors.APIStatus
	if errors.As(err, &status) && status.Status().Code == http.StatusConflict {
		return KindConflict
	}

	switch {
	case apierrors.IsAlreadyExists(err), apierrors.IsConflict(err):
		return KindConflict
	case apierrors.IsNotFound(err):
		return KindNotFound
	}
	return KindOther
}
