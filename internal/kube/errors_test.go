// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package kube_test

import (
	"errors"
	"fmt"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/sapcc/capsule-operator/internal/kube"
)

var _ = Describe("Classify", func() {
	gr := schema.GroupResource{Group: "apps", Resource: "statefulsets"}

	DescribeTable("should map API errors onto error kinds",
		func(err error, expected kube.ErrorKind) {
			Expect(kube.Classify(err)).To(Equal(expected))
		},
		Entry("no error", nil, kube.KindNone),
		Entry("already exists", apierrors.NewAlreadyExists(gr, "capsule"), kube.KindConflict),
		Entry("conflict", apierrors.NewConflict(gr, "capsule", errors.New("stale")), kube.KindConflict),
		Entry("generic 409 status", &apierrors.StatusError{ErrStatus: metav1.Status{Code: http.StatusConflict}}, kube.KindConflict),
		Entry("wrapped already exists", fmt.Errorf("create: %w", apierrors.NewAlreadyExists(gr, "capsule")), kube.KindConflict),
		Entry("not found", apierrors.NewNotFound(gr, "capsule"), kube.KindNotFound),
		Entry("forbidden", apierrors.NewForbidden(gr, "capsule", errors.New("denied")), kube.KindOther),
		Entry("plain error", errors.New("connection refused"), kube.KindOther),
	)

	It("should name every kind", func() {
		Expect(kube.KindNone.String()).To(Equal("None"))
		Expect(kube.KindConflict.String()).To(Equal("Conflict"))
		Expect(kube.KindNotFound.String()).To(Equal("NotFound"))
		Expect(kube.KindOther.String()).To(Equal("Other"))
	})
})
