// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package manifest_test

import (
	"errors"
	"testing/fstest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/sapcc/capsule-operator/internal/manifest"
)

const crdTemplate = `apiVersion: apiextensions.k8s.io/v1
kind: CustomResourceDefinition
metadata:
  name: capsuleconfigurations.capsule.clastix.io
spec:
  group: capsule.clastix.io
  names:
    kind: CapsuleConfiguration
    listKind: CapsuleConfigurationList
    plural: capsuleconfigurations
    singular: capsuleconfiguration
  scope: Cluster
  versions:
  - name: v1alpha1
    served: true
    storage: true
    schema:
      openAPIV3Schema:
        type: object
        x-kubernetes-preserve-unknown-fields: true
`

var _ = Describe("Source", func() {
	var fsys fstest.MapFS

	BeforeEach(func() {
		fsys = fstest.MapFS{
			"bootstrap.yaml.tmpl": {Data: []byte(crdTemplate)},
			"services.yaml.tmpl": {Data: []byte(`---
apiVersion: v1
kind: Service
metadata:
  name: capsule-webhook-service
  namespace: {{ .namespace }}
spec:
  ports:
  - port: 443
    targetPort: 9443
---
# only a comment
---
apiVersion: v1
kind: Secret
metadata:
  name: capsule-tls
  namespace: {{ .namespace }}
  labels:
    app.kubernetes.io/name: {{ .app_name | quote }}
`)},
			"install-CapsuleConfiguration.yaml.tmpl": {Data: []byte(`apiVersion: capsule.clastix.io/v1alpha1
kind: CapsuleConfiguration
metadata:
  name: default
spec:
  userGroups:
{{- range .user_groups_list }}
  - {{ . }}
{{- end }}
`)},
			"README.md": {Data: []byte("not a template")},
		}
	})

	Describe("InstallFiles", func() {
		It("should list install templates in lexical order without per-kind templates", func() {
			// given
			source := manifest.NewSource(fsys, "")

			// when
			files, err := source.InstallFiles()

			// then
			Expect(err).ToNot(HaveOccurred())
			Expect(files).To(Equal([]string{"bootstrap.yaml.tmpl", "services.yaml.tmpl"}))
		})
	})

	Describe("BootstrapFile", func() {
		It("should default to bootstrap.yaml.tmpl", func() {
			Expect(manifest.NewSource(fsys, "").BootstrapFile()).To(Equal(manifest.DefaultBootstrap))
			Expect(manifest.NewSource(fsys, "crds.yaml.tmpl").BootstrapFile()).To(Equal("crds.yaml.tmpl"))
		})
	})

	Describe("KindFile", func() {
		It("should find an existing per-kind template", func() {
			// when
			file, found, err := manifest.NewSource(fsys, "").KindFile("CapsuleConfiguration")

			// then
			Expect(err).ToNot(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(file).To(Equal("install-CapsuleConfiguration.yaml.tmpl"))
		})

		It("should report a missing per-kind template without an error", func() {
			// when
			file, found, err := manifest.NewSource(fsys, "").KindFile("Tenant")

			// then
			Expect(err).ToNot(HaveOccurred())
			Expect(found).To(BeFalse())
			Expect(file).To(Equal("install-Tenant.yaml.tmpl"))
		})
	})

	Describe("Render", func() {
		It("should render every document in source order and skip empty ones", func() {
			// given
			source := manifest.NewSource(fsys, "")

			// when
			resources, err := source.Render("services.yaml.tmpl", newTestContext())

			// then
			Expect(err).ToNot(HaveOccurred())
			Expect(resources).To(HaveLen(2))
			Expect(resources[0].GroupVersionKind.Kind).To(Equal("Service"))
			Expect(resources[0].Name).To(Equal("capsule-webhook-service"))
			Expect(resources[0].Namespace).To(Equal("ns1"))
			Expect(resources[1].GroupVersionKind.Kind).To(Equal("Secret"))
			Expect(resources[1].Object.GetLabels()).To(HaveKeyWithValue("app.kubernetes.io/name", "capsule"))
			Expect(resources[1].String()).To(Equal("Secret/ns1/capsule-tls"))
		})

		It("should decode integers as integers", func() {
			// when
			resources, err := manifest.NewSource(fsys, "").Render("services.yaml.tmpl", newTestContext())

			// then
			Expect(err).ToNot(HaveOccurred())
			ports, found, err := unstructured.NestedSlice(resources[0].Object.Object, "spec", "ports")
			Expect(err).ToNot(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(ports[0]).To(HaveKeyWithValue("port", int64(443)))
		})

		It("should render lists from the context", func() {
			// when
			resources, err := manifest.NewSource(fsys, "").Render("install-CapsuleConfiguration.yaml.tmpl", newTestContext())

			// then
			Expect(err).ToNot(HaveOccurred())
			Expect(resources).To(HaveLen(1))
			groups, _, err := unstructured.NestedStringSlice(resources[0].Object.Object, "spec", "userGroups")
			Expect(err).ToNot(HaveOccurred())
			Expect(groups).To(Equal([]string{"a", "b", "c"}))
		})

		It("should convert a CRD into its typed form", func() {
			// given
			resources, err := manifest.NewSource(fsys, "").Render("bootstrap.yaml.tmpl", newTestContext())
			Expect(err).ToNot(HaveOccurred())

			// when
			crd, err := resources[0].CRD()

			// then
			Expect(err).ToNot(HaveOccurred())
			Expect(resources[0].IsCRD()).To(BeTrue())
			Expect(crd.Spec.Names.Kind).To(Equal("CapsuleConfiguration"))
			Expect(crd.Spec.Names.Plural).To(Equal("capsuleconfigurations"))
			Expect(crd.Spec.Versions).To(HaveLen(1))
		})

		It("should refuse to convert a resource that is not a CRD", func() {
			// given
			resources, err := manifest.NewSource(fsys, "").Render("services.yaml.tmpl", newTestContext())
			Expect(err).ToNot(HaveOccurred())

			// when
			_, err = resources[0].CRD()

			// then
			Expect(err).To(MatchError("Service/ns1/capsule-webhook-service is not a CustomResourceDefinition"))
		})

		DescribeTable("should reject malformed documents with a ManifestError",
			func(content, reason string) {
				// given
				fsys["broken.yaml.tmpl"] = &fstest.MapFile{Data: []byte(content)}

				// when
				_, err := manifest.NewSource(fsys, "").Render("broken.yaml.tmpl", newTestContext())

				// then
				var manifestErr *manifest.ManifestError
				Expect(errors.As(err, &manifestErr)).To(BeTrue())
				Expect(manifestErr.File).To(Equal("broken.yaml.tmpl"))
				Expect(manifestErr.Reason).To(ContainSubstring(reason))
			},
			Entry("missing apiVersion", "kind: Secret\nmetadata:\n  name: a\n", "apiVersion is required"),
			Entry("missing kind", "apiVersion: v1\nmetadata:\n  name: a\n", "kind is required"),
			Entry("missing name", "apiVersion: v1\nkind: Secret\nmetadata: {}\n", "metadata.name is required"),
		)

		It("should fail on an unknown template key", func() {
			// given
			fsys["unknown.yaml.tmpl"] = &fstest.MapFile{Data: []byte("value: {{ .does_not_exist }}\n")}

			// when
			_, err := manifest.NewSource(fsys, "").Render("unknown.yaml.tmpl", newTestContext())

			// then
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unable to render template unknown.yaml.tmpl"))
		})

		It("should fail on a missing template file", func() {
			// when
			_, err := manifest.NewSource(fsys, "").Render("missing.yaml.tmpl", newTestContext())

			// then
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unable to read template missing.yaml.tmpl"))
		})
	})
})
