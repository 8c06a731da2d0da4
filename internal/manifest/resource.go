// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"fmt"

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

const KindCustomResourceDefinition = "CustomResourceDefinition"

// ManifestError reports a document that could not be turned into a Resource.
type ManifestError struct {
	File     string
	Document int
	Reason   string
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("manifest %s document %d: %s", e.File, e.Document, e.Reason)
}

// Resource is a single rendered manifest document.
type Resource struct {
	Object           *unstructured.Unstructured
	GroupVersionKind schema.GroupVersionKind
	Name             string
	Namespace        string
}

func newResource(file string, document int, content map[string]any) (*Resource, error) {
	obj := &unstructured.Unstructured{Object: content}

	if obj.GetAPIVersion() == "" {
		return nil, &ManifestError{File: file, Document: document, Reason: "apiVersion is required"}
	}
	if obj.GetKind() == "" {
		return nil, &ManifestError{File: file, Document: document, Reason: "kind is required"}
	}
	if obj.GetName() == "" {
		return nil, &ManifestError{File: file, Document: document, Reason: "metadata.name is required"}
	}

	gv, err := schema.ParseGroupVersion(obj.GetAPIVersion())
	if err != nil {
		return nil, &ManifestError{File: file, Document: document, Reason: err.Error()}
	}

	return &Resource{
		Object:           obj,
		GroupVersionKind: gv.WithKind(obj.GetKind()),
		Name:             obj.GetName(),
		Namespace:        obj.GetNamespace(),
	}, nil
}

func (r *Resource) String() string {
	if r.Namespace == "" {
		return fmt.Sprintf("%s/%s", r.GroupVersionKind.Kind, r.Name)
	}
	return fmt.Sprintf("%s/%s/%s", r.GroupVersionKind.Kind, r.Namespace, r.Name)
}

func (r *Resource) IsCRD() bool {
	return r.GroupVersionKind.Group == apiextensionsv1.GroupName && r.GroupVersionKind.Kind == KindCustomResourceDefinition
}

// CRD converts the resource into a typed CustomResourceDefinition.
func (r *Resource) CRD() (*apiextensionsv1.CustomResourceDefinition, error) {
	if !r.IsCRD() {
		return nil, fmt.Errorf("%s is not a CustomResourceDefinition", r)
	}
	crd := &apiextensionsv1.CustomResourceDefinition{}
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(r.Object.Object, crd); err != nil {
		return nil, fmt.Errorf("unable to convert %s: %w", r, err)
	}
	return crd, nil
}
