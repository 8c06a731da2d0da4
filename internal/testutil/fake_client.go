// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"context"
	"sync"

	"k8s.io/apiextensions-apiserver/pkg/apihelpers"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/apimachinery/pkg/util/sets"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/apiutil"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"
)

var clusterScopedKinds = sets.New(
	"Namespace",
	"CustomResourceDefinition",
	"ClusterRole",
	"ClusterRoleBinding",
	"MutatingWebhookConfiguration",
	"ValidatingWebhookConfiguration",
	CapsuleConfigurationGVK.Kind,
	TenantGVK.Kind,
)

func NewScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(apiextensionsv1.AddToScheme(scheme))
	return scheme
}

// NewRESTMapper knows every type of the scheme plus the Capsule kinds, which
// are only ever handled as unstructured objects.
func NewRESTMapper(scheme *runtime.Scheme) meta.RESTMapper {
	mapper := meta.NewDefaultRESTMapper(nil)
	for gvk := range scheme.AllKnownTypes() {
		mapper.Add(gvk, scopeFor(gvk.Kind))
	}
	mapper.Add(CapsuleConfigurationGVK, meta.RESTScopeRoot)
	mapper.Add(TenantGVK, meta.RESTScopeRoot)
	mapper.Add(TenantGVK.GroupKind().WithVersion(CapsuleVersion), meta.RESTScopeRoot)
	return mapper
}

func scopeFor(kind string) meta.RESTScope {
	if clusterScopedKinds.Has(kind) {
		return meta.RESTScopeRoot
	}
	return meta.RESTScopeNamespace
}

// Calls records the write calls issued through a fake client, keyed by kind.
type Calls struct {
	mu      sync.Mutex
	Creates map[string]int
	Updates map[string]int
	Patches map[string]int
}

func newCalls() *Calls {
	return &Calls{
		Creates: map[string]int{},
		Updates: map[string]int{},
		Patches: map[string]int{},
	}
}

func (c *Calls) record(calls map[string]int, kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	calls[kind]++
}

func (c *Calls) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, calls := range []map[string]int{c.Creates, c.Updates, c.Patches} {
		for _, n := range calls {
			total += n
		}
	}
	return total
}

type Options struct {
	// EstablishCRDs reports every stored CRD as Established, the way the API
	// server does once the type is served.
	EstablishCRDs bool
	// Funcs run before the recording interceptor; return a non-nil error to
	// fail the call.
	OnCreate func(obj client.Object) error
	OnUpdate func(obj client.Object) error
	OnPatch  func(obj client.Object) error
	OnGet    func(key client.ObjectKey, obj client.Object) error
}

// NewFakeClient builds a controller-runtime fake client that records writes
// and can inject failures.
func NewFakeClient(opts Options, objects ...client.Object) (client.WithWatch, *Calls) {
	scheme := NewScheme()
	calls := newCalls()

	kindOf := func(obj client.Object) string {
		gvk, err := apiutil.GVKForObject(obj, scheme)
		if err != nil {
			return ""
		}
		return gvk.Kind
	}

	funcs := interceptor.Funcs{
		Get: func(ctx context.Context, c client.WithWatch, key client.ObjectKey, obj client.Object, getOpts ...client.GetOption) error {
			if opts.OnGet != nil {
				if err := opts.OnGet(key, obj); err != nil {
					return err
				}
			}
			if err := c.Get(ctx, key, obj, getOpts...); err != nil {
				return err
			}
			if opts.EstablishCRDs {
				establish(obj)
			}
			return nil
		},
		Create: func(ctx context.Context, c client.WithWatch, obj client.Object, createOpts ...client.CreateOption) error {
			if opts.OnCreate != nil {
				if err := opts.OnCreate(obj); err != nil {
					return err
				}
			}
			if u, ok := obj.(*unstructured.Unstructured); ok && !scheme.Recognizes(u.GroupVersionKind()) {
				if err := requireServedKind(ctx, c, u.GroupVersionKind(), opts.EstablishCRDs); err != nil {
					return err
				}
			}
			err := c.Create(ctx, obj, createOpts...)
			if err == nil {
				calls.record(calls.Creates, kindOf(obj))
			}
			return err
		},
		Update: func(ctx context.Context, c client.WithWatch, obj client.Object, updateOpts ...client.UpdateOption) error {
			if opts.OnUpdate != nil {
				if err := opts.OnUpdate(obj); err != nil {
					return err
				}
			}
			err := c.Update(ctx, obj, updateOpts...)
			if err == nil {
				calls.record(calls.Updates, kindOf(obj))
			}
			return err
		},
		Patch: func(ctx context.Context, c client.WithWatch, obj client.Object, patch client.Patch, patchOpts ...client.PatchOption) error {
			if opts.OnPatch != nil {
				if err := opts.OnPatch(obj); err != nil {
					return err
				}
			}
			err := c.Patch(ctx, obj, patch, patchOpts...)
			if err == nil {
				calls.record(calls.Patches, kindOf(obj))
			}
			return err
		},
	}

	k8sClient := fake.NewClientBuilder().
		WithScheme(scheme).
		WithRESTMapper(NewRESTMapper(scheme)).
		WithObjects(objects...).
		WithInterceptorFuncs(funcs).
		Build()

	return k8sClient, calls
}

// requireServedKind rejects instances of custom kinds whose CRD is missing or
// not yet Established, the way discovery on a real API server does.
func requireServedKind(ctx context.Context, c client.Client, gvk schema.GroupVersionKind, establishAll bool) error {
	crds := &apiextensionsv1.CustomResourceDefinitionList{}
	if err := c.List(ctx, crds); err != nil {
		return err
	}
	for i := range crds.Items {
		crd := &crds.Items[i]
		if crd.Spec.Group != gvk.Group || crd.Spec.Names.Kind != gvk.Kind {
			continue
		}
		if !establishAll && !apihelpers.IsCRDConditionTrue(crd, apiextensionsv1.Established) {
			break
		}
		for _, version := range crd.Spec.Versions {
			if version.Name == gvk.Version && version.Served {
				return nil
			}
		}
	}
	return &meta.NoKindMatchError{GroupKind: gvk.GroupKind(), SearchedVersions: []string{gvk.Version}}
}

func establish(obj client.Object) {
	crd, ok := obj.(*apiextensionsv1.CustomResourceDefinition)
	if !ok {
		return
	}
	apihelpers.SetCRDCondition(crd, apiextensionsv1.CustomResourceDefinitionCondition{
		Type:   apiextensionsv1.Established,
		Status: apiextensionsv1.ConditionTrue,
		Reason: "InitialNamesAccepted",
	})
}
