// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sapcc/capsule-operator/internal/config"
	"github.com/sapcc/capsule-operator/internal/controller/mock"
	"github.com/sapcc/capsule-operator/internal/event"
	"github.com/sapcc/capsule-operator/internal/installer"
	"github.com/sapcc/capsule-operator/internal/manifest"
	"github.com/sapcc/capsule-operator/internal/status"
)

var _ = Describe("CapsuleCharm", func() {
	var (
		ctx           context.Context
		cfg           *config.Config
		installerMock *mock.InstallerMock
		reconcilerMk  *mock.ReconcilerMock
		patcherMock   *mock.PatcherMock
		containerMock *mock.ContainerMock
		statusMock    *mock.StatusMock
		router        *event.Router
	)

	setup := func() {
		charm := NewCapsuleCharm(cfg, installerMock, reconcilerMk, patcherMock, containerMock, statusMock)
		router = event.NewRouter()
		Expect(charm.SetupWithRouter(router)).To(Succeed())
	}

	BeforeEach(func() {
		ctx = context.Background()
		cfg = defaultConfig()
		installerMock = &mock.InstallerMock{
			InstallFunc: func(_ context.Context, _ manifest.Context) (installer.InstallReport, error) {
				return installer.InstallReport{Created: 4, Instantiated: 1}, nil
			},
		}
		reconcilerMk = &mock.ReconcilerMock{
			ReconcileFunc: func(_ context.Context, _ string, _ manifest.Context) error {
				return nil
			},
		}
		patcherMock = &mock.PatcherMock{
			EnsurePatchedFunc: func(_ context.Context, _, _ string) (bool, error) {
				return true, nil
			},
			FixServiceSelectorsFunc: func(_ context.Context, _ string) error {
				return nil
			},
		}
		containerMock = &mock.ContainerMock{}
		statusMock = &mock.StatusMock{}
	})

	Context("install", func() {
		It("should install the resources and become active", func() {
			// given
			setup()

			// when
			result := router.Dispatch(ctx, event.Event{Type: event.Install})

			// then
			Expect(result.Outcome).To(Equal(event.Success))
			Expect(result.Data).To(HaveKeyWithValue("instantiated", 1))
			Expect(installerMock.InstallCalls).To(Equal(1))
			Expect(patcherMock.FixServiceSelectorsCalls).To(Equal(2))
			Expect(statusMock.Transitions).To(Equal([]mock.Transition{
				{State: status.Maintenance, Message: "creating kubernetes resources"},
				{State: status.Active},
			}))
		})

		It("should block with a short message when the installation fails", func() {
			// given
			installerMock.InstallFunc = func(_ context.Context, _ manifest.Context) (installer.InstallReport, error) {
				return installer.InstallReport{}, errors.New("services is forbidden: User cannot create resource")
			}
			setup()

			// when
			result := router.Dispatch(ctx, event.Event{Type: event.Install})

			// then
			Expect(result).To(Equal(event.Failed("kubernetes resource creation failed")))
			Expect(statusMock.Last()).To(Equal(mock.Transition{State: status.Blocked, Message: "kubernetes resource creation failed"}))
		})

		It("should refuse to install without an image", func() {
			// given
			cfg.CapsuleImage = ""
			setup()

			// when
			result := router.Dispatch(ctx, event.Event{Type: event.Install})

			// then
			Expect(result.Outcome).To(Equal(event.Failure))
			Expect(installerMock.InstallCalls).To(BeZero())
			Expect(statusMock.Last()).To(Equal(mock.Transition{State: status.Blocked, Message: "invalid configuration"}))
		})

		It("should fix the service selectors again after the manifests are applied", func() {
			// given
			var order []string
			installerMock.InstallFunc = func(_ context.Context, _ manifest.Context) (installer.InstallReport, error) {
				order = append(order, "install")
				return installer.InstallReport{}, nil
			}
			patcherMock.FixServiceSelectorsFunc = func(_ context.Context, _ string) error {
				order = append(order, "selectors")
				if len(order) > 2 {
					return errors.New("services is forbidden")
				}
				return nil
			}
			setup()

			// when
			result := router.Dispatch(ctx, event.Event{Type: event.Install})

			// then
			Expect(order).To(Equal([]string{"selectors", "install", "selectors"}))
			Expect(result).To(Equal(event.Failed("service selector update failed")))
			Expect(statusMock.Last()).To(Equal(mock.Transition{State: status.Blocked, Message: "service selector update failed"}))
		})

		It("should fail when the status cannot be written", func() {
			// given
			statusMock.ReturnError = true
			setup()

			// when
			result := router.Dispatch(ctx, event.Event{Type: event.Install})

			// then
			Expect(result).To(Equal(event.Failed("unable to update unit status")))
			Expect(installerMock.InstallCalls).To(BeZero())
		})
	})

	Context("config-changed", func() {
		It("should reconcile the configured CapsuleConfiguration", func() {
			// given
			var reconciled string
			var groups []string
			reconcilerMk.ReconcileFunc = func(_ context.Context, name string, vars manifest.Context) error {
				reconciled = name
				groups = vars.UserGroups()
				return nil
			}
			setup()

			// when
			result := router.Dispatch(ctx, event.Event{Type: event.ConfigChanged})

			// then
			Expect(result.Outcome).To(Equal(event.Success))
			Expect(reconciled).To(Equal(config.DefaultCapsuleConfigurationName))
			Expect(groups).To(Equal([]string{"a", "b", "c"}))
			Expect(statusMock.Last()).To(Equal(mock.Transition{State: status.Active}))
		})

		It("should block when the reconciliation fails", func() {
			// given
			reconcilerMk.ReconcileFunc = func(_ context.Context, _ string, _ manifest.Context) error {
				return errors.New("capsule configuration not found")
			}
			setup()

			// when
			result := router.Dispatch(ctx, event.Event{Type: event.ConfigChanged})

			// then
			Expect(result).To(Equal(event.Failed("capsule configuration update failed")))
			Expect(statusMock.Last()).To(Equal(mock.Transition{State: status.Blocked, Message: "capsule configuration update failed"}))
		})
	})

	Context("workload-ready", func() {
		It("should start the manager and patch the statefulset", func() {
			// given
			var patchedName, patchedNamespace string
			patcherMock.EnsurePatchedFunc = func(_ context.Context, name, namespace string) (bool, error) {
				patchedName, patchedNamespace = name, namespace
				return true, nil
			}
			setup()

			// when
			result := router.Dispatch(ctx, event.Event{Type: event.WorkloadReady})

			// then
			Expect(result.Outcome).To(Equal(event.Success))
			Expect(result.Data).To(HaveKeyWithValue("patched", true))
			Expect(containerMock.Layers).To(HaveKeyWithValue(ManagerLayerLabel, ManagerLayer("ns1")))
			Expect(containerMock.Combine).To(BeTrue())
			Expect(containerMock.AutostartCalls).To(Equal(1))
			Expect(patchedName).To(Equal("capsule"))
			Expect(patchedNamespace).To(Equal("ns1"))
			Expect(statusMock.Last()).To(Equal(mock.Transition{State: status.Active}))
		})

		It("should skip the statefulset patch when disabled", func() {
			// given
			charm := NewCapsuleCharm(cfg, installerMock, reconcilerMk, patcherMock, containerMock, statusMock)
			charm.PatchStatefulSet = false
			router = event.NewRouter()
			Expect(charm.SetupWithRouter(router)).To(Succeed())

			// when
			result := router.Dispatch(ctx, event.Event{Type: event.WorkloadReady})

			// then
			Expect(result.Outcome).To(Equal(event.Success))
			Expect(patcherMock.EnsurePatchedCalls).To(BeZero())
		})

		It("should block when pebble is unavailable", func() {
			// given
			containerMock.ReturnError = true
			setup()

			// when
			result := router.Dispatch(ctx, event.Event{Type: event.WorkloadReady})

			// then
			Expect(result).To(Equal(event.Failed("workload configuration failed")))
			Expect(patcherMock.EnsurePatchedCalls).To(BeZero())
		})

		It("should block when the statefulset cannot be patched", func() {
			// given
			patcherMock.EnsurePatchedFunc = func(_ context.Context, _, _ string) (bool, error) {
				return false, errors.New("container index out of range")
			}
			setup()

			// when
			result := router.Dispatch(ctx, event.Event{Type: event.WorkloadReady})

			// then
			Expect(result).To(Equal(event.Failed("workload configuration failed")))
			Expect(statusMock.Last().State).To(Equal(status.Blocked))
		})
	})

	Context("startup", func() {
		It("should fix the service selectors before the first event", func() {
			// given
			setup()

			// when
			router.Dispatch(ctx, event.Event{Type: event.ConfigChanged})

			// then
			Expect(patcherMock.FixServiceSelectorsCalls).To(Equal(1))
		})

		It("should not touch the services when disabled", func() {
			// given
			charm := NewCapsuleCharm(cfg, installerMock, reconcilerMk, patcherMock, containerMock, statusMock)
			charm.FixServiceSelectors = false
			router = event.NewRouter()
			Expect(charm.SetupWithRouter(router)).To(Succeed())

			// when
			router.Dispatch(ctx, event.Event{Type: event.ConfigChanged})

			// then
			Expect(patcherMock.FixServiceSelectorsCalls).To(BeZero())
		})
	})

	Context("startup failure", func() {
		It("should block the unit when the service selectors cannot be fixed", func() {
			// given
			patcherMock.FixServiceSelectorsFunc = func(_ context.Context, _ string) error {
				return errors.New("services is forbidden")
			}
			setup()

			// when
			result := router.Dispatch(ctx, event.Event{Type: event.Install})

			// then
			Expect(result.Outcome).To(Equal(event.Failure))
			Expect(installerMock.InstallCalls).To(BeZero())
			Expect(statusMock.Last()).To(Equal(mock.Transition{State: status.Blocked, Message: "service selector update failed"}))
		})
	})

	Context("fortune action", func() {
		It("should return a fortune", func() {
			// given
			setup()

			// when
			result := router.Dispatch(ctx, event.NewAction(FortuneAction, nil))

			// then
			Expect(result).To(Equal(event.Succeeded(map[string]any{"fortune": "A bug in the code is worth two in the documentation."})))
		})

		It("should fail with the given message", func() {
			// given
			setup()

			// when
			result := router.Dispatch(ctx, event.NewAction(FortuneAction, map[string]string{"fail": "no fortune today"}))

			// then
			Expect(result).To(Equal(event.Failed("no fortune today")))
			Expect(statusMock.Transitions).To(BeEmpty())
		})
	})
})
