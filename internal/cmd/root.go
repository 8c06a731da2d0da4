// Copyright 2024 SAP SE
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"flag"
	"fmt"
	"os"

	"github.com/ironcore-dev/controller-utils/cmdutils/switches"
	"github.com/sapcc/go-api-declarations/bininfo"
	"github.com/spf13/cobra"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/yaml"

	"github.com/sapcc/capsule-operator/internal/config"
	"github.com/sapcc/capsule-operator/internal/configuration"
	"github.com/sapcc/capsule-operator/internal/controller"
	"github.com/sapcc/capsule-operator/internal/crd"
	"github.com/sapcc/capsule-operator/internal/event"
	"github.com/sapcc/capsule-operator/internal/installer"
	"github.com/sapcc/capsule-operator/internal/manifest"
	"github.com/sapcc/capsule-operator/internal/metrics"
	"github.com/sapcc/capsule-operator/internal/pebble"
	"github.com/sapcc/capsule-operator/internal/status"
	"github.com/sapcc/capsule-operator/internal/workload"
)

var RootCmd = &cobra.Command{
	Use:          "capsule-operator",
	Short:        "capsule-operator installs and configures Capsule multi-tenancy in a Kubernetes cluster",
	Version:      bininfo.Version(),
	SilenceUsage: true,
}

var (
	scheme          = runtime.NewScheme()
	setupLog        = ctrl.Log.WithName("setup")
	configPath      string
	manifestsDir    string
	pebbleSocket    string
	containerIndex  int
	metricsTextfile string
	kubeAPIQPS      float32
	kubeAPIBurst    int
	patches         switches.Switches
	zapOpts         = zap.Options{}
)

const (
	// patches
	statefulSetVolumePatch = "statefulset-volume"
	serviceSelectorsPatch  = "service-selectors"

	defaultManifestsDir = "/charm/templates"
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(apiextensionsv1.AddToScheme(scheme))

	RootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath, "Path of the JSON configuration file")
	RootCmd.PersistentFlags().StringVar(&manifestsDir, "manifests-dir", defaultManifestsDir, "Directory containing the manifest templates")
	RootCmd.PersistentFlags().StringVar(&pebbleSocket, "pebble-socket", pebble.DefaultSocket, "Socket of the pebble daemon in the workload container")
	RootCmd.PersistentFlags().IntVar(&containerIndex, "workload-container-index", workload.DefaultContainerIndex, "Index of the Capsule manager container in the StatefulSet pod template")
	RootCmd.PersistentFlags().StringVar(&metricsTextfile, "metrics-textfile", "", "If set, metrics are written to this file for the node-exporter textfile collector")
	RootCmd.PersistentFlags().Float32Var(&kubeAPIQPS, "kube-api-qps", controller.RateLimiterQPSDefault, "Maximum queries per second to the Kubernetes API")
	RootCmd.PersistentFlags().IntVar(&kubeAPIBurst, "kube-api-burst", controller.RateLimiterBurstDefault, "Maximum burst of queries to the Kubernetes API")

	patches = *switches.New(
		statefulSetVolumePatch,
		serviceSelectorsPatch,
	)

	RootCmd.PersistentFlags().Var(&patches, "patches",
		fmt.Sprintf("Workload patches to apply. All patches: %v. Disabled-by-default patches: %v",
			patches.All(),
			patches.DisabledByDefault(),
		),
	)

	zapFlags := flag.NewFlagSet("zap", flag.ExitOnError)
	zapOpts.BindFlags(zapFlags)
	RootCmd.PersistentFlags().AddGoFlagSet(zapFlags)

	RootCmd.AddCommand(installCmd, configChangedCmd, workloadReadyCmd, actionCmd)
}

// dispatch handles a single event, the way one charm hook invocation does.
func dispatch(cmd *cobra.Command, ev event.Event) error {
	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&zapOpts)))
	setupLog.Info("capsule-operator", "version", bininfo.Version(), "event", ev.Name())

	cfg := config.NewDefaultConfiguration(&config.ConfigReader{}, configPath)
	if err := cfg.Reload(); err != nil {
		setupLog.Error(err, "unable to load configuration")
		return err
	}
	setupLog.V(1).Info("configuration loaded", "config", cfg.String())

	router, err := newRouter(cfg)
	if err != nil {
		return err
	}

	ctx := log.IntoContext(ctrl.SetupSignalHandler(), ctrl.Log.WithName("capsule"))
	result := router.Dispatch(ctx, ev)

	if metricsTextfile != "" {
		if err := metrics.WriteTextfile(metricsTextfile); err != nil {
			setupLog.Error(err, "unable to write metrics", "path", metricsTextfile)
		}
	}

	if err := printResult(cmd, result); err != nil {
		return err
	}
	return result.Err()
}

func newRouter(cfg *config.Config) (*event.Router, error) {
	restConfig, err := ctrl.GetConfig()
	if err != nil {
		setupLog.Error(err, "unable to get kubeconfig")
		return nil, err
	}
	controller.RateLimiter{QPS: kubeAPIQPS, Burst: kubeAPIBurst}.Apply(restConfig)

	k8sClient, err := client.New(restConfig, client.Options{Scheme: scheme})
	if err != nil {
		setupLog.Error(err, "unable to create kubernetes client")
		return nil, err
	}

	container, err := pebble.NewClient(pebbleSocket)
	if err != nil {
		setupLog.Error(err, "unable to create pebble client")
		return nil, err
	}

	source := manifest.NewSource(os.DirFS(manifestsDir), "")
	instantiator := crd.NewInstantiator(k8sClient, source)

	patcher := workload.NewPatcher(k8sClient, cfg.Name)
	patcher.ContainerIndex = containerIndex

	charm := controller.NewCapsuleCharm(cfg,
		installer.New(k8sClient, source, instantiator),
		configuration.NewReconciler(k8sClient, instantiator),
		patcher,
		container,
		status.NewConfigMapStatusHandler(k8sClient, cfg.Namespace, cfg.Name),
	)
	charm.PatchStatefulSet = patches.Enabled(statefulSetVolumePatch)
	charm.FixServiceSelectors = patches.Enabled(serviceSelectorsPatch)

	router := event.NewRouter()
	if err := charm.SetupWithRouter(router); err != nil {
		setupLog.Error(err, "unable to set up event handlers")
		return nil, err
	}
	return router, nil
}

func printResult(cmd *cobra.Command, result event.Result) error {
	if len(result.Data) == 0 {
		return nil
	}
	out, err := yaml.Marshal(result.Data)
	if err != nil {
		return fmt.Errorf("unable to marshal result: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
