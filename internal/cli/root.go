package cli

import (
	"github.com/spf13/cobra"

	"github.com/kubeview/panelview/internal/config"
	"github.com/kubeview/panelview/internal/style"
)

var Version = "dev"

// NewRootCmd builds the panelview command tree.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "panelview",
		Short: "Serve embedded Grafana panels",
		Long: `panelview renders Grafana d-solo panels as fixed-size embedded frames
and keeps each mounted view's style preset in sync.

Quick Start:
  panelview serve --config config.yaml   # HTTP server on :8090
  panelview url node-cpu                 # print the panel URL
  panelview preview node-cpu             # show frame details`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file (defaults apply when missing)")

	loadConfig := func() (*config.Config, error) {
		return config.LoadOrDefault(cfgFile)
	}

	root.AddCommand(
		newServeCmd(loadConfig),
		newURLCmd(loadConfig),
		newPreviewCmd(loadConfig),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadSource returns the preset source configured by cfg: the presets file
// when one is set, the built-in presets otherwise.
func loadSource(cfg *config.Config) (style.Source, *style.Reloadable, error) {
	if cfg.Style.PresetsFile == "" {
		return style.Static(style.DefaultPresets()), nil, nil
	}
	r, err := style.NewReloadable(cfg.Style.PresetsFile)
	if err != nil {
		return nil, nil, err
	}
	return r, r, nil
}
