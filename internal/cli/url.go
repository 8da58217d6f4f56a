package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kubeview/panelview/internal/config"
	"github.com/kubeview/panelview/internal/panel"
)

func newURLCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "url <identifier>",
		Short: "Print the embedded panel URL for an identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			u, err := panel.BuildURL(cfg.Grafana, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u)
			return nil
		},
	}
}
