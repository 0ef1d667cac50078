package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wwhai/worksite-bridge/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate the bridge configuration without starting the daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		loaderOpts := []config.LoaderOption{}
		if cfgFile != "" {
			loaderOpts = append(loaderOpts, config.WithConfigPaths(cfgFile))
		}
		cfg, err := config.Load(loaderOpts...)
		if err != nil {
			return err
		}
		groups, err := config.Group(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "configuration valid: %d site(s) across %d group(s)\n", len(cfg.Sites), len(groups))
		return nil
	},
}
