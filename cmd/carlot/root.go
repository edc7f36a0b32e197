package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"carlot/internal/config"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput bool
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           "carlot",
		Short:         "Carlot stores and serves vehicle lot pictures",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warnings, err := configureLoggerForCLI(cmd.ErrOrStderr(), logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if cfg.TrustedProjectConfigPath != "" {
				warnings = append(warnings, "warning: using trusted project config from "+cfg.TrustedProjectConfigPath)
			}
			for _, w := range warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), w)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newConfigCmd(cfg, &jsonOutput),
		newUploadCmd(cfg, &jsonOutput),
		newFetchCmd(cfg),
		newDetachCmd(cfg, &jsonOutput),
		newVehiclesCmd(cfg, &jsonOutput),
		newAssetsCmd(cfg, &jsonOutput),
		newReconcileCmd(cfg, &jsonOutput),
		newMigrateCmd(cfg, &jsonOutput),
	)

	return cmd
}
