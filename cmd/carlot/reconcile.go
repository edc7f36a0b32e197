package main

import (
	"github.com/spf13/cobra"

	"carlot/internal/api"
	"carlot/internal/config"
)

func newReconcileCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Find stored pictures no record references, and references to missing pictures",
		Long: "Without --apply only reports. With --apply, orphaned pictures older than the grace " +
			"period are deleted and dangling ids are removed from their records.",
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				report, err := client.Reconcile(cmd.Context(), apply)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(report)
				}
				return writeReconcileReport(report)
			})
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "delete orphans and drop dangling references")
	return cmd
}
