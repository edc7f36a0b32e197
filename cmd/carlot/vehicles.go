package main

import (
	"github.com/spf13/cobra"

	"carlot/internal/api"
	"carlot/internal/config"
)

func newVehiclesCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "vehicles",
		Aliases: []string{"vehicle"},
		Short:   "List, inspect and edit vehicles",
	}

	cmd.AddCommand(
		newVehiclesListCmd(cfg, jsonOutput),
		newVehiclesShowCmd(cfg, jsonOutput),
		newVehiclesAddPicsCmd(cfg, jsonOutput),
		newVehiclesReplaceCmd(cfg, jsonOutput),
		newVehiclesDeleteCmd(cfg),
	)
	return cmd
}

func newVehiclesListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List vehicles, most recently updated first",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				vehicles, err := client.ListVehicles(cmd.Context(), limit, offset)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(vehicles)
				}
				return writeVehicleList(vehicles)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum vehicles to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "vehicles to skip")
	return cmd
}

func newVehiclesShowCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one vehicle",
		Args:  requireOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				vehicle, err := client.GetVehicle(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(vehicle)
				}
				return writeVehicleDetail(vehicle)
			})
		},
	}
}

func newVehiclesAddPicsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "add-pics <id> <file>...",
		Short: "Append pictures to a vehicle",
		Args:  argsBetween(2, -1, "a vehicle id and at least one file"),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, closeFiles, err := openUploadFiles(args[1:])
			if err != nil {
				return err
			}
			defer closeFiles()

			return withClient(cfg, func(client *api.Client) error {
				vehicle, err := client.AttachVehiclePics(cmd.Context(), args[0], files)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(vehicle)
				}
				return writeVehicleDetail(vehicle)
			})
		},
	}
}

func newVehiclesReplaceCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		keep      string
		fieldArgs []string
	)

	cmd := &cobra.Command{
		Use:   "replace <id> [file]...",
		Short: "Keep the listed pictures in order, then append new files",
		Long: "Sets the vehicle's pictures to the --keep ids followed by the uploaded files. " +
			"Pictures left out are unlinked but not deleted; run reconcile to remove them.",
		Args: argsBetween(1, -1, "a vehicle id and optional files"),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseFieldArgs(fieldArgs)
			if err != nil {
				return err
			}
			files, closeFiles, err := openUploadFiles(args[1:])
			if err != nil {
				return err
			}
			defer closeFiles()

			retained := splitCommaList(keep)

			return withClient(cfg, func(client *api.Client) error {
				vehicle, err := client.ReplaceVehiclePics(cmd.Context(), args[0], retained, fields, files)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(vehicle)
				}
				return writeVehicleDetail(vehicle)
			})
		},
	}

	cmd.Flags().StringVar(&keep, "keep", "", "comma separated picture ids to keep, in order")
	cmd.Flags().StringArrayVar(&fieldArgs, "field", nil, "vehicle field as key=value (repeatable)")
	return cmd
}

func newVehiclesDeleteCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a vehicle record; its pictures are left for reconcile",
		Args:  requireOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				if err := client.DeleteVehicle(cmd.Context(), args[0]); err != nil {
					return err
				}
				return writePlain("deleted %s\n", args[0])
			})
		},
	}
}
