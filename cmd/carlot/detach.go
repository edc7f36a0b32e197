package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"carlot/internal/api"
	"carlot/internal/config"
)

func newDetachCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var vehicleID, assetID string

	cmd := &cobra.Command{
		Use:   "detach <object-id>",
		Short: "Unlink a picture from a record and delete it",
		Args:  requireOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (vehicleID == "") == (assetID == "") {
				return fmt.Errorf("exactly one of --vehicle or --asset is required")
			}
			objectID := args[0]

			return withClient(cfg, func(client *api.Client) error {
				var (
					resp any
					err  error
					rec  string
				)
				if vehicleID != "" {
					resp, err = client.DetachVehiclePic(cmd.Context(), objectID, vehicleID)
					rec = vehicleID
				} else {
					resp, err = client.DetachAssetPic(cmd.Context(), objectID, assetID)
					rec = assetID
				}
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("detached %s from %s\n", objectID, rec)
			})
		},
	}

	cmd.Flags().StringVar(&vehicleID, "vehicle", "", "vehicle id")
	cmd.Flags().StringVar(&assetID, "asset", "", "asset group id")
	return cmd
}
