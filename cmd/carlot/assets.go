package main

import (
	"github.com/spf13/cobra"

	"carlot/internal/api"
	"carlot/internal/config"
)

func newAssetsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "List, inspect and edit asset groups",
	}

	var limit, offset int
	list := &cobra.Command{
		Use:   "list",
		Short: "List asset groups",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				groups, err := client.ListAssetGroups(cmd.Context(), limit, offset)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(groups)
				}
				return writeAssetGroupList(groups)
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 0, "maximum groups to return")
	list.Flags().IntVar(&offset, "offset", 0, "groups to skip")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one asset group",
		Args:  requireOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				group, err := client.GetAssetGroup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(group)
				}
				return writeAssetGroupDetail(group)
			})
		},
	}

	addPics := &cobra.Command{
		Use:   "add-pics <id> <file>...",
		Short: "Append pictures to an asset group",
		Args:  argsBetween(2, -1, "an asset group id and at least one file"),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, closeFiles, err := openUploadFiles(args[1:])
			if err != nil {
				return err
			}
			defer closeFiles()

			return withClient(cfg, func(client *api.Client) error {
				group, err := client.AttachAssetPics(cmd.Context(), args[0], files)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(group)
				}
				return writeAssetGroupDetail(group)
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an asset group record; its pictures are left for reconcile",
		Args:  requireOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				if err := client.DeleteAssetGroup(cmd.Context(), args[0]); err != nil {
					return err
				}
				return writePlain("deleted %s\n", args[0])
			})
		},
	}

	cmd.AddCommand(list, show, addPics, del)
	return cmd
}
