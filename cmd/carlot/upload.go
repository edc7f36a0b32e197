package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"carlot/internal/api"
	"carlot/internal/config"
)

func newUploadCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload pictures as a new record",
	}
	cmd.AddCommand(newUploadVehicleCmd(cfg, jsonOutput))
	cmd.AddCommand(newUploadAssetsCmd(cfg, jsonOutput))
	return cmd
}

func newUploadVehicleCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var fieldArgs []string

	cmd := &cobra.Command{
		Use:   "vehicle <file>...",
		Short: "Create a vehicle from pictures",
		Args:  requireFiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseFieldArgs(fieldArgs)
			if err != nil {
				return err
			}
			files, closeFiles, err := openUploadFiles(args)
			if err != nil {
				return err
			}
			defer closeFiles()

			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.UploadVehicle(cmd.Context(), fields, files)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeUploadResult(resp)
			})
		},
	}

	cmd.Flags().StringArrayVar(&fieldArgs, "field", nil, "vehicle field as key=value (repeatable)")
	return cmd
}

func newUploadAssetsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "assets <file>...",
		Short: "Create an asset group from pictures",
		Args:  requireFiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			files, closeFiles, err := openUploadFiles(args)
			if err != nil {
				return err
			}
			defer closeFiles()

			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.UploadAssets(cmd.Context(), name, files)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeUploadResult(resp)
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "asset group name")
	return cmd
}

// openUploadFiles opens every path before any request is sent. The returned
// func closes whatever was opened.
func openUploadFiles(paths []string) ([]api.UploadFile, func(), error) {
	files := make([]api.UploadFile, 0, len(paths))
	opened := make([]*os.File, 0, len(paths))
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	for _, path := range paths {
		file, handle, err := api.OpenUploadFile(path)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		opened = append(opened, handle)
		files = append(files, file)
	}
	return files, closeAll, nil
}

func parseFieldArgs(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	fields := make(map[string]string, len(values))
	for _, raw := range values {
		key, value, ok := strings.Cut(raw, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --field %q (want key=value)", raw)
		}
		fields[key] = value
	}
	return fields, nil
}
