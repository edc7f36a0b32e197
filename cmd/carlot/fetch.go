package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"carlot/internal/api"
	"carlot/internal/config"
)

func newFetchCmd(cfg *config.Config) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "fetch <object-id>",
		Short: "Download a stored picture",
		Args:  requireOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				var out io.Writer = os.Stdout
				if outPath != "" && outPath != "-" {
					// Renamed into place only after a complete download.
					tmp, err := os.CreateTemp(dirOf(outPath), ".carlot-fetch-*")
					if err != nil {
						return err
					}
					defer os.Remove(tmp.Name())
					defer tmp.Close()
					out = tmp

					n, err := client.Fetch(cmd.Context(), args[0], out)
					if err != nil {
						return err
					}
					if err := tmp.Close(); err != nil {
						return err
					}
					if err := os.Rename(tmp.Name(), outPath); err != nil {
						return err
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d bytes to %s\n", n, outPath)
					return nil
				}

				_, err := client.Fetch(cmd.Context(), args[0], out)
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write to file instead of stdout")
	return cmd
}
