package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"carlot/internal/config"
	"carlot/internal/format"
)

func newConfigCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or change configuration",
	}

	get := &cobra.Command{
		Use:   "get <key>...",
		Short: "Print effective config values",
		Args:  argsBetween(1, -1, "at least one config key"),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := configValues(cfg, args)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(values)
			}
			if len(args) == 1 {
				return writePlain("%s\n", values[args[0]])
			}
			for _, key := range args {
				if err := writePlain("%s=%s\n", key, values[key]); err != nil {
					return err
				}
			}
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print every effective config value",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := config.AllowedKeys()
			values, err := configValues(cfg, keys)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(values)
			}
			table := format.Table{Header: []string{"KEY", "VALUE"}}
			for _, key := range keys {
				table.Rows = append(table.Rows, []string{key, values[key]})
			}
			return writeTable(table)
		},
	}

	var global bool
	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a config value to the project or global file",
		Args:  argsBetween(2, 2, "a config key and value"),
		RunE: func(cmd *cobra.Command, args []string) error {
			pathFn := config.ProjectPath
			if global {
				pathFn = config.GlobalPath
			}
			path, err := pathFn()
			if err != nil {
				return err
			}
			if err := config.SetKey(path, args[0], args[1]); err != nil {
				return err
			}
			return writePlain("set %s in %s\n", args[0], path)
		},
	}
	set.Flags().BoolVar(&global, "global", false, "write to the global config file instead of ./.carlot.toml")

	cmd.AddCommand(get, list, set)
	return cmd
}

func configValues(cfg *config.Config, keys []string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	for _, key := range keys {
		if !config.IsAllowedKey(key) {
			return nil, fmt.Errorf("unknown key: %s (allowed: %v)", key, config.AllowedKeys())
		}
		value, err := cfg.Get(key)
		if err != nil {
			return nil, err
		}
		values[key] = value
	}
	return values, nil
}
