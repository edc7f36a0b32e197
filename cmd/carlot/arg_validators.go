package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// argsBetween accepts between lo and hi positional args; hi < 0 means no
// upper bound. usage names the expected arguments in the error.
func argsBetween(lo, hi int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < lo || (hi >= 0 && len(args) > hi) {
			return fmt.Errorf("%s: expected %s", cmd.CommandPath(), usage)
		}
		return nil
	}
}

var (
	noArgs       = argsBetween(0, 0, "no arguments")
	requireOneID = argsBetween(1, 1, "exactly one id")
	requireFiles = argsBetween(1, -1, "at least one file")
)
