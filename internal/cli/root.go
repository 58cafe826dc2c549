// Package cli is the simplechores command line.
package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	// ConfigPath points at the process settings file; the chore document
	// location is one of those settings.
	ConfigPath string
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "simplechores",
		Short:         "Household chore, points and privilege tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "settings file (defaults to $SIMPLECHORES_CONFIG_PATH)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewFmtCommand())

	return cmd
}
