// Package commands implements the stemsep CLI, a thin wrapper around the
// pretrained resolution and loading packages.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd returns the root command for the stemsep CLI.
func NewRootCmd() *cobra.Command {
	c := &cobra.Command{
		Use:           "stemsep",
		Short:         "Manage pretrained source separation models",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	c.AddCommand(
		newGetCmd(),
		newPullCmd(),
		newListCmd(),
	)
	return c
}
