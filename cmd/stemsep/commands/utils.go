package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var successColor = color.New(color.FgGreen)

// printSuccess writes a highlighted status line to the command's output.
func printSuccess(cmd *cobra.Command, format string, args ...interface{}) {
	successColor.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
}
