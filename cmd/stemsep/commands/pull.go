package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stemsep/stemsep/pkg/pretrained"
)

func newPullCmd() *cobra.Command {
	var legacy bool

	c := &cobra.Command{
		Use:   "pull MODEL",
		Short: "Download and verify a model's weights into the local cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if legacy {
				factory, err := pretrained.NewLegacy()
				if err != nil {
					return err
				}
				if _, err := factory.LoadPretrained(cmd.Context(), name); err != nil {
					return fmt.Errorf("failed to pull %q: %w", name, err)
				}
			} else if _, err := pretrained.GetModel(cmd.Context(), name); err != nil {
				return fmt.Errorf("failed to pull %q: %w", name, err)
			}
			printSuccess(cmd, "Pulled %s", name)
			return nil
		},
	}

	c.Flags().BoolVar(&legacy, "legacy", false, "Resolve against the legacy pretrained family instead of the catalog.")

	return c
}
