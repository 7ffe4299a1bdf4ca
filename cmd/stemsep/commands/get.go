package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/stemsep/stemsep/pkg/model"
	"github.com/stemsep/stemsep/pkg/pretrained"
)

func newGetCmd() *cobra.Command {
	var repoDir string

	c := &cobra.Command{
		Use:   "get [MODEL]",
		Short: "Resolve and load a pretrained model or bag of models",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := pretrained.DefaultModel
			if len(args) == 1 {
				name = args[0]
			}
			m, err := pretrained.GetModel(cmd.Context(), name, repoOptions(repoDir)...)
			if err != nil {
				return fmt.Errorf("failed to load %q: %w", name, err)
			}
			printModelSummary(cmd, name, m)
			return nil
		},
	}

	addRepoFlag(c.Flags(), &repoDir)

	return c
}

// addRepoFlag registers the shared --repo flag on fs.
func addRepoFlag(fs *pflag.FlagSet, repoDir *string) {
	fs.StringVar(repoDir, "repo", "", "Folder containing locally trained models to resolve against instead of the remote catalog.")
}

func repoOptions(repoDir string) []pretrained.Option {
	if repoDir == "" {
		return nil
	}
	return []pretrained.Option{pretrained.WithRepo(repoDir)}
}

func printModelSummary(cmd *cobra.Command, name string, m model.Model) {
	printSuccess(cmd, "Loaded %s", name)
	cmd.Printf("Sources: %v\n", m.Sources())
	if bag, ok := m.(*model.BagOfModels); ok {
		cmd.Printf("Bag members: %d (segment %.0fs)\n", len(bag.Models()), bag.Segment())
		return
	}
	total := 0
	for _, p := range m.Parameters() {
		total += p.NumElements()
	}
	cmd.Printf("Parameters: %d\n", total)
}
