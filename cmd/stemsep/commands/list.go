package commands

import (
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/stemsep/stemsep/pkg/pretrained"
)

func newListCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "list",
		Short: "List the models available in the remote catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := pretrained.Catalog()
			if err != nil {
				return err
			}

			sigs := make([]string, 0, len(catalog))
			for sig := range catalog {
				if sig == "" {
					continue
				}
				sigs = append(sigs, sig)
			}
			sort.Strings(sigs)

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Signature", "Location"})
			for _, sig := range sigs {
				table.Append([]string{sig, catalog[sig]})
			}
			table.Render()
			return nil
		},
	}
	return c
}
