package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status <slug>",
		Short: "Show a drop's supply, price and claim availability",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := wireApp(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), true)
			if err != nil {
				return err
			}
			defer app.close()

			collection, coord, err := app.openDrop(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			snap := coord.Snapshot()

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Collection any `json:"collection"`
					State      any `json:"state"`
				}{collection, snap})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderDrop(collection, snap))
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the drop state as JSON")
	return cmd
}
