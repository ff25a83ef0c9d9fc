package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"spacesaver/internal/api"
)

func newVersionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the running daemon's version",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.newClient()
			if err != nil {
				return err
			}
			var view api.VersionView
			if err := client.get(cmd.Context(), "/version", &view); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), view.Version)
			return nil
		},
	}
}
