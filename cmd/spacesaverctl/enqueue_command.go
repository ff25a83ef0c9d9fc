package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"spacesaver/internal/api"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <id|best>",
		Short: "Request re-processing of a SKIP or FAILED entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.newClient()
			if err != nil {
				return err
			}

			path := "/request/enqueue/" + args[0]
			if args[0] == "best" {
				path = "/request/enqueue/best"
			}

			var view api.EnqueueView
			if err := client.post(cmd.Context(), path, &view); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %s\n", view.ID)
			return nil
		},
	}
}
