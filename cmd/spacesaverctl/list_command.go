package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"spacesaver/internal/api"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var states []string

	cmd := &cobra.Command{
		Use:   "list [id]",
		Short: "List catalog entries, or show one by id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.newClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				var entry api.EntryView
				if err := client.get(cmd.Context(), "/list/"+args[0], &entry); err != nil {
					return err
				}
				printEntryDetail(out, entry)
				return nil
			}

			path := "/list"
			for i, s := range states {
				if i == 0 {
					path += "?state=" + s
				} else {
					path += "&state=" + s
				}
			}
			var entries []api.EntryView
			if err := client.get(cmd.Context(), path, &entries); err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "Catalog is empty")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.ID, e.Path, e.State, e.Category, fmt.Sprintf("%dx%d", e.Width, e.Height)})
			}
			fmt.Fprint(out, renderTable(
				[]string{"ID", "Path", "State", "Category", "Resolution"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&states, "state", "s", nil, "Filter by state (repeatable)")
	return cmd
}

func printEntryDetail(out io.Writer, e api.EntryView) {
	fmt.Fprintf(out, "ID:         %s\n", e.ID)
	fmt.Fprintf(out, "Path:       %s\n", e.Path)
	fmt.Fprintf(out, "State:      %s\n", e.State)
	fmt.Fprintf(out, "Category:   %s\n", e.Category)
	fmt.Fprintf(out, "Codec:      %s\n", e.Codec)
	fmt.Fprintf(out, "Resolution: %dx%d\n", e.Width, e.Height)
	fmt.Fprintf(out, "Size:       %d bytes\n", e.SizeBytes)
	fmt.Fprintf(out, "Bitrate:    %d bps\n", e.BitrateBPS)
	fmt.Fprintf(out, "Duration:   %.1fs\n", e.DurationS)
	fmt.Fprintf(out, "Attempts:   %d\n", e.Attempts)
	if e.LastError != "" {
		fmt.Fprintf(out, "Last error: %s\n", e.LastError)
	}
	fmt.Fprintf(out, "Updated:    %s\n", e.UpdatedAt)
}
