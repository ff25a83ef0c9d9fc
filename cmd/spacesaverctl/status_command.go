package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"spacesaver/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and worker status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.newClient()
			if err != nil {
				return err
			}
			var view api.StatusView
			if err := client.get(cmd.Context(), "/status", &view); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if view.Running {
				fmt.Fprintln(out, "Daemon: running")
			} else {
				fmt.Fprintln(out, "Daemon: not running")
			}
			if view.Worker.Running {
				fmt.Fprintf(out, "Worker: %s %s (%.0f%%) %s\n", view.Worker.EntryID, view.Worker.Stage, view.Worker.Percent, view.Worker.Message)
			} else {
				fmt.Fprintln(out, "Worker: idle")
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Catalog")
			rows := buildCountRows(view.CatalogCounts)
			if len(rows) == 0 {
				fmt.Fprintln(out, "Catalog is empty")
			} else {
				fmt.Fprint(out, renderTable([]string{"State", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			}

			if len(view.Dependencies) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Dependencies")
				depRows := make([][]string, 0, len(view.Dependencies))
				for _, d := range view.Dependencies {
					depRows = append(depRows, []string{d.Name, yesNo(d.Available), d.Detail})
				}
				fmt.Fprint(out, renderTable([]string{"Name", "Available", "Detail"}, depRows, []columnAlignment{alignLeft, alignLeft, alignLeft}))
			}
			return nil
		},
	}
}

func buildCountRows(counts map[string]int) [][]string {
	if len(counts) == 0 {
		return nil
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, fmt.Sprintf("%d", counts[k])})
	}
	return rows
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
