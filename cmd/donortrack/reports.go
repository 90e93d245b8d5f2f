package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"donortrack/internal/app"
)

func pmmCmd() *cobra.Command {
	p := &cobra.Command{Use: "pmm", Short: "PMM views"}
	p.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List PMMs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				pmms, err := a.Store.ListPMMs(ctx)
				if err != nil {
					return err
				}
				return render(pmms, table.Row{"PMM"}, func(tw table.Writer) {
					for _, p := range pmms {
						tw.AppendRow(table.Row{p})
					}
				})
			})
		},
	})
	p.AddCommand(&cobra.Command{
		Use:   "tasks <pmm>",
		Short: "List the tasks of a PMM's donors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				rows, err := a.Store.ListTasksByPMM(ctx, args[0])
				if err != nil {
					return err
				}
				return renderTasks(rows)
			})
		},
	})
	p.AddCommand(&cobra.Command{
		Use:   "summary",
		Short: "Pending and completed counts per PMM",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				rows, err := a.Store.PMMSummaries(ctx)
				if err != nil {
					return err
				}
				return render(rows, table.Row{"PMM", "Pending", "Approved", "Rejected", "Completed"}, func(tw table.Writer) {
					for _, r := range rows {
						tw.AppendRow(table.Row{r.PMM, r.PendingCount, r.ApprovedCount, r.RejectedCount, r.CompletedCount})
					}
				})
			})
		},
	})
	return p
}

func activityCmd() *cobra.Command {
	act := &cobra.Command{Use: "activity", Short: "Inspect the activity log"}
	var n int
	var after int64
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show activity entries, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if !cmd.Flags().Changed("after") {
					latest, err := a.Store.Activity.LatestID(ctx)
					if err != nil {
						return err
					}
					if after = latest - int64(n); after < 0 {
						after = 0
					}
				}
				items, err := a.Store.ListActivity(ctx, n, after)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				for _, it := range items {
					fmt.Printf("%d %s %-20s %s:%s by %s %s\n", it.ID, it.TS, it.Type, it.EntityKind, orDash(it.EntityID), it.ActorID, it.Payload)
				}
				return nil
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of entries")
	tail.Flags().Int64Var(&after, "after", 0, "start after this entry id")
	act.AddCommand(tail)
	return act
}
