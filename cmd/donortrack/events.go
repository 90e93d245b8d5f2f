package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"donortrack/internal/app"
	"donortrack/internal/domain"
	"donortrack/internal/engine"
	"donortrack/internal/store"
)

func eventCmd() *cobra.Command {
	ev := &cobra.Command{Use: "event", Short: "Manage events"}
	ev.AddCommand(eventCreateCmd())
	ev.AddCommand(eventListCmd())
	ev.AddCommand(eventShowCmd())
	ev.AddCommand(eventTasksCmd())
	return ev
}

func eventCreateCmd() *cobra.Command {
	var in store.EventInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an event",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				id, err := a.Store.CreateEvent(ctx, in)
				if err != nil {
					return err
				}
				return printID("event", id)
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "event name")
	cmd.Flags().StringVar(&in.Location, "location", "", "event location")
	cmd.Flags().StringVar(&in.Date, "date", "", "event date")
	cmd.Flags().StringVar(&in.Description, "description", "", "event description")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func eventListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				events, err := a.Store.ListEvents(ctx)
				if err != nil {
					return err
				}
				return render(events, table.Row{"ID", "Name", "Location", "Date"}, func(tw table.Writer) {
					for _, e := range events {
						tw.AppendRow(table.Row{e.ID, e.Name, orDash(e.Location), orDash(e.Date)})
					}
				})
			})
		},
	}
}

type eventDetail struct {
	domain.Event
	Counts map[domain.TaskStatus]int `json:"task_counts"`
}

func eventShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <event-id>",
		Short: "Show an event and its task counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				ev, err := a.Store.GetEvent(ctx, id)
				if err != nil {
					return err
				}
				counts, err := a.Store.CountTasksByStatus(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(eventDetail{Event: ev, Counts: counts})
				}
				fmt.Printf("Event %d: %s\n", ev.ID, ev.Name)
				fmt.Printf("  location:    %s\n", orDash(ev.Location))
				fmt.Printf("  date:        %s\n", orDash(ev.Date))
				fmt.Printf("  description: %s\n", orDash(ev.Description))
				fmt.Printf("  tasks:       %d pending, %d approved, %d rejected\n",
					counts[domain.TaskPending], counts[domain.TaskApproved], counts[domain.TaskRejected])
				return nil
			})
		},
	}
}

func eventTasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks <event-id>",
		Short: "List an event's tasks with donor details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				rows, err := a.Store.ListTasksByEvent(ctx, id)
				if err != nil {
					return err
				}
				return renderTasks(rows)
			})
		},
	}
}

func setupCmd() *cobra.Command {
	var opts engine.SetupEventOptions
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create an event and invite the upstream donors of its cities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.Engine.SetupEvent(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("Event %d: %d tasks (%d new donors, %d reused)\n", res.EventID, len(res.TaskIDs), res.CreatedDonors, res.ReusedDonors)
				for _, s := range res.Skipped {
					fmt.Printf("  skipped row %d: %s\n", s.Row, s.Reason)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.Event.Name, "name", "", "event name")
	cmd.Flags().StringVar(&opts.Event.Location, "location", "", "event location (searched when no --city is given)")
	cmd.Flags().StringVar(&opts.Event.Date, "date", "", "event date")
	cmd.Flags().StringVar(&opts.Event.Description, "description", "", "event description")
	cmd.Flags().StringArrayVar(&opts.Cities, "city", nil, "city to search upstream (repeatable)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum donors to fetch")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
