package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"donortrack/internal/app"
	"donortrack/internal/domain"
	"donortrack/internal/store"
)

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage invitation tasks",
		Long: `Tasks are invitations of one donor to one event.
Statuses: pending -> approved | rejected. A rejection may carry a reason.
With tasks.transition_policy: locked, approved and rejected tasks are final.`,
	}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskStatusCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var eventID int64
	var donorIDs []int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pending task per donor for an event",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				ids, err := a.Store.CreateTasksForEvent(ctx, eventID, donorIDs)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"ids": ids})
				}
				fmt.Printf("Created %d tasks for event %d\n", len(ids), eventID)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&eventID, "event", 0, "event id")
	cmd.Flags().Int64SliceVar(&donorIDs, "donor", nil, "donor id (repeatable or comma separated)")
	_ = cmd.MarkFlagRequired("event")
	_ = cmd.MarkFlagRequired("donor")
	return cmd
}

func taskListCmd() *cobra.Command {
	var pmm string
	var eventID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks with donor details",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pmm != "" && eventID != 0 {
				return errors.New("use either --pmm or --event")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var rows []domain.TaskWithDonor
				var err error
				switch {
				case pmm != "":
					rows, err = a.Store.ListTasksByPMM(ctx, pmm)
				case eventID != 0:
					rows, err = a.Store.ListTasksByEvent(ctx, eventID)
				default:
					rows, err = a.Store.ListTasks(ctx)
				}
				if err != nil {
					return err
				}
				return renderTasks(rows)
			})
		},
	}
	cmd.Flags().StringVar(&pmm, "pmm", "", "only tasks of this PMM's donors")
	cmd.Flags().Int64Var(&eventID, "event", 0, "only tasks of this event")
	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Store.GetTask(ctx, id)
				if err != nil {
					return err
				}
				return printTask(t)
			})
		},
	}
}

func taskStatusCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "status <task-id> <approved|rejected>",
		Short: "Approve or reject a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			in := store.TaskStatusUpdate{TaskID: id, Status: domain.TaskStatus(args[1])}
			if cmd.Flags().Changed("reason") {
				in.Reason = &reason
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Store.UpdateTaskStatus(ctx, in)
				if err != nil {
					return err
				}
				return printTask(t)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	return cmd
}

func printTask(t domain.Task) error {
	if viper.GetBool("json") {
		return printJSON(t)
	}
	reason := "-"
	if t.Reason != nil {
		reason = *t.Reason
	}
	fmt.Printf("Task %d: event %d, donor %d, %s (reason: %s, updated %s)\n", t.ID, t.EventID, t.DonorID, t.Status, reason, t.UpdatedAt)
	return nil
}

func renderTasks(rows []domain.TaskWithDonor) error {
	return render(rows, table.Row{"ID", "Event", "Donor", "PMM", "City", "Status", "Reason"}, func(tw table.Writer) {
		for _, r := range rows {
			reason := ""
			if r.Reason != nil {
				reason = *r.Reason
			}
			name := r.FirstName + " " + r.LastName
			if r.NickName != "" {
				name = fmt.Sprintf("%s %q %s", r.FirstName, r.NickName, r.LastName)
			}
			tw.AppendRow(table.Row{r.ID, r.EventID, name, r.PMM, orDash(r.City), r.Status, reason})
		}
	})
}
