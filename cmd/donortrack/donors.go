package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"donortrack/internal/app"
	"donortrack/internal/domain"
	"donortrack/internal/store"
	"donortrack/internal/upstream"
)

func donorCmd() *cobra.Command {
	d := &cobra.Command{Use: "donor", Short: "Manage donors"}
	d.AddCommand(donorCreateCmd())
	d.AddCommand(donorListCmd())
	d.AddCommand(donorFindCmd())
	d.AddCommand(donorImportCmd())
	return d
}

func donorCreateCmd() *cobra.Command {
	var in store.DonorInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a donor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				id, err := a.Store.CreateDonor(ctx, in)
				if err != nil {
					return err
				}
				return printID("donor", id)
			})
		},
	}
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&in.NickName, "nick-name", "", "nickname")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&in.PMM, "pmm", "", "managing PMM")
	cmd.Flags().StringVar(&in.OrganizationName, "organization", "", "organization name")
	cmd.Flags().StringVar(&in.City, "city", "", "city")
	cmd.Flags().Float64Var(&in.TotalDonations, "total-donations", 0, "lifetime donations")
	_ = cmd.MarkFlagRequired("pmm")
	return cmd
}

func donorListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List donors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				donors, err := a.Store.ListDonors(ctx)
				if err != nil {
					return err
				}
				return renderDonors(donors)
			})
		},
	}
}

func donorFindCmd() *cobra.Command {
	var first, last string
	cmd := &cobra.Command{
		Use:   "find",
		Short: "Find a donor by first and last name",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				d, err := a.Store.FindDonorByName(ctx, first, last)
				if err != nil {
					return err
				}
				return renderDonors([]domain.Donor{d})
			})
		},
	}
	cmd.Flags().StringVar(&first, "first-name", "", "first name")
	cmd.Flags().StringVar(&last, "last-name", "", "last name")
	return cmd
}

// donorImportCmd accepts either a JSON array of donors or an upstream table
// ({"headers": [...], "data": [[...]]}) and inserts every record in one batch.
func donorImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import donors from a JSON file in one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			donors, err := readDonorFile(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				ids, err := a.Store.CreateDonorsBatch(ctx, donors)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"ids": ids})
				}
				fmt.Printf("Imported %d donors\n", len(ids))
				return nil
			})
		},
	}
}

func readDonorFile(path string) ([]store.DonorInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var donors []store.DonorInput
	if err := json.Unmarshal(data, &donors); err == nil {
		return donors, nil
	}
	var t upstream.Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%s: want a JSON array of donors or an upstream table: %w", path, err)
	}
	return t.Donors()
}

func renderDonors(donors []domain.Donor) error {
	return render(donors, table.Row{"ID", "First", "Last", "PMM", "Organization", "City", "Total"}, func(tw table.Writer) {
		for _, d := range donors {
			tw.AppendRow(table.Row{d.ID, orDash(d.FirstName), orDash(d.LastName), d.PMM, orDash(d.OrganizationName), orDash(d.City), fmt.Sprintf("%.2f", d.TotalDonations)})
		}
	})
}
