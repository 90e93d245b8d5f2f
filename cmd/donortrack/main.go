package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"donortrack/internal/activity"
	"donortrack/internal/app"
	"donortrack/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "donortrack",
	Short: "Donortrack CLI",
	Long: `Donortrack tracks donor invitations for events.
- Events: a gala, a dinner, a tour; created by coordinators.
- Donors: people pulled from the donor-data service or entered by hand, each owned by a PMM.
- Tasks: one invitation per (event, donor); the donor's PMM approves or rejects it.
- Setup: 'donortrack setup' creates an event and invites every upstream donor in its cities.
- Activity: every change is logged; view it with 'donortrack activity tail'.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("DONORTRACK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "cli", "actor recorded in the activity log")
	rootCmd.PersistentFlags().String("database", "", "database name (overrides database.name)")
	rootCmd.PersistentFlags().String("upstream-url", "", "donor-data service URL (overrides upstream.base_url)")
	rootCmd.PersistentFlags().String("transition-policy", "", "open or locked (overrides tasks.transition_policy)")
	rootCmd.PersistentFlags().String("log-level", "", "debug, info, warn or error (overrides log.level)")
	for _, name := range []string{"workspace", "json", "actor-id", "database", "upstream-url", "transition-policy", "log-level"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(eventCmd())
	rootCmd.AddCommand(donorCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(pmmCmd())
	rootCmd.AddCommand(setupCmd())
	rootCmd.AddCommand(activityCmd())
	rootCmd.AddCommand(configCmd())
}

// --- helpers ---

// loadConfig reads donortrack.yml (or defaults) and applies flag and
// DONORTRACK_* overrides on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("database"); v != "" {
		cfg.Database.Name = v
	}
	if v := viper.GetString("upstream-url"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := viper.GetString("transition-policy"); v != "" {
		cfg.Tasks.TransitionPolicy = v
	}
	if v := viper.GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := viper.GetString("jwt-secret"); v != "" {
		cfg.Server.JWTSecret = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openApp(ctx context.Context, opts app.Options) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	opts.Workspace = viper.GetString("workspace")
	opts.Config = cfg
	return app.Open(ctx, opts)
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := openApp(ctx, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()
	ctx = activity.WithActor(ctx, viper.GetString("actor-id"))
	return fn(ctx, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// render prints v as JSON with --json, otherwise as a table built by rows.
func render(v any, header table.Row, rows func(tw table.Writer)) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(header)
	rows(tw)
	tw.Render()
	return nil
}

func printID(kind string, id int64) error {
	if viper.GetBool("json") {
		return printJSON(map[string]int64{"id": id})
	}
	fmt.Printf("Created %s %d\n", kind, id)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
