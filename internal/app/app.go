// Package app wires a workspace into a ready store, engine and logger.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"donortrack/internal/config"
	"donortrack/internal/db"
	"donortrack/internal/engine"
	"donortrack/internal/logging"
	"donortrack/internal/metrics"
	"donortrack/internal/migrate"
	"donortrack/internal/store"
	"donortrack/internal/upstream"
)

type Options struct {
	Workspace string
	// Config skips loading donortrack.yml when set.
	Config *config.Config
	Logger *zap.Logger
	// Metrics, when set, receives store operation outcomes.
	Metrics *metrics.Metrics
}

type App struct {
	Workspace string
	Config    *config.Config
	DB        *sql.DB
	Store     *store.Store
	Upstream  *upstream.Client
	Engine    engine.Engine
	Log       *zap.Logger
	Metrics   *metrics.Metrics
}

// Open ensures the workspace exists, opens and migrates the database and
// builds every component from config. Close releases the database handle.
func Open(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = config.LoadOptional(opts.Workspace); err != nil {
			return nil, err
		}
	}
	policy, err := store.ParseTransitionPolicy(cfg.Tasks.TransitionPolicy)
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		if log, err = logging.New(cfg.Log, logging.Options{Workspace: opts.Workspace}); err != nil {
			return nil, err
		}
	}

	if _, err := db.EnsureWorkspace(opts.Workspace); err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace, Name: cfg.Database.Name})
	if err != nil {
		return nil, err
	}
	applied, err := migrate.MigrateContext(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if len(applied) > 0 {
		log.Info("migrations applied", zap.Strings("files", applied), zap.String("db", db.Path(db.Config{Workspace: opts.Workspace, Name: cfg.Database.Name})))
	}

	st := store.New(conn)
	st.Policy = policy
	if opts.Metrics != nil {
		st.Observe = opts.Metrics.ObserveStore
	}
	up := upstream.New(cfg.Upstream.BaseURL, time.Duration(cfg.Upstream.TimeoutSeconds)*time.Second)
	return &App{
		Workspace: opts.Workspace,
		Config:    cfg,
		DB:        conn,
		Store:     st,
		Upstream:  up,
		Engine:    engine.New(st, up, log.Named("engine")),
		Log:       log,
		Metrics:   opts.Metrics,
	}, nil
}

func (a *App) Close() error {
	_ = a.Log.Sync()
	return a.DB.Close()
}
