package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const (
	defaultDBName = "production"
	dataDir       = ".donortrack"
)

type Config struct {
	Workspace string
	// Name is the database name without extension; the file is <workspace>/.donortrack/<name>.db.
	Name string
}

func dbPath(cfg Config) string {
	workspace := cfg.Workspace
	if workspace == "" {
		workspace = "."
	}
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = defaultDBName
	}
	return filepath.Join(workspace, dataDir, name+".db")
}

// EnsureWorkspace creates workspace directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	if workspace == "" {
		workspace = "."
	}
	path := filepath.Join(workspace, dataDir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Open opens (and creates if absent) the SQLite database with foreign keys on.
// The pool is capped at one connection: the store is the single writer.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, fmt.Errorf("ensure workspace: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dbPath(cfg))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open %s: %w", dbPath(cfg), err)
	}
	return conn, nil
}

// Path returns the db file path for the config.
func Path(cfg Config) string {
	return dbPath(cfg)
}
