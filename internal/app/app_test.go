package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"donortrack/internal/config"
	"donortrack/internal/domain"
	"donortrack/internal/metrics"
	"donortrack/internal/store"
)

func TestOpenAppliesConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(`
database:
  name: staging
tasks:
  transition_policy: locked
upstream:
  base_url: http://127.0.0.1:1
  timeout_seconds: 2
`), 0o644))

	a, err := Open(context.Background(), Options{Workspace: dir, Logger: zaptest.NewLogger(t), Metrics: metrics.New()})
	require.NoError(t, err)
	defer a.Close()

	assert.FileExists(t, filepath.Join(dir, ".donortrack", "staging.db"))
	assert.Equal(t, store.PolicyLocked, a.Store.Policy)
	assert.NotNil(t, a.Store.Observe)
	assert.Equal(t, "http://127.0.0.1:1", a.Upstream.BaseURL)

	ctx := context.Background()
	eventID, err := a.Store.CreateEvent(ctx, store.EventInput{Name: "Gala"})
	require.NoError(t, err)
	donorIDs, err := a.Store.CreateDonorsBatch(ctx, []store.DonorInput{{FirstName: "A", LastName: "B", PMM: "P"}})
	require.NoError(t, err)
	taskIDs, err := a.Store.CreateTasksForEvent(ctx, eventID, donorIDs)
	require.NoError(t, err)
	_, err = a.Store.UpdateTaskStatus(ctx, store.TaskStatusUpdate{TaskID: taskIDs[0], Status: domain.TaskApproved})
	require.NoError(t, err)
	_, err = a.Store.UpdateTaskStatus(ctx, store.TaskStatusUpdate{TaskID: taskIDs[0], Status: domain.TaskRejected})
	assert.ErrorIs(t, err, store.ErrTaskFinalized)
}

func TestOpenWithoutConfigFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(context.Background(), Options{Workspace: dir, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	defer a.Close()
	assert.FileExists(t, filepath.Join(dir, ".donortrack", "production.db"))
	assert.Equal(t, store.PolicyOpen, a.Store.Policy)
	assert.Nil(t, a.Store.Observe)

	// reopening an already migrated workspace is fine
	b, err := Open(context.Background(), Options{Workspace: dir, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	require.NoError(t, b.Close())
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Tasks.TransitionPolicy = "sometimes"
	_, err := Open(context.Background(), Options{Workspace: t.TempDir(), Config: cfg, Logger: zaptest.NewLogger(t)})
	assert.Error(t, err)
}
