package activity_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donortrack/internal/activity"
	"donortrack/internal/db"
	"donortrack/internal/migrate"
)

func newWriter(t *testing.T) activity.Writer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	fixed := time.Date(2024, 11, 20, 18, 0, 0, 0, time.UTC)
	return activity.Writer{DB: conn, Now: func() time.Time { return fixed }}
}

func appendOne(ctx context.Context, t *testing.T, w activity.Writer, typ string, id int64, payload activity.Payload) {
	t.Helper()
	tx, err := w.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, w.Append(ctx, tx, typ, "event", id, activity.ActorFrom(ctx), payload))
	require.NoError(t, tx.Commit())
}

func TestAppendAndPage(t *testing.T) {
	w := newWriter(t)
	ctx := context.Background()

	latest, err := w.LatestID(ctx)
	require.NoError(t, err)
	assert.Zero(t, latest)

	appendOne(ctx, t, w, activity.EventCreated, 1, activity.Payload{"name": "Gala"})
	appendOne(activity.WithActor(ctx, "coordinator"), t, w, activity.TasksCreated, 1, nil)
	appendOne(ctx, t, w, activity.EventCreated, 0, nil)

	all, err := w.After(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2024-11-20T18:00:00Z", all[0].TS)
	assert.Equal(t, activity.DefaultActor, all[0].ActorID)
	assert.Equal(t, "1", all[0].EntityID)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(all[0].Payload), &payload))
	assert.Equal(t, "Gala", payload["name"])

	assert.Equal(t, "coordinator", all[1].ActorID)
	assert.Equal(t, "{}", all[1].Payload)
	assert.Empty(t, all[2].EntityID)

	page, err := w.After(ctx, all[0].ID, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, all[1].ID, page[0].ID)

	latest, err = w.LatestID(ctx)
	require.NoError(t, err)
	assert.Equal(t, all[2].ID, latest)
}

func TestAppendRollsBackWithTransaction(t *testing.T) {
	w := newWriter(t)
	ctx := context.Background()
	tx, err := w.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, w.Append(ctx, tx, activity.DonorCreated, "donor", 7, "", nil))
	require.NoError(t, tx.Rollback())

	items, err := w.After(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.ErrorIs(t, tx.Commit(), sql.ErrTxDone)
}

func TestActorFromDefaults(t *testing.T) {
	assert.Equal(t, activity.DefaultActor, activity.ActorFrom(context.Background()))
	assert.Equal(t, activity.DefaultActor, activity.ActorFrom(activity.WithActor(context.Background(), "")))
	assert.Equal(t, "pmm-1", activity.ActorFrom(activity.WithActor(context.Background(), "pmm-1")))
}
