package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"donortrack/internal/domain"
)

// Activity types appended by the store.
const (
	EventCreated      = "event.created"
	DonorCreated      = "donor.created"
	TasksCreated      = "tasks.created"
	TaskStatusChanged = "task.status_changed"
)

// DefaultActor is recorded when a mutation carries no actor.
const DefaultActor = "system"

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type Payload map[string]any

// Append records an entry inside tx so it commits or rolls back with the mutation it describes.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, typ, entityKind string, entityID int64, actorID string, payload Payload) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = Payload{}
	}
	if actorID == "" {
		actorID = DefaultActor
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal activity payload: %w", err)
	}
	var id any
	if entityID > 0 {
		id = strconv.FormatInt(entityID, 10)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO activity_log(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		ts, typ, entityKind, id, actorID, string(data))
	return err
}

// After returns up to limit entries with id greater than cursor, oldest first.
func (w Writer) After(ctx context.Context, cursor int64, limit int) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := w.DB.QueryContext(ctx, `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM activity_log WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Activity{}
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.ID, &a.TS, &a.Type, &a.EntityKind, &a.EntityID, &a.ActorID, &a.Payload); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// LatestID returns the newest entry id, 0 when the log is empty.
func (w Writer) LatestID(ctx context.Context) (int64, error) {
	var id int64
	err := w.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM activity_log`).Scan(&id)
	return id, err
}
