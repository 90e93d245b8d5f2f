package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"donortrack/internal/activity"
	"donortrack/internal/domain"
)

type EventInput struct {
	Name        string `json:"name" validate:"notblank"`
	Location    string `json:"location"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

const eventColumns = `event_id,name,COALESCE(location,''),COALESCE(date,''),COALESCE(description,''),created_at`

func scanEvent(row rowScanner) (domain.Event, error) {
	var e domain.Event
	err := row.Scan(&e.ID, &e.Name, &e.Location, &e.Date, &e.Description, &e.CreatedAt)
	return e, err
}

// ListEvents returns all events in insertion order.
func (s *Store) ListEvents(ctx context.Context) (_ []domain.Event, err error) {
	defer s.track("list events", time.Now(), &err)
	rows, err := s.DB.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY event_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (s *Store) GetEvent(ctx context.Context, id int64) (_ domain.Event, err error) {
	defer s.track("get event", time.Now(), &err)
	e, err := scanEvent(s.DB.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE event_id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return e, fmt.Errorf("event %d: %w", id, ErrNotFound)
	}
	return e, err
}

// CreateEvent inserts an event and returns its generated id.
func (s *Store) CreateEvent(ctx context.Context, in EventInput) (id int64, err error) {
	defer s.track("create event", time.Now(), &err)
	if err := validateInput(in, ""); err != nil {
		return 0, err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO events(name,location,date,description,created_at) VALUES (?,?,?,?,?)`,
			in.Name, in.Location, in.Date, in.Description, s.now())
		if err != nil {
			return err
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		return s.Activity.Append(ctx, tx, activity.EventCreated, "event", id, activity.ActorFrom(ctx), activity.Payload{
			"name":     in.Name,
			"location": in.Location,
			"date":     in.Date,
		})
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}
