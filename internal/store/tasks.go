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

// TaskStatusUpdate moves one task to approved or rejected.
type TaskStatusUpdate struct {
	TaskID int64             `json:"task_id"`
	Status domain.TaskStatus `json:"status"`
	Reason *string           `json:"reason,omitempty"`
}

func (u TaskStatusUpdate) validate() error {
	if u.TaskID <= 0 {
		return &InvalidInputError{Field: "task_id", Reason: "must be > 0"}
	}
	switch u.Status {
	case "":
		return &InvalidInputError{Field: "status", Reason: "is required"}
	case domain.TaskApproved, domain.TaskRejected:
		return nil
	}
	return &InvalidInputError{Field: "status", Reason: fmt.Sprintf("must be one of approved, rejected (got %q)", u.Status)}
}

const taskColumns = `task_id,event_id,donor_id,status,reason,created_at,COALESCE(updated_at,created_at)`

func scanTask(row rowScanner) (domain.Task, error) {
	var t domain.Task
	var reason sql.NullString
	if err := row.Scan(&t.ID, &t.EventID, &t.DonorID, &t.Status, &reason, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return t, err
	}
	if reason.Valid {
		t.Reason = &reason.String
	}
	return t, nil
}

// CreateTasksForEvent creates one pending task per donor id in a single
// transaction. An unknown event or donor aborts the whole batch.
func (s *Store) CreateTasksForEvent(ctx context.Context, eventID int64, donorIDs []int64) (ids []int64, err error) {
	defer s.track("create tasks", time.Now(), &err)
	if eventID <= 0 {
		return nil, &InvalidInputError{Field: "event_id", Reason: "must be > 0"}
	}
	ids = make([]int64, 0, len(donorIDs))
	if len(donorIDs) == 0 {
		return ids, nil
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO tasks(event_id,donor_id,status,created_at,updated_at) VALUES (?,?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		ts := s.now()
		for _, donorID := range donorIDs {
			res, err := stmt.ExecContext(ctx, eventID, donorID, domain.TaskPending, ts, ts)
			if err != nil {
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return s.Activity.Append(ctx, tx, activity.TasksCreated, "event", eventID, activity.ActorFrom(ctx), activity.Payload{
			"task_ids":  ids,
			"donor_ids": donorIDs,
		})
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) GetTask(ctx context.Context, id int64) (_ domain.Task, err error) {
	defer s.track("get task", time.Now(), &err)
	t, err := scanTask(s.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE task_id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return t, err
}

// UpdateTaskStatus applies a status transition and returns the updated task.
// Approving clears any reason; rejecting stores the given reason (NULL when empty).
// Under PolicyLocked a task that already left pending is refused with ErrTaskFinalized.
func (s *Store) UpdateTaskStatus(ctx context.Context, in TaskStatusUpdate) (_ domain.Task, err error) {
	defer s.track("update task status", time.Now(), &err)
	if err := in.validate(); err != nil {
		return domain.Task{}, err
	}
	var reason any
	if in.Status == domain.TaskRejected && in.Reason != nil {
		reason = nullable(*in.Reason)
	}

	var updated domain.Task
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE task_id=?`, in.TaskID))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("task %d: %w", in.TaskID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if s.Policy == PolicyLocked && cur.Status.Terminal() {
			return fmt.Errorf("task %d is %s: %w", in.TaskID, cur.Status, ErrTaskFinalized)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE tasks SET status=?, reason=?, updated_at=? WHERE task_id=?`,
			in.Status, reason, s.now(), in.TaskID); err != nil {
			return err
		}
		payload := activity.Payload{
			"event_id": cur.EventID,
			"donor_id": cur.DonorID,
			"from":     cur.Status,
			"to":       in.Status,
		}
		if reason != nil {
			payload["reason"] = reason
		}
		if err := s.Activity.Append(ctx, tx, activity.TaskStatusChanged, "task", in.TaskID, activity.ActorFrom(ctx), payload); err != nil {
			return err
		}
		updated, err = scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE task_id=?`, in.TaskID))
		return err
	})
	if err != nil {
		return domain.Task{}, err
	}
	return updated, nil
}

const joinedTaskQuery = `SELECT t.task_id,t.event_id,t.donor_id,t.status,t.reason,t.created_at,COALESCE(t.updated_at,t.created_at),
COALESCE(d.first_name,''),COALESCE(d.nick_name,''),COALESCE(d.last_name,''),d.pmm,
COALESCE(d.organization_name,''),COALESCE(d.city,''),d.total_donations
FROM tasks t JOIN donors d ON d.donor_id = t.donor_id`

// ListTasks returns every task joined with its donor.
func (s *Store) ListTasks(ctx context.Context) (_ []domain.TaskWithDonor, err error) {
	defer s.track("list tasks", time.Now(), &err)
	return s.queryJoinedTasks(ctx, joinedTaskQuery+` ORDER BY t.task_id ASC`)
}

// ListTasksByPMM returns the tasks of donors managed by pmm; empty when none match.
func (s *Store) ListTasksByPMM(ctx context.Context, pmm string) (_ []domain.TaskWithDonor, err error) {
	defer s.track("list tasks by pmm", time.Now(), &err)
	return s.queryJoinedTasks(ctx, joinedTaskQuery+` WHERE d.pmm = ? ORDER BY t.task_id ASC`, pmm)
}

// ListTasksByEvent returns the tasks of one event; empty when none match.
func (s *Store) ListTasksByEvent(ctx context.Context, eventID int64) (_ []domain.TaskWithDonor, err error) {
	defer s.track("list tasks by event", time.Now(), &err)
	return s.queryJoinedTasks(ctx, joinedTaskQuery+` WHERE t.event_id = ? ORDER BY t.task_id ASC`, eventID)
}

func (s *Store) queryJoinedTasks(ctx context.Context, query string, args ...any) ([]domain.TaskWithDonor, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.TaskWithDonor{}
	for rows.Next() {
		var tw domain.TaskWithDonor
		var reason sql.NullString
		if err := rows.Scan(&tw.ID, &tw.EventID, &tw.DonorID, &tw.Status, &reason, &tw.CreatedAt, &tw.UpdatedAt,
			&tw.FirstName, &tw.NickName, &tw.LastName, &tw.PMM, &tw.OrganizationName, &tw.City, &tw.TotalDonations); err != nil {
			return nil, err
		}
		if reason.Valid {
			tw.Reason = &reason.String
		}
		res = append(res, tw)
	}
	return res, rows.Err()
}
