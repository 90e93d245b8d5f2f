package store

import (
	"context"
	"time"

	"donortrack/internal/domain"
)

// ListPMMs returns the distinct PMM names that own at least one donor.
func (s *Store) ListPMMs(ctx context.Context) (_ []string, err error) {
	defer s.track("list pmms", time.Now(), &err)
	rows, err := s.DB.QueryContext(ctx, `SELECT DISTINCT pmm FROM donors ORDER BY pmm ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []string{}
	for rows.Next() {
		var pmm string
		if err := rows.Scan(&pmm); err != nil {
			return nil, err
		}
		res = append(res, pmm)
	}
	return res, rows.Err()
}

// PMMSummaries counts tasks per PMM. PMMs whose donors have no tasks report zeros.
func (s *Store) PMMSummaries(ctx context.Context) (_ []domain.PMMSummary, err error) {
	defer s.track("pmm summaries", time.Now(), &err)
	rows, err := s.DB.QueryContext(ctx, `SELECT d.pmm,
COALESCE(SUM(CASE WHEN t.status='pending' THEN 1 ELSE 0 END),0),
COALESCE(SUM(CASE WHEN t.status='approved' THEN 1 ELSE 0 END),0),
COALESCE(SUM(CASE WHEN t.status='rejected' THEN 1 ELSE 0 END),0)
FROM donors d LEFT JOIN tasks t ON t.donor_id = d.donor_id
GROUP BY d.pmm ORDER BY d.pmm ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.PMMSummary{}
	for rows.Next() {
		var ps domain.PMMSummary
		if err := rows.Scan(&ps.PMM, &ps.PendingCount, &ps.ApprovedCount, &ps.RejectedCount); err != nil {
			return nil, err
		}
		ps.CompletedCount = ps.ApprovedCount + ps.RejectedCount
		res = append(res, ps)
	}
	return res, rows.Err()
}

// CountTasksByStatus returns counts keyed by every status. eventID 0 counts all events.
func (s *Store) CountTasksByStatus(ctx context.Context, eventID int64) (_ map[domain.TaskStatus]int, err error) {
	defer s.track("count tasks", time.Now(), &err)
	counts := map[domain.TaskStatus]int{
		domain.TaskPending:  0,
		domain.TaskApproved: 0,
		domain.TaskRejected: 0,
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks WHERE (?=0 OR event_id=?) GROUP BY status`, eventID, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var st domain.TaskStatus
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		counts[st] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// ListActivity pages through the activity log, oldest first, starting after afterID.
func (s *Store) ListActivity(ctx context.Context, limit int, afterID int64) (_ []domain.Activity, err error) {
	defer s.track("list activity", time.Now(), &err)
	if limit < 0 {
		return nil, &InvalidInputError{Field: "limit", Reason: "must be >= 0"}
	}
	return s.Activity.After(ctx, afterID, limit)
}
