package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"donortrack/internal/store"
	"donortrack/internal/upstream"
)

// DonorSource is the part of the upstream client the setup workflow needs.
type DonorSource interface {
	SearchByCities(ctx context.Context, cities []string, limit int) (upstream.Table, error)
}

// Engine runs the multi-step workflows that span the store and the upstream service.
type Engine struct {
	Store    *store.Store
	Upstream DonorSource
	Log      *zap.Logger
}

func New(st *store.Store, up DonorSource, log *zap.Logger) Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return Engine{Store: st, Upstream: up, Log: log}
}

func (e Engine) log() *zap.Logger {
	if e.Log != nil {
		return e.Log
	}
	return zap.NewNop()
}

// SetupEventOptions describe a new event and where to look for its donors.
type SetupEventOptions struct {
	Event store.EventInput `json:"event"`
	// Cities to search; the event location is used when empty.
	Cities []string `json:"cities,omitempty"`
	Limit  int      `json:"limit,omitempty"`
}

// SkippedRow is an upstream row that could not become a donor.
type SkippedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

type SetupResult struct {
	EventID       int64        `json:"event_id"`
	DonorIDs      []int64      `json:"donor_ids"`
	TaskIDs       []int64      `json:"task_ids"`
	CreatedDonors int          `json:"created_donors"`
	ReusedDonors  int          `json:"reused_donors"`
	Skipped       []SkippedRow `json:"skipped,omitempty"`
}

// SetupEvent creates an event, pulls candidate donors for its cities from the
// upstream service, resolves each one locally by name and creates a pending
// task per donor. The upstream is queried before anything is written, so an
// upstream failure leaves no orphan event behind.
func (e Engine) SetupEvent(ctx context.Context, opts SetupEventOptions) (SetupResult, error) {
	if e.Upstream == nil {
		return SetupResult{}, errors.New("upstream client not configured")
	}
	if strings.TrimSpace(opts.Event.Name) == "" {
		return SetupResult{}, &store.InvalidInputError{Field: "event.name", Reason: "is required"}
	}
	cities := opts.Cities
	if len(cities) == 0 && strings.TrimSpace(opts.Event.Location) != "" {
		cities = []string{opts.Event.Location}
	}
	if len(cities) == 0 {
		return SetupResult{}, &store.InvalidInputError{Field: "cities", Reason: "is required when the event has no location"}
	}
	table, err := e.Upstream.SearchByCities(ctx, cities, opts.Limit)
	if errors.Is(err, upstream.ErrNoCities) {
		return SetupResult{}, &store.InvalidInputError{Field: "cities", Reason: err.Error()}
	}
	if err != nil {
		return SetupResult{}, err
	}

	eventID, err := e.Store.CreateEvent(ctx, opts.Event)
	if err != nil {
		return SetupResult{}, err
	}
	e.log().Info("event created", zap.Int64("event_id", eventID), zap.Strings("cities", cities), zap.Int("candidates", len(table.Data)))
	return e.attach(ctx, eventID, table)
}

// SetupTasks attaches the donors of an already fetched table to an existing event.
func (e Engine) SetupTasks(ctx context.Context, eventID int64, table upstream.Table) (SetupResult, error) {
	if _, err := e.Store.GetEvent(ctx, eventID); err != nil {
		return SetupResult{}, err
	}
	return e.attach(ctx, eventID, table)
}

func (e Engine) attach(ctx context.Context, eventID int64, table upstream.Table) (SetupResult, error) {
	res := SetupResult{EventID: eventID, DonorIDs: []int64{}, TaskIDs: []int64{}}
	layout := upstream.NewLayout(table.Headers)
	seen := map[int64]bool{}
	for i, row := range table.Data {
		in, err := layout.DonorFromRow(row)
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedRow{Row: i, Reason: err.Error()})
			continue
		}
		id, created, err := e.Store.FindOrCreateDonor(ctx, in)
		if store.IsInvalidInput(err) {
			res.Skipped = append(res.Skipped, SkippedRow{Row: i, Reason: err.Error()})
			continue
		}
		if err != nil {
			return res, fmt.Errorf("donor row %d: %w", i, err)
		}
		if created {
			res.CreatedDonors++
		} else {
			res.ReusedDonors++
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		res.DonorIDs = append(res.DonorIDs, id)
	}
	for _, s := range res.Skipped {
		e.log().Warn("upstream row skipped", zap.Int64("event_id", eventID), zap.Int("row", s.Row), zap.String("reason", s.Reason))
	}

	taskIDs, err := e.Store.CreateTasksForEvent(ctx, eventID, res.DonorIDs)
	if err != nil {
		return res, err
	}
	res.TaskIDs = taskIDs
	e.log().Info("tasks created",
		zap.Int64("event_id", eventID),
		zap.Int("tasks", len(taskIDs)),
		zap.Int("created_donors", res.CreatedDonors),
		zap.Int("reused_donors", res.ReusedDonors),
	)
	return res, nil
}
