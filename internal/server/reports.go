package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"donortrack/internal/domain"
	"donortrack/internal/store"
)

func registerPMMs(api huma.API, st *store.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "list-pmms",
		Method:      http.MethodGet,
		Path:        "/pmms",
		Summary:     "List the PMMs that manage at least one donor",
		Tags:        []string{"pmms"},
	}, func(ctx context.Context, _ *struct{}) (*response[[]string], error) {
		pmms, err := st.ListPMMs(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(pmms), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "pmm-summaries",
		Method:      http.MethodGet,
		Path:        "/pmms/summary",
		Summary:     "Pending and completed task counts per PMM",
		Tags:        []string{"pmms", "reports"},
	}, func(ctx context.Context, _ *struct{}) (*response[[]domain.PMMSummary], error) {
		rows, err := st.PMMSummaries(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(rows), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-pmm-tasks",
		Method:      http.MethodGet,
		Path:        "/pmms/{pmm}/tasks",
		Summary:     "List the tasks of one PMM's donors",
		Tags:        []string{"pmms", "tasks"},
	}, func(ctx context.Context, input *struct {
		PMM string `path:"pmm"`
	}) (*response[[]domain.TaskWithDonor], error) {
		rows, err := st.ListTasksByPMM(ctx, input.PMM)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(rows), nil
	})
}

func registerActivity(api huma.API, st *store.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activity",
		Method:      http.MethodGet,
		Path:        "/activity",
		Summary:     "Page through the activity log, oldest first",
		Tags:        []string{"activity"},
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Limit int   `query:"limit" minimum:"0" maximum:"1000"`
		After int64 `query:"after" minimum:"0"`
	}) (*response[ActivityPage], error) {
		items, err := st.ListActivity(ctx, input.Limit, input.After)
		if err != nil {
			return nil, handleError(err)
		}
		page := ActivityPage{Items: items, NextCursor: input.After}
		if n := len(items); n > 0 {
			page.NextCursor = items[n-1].ID
		}
		return ok(page), nil
	})
}
