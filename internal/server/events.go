package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"donortrack/internal/domain"
	"donortrack/internal/engine"
	"donortrack/internal/store"
	"donortrack/internal/upstream"
)

type eventIDPath struct {
	ID int64 `path:"id" minimum:"1"`
}

func registerEvents(api huma.API, st *store.Store, eng engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List events",
		Tags:        []string{"events"},
	}, func(ctx context.Context, _ *struct{}) (*response[[]domain.Event], error) {
		events, err := st.ListEvents(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(events), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-event",
		Method:      http.MethodPost,
		Path:        "/events",
		Summary:     "Create an event",
		Tags:        []string{"events"},
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body CreateEventRequest
	}) (*response[IDResponse], error) {
		id, err := st.CreateEvent(ctx, input.Body.input())
		if err != nil {
			return nil, handleError(err)
		}
		return ok(IDResponse{ID: id, Message: "Event created successfully"}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-event",
		Method:      http.MethodGet,
		Path:        "/events/{id}",
		Summary:     "Get an event",
		Tags:        []string{"events"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *eventIDPath) (*response[domain.Event], error) {
		ev, err := st.GetEvent(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(ev), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-event-tasks",
		Method:      http.MethodGet,
		Path:        "/events/{id}/tasks",
		Summary:     "List the tasks of an event with donor details",
		Tags:        []string{"events", "tasks"},
	}, func(ctx context.Context, input *eventIDPath) (*response[[]domain.TaskWithDonor], error) {
		rows, err := st.ListTasksByEvent(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(rows), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "event-summary",
		Method:      http.MethodGet,
		Path:        "/events/{id}/summary",
		Summary:     "Count an event's tasks by status",
		Tags:        []string{"events", "reports"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *eventIDPath) (*response[EventSummaryResponse], error) {
		if _, err := st.GetEvent(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		counts, err := st.CountTasksByStatus(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(eventSummary(input.ID, counts)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "setup-event",
		Method:      http.MethodPost,
		Path:        "/events/setup",
		Summary:     "Create an event and invite donors found upstream for its cities",
		Tags:        []string{"events", "workflows"},
		Errors:      []int{http.StatusBadRequest, http.StatusBadGateway, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body SetupEventRequest
	}) (*response[engine.SetupResult], error) {
		res, err := eng.SetupEvent(ctx, engine.SetupEventOptions{
			Event:  input.Body.Event.input(),
			Cities: input.Body.Cities,
			Limit:  input.Body.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return ok(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "setup-event-tasks",
		Method:      http.MethodPost,
		Path:        "/events/{id}/setup-tasks",
		Summary:     "Invite the donors of an upstream table to an existing event",
		Tags:        []string{"events", "workflows"},
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id" minimum:"1"`
		Body SetupTasksRequest
	}) (*response[engine.SetupResult], error) {
		res, err := eng.SetupTasks(ctx, input.ID, upstream.Table{Headers: input.Body.Headers, Data: input.Body.Data})
		if err != nil {
			return nil, handleError(err)
		}
		return ok(res), nil
	})
}
