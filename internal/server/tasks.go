package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"donortrack/internal/domain"
	"donortrack/internal/store"
)

func registerTasks(api huma.API, st *store.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List all tasks with donor details",
		Tags:        []string{"tasks"},
	}, func(ctx context.Context, _ *struct{}) (*response[[]domain.TaskWithDonor], error) {
		rows, err := st.ListTasks(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(rows), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get a task",
		Tags:        []string{"tasks"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id" minimum:"1"`
	}) (*response[domain.Task], error) {
		task, err := st.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(task), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-tasks",
		Method:      http.MethodPost,
		Path:        "/tasks",
		Summary:     "Create a pending task per donor for an event",
		Tags:        []string{"tasks"},
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body CreateTasksRequest
	}) (*response[IDsResponse], error) {
		ids, err := st.CreateTasksForEvent(ctx, input.Body.EventID, input.Body.DonorIDs)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(IDsResponse{IDs: ids, Message: "Tasks created successfully"}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task-status",
		Method:      http.MethodPut,
		Path:        "/tasks/status",
		Summary:     "Approve or reject a task",
		Tags:        []string{"tasks"},
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body UpdateTaskStatusRequest
	}) (*response[domain.Task], error) {
		task, err := st.UpdateTaskStatus(ctx, store.TaskStatusUpdate{
			TaskID: input.Body.TaskID,
			Status: domain.TaskStatus(input.Body.Status),
			Reason: input.Body.Reason,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return ok(task), nil
	})
}
