package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"donortrack/internal/domain"
	"donortrack/internal/store"
)

func registerDonors(api huma.API, st *store.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "list-donors",
		Method:      http.MethodGet,
		Path:        "/donors",
		Summary:     "List donors",
		Tags:        []string{"donors"},
	}, func(ctx context.Context, _ *struct{}) (*response[[]domain.Donor], error) {
		donors, err := st.ListDonors(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(donors), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "find-donor",
		Method:      http.MethodGet,
		Path:        "/donors/find",
		Summary:     "Find a donor by first and last name",
		Tags:        []string{"donors"},
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		FirstName string `query:"first_name"`
		LastName  string `query:"last_name"`
	}) (*response[domain.Donor], error) {
		d, err := st.FindDonorByName(ctx, input.FirstName, input.LastName)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(d), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-donor",
		Method:      http.MethodGet,
		Path:        "/donors/{id}",
		Summary:     "Get a donor",
		Tags:        []string{"donors"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id" minimum:"1"`
	}) (*response[domain.Donor], error) {
		d, err := st.GetDonor(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(d), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-donor",
		Method:      http.MethodPost,
		Path:        "/donors",
		Summary:     "Create a donor",
		Tags:        []string{"donors"},
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body DonorRequest
	}) (*response[IDResponse], error) {
		id, err := st.CreateDonor(ctx, input.Body.input())
		if err != nil {
			return nil, handleError(err)
		}
		return ok(IDResponse{ID: id, Message: "Donor created successfully"}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-donors-batch",
		Method:      http.MethodPost,
		Path:        "/donors/batch",
		Summary:     "Create several donors in one transaction",
		Tags:        []string{"donors"},
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body []DonorRequest
	}) (*response[IDsResponse], error) {
		in := make([]store.DonorInput, 0, len(input.Body))
		for _, d := range input.Body {
			in = append(in, d.input())
		}
		ids, err := st.CreateDonorsBatch(ctx, in)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(IDsResponse{IDs: ids, Message: "Donors created successfully"}), nil
	})
}
