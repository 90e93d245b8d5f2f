package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"donortrack/internal/upstream"
)

// registerUpstream proxies the donor-data service so clients never call it directly.
func registerUpstream(api huma.API, src DonorSource) {
	huma.Register(api, huma.Operation{
		OperationID: "upstream-donors",
		Method:      http.MethodGet,
		Path:        "/upstream/donors",
		Summary:     "Fetch donors from the donor-data service",
		Tags:        []string{"upstream"},
		Errors:      []int{http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" minimum:"0"`
	}) (*response[upstream.Table], error) {
		table, err := src.Donors(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(table), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "upstream-cities",
		Method:      http.MethodGet,
		Path:        "/upstream/cities",
		Summary:     "List the cities known to the donor-data service",
		Tags:        []string{"upstream"},
		Errors:      []int{http.StatusBadGateway},
	}, func(ctx context.Context, _ *struct{}) (*response[[]upstream.City], error) {
		cities, err := src.Cities(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(cities), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "upstream-search-donors",
		Method:      http.MethodGet,
		Path:        "/upstream/search-donors",
		Summary:     "Search upstream donors by city",
		Tags:        []string{"upstream"},
		Errors:      []int{http.StatusBadRequest, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		Cities []string `query:"cities,explode"`
		Limit  int      `query:"limit" minimum:"0"`
	}) (*response[upstream.Table], error) {
		table, err := src.SearchByCities(ctx, input.Cities, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(table), nil
	})
}
