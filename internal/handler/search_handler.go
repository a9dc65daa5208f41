package handler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/octobees/directory-search/internal/dto"
	"github.com/octobees/directory-search/internal/repository"
	"github.com/octobees/directory-search/internal/service"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100

	// nginx convention for a client that went away before the response.
	statusClientClosedRequest = 499
)

// SearchHandler exposes directory search endpoints.
type SearchHandler struct {
	service *service.SearchService
}

// NewSearchHandler creates a new handler instance.
func NewSearchHandler(service *service.SearchService) *SearchHandler {
	return &SearchHandler{service: service}
}

// Search handles GET /businesses/search requests.
func (h *SearchHandler) Search(c echo.Context) error {
	req := dto.SearchRequest{
		Term:         strings.TrimSpace(c.QueryParam("q")),
		CategorySlug: strings.TrimSpace(c.QueryParam("category")),
		City:         strings.TrimSpace(c.QueryParam("city")),
		Country:      strings.TrimSpace(c.QueryParam("country")),
		Sort:         strings.TrimSpace(c.QueryParam("sort")),
		Order:        strings.TrimSpace(c.QueryParam("order")),
	}

	var err error
	if req.Page, err = parseIntDefault(c.QueryParam("page"), 1); err != nil {
		return FieldError(c, "page", "must be an integer")
	}
	if req.PageSize, err = parseIntDefault(c.QueryParam("per_page"), defaultPerPage); err != nil {
		return FieldError(c, "per_page", "must be an integer")
	}
	req.PageSize = min(req.PageSize, maxPerPage)

	if req.RadiusKm, err = parseRadius(c.QueryParam("radius_km")); err != nil {
		return FieldError(c, "radius_km", "must be a finite number")
	}

	flags := []struct {
		param string
		dest  *bool
	}{
		{"nearby", &req.Nearby},
		{"premium", &req.Facets.Premium},
		{"verified", &req.Facets.Verified},
		{"coupons", &req.Facets.HasCoupons},
		{"orders_online", &req.Facets.AcceptsOrdersOnline},
		{"kid_friendly", &req.Facets.KidFriendly},
		{"sponsored", &req.Facets.SponsoredAd},
	}
	for _, f := range flags {
		if *f.dest, err = parseBool(c.QueryParam(f.param)); err != nil {
			return FieldError(c, f.param, "must be a boolean")
		}
	}

	if raw := strings.TrimSpace(c.QueryParam("token")); raw != "" {
		if req.Token, err = strconv.ParseUint(raw, 10, 64); err != nil {
			return FieldError(c, "token", "must be an unsigned integer")
		}
	}

	page, err := h.service.Search(c.Request().Context(), req)
	if err != nil {
		return serviceError(c, err, "failed to search businesses")
	}

	return Success(c, http.StatusOK, "businesses retrieved", page)
}

// NearbyPlaces handles GET /places/nearby requests.
func (h *SearchHandler) NearbyPlaces(c echo.Context) error {
	place := strings.TrimSpace(c.QueryParam("place"))
	radius, err := parseRadius(c.QueryParam("radius_km"))
	if err != nil {
		return FieldError(c, "radius_km", "must be a finite number")
	}

	places, err := h.service.NearbyPlaces(c.Request().Context(), place, radius)
	if err != nil {
		return serviceError(c, err, "failed to resolve nearby places")
	}

	return Success(c, http.StatusOK, "places retrieved", dto.NearbyPlacesResponse{
		Place:    place,
		RadiusKm: radius,
		Places:   places,
	})
}

// RecordView handles POST /businesses/:id/views requests.
func (h *SearchHandler) RecordView(c echo.Context) error {
	return h.recordCounter(c, "view_count", h.service.RecordView)
}

// RecordClick handles POST /businesses/:id/clicks requests.
func (h *SearchHandler) RecordClick(c echo.Context) error {
	return h.recordCounter(c, "click_count", h.service.RecordClick)
}

func (h *SearchHandler) recordCounter(c echo.Context, field string, record func(context.Context, uuid.UUID) (int64, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return FieldError(c, "id", "must be a business id")
	}

	count, err := record(c.Request().Context(), id)
	if err != nil {
		return serviceError(c, err, "failed to record "+strings.TrimSuffix(field, "_count"))
	}

	return Success(c, http.StatusOK, "counter updated", map[string]any{"id": id, field: count})
}

// InvalidateReferences handles DELETE /admin/cache/references requests.
func (h *SearchHandler) InvalidateReferences(c echo.Context) error {
	if err := h.service.InvalidateReferences(c.Request().Context()); err != nil {
		return serviceError(c, err, "failed to invalidate reference cache")
	}
	return Success(c, http.StatusOK, "reference cache invalidated", nil)
}

// serviceError maps service errors onto the response envelope.
func serviceError(c echo.Context, err error, fallback string) error {
	var reqErr *service.RequestError
	var storeErr *service.StoreError
	switch {
	case errors.As(err, &reqErr):
		return FieldError(c, reqErr.Field, reqErr.Message)
	case errors.Is(err, repository.ErrBusinessNotFound):
		return Error(c, http.StatusNotFound, "business not found")
	case errors.Is(err, context.Canceled):
		return Error(c, statusClientClosedRequest, "request cancelled")
	case errors.As(err, &storeErr) && storeErr.IsTimeout():
		return Error(c, http.StatusServiceUnavailable, "directory store timed out")
	case errors.Is(err, service.ErrStoreFailure):
		return Error(c, http.StatusBadGateway, "directory store unavailable")
	default:
		return Error(c, http.StatusInternalServerError, fallback)
	}
}

func parseIntDefault(input string, fallback int) (int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return fallback, nil
	}
	return strconv.Atoi(input)
}

func parseRadius(input string) (float64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(input, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, errors.New("radius must be a finite number")
	}
	return value, nil
}

func parseBool(input string) (bool, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return false, nil
	}
	return strconv.ParseBool(input)
}
