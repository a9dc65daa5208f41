package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/octobees/directory-search/internal/entity"
	"github.com/octobees/directory-search/internal/service/filter"
)

// DirectoryRepository is the read surface of the directory store plus the
// two atomic counters.
type DirectoryRepository interface {
	// FetchActiveBusinesses returns the businesses matching criteria with
	// their category, city, country and review projections attached.
	FetchActiveBusinesses(ctx context.Context, criteria filter.Criteria) ([]entity.Business, error)
	// FetchPlaceCoordinates returns nil when the place is unknown or has no
	// stored position.
	FetchPlaceCoordinates(ctx context.Context, name string) (*entity.Coordinates, error)
	FetchAllPlacesWithCoordinates(ctx context.Context) ([]entity.PlaceCoordinates, error)
	// ResolveCategoryIDBySlug and ResolvePlaceIDByName return nil when no
	// record matches.
	ResolveCategoryIDBySlug(ctx context.Context, slug string) (*uuid.UUID, error)
	ResolvePlaceIDByName(ctx context.Context, name string) (*uuid.UUID, error)
	IncrementViewCount(ctx context.Context, id uuid.UUID) (int64, error)
	IncrementClickCount(ctx context.Context, id uuid.UUID) (int64, error)
}

// ErrBusinessNotFound is returned by the counters when no business has the id.
var ErrBusinessNotFound = errors.New("business not found")

// pgxPool is the subset of *pgxpool.Pool the repositories use.
type pgxPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
