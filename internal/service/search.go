package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/octobees/directory-search/internal/dto"
	"github.com/octobees/directory-search/internal/entity"
	"github.com/octobees/directory-search/internal/repository"
	"github.com/octobees/directory-search/internal/service/filter"
	"github.com/octobees/directory-search/internal/service/geo"
	"github.com/octobees/directory-search/internal/service/pagination"
	"github.com/octobees/directory-search/internal/service/ranking"
)

// DefaultStoreTimeout bounds every store round trip made for one call.
const DefaultStoreTimeout = 5 * time.Second

// SearchService selects, ranks and paginates directory businesses.
type SearchService struct {
	repo          repository.DirectoryRepository
	places        *geo.Resolver
	storeTimeout  time.Duration
	defaultRadius float64
}

// SearchOption configures a SearchService.
type SearchOption func(*SearchService)

// WithStoreTimeout overrides DefaultStoreTimeout.
func WithStoreTimeout(d time.Duration) SearchOption {
	return func(s *SearchService) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

// WithDefaultRadius sets the radius used when a nearby search omits one.
func WithDefaultRadius(km float64) SearchOption {
	return func(s *SearchService) {
		if km > 0 {
			s.defaultRadius = km
		}
	}
}

// NewSearchService creates a SearchService reading from repo.
func NewSearchService(repo repository.DirectoryRepository, opts ...SearchOption) *SearchService {
	s := &SearchService{
		repo:          repo,
		places:        geo.NewResolver(repo),
		storeTimeout:  DefaultStoreTimeout,
		defaultRadius: geo.DefaultRadiusKm,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type validatedRequest struct {
	dto.SearchRequest
	key ranking.SortKey
	dir ranking.SortDirection
}

func validateSearch(req dto.SearchRequest) (validatedRequest, error) {
	if req.Page < 1 {
		return validatedRequest{}, invalidField("page", "must be at least 1, got %d", req.Page)
	}
	if req.PageSize <= 0 {
		return validatedRequest{}, invalidField("page_size", "must be positive, got %d", req.PageSize)
	}
	key, err := ranking.ParseSortKey(req.Sort)
	if err != nil {
		return validatedRequest{}, invalidField("sort", "%v", err)
	}
	dir, err := ranking.ParseSortDirection(req.Order)
	if err != nil {
		return validatedRequest{}, invalidField("order", "%v", err)
	}
	if math.IsNaN(req.RadiusKm) || math.IsInf(req.RadiusKm, 0) || req.RadiusKm < 0 {
		return validatedRequest{}, invalidField("radius_km", "must be a non-negative number")
	}

	req.CategorySlug = strings.TrimSpace(req.CategorySlug)
	req.City = strings.TrimSpace(req.City)
	if req.Nearby && req.City == "" {
		return validatedRequest{}, invalidField("city", "is required for a nearby search")
	}
	return validatedRequest{SearchRequest: req, key: key, dir: dir}, nil
}

// Search runs one request: validate, resolve references, fetch, re-check,
// rank and paginate. Unknown category slugs or places produce an empty page.
func (s *SearchService) Search(ctx context.Context, req dto.SearchRequest) (dto.RankedPage, error) {
	valid, err := validateSearch(req)
	if err != nil {
		return dto.RankedPage{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	scope, err := s.resolveScope(ctx, valid.SearchRequest)
	if err != nil {
		return dto.RankedPage{}, s.storeFailure(ctx, "resolve references", err)
	}

	criteria := filter.Compose(valid.SearchRequest, scope)
	var candidates []entity.Business
	if !criteria.MatchNothing {
		candidates, err = withDeadline(ctx, func(ctx context.Context) ([]entity.Business, error) {
			return s.repo.FetchActiveBusinesses(ctx, criteria)
		})
		if err != nil {
			return dto.RankedPage{}, s.storeFailure(ctx, "fetch businesses", err)
		}
	}

	// the store query is a superset on some backends; the predicate is exact
	candidates = criteria.Apply(candidates)
	ranked := ranking.Rank(candidates, valid.key, valid.dir)

	page := pagination.Paginate(ranked, valid.Page, valid.PageSize)
	page.Token = req.Token
	return page, nil
}

func (s *SearchService) resolveScope(ctx context.Context, req dto.SearchRequest) (filter.Scope, error) {
	var (
		scope           filter.Scope
		categoryMissing bool
		placeMissing    bool
	)

	g, gctx := errgroup.WithContext(ctx)
	if req.CategorySlug != "" {
		g.Go(func() error {
			id, err := withDeadline(gctx, func(ctx context.Context) (*uuid.UUID, error) {
				return s.repo.ResolveCategoryIDBySlug(ctx, req.CategorySlug)
			})
			if err != nil {
				return fmt.Errorf("resolve category %q: %w", req.CategorySlug, err)
			}
			scope.CategoryID = id
			categoryMissing = id == nil
			return nil
		})
	}
	if req.City != "" {
		g.Go(func() error {
			id, err := withDeadline(gctx, func(ctx context.Context) (*uuid.UUID, error) {
				return s.repo.ResolvePlaceIDByName(ctx, req.City)
			})
			if err != nil {
				return fmt.Errorf("resolve place %q: %w", req.City, err)
			}
			if id == nil {
				placeMissing = true
				return nil
			}
			if !req.Nearby {
				scope.Places = []string{req.City}
				return nil
			}
			places, err := withDeadline(gctx, func(ctx context.Context) ([]string, error) {
				return s.places.NearbyPlaces(ctx, req.City, s.radius(req.RadiusKm))
			})
			if err != nil {
				return err
			}
			scope.Places = places
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return filter.Scope{}, err
	}

	scope.Unresolved = categoryMissing || placeMissing
	return scope, nil
}

func (s *SearchService) radius(km float64) float64 {
	if km <= 0 {
		return s.defaultRadius
	}
	return km
}

// NearbyPlaces lists the place names within radiusKm of placeName, nearest
// first, falling back to just placeName.
func (s *SearchService) NearbyPlaces(ctx context.Context, placeName string, radiusKm float64) ([]string, error) {
	placeName = strings.TrimSpace(placeName)
	if placeName == "" {
		return nil, invalidField("place", "must not be empty")
	}
	if math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) || radiusKm < 0 {
		return nil, invalidField("radius_km", "must be a non-negative number")
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	places, err := withDeadline(ctx, func(ctx context.Context) ([]string, error) {
		return s.places.NearbyPlaces(ctx, placeName, s.radius(radiusKm))
	})
	if err != nil {
		return nil, s.storeFailure(ctx, "nearby places", err)
	}
	return places, nil
}

// RecordView atomically increments the view counter and returns the new value.
func (s *SearchService) RecordView(ctx context.Context, id uuid.UUID) (int64, error) {
	return s.recordCounter(ctx, "record view", id, s.repo.IncrementViewCount)
}

// RecordClick atomically increments the click counter and returns the new value.
func (s *SearchService) RecordClick(ctx context.Context, id uuid.UUID) (int64, error) {
	return s.recordCounter(ctx, "record click", id, s.repo.IncrementClickCount)
}

func (s *SearchService) recordCounter(ctx context.Context, op string, id uuid.UUID, increment func(context.Context, uuid.UUID) (int64, error)) (int64, error) {
	if id == uuid.Nil {
		return 0, invalidField("id", "must be a business id")
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	count, err := withDeadline(ctx, func(ctx context.Context) (int64, error) {
		return increment(ctx, id)
	})
	if err != nil {
		if errors.Is(err, repository.ErrBusinessNotFound) {
			return 0, err
		}
		return 0, s.storeFailure(ctx, op, err)
	}
	return count, nil
}

type referenceInvalidator interface {
	InvalidateReferences(ctx context.Context) error
}

// InvalidateReferences clears cached category and place lookups. It is a
// no-op when the repository does not cache references.
func (s *SearchService) InvalidateReferences(ctx context.Context) error {
	inv, ok := s.repo.(referenceInvalidator)
	if !ok {
		return nil
	}
	if err := inv.InvalidateReferences(ctx); err != nil {
		return &StoreError{Op: "invalidate references", Err: err}
	}
	return nil
}

// storeFailure classifies err. Caller cancellation passes through untouched.
func (s *SearchService) storeFailure(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	timeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
	log.Printf("component=search_service op=%q timeout=%t err=%v", op, timeout, err)
	return &StoreError{Op: op, Timeout: timeout, Err: err}
}

type result[T any] struct {
	value T
	err   error
}

// withDeadline runs fn and returns early with ctx.Err() when ctx ends first.
// Store clients that ignore ctx would otherwise hold the request past its
// timeout.
func withDeadline[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	done := make(chan result[T], 1)
	go func() {
		v, err := fn(ctx)
		done <- result[T]{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
