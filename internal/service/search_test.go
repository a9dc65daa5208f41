package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/octobees/directory-search/internal/dto"
	"github.com/octobees/directory-search/internal/entity"
	"github.com/octobees/directory-search/internal/repository"
	"github.com/octobees/directory-search/internal/service/filter"
)

type mockDirectoryRepository struct {
	fetch      func(ctx context.Context, criteria filter.Criteria) ([]entity.Business, error)
	coords     func(ctx context.Context, name string) (*entity.Coordinates, error)
	allPlaces  func(ctx context.Context) ([]entity.PlaceCoordinates, error)
	category   func(ctx context.Context, slug string) (*uuid.UUID, error)
	place      func(ctx context.Context, name string) (*uuid.UUID, error)
	views      func(ctx context.Context, id uuid.UUID) (int64, error)
	clicks     func(ctx context.Context, id uuid.UUID) (int64, error)
	invalidate func(ctx context.Context) error
	storeCalls atomic.Int32
}

func (m *mockDirectoryRepository) FetchActiveBusinesses(ctx context.Context, criteria filter.Criteria) ([]entity.Business, error) {
	m.storeCalls.Add(1)
	if m.fetch != nil {
		return m.fetch(ctx, criteria)
	}
	return nil, errors.New("fetch not implemented")
}

func (m *mockDirectoryRepository) FetchPlaceCoordinates(ctx context.Context, name string) (*entity.Coordinates, error) {
	m.storeCalls.Add(1)
	if m.coords != nil {
		return m.coords(ctx, name)
	}
	return nil, nil
}

func (m *mockDirectoryRepository) FetchAllPlacesWithCoordinates(ctx context.Context) ([]entity.PlaceCoordinates, error) {
	m.storeCalls.Add(1)
	if m.allPlaces != nil {
		return m.allPlaces(ctx)
	}
	return nil, nil
}

func (m *mockDirectoryRepository) ResolveCategoryIDBySlug(ctx context.Context, slug string) (*uuid.UUID, error) {
	m.storeCalls.Add(1)
	if m.category != nil {
		return m.category(ctx, slug)
	}
	return nil, nil
}

func (m *mockDirectoryRepository) ResolvePlaceIDByName(ctx context.Context, name string) (*uuid.UUID, error) {
	m.storeCalls.Add(1)
	if m.place != nil {
		return m.place(ctx, name)
	}
	return nil, nil
}

func (m *mockDirectoryRepository) IncrementViewCount(ctx context.Context, id uuid.UUID) (int64, error) {
	m.storeCalls.Add(1)
	if m.views != nil {
		return m.views(ctx, id)
	}
	return 0, errors.New("views not implemented")
}

func (m *mockDirectoryRepository) IncrementClickCount(ctx context.Context, id uuid.UUID) (int64, error) {
	m.storeCalls.Add(1)
	if m.clicks != nil {
		return m.clicks(ctx, id)
	}
	return 0, errors.New("clicks not implemented")
}

type invalidatingRepository struct {
	*mockDirectoryRepository
}

func (r invalidatingRepository) InvalidateReferences(ctx context.Context) error {
	return r.invalidate(ctx)
}

var (
	cafesID   = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	oaklandID = uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb")
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func business(name string, mutate func(b *entity.Business)) entity.Business {
	b := entity.Business{
		ID:       uuid.New(),
		Slug:     strings.ToLower(name),
		Name:     name,
		Status:   entity.StatusActive,
		Category: &entity.Category{ID: cafesID, Name: "Cafes", Slug: "cafes"},
		City:     &entity.City{ID: oaklandID, Name: "Oakland"},
	}
	if mutate != nil {
		mutate(&b)
	}
	return b
}

func names(page dto.RankedPage) []string {
	out := make([]string, len(page.Items))
	for i, item := range page.Items {
		out[i] = item.Name
	}
	return out
}

func resolvingRepo(candidates []entity.Business) *mockDirectoryRepository {
	return &mockDirectoryRepository{
		category: func(ctx context.Context, slug string) (*uuid.UUID, error) {
			if slug == "cafes" {
				id := cafesID
				return &id, nil
			}
			return nil, nil
		},
		place: func(ctx context.Context, name string) (*uuid.UUID, error) {
			switch name {
			case "Oakland", "Berkeley", "Nowhereville":
				id := uuid.New()
				return &id, nil
			}
			return nil, nil
		},
		fetch: func(ctx context.Context, criteria filter.Criteria) ([]entity.Business, error) {
			return candidates, nil
		},
	}
}

func TestSearchService_Search_DefaultRanking(t *testing.T) {
	repo := resolvingRepo([]entity.Business{
		business("X", func(b *entity.Business) { b.CreatedAt = day("2024-01-01") }),
		business("Y", func(b *entity.Business) { b.IsPremium = true; b.CreatedAt = day("2023-01-01") }),
		business("Z", func(b *entity.Business) { b.IsSponsoredAd = true; b.CreatedAt = day("2024-06-01") }),
	})

	svc := NewSearchService(repo)
	page, err := svc.Search(context.Background(), dto.SearchRequest{Page: 1, PageSize: 10, Token: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join(names(page), ","); got != "Z,Y,X" {
		t.Fatalf("expected Z,Y,X got %s", got)
	}
	if page.Total != 3 || page.TotalPages != 1 || page.Token != 7 {
		t.Fatalf("unexpected page metadata: %+v", page)
	}
	if page.Items[0].DisplayNumber != 0 || page.Items[1].DisplayNumber != 1 || page.Items[2].DisplayNumber != 2 {
		t.Fatalf("unexpected display numbers: %+v", page.Items)
	}
}

func TestSearchService_Search_ActiveOnly(t *testing.T) {
	repo := resolvingRepo([]entity.Business{
		business("Active", nil),
		business("Pending", func(b *entity.Business) { b.Status = entity.StatusPending }),
		business("Suspended", func(b *entity.Business) { b.Status = entity.StatusSuspended }),
		business("Premium", func(b *entity.Business) { b.Status = entity.StatusPremium }),
	})

	page, err := NewSearchService(repo).Search(context.Background(), dto.SearchRequest{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, item := range page.Items {
		if item.Status != entity.StatusActive {
			t.Fatalf("non-active business leaked into results: %+v", item.Business)
		}
	}
	if page.Total != 1 {
		t.Fatalf("expected 1 active business, got %d", page.Total)
	}
}

func TestSearchService_Search_UnresolvedReferences(t *testing.T) {
	tests := map[string]dto.SearchRequest{
		"unknown category": {CategorySlug: "does-not-exist", Page: 1, PageSize: 10},
		"unknown place":    {City: "Atlantis", Page: 1, PageSize: 10},
		"unknown nearby":   {City: "Atlantis", Nearby: true, Page: 1, PageSize: 10},
	}

	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			repo := resolvingRepo([]entity.Business{business("Acme", nil)})
			fetched := false
			repo.fetch = func(ctx context.Context, criteria filter.Criteria) ([]entity.Business, error) {
				fetched = true
				return nil, nil
			}

			page, err := NewSearchService(repo).Search(context.Background(), req)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if page.Items == nil || len(page.Items) != 0 || page.Total != 0 || page.TotalPages != 1 {
				t.Fatalf("expected empty page, got %+v", page)
			}
			if fetched {
				t.Fatalf("did not expect a business fetch for unresolved references")
			}
		})
	}
}

func TestSearchService_Search_ComposesCriteria(t *testing.T) {
	var received filter.Criteria
	repo := resolvingRepo(nil)
	repo.fetch = func(ctx context.Context, criteria filter.Criteria) ([]entity.Business, error) {
		received = criteria
		return []entity.Business{
			business("Blue Bottle", func(b *entity.Business) { b.IsVerified = true }),
			business("Bottle Shop", nil),
		}, nil
	}

	page, err := NewSearchService(repo).Search(context.Background(), dto.SearchRequest{
		CategorySlug: "cafes",
		City:         " Oakland ",
		Term:         "bottle",
		Facets:       dto.Facets{Verified: true},
		Page:         1,
		PageSize:     10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if received.CategoryID == nil || *received.CategoryID != cafesID {
		t.Fatalf("expected category id in criteria, got %+v", received.CategoryID)
	}
	if len(received.Places) != 1 || received.Places[0] != "Oakland" {
		t.Fatalf("expected single place constraint, got %+v", received.Places)
	}
	if received.Term != "bottle" || !received.Facets.Verified {
		t.Fatalf("unexpected criteria: %+v", received)
	}
	if got := strings.Join(names(page), ","); got != "Blue Bottle" {
		t.Fatalf("expected in-memory predicate to drop unverified business, got %s", got)
	}
}

func TestSearchService_Search_NearbyExpansion(t *testing.T) {
	var received filter.Criteria
	repo := resolvingRepo(nil)
	repo.coords = func(ctx context.Context, name string) (*entity.Coordinates, error) {
		if name == "Oakland" {
			return &entity.Coordinates{Latitude: 37.8044, Longitude: -122.2712}, nil
		}
		return nil, nil
	}
	repo.allPlaces = func(ctx context.Context) ([]entity.PlaceCoordinates, error) {
		return []entity.PlaceCoordinates{
			{Name: "Sacramento", Coordinates: entity.Coordinates{Latitude: 38.5816, Longitude: -121.4944}},
			{Name: "Berkeley", Coordinates: entity.Coordinates{Latitude: 37.8715, Longitude: -122.2730}},
			{Name: "Oakland", Coordinates: entity.Coordinates{Latitude: 37.8044, Longitude: -122.2712}},
		}, nil
	}
	repo.fetch = func(ctx context.Context, criteria filter.Criteria) ([]entity.Business, error) {
		received = criteria
		return []entity.Business{
			business("Here", nil),
			business("Across the bay", func(b *entity.Business) { b.City = &entity.City{Name: "Berkeley"} }),
			business("Far", func(b *entity.Business) { b.City = &entity.City{Name: "Sacramento"} }),
		}, nil
	}

	page, err := NewSearchService(repo, WithDefaultRadius(25)).Search(context.Background(), dto.SearchRequest{
		City: "Oakland", Nearby: true, Page: 1, PageSize: 10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(received.Places, ",") != "Oakland,Berkeley" {
		t.Fatalf("expected expanded places, got %+v", received.Places)
	}
	if page.Total != 2 {
		t.Fatalf("expected businesses in Oakland and Berkeley only, got %+v", names(page))
	}
}

func TestSearchService_Search_InvalidRequest(t *testing.T) {
	tests := map[string]struct {
		req   dto.SearchRequest
		field string
	}{
		"page zero":       {req: dto.SearchRequest{Page: 0, PageSize: 10}, field: "page"},
		"negative size":   {req: dto.SearchRequest{Page: 1, PageSize: -1}, field: "page_size"},
		"zero size":       {req: dto.SearchRequest{Page: 1, PageSize: 0}, field: "page_size"},
		"bad sort":        {req: dto.SearchRequest{Page: 1, PageSize: 10, Sort: "popularity"}, field: "sort"},
		"bad order":       {req: dto.SearchRequest{Page: 1, PageSize: 10, Order: "up"}, field: "order"},
		"negative radius": {req: dto.SearchRequest{Page: 1, PageSize: 10, RadiusKm: -5}, field: "radius_km"},
		"nearby no city":  {req: dto.SearchRequest{Page: 1, PageSize: 10, Nearby: true}, field: "city"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			repo := resolvingRepo(nil)
			_, err := NewSearchService(repo).Search(context.Background(), tt.req)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
			var reqErr *RequestError
			if !errors.As(err, &reqErr) || reqErr.Field != tt.field {
				t.Fatalf("expected field %q, got %v", tt.field, err)
			}
			if calls := repo.storeCalls.Load(); calls != 0 {
				t.Fatalf("expected no store access, got %d calls", calls)
			}
		})
	}
}

func TestSearchService_Search_StoreFailure(t *testing.T) {
	boom := errors.New("connection reset")
	repo := resolvingRepo(nil)
	repo.fetch = func(ctx context.Context, criteria filter.Criteria) ([]entity.Business, error) {
		return nil, boom
	}

	_, err := NewSearchService(repo).Search(context.Background(), dto.SearchRequest{Page: 1, PageSize: 10})
	if !errors.Is(err, ErrStoreFailure) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store failure, got %v", err)
	}
	var storeErr *StoreError
	if !errors.As(err, &storeErr) || storeErr.IsTimeout() {
		t.Fatalf("expected non-timeout StoreError, got %v", err)
	}

	repo = resolvingRepo(nil)
	repo.category = func(ctx context.Context, slug string) (*uuid.UUID, error) { return nil, boom }
	_, err = NewSearchService(repo).Search(context.Background(), dto.SearchRequest{CategorySlug: "cafes", Page: 1, PageSize: 10})
	if !errors.Is(err, ErrStoreFailure) {
		t.Fatalf("expected reference resolution failure to be a store failure, got %v", err)
	}
}

func TestSearchService_Search_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	repo := resolvingRepo(nil)
	repo.fetch = func(ctx context.Context, criteria filter.Criteria) ([]entity.Business, error) {
		// ignores ctx like a client without cancellation support
		<-release
		return nil, nil
	}

	start := time.Now()
	_, err := NewSearchService(repo, WithStoreTimeout(20*time.Millisecond)).Search(context.Background(), dto.SearchRequest{Page: 1, PageSize: 10})
	if time.Since(start) > time.Second {
		t.Fatalf("search did not honour the store timeout")
	}
	var storeErr *StoreError
	if !errors.As(err, &storeErr) || !storeErr.IsTimeout() {
		t.Fatalf("expected timeout StoreError, got %v", err)
	}
}

func TestSearchService_Search_CallerCancellation(t *testing.T) {
	repo := resolvingRepo(nil)
	repo.fetch = func(ctx context.Context, criteria filter.Criteria) ([]entity.Business, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSearchService(repo).Search(ctx, dto.SearchRequest{Page: 1, PageSize: 10})
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrStoreFailure) {
		t.Fatalf("expected plain cancellation, got %v", err)
	}
}

func TestSearchService_Search_PageBeyondEnd(t *testing.T) {
	repo := resolvingRepo([]entity.Business{business("Only", nil)})
	page, err := NewSearchService(repo).Search(context.Background(), dto.SearchRequest{Page: 4, PageSize: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Items) != 0 || page.Total != 1 || page.TotalPages != 1 || page.Page != 4 {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestSearchService_NearbyPlaces(t *testing.T) {
	repo := &mockDirectoryRepository{
		coords: func(ctx context.Context, name string) (*entity.Coordinates, error) {
			if name == "A" {
				return &entity.Coordinates{}, nil
			}
			return nil, nil
		},
		allPlaces: func(ctx context.Context) ([]entity.PlaceCoordinates, error) {
			return []entity.PlaceCoordinates{
				{Name: "A"},
				{Name: "B", Coordinates: entity.Coordinates{Longitude: 0.2}},
				{Name: "C", Coordinates: entity.Coordinates{Longitude: 5}},
			}, nil
		},
	}
	svc := NewSearchService(repo)
	ctx := context.Background()

	places, err := svc.NearbyPlaces(ctx, "A", 50)
	if err != nil || strings.Join(places, ",") != "A,B" {
		t.Fatalf("unexpected places %v err=%v", places, err)
	}
	places, err = svc.NearbyPlaces(ctx, "Nowhereville", 0)
	if err != nil || len(places) != 1 || places[0] != "Nowhereville" {
		t.Fatalf("expected singleton fallback, got %v err=%v", places, err)
	}
	if _, err := svc.NearbyPlaces(ctx, " ", 50); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request for empty place, got %v", err)
	}

	repo.allPlaces = func(ctx context.Context) ([]entity.PlaceCoordinates, error) {
		return nil, errors.New("store down")
	}
	if _, err := svc.NearbyPlaces(ctx, "A", 50); !errors.Is(err, ErrStoreFailure) {
		t.Fatalf("expected store failure, got %v", err)
	}
}

func TestSearchService_Counters(t *testing.T) {
	known := uuid.New()
	repo := &mockDirectoryRepository{
		views: func(ctx context.Context, id uuid.UUID) (int64, error) {
			if id != known {
				return 0, repository.ErrBusinessNotFound
			}
			return 11, nil
		},
		clicks: func(ctx context.Context, id uuid.UUID) (int64, error) {
			return 0, errors.New("store down")
		},
	}
	svc := NewSearchService(repo)
	ctx := context.Background()

	count, err := svc.RecordView(ctx, known)
	if err != nil || count != 11 {
		t.Fatalf("unexpected count %d err=%v", count, err)
	}
	if _, err := svc.RecordView(ctx, uuid.New()); !errors.Is(err, repository.ErrBusinessNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.RecordView(ctx, uuid.Nil); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request for nil id, got %v", err)
	}
	if _, err := svc.RecordClick(ctx, known); !errors.Is(err, ErrStoreFailure) {
		t.Fatalf("expected store failure, got %v", err)
	}
}

func TestSearchService_InvalidateReferences(t *testing.T) {
	plain := NewSearchService(&mockDirectoryRepository{})
	if err := plain.InvalidateReferences(context.Background()); err != nil {
		t.Fatalf("expected no-op without cache, got %v", err)
	}

	called := false
	cached := NewSearchService(invalidatingRepository{&mockDirectoryRepository{
		invalidate: func(ctx context.Context) error { called = true; return nil },
	}})
	if err := cached.InvalidateReferences(context.Background()); err != nil || !called {
		t.Fatalf("expected invalidation to reach the repository, called=%v err=%v", called, err)
	}

	failing := NewSearchService(invalidatingRepository{&mockDirectoryRepository{
		invalidate: func(ctx context.Context) error { return errors.New("redis down") },
	}})
	if err := failing.InvalidateReferences(context.Background()); !errors.Is(err, ErrStoreFailure) {
		t.Fatalf("expected store failure, got %v", err)
	}
}
