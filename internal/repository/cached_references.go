package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/octobees/directory-search/internal/cache"
	"github.com/octobees/directory-search/internal/entity"
)

// CachedReferenceRepository wraps a DirectoryRepository and caches the
// reference lookups (category slugs, place names, coordinates). Business
// reads and counters always reach the store.
type CachedReferenceRepository struct {
	DirectoryRepository
	cache cache.Cache
	ttl   time.Duration
}

var _ DirectoryRepository = (*CachedReferenceRepository)(nil)

// NewCachedReferenceRepository decorates repo; a non-positive ttl uses
// cache.DefaultReferenceTTL.
func NewCachedReferenceRepository(repo DirectoryRepository, c cache.Cache, ttl time.Duration) *CachedReferenceRepository {
	if ttl <= 0 {
		ttl = cache.DefaultReferenceTTL
	}
	return &CachedReferenceRepository{DirectoryRepository: repo, cache: c, ttl: ttl}
}

// cachedID stores a resolved id, or Missing for a reference the store does
// not know, so unknown slugs do not hit the store on every request.
type cachedID struct {
	ID      *uuid.UUID `json:"id,omitempty"`
	Missing bool       `json:"missing,omitempty"`
}

type cachedCoordinates struct {
	Coordinates *entity.Coordinates `json:"coordinates,omitempty"`
	Missing     bool                `json:"missing,omitempty"`
}

func referenceKey(prefix, value string) string {
	return prefix + strings.ToLower(strings.TrimSpace(value))
}

// ResolveCategoryIDBySlug serves slug lookups from cache when possible.
func (r *CachedReferenceRepository) ResolveCategoryIDBySlug(ctx context.Context, slug string) (*uuid.UUID, error) {
	// slugs are exact-match so the key keeps the original case
	key := cache.KeyPrefixCategory + strings.TrimSpace(slug)
	return r.resolveID(ctx, key, func(ctx context.Context) (*uuid.UUID, error) {
		return r.DirectoryRepository.ResolveCategoryIDBySlug(ctx, slug)
	})
}

// ResolvePlaceIDByName serves place lookups from cache when possible.
func (r *CachedReferenceRepository) ResolvePlaceIDByName(ctx context.Context, name string) (*uuid.UUID, error) {
	return r.resolveID(ctx, referenceKey(cache.KeyPrefixPlace, name), func(ctx context.Context) (*uuid.UUID, error) {
		return r.DirectoryRepository.ResolvePlaceIDByName(ctx, name)
	})
}

func (r *CachedReferenceRepository) resolveID(ctx context.Context, key string, load func(context.Context) (*uuid.UUID, error)) (*uuid.UUID, error) {
	var entry cachedID
	if r.get(ctx, key, &entry) {
		if entry.Missing {
			return nil, nil
		}
		return entry.ID, nil
	}

	id, err := load(ctx)
	if err != nil {
		return nil, err
	}
	r.set(ctx, key, cachedID{ID: id, Missing: id == nil})
	return id, nil
}

// FetchPlaceCoordinates caches the origin lookup, including absence.
func (r *CachedReferenceRepository) FetchPlaceCoordinates(ctx context.Context, name string) (*entity.Coordinates, error) {
	key := referenceKey(cache.KeyPrefixCoordinates, name)
	var entry cachedCoordinates
	if r.get(ctx, key, &entry) {
		if entry.Missing {
			return nil, nil
		}
		return entry.Coordinates, nil
	}

	coords, err := r.DirectoryRepository.FetchPlaceCoordinates(ctx, name)
	if err != nil {
		return nil, err
	}
	r.set(ctx, key, cachedCoordinates{Coordinates: coords, Missing: coords == nil})
	return coords, nil
}

// FetchAllPlacesWithCoordinates caches the full place list.
func (r *CachedReferenceRepository) FetchAllPlacesWithCoordinates(ctx context.Context) ([]entity.PlaceCoordinates, error) {
	var places []entity.PlaceCoordinates
	if r.get(ctx, cache.KeyAllCoordinates, &places) {
		return places, nil
	}

	places, err := r.DirectoryRepository.FetchAllPlacesWithCoordinates(ctx)
	if err != nil {
		return nil, err
	}
	r.set(ctx, cache.KeyAllCoordinates, places)
	return places, nil
}

// InvalidateReferences drops every cached reference entry.
func (r *CachedReferenceRepository) InvalidateReferences(ctx context.Context) error {
	if err := r.cache.DeleteByPattern(ctx, cache.KeyPrefixReferences+"*"); err != nil {
		return fmt.Errorf("invalidate reference cache: %w", err)
	}
	return nil
}

// get reports a usable hit; cache errors are logged and treated as misses.
func (r *CachedReferenceRepository) get(ctx context.Context, key string, dest any) bool {
	raw, err := r.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("component=reference_cache action=get key=%s err=%v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		log.Printf("component=reference_cache action=decode key=%s err=%v", key, err)
		return false
	}
	return true
}

func (r *CachedReferenceRepository) set(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		log.Printf("component=reference_cache action=encode key=%s err=%v", key, err)
		return
	}
	if err := r.cache.Set(ctx, key, raw, r.ttl); err != nil {
		log.Printf("component=reference_cache action=set key=%s err=%v", key, err)
	}
}
