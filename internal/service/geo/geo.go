package geo

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/octobees/directory-search/internal/entity"
)

const (
	// EarthRadiusKm is the mean Earth radius used by Distance.
	EarthRadiusKm = 6371.0
	// DefaultRadiusKm applies when the caller does not provide a radius.
	DefaultRadiusKm = 50.0
)

// PlaceSource exposes the stored place coordinates.
type PlaceSource interface {
	// FetchPlaceCoordinates returns nil when the place has no stored position.
	FetchPlaceCoordinates(ctx context.Context, name string) (*entity.Coordinates, error)
	FetchAllPlacesWithCoordinates(ctx context.Context) ([]entity.PlaceCoordinates, error)
}

// Distance returns the great-circle distance in kilometres between two points.
func Distance(a, b entity.Coordinates) float64 {
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := radians(b.Latitude - a.Latitude)
	dLon := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push h just outside [0,1] for antipodal points
	h = math.Min(1, math.Max(0, h))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// WithinRadius reports whether b lies within radiusKm of a.
func WithinRadius(a, b entity.Coordinates, radiusKm float64) bool {
	return Distance(a, b) <= radiusKm
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Resolver expands a named place into the set of places around it.
type Resolver struct {
	source PlaceSource
}

// NewResolver builds a resolver reading from the given source.
func NewResolver(source PlaceSource) *Resolver {
	return &Resolver{source: source}
}

type candidate struct {
	name     string
	distance float64
}

// NearbyPlaces returns the names of all places within radiusKm of placeName,
// nearest first. A place without coordinates, or a radius that matches
// nothing, yields just placeName.
func (r *Resolver) NearbyPlaces(ctx context.Context, placeName string, radiusKm float64) ([]string, error) {
	placeName = strings.TrimSpace(placeName)
	if placeName == "" {
		return nil, fmt.Errorf("place name must not be empty")
	}
	if radiusKm <= 0 || math.IsNaN(radiusKm) {
		radiusKm = DefaultRadiusKm
	}

	origin, err := r.source.FetchPlaceCoordinates(ctx, placeName)
	if err != nil {
		return nil, fmt.Errorf("fetch coordinates for %q: %w", placeName, err)
	}
	if origin == nil {
		return []string{placeName}, nil
	}

	places, err := r.source.FetchAllPlacesWithCoordinates(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch place coordinates: %w", err)
	}

	seen := make(map[string]struct{}, len(places))
	matches := make([]candidate, 0)
	for _, place := range places {
		if _, dup := seen[place.Name]; dup {
			continue
		}
		d := Distance(*origin, place.Coordinates)
		if d > radiusKm {
			continue
		}
		seen[place.Name] = struct{}{}
		matches = append(matches, candidate{name: place.Name, distance: d})
	}
	if len(matches) == 0 {
		return []string{placeName}, nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].distance != matches[j].distance {
			return matches[i].distance < matches[j].distance
		}
		return matches[i].name < matches[j].name
	})

	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.name
	}
	return names, nil
}
