package entity

import (
	"time"

	"github.com/google/uuid"
)

// Category groups businesses; every business belongs to exactly one.
type Category struct {
	ID   uuid.UUID `json:"id" validate:"required"`
	Name string    `json:"name" validate:"required"`
	Slug string    `json:"slug" validate:"required"`
	Icon *string   `json:"icon,omitempty"`
}

// Country is the top level of the place hierarchy.
type Country struct {
	ID   uuid.UUID `json:"id" validate:"required"`
	Name string    `json:"name" validate:"required"`
	Code string    `json:"code" validate:"required"`
}

// City is a named place. Coordinates are optional; cities without them never
// take part in proximity expansion except as the search origin.
type City struct {
	ID        uuid.UUID  `json:"id" validate:"required"`
	Name      string     `json:"name" validate:"required"`
	Latitude  *float64   `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude *float64   `json:"longitude,omitempty" validate:"omitempty,longitude"`
	CountryID uuid.UUID  `json:"country_id"`
	Country   *Country   `json:"country,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Coordinates returns the city's position when both components are known.
func (c City) Coordinates() (Coordinates, bool) {
	if c.Latitude == nil || c.Longitude == nil {
		return Coordinates{}, false
	}
	return Coordinates{Latitude: *c.Latitude, Longitude: *c.Longitude}, true
}

// Coordinates is a WGS84 position in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// PlaceCoordinates pairs a place name with its stored position.
type PlaceCoordinates struct {
	Name        string      `json:"name"`
	Coordinates Coordinates `json:"coordinates"`
}
