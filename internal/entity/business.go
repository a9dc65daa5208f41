package entity

import (
	"time"

	"github.com/google/uuid"
)

// BusinessStatus is the moderation state of a directory listing.
type BusinessStatus string

const (
	StatusPending   BusinessStatus = "pending"
	StatusActive    BusinessStatus = "active"
	StatusSuspended BusinessStatus = "suspended"
	StatusPremium   BusinessStatus = "premium"
)

// Valid reports whether the status is one of the known values.
func (s BusinessStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusSuspended, StatusPremium:
		return true
	}
	return false
}

// Business represents a listing in the directory together with the joined
// category, city, country and review projections.
type Business struct {
	ID          uuid.UUID      `json:"id" validate:"required"`
	Slug        string         `json:"slug" validate:"required"`
	Name        string         `json:"name" validate:"required"`
	Description string         `json:"description,omitempty"`
	Address     *string        `json:"address,omitempty"`
	Phone       *string        `json:"phone,omitempty"`
	Email       *string        `json:"email,omitempty" validate:"omitempty,email"`
	Website     *string        `json:"website,omitempty"`
	Images      []string       `json:"images,omitempty"`
	Category    *Category      `json:"category,omitempty"`
	City        *City          `json:"city,omitempty"`
	Country     *Country       `json:"country,omitempty"`
	Status      BusinessStatus `json:"status" validate:"required"`

	IsPremium           bool `json:"is_premium"`
	IsVerified          bool `json:"is_verified"`
	HasCoupons          bool `json:"has_coupons"`
	AcceptsOrdersOnline bool `json:"accepts_orders_online"`
	IsKidFriendly       bool `json:"is_kid_friendly"`
	IsSponsoredAd       bool `json:"is_sponsored_ad"`

	ViewCount  int64 `json:"view_count"`
	ClickCount int64 `json:"click_count"`

	Reviews   []Review  `json:"reviews,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CategorySlug returns the slug of the joined category or an empty string.
func (b Business) CategorySlug() string {
	if b.Category == nil {
		return ""
	}
	return b.Category.Slug
}

// CityName returns the joined city name or an empty string.
func (b Business) CityName() string {
	if b.City == nil {
		return ""
	}
	return b.City.Name
}

// CountryCode returns the joined country code, falling back to the city's country.
func (b Business) CountryCode() string {
	if c := b.country(); c != nil {
		return c.Code
	}
	return ""
}

// CountryName returns the joined country name, falling back to the city's country.
func (b Business) CountryName() string {
	if c := b.country(); c != nil {
		return c.Name
	}
	return ""
}

func (b Business) country() *Country {
	if b.Country != nil {
		return b.Country
	}
	if b.City != nil && b.City.Country != nil {
		return b.City.Country
	}
	return nil
}
