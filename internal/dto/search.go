package dto

import "github.com/octobees/directory-search/internal/entity"

// Facets are boolean constraints; a true value requires the matching flag,
// false imposes nothing.
type Facets struct {
	Premium             bool `json:"premium,omitempty"`
	Verified            bool `json:"verified,omitempty"`
	HasCoupons          bool `json:"has_coupons,omitempty"`
	AcceptsOrdersOnline bool `json:"accepts_orders_online,omitempty"`
	KidFriendly         bool `json:"kid_friendly,omitempty"`
	SponsoredAd         bool `json:"sponsored_ad,omitempty"`
}

// Any reports whether at least one facet is requested.
func (f Facets) Any() bool {
	return f.Premium || f.Verified || f.HasCoupons || f.AcceptsOrdersOnline || f.KidFriendly || f.SponsoredAd
}

// SearchRequest contains the caller supplied query for business search.
type SearchRequest struct {
	CategorySlug string
	City         string
	Country      string
	Term         string
	// Nearby expands City to every place within RadiusKm.
	Nearby   bool
	RadiusKm float64
	Facets   Facets
	Sort     string
	Order    string
	Page     int
	PageSize int
	// Token is echoed back so callers can drop superseded responses.
	Token uint64
}

// RankedBusiness is a business placed on a results page. DisplayNumber is the
// ordinal shown to users; sponsored entries carry zero.
type RankedBusiness struct {
	entity.Business
	AverageRating float64 `json:"average_rating"`
	DisplayNumber int     `json:"display_number,omitempty"`
}

// RankedPage is one page of an ordered search result.
type RankedPage struct {
	Items      []RankedBusiness `json:"items"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
	Token      uint64           `json:"token,omitempty"`
}

// NearbyPlacesResponse lists the places within a radius of the origin.
type NearbyPlacesResponse struct {
	Place    string   `json:"place"`
	RadiusKm float64  `json:"radius_km"`
	Places   []string `json:"places"`
}
