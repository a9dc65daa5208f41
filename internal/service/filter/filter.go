package filter

import (
	"strings"

	"github.com/google/uuid"

	"github.com/octobees/directory-search/internal/dto"
	"github.com/octobees/directory-search/internal/entity"
)

// Scope holds the references resolved before composing the criteria.
type Scope struct {
	CategoryID *uuid.UUID
	// Places is the resolved place set; empty means no place constraint.
	Places []string
	// Unresolved is set when a category slug or place name matched no record.
	Unresolved bool
}

// Criteria is the conjunction of constraints a business must satisfy. Store
// adapters translate it into their query language; Matches evaluates it in
// memory.
type Criteria struct {
	Status       entity.BusinessStatus
	CategoryID   *uuid.UUID
	Places       []string
	Country      string
	Term         string
	Facets       dto.Facets
	MatchNothing bool
}

// Compose builds the criteria for a request within the resolved scope.
func Compose(req dto.SearchRequest, scope Scope) Criteria {
	criteria := Criteria{
		Status:       entity.StatusActive,
		Country:      strings.TrimSpace(req.Country),
		Term:         strings.TrimSpace(req.Term),
		Facets:       req.Facets,
		MatchNothing: scope.Unresolved,
	}
	if scope.CategoryID != nil {
		id := *scope.CategoryID
		criteria.CategoryID = &id
	}
	criteria.Places = normalizePlaces(scope.Places)
	return criteria
}

func normalizePlaces(places []string) []string {
	if len(places) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(places))
	result := make([]string, 0, len(places))
	for _, p := range places {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		key := strings.ToLower(p)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, p)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// Matches reports whether the business satisfies every constraint.
func (c Criteria) Matches(b entity.Business) bool {
	if c.MatchNothing {
		return false
	}
	status := c.Status
	if status == "" {
		status = entity.StatusActive
	}
	if b.Status != status {
		return false
	}
	if c.CategoryID != nil {
		if b.Category == nil || b.Category.ID != *c.CategoryID {
			return false
		}
	}
	if len(c.Places) > 0 && !c.matchesPlace(b.CityName()) {
		return false
	}
	if c.Country != "" {
		if !strings.EqualFold(b.CountryCode(), c.Country) && !strings.EqualFold(b.CountryName(), c.Country) {
			return false
		}
	}
	if c.Term != "" {
		term := strings.ToLower(c.Term)
		if !strings.Contains(strings.ToLower(b.Name), term) && !strings.Contains(strings.ToLower(b.Description), term) {
			return false
		}
	}
	return c.matchesFacets(b)
}

func (c Criteria) matchesPlace(city string) bool {
	if city == "" {
		return false
	}
	for _, place := range c.Places {
		if strings.EqualFold(place, city) {
			return true
		}
	}
	return false
}

func (c Criteria) matchesFacets(b entity.Business) bool {
	f := c.Facets
	switch {
	case f.Premium && !b.IsPremium:
		return false
	case f.Verified && !b.IsVerified:
		return false
	case f.HasCoupons && !b.HasCoupons:
		return false
	case f.AcceptsOrdersOnline && !b.AcceptsOrdersOnline:
		return false
	case f.KidFriendly && !b.IsKidFriendly:
		return false
	case f.SponsoredAd && !b.IsSponsoredAd:
		return false
	}
	return true
}

// Apply returns the businesses that satisfy the criteria, preserving order.
func (c Criteria) Apply(businesses []entity.Business) []entity.Business {
	out := make([]entity.Business, 0, len(businesses))
	for _, b := range businesses {
		if c.Matches(b) {
			out = append(out, b)
		}
	}
	return out
}

// FacetColumns lists the store columns required to be true by the facets.
func (c Criteria) FacetColumns() []string {
	f := c.Facets
	var cols []string
	if f.Premium {
		cols = append(cols, "is_premium")
	}
	if f.Verified {
		cols = append(cols, "is_verified")
	}
	if f.HasCoupons {
		cols = append(cols, "has_coupons")
	}
	if f.AcceptsOrdersOnline {
		cols = append(cols, "accepts_orders_online")
	}
	if f.KidFriendly {
		cols = append(cols, "is_kid_friendly")
	}
	if f.SponsoredAd {
		cols = append(cols, "is_sponsored_ad")
	}
	return cols
}
