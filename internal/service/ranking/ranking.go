package ranking

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/octobees/directory-search/internal/entity"
)

// SortKey selects the ordering applied inside each sponsorship tier.
type SortKey string

const (
	SortDefault  SortKey = "default"
	SortDistance SortKey = "distance"
	SortRating   SortKey = "rating"
	SortName     SortKey = "name"
)

// SortDirection is ascending or descending; empty means the key's default.
type SortDirection string

const (
	DirectionDefault SortDirection = ""
	Ascending        SortDirection = "asc"
	Descending       SortDirection = "desc"
)

// ProxyDistanceOrdering documents how SortDistance is served: no searcher
// location is known after filtering, so creation time stands in for
// distance. Newest first unless the caller asks for ascending.
const ProxyDistanceOrdering = "created_at"

// ParseSortKey maps user input to a SortKey; empty input selects the default.
func ParseSortKey(raw string) (SortKey, error) {
	switch key := SortKey(strings.ToLower(strings.TrimSpace(raw))); key {
	case "":
		return SortDefault, nil
	case SortDefault, SortDistance, SortRating, SortName:
		return key, nil
	default:
		return "", fmt.Errorf("unsupported sort key %q (expected default, distance, rating, name)", raw)
	}
}

// ParseSortDirection maps user input to a SortDirection.
func ParseSortDirection(raw string) (SortDirection, error) {
	switch dir := strings.ToLower(strings.TrimSpace(raw)); dir {
	case "":
		return DirectionDefault, nil
	case "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	default:
		return "", fmt.Errorf("unsupported sort direction %q (expected asc or desc)", raw)
	}
}

// AverageRating is the mean review rating, or 0 without reviews.
func AverageRating(reviews []entity.Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	var sum float64
	for _, r := range reviews {
		sum += r.Rating
	}
	return sum / float64(len(reviews))
}

// Rank returns a new slice ordered by sponsorship, then by key. The sort is
// stable so equal items keep their incoming order; the input is not modified.
func Rank(candidates []entity.Business, key SortKey, dir SortDirection) []entity.Business {
	ranked := slices.Clone(candidates)
	if len(ranked) < 2 {
		return ranked
	}

	type item struct {
		pos int
		b   entity.Business
	}
	items := make([]item, len(ranked))
	var ratings []float64
	if key == SortRating {
		ratings = make([]float64, len(ranked))
	}
	for i, b := range ranked {
		items[i] = item{pos: i, b: b}
		if ratings != nil {
			ratings[i] = AverageRating(b.Reviews)
		}
	}

	within := tierComparator(key, dir, ratings)
	slices.SortStableFunc(items, func(a, b item) int {
		if c := compareSponsored(a.b, b.b); c != 0 {
			return c
		}
		return within(a.pos, a.b, b.pos, b.b)
	})

	for i, it := range items {
		ranked[i] = it.b
	}
	return ranked
}

func compareSponsored(a, b entity.Business) int {
	switch {
	case a.IsSponsoredAd == b.IsSponsoredAd:
		return 0
	case a.IsSponsoredAd:
		return -1
	default:
		return 1
	}
}

type comparator func(aPos int, a entity.Business, bPos int, b entity.Business) int

func tierComparator(key SortKey, dir SortDirection, ratings []float64) comparator {
	switch key {
	case SortRating:
		// ratings are indexed by incoming position
		return func(aPos int, _ entity.Business, bPos int, _ entity.Business) int {
			return directed(cmp.Compare(ratings[aPos], ratings[bPos]), dir, Descending)
		}
	case SortName:
		return func(_ int, a entity.Business, _ int, b entity.Business) int {
			return directed(strings.Compare(a.Name, b.Name), dir, Ascending)
		}
	case SortDistance:
		return func(_ int, a entity.Business, _ int, b entity.Business) int {
			return directed(a.CreatedAt.Compare(b.CreatedAt), dir, Descending)
		}
	default:
		return func(_ int, a entity.Business, _ int, b entity.Business) int {
			if a.IsPremium != b.IsPremium {
				if a.IsPremium {
					return -1
				}
				return 1
			}
			return b.CreatedAt.Compare(a.CreatedAt)
		}
	}
}

// directed flips an ascending comparison when the effective direction is
// descending.
func directed(c int, dir, fallback SortDirection) int {
	if dir == DirectionDefault {
		dir = fallback
	}
	if dir == Descending {
		return -c
	}
	return c
}
