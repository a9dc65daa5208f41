package pagination

import (
	"github.com/octobees/directory-search/internal/dto"
	"github.com/octobees/directory-search/internal/entity"
	"github.com/octobees/directory-search/internal/service/ranking"
)

// TotalPages returns ceil(total/pageSize), never less than 1.
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// DisplayNumbers returns the user-facing ordinal for every ranked item.
// Sponsored entries get 0 and do not consume a number.
func DisplayNumbers(ranked []entity.Business) []int {
	numbers := make([]int, len(ranked))
	next := 0
	for i, b := range ranked {
		if b.IsSponsoredAd {
			continue
		}
		next++
		numbers[i] = next
	}
	return numbers
}

// Paginate slices the full ranked sequence into the requested 1-based page.
// Pages past the end come back empty, however large the page number.
func Paginate(ranked []entity.Business, page, pageSize int) dto.RankedPage {
	total := len(ranked)
	result := dto.RankedPage{
		Items:      []dto.RankedBusiness{},
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: TotalPages(total, pageSize),
	}
	if page < 1 || pageSize <= 0 || page > result.TotalPages {
		return result
	}

	start := (page - 1) * pageSize
	if start >= total {
		return result
	}
	end := min(start+pageSize, total)

	// numbering runs over the whole sequence so it stays continuous across pages
	numbers := DisplayNumbers(ranked)
	result.Items = make([]dto.RankedBusiness, 0, end-start)
	for i := start; i < end; i++ {
		result.Items = append(result.Items, dto.RankedBusiness{
			Business:      ranked[i],
			AverageRating: ranking.AverageRating(ranked[i].Reviews),
			DisplayNumber: numbers[i],
		})
	}
	return result
}
