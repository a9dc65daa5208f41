package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/octobees/directory-search/internal/entity"
	"github.com/octobees/directory-search/internal/service/filter"
)

// PGXDirectoryRepository implements DirectoryRepository using pgx.
type PGXDirectoryRepository struct {
	pool       pgxPool
	normalizer *Normalizer
}

// NewPGXDirectoryRepository wires a pgx backed repository.
func NewPGXDirectoryRepository(pool *pgxpool.Pool, normalizer *Normalizer) *PGXDirectoryRepository {
	return &PGXDirectoryRepository{pool: pool, normalizer: normalizer}
}

var (
	_ pgxPool             = (*pgxpool.Pool)(nil)
	_ DirectoryRepository = (*PGXDirectoryRepository)(nil)
)

const selectBusinessesSQL = `
        SELECT
            b.id,
            b.slug,
            b.name,
            COALESCE(b.description, ''),
            b.address,
            b.phone,
            b.email,
            b.website,
            COALESCE(b.images, '{}'),
            b.status,
            b.is_premium,
            b.is_verified,
            b.has_coupons,
            b.accepts_orders_online,
            b.is_kid_friendly,
            b.is_sponsored_ad,
            b.view_count,
            b.click_count,
            b.created_at,
            b.updated_at,
            cat.id::text,
            cat.name,
            cat.slug,
            cat.icon,
            ci.id::text,
            ci.name,
            ci.latitude,
            ci.longitude,
            co.id::text,
            co.name,
            co.code
        FROM businesses b
        LEFT JOIN categories cat ON cat.id = b.category_id
        LEFT JOIN cities ci ON ci.id = b.city_id
        LEFT JOIN countries co ON co.id = COALESCE(b.country_id, ci.country_id)
    `

// buildBusinessQuery translates criteria into a WHERE clause with positional
// arguments. Callers check MatchNothing before querying.
func buildBusinessQuery(criteria filter.Criteria) (string, []any) {
	status := criteria.Status
	if status == "" {
		status = entity.StatusActive
	}

	var (
		clauses = []string{"b.status = $1"}
		args    = []any{string(status)}
		idx     = 2
	)

	if criteria.CategoryID != nil {
		clauses = append(clauses, fmt.Sprintf("b.category_id = $%d", idx))
		args = append(args, criteria.CategoryID.String())
		idx++
	}
	if len(criteria.Places) > 0 {
		lowered := make([]string, len(criteria.Places))
		for i, p := range criteria.Places {
			lowered[i] = strings.ToLower(p)
		}
		clauses = append(clauses, fmt.Sprintf("LOWER(ci.name) = ANY($%d)", idx))
		args = append(args, lowered)
		idx++
	}
	if criteria.Country != "" {
		clauses = append(clauses, fmt.Sprintf("(LOWER(co.code) = LOWER($%d) OR LOWER(co.name) = LOWER($%d))", idx, idx))
		args = append(args, criteria.Country)
		idx++
	}
	if criteria.Term != "" {
		pattern := "%" + escapeLike(criteria.Term) + "%"
		clauses = append(clauses, fmt.Sprintf("(b.name ILIKE $%d OR b.description ILIKE $%d)", idx, idx))
		args = append(args, pattern)
		idx++
	}
	for _, col := range criteria.FacetColumns() {
		clauses = append(clauses, "b."+col+" = TRUE")
	}

	query := strings.Builder{}
	query.WriteString(selectBusinessesSQL)
	query.WriteString(" WHERE ")
	query.WriteString(strings.Join(clauses, " AND "))
	query.WriteString(" ORDER BY b.created_at DESC, b.id")
	return query.String(), args
}

func escapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
}

// FetchActiveBusinesses loads matching businesses and their reviews.
func (r *PGXDirectoryRepository) FetchActiveBusinesses(ctx context.Context, criteria filter.Criteria) ([]entity.Business, error) {
	if criteria.MatchNothing {
		return []entity.Business{}, nil
	}

	query, args := buildBusinessQuery(criteria)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	businesses, err := r.scanBusinesses(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(businesses) == 0 {
		return businesses, nil
	}

	if err := r.attachReviews(ctx, businesses); err != nil {
		return nil, err
	}
	return r.dropInvalidReviews(businesses), nil
}

// dropInvalidReviews removes businesses carrying a review that fails validation.
func (r *PGXDirectoryRepository) dropInvalidReviews(businesses []entity.Business) []entity.Business {
	if r.normalizer == nil {
		return businesses
	}
	kept := businesses[:0]
	for _, b := range businesses {
		if err := r.normalizer.Reviews(b.Reviews); err != nil {
			log.Printf("component=directory_repository action=skip_business id=%s err=%v", b.ID, err)
			continue
		}
		kept = append(kept, b)
	}
	return kept
}

func (r *PGXDirectoryRepository) scanBusinesses(rows pgx.Rows) ([]entity.Business, error) {
	businesses := make([]entity.Business, 0)
	for rows.Next() {
		var (
			b           entity.Business
			status      string
			address     sql.NullString
			phone       sql.NullString
			email       sql.NullString
			website     sql.NullString
			catID       sql.NullString
			catName     sql.NullString
			catSlug     sql.NullString
			catIcon     sql.NullString
			cityID      sql.NullString
			cityName    sql.NullString
			cityLat     sql.NullFloat64
			cityLng     sql.NullFloat64
			countryID   sql.NullString
			countryName sql.NullString
			countryCode sql.NullString
		)

		err := rows.Scan(
			&b.ID,
			&b.Slug,
			&b.Name,
			&b.Description,
			&address,
			&phone,
			&email,
			&website,
			&b.Images,
			&status,
			&b.IsPremium,
			&b.IsVerified,
			&b.HasCoupons,
			&b.AcceptsOrdersOnline,
			&b.IsKidFriendly,
			&b.IsSponsoredAd,
			&b.ViewCount,
			&b.ClickCount,
			&b.CreatedAt,
			&b.UpdatedAt,
			&catID,
			&catName,
			&catSlug,
			&catIcon,
			&cityID,
			&cityName,
			&cityLat,
			&cityLng,
			&countryID,
			&countryName,
			&countryCode,
		)
		if err != nil {
			return nil, fmt.Errorf("scan business: %w", err)
		}

		b.Status = entity.BusinessStatus(status)
		b.Address = nullStringToPtr(address)
		b.Phone = nullStringToPtr(phone)
		b.Email = nullStringToPtr(email)
		b.Website = nullStringToPtr(website)

		if catID.Valid {
			b.Category = &entity.Category{
				ID:   parseUUIDOrNil(catID.String),
				Name: catName.String,
				Slug: catSlug.String,
				Icon: nullStringToPtr(catIcon),
			}
		}
		if countryID.Valid {
			b.Country = &entity.Country{
				ID:   parseUUIDOrNil(countryID.String),
				Name: countryName.String,
				Code: countryCode.String,
			}
		}
		if cityID.Valid {
			city := &entity.City{
				ID:        parseUUIDOrNil(cityID.String),
				Name:      cityName.String,
				Latitude:  nullFloatToPtr(cityLat),
				Longitude: nullFloatToPtr(cityLng),
			}
			if b.Country != nil {
				city.CountryID = b.Country.ID
			}
			b.City = city
		}

		if r.normalizer != nil {
			if err := r.normalizer.Business(&b); err != nil {
				log.Printf("component=directory_repository action=skip_business id=%s err=%v", b.ID, err)
				continue
			}
		}
		businesses = append(businesses, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate businesses: %w", err)
	}
	return businesses, nil
}

const selectReviewsSQL = `
        SELECT id, business_id, rating, title, content, created_at
        FROM reviews
        WHERE business_id = ANY($1::uuid[])
        ORDER BY created_at
    `

func (r *PGXDirectoryRepository) attachReviews(ctx context.Context, businesses []entity.Business) error {
	ids := make([]string, len(businesses))
	index := make(map[uuid.UUID]int, len(businesses))
	for i, b := range businesses {
		ids[i] = b.ID.String()
		index[b.ID] = i
	}

	rows, err := r.pool.Query(ctx, selectReviewsSQL, ids)
	if err != nil {
		return fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			review  entity.Review
			title   sql.NullString
			content sql.NullString
		)
		if err := rows.Scan(&review.ID, &review.BusinessID, &review.Rating, &title, &content, &review.CreatedAt); err != nil {
			return fmt.Errorf("scan review: %w", err)
		}
		review.Title = nullStringToPtr(title)
		review.Content = nullStringToPtr(content)

		i, ok := index[review.BusinessID]
		if !ok {
			continue
		}
		businesses[i].Reviews = append(businesses[i].Reviews, review)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate reviews: %w", err)
	}
	return nil
}

// FetchPlaceCoordinates returns the stored position of the first city with
// the given name, compared case-insensitively.
func (r *PGXDirectoryRepository) FetchPlaceCoordinates(ctx context.Context, name string) (*entity.Coordinates, error) {
	var lat, lng sql.NullFloat64
	err := r.pool.QueryRow(ctx, `
        SELECT latitude, longitude
        FROM cities
        WHERE LOWER(name) = LOWER($1)
        ORDER BY (latitude IS NULL OR longitude IS NULL), name
        LIMIT 1
    `, name).Scan(&lat, &lng)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch place coordinates: %w", err)
	}
	if !lat.Valid || !lng.Valid {
		return nil, nil
	}
	return &entity.Coordinates{Latitude: lat.Float64, Longitude: lng.Float64}, nil
}

// FetchAllPlacesWithCoordinates lists every city with a stored position.
// Rows failing validation are skipped.
func (r *PGXDirectoryRepository) FetchAllPlacesWithCoordinates(ctx context.Context) ([]entity.PlaceCoordinates, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, name, latitude, longitude
        FROM cities
        WHERE latitude IS NOT NULL AND longitude IS NOT NULL
        ORDER BY name
    `)
	if err != nil {
		return nil, fmt.Errorf("list place coordinates: %w", err)
	}
	defer rows.Close()

	places := make([]entity.PlaceCoordinates, 0)
	for rows.Next() {
		var (
			city     entity.City
			lat, lng float64
		)
		if err := rows.Scan(&city.ID, &city.Name, &lat, &lng); err != nil {
			return nil, fmt.Errorf("scan place coordinates: %w", err)
		}
		city.Latitude, city.Longitude = &lat, &lng
		if place, ok := r.normalizer.place(city); ok {
			places = append(places, place)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate place coordinates: %w", err)
	}
	return places, nil
}

// ResolveCategoryIDBySlug looks up a category id by its exact slug.
func (r *PGXDirectoryRepository) ResolveCategoryIDBySlug(ctx context.Context, slug string) (*uuid.UUID, error) {
	return r.resolveID(ctx, `SELECT id FROM categories WHERE slug = $1 LIMIT 1`, slug, "category")
}

// ResolvePlaceIDByName looks up a city id by name, case-insensitively.
func (r *PGXDirectoryRepository) ResolvePlaceIDByName(ctx context.Context, name string) (*uuid.UUID, error) {
	return r.resolveID(ctx, `SELECT id FROM cities WHERE LOWER(name) = LOWER($1) ORDER BY name LIMIT 1`, name, "place")
}

func (r *PGXDirectoryRepository) resolveID(ctx context.Context, query, key, kind string) (*uuid.UUID, error) {
	var id uuid.UUID
	if err := r.pool.QueryRow(ctx, query, key).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve %s %q: %w", kind, key, err)
	}
	return &id, nil
}

// IncrementViewCount atomically bumps view_count and returns the new value.
func (r *PGXDirectoryRepository) IncrementViewCount(ctx context.Context, id uuid.UUID) (int64, error) {
	return r.increment(ctx, `UPDATE businesses SET view_count = view_count + 1 WHERE id = $1 RETURNING view_count`, id)
}

// IncrementClickCount atomically bumps click_count and returns the new value.
func (r *PGXDirectoryRepository) IncrementClickCount(ctx context.Context, id uuid.UUID) (int64, error) {
	return r.increment(ctx, `UPDATE businesses SET click_count = click_count + 1 WHERE id = $1 RETURNING click_count`, id)
}

func (r *PGXDirectoryRepository) increment(ctx context.Context, query string, id uuid.UUID) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, query, id).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrBusinessNotFound
		}
		return 0, fmt.Errorf("increment counter for %s: %w", id, err)
	}
	return count, nil
}

func nullStringToPtr(value sql.NullString) *string {
	if value.Valid {
		val := value.String
		return &val
	}
	return nil
}

func nullFloatToPtr(value sql.NullFloat64) *float64 {
	if value.Valid {
		val := value.Float64
		return &val
	}
	return nil
}

func parseUUIDOrNil(raw string) uuid.UUID {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}
