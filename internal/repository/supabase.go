package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"github.com/octobees/directory-search/internal/entity"
	"github.com/octobees/directory-search/internal/service/filter"
)

// Hosted store tables and functions.
const (
	BusinessesTable = "businesses"
	CategoriesTable = "categories"
	CitiesTable     = "cities"

	// IncrementCounterRPC is a SQL function taking (business_id uuid,
	// counter text) that runs a single UPDATE ... RETURNING.
	IncrementCounterRPC = "increment_business_counter"
)

// restClient is the part of *supabase.Client the repository needs.
type restClient interface {
	From(table string) *postgrest.QueryBuilder
	Rpc(name, count string, rpcBody interface{}) string
}

var (
	_ restClient          = (*supabase.Client)(nil)
	_ DirectoryRepository = (*SupabaseDirectoryRepository)(nil)
)

// SupabaseDirectoryRepository implements DirectoryRepository against the
// hosted PostgREST endpoint.
type SupabaseDirectoryRepository struct {
	client     restClient
	normalizer *Normalizer
}

// NewSupabaseDirectoryRepository wires the hosted-store adapter.
func NewSupabaseDirectoryRepository(client *supabase.Client, normalizer *Normalizer) *SupabaseDirectoryRepository {
	return &SupabaseDirectoryRepository{client: client, normalizer: normalizer}
}

// NewSupabaseClient builds a service client for the project URL.
func NewSupabaseClient(url, key string) (*supabase.Client, error) {
	if url == "" || key == "" {
		return nil, errors.New("supabase url and key are required")
	}
	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return client, nil
}

const businessColumns = "id,slug,name,description,address,phone,email,website,images,status," +
	"is_premium,is_verified,has_coupons,accepts_orders_online,is_kid_friendly,is_sponsored_ad," +
	"view_count,click_count,created_at,updated_at," +
	"reviews(id,business_id,rating,title,content,created_at)"

// businessSelect embeds the joined projections; a join becomes !inner when a
// filter is applied to it so unmatched businesses drop out.
func businessSelect(criteria filter.Criteria) string {
	cityJoin, countryJoin := "cities", "countries"
	if len(criteria.Places) > 0 {
		cityJoin += "!inner"
	}
	if criteria.Country != "" {
		countryJoin += "!inner"
	}
	return businessColumns +
		",category:categories(id,name,slug,icon)" +
		",city:" + cityJoin + "(id,name,latitude,longitude,country_id,country:countries(id,name,code))" +
		",country:" + countryJoin + "(id,name,code)"
}

// quoteValue wraps a filter value in double quotes so PostgREST reserved
// characters (commas, parentheses, dots) are taken literally.
func quoteValue(v string) string {
	v = strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v)
	return `"` + v + `"`
}

// FetchActiveBusinesses translates criteria into PostgREST filters. Place and
// country filters use ilike on the embedded resources; the exact
// case-insensitive comparison is repeated in memory by the caller.
func (r *SupabaseDirectoryRepository) FetchActiveBusinesses(ctx context.Context, criteria filter.Criteria) ([]entity.Business, error) {
	if criteria.MatchNothing {
		return []entity.Business{}, nil
	}
	status := criteria.Status
	if status == "" {
		status = entity.StatusActive
	}

	query := r.client.From(BusinessesTable).
		Select(businessSelect(criteria), "", false).
		Eq("status", string(status))

	if criteria.CategoryID != nil {
		query = query.Eq("category_id", criteria.CategoryID.String())
	}
	if len(criteria.Places) > 0 {
		parts := make([]string, len(criteria.Places))
		for i, p := range criteria.Places {
			parts[i] = "name.ilike." + quoteValue(p)
		}
		query = query.Or(strings.Join(parts, ","), "city")
	}
	if criteria.Country != "" {
		country := quoteValue(criteria.Country)
		query = query.Or("code.ilike."+country+",name.ilike."+country, "country")
	}
	if criteria.Term != "" {
		pattern := quoteValue("*" + criteria.Term + "*")
		query = query.Or("name.ilike."+pattern+",description.ilike."+pattern, "")
	}
	for _, col := range criteria.FacetColumns() {
		query = query.Eq(col, "true")
	}
	query = query.Order("created_at", &postgrest.OrderOpts{Ascending: false})

	data, _, err := query.Execute()
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []businessRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode businesses: %w", err)
	}

	businesses := make([]entity.Business, 0, len(rows))
	for _, row := range rows {
		b, err := row.toEntity()
		if err != nil {
			log.Printf("component=directory_repository backend=supabase action=skip_business id=%s err=%v", row.ID, err)
			continue
		}
		if r.normalizer != nil {
			if err := r.normalizer.Business(&b); err != nil {
				log.Printf("component=directory_repository backend=supabase action=skip_business id=%s err=%v", b.ID, err)
				continue
			}
		}
		businesses = append(businesses, b)
	}
	return businesses, nil
}

type cityRow struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
}

func (r *SupabaseDirectoryRepository) fetchCities(ctx context.Context, name string) ([]cityRow, error) {
	query := r.client.From(CitiesTable).Select("id,name,latitude,longitude", "", false)
	if name != "" {
		query = query.Ilike("name", name)
	}
	data, _, err := query.Order("name", &postgrest.OrderOpts{Ascending: true}).Execute()
	if err != nil {
		return nil, fmt.Errorf("list cities: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []cityRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode cities: %w", err)
	}
	return rows, nil
}

// FetchPlaceCoordinates prefers the first same-named city that has a position.
func (r *SupabaseDirectoryRepository) FetchPlaceCoordinates(ctx context.Context, name string) (*entity.Coordinates, error) {
	rows, err := r.fetchCities(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("fetch place coordinates: %w", err)
	}
	for _, row := range rows {
		if !strings.EqualFold(row.Name, name) || row.Latitude == nil || row.Longitude == nil {
			continue
		}
		return &entity.Coordinates{Latitude: *row.Latitude, Longitude: *row.Longitude}, nil
	}
	return nil, nil
}

// FetchAllPlacesWithCoordinates lists every city with a stored position.
func (r *SupabaseDirectoryRepository) FetchAllPlacesWithCoordinates(ctx context.Context) ([]entity.PlaceCoordinates, error) {
	rows, err := r.fetchCities(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list place coordinates: %w", err)
	}
	places := make([]entity.PlaceCoordinates, 0, len(rows))
	for _, row := range rows {
		city := entity.City{ID: row.ID, Name: row.Name, Latitude: row.Latitude, Longitude: row.Longitude}
		if place, ok := r.normalizer.place(city); ok {
			places = append(places, place)
		}
	}
	return places, nil
}

// ResolveCategoryIDBySlug looks up a category id by its exact slug.
func (r *SupabaseDirectoryRepository) ResolveCategoryIDBySlug(ctx context.Context, slug string) (*uuid.UUID, error) {
	data, _, err := r.client.From(CategoriesTable).
		Select("id,slug", "", false).
		Eq("slug", slug).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("resolve category %q: %w", slug, err)
	}
	var rows []struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode category %q: %w", slug, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	id := rows[0].ID
	return &id, nil
}

// ResolvePlaceIDByName looks up a city id by name, case-insensitively.
func (r *SupabaseDirectoryRepository) ResolvePlaceIDByName(ctx context.Context, name string) (*uuid.UUID, error) {
	rows, err := r.fetchCities(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("resolve place %q: %w", name, err)
	}
	for _, row := range rows {
		if strings.EqualFold(row.Name, name) {
			id := row.ID
			return &id, nil
		}
	}
	return nil, nil
}

// IncrementViewCount bumps view_count through the counter function.
func (r *SupabaseDirectoryRepository) IncrementViewCount(ctx context.Context, id uuid.UUID) (int64, error) {
	return r.increment(ctx, id, "view_count")
}

// IncrementClickCount bumps click_count through the counter function.
func (r *SupabaseDirectoryRepository) IncrementClickCount(ctx context.Context, id uuid.UUID) (int64, error) {
	return r.increment(ctx, id, "click_count")
}

func (r *SupabaseDirectoryRepository) increment(ctx context.Context, id uuid.UUID, counter string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	body := map[string]any{"business_id": id.String(), "counter": counter}
	raw := strings.TrimSpace(r.client.Rpc(IncrementCounterRPC, "", body))
	return parseCounterResponse(raw, id)
}

// parseCounterResponse decodes the RPC body: a bare integer, null for an
// unknown business, or a PostgREST error object.
func parseCounterResponse(raw string, id uuid.UUID) (int64, error) {
	switch raw {
	case "":
		return 0, fmt.Errorf("increment counter for %s: empty response", id)
	case "null":
		return 0, ErrBusinessNotFound
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	var apiErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(raw), &apiErr); err == nil && apiErr.Message != "" {
		return 0, fmt.Errorf("increment counter for %s: %s (%s)", id, apiErr.Message, apiErr.Code)
	}
	return 0, fmt.Errorf("increment counter for %s: unexpected response %q", id, raw)
}

// businessRow mirrors the PostgREST payload; timestamps arrive as strings
// with or without a zone offset.
type businessRow struct {
	entity.Business
	CreatedAt string      `json:"created_at"`
	UpdatedAt string      `json:"updated_at"`
	Reviews   []reviewRow `json:"reviews"`
}

type reviewRow struct {
	entity.Review
	CreatedAt string `json:"created_at"`
}

func (row businessRow) toEntity() (entity.Business, error) {
	b := row.Business
	var err error
	if b.CreatedAt, err = parseTimestamp(row.CreatedAt); err != nil {
		return entity.Business{}, fmt.Errorf("created_at: %w", err)
	}
	if b.UpdatedAt, err = parseTimestamp(row.UpdatedAt); err != nil {
		return entity.Business{}, fmt.Errorf("updated_at: %w", err)
	}
	if b.City != nil && b.City.Country != nil {
		b.City.CountryID = b.City.Country.ID
	}

	b.Reviews = make([]entity.Review, 0, len(row.Reviews))
	for _, rr := range row.Reviews {
		review := rr.Review
		if review.CreatedAt, err = parseTimestamp(rr.CreatedAt); err != nil {
			return entity.Business{}, fmt.Errorf("review created_at: %w", err)
		}
		b.Reviews = append(b.Reviews, review)
	}
	return b, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}
