package repository

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"
	"golang.org/x/net/idna"

	"github.com/octobees/directory-search/internal/entity"
)

const defaultPhoneRegion = "US"

var idnaProfile = idna.Lookup

// Normalizer validates decoded rows and canonicalises contact fields before
// they leave the repository.
type Normalizer struct {
	validate      *validator.Validate
	defaultRegion string
}

// NewNormalizer builds a normalizer; region is the phone region used when a
// business has no country code.
func NewNormalizer(region string) *Normalizer {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = defaultPhoneRegion
	}
	return &Normalizer{
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		defaultRegion: region,
	}
}

// Business validates b and rewrites phone and website in place. Unparseable
// contact values are dropped rather than rejected; a failed struct
// validation is returned.
func (n *Normalizer) Business(b *entity.Business) error {
	if b == nil {
		return errors.New("business is nil")
	}
	if err := n.validate.Struct(b); err != nil {
		return fmt.Errorf("invalid business: %w", err)
	}
	if !b.Status.Valid() {
		return fmt.Errorf("invalid business status %q", b.Status)
	}
	if err := n.Reviews(b.Reviews); err != nil {
		return err
	}

	if b.Phone != nil {
		region := b.CountryCode()
		if region == "" {
			region = n.defaultRegion
		}
		b.Phone = optional(normalizePhone(*b.Phone, region))
	}
	if b.Website != nil {
		b.Website = optional(normalizeWebsite(*b.Website))
	}
	if b.Email != nil {
		b.Email = optional(strings.ToLower(strings.TrimSpace(*b.Email)))
	}
	return nil
}

// Reviews validates decoded review rows.
func (n *Normalizer) Reviews(reviews []entity.Review) error {
	for i := range reviews {
		if err := n.validate.Struct(reviews[i]); err != nil {
			return fmt.Errorf("invalid review: %w", err)
		}
	}
	return nil
}

// City validates a decoded city row.
func (n *Normalizer) City(c *entity.City) error {
	if c == nil {
		return errors.New("city is nil")
	}
	if err := n.validate.Struct(c); err != nil {
		return fmt.Errorf("invalid city: %w", err)
	}
	return nil
}

// place converts a city with a position into a PlaceCoordinates, logging and
// rejecting cities that fail validation. A nil normalizer only checks that
// both coordinates are present.
func (n *Normalizer) place(c entity.City) (entity.PlaceCoordinates, bool) {
	coords, ok := c.Coordinates()
	if !ok {
		return entity.PlaceCoordinates{}, false
	}
	if n != nil {
		if err := n.City(&c); err != nil {
			log.Printf("component=directory_repository action=skip_place name=%q err=%v", c.Name, err)
			return entity.PlaceCoordinates{}, false
		}
	}
	return entity.PlaceCoordinates{Name: c.Name, Coordinates: coords}, true
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// normalizePhone formats raw as E.164, or returns "" when it is not a valid
// number for the region.
func normalizePhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	number, err := phonenumbers.Parse(raw, strings.ToUpper(region))
	if err != nil {
		return ""
	}
	if !phonenumbers.IsPossibleNumber(number) || !phonenumbers.IsValidNumber(number) {
		return ""
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}

// normalizeWebsite returns an https URL with an ASCII (punycode) host.
func normalizeWebsite(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}

	host, err := idnaProfile.ToASCII(strings.ToLower(strings.Trim(u.Hostname(), ".")))
	if err != nil || host == "" {
		return ""
	}
	if port := u.Port(); port != "" {
		host = host + ":" + port
	}
	u.Host = host
	return u.String()
}
