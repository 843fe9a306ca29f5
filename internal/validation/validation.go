package validation

import (
	"errors"
	"strings"
)

// MaxCities caps how many cities one batch request may carry.
const MaxCities = 20

// ErrNoCities is returned when the request carries no cities field or an empty list.
var ErrNoCities = errors.New("no cities provided")

// ErrNotAList is returned when the cities field is not an array.
var ErrNotAList = errors.New("cities must be provided as an array")

// ErrNoValidCities is returned when no entry survives cleaning.
var ErrNoValidCities = errors.New("no valid city names provided")

// ErrTooManyCities is returned when more than MaxCities entries survive cleaning.
var ErrTooManyCities = errors.New("too many cities requested (max 20)")

// CleanCities filters a decoded JSON array down to usable city names:
// non-string entries and whitespace-only strings are dropped, survivors are
// trimmed. Duplicates are kept; deduplication is not this layer's job.
func CleanCities(raw []interface{}) ([]string, error) {
	if len(raw) == 0 {
		return nil, ErrNoCities
	}

	clean := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		clean = append(clean, s)
	}

	if len(clean) == 0 {
		return nil, ErrNoValidCities
	}
	if len(clean) > MaxCities {
		return nil, ErrTooManyCities
	}
	return clean, nil
}
