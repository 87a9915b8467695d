package docstore

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// MaxLimit caps every listing; larger requests are clamped, never paginated.
	MaxLimit     = 100
	DefaultLimit = 25
)

var attrPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Filter matches documents whose attribute equals any of Values.
type Filter struct {
	Attribute string
	Values    []any
}

// Equal builds an equality (or IN, with several values) filter.
func Equal(attr string, values ...any) Filter {
	return Filter{Attribute: attr, Values: values}
}

// Query selects, orders and bounds a listing.
type Query struct {
	Filters     []Filter
	OrderBy     string
	Desc        bool
	Limit       int
	Offset      int
	Search      string
	SearchAttrs []string
}

func NewQuery(filters ...Filter) Query {
	return Query{Filters: filters}
}

func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

func (q Query) WithOffset(n int) Query {
	q.Offset = n
	return q
}

func (q Query) OrderAsc(attr string) Query {
	q.OrderBy, q.Desc = attr, false
	return q
}

func (q Query) OrderDesc(attr string) Query {
	q.OrderBy, q.Desc = attr, true
	return q
}

// WithSearch matches documents where any of attrs contains term, case-insensitively.
func (q Query) WithSearch(term string, attrs ...string) Query {
	q.Search = strings.TrimSpace(term)
	q.SearchAttrs = attrs
	return q
}

// EffectiveLimit applies the default and the MaxLimit cap.
func (q Query) EffectiveLimit() int {
	switch {
	case q.Limit <= 0:
		return DefaultLimit
	case q.Limit > MaxLimit:
		return MaxLimit
	default:
		return q.Limit
	}
}

// Validate rejects attribute names that are not plain identifiers.
func (q Query) Validate() error {
	if q.Offset < 0 {
		return fmt.Errorf("%w: negative offset", ErrInvalidInput)
	}
	for _, f := range q.Filters {
		if f.Attribute != IDAttribute && !attrPattern.MatchString(f.Attribute) {
			return fmt.Errorf("%w: attribute %q", ErrInvalidInput, f.Attribute)
		}
	}
	if q.OrderBy != "" && !attrPattern.MatchString(q.OrderBy) {
		return fmt.Errorf("%w: order attribute %q", ErrInvalidInput, q.OrderBy)
	}
	if q.Search != "" {
		for _, a := range q.SearchAttrs {
			if !attrPattern.MatchString(a) {
				return fmt.Errorf("%w: search attribute %q", ErrInvalidInput, a)
			}
		}
	}
	return nil
}

// PageQuery converts a 1-based page number and page size into a bounded query.
func PageQuery(page, limit int) Query {
	q := Query{Limit: limit}
	limit = q.EffectiveLimit()
	if page < 1 {
		page = 1
	}
	q.Limit = limit
	q.Offset = (page - 1) * limit
	return q
}
