// Package docstore is the document-collection abstraction the admin services
// persist through. Implementations exist for process memory, PostgreSQL and
// the hosted provider's databases API.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrNotFound     = errors.New("docstore: document not found")
	ErrConflict     = errors.New("docstore: document already exists")
	ErrInvalidInput = errors.New("docstore: invalid input")
)

// IDAttribute filters on the document id instead of a data attribute.
const IDAttribute = "$id"

// Document is a stored record in a named collection.
type Document struct {
	ID         string
	Collection string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Data       map[string]any
}

// MarshalJSON flattens Data next to the $-prefixed system attributes.
func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Data)+4)
	for k, v := range d.Data {
		out[k] = v
	}
	out["$id"] = d.ID
	out["$collectionId"] = d.Collection
	if !d.CreatedAt.IsZero() {
		out["$createdAt"] = d.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if !d.UpdatedAt.IsZero() {
		out["$updatedAt"] = d.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(out)
}

func (d Document) String(attr string) string {
	switch v := d.Data[attr].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (d Document) Bool(attr string) bool {
	v, _ := d.Data[attr].(bool)
	return v
}

func (d Document) Float(attr string) float64 {
	f, _ := toFloat(d.Data[attr])
	return f
}

func (d Document) Strings(attr string) []string {
	switch v := d.Data[attr].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// DocumentList is one page of a listing plus the total number of matches.
type DocumentList struct {
	Total     int        `json:"total"`
	Documents []Document `json:"documents"`
}

// Store is the document persistence contract.
type Store interface {
	Create(ctx context.Context, collection, id string, data map[string]any) (Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, collection string, q Query) (DocumentList, error)
	// Update shallow-merges patch into the stored data.
	Update(ctx context.Context, collection, id string, patch map[string]any) (Document, error)
	Delete(ctx context.Context, collection, id string) error
	Ping(ctx context.Context) error
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return math.NaN(), false
}

func copyData(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch s := v.(type) {
		case []string:
			out[k] = append([]string(nil), s...)
		case []any:
			out[k] = append([]any(nil), s...)
		default:
			out[k] = v
		}
	}
	return out
}
