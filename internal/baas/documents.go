package baas

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kenoadmin.org/internal/docstore"
)

// Documents implements docstore.Store over one database of the hosted service.
type Documents struct {
	c          *Client
	databaseID string
}

var _ docstore.Store = (*Documents)(nil)

func NewDocuments(c *Client, databaseID string) *Documents {
	return &Documents{c: c, databaseID: databaseID}
}

func (d *Documents) path(collection string, id ...string) string {
	p := "/databases/" + url.PathEscape(d.databaseID) + "/collections/" + url.PathEscape(collection) + "/documents"
	if len(id) > 0 {
		p += "/" + url.PathEscape(id[0])
	}
	return p
}

type rawDocument map[string]any

type rawDocumentList struct {
	Total     int           `json:"total"`
	Documents []rawDocument `json:"documents"`
}

func (d *Documents) Create(ctx context.Context, collection, id string, data map[string]any) (docstore.Document, error) {
	if id == "" {
		id = "unique()"
	}
	if data == nil {
		data = map[string]any{}
	}
	req := d.c.admin(ctx).SetBody(map[string]any{"documentId": id, "data": data})
	var body rawDocument
	if err := d.c.send(req, http.MethodPost, d.path(collection), &body); err != nil {
		return docstore.Document{}, err
	}
	return body.document(collection), nil
}

func (d *Documents) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	var body rawDocument
	if err := d.c.send(d.c.admin(ctx), http.MethodGet, d.path(collection, id), &body); err != nil {
		return docstore.Document{}, err
	}
	return body.document(collection), nil
}

func (d *Documents) List(ctx context.Context, collection string, q docstore.Query) (docstore.DocumentList, error) {
	if err := q.Validate(); err != nil {
		return docstore.DocumentList{}, err
	}
	req := d.c.admin(ctx).SetQueryParamsFromValues(url.Values{"queries[]": encodeQueries(q)})
	var body rawDocumentList
	if err := d.c.send(req, http.MethodGet, d.path(collection), &body); err != nil {
		return docstore.DocumentList{}, err
	}
	out := docstore.DocumentList{Total: body.Total, Documents: make([]docstore.Document, 0, len(body.Documents))}
	for _, raw := range body.Documents {
		out.Documents = append(out.Documents, raw.document(collection))
	}
	return out, nil
}

func (d *Documents) Update(ctx context.Context, collection, id string, patch map[string]any) (docstore.Document, error) {
	if patch == nil {
		patch = map[string]any{}
	}
	req := d.c.admin(ctx).SetBody(map[string]any{"data": patch})
	var body rawDocument
	if err := d.c.send(req, http.MethodPatch, d.path(collection, id), &body); err != nil {
		return docstore.Document{}, err
	}
	return body.document(collection), nil
}

func (d *Documents) Delete(ctx context.Context, collection, id string) error {
	return d.c.send(d.c.admin(ctx), http.MethodDelete, d.path(collection, id), nil)
}

// Ping fetches the database descriptor, proving reachability and key scope.
func (d *Documents) Ping(ctx context.Context) error {
	return d.c.send(d.c.admin(ctx), http.MethodGet, "/databases/"+url.PathEscape(d.databaseID), nil)
}

func (r rawDocument) document(collection string) docstore.Document {
	doc := docstore.Document{Collection: collection, Data: map[string]any{}}
	for k, v := range r {
		if !strings.HasPrefix(k, "$") {
			doc.Data[k] = v
			continue
		}
		s, _ := v.(string)
		switch k {
		case "$id":
			doc.ID = s
		case "$collectionId":
			if s != "" {
				doc.Collection = s
			}
		case "$createdAt":
			doc.CreatedAt, _ = time.Parse(time.RFC3339Nano, s)
		case "$updatedAt":
			doc.UpdatedAt, _ = time.Parse(time.RFC3339Nano, s)
		}
	}
	return doc
}

type queryJSON struct {
	Method    string `json:"method"`
	Attribute string `json:"attribute,omitempty"`
	Values    []any  `json:"values,omitempty"`
}

func marshalQuery(q queryJSON) string {
	b, err := json.Marshal(q)
	if err != nil {
		panic(fmt.Sprintf("baas: encode query: %v", err))
	}
	return string(b)
}

func equalQuery(attr string, values ...any) string {
	return marshalQuery(queryJSON{Method: "equal", Attribute: attr, Values: values})
}

func limitQuery(n int) string {
	return marshalQuery(queryJSON{Method: "limit", Values: []any{n}})
}

// encodeQueries renders q in the provider's JSON query syntax.
func encodeQueries(q docstore.Query) []string {
	out := make([]string, 0, len(q.Filters)+4)
	for _, f := range q.Filters {
		out = append(out, equalQuery(f.Attribute, f.Values...))
	}
	if q.Search != "" && len(q.SearchAttrs) > 0 {
		if len(q.SearchAttrs) == 1 {
			out = append(out, marshalQuery(queryJSON{Method: "search", Attribute: q.SearchAttrs[0], Values: []any{q.Search}}))
		} else {
			ors := make([]any, 0, len(q.SearchAttrs))
			for _, a := range q.SearchAttrs {
				ors = append(ors, queryJSON{Method: "contains", Attribute: a, Values: []any{q.Search}})
			}
			out = append(out, marshalQuery(queryJSON{Method: "or", Values: ors}))
		}
	}
	if q.OrderBy != "" {
		method := "orderAsc"
		if q.Desc {
			method = "orderDesc"
		}
		out = append(out, marshalQuery(queryJSON{Method: method, Attribute: q.OrderBy}))
	}
	out = append(out, limitQuery(q.EffectiveLimit()))
	if q.Offset > 0 {
		out = append(out, marshalQuery(queryJSON{Method: "offset", Values: []any{q.Offset}}))
	}
	return out
}
