package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"kenoadmin.org/internal/ids"
)

const pgErrUniqueViolation = "23505"

// PG stores documents as jsonb rows of a single documents table.
type PG struct {
	db *sql.DB
}

var _ Store = (*PG)(nil)

// OpenPG opens a pooled connection through the pgx stdlib driver.
func OpenPG(dsn string) (*PG, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &PG{db: db}, nil
}

// NewPG wraps an existing handle.
func NewPG(db *sql.DB) *PG { return &PG{db: db} }

func (s *PG) Close() error { return s.db.Close() }

func (s *PG) DB() *sql.DB { return s.db }

func (s *PG) Create(ctx context.Context, collection, id string, data map[string]any) (Document, error) {
	if s.db == nil {
		return Document{}, errors.New("database connection unavailable")
	}
	if strings.TrimSpace(collection) == "" {
		return Document{}, fmt.Errorf("%w: collection is required", ErrInvalidInput)
	}
	if id == "" {
		id = ids.New()
	}
	raw, err := json.Marshal(nonNil(data))
	if err != nil {
		return Document{}, fmt.Errorf("marshal document: %w", err)
	}
	doc := Document{ID: id, Collection: collection}
	row := s.db.QueryRowContext(ctx, `
		insert into documents (collection, id, data)
		values ($1, $2, $3)
		returning data, created_at, updated_at
	`, collection, id, raw)
	if err := scanDoc(row, &doc); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return Document{}, fmt.Errorf("%w: %s/%s", ErrConflict, collection, id)
		}
		return Document{}, err
	}
	return doc, nil
}

func (s *PG) Get(ctx context.Context, collection, id string) (Document, error) {
	if s.db == nil {
		return Document{}, errors.New("database connection unavailable")
	}
	doc := Document{ID: id, Collection: collection}
	row := s.db.QueryRowContext(ctx, `
		select data, created_at, updated_at
		from documents
		where collection = $1 and id = $2
	`, collection, id)
	if err := scanDoc(row, &doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

func (s *PG) List(ctx context.Context, collection string, q Query) (DocumentList, error) {
	if s.db == nil {
		return DocumentList{}, errors.New("database connection unavailable")
	}
	if err := q.Validate(); err != nil {
		return DocumentList{}, err
	}
	where, args := buildWhere(collection, q)

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from documents where `+where, args...).Scan(&total); err != nil {
		return DocumentList{}, err
	}

	order := "created_at, id"
	if q.OrderBy != "" {
		dir := "asc"
		if q.Desc {
			dir = "desc"
		}
		order = fmt.Sprintf("data->>'%s' %s, created_at, id", q.OrderBy, dir)
	}
	args = append(args, q.EffectiveLimit(), q.Offset)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		select id, data, created_at, updated_at
		from documents
		where %s
		order by %s
		limit $%d offset $%d
	`, where, order, len(args)-1, len(args)), args...)
	if err != nil {
		return DocumentList{}, err
	}
	defer rows.Close()

	out := DocumentList{Total: total, Documents: []Document{}}
	for rows.Next() {
		var (
			doc = Document{Collection: collection}
			raw []byte
		)
		if err := rows.Scan(&doc.ID, &raw, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return DocumentList{}, err
		}
		if err := decodeData(raw, &doc); err != nil {
			return DocumentList{}, err
		}
		out.Documents = append(out.Documents, doc)
	}
	return out, rows.Err()
}

func (s *PG) Update(ctx context.Context, collection, id string, patch map[string]any) (Document, error) {
	if s.db == nil {
		return Document{}, errors.New("database connection unavailable")
	}
	raw, err := json.Marshal(nonNil(patch))
	if err != nil {
		return Document{}, fmt.Errorf("marshal patch: %w", err)
	}
	doc := Document{ID: id, Collection: collection}
	row := s.db.QueryRowContext(ctx, `
		update documents
		set data = data || $3::jsonb, updated_at = now()
		where collection = $1 and id = $2
		returning data, created_at, updated_at
	`, collection, id, raw)
	if err := scanDoc(row, &doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return Document{}, fmt.Errorf("%w: %s/%s", ErrConflict, collection, id)
		}
		return Document{}, err
	}
	return doc, nil
}

func (s *PG) Delete(ctx context.Context, collection, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from documents where collection = $1 and id = $2`, collection, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PG) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	return s.db.PingContext(ctx)
}

// buildWhere renders filters as placeholders; attribute names are validated identifiers.
func buildWhere(collection string, q Query) (string, []any) {
	args := []any{collection}
	clauses := []string{"collection = $1"}
	for _, f := range q.Filters {
		if len(f.Values) == 0 {
			clauses = append(clauses, "false")
			continue
		}
		holders := make([]string, len(f.Values))
		for i, v := range f.Values {
			args = append(args, textValue(v))
			holders[i] = fmt.Sprintf("$%d", len(args))
		}
		list := strings.Join(holders, ", ")
		if f.Attribute == IDAttribute {
			clauses = append(clauses, fmt.Sprintf("id in (%s)", list))
			continue
		}
		clauses = append(clauses, fmt.Sprintf(
			"(data->>'%[1]s' in (%[2]s) or (jsonb_typeof(data->'%[1]s') = 'array' and data->'%[1]s' ?| array[%[2]s]))",
			f.Attribute, list))
	}
	if q.Search != "" && len(q.SearchAttrs) > 0 {
		args = append(args, "%"+q.Search+"%")
		ors := make([]string, len(q.SearchAttrs))
		for i, a := range q.SearchAttrs {
			ors[i] = fmt.Sprintf("data->>'%s' ilike $%d", a, len(args))
		}
		clauses = append(clauses, "("+strings.Join(ors, " or ")+")")
	}
	return strings.Join(clauses, " and "), args
}

func textValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDoc(row rowScanner, doc *Document) error {
	var raw []byte
	if err := row.Scan(&raw, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return err
	}
	return decodeData(raw, doc)
}

func decodeData(raw []byte, doc *Document) error {
	doc.Data = map[string]any{}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &doc.Data); err != nil {
		return fmt.Errorf("decode document %s/%s: %w", doc.Collection, doc.ID, err)
	}
	return nil
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
