package docstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"kenoadmin.org/internal/ids"
)

type memDoc struct {
	doc Document
	seq uint64
}

// Memory is a mutex-guarded in-process Store.
type Memory struct {
	mu     sync.RWMutex
	cols   map[string]map[string]*memDoc
	unique map[string][][]string
	seq    uint64
	now    func() time.Time
}

// MemoryOption customises a Memory store.
type MemoryOption func(*Memory)

// WithUnique declares a unique index over attrs in collection.
func WithUnique(collection string, attrs ...string) MemoryOption {
	return func(m *Memory) {
		m.unique[collection] = append(m.unique[collection], attrs)
	}
}

// WithMemoryClock overrides the timestamp source.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		cols:   make(map[string]map[string]*memDoc),
		unique: make(map[string][][]string),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ Store = (*Memory)(nil)

func (m *Memory) Create(ctx context.Context, collection, id string, data map[string]any) (Document, error) {
	if strings.TrimSpace(collection) == "" {
		return Document{}, fmt.Errorf("%w: collection is required", ErrInvalidInput)
	}
	if id == "" {
		id = ids.New()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	col := m.cols[collection]
	if col == nil {
		col = make(map[string]*memDoc)
		m.cols[collection] = col
	}
	if _, ok := col[id]; ok {
		return Document{}, fmt.Errorf("%w: %s/%s", ErrConflict, collection, id)
	}
	data = copyData(data)
	if err := m.checkUniqueLocked(collection, id, data); err != nil {
		return Document{}, err
	}
	now := m.now().UTC()
	m.seq++
	col[id] = &memDoc{
		doc: Document{ID: id, Collection: collection, CreatedAt: now, UpdatedAt: now, Data: data},
		seq: m.seq,
	}
	return cloneDoc(col[id].doc), nil
}

func (m *Memory) Get(ctx context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.cols[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return cloneDoc(d.doc), nil
}

func (m *Memory) List(ctx context.Context, collection string, q Query) (DocumentList, error) {
	if err := q.Validate(); err != nil {
		return DocumentList{}, err
	}
	m.mu.RLock()
	matched := make([]*memDoc, 0)
	for _, d := range m.cols[collection] {
		if matches(d.doc, q) {
			matched = append(matched, d)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if q.OrderBy != "" {
			c := compareValues(matched[i].doc.Data[q.OrderBy], matched[j].doc.Data[q.OrderBy])
			if c != 0 {
				if q.Desc {
					return c > 0
				}
				return c < 0
			}
		}
		return matched[i].seq < matched[j].seq
	})

	out := DocumentList{Total: len(matched), Documents: []Document{}}
	start := q.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.EffectiveLimit()
	if end > len(matched) {
		end = len(matched)
	}
	for _, d := range matched[start:end] {
		out.Documents = append(out.Documents, cloneDoc(d.doc))
	}
	return out, nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, patch map[string]any) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.cols[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	merged := copyData(d.doc.Data)
	for k, v := range copyData(patch) {
		merged[k] = v
	}
	if err := m.checkUniqueLocked(collection, id, merged); err != nil {
		return Document{}, err
	}
	d.doc.Data = merged
	d.doc.UpdatedAt = m.now().UTC()
	return cloneDoc(d.doc), nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cols[collection][id]; !ok {
		return ErrNotFound
	}
	delete(m.cols[collection], id)
	return nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) checkUniqueLocked(collection, id string, data map[string]any) error {
	for _, attrs := range m.unique[collection] {
		values := make([]any, len(attrs))
		complete := true
		for i, a := range attrs {
			v, ok := data[a]
			if !ok || v == nil {
				complete = false
				break
			}
			values[i] = v
		}
		if !complete {
			continue
		}
		for otherID, other := range m.cols[collection] {
			if otherID == id {
				continue
			}
			same := true
			for i, a := range attrs {
				if compareValues(other.doc.Data[a], values[i]) != 0 {
					same = false
					break
				}
			}
			if same {
				return fmt.Errorf("%w: %s(%s)", ErrConflict, collection, strings.Join(attrs, ","))
			}
		}
	}
	return nil
}

func matches(d Document, q Query) bool {
	for _, f := range q.Filters {
		if !matchFilter(d, f) {
			return false
		}
	}
	if q.Search != "" {
		term := strings.ToLower(q.Search)
		found := false
		for _, a := range q.SearchAttrs {
			if strings.Contains(strings.ToLower(d.String(a)), term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func matchFilter(d Document, f Filter) bool {
	var got any
	if f.Attribute == IDAttribute {
		got = d.ID
	} else {
		got = d.Data[f.Attribute]
	}
	for _, want := range f.Values {
		switch arr := got.(type) {
		case []string:
			for _, item := range arr {
				if compareValues(item, want) == 0 {
					return true
				}
			}
		case []any:
			for _, item := range arr {
				if compareValues(item, want) == 0 {
					return true
				}
			}
		default:
			if got != nil && compareValues(got, want) == 0 {
				return true
			}
		}
	}
	return false
}

// compareValues orders numbers numerically and everything else by its string form.
func compareValues(a, b any) int {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func cloneDoc(d Document) Document {
	d.Data = copyData(d.Data)
	return d
}
