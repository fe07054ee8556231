// Package memory implements the store capability in process. It backs
// tests and embedded deployments; scripted mutations run under the
// store lock, so they are atomic per document like their server-side
// counterparts.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"fleetdex/internal/store/types"

	"github.com/spf13/cast"
)

// Backend is an in-memory store. Safe for concurrent use.
type Backend struct {
	mu      sync.RWMutex
	indexes map[string]map[string]types.Document
}

// New creates an empty in-memory store.
func New() *Backend {
	return &Backend{
		indexes: make(map[string]map[string]types.Document),
	}
}

func (b *Backend) docs(index string) map[string]types.Document {
	m, ok := b.indexes[index]
	if !ok {
		m = make(map[string]types.Document)
		b.indexes[index] = m
	}
	return m
}

func (b *Backend) Index(_ context.Context, index, id string, doc types.Document, opts types.WriteOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	docs := b.docs(index)
	if opts.CreateOnly {
		if _, exists := docs[id]; exists {
			return types.ErrConflict
		}
	}
	docs[id] = deepCopy(doc)
	return nil
}

func (b *Backend) Get(_ context.Context, index, id string) (types.Document, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	doc, ok := b.indexes[index][id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return deepCopy(doc), nil
}

func (b *Backend) Update(_ context.Context, index, id string, partial types.Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, ok := b.indexes[index][id]
	if !ok {
		return types.ErrNotFound
	}
	merge(doc, partial)
	return nil
}

func (b *Backend) DeleteByQuery(_ context.Context, indexes []string, ids []string, _ types.DeleteOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, index := range indexes {
		docs := b.indexes[index]
		for _, id := range ids {
			delete(docs, id)
		}
	}
	return nil
}

func (b *Backend) Search(_ context.Context, index string, q types.Query) ([]types.Hit, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	var hits []types.Hit
	for id, doc := range b.indexes[index] {
		if !matches(id, doc, q.Filter) {
			continue
		}
		if q.Text != "" && !containsText(doc, q.Text) {
			continue
		}
		hits = append(hits, types.Hit{ID: id, Source: deepCopy(doc)})
	}
	b.mu.RUnlock()

	sortHits(hits, q.Sort)

	if q.From > 0 {
		if q.From >= len(hits) {
			return nil, nil
		}
		hits = hits[q.From:]
	}
	if q.Size > 0 && q.Size < len(hits) {
		hits = hits[:q.Size]
	}

	if len(q.Include) > 0 || len(q.Exclude) > 0 {
		for i := range hits {
			hits[i].Source = project(hits[i].Source, q.Include, q.Exclude)
		}
	}
	return hits, nil
}

func (b *Backend) UpdateByScript(_ context.Context, index string, filter types.Filter, script types.Script) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, doc := range b.indexes[index] {
		if !matches(id, doc, filter) {
			continue
		}
		applyScript(doc, script)
	}
	return nil
}

func (b *Backend) Close(context.Context) error {
	return nil
}

// applyScript mutates one document in place. Caller holds the write
// lock, so the mutation is atomic with respect to all other operations.
func applyScript(doc types.Document, s types.Script) {
	switch s.Op {
	case types.OpSetField:
		doc[s.Field] = s.Param

	case types.OpAppendToken:
		current, ok := doc[s.Field]
		if !ok || current == nil {
			doc[s.Field] = s.Param
			return
		}
		doc[s.Field] = cast.ToString(current) + "," + s.Param

	case types.OpRemoveToken:
		current, ok := doc[s.Field]
		if !ok || current == nil {
			return
		}
		var kept []string
		for _, tok := range strings.Split(cast.ToString(current), ",") {
			if tok != s.Param {
				kept = append(kept, tok)
			}
		}
		doc[s.Field] = strings.Join(kept, ",")
	}
}

func matches(id string, doc types.Document, f types.Filter) bool {
	switch {
	case len(f.IDs) > 0:
		for _, want := range f.IDs {
			if id == want {
				return true
			}
		}
		return false
	case f.Term != nil:
		return doc[f.Term.Field] == f.Term.Value
	case f.Token != nil:
		current, ok := doc[f.Token.Field]
		if !ok || current == nil {
			return false
		}
		want := cast.ToString(f.Token.Value)
		for _, tok := range strings.Split(cast.ToString(current), ",") {
			if tok == want {
				return true
			}
		}
		return false
	}
	return true
}

func containsText(v any, text string) bool {
	switch t := v.(type) {
	case string:
		return strings.Contains(strings.ToLower(t), strings.ToLower(text))
	case map[string]any:
		for _, vv := range t {
			if containsText(vv, text) {
				return true
			}
		}
	case types.Document:
		for _, vv := range t {
			if containsText(vv, text) {
				return true
			}
		}
	case []any:
		for _, vv := range t {
			if containsText(vv, text) {
				return true
			}
		}
	}
	return false
}

func sortHits(hits []types.Hit, sorts []types.Sort) {
	if len(sorts) == 0 {
		// Deterministic order for pagination.
		sort.Slice(hits, func(i, j int) bool { return hits[i].ID < hits[j].ID })
		return
	}
	sort.SliceStable(hits, func(i, j int) bool {
		for _, s := range sorts {
			a := pathGet(hits[i].Source, s.Field)
			b := pathGet(hits[j].Source, s.Field)
			cmp := compare(a, b)
			if cmp == 0 {
				continue
			}
			if s.Direction == types.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func compare(a, b any) int {
	af, aerr := cast.ToFloat64E(a)
	bf, berr := cast.ToFloat64E(b)
	if aerr == nil && berr == nil {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(cast.ToString(a), cast.ToString(b))
}

func project(doc types.Document, include, exclude []string) types.Document {
	if len(include) > 0 {
		out := types.Document{}
		for _, field := range include {
			if v, ok := pathLookup(doc, field); ok {
				pathSet(out, field, v)
			}
		}
		return out
	}
	for _, field := range exclude {
		pathDelete(doc, field)
	}
	return doc
}

// Dotted-path helpers over nested map documents.

func pathGet(doc types.Document, path string) any {
	v, _ := pathLookup(doc, path)
	return v
}

func pathLookup(doc types.Document, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = map[string]any(doc)
	for _, part := range parts {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func pathSet(doc types.Document, path string, value any) {
	parts := strings.Split(path, ".")
	current := map[string]any(doc)
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(current[part])
		if !ok {
			next = map[string]any{}
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

func pathDelete(doc types.Document, path string) {
	parts := strings.Split(path, ".")
	current := map[string]any(doc)
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(current[part])
		if !ok {
			return
		}
		current = next
	}
	delete(current, parts[len(parts)-1])
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case types.Document:
		return t, true
	}
	return nil, false
}

func merge(dst, src map[string]any) {
	for k, v := range src {
		if sv, ok := asMap(v); ok {
			if dv, ok := asMap(dst[k]); ok {
				merge(dv, sv)
				continue
			}
			copied := map[string]any{}
			merge(copied, sv)
			dst[k] = copied
			continue
		}
		dst[k] = copyValue(v)
	}
}

func deepCopy(doc types.Document) types.Document {
	out := make(types.Document, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = copyValue(vv)
		}
		return m
	case types.Document:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = copyValue(vv)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = copyValue(vv)
		}
		return s
	case []string:
		s := make([]string, len(t))
		copy(s, t)
		return s
	default:
		return v
	}
}
