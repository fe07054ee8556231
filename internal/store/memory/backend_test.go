package memory

import (
	"context"
	"sync"
	"testing"

	"fleetdex/internal/store/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackend_IndexAndGet(t *testing.T) {
	b := New()

	doc := types.Document{"name": "worker-1", "groups": "default"}
	err := b.Index(context.Background(), "agents", "a1", doc, types.WriteOptions{})
	require.NoError(t, err)

	got, err := b.Get(context.Background(), "agents", "a1")
	require.NoError(t, err)
	assert.Equal(t, "worker-1", got["name"])
	assert.Equal(t, "default", got["groups"])
}

func TestBackend_Index_CreateOnlyConflict(t *testing.T) {
	b := New()

	opts := types.WriteOptions{CreateOnly: true}
	err := b.Index(context.Background(), "agents", "a1", types.Document{"name": "first"}, opts)
	require.NoError(t, err)

	err = b.Index(context.Background(), "agents", "a1", types.Document{"name": "second"}, opts)
	assert.ErrorIs(t, err, types.ErrConflict)

	// The original document is untouched.
	got, err := b.Get(context.Background(), "agents", "a1")
	require.NoError(t, err)
	assert.Equal(t, "first", got["name"])
}

func TestBackend_Index_OverwriteWithoutCreateOnly(t *testing.T) {
	b := New()

	err := b.Index(context.Background(), "agents", "a1", types.Document{"name": "first"}, types.WriteOptions{})
	require.NoError(t, err)
	err = b.Index(context.Background(), "agents", "a1", types.Document{"name": "second"}, types.WriteOptions{})
	require.NoError(t, err)

	got, err := b.Get(context.Background(), "agents", "a1")
	require.NoError(t, err)
	assert.Equal(t, "second", got["name"])
}

func TestBackend_Get_NotFound(t *testing.T) {
	b := New()

	_, err := b.Get(context.Background(), "agents", "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestBackend_Get_ReturnsCopy(t *testing.T) {
	b := New()

	err := b.Index(context.Background(), "agents", "a1", types.Document{
		"host": map[string]any{"ip": []any{"10.0.0.1"}},
	}, types.WriteOptions{})
	require.NoError(t, err)

	got, err := b.Get(context.Background(), "agents", "a1")
	require.NoError(t, err)
	got["host"].(map[string]any)["ip"] = []any{"tampered"}

	again, err := b.Get(context.Background(), "agents", "a1")
	require.NoError(t, err)
	assert.Equal(t, []any{"10.0.0.1"}, again["host"].(map[string]any)["ip"])
}

func TestBackend_Update_MergesNestedFields(t *testing.T) {
	b := New()

	err := b.Index(context.Background(), "agents", "a1", types.Document{
		"name": "worker-1",
		"host": map[string]any{
			"ip": []any{"10.0.0.1"},
			"os": map[string]any{"full": "Debian 12"},
		},
	}, types.WriteOptions{})
	require.NoError(t, err)

	err = b.Update(context.Background(), "agents", "a1", types.Document{
		"host": map[string]any{"os": map[string]any{"full": "Debian 13"}},
	})
	require.NoError(t, err)

	got, err := b.Get(context.Background(), "agents", "a1")
	require.NoError(t, err)
	host := got["host"].(map[string]any)
	assert.Equal(t, []any{"10.0.0.1"}, host["ip"], "sibling field must survive the merge")
	assert.Equal(t, "Debian 13", host["os"].(map[string]any)["full"])
	assert.Equal(t, "worker-1", got["name"])
}

func TestBackend_Update_NotFound(t *testing.T) {
	b := New()

	err := b.Update(context.Background(), "agents", "missing", types.Document{"name": "x"})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestBackend_DeleteByQuery_SpansIndexes(t *testing.T) {
	b := New()
	ctx := context.Background()

	for _, index := range []string{"agents", "agents-keys"} {
		require.NoError(t, b.Index(ctx, index, "a1", types.Document{"n": 1}, types.WriteOptions{}))
		require.NoError(t, b.Index(ctx, index, "a2", types.Document{"n": 2}, types.WriteOptions{}))
	}

	err := b.DeleteByQuery(ctx, []string{"agents", "agents-keys"}, []string{"a1", "ghost"}, types.DeleteOptions{ProceedOnConflict: true})
	require.NoError(t, err)

	for _, index := range []string{"agents", "agents-keys"} {
		_, err := b.Get(ctx, index, "a1")
		assert.ErrorIs(t, err, types.ErrNotFound)
		_, err = b.Get(ctx, index, "a2")
		assert.NoError(t, err)
	}
}

func TestBackend_Search_ByIDs(t *testing.T) {
	b := seedAgents(t)

	hits, err := b.Search(context.Background(), "agents", types.Query{
		Filter: types.Filter{IDs: []string{"a1", "a3"}},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a1", "a3"}, hitIDs(hits))
}

func TestBackend_Search_ByTerm(t *testing.T) {
	b := seedAgents(t)

	hits, err := b.Search(context.Background(), "agents", types.Query{
		Filter: types.Filter{Term: &types.Term{Field: "name", Value: "worker-2"}},
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a2", hits[0].ID)
}

func TestBackend_Search_ByToken(t *testing.T) {
	b := seedAgents(t)

	hits, err := b.Search(context.Background(), "agents", types.Query{
		Filter: types.Filter{Token: &types.Term{Field: "groups", Value: "web"}},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a1", "a2"}, hitIDs(hits))
}

func TestBackend_Search_TokenDoesNotMatchSubstring(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.Index(ctx, "agents", "a1", types.Document{"groups": "default,web-frontend"}, types.WriteOptions{}))

	hits, err := b.Search(ctx, "agents", types.Query{
		Filter: types.Filter{Token: &types.Term{Field: "groups", Value: "web"}},
	})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBackend_Search_Text(t *testing.T) {
	b := seedAgents(t)

	hits, err := b.Search(context.Background(), "agents", types.Query{Text: "debian"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a1"}, hitIDs(hits))
}

func TestBackend_Search_Pagination(t *testing.T) {
	b := seedAgents(t)

	// Default order is by id, so pages are stable across calls.
	page1, err := b.Search(context.Background(), "agents", types.Query{Size: 2})
	require.NoError(t, err)
	page2, err := b.Search(context.Background(), "agents", types.Query{From: 2, Size: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"a1", "a2"}, hitIDs(page1))
	assert.Equal(t, []string{"a3"}, hitIDs(page2))
}

func TestBackend_Search_FromPastEnd(t *testing.T) {
	b := seedAgents(t)

	hits, err := b.Search(context.Background(), "agents", types.Query{From: 10})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBackend_Search_SortDescending(t *testing.T) {
	b := seedAgents(t)

	hits, err := b.Search(context.Background(), "agents", types.Query{
		Sort: []types.Sort{{Field: "name", Direction: types.Desc}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a3", "a2", "a1"}, hitIDs(hits))
}

func TestBackend_Search_SortByNestedField(t *testing.T) {
	b := seedAgents(t)

	hits, err := b.Search(context.Background(), "agents", types.Query{
		Sort: []types.Sort{{Field: "host.os.full", Direction: types.Asc}},
	})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "a3", hits[2].ID, "only a3 reports Ubuntu, which sorts last")
}

func TestBackend_Search_IncludeProjection(t *testing.T) {
	b := seedAgents(t)

	hits, err := b.Search(context.Background(), "agents", types.Query{
		Filter:  types.Filter{IDs: []string{"a1"}},
		Include: []string{"name", "host.os.full"},
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)

	src := hits[0].Source
	assert.Equal(t, "worker-1", src["name"])
	assert.Equal(t, "Debian 12", src["host"].(map[string]any)["os"].(map[string]any)["full"])
	assert.NotContains(t, src, "groups")
	assert.NotContains(t, src["host"].(map[string]any), "ip")
}

func TestBackend_Search_ExcludeProjection(t *testing.T) {
	b := seedAgents(t)

	hits, err := b.Search(context.Background(), "agents", types.Query{
		Filter:  types.Filter{IDs: []string{"a1"}},
		Exclude: []string{"key", "host"},
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.NotContains(t, hits[0].Source, "key")
	assert.NotContains(t, hits[0].Source, "host")
	assert.Contains(t, hits[0].Source, "name")
}

func TestBackend_Search_RejectsMixedProjection(t *testing.T) {
	b := New()

	_, err := b.Search(context.Background(), "agents", types.Query{
		Include: []string{"name"},
		Exclude: []string{"key"},
	})
	assert.ErrorIs(t, err, types.ErrBadProjection)
}

func TestBackend_UpdateByScript_AppendToken(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.Index(ctx, "agents", "a1", types.Document{"groups": "default"}, types.WriteOptions{}))

	script := types.Script{Op: types.OpAppendToken, Field: "groups", Param: "web"}
	require.NoError(t, b.UpdateByScript(ctx, "agents", types.Filter{IDs: []string{"a1"}}, script))

	got, err := b.Get(ctx, "agents", "a1")
	require.NoError(t, err)
	assert.Equal(t, "default,web", got["groups"])

	// A second append duplicates the token rather than deduplicating.
	require.NoError(t, b.UpdateByScript(ctx, "agents", types.Filter{IDs: []string{"a1"}}, script))
	got, err = b.Get(ctx, "agents", "a1")
	require.NoError(t, err)
	assert.Equal(t, "default,web,web", got["groups"])
}

func TestBackend_UpdateByScript_AppendToUnsetField(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.Index(ctx, "agents", "a1", types.Document{"name": "bare"}, types.WriteOptions{}))

	script := types.Script{Op: types.OpAppendToken, Field: "groups", Param: "web"}
	require.NoError(t, b.UpdateByScript(ctx, "agents", types.Filter{IDs: []string{"a1"}}, script))

	got, err := b.Get(ctx, "agents", "a1")
	require.NoError(t, err)
	assert.Equal(t, "web", got["groups"], "no leading separator when the field was unset")
}

func TestBackend_UpdateByScript_SetField(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.Index(ctx, "agents", "a1", types.Document{"groups": "default,web"}, types.WriteOptions{}))

	script := types.Script{Op: types.OpSetField, Field: "groups", Param: "db"}
	require.NoError(t, b.UpdateByScript(ctx, "agents", types.Filter{IDs: []string{"a1"}}, script))

	got, err := b.Get(ctx, "agents", "a1")
	require.NoError(t, err)
	assert.Equal(t, "db", got["groups"])
}

func TestBackend_UpdateByScript_RemoveToken(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.Index(ctx, "agents", "a1", types.Document{"groups": "default,web,db"}, types.WriteOptions{}))

	script := types.Script{Op: types.OpRemoveToken, Field: "groups", Param: "web"}
	require.NoError(t, b.UpdateByScript(ctx, "agents", types.Filter{IDs: []string{"a1"}}, script))

	got, err := b.Get(ctx, "agents", "a1")
	require.NoError(t, err)
	assert.Equal(t, "default,db", got["groups"], "order of the remaining tokens is preserved")
}

func TestBackend_UpdateByScript_RemoveLastToken(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.Index(ctx, "agents", "a1", types.Document{"groups": "web"}, types.WriteOptions{}))

	script := types.Script{Op: types.OpRemoveToken, Field: "groups", Param: "web"}
	require.NoError(t, b.UpdateByScript(ctx, "agents", types.Filter{IDs: []string{"a1"}}, script))

	got, err := b.Get(ctx, "agents", "a1")
	require.NoError(t, err)
	assert.Equal(t, "", got["groups"], "removing the last token leaves an empty string, not an unset field")
}

func TestBackend_UpdateByScript_RemoveFromUnsetField(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.Index(ctx, "agents", "a1", types.Document{"name": "bare"}, types.WriteOptions{}))

	script := types.Script{Op: types.OpRemoveToken, Field: "groups", Param: "web"}
	require.NoError(t, b.UpdateByScript(ctx, "agents", types.Filter{IDs: []string{"a1"}}, script))

	got, err := b.Get(ctx, "agents", "a1")
	require.NoError(t, err)
	assert.NotContains(t, got, "groups", "remove must not materialize an unset field")
}

func TestBackend_UpdateByScript_TokenFilter(t *testing.T) {
	b := seedAgents(t)
	ctx := context.Background()

	script := types.Script{Op: types.OpRemoveToken, Field: "groups", Param: "web"}
	filter := types.Filter{Token: &types.Term{Field: "groups", Value: "web"}}
	require.NoError(t, b.UpdateByScript(ctx, "agents", filter, script))

	hits, err := b.Search(ctx, "agents", types.Query{Filter: filter})
	require.NoError(t, err)
	assert.Empty(t, hits, "no agent should remain in the group")

	got, err := b.Get(ctx, "agents", "a3")
	require.NoError(t, err)
	assert.Equal(t, "default,db", got["groups"], "non-members are untouched")
}

func TestBackend_UpdateByScript_ConcurrentAppends(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.Index(ctx, "agents", "a1", types.Document{"groups": "default"}, types.WriteOptions{}))

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			script := types.Script{Op: types.OpAppendToken, Field: "groups", Param: "g"}
			assert.NoError(t, b.UpdateByScript(ctx, "agents", types.Filter{IDs: []string{"a1"}}, script))
		}()
	}
	wg.Wait()

	got, err := b.Get(ctx, "agents", "a1")
	require.NoError(t, err)
	// Every append survives: no read-modify-write race can drop one.
	want := "default"
	for i := 0; i < n; i++ {
		want += ",g"
	}
	assert.Equal(t, want, got["groups"])
}

func seedAgents(t *testing.T) *Backend {
	t.Helper()
	b := New()
	ctx := context.Background()

	docs := map[string]types.Document{
		"a1": {
			"name":   "worker-1",
			"groups": "default,web",
			"host": map[string]any{
				"ip": []any{"10.0.0.1"},
				"os": map[string]any{"full": "Debian 12"},
			},
		},
		"a2": {
			"name":   "worker-2",
			"groups": "default,web",
			"host": map[string]any{
				"os": map[string]any{"full": "Alpine 3.20"},
			},
		},
		"a3": {
			"name":   "worker-3",
			"groups": "default,db",
			"host": map[string]any{
				"os": map[string]any{"full": "Ubuntu 24.04"},
			},
		},
	}
	for id, doc := range docs {
		require.NoError(t, b.Index(ctx, "agents", id, doc, types.WriteOptions{}))
	}
	return b
}

func hitIDs(hits []types.Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids
}
