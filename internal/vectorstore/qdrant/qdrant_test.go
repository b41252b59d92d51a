package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/storetest"
)

type fakePoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// fakeQdrant implements the slice of the Qdrant REST API the client uses.
type fakeQdrant struct {
	mu      sync.Mutex
	size    int
	exists  bool
	indexed []string
	points  map[string]fakePoint
	apiKeys []string
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))

	rest, ok := strings.CutPrefix(r.URL.Path, "/collections/docs")
	if !ok {
		http.NotFound(w, r)
		return
	}
	reply := func(v any) { _ = json.NewEncoder(w).Encode(map[string]any{"result": v, "status": "ok"}) }

	switch {
	case rest == "" && r.Method == http.MethodGet:
		if !f.exists {
			http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
			return
		}
		reply(map[string]any{"config": map[string]any{"params": map[string]any{"vectors": map[string]any{"size": f.size, "distance": "Cosine"}}}})
	case rest == "" && r.Method == http.MethodPut:
		var body struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.size, f.exists, f.points = body.Vectors.Size, true, map[string]fakePoint{}
		reply(true)
	case rest == "" && r.Method == http.MethodDelete:
		if !f.exists {
			http.Error(w, "missing", http.StatusNotFound)
			return
		}
		f.exists, f.points = false, nil
		reply(true)
	case rest == "/index" && r.Method == http.MethodPut:
		var body struct {
			FieldName   string `json:"field_name"`
			FieldSchema string `json:"field_schema"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.indexed = append(f.indexed, body.FieldName+":"+body.FieldSchema)
		reply(true)
	case rest == "/points" && r.Method == http.MethodPut:
		var body struct {
			Points []fakePoint `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, p := range body.Points {
			f.points[p.ID] = p
		}
		reply(map[string]any{"status": "completed"})
	case rest == "/points/search" && r.Method == http.MethodPost:
		var body struct {
			Vector []float32 `json:"vector"`
			Limit  int       `json:"limit"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		var results []domain.SearchResult
		byID := map[string]fakePoint{}
		for id, p := range f.points {
			byID[id] = p
			results = append(results, domain.SearchResult{ID: id, Score: vectorstore.Cosine(p.Vector, body.Vector)})
		}
		var out []map[string]any
		for _, res := range vectorstore.TopK(results, body.Limit) {
			out = append(out, map[string]any{"id": res.ID, "score": res.Score, "payload": byID[res.ID].Payload})
		}
		reply(out)
	case rest == "/points/delete" && r.Method == http.MethodPost:
		var body struct {
			Filter struct {
				Must []struct {
					Key   string `json:"key"`
					Match struct {
						Value string `json:"value"`
					} `json:"match"`
				} `json:"must"`
				MustNot []struct {
					HasID []string `json:"has_id"`
				} `json:"must_not"`
			} `json:"filter"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for id, p := range f.points {
			keep := false
			for _, cond := range body.Filter.Must {
				if p.Payload[cond.Key] != cond.Match.Value {
					keep = true
				}
			}
			for _, cond := range body.Filter.MustNot {
				if slices.Contains(cond.HasID, id) {
					keep = true
				}
			}
			if !keep {
				delete(f.points, id)
			}
		}
		reply(map[string]any{"status": "completed"})
	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusBadRequest)
	}
}

func newFake(t *testing.T) (*fakeQdrant, *Storage) {
	t.Helper()
	fake := &fakeQdrant{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return fake, NewStorage(Config{URL: srv.URL + "/", APIKey: "secret", Collection: "docs"})
}

func TestStorage(t *testing.T) {
	storetest.Run(t, func(t *testing.T) vectorstore.Storage {
		_, s := newFake(t)
		return s
	})
}

func TestInit_CreatesCollectionAndSourceIndex(t *testing.T) {
	fake, s := newFake(t)

	require.NoError(t, s.Init(context.Background(), 4))

	assert.True(t, fake.exists)
	assert.Equal(t, 4, fake.size)
	assert.Equal(t, []string{"source:keyword"}, fake.indexed)
	for _, k := range fake.apiKeys {
		assert.Equal(t, "secret", k)
	}
}

func TestInit_ExistingCollectionSizeMismatch(t *testing.T) {
	fake, s := newFake(t)
	fake.exists, fake.size, fake.points = true, 8, map[string]fakePoint{}

	err := s.Init(context.Background(), 4)

	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestUpsert_NonUUIDIDsAreMapped(t *testing.T) {
	fake, s := newFake(t)
	ctx := context.Background()
	require.NoError(t, s.Init(ctx, 2))

	require.NoError(t, s.Upsert(ctx, []vectorstore.Record{{
		ID:     "uploads/a.pdf#0",
		Unit:   domain.TextUnit{Content: "x", Metadata: domain.Metadata{Source: "uploads/a.pdf", Page: 1, Kind: domain.KindClause}},
		Vector: []float32{1, 0},
	}}))

	require.Len(t, fake.points, 1)
	for id := range fake.points {
		assert.Equal(t, pointID("uploads/a.pdf#0"), id)
	}

	res, err := s.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "uploads/a.pdf#0", res[0].ID)
}

func TestPointID(t *testing.T) {
	id := "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	assert.Equal(t, id, pointID(id))
	assert.Equal(t, pointID("a#1"), pointID("a#1"))
	assert.NotEqual(t, pointID("a#1"), pointID("a#2"))
}

func TestStorage_NotInitialised(t *testing.T) {
	_, s := newFake(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Upsert(ctx, nil), domain.ErrNotInitialized)
	assert.ErrorIs(t, s.DeleteBySource(ctx, "a"), domain.ErrNotInitialized)
	assert.NoError(t, s.Clear(ctx))
}
