package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// Storage is a minimal REST client to Qdrant.
// It uses cosine distance, creates the collection if missing and keeps a
// keyword index on the source payload field for filtered deletes.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	mu        sync.RWMutex
	dimension int
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// DefaultCollection is the collection used when none is configured.
const DefaultCollection = "docqa"

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if cfg.URL == "" {
		cfg.URL = "http://localhost:6333"
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

type collectionInfo struct {
	Result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

// Init creates the collection when it does not exist. An existing collection
// must have the same vector size.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if err := vectorstore.CheckDimension(dimension); err != nil {
		return err
	}
	var info collectionInfo
	status, err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil, &info)
	switch {
	case status == http.StatusNotFound:
		if err := s.create(ctx, dimension); err != nil {
			return err
		}
	case err != nil:
		return err
	case info.Result.Config.Params.Vectors.Size != dimension:
		return fmt.Errorf("%w: collection %s has size %d, embedder produces %d",
			domain.ErrDimensionMismatch, s.collection, info.Result.Config.Params.Vectors.Size, dimension)
	}

	s.mu.Lock()
	s.dimension = dimension
	s.mu.Unlock()
	return nil
}

func (s *Storage) create(ctx context.Context, dimension int) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if _, err := s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil); err != nil {
		return err
	}
	index := map[string]any{"field_name": "source", "field_schema": "keyword"}
	_, err := s.do(ctx, http.MethodPut, s.collectionURL("/index?wait=true"), index, nil)
	return err
}

func (s *Storage) dim() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dimension == 0 {
		return 0, domain.ErrNotInitialized
	}
	return s.dimension, nil
}

// pointID maps a record ID onto the UUID space Qdrant accepts.
func pointID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String()
}

func (s *Storage) Upsert(ctx context.Context, records []vectorstore.Record) error {
	dim, err := s.dim()
	if err != nil {
		return err
	}
	if err := vectorstore.CheckRecords(records, dim); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	points := make([]map[string]any, len(records))
	for i, r := range records {
		points[i] = map[string]any{
			"id":     pointID(r.ID),
			"vector": r.Vector,
			"payload": map[string]any{
				"record_id": r.ID,
				"source":    r.Unit.Metadata.Source,
				"page":      r.Unit.Metadata.Page,
				"kind":      string(r.Unit.Metadata.Kind),
				"content":   r.Unit.Content,
			},
		}
	}
	body := map[string]any{"points": points}
	_, err = s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), body, nil)
	return err
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	dim, err := s.dim()
	if err != nil {
		return nil, err
	}
	if err := vectorstore.CheckQuery(vector, dim); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      any     `json:"id"`
			Score   float64 `json:"score"`
			Payload struct {
				RecordID string `json:"record_id"`
				Source   string `json:"source"`
				Page     int    `json:"page"`
				Kind     string `json:"kind"`
				Content  string `json:"content"`
			} `json:"payload"`
		} `json:"result"`
	}
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		id := r.Payload.RecordID
		if id == "" {
			id = fmt.Sprint(r.ID)
		}
		results = append(results, domain.SearchResult{
			ID: id,
			Unit: domain.TextUnit{
				Content: r.Payload.Content,
				Metadata: domain.Metadata{
					Source: r.Payload.Source,
					Page:   r.Payload.Page,
					Kind:   domain.Kind(r.Payload.Kind),
				},
			},
			Score: r.Score,
		})
	}
	return results, nil
}

// DeleteBySource removes every point whose source payload equals source,
// sparing the points whose IDs are in keep.
func (s *Storage) DeleteBySource(ctx context.Context, source string, keep ...string) error {
	if _, err := s.dim(); err != nil {
		return err
	}
	filter := map[string]any{
		"must": []map[string]any{
			{"key": "source", "match": map[string]any{"value": source}},
		},
	}
	if len(keep) > 0 {
		ids := make([]string, len(keep))
		for i, id := range keep {
			ids[i] = pointID(id)
		}
		filter["must_not"] = []map[string]any{{"has_id": ids}}
	}
	body := map[string]any{"filter": filter}
	_, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/delete?wait=true"), body, nil)
	return err
}

// Clear drops the collection and, when initialised, recreates it empty.
func (s *Storage) Clear(ctx context.Context) error {
	status, err := s.do(ctx, http.MethodDelete, s.collectionURL(""), nil, nil)
	if err != nil && status != http.StatusNotFound {
		return err
	}
	dim, err := s.dim()
	if errors.Is(err, domain.ErrNotInitialized) {
		return nil
	}
	return s.create(ctx, dim)
}

func (s *Storage) Close() error { return nil }

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

// do sends a JSON request and decodes a JSON response into out when given.
// The status code is returned alongside any error.
func (s *Storage) do(ctx context.Context, method, url string, body any, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s %s", method, url, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode, nil
}
