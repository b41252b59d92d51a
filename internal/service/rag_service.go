package service

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"docqa/internal/domain"
	"docqa/internal/embedding"
	"docqa/internal/generation"
	"docqa/internal/prompt"
	"docqa/internal/vectorstore"
)

// NoContextAnswer is returned by Ask when nothing relevant is indexed.
const NoContextAnswer = "No relevant context was found in the indexed documents."

const dimensionSample = "dimension sample"

// DocumentLoader turns a file into text units. It reports only cancellation;
// unreadable files yield no units.
type DocumentLoader interface {
	Load(ctx context.Context, path string) ([]domain.TextUnit, error)
}

// Config tunes retrieval and indexing.
type Config struct {
	// TopK is the number of units retrieved per question.
	TopK int
	// EmbedWorkers bounds concurrent embedding calls during ingest.
	EmbedWorkers int
}

// RAGService ingests documents into the vector index and answers questions
// over it.
type RAGService struct {
	loader    DocumentLoader
	chunker   domain.Chunker
	embedder  embedding.Embedder
	store     vectorstore.Storage
	generator generation.Generator
	topK      int
	workers   int
	logger    *slog.Logger

	// writes serialises index mutations.
	writes sync.Mutex
}

func NewRAGService(l DocumentLoader, ch domain.Chunker, emb embedding.Embedder, st vectorstore.Storage, gen generation.Generator, cfg Config, logger *slog.Logger) *RAGService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = vectorstore.DefaultTopK
	}
	if cfg.EmbedWorkers <= 0 {
		cfg.EmbedWorkers = 1
	}
	return &RAGService{
		loader:    l,
		chunker:   ch,
		embedder:  emb,
		store:     st,
		generator: gen,
		topK:      cfg.TopK,
		workers:   cfg.EmbedWorkers,
		logger:    logger,
	}
}

// Start prepares the index for the embedder's vector size. Embedders that
// learn their size from the backend are measured with one request.
func (s *RAGService) Start(ctx context.Context) error {
	dim := s.embedder.Dimension()
	if dim == 0 {
		vec, err := s.embedder.Embed(ctx, dimensionSample)
		if err != nil {
			return fmt.Errorf("%w: embedder %s: %w", domain.ErrDependencyUnavailable, s.embedder.Name(), err)
		}
		dim = len(vec)
	}
	if err := s.store.Init(ctx, dim); err != nil {
		return fmt.Errorf("%w: vector store: %w", domain.ErrDependencyUnavailable, err)
	}
	s.logger.Info("service.ready", "embedder", s.embedder.Name(), "generator", s.generator.Name(), "dimension", dim)
	return nil
}

// IngestFile loads, chunks, embeds and indexes one file, replacing any units
// previously indexed for the same source. It returns the number of units
// indexed, or an error wrapping domain.ErrNoExtractableContent when the file
// yields nothing.
func (s *RAGService) IngestFile(ctx context.Context, file string) (int, error) {
	units, err := s.loader.Load(ctx, file)
	if err != nil {
		return 0, err
	}
	units = s.chunker.Chunk(units)
	if len(units) == 0 {
		return 0, fmt.Errorf("%s: %w", filepath.Base(file), domain.ErrNoExtractableContent)
	}

	records, err := s.embedUnits(ctx, units)
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", filepath.Base(file), err)
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("%s: %w", filepath.Base(file), domain.ErrNoExtractableContent)
	}

	source := domain.NormalizeSource(file)
	keep := make([]string, len(records))
	for i, r := range records {
		keep[i] = r.ID
	}
	s.writes.Lock()
	defer s.writes.Unlock()
	// IDs are derived from the source and position, so the upsert overwrites
	// the previous version in place and only the surplus is deleted after it.
	if err := s.store.Upsert(ctx, records); err != nil {
		return 0, fmt.Errorf("index %s: %w", source, err)
	}
	if err := s.store.DeleteBySource(ctx, source, keep...); err != nil {
		return 0, fmt.Errorf("replace %s: %w", source, err)
	}
	s.logger.Info("ingest.done", "source", source, "units", len(records), "skipped", len(units)-len(records))
	return len(records), nil
}

// embedUnits embeds every unit, preserving order. Units whose vector is zero
// carry no indexable terms and are left out.
func (s *RAGService) embedUnits(ctx context.Context, units []domain.TextUnit) ([]vectorstore.Record, error) {
	vectors := make([][]float32, len(units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range units {
		g.Go(func() error {
			v, err := s.embedder.Embed(gctx, units[i].Content)
			if err != nil {
				return err
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]vectorstore.Record, 0, len(units))
	for i, u := range units {
		if embedding.IsZero(vectors[i]) {
			s.logger.Debug("ingest.unit.skipped", "source", u.Metadata.Source, "page", u.Metadata.Page)
			continue
		}
		records = append(records, vectorstore.Record{
			ID:     unitID(u.Metadata.Source, i),
			Unit:   u,
			Vector: vectors[i],
		})
	}
	return records, nil
}

// unitID is stable per source and position so re-ingesting a file overwrites
// the same points.
func unitID(source string, i int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(source+"#"+strconv.Itoa(i))).String()
}

// Query returns the topK units most similar to question. A question without
// any indexable term returns no results.
func (s *RAGService) Query(ctx context.Context, question string, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = s.topK
	}
	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if embedding.IsZero(vec) {
		return nil, nil
	}
	return s.store.Search(ctx, vec, topK)
}

// Ask answers question from the retrieved units. Pages and sources are the
// sorted distinct page numbers and file names of those units.
func (s *RAGService) Ask(ctx context.Context, question string) (domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.Answer{}, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}
	results, err := s.Query(ctx, question, s.topK)
	if err != nil {
		return domain.Answer{}, err
	}
	answer := domain.Answer{Pages: []int{}, Sources: []string{}, Context: results}
	if len(results) == 0 {
		answer.Text = NoContextAnswer
		return answer, nil
	}

	passages := make([]string, len(results))
	pages := map[int]struct{}{}
	sources := map[string]struct{}{}
	for i, r := range results {
		passages[i] = r.Unit.Content
		if p := r.Unit.Metadata.Page; p != 0 {
			pages[p] = struct{}{}
		}
		if src := r.Unit.Metadata.Source; src != "" {
			sources[path.Base(src)] = struct{}{}
		}
	}
	for p := range pages {
		answer.Pages = append(answer.Pages, p)
	}
	sort.Ints(answer.Pages)
	for src := range sources {
		answer.Sources = append(answer.Sources, src)
	}
	sort.Strings(answer.Sources)

	text, err := s.generator.Generate(ctx, prompt.Build(question, passages))
	if err != nil {
		return domain.Answer{}, fmt.Errorf("generate answer: %w", err)
	}
	answer.Text = text
	s.logger.Debug("ask.done", "results", len(results), "pages", answer.Pages, "sources", answer.Sources)
	return answer, nil
}

// DeleteDocument removes every unit indexed for file.
func (s *RAGService) DeleteDocument(ctx context.Context, file string) error {
	source := domain.NormalizeSource(file)
	s.writes.Lock()
	defer s.writes.Unlock()
	if err := s.store.DeleteBySource(ctx, source); err != nil {
		return fmt.Errorf("delete %s: %w", source, err)
	}
	s.logger.Info("delete.done", "source", source)
	return nil
}
