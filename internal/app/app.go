// Package app wires the configured backends into a ready RAG service and
// owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/domain"
	"docqa/internal/embedding"
	"docqa/internal/embedding/hashing"
	embopenai "docqa/internal/embedding/openai"
	"docqa/internal/generation"
	"docqa/internal/generation/extractive"
	genopenai "docqa/internal/generation/openai"
	"docqa/internal/loader"
	"docqa/internal/service"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/bolt"
	"docqa/internal/vectorstore/memory"
	"docqa/internal/vectorstore/pgvector"
	"docqa/internal/vectorstore/qdrant"
	"docqa/internal/vectorstore/sqlite"
)

// App holds every long-lived component of a running docqa process.
type App struct {
	Config    *config.AppConfig
	Logger    *slog.Logger
	Loader    *loader.Loader
	Embedder  embedding.Embedder
	Store     vectorstore.Storage
	Generator generation.Generator
	Service   *service.RAGService

	closers []func() error
}

// New builds the components selected by cfg and starts the service. Backend
// failures are reported as domain.ErrDependencyUnavailable.
func New(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	emb, err := NewEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	a.Embedder = emb

	gen, err := NewGenerator(cfg.Generator)
	if err != nil {
		return nil, err
	}
	a.Generator = gen

	store, err := NewStore(ctx, cfg.VectorStore)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	a.Loader = loader.New(
		loader.WithWorkers(cfg.Loader.Workers),
		loader.WithLogger(logger.With("component", "loader")),
	)
	ch := chunker.New(
		chunker.WithChunkSize(cfg.Chunker.ChunkSize),
		chunker.WithOverlap(cfg.Chunker.ChunkOverlap),
	)
	a.Service = service.NewRAGService(a.Loader, ch, emb, store, gen, service.Config{
		TopK:         cfg.Retrieval.TopK,
		EmbedWorkers: cfg.Embedder.Workers,
	}, logger.With("component", "service"))

	if err := a.Service.Start(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the components in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewEmbedder builds the embedder named by cfg.Type.
func NewEmbedder(cfg config.EmbedderConfig) (embedding.Embedder, error) {
	switch cfg.Type {
	case "hashing", "":
		return hashing.NewEmbedder(cfg.Dimension), nil
	case "openai":
		oc := cfg.OpenAI
		if oc == nil {
			oc = &config.OpenAIConfig{}
		}
		client, err := embopenai.NewClient(embopenai.Config{
			BaseURL:   oc.BaseURL,
			APIKeyEnv: oc.APIKeyEnv,
			Model:     oc.Model,
			Timeout:   time.Duration(oc.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: openai embedder: %w", domain.ErrDependencyUnavailable, err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("%w: unknown embedder %q", domain.ErrInvalidInput, cfg.Type)
	}
}

// NewGenerator builds the answer generator named by cfg.Type.
func NewGenerator(cfg config.GeneratorConfig) (generation.Generator, error) {
	switch cfg.Type {
	case "extractive", "":
		return extractive.New(cfg.MaxSentences), nil
	case "openai":
		oc := cfg.OpenAI
		if oc == nil {
			oc = &config.OpenAIConfig{}
		}
		client, err := genopenai.NewClient(genopenai.Config{
			BaseURL:     oc.BaseURL,
			APIKeyEnv:   oc.APIKeyEnv,
			Model:       oc.Model,
			Temperature: oc.Temperature,
			MaxTokens:   oc.MaxTokens,
			Timeout:     time.Duration(oc.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: openai generator: %w", domain.ErrDependencyUnavailable, err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("%w: unknown generator %q", domain.ErrInvalidInput, cfg.Type)
	}
}

// NewStore opens the vector store named by cfg.Type.
func NewStore(ctx context.Context, cfg config.VectorStoreConfig) (vectorstore.Storage, error) {
	var (
		st  vectorstore.Storage
		err error
	)
	switch cfg.Type {
	case "memory", "":
		return memory.NewStorage(), nil
	case "qdrant":
		qc := cfg.Qdrant
		if qc == nil {
			qc = &config.QdrantConfig{}
		}
		key := qc.APIKey
		if key == "" && qc.APIKeyEnv != "" {
			key = os.Getenv(qc.APIKeyEnv)
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        qc.URL,
			APIKey:     key,
			Collection: qc.Collection,
			Timeout:    time.Duration(qc.TimeoutSecs) * time.Second,
		}), nil
	case "sqlite":
		st, err = sqlite.NewStorage(filePath(cfg.SQLite, "docqa.db"))
	case "bolt":
		st, err = bolt.NewStorage(filePath(cfg.Bolt, "docqa.bolt"))
	case "postgres", "pgvector":
		pc := cfg.Postgres
		if pc == nil {
			pc = &config.PostgresConfig{DSNEnv: "DATABASE_URL"}
		}
		dsn := pc.DSN
		if dsn == "" && pc.DSNEnv != "" {
			dsn = os.Getenv(pc.DSNEnv)
		}
		st, err = pgvector.NewStorage(ctx, pgvector.Config{DSN: dsn, Table: pc.Table})
	default:
		return nil, fmt.Errorf("%w: unknown vector store %q", domain.ErrInvalidInput, cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s vector store: %w", domain.ErrDependencyUnavailable, cfg.Type, err)
	}
	return st, nil
}

func filePath(fc *config.FileConfig, def string) string {
	if fc == nil || fc.Path == "" {
		return def
	}
	return fc.Path
}
