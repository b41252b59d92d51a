package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "uploads", cfg.Server.UploadDir)
	assert.Equal(t, []string{"http://localhost:3000", "localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 1000, cfg.Chunker.ChunkSize)
	assert.Equal(t, 100, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, "hashing", cfg.Embedder.Type)
	assert.Equal(t, "extractive", cfg.Generator.Type)
	assert.Equal(t, "memory", cfg.VectorStore.Type)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
}

func TestLoad_FileKeepsUnsetDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
embedder:
  type: openai
  openai:
    base_url: http://localhost:11434/v1
    model: nomic-embed-text
vector_store:
  type: qdrant
generator:
  type: openai
`), 0o644))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "uploads", cfg.Server.UploadDir)
	assert.Equal(t, 100, cfg.Chunker.ChunkOverlap)
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Embedder.OpenAI.BaseURL)
	assert.Equal(t, "nomic-embed-text", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	assert.Equal(t, 30, cfg.Embedder.OpenAI.TimeoutSecs)
	require.NotNil(t, cfg.Generator.OpenAI)
	assert.Equal(t, "gpt-4o-mini", cfg.Generator.OpenAI.Model)
	require.NotNil(t, cfg.VectorStore.Qdrant)
	assert.Equal(t, "http://localhost:6333", cfg.VectorStore.Qdrant.URL)
	assert.Equal(t, "docqa", cfg.VectorStore.Qdrant.Collection)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))

	_, err := Load(path)

	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DOCQA_ADDR", ":7000")
	t.Setenv("DOCQA_UPLOAD_DIR", "/srv/uploads")
	t.Setenv("DOCQA_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("DOCQA_VECTOR_STORE", "sqlite")
	t.Setenv("DOCQA_LOG_LEVEL", "debug")
	t.Setenv("DOCQA_LOADER_WORKERS", "4")
	t.Setenv("DOCQA_TOP_K", "8")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "/srv/uploads", cfg.Server.UploadDir)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "sqlite", cfg.VectorStore.Type)
	require.NotNil(t, cfg.VectorStore.SQLite)
	assert.Equal(t, "docqa.db", cfg.VectorStore.SQLite.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 4, cfg.Loader.Workers)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
}

func TestLoad_PostgresDSNEnvDefault(t *testing.T) {
	t.Setenv("DOCQA_VECTOR_STORE", "postgres")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	require.NoError(t, err)
	require.NotNil(t, cfg.VectorStore.Postgres)
	assert.Equal(t, "DATABASE_URL", cfg.VectorStore.Postgres.DSNEnv)
}

func TestLoadDefault_WritesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, path, err := LoadDefault()

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "docqa", "config.yaml"), path)
	assert.FileExists(t, path)
	assert.Equal(t, "memory", cfg.VectorStore.Type)

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadDefault_PrefersWorkingDirectory(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile("config.yaml", []byte("retrieval:\n  top_k: 3\n"), 0o644))

	cfg, path, err := LoadDefault()

	require.NoError(t, err)
	assert.Equal(t, "config.yaml", path)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
}

func TestResolve_ExplicitPath(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  format: json\n"), 0o644))

	cfg, got, err := Resolve(path)

	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
}
