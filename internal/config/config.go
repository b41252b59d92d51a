package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	UploadDir      string   `yaml:"upload_dir"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoaderConfig configures document loading.
type LoaderConfig struct {
	Workers int `yaml:"workers"`
}

// ChunkerConfig configures how oversized units are split.
type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// OpenAIConfig holds settings shared by OpenAI-compatible backends.
type OpenAIConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	Temperature float64 `yaml:"temperature,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string        `yaml:"type"`
	Dimension int           `yaml:"dimension"`
	Workers   int           `yaml:"workers"`
	OpenAI    *OpenAIConfig `yaml:"openai,omitempty"`
}

// GeneratorConfig selects and configures the answer generator.
type GeneratorConfig struct {
	Type         string        `yaml:"type"`
	MaxSentences int           `yaml:"max_sentences"`
	OpenAI       *OpenAIConfig `yaml:"openai,omitempty"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type     string          `yaml:"type"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	SQLite   *FileConfig     `yaml:"sqlite,omitempty"`
	Bolt     *FileConfig     `yaml:"bolt,omitempty"`
	Postgres *PostgresConfig `yaml:"postgres,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key,omitempty"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// FileConfig points an embedded store at its database file.
type FileConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig contains connection details for pgvector.
// DSN wins over DSNEnv when both are set.
type PostgresConfig struct {
	DSN    string `yaml:"dsn,omitempty"`
	DSNEnv string `yaml:"dsn_env"`
	Table  string `yaml:"table"`
}

// RetrievalConfig tunes question answering.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Loader      LoaderConfig      `yaml:"loader"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Generator   GeneratorConfig   `yaml:"generator"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/docqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnv(cfg)
	return cfg, userPath, nil
}

// Resolve loads .env into the environment, then the config at path, or the
// default locations when path is empty.
func Resolve(path string) (*AppConfig, string, error) {
	_ = godotenv.Load()
	if path == "" {
		return LoadDefault()
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docqa", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Server: ServerConfig{
			Addr:           ":8000",
			UploadDir:      "uploads",
			AllowedOrigins: []string{"http://localhost:3000", "localhost:3000"},
		},
		Loader:      LoaderConfig{Workers: 1},
		Chunker:     ChunkerConfig{ChunkSize: 1000, ChunkOverlap: 100},
		Embedder:    EmbedderConfig{Type: "hashing", Dimension: 512, Workers: 4},
		Generator:   GeneratorConfig{Type: "extractive", MaxSentences: 3},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Retrieval:   RetrievalConfig{TopK: 5},
		Log:         LogConfig{Level: "info", Format: "text"},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Server.UploadDir == "" {
		cfg.Server.UploadDir = "uploads"
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI == nil {
		cfg.Embedder.OpenAI = &OpenAIConfig{}
	}
	if cfg.Embedder.OpenAI != nil {
		applyOpenAIDefaults(cfg.Embedder.OpenAI, "text-embedding-3-small")
	}
	if cfg.Generator.Type == "openai" && cfg.Generator.OpenAI == nil {
		cfg.Generator.OpenAI = &OpenAIConfig{}
	}
	if cfg.Generator.OpenAI != nil {
		applyOpenAIDefaults(cfg.Generator.OpenAI, "gpt-4o-mini")
	}
	vs := &cfg.VectorStore
	switch vs.Type {
	case "qdrant":
		if vs.Qdrant == nil {
			vs.Qdrant = &QdrantConfig{}
		}
		if vs.Qdrant.URL == "" {
			vs.Qdrant.URL = "http://localhost:6333"
		}
		if vs.Qdrant.Collection == "" {
			vs.Qdrant.Collection = "docqa"
		}
	case "sqlite":
		if vs.SQLite == nil || vs.SQLite.Path == "" {
			vs.SQLite = &FileConfig{Path: "docqa.db"}
		}
	case "bolt":
		if vs.Bolt == nil || vs.Bolt.Path == "" {
			vs.Bolt = &FileConfig{Path: "docqa.bolt"}
		}
	case "postgres":
		if vs.Postgres == nil {
			vs.Postgres = &PostgresConfig{}
		}
		if vs.Postgres.DSN == "" && vs.Postgres.DSNEnv == "" {
			vs.Postgres.DSNEnv = "DATABASE_URL"
		}
	}
}

func applyOpenAIDefaults(c *OpenAIConfig, model string) {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 30
	}
}

// applyEnv lets DOCQA_* variables override the file.
func applyEnv(cfg *AppConfig) {
	cfg.Server.Addr = getenv("DOCQA_ADDR", cfg.Server.Addr)
	cfg.Server.UploadDir = getenv("DOCQA_UPLOAD_DIR", cfg.Server.UploadDir)
	if v := os.Getenv("DOCQA_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	cfg.Embedder.Type = getenv("DOCQA_EMBEDDER", cfg.Embedder.Type)
	cfg.Generator.Type = getenv("DOCQA_GENERATOR", cfg.Generator.Type)
	cfg.VectorStore.Type = getenv("DOCQA_VECTOR_STORE", cfg.VectorStore.Type)
	cfg.Log.Level = getenv("DOCQA_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenv("DOCQA_LOG_FORMAT", cfg.Log.Format)
	if n, err := strconv.Atoi(os.Getenv("DOCQA_LOADER_WORKERS")); err == nil {
		cfg.Loader.Workers = n
	}
	if n, err := strconv.Atoi(os.Getenv("DOCQA_TOP_K")); err == nil && n > 0 {
		cfg.Retrieval.TopK = n
	}
	// Backends picked through the environment still need their sections.
	applyConfigDefaults(cfg)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
