package configs

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Model     ModelConfig     `yaml:"model"`
	Index     IndexConfig     `yaml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type ModelConfig struct {
	BaseURL         string `yaml:"base_url"`
	Model           string `yaml:"model"`
	EmbeddingsModel string `yaml:"embeddings_model"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	MaxRetries      int    `yaml:"max_retries"`
}

type IndexConfig struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	DataDir    string `yaml:"data_dir"`
	QdrantHost string `yaml:"qdrant_host"`
	QdrantPort int    `yaml:"qdrant_port"`
	Collection string `yaml:"collection"`
}

type RetrievalConfig struct {
	Threshold    float64 `yaml:"threshold"`
	AskTopK      int     `yaml:"ask_top_k"`
	ExtractTopK  int     `yaml:"extract_top_k"`
	ChunkSize    int     `yaml:"chunk_size"`
	ChunkOverlap int     `yaml:"chunk_overlap"`
}

// LoadConfig reads the YAML config at path, expanding ${ENV} references.
// A missing file is not an error; defaults apply. Variables from a local
// .env file are loaded first so they are visible to the expansion.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read configs file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8000"},
		Model: ModelConfig{
			BaseURL:        "http://localhost:1234",
			TimeoutSeconds: 60,
			MaxRetries:     3,
		},
		Index: IndexConfig{
			Backend:    "sqlite",
			Path:       "data/index.db",
			DataDir:    "data",
			QdrantHost: "localhost",
			QdrantPort: 6334,
			Collection: "corpus",
		},
		Retrieval: RetrievalConfig{
			Threshold:    0.25,
			AskTopK:      3,
			ExtractTopK:  10,
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
	}
}

func (c *Config) Validate() error {
	if c.Retrieval.Threshold < 0 || c.Retrieval.Threshold > 1 {
		return fmt.Errorf("retrieval threshold %f out of [0,1]", c.Retrieval.Threshold)
	}
	if c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d",
			c.Retrieval.ChunkOverlap, c.Retrieval.ChunkSize)
	}
	switch c.Index.Backend {
	case "", "sqlite", "qdrant":
	default:
		return fmt.Errorf("unknown index backend %q", c.Index.Backend)
	}
	return nil
}
