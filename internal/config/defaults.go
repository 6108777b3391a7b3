package config

import (
	"os"
	"strconv"
)

// DefaultTenantID is the reserved id of the shared default index.
const DefaultTenantID = "__DEFAULT__"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5002
	}
	if cfg.Storage.RootDir == "" {
		cfg.Storage.RootDir = "/usr/local/var/kioku/data/indices"
	}
	if cfg.Storage.CatalogPath == "" {
		cfg.Storage.CatalogPath = "/usr/local/var/kioku/data/db/catalog.db"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/kioku/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 512
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 100
	}
	if cfg.Query.DefaultK == 0 {
		cfg.Query.DefaultK = 5
	}
	if cfg.Query.MaxK == 0 {
		cfg.Query.MaxK = 100
	}
	if cfg.Tenants.DefaultID == "" {
		cfg.Tenants.DefaultID = DefaultTenantID
	}
	if cfg.Assets.Extensions == nil {
		cfg.Assets.Extensions = []string{".txt", ".md", ".pdf", ".docx", ".pptx", ".xlsx", ".csv", ".html", ".xml", ".json", ".log"}
	}
}

// ApplyEnvOverrides overrides cfg fields from KIOKU_* environment variables.
// Called before ApplyDefaults so an env value wins over the default but a
// config-file value wins over nothing.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KIOKU_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.ModelPath = v
	}
	if v := envInt("KIOKU_EMBEDDING_DIMENSIONS"); v > 0 {
		cfg.Embedding.Dimensions = v
	}
	if v := envInt("KIOKU_CHUNK_SIZE"); v > 0 {
		cfg.Chunking.ChunkSize = v
	}
	if v := envInt("KIOKU_CHUNK_OVERLAP"); v > 0 {
		cfg.Chunking.ChunkOverlap = v
	}
	if v := os.Getenv("KIOKU_DEFAULT_TENANT_ID"); v != "" {
		cfg.Tenants.DefaultID = v
	}
	if v := os.Getenv("KIOKU_STORAGE_ROOT"); v != "" {
		cfg.Storage.RootDir = v
	}
	if v := envInt("KIOKU_PORT"); v > 0 {
		cfg.Server.Port = v
	}
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
