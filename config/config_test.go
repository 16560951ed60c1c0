package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "./knowledge_base/tariff", cfg.KnowledgeBase.Path)
	assert.Equal(t, []string{".pdf"}, cfg.KnowledgeBase.Extensions)
	assert.Equal(t, 2*time.Second, cfg.KnowledgeBase.WatchDebounce)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, 1000, cfg.Retrieval.ChunkSize)
	assert.Equal(t, 100, cfg.Retrieval.ChunkOverlap)
	assert.Equal(t, "chroma", cfg.Vector.Backend)
	assert.Equal(t, "tariff_", cfg.Vector.CollectionPrefix)
	assert.Equal(t, 6334, cfg.Vector.Qdrant.Port)
	assert.Equal(t, "ollama", cfg.Embedder.Provider)
	assert.Equal(t, "onboarding@resend.dev", cfg.Email.From)
}

func TestLoad_LegacyEnvironment(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gem-key")
	t.Setenv("RESEND_TOKEN", "re_token")
	t.Setenv("UNIDOC_LICENSE_KEY", "unidoc")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gem-key", cfg.LLM.APIKey)
	assert.Equal(t, "re_token", cfg.Email.APIKey)
	assert.Equal(t, "unidoc", cfg.PDF.LicenseKey)
}

func TestLoad_PrefixedEnvironment(t *testing.T) {
	t.Setenv("TARIFF_VECTOR_BACKEND", " Qdrant ")
	t.Setenv("TARIFF_RETRIEVAL_TOP_K", "5")
	t.Setenv("TARIFF_LLM_API_KEY", "prefixed")
	t.Setenv("GEMINI_API_KEY", "legacy")
	t.Setenv("TARIFF_VECTOR_QDRANT_API_KEY", "qdrant-secret")
	t.Setenv("TARIFF_VECTOR_QDRANT_USE_TLS", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "qdrant", cfg.Vector.Backend)
	assert.Equal(t, "qdrant-secret", cfg.Vector.Qdrant.APIKey)
	assert.True(t, cfg.Vector.Qdrant.UseTLS)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, "prefixed", cfg.LLM.APIKey)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tariff.yaml")
	content := `
knowledge_base:
  path: /data/tariff
  extensions: ["PDF", "txt"]
  parallelism: 0
vector:
  backend: memory
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/tariff", cfg.KnowledgeBase.Path)
	assert.Equal(t, []string{".pdf", ".txt"}, cfg.KnowledgeBase.Extensions)
	assert.Equal(t, 1, cfg.KnowledgeBase.Parallelism)
	assert.Equal(t, "memory", cfg.Vector.Backend)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Vector.Backend = "pinecone"
	cfg.Retrieval.ChunkOverlap = 2000
	warnings := cfg.Validate()

	assert.Contains(t, warnings, "unknown vector backend 'pinecone'")
	assert.Contains(t, warnings, "chunk_overlap 2000 is not smaller than chunk_size 1000")
}
