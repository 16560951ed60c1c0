package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	KnowledgeBase KnowledgeBaseConfig `mapstructure:"knowledge_base"`
	Retrieval     RetrievalConfig     `mapstructure:"retrieval"`
	Vector        VectorConfig        `mapstructure:"vector"`
	Embedder      EmbedderConfig      `mapstructure:"embedder"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Email         EmailConfig         `mapstructure:"email"`
	PDF           PDFConfig           `mapstructure:"pdf"`
	Log           LogConfig           `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type KnowledgeBaseConfig struct {
	Path          string        `mapstructure:"path"`
	Extensions    []string      `mapstructure:"extensions"`
	Watch         bool          `mapstructure:"watch"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`
	Parallelism   int           `mapstructure:"parallelism"`
}

type RetrievalConfig struct {
	TopK         int `mapstructure:"top_k"`
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
}

type VectorConfig struct {
	// Backend is one of "chroma", "qdrant" or "memory".
	Backend          string       `mapstructure:"backend"`
	CollectionPrefix string       `mapstructure:"collection_prefix"`
	Chroma           ChromaConfig `mapstructure:"chroma"`
	Qdrant           QdrantConfig `mapstructure:"qdrant"`
}

type ChromaConfig struct {
	URL string `mapstructure:"url"`
}

type QdrantConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
	UseTLS bool   `mapstructure:"use_tls"`
}

type EmbedderConfig struct {
	// Provider is "ollama" or "gemini".
	Provider  string        `mapstructure:"provider"`
	Model     string        `mapstructure:"model"`
	URL       string        `mapstructure:"url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheSize int           `mapstructure:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

type LLMConfig struct {
	Model  string `mapstructure:"model"`
	APIKey string `mapstructure:"api_key"`
}

type EmailConfig struct {
	APIKey string `mapstructure:"api_key"`
	From   string `mapstructure:"from"`
}

type PDFConfig struct {
	LicenseKey string `mapstructure:"license_key"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// legacyEnv maps config keys to the variable names the deployment already uses.
var legacyEnv = map[string]string{
	"llm.api_key":     "GEMINI_API_KEY",
	"email.api_key":   "RESEND_TOKEN",
	"pdf.license_key": "UNIDOC_LICENSE_KEY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")

	v.SetDefault("knowledge_base.path", "./knowledge_base/tariff")
	v.SetDefault("knowledge_base.extensions", []string{".pdf"})
	v.SetDefault("knowledge_base.watch", false)
	v.SetDefault("knowledge_base.watch_debounce", 2*time.Second)
	v.SetDefault("knowledge_base.parallelism", 2)

	v.SetDefault("retrieval.top_k", 3)
	v.SetDefault("retrieval.chunk_size", 1000)
	v.SetDefault("retrieval.chunk_overlap", 100)

	v.SetDefault("vector.backend", "chroma")
	v.SetDefault("vector.collection_prefix", "tariff_")
	v.SetDefault("vector.chroma.url", "http://localhost:8000")
	v.SetDefault("vector.qdrant.host", "localhost")
	v.SetDefault("vector.qdrant.port", 6334)
	v.SetDefault("vector.qdrant.api_key", "")
	v.SetDefault("vector.qdrant.use_tls", false)

	v.SetDefault("embedder.provider", "ollama")
	v.SetDefault("embedder.model", "nomic-embed-text:v1.5")
	v.SetDefault("embedder.url", "http://localhost:11434")
	v.SetDefault("embedder.timeout", 30*time.Second)
	v.SetDefault("embedder.cache_size", 512)
	v.SetDefault("embedder.cache_ttl", 30*time.Minute)

	v.SetDefault("llm.model", "gemini-2.5-flash")

	v.SetDefault("email.from", "onboarding@resend.dev")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration from an optional file, .env and the environment.
// An empty path means defaults plus environment only.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("TARIFF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "TARIFF_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Vector.Backend = strings.ToLower(strings.TrimSpace(c.Vector.Backend))
	c.Embedder.Provider = strings.ToLower(strings.TrimSpace(c.Embedder.Provider))
	exts := make([]string, 0, len(c.KnowledgeBase.Extensions))
	for _, ext := range c.KnowledgeBase.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	c.KnowledgeBase.Extensions = exts
	if c.KnowledgeBase.Parallelism < 1 {
		c.KnowledgeBase.Parallelism = 1
	}
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	switch c.Vector.Backend {
	case "chroma", "qdrant", "memory":
	default:
		warnings = append(warnings, fmt.Sprintf("unknown vector backend '%s'", c.Vector.Backend))
	}
	switch c.Embedder.Provider {
	case "ollama":
	case "gemini":
		if c.LLM.APIKey == "" {
			warnings = append(warnings, "gemini embedder selected but GEMINI_API_KEY is empty")
		}
	default:
		warnings = append(warnings, fmt.Sprintf("unknown embedder provider '%s'", c.Embedder.Provider))
	}
	if c.LLM.APIKey == "" {
		warnings = append(warnings, "GEMINI_API_KEY is empty; chat is disabled")
	}
	if c.Email.APIKey == "" {
		warnings = append(warnings, "RESEND_TOKEN is empty; email summaries will fail")
	}
	if len(c.KnowledgeBase.Extensions) == 0 {
		warnings = append(warnings, "no document extensions configured; no country will be indexed")
	}
	if c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		warnings = append(warnings, fmt.Sprintf("chunk_overlap %d is not smaller than chunk_size %d", c.Retrieval.ChunkOverlap, c.Retrieval.ChunkSize))
	}
	if c.Retrieval.TopK <= 0 {
		warnings = append(warnings, fmt.Sprintf("retrieval top_k %d is not positive; 3 will be used", c.Retrieval.TopK))
	}
	return warnings
}
