package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github/itish2003/tariff/config"
	"github/itish2003/tariff/services"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const defaultGeminiEmbedModel = "gemini-embedding-001"

// app is the wired object graph shared by every command.
type app struct {
	cfg      *config.Config
	backend  services.VectorBackend
	registry *services.CountryRegistry
	tariff   *services.TariffTool
	email    *services.EmailTool
	chat     *services.ChatService
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	for _, w := range cfg.Validate() {
		zap.L().Warn("config", zap.String("warning", w))
	}

	if err := services.ConfigurePDFLicense(cfg.PDF.LicenseKey); err != nil {
		return nil, err
	}

	var geminiClient *genai.Client
	if cfg.LLM.APIKey != "" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.LLM.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		geminiClient = client
		zap.L().Info("connected to google gemini", zap.String("model", cfg.LLM.Model))
	}

	docEmbedder, queryEmbedder, err := newEmbedders(cfg, geminiClient)
	if err != nil {
		return nil, err
	}

	backend, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}

	indexer := services.NewDocumentIndexer(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	registry := services.NewCountryRegistry(services.RegistryConfig{
		BasePath:         cfg.KnowledgeBase.Path,
		Extensions:       cfg.KnowledgeBase.Extensions,
		CollectionPrefix: cfg.Vector.CollectionPrefix,
		Parallelism:      cfg.KnowledgeBase.Parallelism,
	}, backend, indexer, docEmbedder, queryEmbedder)

	var mailer services.Mailer
	if cfg.Email.APIKey != "" {
		mailer = services.NewResendMailer(cfg.Email.APIKey)
	}

	a := &app{
		cfg:      cfg,
		backend:  backend,
		registry: registry,
		tariff:   services.NewTariffTool(registry, cfg.Retrieval.TopK),
		email:    services.NewEmailTool(mailer, cfg.Email.From),
	}
	if geminiClient != nil {
		dispatcher := services.NewToolDispatcher(a.tariff, a.email)
		a.chat = services.NewChatService(services.GeminiSessionFactory(geminiClient, cfg.LLM.Model), dispatcher)
	}
	return a, nil
}

func (a *app) Close() {
	if err := a.backend.Close(); err != nil {
		zap.L().Warn("failed to close vector backend", zap.Error(err))
	}
}

func newEmbedders(cfg *config.Config, geminiClient *genai.Client) (docs, queries services.Embedder, err error) {
	switch cfg.Embedder.Provider {
	case "gemini":
		if geminiClient == nil {
			return nil, nil, errors.New("gemini embedder requires GEMINI_API_KEY")
		}
		model := cfg.Embedder.Model
		if model == "" || strings.HasPrefix(model, "nomic") {
			model = defaultGeminiEmbedModel
		}
		e := services.NewGeminiEmbedder(geminiClient, model)
		docs, queries = e, e.ForQueries()
	case "ollama", "":
		e := services.NewOllamaEmbedder(&http.Client{Timeout: cfg.Embedder.Timeout}, cfg.Embedder.URL, cfg.Embedder.Model)
		docs, queries = e, e
	default:
		return nil, nil, fmt.Errorf("unknown embedder provider %q", cfg.Embedder.Provider)
	}
	return docs, services.WrapLRUCache(queries, cfg.Embedder.CacheSize, cfg.Embedder.CacheTTL), nil
}

func newBackend(cfg *config.Config) (services.VectorBackend, error) {
	switch cfg.Vector.Backend {
	case "chroma", "":
		return services.NewChromaBackend(cfg.Vector.Chroma.URL)
	case "qdrant":
		return services.NewQdrantBackend(services.QdrantConfig{
			Host:   cfg.Vector.Qdrant.Host,
			Port:   cfg.Vector.Qdrant.Port,
			APIKey: cfg.Vector.Qdrant.APIKey,
			UseTLS: cfg.Vector.Qdrant.UseTLS,
		})
	case "memory":
		return services.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Vector.Backend)
	}
}
