package services

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiEmbedder embeds text through the Gemini API.
type GeminiEmbedder struct {
	client   *genai.Client
	model    string
	taskType string
}

func NewGeminiEmbedder(client *genai.Client, model string) *GeminiEmbedder {
	return &GeminiEmbedder{client: client, model: model, taskType: "RETRIEVAL_DOCUMENT"}
}

func (g *GeminiEmbedder) ModelName() string {
	return g.model
}

func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.client.Models.EmbedContent(
		ctx,
		g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}},
		&genai.EmbedContentConfig{TaskType: g.taskType},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini embed call failed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("no embedding values returned")
	}
	return resp.Embeddings[0].Values, nil
}

// ForQueries returns an embedder tuned for search queries against
// documents embedded by g.
func (g *GeminiEmbedder) ForQueries() *GeminiEmbedder {
	return &GeminiEmbedder{client: g.client, model: g.model, taskType: "RETRIEVAL_QUERY"}
}
