package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github/itish2003/tariff/models"
)

// DefaultTopK is the number of fragments returned when the caller doesn't ask.
const DefaultTopK = 3

// TariffTool answers retrieval requests scoped to one country.
type TariffTool struct {
	registry *CountryRegistry
	topK     int
}

func NewTariffTool(registry *CountryRegistry, topK int) *TariffTool {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &TariffTool{registry: registry, topK: topK}
}

// Query searches the country's documents and returns formatted fragments.
// An unknown country is not an error: the text lists what is available.
func (t *TariffTool) Query(ctx context.Context, query, country string, k int) (string, error) {
	if k <= 0 {
		k = t.topK
	}
	display := strings.TrimSpace(country)

	idx, err := t.registry.IndexFor(country)
	if errors.Is(err, ErrCountryNotFound) {
		available := t.availableList()
		if reason, ok := t.registry.Unavailable()[NormalizeCountry(country)]; ok && reason != "" {
			return fmt.Sprintf("Documents for %s are temporarily unavailable. Available countries: %s", display, available), nil
		}
		return fmt.Sprintf("No documents loaded for %s. Available countries: %s", display, available), nil
	}
	if err != nil {
		return "", err
	}

	chunks, err := idx.SimilaritySearch(ctx, query, k)
	if err != nil {
		return "", err
	}
	return formatFragments(display, chunks), nil
}

// Refresh re-discovers countries and describes the result.
func (t *TariffTool) Refresh(ctx context.Context) (*models.RefreshReport, error) {
	report, err := t.registry.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	sb.WriteString("The list of countries has been updated.\n")
	if len(report.Added) > 0 {
		fmt.Fprintf(&sb, "Countries added: %s.\n", strings.Join(report.Added, ", "))
	}
	fmt.Fprintf(&sb, "Available countries: %s", t.availableList())
	report.Message = sb.String()
	return report, nil
}

// Countries is the sorted list of queryable countries.
func (t *TariffTool) Countries() []string {
	return t.registry.Countries()
}

func (t *TariffTool) Unavailable() map[string]string {
	return t.registry.Unavailable()
}

func (t *TariffTool) availableList() string {
	countries := t.registry.Countries()
	if len(countries) == 0 {
		return "none"
	}
	return strings.Join(countries, ", ")
}

func formatFragments(country string, chunks []models.TextChunk) string {
	header := fmt.Sprintf("Information retrieved about tariffs and customs regulations for %s:\n\n", country)
	if len(chunks) == 0 {
		return header + "No matching fragments were found."
	}
	fragments := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Fragment %d", i+1)
		if chunk.Country != "" {
			fmt.Fprintf(&sb, " [%s]", chunk.Country)
		}
		if chunk.Source != "" {
			fmt.Fprintf(&sb, " - Source: %s", filepath.Base(chunk.Source))
		}
		fmt.Fprintf(&sb, ":\n%s", collapseNewlines(chunk.Text))
		fragments = append(fragments, sb.String())
	}
	return header + strings.Join(fragments, "\n\n")
}

func collapseNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.TrimSpace(text)
}
