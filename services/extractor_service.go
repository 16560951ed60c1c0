package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github/itish2003/tariff/models"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
	"go.uber.org/zap"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// ConfigurePDFLicense registers the UniPDF metered key. PDF extraction
// fails at read time without it.
func ConfigurePDFLicense(key string) error {
	if strings.TrimSpace(key) == "" {
		zap.L().Warn("UNIDOC_LICENSE_KEY not set, PDF processing will fail")
		return nil
	}
	if err := license.SetMeteredKey(key); err != nil {
		return fmt.Errorf("failed to set unidoc license key: %w", err)
	}
	return nil
}

// KindForPath picks the loader for a file from its extension.
func KindForPath(path string) models.DocumentKind {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return models.KindPDF
	}
	return models.KindPlainText
}

// DocumentIndexer turns one file into country-stamped text chunks.
type DocumentIndexer struct {
	splitter textsplitter.TextSplitter
	// extractPDF returns the text of every page, in page order.
	extractPDF func(path string) ([]string, error)
}

// NewDocumentIndexer creates an indexer splitting into windows of
// chunkSize characters overlapping by chunkOverlap.
func NewDocumentIndexer(chunkSize, chunkOverlap int) *DocumentIndexer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
	}
	return &DocumentIndexer{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
		),
		extractPDF: extractPagesFromPDF,
	}
}

// Load reads the document at path and splits it. A non-empty country is
// stamped on every chunk.
func (d *DocumentIndexer) Load(path, country string) ([]models.TextChunk, error) {
	units, err := d.readUnits(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadableDocument, path, err)
	}

	chunks, err := d.Split(units)
	if err != nil {
		return nil, fmt.Errorf("%w: splitting %s: %v", ErrUnreadableDocument, path, err)
	}
	if country != "" {
		for i := range chunks {
			chunks[i].Country = country
		}
	}
	return chunks, nil
}

// Split chunks raw text units (pages, or a whole text file). Chunks are
// numbered in order across all units.
func (d *DocumentIndexer) Split(units []schema.Document) ([]models.TextChunk, error) {
	docs, err := textsplitter.SplitDocuments(d.splitter, units)
	if err != nil {
		return nil, err
	}

	chunks := make([]models.TextChunk, 0, len(docs))
	for i, doc := range docs {
		chunk := models.ChunkFromMetadata("", doc.PageContent, doc.Metadata)
		chunk.Index = i
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func (d *DocumentIndexer) readUnits(path string) ([]schema.Document, error) {
	switch KindForPath(path) {
	case models.KindPDF:
		pages, err := d.extractPDF(path)
		if err != nil {
			return nil, err
		}
		units := make([]schema.Document, 0, len(pages))
		for i, text := range pages {
			units = append(units, schema.Document{
				PageContent: text,
				Metadata:    map[string]any{"source": path, "page": i + 1},
			})
		}
		return units, nil
	default:
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(content) {
			return nil, fmt.Errorf("not valid UTF-8 text")
		}
		return []schema.Document{{
			PageContent: string(content),
			Metadata:    map[string]any{"source": path},
		}}, nil
	}
}

// extractPagesFromPDF uses UniPDF to get the text of each page.
func extractPagesFromPDF(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pdfReader, err := model.NewPdfReader(f)
	if err != nil {
		return nil, err
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return nil, err
	}

	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}

		ex, err := extractor.New(page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}

		text, err := ex.ExtractText()
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
