package models

// DocumentKind tells the indexer which loader to use for a file.
type DocumentKind int

const (
	KindPlainText DocumentKind = iota
	KindPDF
)

func (k DocumentKind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	default:
		return "text"
	}
}

// DocumentReference is a discovered file inside a country directory.
type DocumentReference struct {
	Path string       `json:"path"`
	Kind DocumentKind `json:"kind"`
}

// TextChunk is a bounded excerpt of a document, ready for embedding.
type TextChunk struct {
	ID      string `json:"id,omitempty"`
	Text    string `json:"text"`
	Source  string `json:"source,omitempty"`
	Country string `json:"country,omitempty"`
	Page    int    `json:"page,omitempty"`
	Index   int    `json:"chunk_num"`
}

// Metadata flattens the chunk attribution into vector store payload form.
func (c TextChunk) Metadata() map[string]any {
	meta := map[string]any{
		"chunk_num": int64(c.Index),
	}
	if c.Source != "" {
		meta["source"] = c.Source
	}
	if c.Country != "" {
		meta["country"] = c.Country
	}
	if c.Page > 0 {
		meta["page"] = int64(c.Page)
	}
	return meta
}

// ChunkFromMetadata rebuilds a chunk from stored text and payload values.
// Numbers may come back as int64 or float64 depending on the store.
func ChunkFromMetadata(id, text string, meta map[string]any) TextChunk {
	chunk := TextChunk{ID: id, Text: text}
	if v, ok := meta["source"].(string); ok {
		chunk.Source = v
	}
	if v, ok := meta["country"].(string); ok {
		chunk.Country = v
	}
	chunk.Page = intValue(meta["page"])
	chunk.Index = intValue(meta["chunk_num"])
	return chunk
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	default:
		return 0
	}
}
