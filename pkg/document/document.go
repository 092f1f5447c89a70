// Package document defines the units that flow through ingestion: documents
// produced by loaders and the chunks cut from them.
package document

// SourceType identifies where a document came from.
type SourceType string

const (
	SourceTypePDF     SourceType = "pdf"
	SourceTypeWeb     SourceType = "web"
	SourceTypeYouTube SourceType = "youtube"
	SourceTypeGitHub  SourceType = "github"
	SourceTypeTest    SourceType = "test"
	SourceTypeOther   SourceType = "other"
)

// Well known metadata and payload keys.
const (
	KeySourceType      = "source_type"
	KeySourceAuthority = "source_authority"
	KeySourceURL       = "source_url"
	KeySourcePath      = "source_path"
	KeyTitle           = "title"

	KeyText        = "text"
	KeyChunkIndex  = "chunk_index"
	KeyTotalChunks = "total_chunks"
)

// Document is raw text plus loader supplied metadata. Loaders must set
// source_type; source_authority is defaulted from the authority policy
// when missing.
type Document struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// SourceType returns the document's source type, or SourceTypeOther when unset.
func (d Document) SourceType() SourceType {
	if d.Metadata == nil {
		return SourceTypeOther
	}
	if s, ok := d.Metadata[KeySourceType].(string); ok && s != "" {
		return SourceType(s)
	}
	if s, ok := d.Metadata[KeySourceType].(SourceType); ok && s != "" {
		return s
	}
	return SourceTypeOther
}

// Chunk is one retrievable slice of a document.
type Chunk struct {
	Text  string
	Index int
	Total int
}

// Chunks numbers texts in order.
func Chunks(texts []string) []Chunk {
	chunks := make([]Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = Chunk{Text: t, Index: i, Total: len(texts)}
	}
	return chunks
}

// Valid reports whether st is one of the known source types.
func (st SourceType) Valid() bool {
	switch st {
	case SourceTypePDF, SourceTypeWeb, SourceTypeYouTube, SourceTypeGitHub, SourceTypeTest, SourceTypeOther:
		return true
	}
	return false
}
