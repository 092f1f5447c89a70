package vector

import (
	"crypto/sha256"
	"fmt"
	"slices"
	"strconv"

	"github.com/google/uuid"

	"github.com/papercomputeco/vellum/pkg/document"
	"github.com/papercomputeco/vellum/pkg/metadata"
	"github.com/papercomputeco/vellum/pkg/utils"
)

const (
	contentPrefix = 100
	chunkPrefix   = 50
	separator     = "\x1f"
)

// PointID derives a stable point identifier from a document's content, the
// chunk position and the chunk text. Identical inputs always yield the same
// UUID, on any host.
func PointID(content string, chunkIndex int, chunkText string) string {
	h := sha256.New()
	h.Write([]byte(utils.Clip(content, contentPrefix)))
	h.Write([]byte(separator))
	h.Write([]byte(strconv.Itoa(chunkIndex)))
	h.Write([]byte(separator))
	h.Write([]byte(utils.Clip(chunkText, chunkPrefix)))
	sum := h.Sum(nil)

	var id uuid.UUID
	copy(id[:], sum[:16])
	id[6] = (id[6] & 0x0f) | 0x80
	id[8] = (id[8] & 0x3f) | 0x80
	return id.String()
}

// NewPayload builds the stored payload for a chunk: its text and position
// merged over already normalized document metadata.
func NewPayload(md map[string]any, chunk document.Chunk) map[string]any {
	payload := make(map[string]any, len(md)+3)
	for k, v := range md {
		payload[k] = v
	}
	payload[document.KeyText] = chunk.Text
	payload[document.KeyChunkIndex] = chunk.Index
	payload[document.KeyTotalChunks] = chunk.Total
	return payload
}

// CheckPayload reports ErrRecursivePayload when a payload cannot be encoded
// because it references itself or exceeds the nesting bound.
func CheckPayload(payload map[string]any) error {
	if metadata.IsCyclic(payload) {
		return fmt.Errorf("%w: payload with keys %v", ErrRecursivePayload, Keys(payload))
	}
	return nil
}

// Keys returns the payload's keys, for logging.
func Keys(payload map[string]any) []string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
