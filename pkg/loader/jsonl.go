package loader

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/papercomputeco/vellum/pkg/document"
)

const maxLine = 16 << 20

// LoadJSONL reads one {"content": ..., "metadata": {...}} object per line.
// Blank lines are skipped.
func LoadJSONL(r io.Reader) ([]document.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLine)

	var docs []document.Document
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var doc document.Document
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if doc.Metadata == nil {
			doc.Metadata = map[string]any{}
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading documents: %w", err)
	}
	return docs, nil
}
