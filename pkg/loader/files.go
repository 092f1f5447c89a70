// Package loader reads local text sources into documents ready for ingestion.
package loader

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/papercomputeco/vellum/pkg/document"
)

// Extensions lists the file types LoadFiles reads.
var Extensions = []string{".txt", ".md", ".mdx"}

// LoadFiles reads files, directories (recursively) and glob patterns.
// Markdown front matter is merged into the document metadata. Files under a
// testdata directory are tagged as test sources, everything else as other.
func LoadFiles(paths []string) ([]document.Document, error) {
	var files []string
	for _, p := range paths {
		matches, err := expand(p)
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}

	docs := make([]document.Document, 0, len(files))
	seen := map[string]bool{}
	for _, f := range files {
		if seen[f] {
			continue
		}
		seen[f] = true

		doc, ok, err := loadFile(f)
		if err != nil {
			return nil, err
		}
		if ok {
			docs = append(docs, doc)
		}
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDocuments, strings.Join(paths, ", "))
	}
	return docs, nil
}

func expand(pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDocuments, pattern)
	}

	var files []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, m)
			continue
		}

		err = filepath.WalkDir(m, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != m && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if supported(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", m, err)
		}
	}
	return files, nil
}

func supported(path string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(path)))
}

func loadFile(path string) (document.Document, bool, error) {
	if !supported(path) {
		return document.Document{}, false, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return document.Document{}, false, fmt.Errorf("reading %s: %w", path, err)
	}

	md := map[string]any{}
	content := string(raw)
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".md" || ext == ".mdx" {
		var front map[string]any
		front, content, err = splitFrontMatter(raw)
		if err != nil {
			return document.Document{}, false, fmt.Errorf("parsing front matter in %s: %w", path, err)
		}
		for k, v := range front {
			md[k] = v
		}
	}

	if strings.TrimSpace(content) == "" {
		return document.Document{}, false, nil
	}

	// Front matter may declare its own source_type.
	if declared, _ := md[document.KeySourceType].(string); strings.TrimSpace(declared) == "" {
		st := document.SourceTypeOther
		if slices.Contains(strings.Split(filepath.ToSlash(path), "/"), "testdata") {
			st = document.SourceTypeTest
		}
		md[document.KeySourceType] = string(st)
	}
	md[document.KeySourcePath] = path
	if _, ok := md[document.KeyTitle]; !ok {
		md[document.KeyTitle] = title(content, path)
	}

	return document.Document{Content: content, Metadata: md}, true, nil
}

// splitFrontMatter separates a leading YAML block delimited by "---" lines.
func splitFrontMatter(raw []byte) (map[string]any, string, error) {
	text := bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(text, []byte("---\n")) {
		return nil, string(raw), nil
	}

	rest := text[len("---\n"):]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return nil, string(raw), nil
	}

	var front map[string]any
	if err := yaml.Unmarshal(rest[:end], &front); err != nil {
		return nil, "", err
	}

	body := rest[end+len("\n---"):]
	body = bytes.TrimLeft(body, "-")
	body = bytes.TrimPrefix(body, []byte("\n"))
	return front, string(body), nil
}

func title(content, path string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return filepath.Base(path)
}
