package fs

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"hybridrag/internal/domain"
)

const maxRecordSize = 16 << 20

// JSONLReader reads one {"id","text","embedding"} record per line.
// Blank lines are skipped; embedding may be omitted.
type JSONLReader struct{}

func NewJSONLReader() *JSONLReader {
	return &JSONLReader{}
}

func (r *JSONLReader) ReadDocuments(path string) ([]domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var docs []domain.Document
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxRecordSize)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var doc domain.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if doc.ID == "" {
			return nil, fmt.Errorf("%s:%d: missing id", path, line)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return docs, nil
}
