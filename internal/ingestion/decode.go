package ingestion

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
)

// NDJSONContentType selects one document per line on the ingest endpoint.
const NDJSONContentType = "application/x-ndjson"

// DecodeDocuments reads either a JSON array of objects or one object per
// line. Blank lines are skipped.
func DecodeDocuments(r io.Reader) ([]map[string]any, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if first == '[' {
		return decodeArray(br)
	}
	return decodeLines(br)
}

// DecodeRequest reads an ingest body. NDJSON bodies hold one document per
// line; JSON bodies hold either an IngestRequest or a bare array.
func DecodeRequest(r io.Reader, contentType string) ([]map[string]any, error) {
	if mt, _, _ := mime.ParseMediaType(contentType); mt == NDJSONContentType {
		return decodeLines(bufio.NewReader(r))
	}
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		return nil, fmt.Errorf("empty body: %w", err)
	}
	if first == '[' {
		return decodeArray(br)
	}
	var req IngestRequest
	if err := json.NewDecoder(br).Decode(&req); err != nil {
		return nil, fmt.Errorf("decoding ingest request: %w", err)
	}
	return req.Documents, nil
}

func decodeArray(r io.Reader) ([]map[string]any, error) {
	var docs []map[string]any
	if err := json.NewDecoder(r).Decode(&docs); err != nil {
		return nil, fmt.Errorf("decoding document array: %w", err)
	}
	return docs, nil
}

func decodeLines(r io.Reader) ([]map[string]any, error) {
	var docs []map[string]any
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16<<20)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading documents: %w", err)
	}
	return docs, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			if _, err := br.ReadByte(); err != nil {
				return 0, err
			}
		default:
			return b[0], nil
		}
	}
}
