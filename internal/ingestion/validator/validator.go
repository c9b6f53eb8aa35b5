// Package validator checks documents before they are published for
// indexing.
package validator

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/docstore"
)

const (
	maxDocuments     = 1000
	maxFields        = 256
	maxFieldName     = 128
	maxValueLength   = 1048576
	maxCollectionLen = 255
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	return strings.Join(parts, "; ")
}

// ValidateIngest checks the collection name and every document. Field names
// must be usable as query prefixes, so they may not contain whitespace,
// colons or parentheses.
func ValidateIngest(collection string, docs []map[string]any) error {
	errs := make(map[string]string)

	name := strings.TrimSpace(collection)
	switch {
	case name == "":
		errs["collection"] = "collection is required"
	case len(name) > maxCollectionLen:
		errs["collection"] = fmt.Sprintf("collection must be at most %d characters", maxCollectionLen)
	}
	switch {
	case len(docs) == 0:
		errs["documents"] = "at least one document is required"
	case len(docs) > maxDocuments:
		errs["documents"] = fmt.Sprintf("at most %d documents per request", maxDocuments)
	}

	for i, doc := range docs {
		prefix := fmt.Sprintf("documents[%d]", i)
		if len(doc) == 0 {
			errs[prefix] = "document has no fields"
			continue
		}
		if len(doc) > maxFields {
			errs[prefix] = fmt.Sprintf("document has more than %d fields", maxFields)
			continue
		}
		indexable := 0
		for field, value := range doc {
			if msg := checkFieldName(field); msg != "" {
				errs[prefix+"."+field] = msg
				continue
			}
			text, ok := docstore.Text(value)
			if !ok {
				continue
			}
			if len(text) > maxValueLength {
				errs[prefix+"."+field] = fmt.Sprintf("value must be at most %d bytes", maxValueLength)
				continue
			}
			indexable++
		}
		if indexable == 0 {
			if _, reported := errs[prefix]; !reported {
				errs[prefix] = "document has no indexable field"
			}
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func checkFieldName(field string) string {
	if field == "" {
		return "field name is empty"
	}
	if len(field) > maxFieldName {
		return fmt.Sprintf("field name must be at most %d characters", maxFieldName)
	}
	for _, r := range field {
		if unicode.IsSpace(r) || r == ':' || r == '(' || r == ')' || r == '"' {
			return fmt.Sprintf("field name may not contain %q", r)
		}
	}
	return ""
}
