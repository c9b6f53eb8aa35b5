package column

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/tree"
)

// CreatePage serializes t as a new page at the end of index and records it in
// pages. postings may be nil when every node already points at an existing
// posting chain. An empty tree writes nothing. The nodes take their new
// offsets only after the page entry is written.
func CreatePage(t *tree.Tree, vectors tree.Stream, postings tree.PostingsWriter, index tree.Stream, pages *PageIndexWriter) (depth, width int, err error) {
	if t.Count() == 0 {
		return 0, 0, nil
	}
	offset := index.Position()
	layout, err := t.Write(vectors, postings, index)
	if err != nil {
		return 0, 0, fmt.Errorf("serializing page at %d: %w", offset, err)
	}
	if err := pages.Put(offset, layout.Records*tree.RecordSize); err != nil {
		return 0, 0, err
	}
	layout.Apply()
	depth, width = t.Size()
	return depth, width, nil
}
