package session

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/docstore"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/model"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/query"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/strategy"
)

var benchWords = []string{
	"apple", "banana", "cherry", "damson", "elderberry", "fig", "grape",
	"huckleberry", "kiwi", "lemon", "mango", "nectarine", "orange", "papaya",
}

func benchDoc(i int) map[string]any {
	return map[string]any{
		"title":       fmt.Sprintf("%s %d", benchWords[i%len(benchWords)], i),
		"description": fmt.Sprintf("%s with %s", benchWords[(i*7)%len(benchWords)], benchWords[(i*3)%len(benchWords)]),
	}
}

func benchIndexer(b *testing.B, strat strategy.Strategy) (*Indexer, *storage.Provider, *docstore.Memory, model.Model) {
	b.Helper()
	provider, err := storage.NewProvider(filepath.Join(b.TempDir(), "index"))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { provider.Close() })
	docs := docstore.NewMemory()
	m := model.NewBagOfChars(model.Options{})
	return NewIndexer(provider, docs, m, strat, nil), provider, docs, m
}

// BenchmarkIndexBatch measures one committed session of 100 documents per
// iteration for each strategy.
func BenchmarkIndexBatch(b *testing.B) {
	for _, strat := range []strategy.Strategy{strategy.LogStructured, strategy.Optimized} {
		b.Run(strat.String(), func(b *testing.B) {
			indexer, _, _, _ := benchIndexer(b, strat)
			batch := make([]map[string]any, 100)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				for j := range batch {
					batch[j] = benchDoc(i*len(batch) + j)
				}
				if _, err := indexer.IndexDocuments(context.Background(), "bench", batch); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkSearch measures query latency over 2000 documents committed in
// 20 pages.
func BenchmarkSearch(b *testing.B) {
	for _, strat := range []strategy.Strategy{strategy.LogStructured, strategy.Optimized} {
		b.Run(strat.String(), func(b *testing.B) {
			indexer, provider, docs, m := benchIndexer(b, strat)
			for page := 0; page < 20; page++ {
				batch := make([]map[string]any, 100)
				for j := range batch {
					batch[j] = benchDoc(page*100 + j)
				}
				if _, err := indexer.IndexDocuments(context.Background(), "bench", batch); err != nil {
					b.Fatal(err)
				}
			}
			search := NewSearchSession(provider, docs, m, strat, nil)
			parser := query.NewParser(m, []string{"title", "description"})
			cid := storage.CollectionID("bench")

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				q, err := parser.Parse(cid, "title:mango OR description:kiwi", nil)
				if err != nil {
					b.Fatal(err)
				}
				if _, err := search.Search(context.Background(), q, 0, 10); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
