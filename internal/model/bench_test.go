package model

import (
	"strings"
	"testing"
)

var benchText = strings.Repeat("the quick brown fox jumps over the lazy dog while vectors fold into trees ", 20)

func BenchmarkTokenize(b *testing.B) {
	b.ReportAllocs()
	b.SetBytes(int64(len(benchText)))
	for i := 0; i < b.N; i++ {
		_ = Tokenize(benchText)
	}
}

func BenchmarkCreateEmbedding(b *testing.B) {
	m := NewBagOfChars(Options{})
	b.ReportAllocs()
	b.SetBytes(int64(len(benchText)))
	for i := 0; i < b.N; i++ {
		_ = m.CreateEmbedding(benchText, false)
	}
}

func BenchmarkCosAngle(b *testing.B) {
	m := NewBagOfChars(Options{})
	x := m.CreateEmbedding("elderberry", false)[0]
	y := m.CreateEmbedding("elderberries", false)[0]
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = m.CosAngle(x, y)
	}
}
