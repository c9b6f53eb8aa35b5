// Package model defines the embedding contract the index is generic over and
// ships the bag-of-characters reference model.
package model

import "github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/vector"

// Comparer is the part of a model the tree builder and the column reader
// need: a similarity function and the two thresholds that steer a walk.
// FoldAngle must be lower than IdenticalAngle.
type Comparer interface {
	CosAngle(a, b *vector.Vector) float64
	IdenticalAngle() float64
	FoldAngle() float64
}

// Model turns raw field values into vectors.
type Model interface {
	Comparer
	// CreateEmbedding returns one vector per token of value. When label is
	// true every vector carries its token text as Label.
	CreateEmbedding(value string, label bool) []*vector.Vector
	NumOfDimensions() int
}
