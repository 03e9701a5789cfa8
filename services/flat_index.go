package services

import (
	"encoding/gob"
	"fmt"
	"os"
	"sort"
)

// FlatIndex is a brute-force nearest-neighbor index over squared L2 distance.
// It holds the raw document-vector matrix in memory and is never mutated after
// load, so concurrent searches need no locking.
type FlatIndex struct {
	dimension int
	vectors   [][]float32
}

// flatIndexFile is the gob serialization of a FlatIndex.
type flatIndexFile struct {
	Dimension int
	Vectors   [][]float32
}

// NewFlatIndex creates an empty index for vectors of the given dimension.
func NewFlatIndex(dimension int) (*FlatIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid index dimension %d", dimension)
	}
	return &FlatIndex{dimension: dimension}, nil
}

// Add appends vectors to the index. All vectors must match the index dimension.
func (ix *FlatIndex) Add(vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != ix.dimension {
			return fmt.Errorf("vector %d has dimension %d, index expects %d", i, len(v), ix.dimension)
		}
	}
	ix.vectors = append(ix.vectors, vectors...)
	return nil
}

// Len returns the number of indexed vectors.
func (ix *FlatIndex) Len() int {
	return len(ix.vectors)
}

// Search returns the k nearest vectors to the query as parallel slices of
// squared L2 distances and vector indices, nearest first. Equal distances keep
// insertion order so results are reproducible.
func (ix *FlatIndex) Search(query []float32, k int) ([]float32, []int, error) {
	if len(query) != ix.dimension {
		return nil, nil, fmt.Errorf("query has dimension %d, index expects %d", len(query), ix.dimension)
	}
	if k <= 0 || len(ix.vectors) == 0 {
		return nil, nil, nil
	}

	distances := make([]float32, len(ix.vectors))
	for i, v := range ix.vectors {
		var sum float32
		for j := range v {
			d := v[j] - query[j]
			sum += d * d
		}
		distances[i] = sum
	}

	order := make([]int, len(distances))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return distances[order[a]] < distances[order[b]]
	})

	if k > len(order) {
		k = len(order)
	}
	outDist := make([]float32, k)
	outIdx := make([]int, k)
	for i := 0; i < k; i++ {
		outIdx[i] = order[i]
		outDist[i] = distances[order[i]]
	}
	return outDist, outIdx, nil
}

// Save writes the index to disk.
func (ix *FlatIndex) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(flatIndexFile{
		Dimension: ix.dimension,
		Vectors:   ix.vectors,
	}); err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	return nil
}

// LoadFlatIndex reads an index back from disk.
func LoadFlatIndex(path string) (*FlatIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}
	defer f.Close()

	var file flatIndexFile
	if err := gob.NewDecoder(f).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode index: %w", err)
	}
	return &FlatIndex{dimension: file.Dimension, vectors: file.Vectors}, nil
}
