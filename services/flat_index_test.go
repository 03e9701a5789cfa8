package services

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatIndex_Search(t *testing.T) {
	ix, err := NewFlatIndex(2)
	require.NoError(t, err)
	require.NoError(t, ix.Add([][]float32{
		{0, 0},
		{3, 4},
		{1, 0},
	}))

	distances, indices, err := ix.Search([]float32{0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, indices, 2)

	assert.Equal(t, []int{0, 2}, indices)
	assert.Equal(t, float32(0), distances[0])
	assert.Equal(t, float32(1), distances[1])
}

func TestFlatIndex_StableTies(t *testing.T) {
	ix, err := NewFlatIndex(1)
	require.NoError(t, err)
	require.NoError(t, ix.Add([][]float32{{1}, {1}, {1}}))

	_, indices, err := ix.Search([]float32{0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, indices)
}

func TestFlatIndex_KLargerThanIndex(t *testing.T) {
	ix, err := NewFlatIndex(1)
	require.NoError(t, err)
	require.NoError(t, ix.Add([][]float32{{1}, {2}}))

	_, indices, err := ix.Search([]float32{0}, 10)
	require.NoError(t, err)
	assert.Len(t, indices, 2)
}

func TestFlatIndex_DimensionMismatch(t *testing.T) {
	ix, err := NewFlatIndex(2)
	require.NoError(t, err)

	assert.Error(t, ix.Add([][]float32{{1, 2, 3}}))

	_, _, err = ix.Search([]float32{1}, 1)
	assert.Error(t, err)
}

func TestFlatIndex_InvalidDimension(t *testing.T) {
	_, err := NewFlatIndex(0)
	assert.Error(t, err)
}

func TestFlatIndex_SaveLoad(t *testing.T) {
	ix, err := NewFlatIndex(2)
	require.NoError(t, err)
	require.NoError(t, ix.Add([][]float32{{1, 2}, {3, 4}}))

	path := filepath.Join(t.TempDir(), "index.gob")
	require.NoError(t, ix.Save(path))

	loaded, err := LoadFlatIndex(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())

	_, indices, err := loaded.Search([]float32{1, 2}, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, indices)
}

func TestLoadFlatIndex_MissingFile(t *testing.T) {
	_, err := LoadFlatIndex(filepath.Join(t.TempDir(), "absent.gob"))
	assert.Error(t, err)
}
