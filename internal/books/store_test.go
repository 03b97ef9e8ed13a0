package books

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAppendFindRemove(t *testing.T) {
	s := NewMemoryStore()
	s.Append(Book{ID: "a", Name: "First"})
	s.Append(Book{ID: "b", Name: "Second"})
	s.Append(Book{ID: "c", Name: "Third"})
	require.Equal(t, 3, s.Len())

	book, index, ok := s.Find("b")
	require.True(t, ok)
	assert.Equal(t, 1, index)
	assert.Equal(t, "Second", book.Name)

	require.NoError(t, s.Remove(index))
	_, _, ok = s.Find("b")
	assert.False(t, ok)

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "c", all[1].ID)
}

func TestMemoryStoreReplaceInPlace(t *testing.T) {
	s := NewMemoryStore()
	s.Append(Book{ID: "a", Name: "Old"})

	require.NoError(t, s.Replace(0, Book{ID: "a", Name: "New"}))
	book, _, ok := s.Find("a")
	require.True(t, ok)
	assert.Equal(t, "New", book.Name)
}

func TestMemoryStoreOutOfRange(t *testing.T) {
	s := NewMemoryStore()
	assert.Error(t, s.Replace(0, Book{}))
	assert.Error(t, s.Remove(-1))
	assert.Error(t, s.Remove(0))
}

func TestMemoryStoreAllReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	s.Append(Book{ID: "a", Name: "Original"})

	all := s.All()
	all[0].Name = "Mutated"

	book, _, _ := s.Find("a")
	assert.Equal(t, "Original", book.Name)
}

func TestMemoryStoreFindMissing(t *testing.T) {
	_, index, ok := NewMemoryStore().Find("nope")
	assert.False(t, ok)
	assert.Equal(t, -1, index)
}
