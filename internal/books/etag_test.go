package books

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityTagTracksContent(t *testing.T) {
	book := &Book{ID: "a", Name: "Dune", PageCount: 10}
	first, err := entityTag(book)
	require.NoError(t, err)
	again, err := entityTag(book)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Len(t, first, 34)

	book.ReadPage = 1
	changed, err := entityTag(book)
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)
}

func TestETagMatches(t *testing.T) {
	tag := `"abc"`
	assert.False(t, etagMatches("", tag))
	assert.True(t, etagMatches(`"abc"`, tag))
	assert.True(t, etagMatches(`W/"abc"`, tag))
	assert.True(t, etagMatches(`"x", "abc"`, tag))
	assert.True(t, etagMatches(`*`, tag))
	assert.False(t, etagMatches(`"abd"`, tag))
}
