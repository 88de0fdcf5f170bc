package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker_Split(t *testing.T) {
	c := NewChunker(10, 2)

	assert.Nil(t, c.Split("  \n\t "))
	assert.Equal(t, []string{"pump seal"}, c.Split("  pump \n\n seal  "))

	pieces := c.Split(strings.Repeat("a", 25))
	require.Len(t, pieces, 3)
	assert.Equal(t, 10, len(pieces[0]))
	assert.Equal(t, 10, len(pieces[1]))
	assert.Equal(t, 9, len(pieces[2]))
}

func TestChunker_Defaults(t *testing.T) {
	c := NewChunker(0, 900)
	assert.Equal(t, 800, c.size)
	assert.Equal(t, 200, c.overlap)
}

func TestChunker_SplitDocument(t *testing.T) {
	page := int64(2)
	base := ChunkInput{
		ID:         "ignored",
		S3Key:      "manuals/p101.txt",
		S3URL:      "https://files/manuals/p101.txt",
		FileType:   "txt",
		PageNumber: &page,
	}

	inputs := NewChunker(12, 0).SplitDocument("Check the mechanical seal weekly.", base)
	require.Len(t, inputs, 3)
	for i, in := range inputs {
		assert.Equal(t, int64(i), in.ChunkIndex)
		assert.Empty(t, in.ID)
		assert.Equal(t, "manuals/p101.txt", in.S3Key)
		assert.Equal(t, &page, in.PageNumber)
	}
	assert.Equal(t, "Check the me", inputs[0].Text)
}
