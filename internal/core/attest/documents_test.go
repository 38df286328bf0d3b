package attest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkDocument(t *testing.T) {
	text := strings.Repeat("a", 1200)
	chunks := ChunkDocument(text, 512, 50)
	require.NotEmpty(t, chunks)

	// Full-size chunks except possibly the last.
	for i, c := range chunks[:len(chunks)-1] {
		require.Len(t, c, 512, "chunk %d", i)
	}

	// Consecutive chunks overlap by 50 characters.
	require.Equal(t, chunks[0][512-50:], chunks[1][:50])
}

func TestChunkDocumentShortText(t *testing.T) {
	chunks := ChunkDocument("short", 512, 50)
	require.Equal(t, []string{"short"}, chunks)

	require.Nil(t, ChunkDocument("", 512, 50))
}

func TestChunkDocumentDefaults(t *testing.T) {
	text := strings.Repeat("b", 600)

	// Bad parameters fall back to defaults instead of panicking.
	chunks := ChunkDocument(text, 0, 0)
	require.NotEmpty(t, chunks)

	chunks = ChunkDocument(text, 100, 100)
	require.NotEmpty(t, chunks)
}

func TestHashChunkStable(t *testing.T) {
	h1 := HashChunk("same content")
	h2 := HashChunk("same content")
	require.Equal(t, h1, h2)
	require.Len(t, h1, HashHexLength)

	require.NotEqual(t, h1, HashChunk("other content"))
}

func TestHashDocumentFeedsCommitmentPipeline(t *testing.T) {
	hashes := HashDocument(strings.Repeat("policy text ", 100))
	require.NotEmpty(t, hashes)

	enc := NewFieldEncoder()
	for _, h := range hashes {
		_, err := enc.EncodeDocumentHash(h)
		require.NoError(t, err)
	}
}

func TestHashModelName(t *testing.T) {
	h := HashModelName("all-MiniLM-L6-v2")
	require.Len(t, h, HashHexLength)
	require.Equal(t, h, HashModelName("all-MiniLM-L6-v2"))
}
