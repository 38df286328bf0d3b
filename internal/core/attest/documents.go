package attest

import (
	"crypto/sha256"
	"encoding/hex"
)

// Document chunking defaults, shared with the retrieval layer.
const (
	DefaultChunkSize    = 512
	DefaultChunkOverlap = 50
)

// ChunkDocument splits text into overlapping character windows. The last
// chunk may be shorter than size.
func ChunkDocument(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 10
		}
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := size - overlap
	chunks := make([]string, 0, (len(runes)+step-1)/step)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// HashChunk returns the hex SHA-256 hash of a chunk. These hashes are the
// document tree leaf inputs.
func HashChunk(chunk string) string {
	digest := sha256.Sum256([]byte(chunk))
	return hex.EncodeToString(digest[:])
}

// HashModelName returns the hex SHA-256 identity hash for a model name, the
// value registered in the approved-model set.
func HashModelName(name string) string {
	digest := sha256.Sum256([]byte(name))
	return hex.EncodeToString(digest[:])
}

// HashDocument hashes a whole document into chunk hashes using the default
// chunking parameters.
func HashDocument(text string) []string {
	chunks := ChunkDocument(text, DefaultChunkSize, DefaultChunkOverlap)
	hashes := make([]string, len(chunks))
	for i, c := range chunks {
		hashes[i] = HashChunk(c)
	}
	return hashes
}
