package bindings

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zkrag/zkrag/internal/core/attest"
)

// The bindings hold a process-wide manager, so the whole surface is
// exercised in one ordered test.
func TestBindingsEndToEnd(t *testing.T) {
	modelHash := attest.HashModelName("all-MiniLM-L6-v2")

	cfg := &attest.Config{
		TreeDepth:      3,
		NumResults:     2,
		ModelTreeDepth: 2,
		ApprovedModels: []string{modelHash},
		WindowStart:    1000,
		WindowEnd:      2000,
		KeyDir:         t.TempDir(),
		ProofTimeout:   2 * time.Minute,
	}
	require.NoError(t, Configure(cfg))
	require.Error(t, Configure(cfg), "second Configure must fail")

	require.NoError(t, Setup())

	docs := make([]string, 5)
	for i := range docs {
		docs[i] = attest.HashChunk(fmt.Sprintf("chunk %d", i))
	}
	commitment, err := ComputeDocumentCommitment(docs)
	require.NoError(t, err)

	proofHex, err := GenerateProof(docs, "a question", []float64{0.1, -0.2}, []int{0, 2},
		commitment, modelHash, 1500)
	require.NoError(t, err)
	require.NotEmpty(t, proofHex)

	valid, err := VerifyProof(proofHex, commitment, modelHash, 1500)
	require.NoError(t, err)
	require.True(t, valid)

	valid, err = VerifyProof(proofHex, commitment, modelHash, 1501)
	require.NoError(t, err)
	require.False(t, valid)

	_, err = VerifyProof("zz-not-hex", commitment, modelHash, 1500)
	require.ErrorIs(t, err, attest.ErrMalformedProof)

	detailed, err := VerifyProofDetailed(proofHex, commitment, modelHash, 1500)
	require.NoError(t, err)

	var result attest.VerificationResult
	require.NoError(t, json.Unmarshal([]byte(detailed), &result))
	require.True(t, result.Valid)
	require.Equal(t, commitment, result.PublicInputs.DocumentCommitment)
	require.EqualValues(t, 1500, result.PublicInputs.Timestamp)
}
