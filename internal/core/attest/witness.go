package attest

import (
	"fmt"
	"math/big"

	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/zkrag/zkrag/internal/core/attest/circuits"
)

// QueryWitness carries everything the prover needs for one attested query.
// Only DocumentCommitment, ModelHash and Timestamp become public; the rest is
// private witness and never leaves the prover.
type QueryWitness struct {
	// DocumentHashes are the hex SHA-256 hashes of every chunk in the
	// committed document set, in leaf order.
	DocumentHashes []string `json:"document_hashes"`

	// QueryText is the raw query. Private.
	QueryText string `json:"query_text"`

	// QueryEmbedding is the query embedding vector. Private.
	QueryEmbedding []float64 `json:"query_embedding"`

	// RetrievedIndices are the leaf indices of the retrieved chunks. The
	// count must equal the circuit shape's result slots and entries must be
	// distinct.
	RetrievedIndices []int `json:"retrieved_indices"`

	// DocumentCommitment is the hex Merkle root the document set was
	// registered under. Public.
	DocumentCommitment string `json:"document_commitment"`

	// ModelHash is the hex SHA-256 identity hash of the embedding model. Public.
	ModelHash string `json:"model_hash"`

	// Timestamp is the query execution time, Unix seconds. Public.
	Timestamp uint64 `json:"timestamp"`
}

// PublicInputs is the verifier-visible triple. Field order is the wire
// contract and must never change.
type PublicInputs struct {
	DocumentCommitment string `json:"document_commitment"`
	ModelHash          string `json:"model_hash"`
	Timestamp          uint64 `json:"timestamp"`
}

// Public extracts the public inputs from a witness.
func (w *QueryWitness) Public() PublicInputs {
	return PublicInputs{
		DocumentCommitment: w.DocumentCommitment,
		ModelHash:          w.ModelHash,
		Timestamp:          w.Timestamp,
	}
}

// Validate checks the witness structure against a shape before any encoding.
func (w *QueryWitness) Validate(shape circuits.Shape) error {
	if len(w.DocumentHashes) == 0 {
		return WrapInvalidWitnessError("no document hashes")
	}
	if len(w.DocumentHashes) > 1<<shape.TreeDepth {
		return WrapShapeMismatchError("document_count", fmt.Sprintf("<= %d", 1<<shape.TreeDepth), len(w.DocumentHashes))
	}
	if len(w.RetrievedIndices) != shape.NumResults {
		return WrapInvalidWitnessError(fmt.Sprintf("expected %d retrieved indices, got %d", shape.NumResults, len(w.RetrievedIndices)))
	}
	if len(w.QueryEmbedding) == 0 {
		return WrapInvalidWitnessError("empty query embedding")
	}
	if w.QueryText == "" {
		return WrapInvalidWitnessError("empty query text")
	}
	return nil
}

// encodedWitness is the field-encoded form of a QueryWitness.
type encodedWitness struct {
	leaves     []fr.Element
	tree       *MerkleTree
	commitment fr.Element
	modelHash  fr.Element
	embedding  []fr.Element
	indices    []int
	timestamp  uint64
}

// encodeWitness validates and maps a witness into the field. The document
// tree is rebuilt here so the prover can cross-check the claimed commitment.
func encodeWitness(enc *FieldEncoder, shape circuits.Shape, w *QueryWitness) (*encodedWitness, error) {
	if err := w.Validate(shape); err != nil {
		return nil, err
	}

	leaves := make([]fr.Element, len(w.DocumentHashes))
	for i, h := range w.DocumentHashes {
		elem, err := enc.EncodeDocumentHash(h)
		if err != nil {
			return nil, err
		}
		leaves[i] = elem
	}

	commitment, err := enc.EncodeCommitment(w.DocumentCommitment)
	if err != nil {
		return nil, err
	}

	modelHash, err := enc.EncodeModelHash(w.ModelHash)
	if err != nil {
		return nil, err
	}

	embedding, err := enc.EncodeEmbedding(w.QueryEmbedding)
	if err != nil {
		return nil, err
	}

	tree, err := BuildMerkleTree(leaves, shape.TreeDepth)
	if err != nil {
		return nil, err
	}

	return &encodedWitness{
		leaves:     leaves,
		tree:       tree,
		commitment: commitment,
		modelHash:  modelHash,
		embedding:  embedding,
		indices:    w.RetrievedIndices,
		timestamp:  w.Timestamp,
	}, nil
}

// buildAssignment fills a circuit instance with the full witness.
func buildAssignment(shape circuits.Shape, ew *encodedWitness, modelTree *MerkleTree, modelIndex int) (*circuits.DocumentQueryCircuit, error) {
	assignment, err := circuits.NewDocumentQueryCircuit(shape)
	if err != nil {
		return nil, err
	}

	assignment.DocumentCommitment = elementToBig(ew.commitment)
	assignment.ModelHash = elementToBig(ew.modelHash)
	assignment.Timestamp = ew.timestamp

	for slot, idx := range ew.indices {
		siblings, err := ew.tree.Path(idx)
		if err != nil {
			return nil, err
		}
		assignment.Results[slot].Leaf = elementToBig(ew.leaves[idx])
		assignment.Results[slot].Index = idx
		for level, sib := range siblings {
			assignment.Results[slot].Siblings[level] = elementToBig(sib)
		}
	}

	modelSiblings, err := modelTree.Path(modelIndex)
	if err != nil {
		return nil, err
	}
	assignment.ModelIndex = modelIndex
	for level, sib := range modelSiblings {
		assignment.ModelPath[level] = elementToBig(sib)
	}

	return assignment, nil
}

// buildPublicAssignment fills only the public inputs, for verification.
func buildPublicAssignment(shape circuits.Shape, commitment, modelHash fr.Element, timestamp uint64) (*circuits.DocumentQueryCircuit, error) {
	assignment, err := circuits.NewDocumentQueryCircuit(shape)
	if err != nil {
		return nil, err
	}
	assignment.DocumentCommitment = elementToBig(commitment)
	assignment.ModelHash = elementToBig(modelHash)
	assignment.Timestamp = timestamp
	return assignment, nil
}

func elementToBig(e fr.Element) *big.Int {
	return e.BigInt(new(big.Int))
}
