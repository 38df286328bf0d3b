package attest

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"math/big"

	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

const (
	// HashHexLength is the length of a hex-encoded SHA-256 digest.
	HashHexLength = 64

	// EmbeddingScale is the fixed-point scale applied to embedding values
	// before field encoding.
	EmbeddingScale = 1 << 16

	// EmbeddingMaxAbs bounds the magnitude of an embedding value. Quantized
	// values must fit in 48 bits.
	EmbeddingMaxAbs = float64(1<<31) / EmbeddingScale
)

// Domain separation tags for hash-to-field reduction.
const (
	domainDocumentLeaf = "zkrag.doc.v1"
	domainModelHash    = "zkrag.model.v1"
)

// FieldEncoder maps witness material into BN254 scalar field elements. All
// encodings are pure and deterministic: equal inputs yield equal elements
// across processes.
type FieldEncoder struct{}

// NewFieldEncoder creates a field encoder.
func NewFieldEncoder() *FieldEncoder {
	return &FieldEncoder{}
}

// EncodeDocumentHash encodes a hex SHA-256 document chunk hash into a field
// element via domain-separated SHA-256 reduction mod r.
func (e *FieldEncoder) EncodeDocumentHash(hexHash string) (fr.Element, error) {
	return e.hashToField(hexHash, domainDocumentLeaf, "document_hash")
}

// EncodeModelHash encodes a hex SHA-256 model identity hash into a field
// element. The same encoding is used for the public input and for the
// approved-model tree leaves.
func (e *FieldEncoder) EncodeModelHash(hexHash string) (fr.Element, error) {
	return e.hashToField(hexHash, domainModelHash, "model_hash")
}

// EncodeCommitment decodes a hex-encoded commitment into a field element. The
// commitment is the canonical 32-byte big-endian encoding of a field element,
// so values at or above the modulus are rejected.
func (e *FieldEncoder) EncodeCommitment(hexCommitment string) (fr.Element, error) {
	var elem fr.Element
	if len(hexCommitment) != HashHexLength {
		return elem, WrapEncodingError("document_commitment", "expected 64 hex characters")
	}
	raw, err := hex.DecodeString(hexCommitment)
	if err != nil {
		return elem, WrapEncodingError("document_commitment", "invalid hex")
	}
	if err := elem.SetBytesCanonical(raw); err != nil {
		return elem, WrapEncodingError("document_commitment", "not a canonical field element")
	}
	return elem, nil
}

// EncodeEmbedding quantizes an embedding vector to fixed point and encodes
// each value as a field element. Negative values map to r - |q|.
func (e *FieldEncoder) EncodeEmbedding(values []float64) ([]fr.Element, error) {
	if len(values) == 0 {
		return nil, WrapEncodingError("query_embedding", "empty vector")
	}
	out := make([]fr.Element, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, WrapEncodingError("query_embedding", "non-finite value")
		}
		if math.Abs(v) > EmbeddingMaxAbs {
			return nil, WrapEncodingError("query_embedding", "value exceeds fixed-point range")
		}
		q := int64(math.Round(v * EmbeddingScale))
		if q >= 0 {
			out[i].SetInt64(q)
		} else {
			out[i].SetInt64(-q)
			out[i].Neg(&out[i])
		}
	}
	return out, nil
}

// EncodeTimestamp encodes a Unix timestamp as a field element.
func (e *FieldEncoder) EncodeTimestamp(ts uint64) fr.Element {
	var elem fr.Element
	elem.SetUint64(ts)
	return elem
}

// EncodeIndex encodes a retrieval index as a field element.
func (e *FieldEncoder) EncodeIndex(idx int) (fr.Element, error) {
	var elem fr.Element
	if idx < 0 {
		return elem, WrapEncodingError("retrieved_index", "negative index")
	}
	elem.SetUint64(uint64(idx))
	return elem, nil
}

// CommitmentHex returns the canonical hex encoding of a commitment element.
func (e *FieldEncoder) CommitmentHex(elem fr.Element) string {
	b := elem.Bytes()
	return hex.EncodeToString(b[:])
}

func (e *FieldEncoder) hashToField(hexHash, domain, field string) (fr.Element, error) {
	var elem fr.Element
	if len(hexHash) != HashHexLength {
		return elem, WrapEncodingError(field, "expected 64 hex characters")
	}
	raw, err := hex.DecodeString(hexHash)
	if err != nil {
		return elem, WrapEncodingError(field, "invalid hex")
	}

	h := sha256.New()
	h.Write([]byte(domain))
	h.Write(raw)
	digest := h.Sum(nil)

	v := new(big.Int).SetBytes(digest)
	v.Mod(v, fr.Modulus())
	elem.SetBigInt(v)
	return elem, nil
}
