package attest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	gnarklogger "github.com/consensys/gnark/logger"
	"github.com/rs/zerolog"

	"github.com/zkrag/zkrag/internal/core/attest/circuits"
	"github.com/zkrag/zkrag/pkg/interfaces/infrastructure/log"
)

// VerificationResult is the verdict of one verification. A failed pairing
// equation yields Valid=false with a nil error; errors are reserved for
// malformed inputs and infrastructure failures.
type VerificationResult struct {
	Valid        bool          `json:"valid"`
	PublicInputs PublicInputs  `json:"public_inputs"`
	KeyVersion   string        `json:"key_version"`
	VerifiedAt   time.Time     `json:"verified_at"`
	Duration     time.Duration `json:"duration_ns"`
	Message      string        `json:"message,omitempty"`
}

// Verifier checks attestation proofs against the public input triple.
// Verification is stateless and cheap; a Verifier is safe for unbounded
// concurrent use.
type Verifier struct {
	logger  log.Logger
	encoder *FieldEncoder
	keys    *KeyManager
	shape   circuits.Shape
}

// NewVerifier creates a verifier for one circuit shape.
func NewVerifier(logger log.Logger, encoder *FieldEncoder, keys *KeyManager, shape circuits.Shape) *Verifier {
	return &Verifier{
		logger:  logger,
		encoder: encoder,
		keys:    keys,
		shape:   shape,
	}
}

// Verify checks proofBytes against the public inputs, reconstructing the
// public witness in wire order (document commitment, model hash, timestamp).
func (v *Verifier) Verify(ctx context.Context, proofBytes []byte, pub PublicInputs) (*VerificationResult, error) {
	startTime := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(proofBytes) == 0 {
		return nil, WrapMalformedProofError(fmt.Errorf("empty proof"))
	}

	commitment, err := v.encoder.EncodeCommitment(pub.DocumentCommitment)
	if err != nil {
		return nil, err
	}
	modelHash, err := v.encoder.EncodeModelHash(pub.ModelHash)
	if err != nil {
		return nil, err
	}

	art, err := v.keys.Load(v.shape)
	if err != nil {
		return nil, err
	}

	proof, err := deserializeProof(proofBytes)
	if err != nil {
		return nil, err
	}

	assignment, err := buildPublicAssignment(v.shape, commitment, modelHash, pub.Timestamp)
	if err != nil {
		return nil, err
	}
	publicWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return nil, fmt.Errorf("build public witness: %w", err)
	}

	oldGnarkLogger := gnarklogger.Logger()
	gnarklogger.Set(zerolog.New(io.Discard).Level(zerolog.Disabled))
	defer gnarklogger.Set(oldGnarkLogger)

	result := &VerificationResult{
		PublicInputs: pub,
		KeyVersion:   art.Version,
		VerifiedAt:   time.Now().UTC(),
	}

	if err := groth16.Verify(proof, art.VK, publicWitness); err != nil {
		// Not an error: the proof is well-formed but does not verify
		// against these public inputs.
		v.logger.Debugf("verification equation failed: %v", err)
		result.Valid = false
		result.Message = "proof does not verify against the public inputs"
	} else {
		result.Valid = true
		result.Message = "proof verified"
	}

	result.Duration = time.Since(startTime)
	return result, nil
}

// deserializeProof parses canonical compressed proof bytes. Trailing garbage
// is rejected so a proof has exactly one byte representation.
func deserializeProof(proofBytes []byte) (groth16.Proof, error) {
	proof := groth16.NewProof(ecc.BN254)
	reader := bytes.NewReader(proofBytes)
	if _, err := proof.ReadFrom(reader); err != nil {
		return nil, WrapMalformedProofError(err)
	}
	if reader.Len() != 0 {
		return nil, WrapMalformedProofError(fmt.Errorf("%d trailing bytes", reader.Len()))
	}
	return proof, nil
}
