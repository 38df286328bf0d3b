package attest

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	gnarklogger "github.com/consensys/gnark/logger"
	"github.com/rs/zerolog"

	"github.com/zkrag/zkrag/internal/core/attest/circuits"
	"github.com/zkrag/zkrag/pkg/interfaces/infrastructure/log"
)

// ProofResult is the output of a successful proving run. Proof holds the
// canonical compressed serialization; its length depends only on the proving
// scheme and curve, never on the witness content.
type ProofResult struct {
	Proof            []byte        `json:"-"`
	ProofHex         string        `json:"proof_hex"`
	PublicInputs     PublicInputs  `json:"public_inputs"`
	KeyVersion       string        `json:"key_version"`
	VerifyingKeyHash []byte        `json:"verifying_key_hash"`
	ConstraintCount  uint64        `json:"constraint_count"`
	GenerationTime   time.Duration `json:"generation_time_ns"`
	ProofSize        int           `json:"proof_size_bytes"`
}

// approvedModels is the approved-model tree together with a leaf lookup by
// normalized model hash.
type approvedModels struct {
	tree  *MerkleTree
	index map[string]int
}

// Prover generates attestation proofs. It pre-checks witness satisfiability
// natively before invoking the backend, so unsatisfiable witnesses fail fast
// with ErrConstraintUnsatisfied instead of burning proving time.
type Prover struct {
	logger  log.Logger
	encoder *FieldEncoder
	keys    *KeyManager
	shape   circuits.Shape
	models  *approvedModels
}

// NewProver creates a prover for one circuit shape.
func NewProver(logger log.Logger, encoder *FieldEncoder, keys *KeyManager, shape circuits.Shape, models *approvedModels) *Prover {
	return &Prover{
		logger:  logger,
		encoder: encoder,
		keys:    keys,
		shape:   shape,
		models:  models,
	}
}

// Prove generates a proof for the witness. Cancellation is cooperative: the
// context is checked before witness construction and before the backend call.
func (p *Prover) Prove(ctx context.Context, w *QueryWitness) (*ProofResult, error) {
	startTime := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ew, err := encodeWitness(p.encoder, p.shape, w)
	if err != nil {
		return nil, err
	}

	modelIndex, err := p.preCheck(ew, w)
	if err != nil {
		return nil, err
	}

	art, err := p.keys.Load(p.shape)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// gnark logs compilation and solver progress through its own zerolog
	// logger; silence it for the duration of the run.
	oldGnarkLogger := gnarklogger.Logger()
	gnarklogger.Set(zerolog.New(io.Discard).Level(zerolog.Disabled))
	defer gnarklogger.Set(oldGnarkLogger)

	assignment, err := buildAssignment(p.shape, ew, p.models.tree, modelIndex)
	if err != nil {
		return nil, err
	}

	fullWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, WrapProofGenerationError(fmt.Errorf("build witness: %w", err))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	proof, err := groth16.Prove(art.CS, art.PK, fullWitness)
	if err != nil {
		// The pre-check accepts exactly the satisfiable witnesses, so a
		// solver failure here still maps to the constraint taxonomy.
		if strings.Contains(err.Error(), "unsatisfied") || strings.Contains(err.Error(), "solver") {
			return nil, WrapConstraintUnsatisfiedError("solver", err.Error())
		}
		return nil, WrapProofGenerationError(err)
	}

	proofBytes, err := serializeProof(proof)
	if err != nil {
		return nil, err
	}

	generationTime := time.Since(startTime)
	p.logger.Debugf("proof generated: version=%s, size=%dB, constraints=%d, took=%v",
		art.Version, len(proofBytes), art.CS.GetNbConstraints(), generationTime)

	return &ProofResult{
		Proof:            proofBytes,
		ProofHex:         hex.EncodeToString(proofBytes),
		PublicInputs:     w.Public(),
		KeyVersion:       art.Version,
		VerifyingKeyHash: art.VKHash,
		ConstraintCount:  uint64(art.CS.GetNbConstraints()),
		GenerationTime:   generationTime,
		ProofSize:        len(proofBytes),
	}, nil
}

// preCheck verifies every constraint family natively and returns the model's
// leaf index in the approved tree. Each check mirrors one in-circuit
// constraint; a witness passing here satisfies the circuit.
func (p *Prover) preCheck(ew *encodedWitness, w *QueryWitness) (int, error) {
	root := ew.tree.Root()
	if !root.Equal(&ew.commitment) {
		return 0, WrapConstraintUnsatisfiedError("membership",
			"document commitment does not match the document hashes")
	}

	seen := make(map[int]struct{}, len(ew.indices))
	for _, idx := range ew.indices {
		if idx < 0 || idx >= len(w.DocumentHashes) {
			return 0, WrapConstraintUnsatisfiedError("index_bounds",
				fmt.Sprintf("index %d outside [0,%d)", idx, len(w.DocumentHashes)))
		}
		if _, dup := seen[idx]; dup {
			return 0, WrapConstraintUnsatisfiedError("index_distinctness",
				fmt.Sprintf("index %d claimed twice", idx))
		}
		seen[idx] = struct{}{}
	}

	if ew.timestamp < p.shape.WindowStart || ew.timestamp > p.shape.WindowEnd {
		return 0, WrapConstraintUnsatisfiedError("timestamp_window",
			fmt.Sprintf("timestamp %d outside [%d,%d]", ew.timestamp, p.shape.WindowStart, p.shape.WindowEnd))
	}

	modelIndex, ok := p.models.index[strings.ToLower(w.ModelHash)]
	if !ok {
		return 0, WrapConstraintUnsatisfiedError("model_binding",
			"model hash is not in the approved set")
	}

	return modelIndex, nil
}

func serializeProof(proof groth16.Proof) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, WrapProofGenerationError(fmt.Errorf("serialize proof: %w", err))
	}
	return buf.Bytes(), nil
}
