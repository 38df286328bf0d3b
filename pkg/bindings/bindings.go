// Package bindings is the cross-language boundary: pure functions over
// strings and primitives with no shared mutable state. Heavy lifting is
// delegated to the attestation pipeline behind a process-wide manager.
package bindings

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/zkrag/zkrag/internal/core/attest"
	infralog "github.com/zkrag/zkrag/internal/infrastructure/log"
)

var (
	initOnce   sync.Once
	initErr    error
	mgr        *attest.Manager
	pendingCfg *attest.Config
	cfgMu      sync.Mutex
)

// ErrNotConfigured is returned when a binding is called before Configure.
var ErrNotConfigured = errors.New("bindings not configured: call Configure first")

// Configure sets the pipeline configuration. It must be called once, before
// the first proving or verification call; later calls return an error.
func Configure(cfg *attest.Config) error {
	cfgMu.Lock()
	defer cfgMu.Unlock()
	if mgr != nil || pendingCfg != nil {
		return fmt.Errorf("bindings already configured")
	}
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	pendingCfg = cfg
	return nil
}

// ConfigureDefault configures the pipeline with defaults and the given
// approved-model hashes.
func ConfigureDefault(approvedModelHashes []string) error {
	cfg := attest.DefaultConfig()
	cfg.ApprovedModels = approvedModelHashes
	return Configure(cfg)
}

func manager() (*attest.Manager, error) {
	initOnce.Do(func() {
		cfgMu.Lock()
		cfg := pendingCfg
		cfgMu.Unlock()
		if cfg == nil {
			initErr = ErrNotConfigured
			return
		}
		mgr, initErr = attest.NewManager(cfg, infralog.Global())
	})
	return mgr, initErr
}

// Setup runs the trusted setup for the configured circuit shape and persists
// the keys. Required once before the first GenerateProof.
func Setup() error {
	m, err := manager()
	if err != nil {
		return err
	}
	_, err = m.Setup()
	return err
}

// GenerateProof proves that a retrieval-augmented query was executed against
// the committed document set with an approved model. Returns the hex-encoded
// proof.
func GenerateProof(
	documentHashes []string,
	queryText string,
	queryEmbedding []float64,
	retrievedIndices []int,
	documentCommitment string,
	modelHash string,
	timestamp uint64,
) (string, error) {
	m, err := manager()
	if err != nil {
		return "", err
	}
	result, err := m.Prove(context.Background(), &attest.QueryWitness{
		DocumentHashes:     documentHashes,
		QueryText:          queryText,
		QueryEmbedding:     queryEmbedding,
		RetrievedIndices:   retrievedIndices,
		DocumentCommitment: documentCommitment,
		ModelHash:          modelHash,
		Timestamp:          timestamp,
	})
	if err != nil {
		return "", err
	}
	return result.ProofHex, nil
}

// VerifyProof checks a hex proof against the public input triple. The bool
// is the verdict; an error means the inputs were malformed or keys are
// missing, never that the equation failed.
func VerifyProof(proofHex, documentCommitment, modelHash string, timestamp uint64) (bool, error) {
	result, err := verify(proofHex, documentCommitment, modelHash, timestamp)
	if err != nil {
		return false, err
	}
	return result.Valid, nil
}

// VerifyProofDetailed verifies and returns the full result as JSON.
func VerifyProofDetailed(proofHex, documentCommitment, modelHash string, timestamp uint64) (string, error) {
	result, err := verify(proofHex, documentCommitment, modelHash, timestamp)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ComputeDocumentCommitment builds the document commitment for hex chunk
// hashes.
func ComputeDocumentCommitment(documentHashes []string) (string, error) {
	m, err := manager()
	if err != nil {
		return "", err
	}
	return m.ComputeDocumentCommitment(documentHashes)
}

func verify(proofHex, documentCommitment, modelHash string, timestamp uint64) (*attest.VerificationResult, error) {
	m, err := manager()
	if err != nil {
		return nil, err
	}
	proofBytes, err := hex.DecodeString(proofHex)
	if err != nil {
		return nil, attest.WrapMalformedProofError(fmt.Errorf("invalid hex: %w", err))
	}
	return m.VerifyBounded(context.Background(), proofBytes, attest.PublicInputs{
		DocumentCommitment: documentCommitment,
		ModelHash:          modelHash,
		Timestamp:          timestamp,
	})
}
