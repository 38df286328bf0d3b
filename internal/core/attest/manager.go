package attest

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/zkrag/zkrag/internal/core/attest/circuits"
	"github.com/zkrag/zkrag/pkg/interfaces/infrastructure/log"
)

// Config configures a Manager. Zero values are filled with defaults by
// NewManager; ApprovedModels is the only field without a default.
type Config struct {
	// TreeDepth is the document tree depth (2^TreeDepth leaf slots).
	TreeDepth int

	// NumResults is the retrieval slots proven per query (the RAG top-k).
	NumResults int

	// ModelTreeDepth is the approved-model tree depth.
	ModelTreeDepth int

	// ApprovedModels are the hex SHA-256 identity hashes of the models
	// allowed to serve queries. Must be non-empty.
	ApprovedModels []string

	// WindowStart and WindowEnd bound accepted timestamps, inclusive, in
	// Unix seconds. Rotating the window rotates the key version.
	WindowStart uint64
	WindowEnd   uint64

	// KeyDir is the key cache root. Defaults to ~/.zkrag/keys.
	KeyDir string

	// MaxConcurrentProofs bounds the proving worker pool. Defaults to the
	// CPU count.
	MaxConcurrentProofs int

	// MaxConcurrentVerifies bounds the verification pool.
	MaxConcurrentVerifies int

	// ProofTimeout bounds a single proving task.
	ProofTimeout time.Duration

	// QueueSize bounds the pending proving task queue.
	QueueSize int
}

// DefaultConfig returns a config with production defaults. The acceptance
// window spans ten years from now; deployments pin it explicitly.
func DefaultConfig() *Config {
	now := uint64(time.Now().Unix())
	return &Config{
		TreeDepth:             10,
		NumResults:            4,
		ModelTreeDepth:        4,
		WindowStart:           0,
		WindowEnd:             now + 10*365*24*3600,
		KeyDir:                defaultKeyDir(),
		MaxConcurrentProofs:   runtime.NumCPU(),
		MaxConcurrentVerifies: 2 * runtime.NumCPU(),
		ProofTimeout:          5 * time.Minute,
		QueueSize:             256,
	}
}

var errPoolNotStarted = errors.New("prove pool not started")

func defaultKeyDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".zkrag", "keys")
	}
	return filepath.Join(home, ".zkrag", "keys")
}

// Manager composes the pipeline: encoder, key manager, prover and verifier
// share one circuit shape derived from the config.
type Manager struct {
	logger   log.Logger
	config   *Config
	shape    circuits.Shape
	encoder  *FieldEncoder
	keys     *KeyManager
	prover   *Prover
	verifier *Verifier
	models   *approvedModels

	poolMu     sync.Mutex
	provePool  *ProvePool
	verifyPool *VerifyPool
}

// NewManager wires the pipeline. The approved-model tree is built here and
// baked into the circuit shape.
func NewManager(cfg *Config, logger log.Logger) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	applyDefaults(cfg)

	if len(cfg.ApprovedModels) == 0 {
		return nil, WrapInvalidWitnessError("no approved models configured")
	}

	encoder := NewFieldEncoder()

	models, err := buildApprovedModels(encoder, cfg.ApprovedModels, cfg.ModelTreeDepth)
	if err != nil {
		return nil, err
	}

	root := models.tree.Root()
	shape := circuits.Shape{
		TreeDepth:         cfg.TreeDepth,
		NumResults:        cfg.NumResults,
		ModelTreeDepth:    cfg.ModelTreeDepth,
		ApprovedModelRoot: root.BigInt(new(big.Int)),
		WindowStart:       cfg.WindowStart,
		WindowEnd:         cfg.WindowEnd,
	}
	if err := shape.Validate(); err != nil {
		return nil, WrapShapeMismatchError("shape", "valid", err)
	}

	keys := NewKeyManager(logger, cfg.KeyDir)

	return &Manager{
		logger:   logger,
		config:   cfg,
		shape:    shape,
		encoder:  encoder,
		keys:     keys,
		prover:   NewProver(logger, encoder, keys, shape, models),
		verifier: NewVerifier(logger, encoder, keys, shape),
		models:   models,
	}, nil
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.TreeDepth == 0 {
		cfg.TreeDepth = def.TreeDepth
	}
	if cfg.NumResults == 0 {
		cfg.NumResults = def.NumResults
	}
	if cfg.ModelTreeDepth == 0 {
		cfg.ModelTreeDepth = def.ModelTreeDepth
	}
	if cfg.WindowEnd == 0 {
		cfg.WindowEnd = def.WindowEnd
	}
	if cfg.KeyDir == "" {
		cfg.KeyDir = def.KeyDir
	}
	if cfg.MaxConcurrentProofs <= 0 {
		cfg.MaxConcurrentProofs = def.MaxConcurrentProofs
	}
	if cfg.MaxConcurrentVerifies <= 0 {
		cfg.MaxConcurrentVerifies = def.MaxConcurrentVerifies
	}
	if cfg.ProofTimeout <= 0 {
		cfg.ProofTimeout = def.ProofTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
}

func buildApprovedModels(encoder *FieldEncoder, hashes []string, depth int) (*approvedModels, error) {
	leaves := make([]fr.Element, len(hashes))
	index := make(map[string]int, len(hashes))
	for i, h := range hashes {
		elem, err := encoder.EncodeModelHash(h)
		if err != nil {
			return nil, err
		}
		leaves[i] = elem
		index[strings.ToLower(h)] = i
	}
	tree, err := BuildMerkleTree(leaves, depth)
	if err != nil {
		return nil, err
	}
	return &approvedModels{tree: tree, index: index}, nil
}

// Setup runs the trusted setup for the configured shape and persists the
// keys. Explicit by design; nothing else creates key material.
func (m *Manager) Setup() (*SetupArtifacts, error) {
	return m.keys.Setup(m.shape)
}

// Prove generates a proof for the witness.
func (m *Manager) Prove(ctx context.Context, w *QueryWitness) (*ProofResult, error) {
	return m.prover.Prove(ctx, w)
}

// Verify checks a proof against the public input triple.
func (m *Manager) Verify(ctx context.Context, proofBytes []byte, pub PublicInputs) (*VerificationResult, error) {
	return m.verifier.Verify(ctx, proofBytes, pub)
}

// ComputeDocumentCommitment builds the document tree for the hex chunk
// hashes and returns the hex commitment.
func (m *Manager) ComputeDocumentCommitment(documentHashes []string) (string, error) {
	leaves := make([]fr.Element, len(documentHashes))
	for i, h := range documentHashes {
		elem, err := m.encoder.EncodeDocumentHash(h)
		if err != nil {
			return "", err
		}
		leaves[i] = elem
	}
	tree, err := BuildMerkleTree(leaves, m.shape.TreeDepth)
	if err != nil {
		return "", err
	}
	root := tree.Root()
	return m.encoder.CommitmentHex(root), nil
}

// Shape returns the circuit shape in use.
func (m *Manager) Shape() circuits.Shape {
	return m.shape
}

// KeyVersion returns the key version for the configured shape.
func (m *Manager) KeyVersion() (string, error) {
	return m.keys.Version(m.shape)
}

// Keys exposes the key manager.
func (m *Manager) Keys() *KeyManager {
	return m.keys
}

// Config returns the effective configuration.
func (m *Manager) Config() *Config {
	return m.config
}

// StartWorkers launches the proving worker pool with the completion callback
// and the bounded verification pool. Idempotent.
func (m *Manager) StartWorkers(callback ProofCallback) {
	m.poolMu.Lock()
	defer m.poolMu.Unlock()
	if m.provePool == nil {
		m.provePool = NewProvePool(m.prover, callback,
			m.config.MaxConcurrentProofs, m.config.QueueSize, m.config.ProofTimeout, m.logger)
		m.provePool.Start()
	}
	if m.verifyPool == nil {
		m.verifyPool = NewVerifyPool(m.verifier, m.config.MaxConcurrentVerifies)
	}
}

// StopWorkers halts the proving pool.
func (m *Manager) StopWorkers() {
	m.poolMu.Lock()
	defer m.poolMu.Unlock()
	if m.provePool != nil {
		m.provePool.Stop()
		m.provePool = nil
	}
}

// SubmitProof queues a witness for asynchronous proving and returns the task
// ID. StartWorkers must have been called.
func (m *Manager) SubmitProof(w *QueryWitness) (string, error) {
	m.poolMu.Lock()
	pool := m.provePool
	m.poolMu.Unlock()
	if pool == nil {
		return "", WrapProofGenerationError(errPoolNotStarted)
	}
	task := NewProofTask(w)
	if err := pool.Submit(task); err != nil {
		return "", err
	}
	return task.TaskID, nil
}

// VerifyBounded verifies through the bounded verification pool when workers
// are running, falling back to a direct call otherwise.
func (m *Manager) VerifyBounded(ctx context.Context, proofBytes []byte, pub PublicInputs) (*VerificationResult, error) {
	m.poolMu.Lock()
	pool := m.verifyPool
	m.poolMu.Unlock()
	if pool == nil {
		return m.verifier.Verify(ctx, proofBytes, pub)
	}
	return pool.Verify(ctx, proofBytes, pub)
}

// PoolStats reports proving pool counters, or nil when workers are stopped.
func (m *Manager) PoolStats() map[string]interface{} {
	m.poolMu.Lock()
	defer m.poolMu.Unlock()
	if m.provePool == nil {
		return nil
	}
	return m.provePool.Stats()
}
