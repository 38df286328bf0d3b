package attest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/zkrag/zkrag/internal/core/attest/circuits"
	"github.com/zkrag/zkrag/pkg/interfaces/infrastructure/log"
)

// Key artifact file names under <dir>/<version>/.
const (
	circuitFileName      = "circuit.bin"
	provingKeyFileName   = "proving_key.bin"
	verifyingKeyFileName = "verifying_key.bin"
)

// SetupArtifacts holds the compiled constraint system and key pair for one
// circuit shape. Instances are immutable once loaded.
type SetupArtifacts struct {
	Version string
	CS      constraint.ConstraintSystem
	PK      groth16.ProvingKey
	VK      groth16.VerifyingKey
	VKHash  []byte
}

// KeyManager compiles circuits and manages the on-disk key cache. Keys are
// content-addressed by the hex SHA-256 of the serialized constraint system,
// so identical shapes share a key version. Keys are only ever written by an
// explicit Setup; Load never regenerates missing material.
type KeyManager struct {
	logger log.Logger
	dir    string

	// setupMu serializes setup writes.
	setupMu sync.Mutex

	cacheMu  sync.RWMutex
	cache    map[string]*SetupArtifacts
	versions map[string]string // shape string -> version
}

// NewKeyManager creates a key manager rooted at dir.
func NewKeyManager(logger log.Logger, dir string) *KeyManager {
	return &KeyManager{
		logger:   logger,
		dir:      dir,
		cache:    make(map[string]*SetupArtifacts),
		versions: make(map[string]string),
	}
}

// Dir returns the key cache root.
func (km *KeyManager) Dir() string {
	return km.dir
}

// Version compiles the shape if needed and returns its key version.
func (km *KeyManager) Version(shape circuits.Shape) (string, error) {
	_, version, err := km.compile(shape)
	return version, err
}

// Setup compiles the shape, runs the Groth16 setup and persists the
// artifacts. Concurrent Setup calls for the same shape observe a single
// write; a Setup for a shape that is already on disk loads it instead.
func (km *KeyManager) Setup(shape circuits.Shape) (*SetupArtifacts, error) {
	cs, version, err := km.compile(shape)
	if err != nil {
		return nil, err
	}

	km.setupMu.Lock()
	defer km.setupMu.Unlock()

	if art := km.cached(version); art != nil {
		return art, nil
	}
	if art, err := km.loadFromDisk(cs, version); err == nil {
		km.logger.Debugf("setup already on disk: version=%s", version)
		km.store(shape, art)
		return art, nil
	} else if !errors.Is(err, ErrSetupMissing) {
		return nil, err
	}

	km.logger.Infof("running trusted setup: shape=%s, version=%s, constraints=%d",
		shape, version, cs.GetNbConstraints())

	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return nil, WrapProofGenerationError(fmt.Errorf("groth16 setup: %w", err))
	}

	if err := km.persist(version, cs, pk, vk); err != nil {
		return nil, err
	}

	art := &SetupArtifacts{Version: version, CS: cs, PK: pk, VK: vk}
	art.VKHash, err = hashVerifyingKey(vk)
	if err != nil {
		return nil, err
	}
	km.store(shape, art)
	return art, nil
}

// Load returns the artifacts for a shape. Missing artifacts are
// ErrSetupMissing; keys are never regenerated here.
func (km *KeyManager) Load(shape circuits.Shape) (*SetupArtifacts, error) {
	cs, version, err := km.compile(shape)
	if err != nil {
		return nil, err
	}

	if art := km.cached(version); art != nil {
		return art, nil
	}

	art, err := km.loadFromDisk(cs, version)
	if err != nil {
		return nil, err
	}
	km.store(shape, art)
	return art, nil
}

// compile builds the constraint system for the shape and derives the key
// version from its canonical serialization. Compilation results are reused
// via the shape -> version map plus the artifact cache.
func (km *KeyManager) compile(shape circuits.Shape) (constraint.ConstraintSystem, string, error) {
	km.cacheMu.RLock()
	if version, ok := km.versions[shapeKey(shape)]; ok {
		if art, ok := km.cache[version]; ok {
			km.cacheMu.RUnlock()
			return art.CS, version, nil
		}
	}
	km.cacheMu.RUnlock()

	circuit, err := circuits.NewDocumentQueryCircuit(shape)
	if err != nil {
		return nil, "", WrapShapeMismatchError("shape", "valid", err)
	}

	cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return nil, "", WrapCircuitCompileError(err)
	}

	var buf bytes.Buffer
	if _, err := cs.WriteTo(&buf); err != nil {
		return nil, "", WrapCircuitCompileError(err)
	}
	digest := sha256.Sum256(buf.Bytes())
	version := hex.EncodeToString(digest[:])

	return cs, version, nil
}

func (km *KeyManager) cached(version string) *SetupArtifacts {
	km.cacheMu.RLock()
	defer km.cacheMu.RUnlock()
	return km.cache[version]
}

func (km *KeyManager) store(shape circuits.Shape, art *SetupArtifacts) {
	km.cacheMu.Lock()
	defer km.cacheMu.Unlock()
	km.cache[art.Version] = art
	km.versions[shapeKey(shape)] = art.Version
}

// shapeKey identifies a shape for the compile cache. The printable shape
// description omits the approved-model root, so it is appended here.
func shapeKey(shape circuits.Shape) string {
	return shape.String() + ":" + shape.ApprovedModelRoot.Text(16)
}

// loadFromDisk reads the key pair for a version. The constraint system is
// taken from the fresh compilation instead of circuit.bin; the on-disk copy
// exists for external tooling and audits.
func (km *KeyManager) loadFromDisk(cs constraint.ConstraintSystem, version string) (*SetupArtifacts, error) {
	versionDir := filepath.Join(km.dir, version)

	pkPath := filepath.Join(versionDir, provingKeyFileName)
	vkPath := filepath.Join(versionDir, verifyingKeyFileName)
	for _, p := range []string{pkPath, vkPath} {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, WrapSetupMissingError(version, km.dir)
			}
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
	}

	pk := groth16.NewProvingKey(ecc.BN254)
	if err := readArtifact(pkPath, pk.ReadFrom); err != nil {
		return nil, WrapMalformedKeyError(provingKeyFileName, err)
	}

	vk := groth16.NewVerifyingKey(ecc.BN254)
	if err := readArtifact(vkPath, vk.ReadFrom); err != nil {
		return nil, WrapMalformedKeyError(verifyingKeyFileName, err)
	}

	vkHash, err := hashVerifyingKey(vk)
	if err != nil {
		return nil, err
	}

	km.logger.Debugf("loaded setup artifacts: version=%s", version)
	return &SetupArtifacts{Version: version, CS: cs, PK: pk, VK: vk, VKHash: vkHash}, nil
}

// persist writes the artifacts atomically: each file lands under a temporary
// name first and is renamed into place.
func (km *KeyManager) persist(version string, cs constraint.ConstraintSystem, pk groth16.ProvingKey, vk groth16.VerifyingKey) error {
	versionDir := filepath.Join(km.dir, version)
	if err := os.MkdirAll(versionDir, 0o755); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}

	writers := []struct {
		name string
		fn   func(w *os.File) error
	}{
		{circuitFileName, func(w *os.File) error { _, err := cs.WriteTo(w); return err }},
		{provingKeyFileName, func(w *os.File) error { _, err := pk.WriteTo(w); return err }},
		{verifyingKeyFileName, func(w *os.File) error { _, err := vk.WriteTo(w); return err }},
	}

	for _, art := range writers {
		target := filepath.Join(versionDir, art.name)
		tmp, err := os.CreateTemp(versionDir, art.name+".tmp")
		if err != nil {
			return fmt.Errorf("create %s: %w", art.name, err)
		}
		if err := art.fn(tmp); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return fmt.Errorf("write %s: %w", art.name, err)
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmp.Name())
			return fmt.Errorf("close %s: %w", art.name, err)
		}
		if err := os.Rename(tmp.Name(), target); err != nil {
			os.Remove(tmp.Name())
			return fmt.Errorf("rename %s: %w", art.name, err)
		}
	}

	km.logger.Infof("setup artifacts persisted: version=%s, dir=%s", version, versionDir)
	return nil
}

// ListVersions returns the key versions present on disk.
func (km *KeyManager) ListVersions() ([]string, error) {
	entries, err := os.ReadDir(km.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read key dir: %w", err)
	}
	versions := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			versions = append(versions, e.Name())
		}
	}
	return versions, nil
}

func readArtifact(path string, readFrom func(r io.Reader) (int64, error)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := readFrom(f); err != nil {
		return err
	}
	return nil
}

func hashVerifyingKey(vk groth16.VerifyingKey) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := vk.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize verifying key: %w", err)
	}
	digest := sha256.Sum256(buf.Bytes())
	return digest[:], nil
}
