package attest

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zkrag/zkrag/internal/core/attest/circuits"
	infralog "github.com/zkrag/zkrag/internal/infrastructure/log"
)

func testShape() circuits.Shape {
	return circuits.Shape{
		TreeDepth:         3,
		NumResults:        2,
		ModelTreeDepth:    2,
		ApprovedModelRoot: big.NewInt(424242),
		WindowStart:       1000,
		WindowEnd:         2000,
	}
}

func TestKeyVersionStableAcrossManagers(t *testing.T) {
	logger := infralog.Global()
	shape := testShape()

	v1, err := NewKeyManager(logger, t.TempDir()).Version(shape)
	require.NoError(t, err)
	v2, err := NewKeyManager(logger, t.TempDir()).Version(shape)
	require.NoError(t, err)
	require.Equal(t, v1, v2)
	require.Len(t, v1, 64)
}

func TestKeyVersionChangesWithShape(t *testing.T) {
	logger := infralog.Global()
	km := NewKeyManager(logger, t.TempDir())

	base, err := km.Version(testShape())
	require.NoError(t, err)

	wider := testShape()
	wider.TreeDepth = 4
	v, err := km.Version(wider)
	require.NoError(t, err)
	require.NotEqual(t, base, v)

	shifted := testShape()
	shifted.WindowEnd = 3000
	v, err = km.Version(shifted)
	require.NoError(t, err)
	require.NotEqual(t, base, v)

	otherModels := testShape()
	otherModels.ApprovedModelRoot = big.NewInt(99)
	v, err = km.Version(otherModels)
	require.NoError(t, err)
	require.NotEqual(t, base, v)
}

func TestLoadWithoutSetupFails(t *testing.T) {
	km := NewKeyManager(infralog.Global(), t.TempDir())

	_, err := km.Load(testShape())
	require.ErrorIs(t, err, ErrSetupMissing)
}

func TestSetupThenLoad(t *testing.T) {
	dir := t.TempDir()
	shape := testShape()

	km := NewKeyManager(infralog.Global(), dir)
	art, err := km.Setup(shape)
	require.NoError(t, err)
	require.NotEmpty(t, art.Version)
	require.Len(t, art.VKHash, 32)

	for _, name := range []string{"circuit.bin", "proving_key.bin", "verifying_key.bin"} {
		info, err := os.Stat(filepath.Join(dir, art.Version, name))
		require.NoError(t, err, name)
		require.Greater(t, info.Size(), int64(0), name)
	}

	// A fresh manager loads from disk without regenerating.
	km2 := NewKeyManager(infralog.Global(), dir)
	loaded, err := km2.Load(shape)
	require.NoError(t, err)
	require.Equal(t, art.Version, loaded.Version)
	require.Equal(t, art.VKHash, loaded.VKHash)

	versions, err := km2.ListVersions()
	require.NoError(t, err)
	require.Contains(t, versions, art.Version)
}

func TestSetupIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	shape := testShape()
	km := NewKeyManager(infralog.Global(), dir)

	first, err := km.Setup(shape)
	require.NoError(t, err)

	again, err := km.Setup(shape)
	require.NoError(t, err)
	require.Equal(t, first.Version, again.Version)
}

func TestLoadCorruptKeyFails(t *testing.T) {
	dir := t.TempDir()
	shape := testShape()

	km := NewKeyManager(infralog.Global(), dir)
	art, err := km.Setup(shape)
	require.NoError(t, err)

	pkPath := filepath.Join(dir, art.Version, "proving_key.bin")
	require.NoError(t, os.WriteFile(pkPath, []byte("not a key"), 0o644))

	km2 := NewKeyManager(infralog.Global(), dir)
	_, err = km2.Load(shape)
	require.ErrorIs(t, err, ErrMalformedKey)
}
