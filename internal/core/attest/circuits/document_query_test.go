package circuits_test

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/test"
	"github.com/stretchr/testify/require"

	"github.com/zkrag/zkrag/internal/core/attest"
	"github.com/zkrag/zkrag/internal/core/attest/circuits"
)

type fixture struct {
	shape     circuits.Shape
	docLeaves []fr.Element
	docTree   *attest.MerkleTree
	modelLeaf fr.Element
	modelIdx  int
	modelTree *attest.MerkleTree
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	docLeaves := make([]fr.Element, 5)
	for i := range docLeaves {
		docLeaves[i].SetUint64(uint64(1000 + i))
	}
	docTree, err := attest.BuildMerkleTree(docLeaves, 3)
	require.NoError(t, err)

	modelLeaves := make([]fr.Element, 3)
	for i := range modelLeaves {
		modelLeaves[i].SetUint64(uint64(7000 + i))
	}
	modelTree, err := attest.BuildMerkleTree(modelLeaves, 2)
	require.NoError(t, err)

	root := modelTree.Root()
	return &fixture{
		shape: circuits.Shape{
			TreeDepth:         3,
			NumResults:        2,
			ModelTreeDepth:    2,
			ApprovedModelRoot: root.BigInt(new(big.Int)),
			WindowStart:       1000,
			WindowEnd:         2000,
		},
		docLeaves: docLeaves,
		docTree:   docTree,
		modelLeaf: modelLeaves[1],
		modelIdx:  1,
		modelTree: modelTree,
	}
}

// assignment builds a full witness assignment for the fixture's trees.
func (f *fixture) assignment(t *testing.T, indices []int, timestamp uint64) *circuits.DocumentQueryCircuit {
	t.Helper()

	a, err := circuits.NewDocumentQueryCircuit(f.shape)
	require.NoError(t, err)

	docRoot := f.docTree.Root()
	a.DocumentCommitment = docRoot.BigInt(new(big.Int))
	a.ModelHash = f.modelLeaf.BigInt(new(big.Int))
	a.Timestamp = timestamp

	for slot, idx := range indices {
		siblings, err := f.docTree.Path(idx)
		require.NoError(t, err)
		a.Results[slot].Leaf = f.docLeaves[idx].BigInt(new(big.Int))
		a.Results[slot].Index = idx
		for level, sib := range siblings {
			a.Results[slot].Siblings[level] = sib.BigInt(new(big.Int))
		}
	}

	modelSiblings, err := f.modelTree.Path(f.modelIdx)
	require.NoError(t, err)
	a.ModelIndex = f.modelIdx
	for level, sib := range modelSiblings {
		a.ModelPath[level] = sib.BigInt(new(big.Int))
	}

	return a
}

func TestDocumentQueryCircuit(t *testing.T) {
	assert := test.NewAssert(t)
	f := newFixture(t)

	circuit, err := circuits.NewDocumentQueryCircuit(f.shape)
	require.NoError(t, err)

	valid := f.assignment(t, []int{1, 3}, 1500)

	wrongCommitment := f.assignment(t, []int{1, 3}, 1500)
	wrongCommitment.DocumentCommitment = big.NewInt(42)

	duplicateIndices := f.assignment(t, []int{2, 2}, 1500)

	beforeWindow := f.assignment(t, []int{1, 3}, 999)
	afterWindow := f.assignment(t, []int{1, 3}, 2001)

	forgedLeaf := f.assignment(t, []int{1, 3}, 1500)
	forgedLeaf.Results[0].Leaf = big.NewInt(999999)

	unapprovedModel := f.assignment(t, []int{1, 3}, 1500)
	unapprovedModel.ModelHash = big.NewInt(123456)

	assert.CheckCircuit(
		circuit,
		test.WithValidAssignment(valid),
		test.WithInvalidAssignment(wrongCommitment),
		test.WithInvalidAssignment(duplicateIndices),
		test.WithInvalidAssignment(beforeWindow),
		test.WithInvalidAssignment(afterWindow),
		test.WithInvalidAssignment(forgedLeaf),
		test.WithInvalidAssignment(unapprovedModel),
		test.WithCurves(ecc.BN254),
		test.WithBackends(backend.GROTH16),
	)
}

func TestDocumentQueryCircuitBoundaryTimestamps(t *testing.T) {
	assert := test.NewAssert(t)
	f := newFixture(t)

	circuit, err := circuits.NewDocumentQueryCircuit(f.shape)
	require.NoError(t, err)

	// Window bounds are inclusive.
	atStart := f.assignment(t, []int{0, 4}, 1000)
	atEnd := f.assignment(t, []int{0, 4}, 2000)

	assert.CheckCircuit(
		circuit,
		test.WithValidAssignment(atStart),
		test.WithValidAssignment(atEnd),
		test.WithCurves(ecc.BN254),
		test.WithBackends(backend.GROTH16),
	)
}

func TestNewDocumentQueryCircuitShapeValidation(t *testing.T) {
	f := newFixture(t)

	bad := f.shape
	bad.TreeDepth = 0
	_, err := circuits.NewDocumentQueryCircuit(bad)
	require.Error(t, err)

	bad = f.shape
	bad.TreeDepth = circuits.MaxTreeDepth + 1
	_, err = circuits.NewDocumentQueryCircuit(bad)
	require.Error(t, err)

	bad = f.shape
	bad.NumResults = 0
	_, err = circuits.NewDocumentQueryCircuit(bad)
	require.Error(t, err)

	bad = f.shape
	bad.ApprovedModelRoot = nil
	_, err = circuits.NewDocumentQueryCircuit(bad)
	require.Error(t, err)

	bad = f.shape
	bad.WindowStart, bad.WindowEnd = 2000, 1000
	_, err = circuits.NewDocumentQueryCircuit(bad)
	require.Error(t, err)

	good, err := circuits.NewDocumentQueryCircuit(f.shape)
	require.NoError(t, err)
	require.Len(t, good.Results, f.shape.NumResults)
	require.Len(t, good.Results[0].Siblings, f.shape.TreeDepth)
	require.Len(t, good.ModelPath, f.shape.ModelTreeDepth)
}
