package attest

import (
	"testing"

	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"
)

func makeLeaves(n int) []fr.Element {
	leaves := make([]fr.Element, n)
	for i := range leaves {
		leaves[i].SetUint64(uint64(100 + i))
	}
	return leaves
}

func TestBuildMerkleTree(t *testing.T) {
	tree, err := BuildMerkleTree(makeLeaves(5), 3)
	require.NoError(t, err)
	require.Equal(t, 3, tree.Depth())
	require.Equal(t, 5, tree.LeafCount())

	// Same input, same root.
	tree2, err := BuildMerkleTree(makeLeaves(5), 3)
	require.NoError(t, err)
	r1, r2 := tree.Root(), tree2.Root()
	require.True(t, r1.Equal(&r2))

	// A changed leaf changes the root.
	leaves := makeLeaves(5)
	leaves[2].SetUint64(9999)
	tree3, err := BuildMerkleTree(leaves, 3)
	require.NoError(t, err)
	r3 := tree3.Root()
	require.False(t, r1.Equal(&r3))
}

func TestBuildMerkleTreeErrors(t *testing.T) {
	_, err := BuildMerkleTree(nil, 3)
	require.ErrorIs(t, err, ErrInvalidWitness)

	_, err = BuildMerkleTree(makeLeaves(9), 3)
	require.ErrorIs(t, err, ErrShapeMismatch)

	_, err = BuildMerkleTree(makeLeaves(2), 0)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestMerklePathRecomputesRoot(t *testing.T) {
	leaves := makeLeaves(6)
	tree, err := BuildMerkleTree(leaves, 3)
	require.NoError(t, err)
	root := tree.Root()

	for idx := 0; idx < tree.LeafCount(); idx++ {
		siblings, err := tree.Path(idx)
		require.NoError(t, err)
		require.Len(t, siblings, 3)

		// Walk the path natively, direction from index bits.
		current := HashLeaf(leaves[idx])
		pos := idx
		for level, sib := range siblings {
			if pos&(1<<level) == 0 {
				current = HashNode(current, sib)
			} else {
				current = HashNode(sib, current)
			}
		}
		require.True(t, current.Equal(&root), "path for leaf %d", idx)
	}
}

func TestMerklePathOutOfRange(t *testing.T) {
	tree, err := BuildMerkleTree(makeLeaves(5), 3)
	require.NoError(t, err)

	_, err = tree.Path(-1)
	require.ErrorIs(t, err, ErrInvalidWitness)

	// Padding slots are not addressable.
	_, err = tree.Path(5)
	require.ErrorIs(t, err, ErrInvalidWitness)
}

func TestPaddingAffectsNothing(t *testing.T) {
	// Two padded trees with the same real leaves agree on the root.
	a, err := BuildMerkleTree(makeLeaves(3), 3)
	require.NoError(t, err)
	b, err := BuildMerkleTree(makeLeaves(3), 3)
	require.NoError(t, err)
	ra, rb := a.Root(), b.Root()
	require.True(t, ra.Equal(&rb))
}
