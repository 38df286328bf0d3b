package attest

import (
	"fmt"

	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// MerkleTree is a fixed-depth MiMC Merkle tree over field element leaves.
// Leaves beyond the supplied values are padded with the zero element, so the
// tree always has 2^depth leaf slots. Leaf slots are hashed before combining:
// level 0 holds H(leaf), inner nodes hold H(left, right).
//
// The hash must match the in-circuit hasher exactly; both sides use MiMC over
// the BN254 scalar field.
type MerkleTree struct {
	depth     int
	leafCount int
	levels    [][]fr.Element
}

// BuildMerkleTree constructs a tree of the given depth over the leaf values.
func BuildMerkleTree(leaves []fr.Element, depth int) (*MerkleTree, error) {
	if depth <= 0 {
		return nil, WrapShapeMismatchError("tree_depth", "> 0", depth)
	}
	width := 1 << depth
	if len(leaves) == 0 {
		return nil, WrapInvalidWitnessError("no leaves")
	}
	if len(leaves) > width {
		return nil, WrapShapeMismatchError("leaf_count", fmt.Sprintf("<= %d", width), len(leaves))
	}

	level := make([]fr.Element, width)
	for i := range level {
		if i < len(leaves) {
			level[i] = HashLeaf(leaves[i])
		} else {
			level[i] = HashLeaf(fr.Element{})
		}
	}

	levels := make([][]fr.Element, 0, depth+1)
	levels = append(levels, level)
	for len(level) > 1 {
		next := make([]fr.Element, len(level)/2)
		for i := range next {
			next[i] = HashNode(level[2*i], level[2*i+1])
		}
		levels = append(levels, next)
		level = next
	}

	return &MerkleTree{depth: depth, leafCount: len(leaves), levels: levels}, nil
}

// Root returns the tree root.
func (t *MerkleTree) Root() fr.Element {
	return t.levels[len(t.levels)-1][0]
}

// Depth returns the tree depth.
func (t *MerkleTree) Depth() int {
	return t.depth
}

// LeafCount returns the number of real (non-padding) leaves.
func (t *MerkleTree) LeafCount() int {
	return t.leafCount
}

// Path returns the authentication path for the leaf at index: the sibling
// hash at every level, bottom-up. The direction at level i is bit i of the
// index.
func (t *MerkleTree) Path(index int) ([]fr.Element, error) {
	if index < 0 || index >= t.leafCount {
		return nil, WrapInvalidWitnessError(fmt.Sprintf("leaf index %d out of range [0,%d)", index, t.leafCount))
	}
	siblings := make([]fr.Element, t.depth)
	pos := index
	for level := 0; level < t.depth; level++ {
		siblings[level] = t.levels[level][pos^1]
		pos >>= 1
	}
	return siblings, nil
}

// HashLeaf hashes a single leaf value.
func HashLeaf(leaf fr.Element) fr.Element {
	return hashElements(leaf)
}

// HashNode hashes an inner node from its children.
func HashNode(left, right fr.Element) fr.Element {
	return hashElements(left, right)
}

func hashElements(elems ...fr.Element) fr.Element {
	h := mimc.NewMiMC()
	for _, e := range elems {
		b := e.Bytes()
		h.Write(b[:])
	}
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}
