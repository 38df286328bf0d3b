package circuits

import (
	"math/big"

	"github.com/consensys/gnark/frontend"
)

// MembershipPath is one claimed retrieval: a private leaf value, its private
// index in the document tree and the sibling hashes authenticating it.
type MembershipPath struct {
	Leaf     frontend.Variable
	Index    frontend.Variable
	Siblings []frontend.Variable
}

// DocumentQueryCircuit proves that a retrieval-augmented query was executed
// against a committed document set with an approved model, without revealing
// which chunks were retrieved.
//
// Public inputs appear in wire order: document commitment, model hash,
// timestamp. Everything else is private witness. The acceptance window and
// the approved-model root are compile-time shape parameters; changing either
// changes the compiled constraint system and therefore the key version.
type DocumentQueryCircuit struct {
	// Public inputs. Field order is the wire contract.
	DocumentCommitment frontend.Variable `gnark:",public"`
	ModelHash          frontend.Variable `gnark:",public"`
	Timestamp          frontend.Variable `gnark:",public"`

	// Private witness.
	Results    []MembershipPath
	ModelIndex frontend.Variable
	ModelPath  []frontend.Variable

	// Shape parameters, fixed at compile time.
	TreeDepth         int
	ModelTreeDepth    int
	ApprovedModelRoot *big.Int
	WindowStart       uint64
	WindowEnd         uint64
}

// Define declares the constraints.
func (c *DocumentQueryCircuit) Define(api frontend.API) error {
	hasher, err := NewFieldHasher(api)
	if err != nil {
		return err
	}

	// Each claimed retrieval must authenticate against the public commitment.
	// ToBinary bounds the index to the padded tree width.
	for i := range c.Results {
		assertMembership(api, hasher, c.DocumentCommitment,
			c.Results[i].Leaf, c.Results[i].Index, c.Results[i].Siblings)
	}

	// Retrieved indices are pairwise distinct.
	for i := 0; i < len(c.Results); i++ {
		for j := i + 1; j < len(c.Results); j++ {
			api.AssertIsDifferent(c.Results[i].Index, c.Results[j].Index)
		}
	}

	// The public timestamp fits 64 bits and lies within the acceptance window.
	api.ToBinary(c.Timestamp, 64)
	api.AssertIsLessOrEqual(c.WindowStart, c.Timestamp)
	api.AssertIsLessOrEqual(c.Timestamp, c.WindowEnd)

	// The public model hash is a member of the approved-model tree.
	assertMembership(api, hasher, c.ApprovedModelRoot,
		c.ModelHash, c.ModelIndex, c.ModelPath)

	return nil
}

// assertMembership walks the authentication path from leaf to root. Bit i of
// the index selects the hash order at level i: 0 places the running hash on
// the left, 1 on the right.
func assertMembership(api frontend.API, hasher *FieldHasher, root frontend.Variable,
	leaf, index frontend.Variable, siblings []frontend.Variable) {

	current := hasher.HashLeaf(leaf)
	indexBits := api.ToBinary(index, len(siblings))

	for i, sibling := range siblings {
		left := api.Select(indexBits[i], sibling, current)
		right := api.Select(indexBits[i], current, sibling)
		current = hasher.HashNode(left, right)
	}

	api.AssertIsEqual(current, root)
}
