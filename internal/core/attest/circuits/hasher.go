// Package circuits contains the gnark circuits for query attestation.
package circuits

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// FieldHasher wraps the in-circuit MiMC hasher. It must agree with the native
// hasher used to build commitments outside the circuit.
type FieldHasher struct {
	h mimc.MiMC
}

// NewFieldHasher creates an in-circuit hasher.
func NewFieldHasher(api frontend.API) (*FieldHasher, error) {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return nil, err
	}
	return &FieldHasher{h: h}, nil
}

// HashLeaf hashes a single leaf value.
func (f *FieldHasher) HashLeaf(leaf frontend.Variable) frontend.Variable {
	f.h.Reset()
	f.h.Write(leaf)
	return f.h.Sum()
}

// HashNode hashes an inner node from its ordered children.
func (f *FieldHasher) HashNode(left, right frontend.Variable) frontend.Variable {
	f.h.Reset()
	f.h.Write(left, right)
	return f.h.Sum()
}
