package circuits

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"
)

// gnark requires slice lengths to be fixed when the circuit is compiled, so
// circuit instances are always created through the factory below with a
// concrete shape.

const (
	// MaxTreeDepth caps the document tree depth (2^20 leaf slots).
	MaxTreeDepth = 20

	// MaxResults caps the number of retrieval slots per proof.
	MaxResults = 64

	// MaxModelTreeDepth caps the approved-model tree depth.
	MaxModelTreeDepth = 10
)

// Shape fixes every compile-time parameter of the circuit. Two equal shapes
// compile to identical constraint systems and therefore share a key version.
type Shape struct {
	// TreeDepth is the document tree depth; the tree has 2^TreeDepth leaf slots.
	TreeDepth int

	// NumResults is the number of retrieval slots proven per query.
	NumResults int

	// ModelTreeDepth is the approved-model tree depth.
	ModelTreeDepth int

	// ApprovedModelRoot is the root of the approved-model tree.
	ApprovedModelRoot *big.Int

	// WindowStart and WindowEnd bound the accepted timestamp, inclusive,
	// in Unix seconds.
	WindowStart uint64
	WindowEnd   uint64
}

// Validate checks the shape parameters against the supported ranges.
func (s Shape) Validate() error {
	if s.TreeDepth <= 0 || s.TreeDepth > MaxTreeDepth {
		return fmt.Errorf("tree depth out of range (0, %d]: %d", MaxTreeDepth, s.TreeDepth)
	}
	if s.NumResults <= 0 || s.NumResults > MaxResults {
		return fmt.Errorf("result count out of range (0, %d]: %d", MaxResults, s.NumResults)
	}
	if s.ModelTreeDepth <= 0 || s.ModelTreeDepth > MaxModelTreeDepth {
		return fmt.Errorf("model tree depth out of range (0, %d]: %d", MaxModelTreeDepth, s.ModelTreeDepth)
	}
	if s.ApprovedModelRoot == nil {
		return fmt.Errorf("approved model root not set")
	}
	if s.WindowStart > s.WindowEnd {
		return fmt.Errorf("window start %d after window end %d", s.WindowStart, s.WindowEnd)
	}
	return nil
}

// String returns a stable human-readable shape description for logging.
func (s Shape) String() string {
	return fmt.Sprintf("document_query(depth=%d,results=%d,modelDepth=%d,window=[%d,%d])",
		s.TreeDepth, s.NumResults, s.ModelTreeDepth, s.WindowStart, s.WindowEnd)
}

// NewDocumentQueryCircuit allocates a circuit instance for the shape, with
// all witness slices sized for compilation.
func NewDocumentQueryCircuit(shape Shape) (*DocumentQueryCircuit, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}

	results := make([]MembershipPath, shape.NumResults)
	for i := range results {
		results[i].Siblings = makeVariableSlice(shape.TreeDepth)
	}

	return &DocumentQueryCircuit{
		Results:           results,
		ModelPath:         makeVariableSlice(shape.ModelTreeDepth),
		TreeDepth:         shape.TreeDepth,
		ModelTreeDepth:    shape.ModelTreeDepth,
		ApprovedModelRoot: new(big.Int).Set(shape.ApprovedModelRoot),
		WindowStart:       shape.WindowStart,
		WindowEnd:         shape.WindowEnd,
	}, nil
}

func makeVariableSlice(n int) []frontend.Variable {
	return make([]frontend.Variable, n)
}
