// Package attest provides error definitions for the attestation proving pipeline.
package attest

import (
	"errors"
	"fmt"
)

var (
	// ErrEncoding reports witness material that cannot be mapped into the
	// scalar field (malformed hex, wrong hash length, NaN/Inf or overflowing
	// embedding values).
	ErrEncoding = errors.New("field encoding failed")

	// ErrConstraintUnsatisfied reports a witness that does not satisfy the
	// circuit constraints.
	ErrConstraintUnsatisfied = errors.New("constraints unsatisfied")

	// ErrSetupMissing reports absent key material. Keys are never regenerated
	// implicitly; an explicit Setup is required.
	ErrSetupMissing = errors.New("trusted setup missing")

	// ErrMalformedProof reports proof bytes that do not deserialize.
	ErrMalformedProof = errors.New("malformed proof")

	// ErrMalformedKey reports key material that does not deserialize.
	ErrMalformedKey = errors.New("malformed key")

	// ErrInvalidWitness reports a structurally invalid query witness.
	ErrInvalidWitness = errors.New("invalid witness")

	// ErrCircuitCompile reports a circuit compilation failure.
	ErrCircuitCompile = errors.New("circuit compilation failed")

	// ErrProofGeneration reports a backend proving failure.
	ErrProofGeneration = errors.New("proof generation failed")

	// ErrShapeMismatch reports circuit shape parameters that are out of range
	// or inconsistent with the witness.
	ErrShapeMismatch = errors.New("circuit shape mismatch")
)

// WrapEncodingError wraps an encoding failure with the offending field.
func WrapEncodingError(field, reason string) error {
	return fmt.Errorf("%w: field=%s, reason=%s", ErrEncoding, field, reason)
}

// WrapConstraintUnsatisfiedError wraps an unsatisfied constraint with its family.
func WrapConstraintUnsatisfiedError(constraint, reason string) error {
	return fmt.Errorf("%w: constraint=%s, reason=%s", ErrConstraintUnsatisfied, constraint, reason)
}

// WrapSetupMissingError wraps missing key material with a remediation hint.
func WrapSetupMissingError(version, dir string) error {
	return fmt.Errorf("%w: version=%s, dir=%s, run setup first", ErrSetupMissing, version, dir)
}

// WrapMalformedProofError wraps a proof deserialization failure.
func WrapMalformedProofError(err error) error {
	return fmt.Errorf("%w: cause=%v", ErrMalformedProof, err)
}

// WrapMalformedKeyError wraps a key deserialization failure.
func WrapMalformedKeyError(artifact string, err error) error {
	return fmt.Errorf("%w: artifact=%s, cause=%v", ErrMalformedKey, artifact, err)
}

// WrapInvalidWitnessError wraps a witness validation failure.
func WrapInvalidWitnessError(reason string) error {
	return fmt.Errorf("%w: reason=%s", ErrInvalidWitness, reason)
}

// WrapCircuitCompileError wraps a compilation failure.
func WrapCircuitCompileError(err error) error {
	return fmt.Errorf("%w: cause=%v", ErrCircuitCompile, err)
}

// WrapProofGenerationError wraps a backend proving failure.
func WrapProofGenerationError(err error) error {
	return fmt.Errorf("%w: cause=%v", ErrProofGeneration, err)
}

// WrapShapeMismatchError wraps a shape parameter violation.
func WrapShapeMismatchError(parameter string, expected, actual interface{}) error {
	return fmt.Errorf("%w: parameter=%s, expected=%v, actual=%v", ErrShapeMismatch, parameter, expected, actual)
}
