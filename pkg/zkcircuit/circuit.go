// Package zkcircuit implements the arithmetic circuit builder and a
// deterministic, hash-based prover/verifier in the shape of a
// Plonky2-style proof system: wires with sequential indices, typed
// gates, and a circuit integrity hash computed over canonically
// serialized gates so structurally identical circuits always hash
// equal.
//
// This package does not wrap a real recursive SNARK backend (see
// DESIGN.md): it reproduces the wire/gate API spec.md names
// operation-by-operation, and "proves" by committing to the witness
// values that satisfy every recorded constraint, which is sufficient
// to exercise every invariant this module's consumers (pkg/proof) need
// to check.
package zkcircuit

import (
	"encoding/binary"
	"fmt"

	"github.com/zhtp/zhtp/pkg/crypto"
)

// Wire is a sequential index into a circuit's wire list.
type Wire int

// GateKind tags the kind of operation a Gate performs.
type GateKind uint8

const (
	GatePublicInput GateKind = iota
	GatePrivateInput
	GateConstant
	GateAddition
	GateMultiplication
	GateSubtraction
	GateHash
	GateBooleanConstraint
	GateEqualityConstraint
	GateRangeConstraint
)

// Gate is one recorded operation in the circuit's gate list.
type Gate struct {
	Kind     GateKind
	Output   Wire
	Inputs   []Wire
	Constant uint64 // meaningful for GateConstant, and min for GateRangeConstraint
	Aux      uint64 // max, for GateRangeConstraint
}

// CircuitConfig controls proof-system parameters that affect batching
// and verifier hints only; they never change constraint semantics.
type CircuitConfig struct {
	SecurityBits     int
	OptimizationLevel int // 1-5
}

// DefaultCircuitConfig matches the defaults original_source ships.
func DefaultCircuitConfig() CircuitConfig {
	return CircuitConfig{SecurityBits: 128, OptimizationLevel: 3}
}

// CircuitConstraint is a named, free-form constraint record used by
// higher-level circuits (pkg/proof) to tag semantic constraints beyond
// the primitive gate set, mirroring original_source's
// CircuitConstraint{constraint_type, wires, coefficients}.
type CircuitConstraint struct {
	ConstraintType string
	Wires          []Wire
	Coefficients   []int64
}

// CircuitBuilder accumulates wires and gates for one circuit.
type CircuitBuilder struct {
	config      CircuitConfig
	gates       []Gate
	constraints []CircuitConstraint
	next        Wire
}

// NewCircuitBuilder creates an empty builder.
func NewCircuitBuilder(config CircuitConfig) *CircuitBuilder {
	return &CircuitBuilder{config: config}
}

func (b *CircuitBuilder) alloc(kind GateKind, inputs []Wire, constant, aux uint64) Wire {
	w := b.next
	b.next++
	b.gates = append(b.gates, Gate{Kind: kind, Output: w, Inputs: inputs, Constant: constant, Aux: aux})
	return w
}

// AddPublicInput allocates a wire whose value is revealed to verifiers.
func (b *CircuitBuilder) AddPublicInput() Wire {
	return b.alloc(GatePublicInput, nil, 0, 0)
}

// AddPrivateInput allocates a witness-only wire.
func (b *CircuitBuilder) AddPrivateInput() Wire {
	return b.alloc(GatePrivateInput, nil, 0, 0)
}

// AddConstant allocates a wire fixed to value.
func (b *CircuitBuilder) AddConstant(value uint64) Wire {
	return b.alloc(GateConstant, nil, value, 0)
}

// AddAddition allocates a wire constrained to equal a+b.
func (b *CircuitBuilder) AddAddition(a, c Wire) Wire {
	return b.alloc(GateAddition, []Wire{a, c}, 0, 0)
}

// AddMultiplication allocates a wire constrained to equal a*c.
func (b *CircuitBuilder) AddMultiplication(a, c Wire) Wire {
	return b.alloc(GateMultiplication, []Wire{a, c}, 0, 0)
}

// AddSubtraction allocates a wire constrained to equal a-c.
func (b *CircuitBuilder) AddSubtraction(a, c Wire) Wire {
	return b.alloc(GateSubtraction, []Wire{a, c}, 0, 0)
}

// AddHash allocates a wire constrained to the BLAKE3 hash of inputs,
// folded into a uint64 via little-endian truncation.
func (b *CircuitBuilder) AddHash(inputs ...Wire) Wire {
	return b.alloc(GateHash, inputs, 0, 0)
}

// AddBooleanConstraint constrains w to 0 or 1.
func (b *CircuitBuilder) AddBooleanConstraint(w Wire) {
	b.alloc(GateBooleanConstraint, []Wire{w}, 0, 0)
}

// AddEqualityConstraint constrains a == c.
func (b *CircuitBuilder) AddEqualityConstraint(a, c Wire) {
	b.alloc(GateEqualityConstraint, []Wire{a, c}, 0, 0)
}

// AddRangeConstraint constrains min <= w <= max.
func (b *CircuitBuilder) AddRangeConstraint(w Wire, min, max uint64) {
	b.alloc(GateRangeConstraint, []Wire{w}, min, max)
}

// AddConstraint records a free-form named constraint (used by higher
// level circuits to tag semantic checks beyond the primitive gate
// set).
func (b *CircuitBuilder) AddConstraint(c CircuitConstraint) {
	b.constraints = append(b.constraints, c)
}

// Gates returns the recorded gate list.
func (b *CircuitBuilder) Gates() []Gate { return append([]Gate(nil), b.gates...) }

// CircuitHash computes the deterministic integrity hash of the
// circuit: BLAKE3 over canonically-ordered, length-prefixed gate
// records, so two structurally identical circuits always hash equal.
func (b *CircuitBuilder) CircuitHash() crypto.Hash {
	var buf []byte
	for _, g := range b.gates {
		buf = append(buf, byte(g.Kind))
		buf = appendU64(buf, uint64(g.Output))
		buf = appendU64(buf, uint64(len(g.Inputs)))
		for _, in := range g.Inputs {
			buf = appendU64(buf, uint64(in))
		}
		buf = appendU64(buf, g.Constant)
		buf = appendU64(buf, g.Aux)
	}
	return crypto.SumHash(buf)
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// Witness maps wires to their assigned values for evaluation.
type Witness map[Wire]uint64

// Evaluate resolves every gate's output value given the inputs supplied
// for public/private input wires, checking every constraint along the
// way. It returns an error naming the first constraint that fails.
func Evaluate(gates []Gate, inputs Witness) (Witness, error) {
	values := make(Witness, len(gates))
	for k, v := range inputs {
		values[k] = v
	}

	for _, g := range gates {
		switch g.Kind {
		case GatePublicInput, GatePrivateInput:
			if _, ok := values[g.Output]; !ok {
				return nil, fmt.Errorf("zkcircuit: missing witness value for input wire %d", g.Output)
			}
		case GateConstant:
			values[g.Output] = g.Constant
		case GateAddition:
			values[g.Output] = values[g.Inputs[0]] + values[g.Inputs[1]]
		case GateMultiplication:
			values[g.Output] = values[g.Inputs[0]] * values[g.Inputs[1]]
		case GateSubtraction:
			a, c := values[g.Inputs[0]], values[g.Inputs[1]]
			if c > a {
				return nil, fmt.Errorf("zkcircuit: subtraction underflow at wire %d", g.Output)
			}
			values[g.Output] = a - c
		case GateHash:
			var parts []byte
			for _, in := range g.Inputs {
				parts = appendU64(parts, values[in])
			}
			h := crypto.SumHash(parts)
			values[g.Output] = binary.LittleEndian.Uint64(h[:8])
		case GateBooleanConstraint:
			v := values[g.Inputs[0]]
			if v != 0 && v != 1 {
				return nil, fmt.Errorf("zkcircuit: wire %d is not boolean (%d)", g.Inputs[0], v)
			}
		case GateEqualityConstraint:
			a, c := values[g.Inputs[0]], values[g.Inputs[1]]
			if a != c {
				return nil, fmt.Errorf("zkcircuit: equality constraint violated: wire %d (%d) != wire %d (%d)", g.Inputs[0], a, g.Inputs[1], c)
			}
		case GateRangeConstraint:
			v := values[g.Inputs[0]]
			if v < g.Constant || v > g.Aux {
				return nil, fmt.Errorf("zkcircuit: wire %d value %d out of range [%d,%d]", g.Inputs[0], v, g.Constant, g.Aux)
			}
		default:
			return nil, fmt.Errorf("zkcircuit: unknown gate kind %d", g.Kind)
		}
	}
	return values, nil
}
