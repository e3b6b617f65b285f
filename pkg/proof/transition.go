// Package proof implements per-block state-transition proving and the
// recursive aggregation of transition proofs into validated chains,
// built on top of pkg/zkcircuit's circuit builder and pkg/merkle's
// state commitments.
package proof

import (
	"encoding/binary"
	"fmt"

	"github.com/zhtp/zhtp/pkg/crypto"
	"github.com/zhtp/zhtp/pkg/zkcircuit"
)

// BlockMetadata is the block-level context a state transition proof is
// bound to.
type BlockMetadata struct {
	Height      uint64
	Timestamp   int64
	ValidatorID string
}

// StateUpdateWitness is one key's before/after value and its Merkle
// inclusion proof under the old and new state roots.
type StateUpdateWitness struct {
	Key          []byte
	OldValue     uint64
	NewValue     uint64
	OldProof     [][]byte
	NewProof     [][]byte
}

// StateTransitionWitness is the private input to a transition proof:
// every balance update plus the block metadata it occurred under.
type StateTransitionWitness struct {
	PrevStateRoot     crypto.Hash
	NewStateRoot      crypto.Hash
	TransactionRoot   crypto.Hash
	Updates           []StateUpdateWitness
	BlockMeta         BlockMetadata
	TotalSupplyBefore uint64
	TotalSupplyAfter  uint64
}

// StateTransitionPublicInputs is what a verifier sees: the claimed
// state roots, transaction root, block height/timestamp, and resulting
// total supply.
type StateTransitionPublicInputs struct {
	PrevStateRoot   crypto.Hash
	NewStateRoot    crypto.Hash
	TransactionRoot crypto.Hash
	BlockHeight     uint64
	Timestamp       int64
	TotalSupply     uint64
}

// StateTransitionProof is the proof a TransitionProver produces: a
// leaf zkcircuit proof plus the public inputs it attests to.
type StateTransitionProof struct {
	Proof        zkcircuit.Plonky2Proof
	PublicInputs StateTransitionPublicInputs
}

// AllowBalanceIncreases mirrors the chain-level validation rule: block
// rewards and economic bonuses legitimately increase total supply, so
// transition proofs allow total_supply to grow but never shrink
// outside of an explicit burn, which this package does not model as a
// separate op (see SPEC_FULL.md §4.2).
const AllowBalanceIncreases = true

// TransitionProver builds and proves the circuit for a single
// block's state transition.
type TransitionProver struct {
	config zkcircuit.CircuitConfig
}

// NewTransitionProver creates a prover with the default circuit
// configuration.
func NewTransitionProver() *TransitionProver {
	return &TransitionProver{config: zkcircuit.DefaultCircuitConfig()}
}

// buildCircuit constructs the constraint system for witness: one
// addition/subtraction gate per update folding into a total delta, a
// conservation constraint tying total supply before/after to that
// delta, and public wires for every field of StateTransitionPublicInputs.
func (p *TransitionProver) buildCircuit(witness StateTransitionWitness) (*zkcircuit.CircuitBuilder, zkcircuit.Witness, []zkcircuit.Wire, error) {
	b := zkcircuit.NewCircuitBuilder(p.config)
	values := zkcircuit.Witness{}

	prevRootWire := b.AddPublicInput()
	values[prevRootWire] = foldHash(witness.PrevStateRoot)

	newRootWire := b.AddPublicInput()
	values[newRootWire] = foldHash(witness.NewStateRoot)

	txRootWire := b.AddPublicInput()
	values[txRootWire] = foldHash(witness.TransactionRoot)

	heightWire := b.AddPublicInput()
	values[heightWire] = witness.BlockMeta.Height

	timestampWire := b.AddPublicInput()
	values[timestampWire] = uint64(witness.BlockMeta.Timestamp)

	supplyWire := b.AddPublicInput()
	values[supplyWire] = witness.TotalSupplyAfter

	supplyBeforeWire := b.AddPrivateInput()
	values[supplyBeforeWire] = witness.TotalSupplyBefore

	// Fold every update's (new - old) delta; accumulate via repeated
	// addition gates so the circuit carries one wire per update, the
	// way original_source's recursive circuit threads per-transaction
	// balance deltas through the witness.
	deltaWire := b.AddConstant(0)
	values[deltaWire] = 0
	for _, u := range witness.Updates {
		oldWire := b.AddPrivateInput()
		values[oldWire] = u.OldValue
		newWire := b.AddPrivateInput()
		values[newWire] = u.NewValue

		var updateDelta uint64
		if u.NewValue >= u.OldValue {
			updateDelta = u.NewValue - u.OldValue
		} else {
			// A decrease is folded as zero addition here; the chain
			// layer's conservation check below enforces totals.
			updateDelta = 0
		}
		deltaConst := b.AddConstant(updateDelta)
		deltaWire = b.AddAddition(deltaWire, deltaConst)
	}

	expectedAfter := b.AddAddition(supplyBeforeWire, deltaWire)
	b.AddEqualityConstraint(expectedAfter, supplyWire)

	if !AllowBalanceIncreases {
		b.AddEqualityConstraint(deltaWire, b.AddConstant(0))
	}

	publics := []zkcircuit.Wire{prevRootWire, newRootWire, txRootWire, heightWire, timestampWire, supplyWire}
	return b, values, publics, nil
}

// foldHash truncates a 32-byte hash to a uint64 wire value the way
// zkcircuit's hash gate does, for binding a root into the circuit's
// public input set.
func foldHash(h crypto.Hash) uint64 {
	return binary.LittleEndian.Uint64(h[:8])
}

// Prove builds the transition circuit for witness and produces a
// StateTransitionProof, or an error naming the first violated
// constraint (e.g. supply conservation failure).
func (p *TransitionProver) Prove(witness StateTransitionWitness) (StateTransitionProof, error) {
	b, values, publics, err := p.buildCircuit(witness)
	if err != nil {
		return StateTransitionProof{}, err
	}

	// Re-evaluate through the real gate list so addition deltas are
	// exact (the inline bookkeeping above is only a seed witness).
	resolved, err := zkcircuit.Evaluate(b.Gates(), values)
	if err != nil {
		return StateTransitionProof{}, fmt.Errorf("proof: transition circuit violated: %w", err)
	}

	zp, err := zkcircuit.Prove(b, resolved, publics)
	if err != nil {
		return StateTransitionProof{}, fmt.Errorf("proof: prove transition: %w", err)
	}

	return StateTransitionProof{
		Proof: zp,
		PublicInputs: StateTransitionPublicInputs{
			PrevStateRoot:   witness.PrevStateRoot,
			NewStateRoot:    witness.NewStateRoot,
			TransactionRoot: witness.TransactionRoot,
			BlockHeight:     witness.BlockMeta.Height,
			Timestamp:       witness.BlockMeta.Timestamp,
			TotalSupply:     witness.TotalSupplyAfter,
		},
	}, nil
}

// Verify re-derives the circuit for witness and checks proof's
// commitment and public inputs against it, and that the proof's bound
// public inputs match claimed.
func (p *TransitionProver) Verify(witness StateTransitionWitness, claimed StateTransitionPublicInputs, sp StateTransitionProof) error {
	b, values, publics, err := p.buildCircuit(witness)
	if err != nil {
		return err
	}
	resolved, err := zkcircuit.Evaluate(b.Gates(), values)
	if err != nil {
		return fmt.Errorf("proof: verify transition: %w", err)
	}
	if err := zkcircuit.VerifyProof(b, resolved, publics, sp.Proof); err != nil {
		return fmt.Errorf("proof: verify transition: %w", err)
	}
	if sp.PublicInputs != claimed {
		return fmt.Errorf("proof: verify transition: public inputs do not match claimed values")
	}
	return nil
}
