package zkcircuit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildSumCircuit() (*CircuitBuilder, Wire, Wire, Wire) {
	b := NewCircuitBuilder(DefaultCircuitConfig())
	a := b.AddPublicInput()
	c := b.AddPrivateInput()
	sum := b.AddAddition(a, c)
	return b, a, c, sum
}

func TestProveVerifyRoundTrip(t *testing.T) {
	b, a, c, sum := buildSumCircuit()
	witness := Witness{a: 5, c: 7}

	proof, err := Prove(b, witness, []Wire{a, sum})
	require.NoError(t, err)
	require.Equal(t, []uint64{5, 12}, proof.PublicInputs)

	require.NoError(t, VerifyProof(b, witness, []Wire{a, sum}, proof))
}

func TestVerifyRejectsTamperedPublicInputs(t *testing.T) {
	b, a, c, sum := buildSumCircuit()
	witness := Witness{a: 5, c: 7}

	proof, err := Prove(b, witness, []Wire{a, sum})
	require.NoError(t, err)

	proof.PublicInputs[1] = 999
	require.Error(t, VerifyProof(b, witness, []Wire{a, sum}, proof))
}

func TestVerifyRejectsWrongWitness(t *testing.T) {
	b, a, c, sum := buildSumCircuit()
	proof, err := Prove(b, Witness{a: 5, c: 7}, []Wire{a, sum})
	require.NoError(t, err)

	require.Error(t, VerifyProof(b, Witness{a: 5, c: 8}, []Wire{a, sum}, proof))
}

func TestAggregateAndVerifyBatch(t *testing.T) {
	b, a, c, sum := buildSumCircuit()
	p1, err := Prove(b, Witness{a: 1, c: 2}, []Wire{a, sum})
	require.NoError(t, err)
	p2, err := Prove(b, Witness{a: 3, c: 4}, []Wire{a, sum})
	require.NoError(t, err)

	agg, err := AggregateBatch([]Plonky2Proof{p1, p2})
	require.NoError(t, err)
	require.Equal(t, 2, agg.LeafCount)
	require.NoError(t, VerifyBatch([]Plonky2Proof{p1, p2}, agg))

	require.Error(t, VerifyBatch([]Plonky2Proof{p2, p1}, agg))
}

func TestAggregateBatchRejectsEmpty(t *testing.T) {
	_, err := AggregateBatch(nil)
	require.Error(t, err)
}
