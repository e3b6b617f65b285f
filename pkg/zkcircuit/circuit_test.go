package zkcircuit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCircuitHashDeterministicForIdenticalStructure(t *testing.T) {
	build := func() *CircuitBuilder {
		b := NewCircuitBuilder(DefaultCircuitConfig())
		a := b.AddPublicInput()
		c := b.AddPrivateInput()
		sum := b.AddAddition(a, c)
		b.AddRangeConstraint(sum, 0, 1000)
		return b
	}

	h1 := build().CircuitHash()
	h2 := build().CircuitHash()
	require.Equal(t, h1, h2)
}

func TestCircuitHashChangesWithStructure(t *testing.T) {
	b1 := NewCircuitBuilder(DefaultCircuitConfig())
	a := b1.AddPublicInput()
	c := b1.AddPrivateInput()
	b1.AddAddition(a, c)

	b2 := NewCircuitBuilder(DefaultCircuitConfig())
	a2 := b2.AddPublicInput()
	c2 := b2.AddPrivateInput()
	b2.AddMultiplication(a2, c2)

	require.NotEqual(t, b1.CircuitHash(), b2.CircuitHash())
}

func TestEvaluateAdditionAndEquality(t *testing.T) {
	b := NewCircuitBuilder(DefaultCircuitConfig())
	a := b.AddPublicInput()
	c := b.AddPrivateInput()
	sum := b.AddAddition(a, c)
	expected := b.AddConstant(30)
	b.AddEqualityConstraint(sum, expected)

	values, err := Evaluate(b.Gates(), Witness{a: 12, c: 18})
	require.NoError(t, err)
	require.Equal(t, uint64(30), values[sum])
}

func TestEvaluateRejectsEqualityViolation(t *testing.T) {
	b := NewCircuitBuilder(DefaultCircuitConfig())
	a := b.AddPublicInput()
	c := b.AddPrivateInput()
	sum := b.AddAddition(a, c)
	expected := b.AddConstant(31)
	b.AddEqualityConstraint(sum, expected)

	_, err := Evaluate(b.Gates(), Witness{a: 12, c: 18})
	require.Error(t, err)
}

func TestEvaluateRejectsOutOfRange(t *testing.T) {
	b := NewCircuitBuilder(DefaultCircuitConfig())
	w := b.AddPrivateInput()
	b.AddRangeConstraint(w, 0, 10)

	_, err := Evaluate(b.Gates(), Witness{w: 11})
	require.Error(t, err)
}

func TestEvaluateRejectsNonBoolean(t *testing.T) {
	b := NewCircuitBuilder(DefaultCircuitConfig())
	w := b.AddPrivateInput()
	b.AddBooleanConstraint(w)

	_, err := Evaluate(b.Gates(), Witness{w: 2})
	require.Error(t, err)
}

func TestEvaluateHashIsDeterministic(t *testing.T) {
	b := NewCircuitBuilder(DefaultCircuitConfig())
	a := b.AddPrivateInput()
	c := b.AddPrivateInput()
	h := b.AddHash(a, c)

	v1, err := Evaluate(b.Gates(), Witness{a: 1, c: 2})
	require.NoError(t, err)
	v2, err := Evaluate(b.Gates(), Witness{a: 1, c: 2})
	require.NoError(t, err)
	require.Equal(t, v1[h], v2[h])
}

func TestEvaluateSubtractionUnderflow(t *testing.T) {
	b := NewCircuitBuilder(DefaultCircuitConfig())
	a := b.AddPrivateInput()
	c := b.AddPrivateInput()
	sub := b.AddSubtraction(a, c)

	_, err := Evaluate(b.Gates(), Witness{a: 1, c: 2})
	require.Error(t, err)
	_ = sub
}
