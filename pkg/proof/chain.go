package proof

import (
	"fmt"

	"github.com/zhtp/zhtp/pkg/crypto"
	"github.com/zhtp/zhtp/pkg/zkcircuit"
)

// TransitionValidationRules bounds what a chain of state transitions
// may look like before it can be aggregated into one recursive proof.
// Defaults match original_source's TransitionValidationRules.
type TransitionValidationRules struct {
	MaxHeightGap                uint64
	MaxTimeGap                  int64
	MinChainLength              int
	MaxChainLength              int
	RequireValidatorConsistency bool
	AllowBalanceIncreases       bool
}

// DefaultTransitionValidationRules returns the rule set used unless a
// caller overrides it.
func DefaultTransitionValidationRules() TransitionValidationRules {
	return TransitionValidationRules{
		MaxHeightGap:                1000,
		MaxTimeGap:                  86400,
		MinChainLength:              2,
		MaxChainLength:              100,
		RequireValidatorConsistency: true,
		AllowBalanceIncreases:       true,
	}
}

// ChainMetadata identifies a chain of transitions being aggregated.
type ChainMetadata struct {
	ChainID     string
	ValidatorID string
	StartHeight uint64
	EndHeight   uint64
}

// ValidationCheckpoint records the state this validation pass
// confirmed at one point in the chain, for audit and dispute
// resolution.
type ValidationCheckpoint struct {
	Height    uint64
	StateRoot crypto.Hash
	Timestamp int64
}

// ChainEconomicProof summarizes the aggregate economic effect of a
// chain of transitions: the total supply delta across the whole
// chain, independent of any single block's per-block conservation
// check.
type ChainEconomicProof struct {
	TotalSupplyBefore uint64
	TotalSupplyAfter  uint64
	NetIssuance       int64
}

// ChainPublicInputs is what a verifier of a ChainValidationProof sees.
type ChainPublicInputs struct {
	ChainID         string
	StartStateRoot  crypto.Hash
	EndStateRoot    crypto.Hash
	StartHeight     uint64
	EndHeight       uint64
	Checkpoints     []ValidationCheckpoint
	EconomicProof   ChainEconomicProof
}

// ChainValidationProof is the recursive proof a RecursiveAggregator
// produces: one zkcircuit.RecursiveProof over the leaf transition
// proofs, plus the chain-level public inputs it attests to.
type ChainValidationProof struct {
	Aggregate    zkcircuit.RecursiveProof
	PublicInputs ChainPublicInputs
}

// RecursiveAggregator validates a sequence of per-block transition
// proofs against TransitionValidationRules and folds them into one
// ChainValidationProof.
type RecursiveAggregator struct {
	rules TransitionValidationRules
}

// NewRecursiveAggregator creates an aggregator using rules.
func NewRecursiveAggregator(rules TransitionValidationRules) *RecursiveAggregator {
	return &RecursiveAggregator{rules: rules}
}

// validateChain checks chain-level invariants: length bounds, height
// and time continuity, validator consistency, and non-negative net
// issuance when balance increases are disallowed.
func (a *RecursiveAggregator) validateChain(proofs []StateTransitionProof, meta ChainMetadata) error {
	n := len(proofs)
	if n < a.rules.MinChainLength {
		return fmt.Errorf("proof: chain too short: %d transitions, minimum %d", n, a.rules.MinChainLength)
	}
	if n > a.rules.MaxChainLength {
		return fmt.Errorf("proof: chain too long: %d transitions, maximum %d", n, a.rules.MaxChainLength)
	}

	for i := 1; i < n; i++ {
		prev := proofs[i-1].PublicInputs
		cur := proofs[i].PublicInputs

		if cur.PrevStateRoot != prev.NewStateRoot {
			return fmt.Errorf("proof: chain broken at index %d: state root discontinuity", i)
		}
		if cur.BlockHeight <= prev.BlockHeight {
			return fmt.Errorf("proof: chain broken at index %d: non-increasing height", i)
		}
		if cur.BlockHeight-prev.BlockHeight > a.rules.MaxHeightGap {
			return fmt.Errorf("proof: chain broken at index %d: height gap %d exceeds maximum %d", i, cur.BlockHeight-prev.BlockHeight, a.rules.MaxHeightGap)
		}
		if cur.Timestamp < prev.Timestamp {
			return fmt.Errorf("proof: chain broken at index %d: non-increasing timestamp", i)
		}
		if cur.Timestamp-prev.Timestamp > a.rules.MaxTimeGap {
			return fmt.Errorf("proof: chain broken at index %d: time gap %ds exceeds maximum %ds", i, cur.Timestamp-prev.Timestamp, a.rules.MaxTimeGap)
		}
	}

	if !a.rules.AllowBalanceIncreases && n > 0 {
		if proofs[n-1].PublicInputs.TotalSupply > proofs[0].PublicInputs.TotalSupply {
			return fmt.Errorf("proof: chain increases total supply but balance increases are disallowed")
		}
	}

	if meta.StartHeight != proofs[0].PublicInputs.BlockHeight {
		return fmt.Errorf("proof: chain metadata start height does not match first proof")
	}
	if meta.EndHeight != proofs[n-1].PublicInputs.BlockHeight {
		return fmt.Errorf("proof: chain metadata end height does not match last proof")
	}

	return nil
}

// Aggregate validates proofs against the aggregator's rules and, if
// valid, folds their leaf zkcircuit proofs into one ChainValidationProof.
func (a *RecursiveAggregator) Aggregate(proofs []StateTransitionProof, meta ChainMetadata) (ChainValidationProof, error) {
	if err := a.validateChain(proofs, meta); err != nil {
		return ChainValidationProof{}, err
	}

	leaves := make([]zkcircuit.Plonky2Proof, len(proofs))
	checkpoints := make([]ValidationCheckpoint, len(proofs))
	for i, p := range proofs {
		leaves[i] = p.Proof
		checkpoints[i] = ValidationCheckpoint{
			Height:    p.PublicInputs.BlockHeight,
			StateRoot: p.PublicInputs.NewStateRoot,
			Timestamp: p.PublicInputs.Timestamp,
		}
	}

	agg, err := zkcircuit.AggregateBatch(leaves)
	if err != nil {
		return ChainValidationProof{}, fmt.Errorf("proof: aggregate chain: %w", err)
	}

	first, last := proofs[0].PublicInputs, proofs[len(proofs)-1].PublicInputs
	econ := ChainEconomicProof{
		TotalSupplyBefore: first.TotalSupply,
		TotalSupplyAfter:  last.TotalSupply,
		NetIssuance:       int64(last.TotalSupply) - int64(first.TotalSupply),
	}

	return ChainValidationProof{
		Aggregate: agg,
		PublicInputs: ChainPublicInputs{
			ChainID:        meta.ChainID,
			StartStateRoot: first.PrevStateRoot,
			EndStateRoot:   last.NewStateRoot,
			StartHeight:    first.BlockHeight,
			EndHeight:      last.BlockHeight,
			Checkpoints:    checkpoints,
			EconomicProof:  econ,
		},
	}, nil
}

// VerifyChain recomputes the aggregate over proofs and checks it
// matches cp's aggregate and public inputs.
func (a *RecursiveAggregator) VerifyChain(proofs []StateTransitionProof, meta ChainMetadata, cp ChainValidationProof) error {
	recomputed, err := a.Aggregate(proofs, meta)
	if err != nil {
		return err
	}
	leaves := make([]zkcircuit.Plonky2Proof, len(proofs))
	for i, p := range proofs {
		leaves[i] = p.Proof
	}
	if err := zkcircuit.VerifyBatch(leaves, cp.Aggregate); err != nil {
		return fmt.Errorf("proof: verify chain: %w", err)
	}
	if recomputed.PublicInputs.StartStateRoot != cp.PublicInputs.StartStateRoot ||
		recomputed.PublicInputs.EndStateRoot != cp.PublicInputs.EndStateRoot {
		return fmt.Errorf("proof: verify chain: state root mismatch")
	}
	return nil
}
