package consensus

import (
	"encoding/binary"
	"sort"

	"github.com/zhtp/zhtp/pkg/crypto"
)

// Validator is one member of the voting set.
type Validator struct {
	NodeID      NodeID
	PublicKey   crypto.PQSigPubKey
	VotingPower uint64
}

// ValidatorSet is the full voting membership for a height. Validators
// are immutable once constructed; a validator-set change takes effect
// at the next height, never mid-round.
type ValidatorSet struct {
	validators []Validator
}

// NewValidatorSet builds a set from validators, sorted by NodeID for
// deterministic iteration (proposer selection and validator-set
// hashing both depend on a fixed order).
func NewValidatorSet(validators []Validator) *ValidatorSet {
	sorted := append([]Validator(nil), validators...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].NodeID.Less(sorted[j].NodeID)
	})
	return &ValidatorSet{validators: sorted}
}

// Validators returns the set's members in canonical order.
func (vs *ValidatorSet) Validators() []Validator {
	return append([]Validator(nil), vs.validators...)
}

// TotalVotingPower sums every validator's voting power.
func (vs *ValidatorSet) TotalVotingPower() uint64 {
	var total uint64
	for _, v := range vs.validators {
		total += v.VotingPower
	}
	return total
}

// Get returns the full validator record for id.
func (vs *ValidatorSet) Get(id NodeID) (Validator, bool) {
	for _, v := range vs.validators {
		if v.NodeID == id {
			return v, true
		}
	}
	return Validator{}, false
}

// Power returns id's voting power, or 0 if id is not a member.
func (vs *ValidatorSet) Power(id NodeID) uint64 {
	for _, v := range vs.validators {
		if v.NodeID == id {
			return v.VotingPower
		}
	}
	return 0
}

// IsMember reports whether id is a member of this set.
func (vs *ValidatorSet) IsMember(id NodeID) bool {
	for _, v := range vs.validators {
		if v.NodeID == id {
			return true
		}
	}
	return false
}

// Threshold returns the Byzantine quorum threshold:
// ⌊2·total_voting_power/3⌋ + 1.
func (vs *ValidatorSet) Threshold() uint64 {
	return 2*vs.TotalVotingPower()/3 + 1
}

// Hash returns a deterministic content hash of the set's membership,
// used to seed proposer selection and to identify which validator set
// a state commitment was produced under.
func (vs *ValidatorSet) Hash() crypto.Hash {
	parts := make([][]byte, 0, len(vs.validators)*2)
	for _, v := range vs.validators {
		powerBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(powerBytes, v.VotingPower)
		parts = append(parts, v.NodeID.Bytes(), powerBytes)
	}
	return crypto.SumHash(parts...)
}

// SelectProposer deterministically picks a proposer for (height,
// round): hash(height, round, validator_set_hash) seeds a weighted
// pick over voting power, ties broken by NodeID byte comparison
// (vs.validators is already sorted that way).
func SelectProposer(height uint64, round uint32, vs *ValidatorSet) NodeID {
	total := vs.TotalVotingPower()
	if total == 0 {
		return NodeID{}
	}

	heightBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(heightBytes, height)
	roundBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(roundBytes, round)

	setHash := vs.Hash()
	seed := crypto.SumHash(heightBytes, roundBytes, setHash.Bytes())
	target := binary.BigEndian.Uint64(seed[:8]) % total

	var cumulative uint64
	for _, v := range vs.validators {
		cumulative += v.VotingPower
		if target < cumulative {
			return v.NodeID
		}
	}
	// Unreachable when total > 0, but fall back to the last validator
	// rather than a zero NodeID in case of rounding drift.
	return vs.validators[len(vs.validators)-1].NodeID
}
