// Package consensus implements the BFT consensus engine: deterministic
// proposer selection, the Propose/PreVote/PreCommit round algorithm,
// and post-round Byzantine fault detection.
package consensus

import (
	"encoding/binary"
	"time"

	"github.com/zhtp/zhtp/pkg/crypto"
)

// NodeID identifies a validator, reusing the module's node-identity
// hash rather than a separate validator ID space.
type NodeID = crypto.Hash

// Step is the current phase within a consensus round.
type Step int

const (
	StepPropose Step = iota
	StepPreVote
	StepPreCommit
)

func (s Step) String() string {
	switch s {
	case StepPropose:
		return "propose"
	case StepPreVote:
		return "prevote"
	case StepPreCommit:
		return "precommit"
	default:
		return "unknown"
	}
}

// VoteType distinguishes the phase a Vote was cast in from the final
// commit vote, which is cast only after PreCommit quorum.
type VoteType int

const (
	VotePreVote VoteType = iota
	VotePreCommit
	VoteCommit
)

func (t VoteType) String() string {
	switch t {
	case VotePreVote:
		return "prevote"
	case VotePreCommit:
		return "precommit"
	case VoteCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// Vote is one validator's vote for a proposal at a given height/round.
// A zero-value ProposalID is a nil vote (no proposal judged valid at
// this step).
type Vote struct {
	Voter      NodeID
	ProposalID crypto.Hash
	Type       VoteType
	Height     uint64
	Round      uint32
	Signature  crypto.PQSignature
}

// Block is a candidate block proposed at some height.
type Block struct {
	PrevHash     crypto.Hash
	Height       uint64
	Difficulty   uint64
	Transactions [][]byte
	Nonce        uint64
	Timestamp    time.Time
}

// Hash returns the content hash identifying this block, used as the
// proposal ID that votes reference.
func (b *Block) Hash() crypto.Hash {
	heightBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(heightBytes, b.Height)
	nonceBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(nonceBytes, b.Nonce)
	tsBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(tsBytes, uint64(b.Timestamp.UnixNano()))

	parts := [][]byte{b.PrevHash.Bytes(), heightBytes, nonceBytes, tsBytes}
	parts = append(parts, b.Transactions...)
	return crypto.SumHash(parts...)
}

// Proposal is a signed candidate block for a given round.
type Proposal struct {
	Block     *Block
	Proposer  NodeID
	Round     uint32
	Signature crypto.PQSignature
}

// ID returns the proposal's identifying hash, the same hash votes
// reference when voting for this proposal.
func (p *Proposal) ID() crypto.Hash {
	if p == nil || p.Block == nil {
		return crypto.Hash{}
	}
	return p.Block.Hash()
}

// Violation records a detected Byzantine fault against a validator.
type Violation struct {
	Voter  NodeID
	Height uint64
	Round  uint32
	Reason string
}
