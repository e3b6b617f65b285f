package consensus

import "github.com/zhtp/zhtp/pkg/crypto"

// Event is the closed set of values HandleEvent accepts and returns.
// The unexported marker method restricts implementations to this
// package, matching spec.md's tagged-variant design note.
type Event interface {
	isEvent()
}

// StartRound begins a new round at Height. Trigger records why:
// "height_advance" for the normal case, "timeout" for a round-advance
// after a step timed out, or "validator_byzantine" to force proposer
// re-selection after a fault was detected.
type StartRound struct {
	Height  uint64
	Trigger string
}

func (StartRound) isEvent() {}

// NewBlockEvent notifies the engine that a new block height is
// possible given PrevHash, independent of which round produces it.
type NewBlockEvent struct {
	Height   uint64
	PrevHash crypto.Hash
}

func (NewBlockEvent) isEvent() {}

// ProposalReceived delivers a proposal from the network (or the local
// node's own proposer step) into the engine.
type ProposalReceived struct {
	Proposal *Proposal
}

func (ProposalReceived) isEvent() {}

// VoteReceived delivers a vote from the network into the engine.
type VoteReceived struct {
	Vote Vote
}

func (VoteReceived) isEvent() {}

// TimeoutEvent fires when a step's timeout elapses without the round
// having advanced past it.
type TimeoutEvent struct {
	Height uint64
	Round  uint32
	Step   Step
}

func (TimeoutEvent) isEvent() {}

// RoundPrepared is emitted once a round's proposer and step are set up
// and ready to accept proposals/votes.
type RoundPrepared struct {
	Height uint64
	Round  uint32
}

func (RoundPrepared) isEvent() {}

// RoundCompleted is emitted when a round reaches commit quorum; Block
// is the finalized block.
type RoundCompleted struct {
	Height uint64
	Block  *Block
}

func (RoundCompleted) isEvent() {}

// RoundFailed is emitted when a round cannot complete (timeout without
// quorum, invalid input, detected fault) and must advance.
type RoundFailed struct {
	Height uint64
	Round  uint32
	Reason string
}

func (RoundFailed) isEvent() {}
