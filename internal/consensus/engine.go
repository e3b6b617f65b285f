package consensus

import (
	"fmt"
	"sync"
	"time"

	"github.com/zhtp/zhtp/pkg/crypto"
	"github.com/zhtp/zhtp/pkg/mesh"
)

// TimeoutConfig controls how long each step waits before a Timeout
// event fires for it.
type TimeoutConfig struct {
	Propose   time.Duration
	PreVote   time.Duration
	PreCommit time.Duration
}

// DefaultTimeoutConfig matches the teacher's original per-step
// timeouts.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Propose:   3 * time.Second,
		PreVote:   3 * time.Second,
		PreCommit: 3 * time.Second,
	}
}

// Context bundles everything the engine needs beyond its own round
// state: the voting membership, this node's place in it, time, and
// where to report detected faults.
type Context struct {
	Validators *ValidatorSet
	Self       NodeID
	Clock      Clock
	Timeouts   TimeoutConfig

	// Reputation reports detected Byzantine faults against the
	// offending validator's peer score. Nil is accepted (faults are
	// still detected, but not scored or reported anywhere else; no
	// RoundFailed is emitted for them) — consensus's job is detection, mesh's is scoring,
	// and a test engine with no mesh wiring shouldn't need a stub.
	Reputation *mesh.ReputationTracker
}

// Engine is the BFT consensus state machine: one round at a time,
// advanced exclusively through HandleEvent.
type Engine struct {
	ctx Context

	mu       sync.Mutex
	round    *Round
	identity *crypto.KeyPair
	mempool  [][]byte
}

// NewEngine creates an engine over ctx. ctx.Clock defaults to
// SystemClock if nil.
func NewEngine(ctx Context) *Engine {
	if ctx.Clock == nil {
		ctx.Clock = SystemClock{}
	}
	if ctx.Timeouts == (TimeoutConfig{}) {
		ctx.Timeouts = DefaultTimeoutConfig()
	}
	return &Engine{ctx: ctx}
}

// SetIdentity installs the local validator's signing identity. It is
// one-shot: a second call returns an error rather than silently
// replacing the identity mid-operation.
func (e *Engine) SetIdentity(kp *crypto.KeyPair) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.identity != nil {
		return fmt.Errorf("consensus: identity already set")
	}
	e.identity = kp
	return nil
}

// AddTransaction queues tx in the local mempool for inclusion in the
// next proposal this node makes.
func (e *Engine) AddTransaction(tx []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mempool = append(e.mempool, tx)
}

// CurrentRound returns a snapshot of the round currently in progress,
// or nil if no round has started.
func (e *Engine) CurrentRound() *Round {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.round == nil {
		return nil
	}
	r := *e.round
	return &r
}

// HandleEvent is the engine's single state-transition entry point: a
// pure function of the event and the engine's current round state,
// returning the output events produced.
func (e *Engine) HandleEvent(event Event) ([]Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch ev := event.(type) {
	case StartRound:
		return e.startRound(ev)
	case NewBlockEvent:
		return e.startRound(StartRound{Height: ev.Height, Trigger: "new_block"})
	case ProposalReceived:
		return e.handleProposal(ev)
	case VoteReceived:
		return e.handleVote(ev)
	case TimeoutEvent:
		return e.handleTimeout(ev)
	default:
		return nil, fmt.Errorf("consensus: unhandled event type %T", event)
	}
}

// startRound begins a round at ev.Height. locked_proposal and
// valid_proposal are preserved across a round advance at the same
// height (spec's round-advance rule); a new height always starts
// clean. On trigger "validator_byzantine" the proposer is forcibly
// re-selected even though SelectProposer is already deterministic per
// round — this documents the intent rather than changing the
// selection function, since the round number itself already changed
// by the time this trigger fires.
func (e *Engine) startRound(ev StartRound) ([]Event, error) {
	var lockedProposal, validProposal crypto.Hash
	var roundNumber uint32

	if e.round != nil && e.round.Height == ev.Height {
		lockedProposal = e.round.LockedProposal
		validProposal = e.round.ValidProposal
		roundNumber = e.round.RoundNumber + 1
	}

	proposer := SelectProposer(ev.Height, roundNumber, e.ctx.Validators)

	e.round = &Round{
		Height:         ev.Height,
		RoundNumber:    roundNumber,
		Step:           StepPropose,
		Proposer:       &proposer,
		LockedProposal: lockedProposal,
		ValidProposal:  validProposal,
		StartTime:      e.ctx.Clock.Now(),
	}

	out := []Event{RoundPrepared{Height: ev.Height, Round: roundNumber}}

	if proposer == e.ctx.Self {
		proposal := e.buildProposal()
		if proposal != nil {
			e.round.AddProposal(proposal)
			out = append(out, ProposalReceived{Proposal: proposal})
		}
	}

	return out, nil
}

// buildProposal assembles a block from the mempool. Returns nil if
// this node has no signing identity installed yet — it cannot sign a
// proposal without one.
func (e *Engine) buildProposal() *Proposal {
	if e.identity == nil || e.round == nil {
		return nil
	}

	var prevHash crypto.Hash
	block := &Block{
		PrevHash:     prevHash,
		Height:       e.round.Height,
		Transactions: append([][]byte(nil), e.mempool...),
		Timestamp:    e.ctx.Clock.Now(),
	}

	sig, err := e.identity.Sign(block.Hash().Bytes())
	if err != nil {
		return nil
	}

	return &Proposal{
		Block:     block,
		Proposer:  e.ctx.Self,
		Round:     e.round.RoundNumber,
		Signature: sig,
	}
}

// handleProposal validates and records a received proposal, casting
// this node's pre-vote per the PreVote policy: prefer a locked
// proposal from an earlier round, else the first valid proposal
// received, else nil.
func (e *Engine) handleProposal(ev ProposalReceived) ([]Event, error) {
	if e.round == nil {
		return nil, fmt.Errorf("consensus: proposal received with no round in progress")
	}
	p := ev.Proposal
	if p == nil || p.Block == nil {
		return nil, fmt.Errorf("consensus: nil proposal")
	}
	if p.Block.Height != e.round.Height {
		return []Event{RoundFailed{Height: e.round.Height, Round: e.round.RoundNumber, Reason: "proposal height mismatch"}}, nil
	}
	if p.Proposer != *e.round.Proposer {
		return []Event{RoundFailed{Height: e.round.Height, Round: e.round.RoundNumber, Reason: "proposal from non-proposer"}}, nil
	}

	proposerValidator, ok := e.ctx.Validators.Get(p.Proposer)
	if !ok || !crypto.Verify(proposerValidator.PublicKey, p.Block.Hash().Bytes(), p.Signature) {
		return []Event{RoundFailed{Height: e.round.Height, Round: e.round.RoundNumber, Reason: "invalid proposal signature"}}, nil
	}

	if _, exists := e.round.ProposalByID(p.ID()); !exists {
		e.round.AddProposal(p)
	}

	e.round.Step = StepPreVote

	// Pre-vote policy: a locked proposal from an earlier round wins
	// outright; otherwise always the first valid proposal this node
	// saw this round (FirstSeenProposal), never whichever proposal
	// happens to be in p — a second, distinct proposal delivered (or
	// redelivered) for the same round must not change this node's own
	// vote, or it equivocates against itself.
	var voteFor crypto.Hash
	switch {
	case !e.round.LockedProposal.IsZero():
		voteFor = e.round.LockedProposal
	default:
		voteFor = e.round.FirstSeenProposal
	}

	vote := Vote{
		Voter:      e.ctx.Self,
		ProposalID: voteFor,
		Type:       VotePreVote,
		Height:     e.round.Height,
		Round:      e.round.RoundNumber,
	}
	e.round.AddVote(vote)

	return []Event{VoteReceived{Vote: vote}}, nil
}

// handleVote records a vote and checks for quorum transitions: PreVote
// quorum locks in a valid_proposal and advances to PreCommit; PreCommit
// quorum casts a commit vote; commit quorum finalizes the round.
func (e *Engine) handleVote(ev VoteReceived) ([]Event, error) {
	if e.round == nil {
		return nil, fmt.Errorf("consensus: vote received with no round in progress")
	}
	if !e.ctx.Validators.IsMember(ev.Vote.Voter) {
		return nil, fmt.Errorf("consensus: vote from non-validator %s", ev.Vote.Voter)
	}

	e.round.AddVote(ev.Vote)

	var out []Event
	for _, violation := range DetectByzantineFaults(e.round) {
		if e.ctx.Reputation != nil {
			_, _ = e.ctx.Reputation.Record(violation.Voter, mesh.EventProtocolViolation)
		}
	}

	switch ev.Vote.Type {
	case VotePreVote:
		if e.round.Step != StepPreVote {
			break
		}
		if e.round.HasQuorum(VotePreVote, ev.Vote.ProposalID, e.ctx.Validators) {
			e.round.ValidProposal = ev.Vote.ProposalID
			e.round.LockedProposal = ev.Vote.ProposalID
			e.round.Step = StepPreCommit

			precommit := Vote{
				Voter:      e.ctx.Self,
				ProposalID: ev.Vote.ProposalID,
				Type:       VotePreCommit,
				Height:     e.round.Height,
				Round:      e.round.RoundNumber,
			}
			e.round.AddVote(precommit)
			out = append(out, VoteReceived{Vote: precommit})
		}

	case VotePreCommit:
		if e.round.HasQuorum(VotePreCommit, ev.Vote.ProposalID, e.ctx.Validators) {
			commit := Vote{
				Voter:      e.ctx.Self,
				ProposalID: ev.Vote.ProposalID,
				Type:       VoteCommit,
				Height:     e.round.Height,
				Round:      e.round.RoundNumber,
			}
			e.round.AddVote(commit)
			out = append(out, VoteReceived{Vote: commit})
		}

	case VoteCommit:
		if e.round.HasQuorum(VoteCommit, ev.Vote.ProposalID, e.ctx.Validators) {
			proposal, ok := e.round.ProposalByID(ev.Vote.ProposalID)
			if ok {
				out = append(out, RoundCompleted{Height: e.round.Height, Block: proposal.Block})
			}
		}
	}

	return out, nil
}

// handleTimeout advances the round past a step that ran out the
// clock. A round that times out without reaching commit quorum
// advances to a new round at the same height, preserving
// locked/valid proposal per spec.
func (e *Engine) handleTimeout(ev TimeoutEvent) ([]Event, error) {
	if e.round == nil || e.round.Height != ev.Height || e.round.RoundNumber != ev.Round {
		return nil, nil // stale timeout for a round we've already moved past
	}
	if e.round.Step != ev.Step {
		return nil, nil // already advanced past this step
	}

	e.round.TimedOut = true

	switch ev.Step {
	case StepPropose:
		e.round.Step = StepPreVote
		nilVote := Vote{Voter: e.ctx.Self, Type: VotePreVote, Height: e.round.Height, Round: e.round.RoundNumber}
		e.round.AddVote(nilVote)
		return []Event{VoteReceived{Vote: nilVote}}, nil

	case StepPreVote:
		e.round.Step = StepPreCommit
		nilVote := Vote{Voter: e.ctx.Self, Type: VotePreCommit, Height: e.round.Height, Round: e.round.RoundNumber}
		e.round.AddVote(nilVote)
		return []Event{VoteReceived{Vote: nilVote}}, nil

	default:
		failed := RoundFailed{Height: e.round.Height, Round: e.round.RoundNumber, Reason: "No consensus"}
		next, err := e.startRound(StartRound{Height: e.round.Height, Trigger: "timeout"})
		if err != nil {
			return nil, err
		}
		return append([]Event{failed}, next...), nil
	}
}
