package consensus

import (
	"time"

	"github.com/zhtp/zhtp/pkg/crypto"
)

// Round holds the mutable state of one consensus round: which step
// it's in, every proposal and vote seen, and the locked/valid
// proposal carried forward across round advances.
type Round struct {
	Height            uint64
	RoundNumber       uint32
	Step              Step
	Proposer          *NodeID
	Proposals         []*Proposal
	VoteLog           []Vote
	LockedProposal    crypto.Hash
	ValidProposal     crypto.Hash
	FirstSeenProposal crypto.Hash
	TimedOut          bool
	StartTime         time.Time
}

// AddProposal records a proposal received for this round. FirstSeenProposal
// is set once, from the first proposal recorded — a second, distinct
// proposal from the same (or a misbehaving) proposer never replaces it,
// so the unlocked pre-vote policy always votes for the first valid
// proposal this node saw, never a later equivocating one.
func (r *Round) AddProposal(p *Proposal) {
	r.Proposals = append(r.Proposals, p)
	if r.FirstSeenProposal.IsZero() {
		r.FirstSeenProposal = p.ID()
	}
}

// ProposalByID returns the proposal matching id, if one was received.
func (r *Round) ProposalByID(id crypto.Hash) (*Proposal, bool) {
	for _, p := range r.Proposals {
		if p.ID() == id {
			return p, true
		}
	}
	return nil, false
}

// AddVote appends v to the round's vote log. Every vote is kept, even
// one that equivocates a validator's earlier vote in this round —
// DetectByzantineFaults needs the full log, and VotingPowerFor only
// ever counts the first vote per (voter, type).
func (r *Round) AddVote(v Vote) {
	r.VoteLog = append(r.VoteLog, v)
}

// firstVotesByType returns, per voter, the first vote of voteType cast
// this round. A later equivocating vote from the same voter is
// ignored for tallying purposes (it still appears in VoteLog for
// fault detection).
func (r *Round) firstVotesByType(voteType VoteType) map[NodeID]Vote {
	seen := make(map[NodeID]Vote)
	for _, v := range r.VoteLog {
		if v.Type != voteType {
			continue
		}
		if _, ok := seen[v.Voter]; !ok {
			seen[v.Voter] = v
		}
	}
	return seen
}

// VotingPowerFor sums the voting power of every validator whose first
// voteType vote this round was for proposalID.
func (r *Round) VotingPowerFor(voteType VoteType, proposalID crypto.Hash, vs *ValidatorSet) uint64 {
	var total uint64
	for voter, v := range r.firstVotesByType(voteType) {
		if v.ProposalID == proposalID {
			total += vs.Power(voter)
		}
	}
	return total
}

// HasQuorum reports whether proposalID has reached vs's Byzantine
// threshold among first votes of voteType. A zero-hash proposalID
// never satisfies quorum, matching the "zero-hash proposal never
// satisfies commit quorum" invariant.
func (r *Round) HasQuorum(voteType VoteType, proposalID crypto.Hash, vs *ValidatorSet) bool {
	if proposalID.IsZero() {
		return false
	}
	return r.VotingPowerFor(voteType, proposalID, vs) >= vs.Threshold()
}
