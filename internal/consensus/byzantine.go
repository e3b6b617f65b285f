package consensus

// DetectByzantineFaults scans round's vote log for equivocation: two
// distinct proposals pre-voted or pre-committed by the same validator
// at the same round. Each offending (voter, type) pair is reported at
// most once even if the validator equivocated more than twice.
func DetectByzantineFaults(round *Round) []Violation {
	type key struct {
		voter NodeID
		typ   VoteType
	}

	seenProposal := make(map[key][32]byte)
	reported := make(map[key]bool)
	var violations []Violation

	for _, v := range round.VoteLog {
		if v.Type != VotePreVote && v.Type != VotePreCommit {
			continue
		}
		k := key{voter: v.Voter, typ: v.Type}

		prev, ok := seenProposal[k]
		if !ok {
			seenProposal[k] = v.ProposalID
			continue
		}
		if prev != v.ProposalID && !reported[k] {
			violations = append(violations, Violation{
				Voter:  v.Voter,
				Height: round.Height,
				Round:  round.RoundNumber,
				Reason: "equivocation",
			})
			reported[k] = true
		}
	}

	return violations
}
