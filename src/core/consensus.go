package main

import (
	"fmt"
	"sync"
)

// ConsensusGate collects votes from a roster of participants on a
// candidate block and applies a majority rule. Voting is simulated within
// the process; each voter is polled in roster order.
type ConsensusGate struct {
	mu        sync.RWMutex
	voters    []Voter
	threshold float64
}

// NewConsensusGate creates a gate over a non-empty roster. The threshold
// is the fraction of the roster that must approve, in (0, 1]; 0.5 gives a
// simple majority.
func NewConsensusGate(voters []Voter, threshold float64) (*ConsensusGate, error) {
	if len(voters) == 0 {
		return nil, &ValidationError{Field: "roster", Reason: "consensus requires at least one voter"}
	}
	if threshold <= 0 || threshold > 1 {
		return nil, &ValidationError{Field: "vote_threshold", Reason: "threshold must be in (0, 1]"}
	}

	gate := &ConsensusGate{
		voters:    append([]Voter(nil), voters...),
		threshold: threshold,
	}

	logger.Info("Consensus gate initialized",
		"totalVoters", len(voters),
		"threshold", threshold,
		"requiredVotes", gate.RequiredVotes(len(voters)))
	return gate, nil
}

// RequiredVotes returns the minimum approvals needed for a roster of n:
// strictly more than the threshold fraction, always at least one, never
// more than the roster size. A 2-voter roster at 0.5 needs both votes,
// so a tie is never treated as consensus.
func (g *ConsensusGate) RequiredVotes(n int) int {
	required := int(float64(n)*g.threshold) + 1
	if required > n {
		required = n
	}
	return required
}

// RosterSize returns the current number of voters
func (g *ConsensusGate) RosterSize() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.voters)
}

// UpdateRoster replaces the voter set. Required whenever participants are
// added or removed, since required-vote counts depend on roster size.
func (g *ConsensusGate) UpdateRoster(voters []Voter) error {
	if len(voters) == 0 {
		return &ValidationError{Field: "roster", Reason: "cannot update to an empty roster"}
	}

	g.mu.Lock()
	oldCount := len(g.voters)
	g.voters = append([]Voter(nil), voters...)
	newCount := len(g.voters)
	g.mu.Unlock()

	logger.Info("Consensus roster updated",
		"previousVoters", oldCount,
		"newVoters", newCount,
		"requiredVotes", g.RequiredVotes(newCount))
	return nil
}

// RequestConsensus runs one voting round on a candidate block. If the
// pre-validator rejects the block the round fails immediately with zero
// votes cast and no voter polled. Otherwise every voter is polled in
// roster order and approval holds iff votesFor >= RequiredVotes(roster).
// Abstentions count neither for nor against, so a heavily-abstaining
// roster can block consensus without any voter actively rejecting.
func (g *ConsensusGate) RequestConsensus(block Block, preValidate func(Block) (bool, string)) (bool, VoteDetails) {
	g.mu.RLock()
	voters := append([]Voter(nil), g.voters...)
	g.mu.RUnlock()

	required := g.RequiredVotes(len(voters))

	if preValidate != nil {
		if ok, reason := preValidate(block); !ok {
			logger.Warn("Candidate block failed pre-validation",
				"blockIndex", block.Index,
				"reason", reason)
			return false, VoteDetails{
				RequiredVotes: required,
				TotalNodes:    len(voters),
				Records:       []VoteRecord{},
				Reason:        "pre-validation failed: " + reason,
			}
		}
	}

	details := VoteDetails{
		RequiredVotes: required,
		TotalNodes:    len(voters),
		Records:       make([]VoteRecord, 0, len(voters)),
	}

	for _, voter := range voters {
		vote := voter.vote(block)
		switch vote {
		case VoteApprove:
			details.VotesFor++
		case VoteReject:
			details.VotesAgainst++
		default:
			details.Abstentions++
		}
		details.Records = append(details.Records, VoteRecord{NodeID: voter.ID, Vote: vote})
	}

	details.Reached = details.VotesFor >= required
	if !details.Reached {
		details.Reason = fmt.Sprintf("received %d of %d required votes", details.VotesFor, required)
	}

	logger.Info("Consensus round completed",
		"blockIndex", block.Index,
		"votesFor", details.VotesFor,
		"votesAgainst", details.VotesAgainst,
		"abstentions", details.Abstentions,
		"requiredVotes", required,
		"reached", details.Reached)
	RecordConsensusRound(details)

	return details.Reached, details
}

// vote dispatches to the voter's own decision function when present,
// otherwise applies the default rule
func (v Voter) vote(block Block) VoteValue {
	if v.Decide != nil {
		return v.Decide(block)
	}
	return defaultVote(block)
}

// defaultVote approves any structurally well-formed block
func defaultVote(block Block) VoteValue {
	if block.Transactions == nil {
		return VoteReject
	}
	if block.PreviousHash == "" {
		return VoteReject
	}
	return VoteApprove
}

// ValidateBlockStructure is the standard pre-validator passed to
// RequestConsensus: it rejects candidates missing the fields every mined
// block must carry.
func ValidateBlockStructure(block Block) (bool, string) {
	if block.Hash == "" {
		return false, "block hash cannot be empty"
	}
	if block.PreviousHash == "" {
		return false, "block previous_hash cannot be empty"
	}
	if block.Transactions == nil {
		return false, "block transactions must be a sequence"
	}
	if block.Timestamp <= 0 {
		return false, "block timestamp must be set"
	}
	return true, "block structure is valid"
}
