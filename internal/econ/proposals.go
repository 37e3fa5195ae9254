package econ

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ResolveExpiredProposals settles every pending proposal whose deadline
// has passed. Settlement is at-most-once: the status transition is a
// compare-and-set from pending, and the capital effect of an approval is
// applied only by the invocation that won the transition. A lost race is
// counted as skipped, never retried as a second settlement.
//
// Outcomes: strict vote majority approves and applies the proposal's
// capital delta; a majority against, or a tie with votes cast, rejects;
// no votes at all expires the proposal with no effect.
func (s *Scheduler) ResolveExpiredProposals(ctx context.Context) (ProposalRunResult, error) {
	out := ProposalRunResult{RunID: uuid.NewString(), RanAt: s.now()}
	if err := s.ensureEnabled(ctx); err != nil {
		return out, err
	}
	pending, err := s.store.FindPendingProposalsExpiringBefore(ctx, out.RanAt)
	if err != nil {
		return out, err
	}
	for _, prop := range pending {
		next := proposalOutcome(prop)
		if err := s.store.TransitionProposal(ctx, prop.ID, ProposalPending, next); err != nil {
			if errors.Is(err, ErrConflict) {
				out.Skipped++
				continue
			}
			return out, err
		}
		switch next {
		case ProposalApproved:
			out.Approved++
			if prop.AmountMicros != 0 {
				if _, err := s.store.AddCapital(ctx, prop.CorporationID, prop.AmountMicros); err != nil {
					s.log.Error("approved proposal capital delta failed", "run_id", out.RunID,
						"proposal_id", prop.ID, "corporation_id", prop.CorporationID, "err", err)
					continue
				}
				if _, err := s.UpdateStockPrice(ctx, prop.CorporationID, prop.AmountMicros); err != nil {
					s.log.Error("approved proposal revaluation failed", "run_id", out.RunID,
						"proposal_id", prop.ID, "corporation_id", prop.CorporationID, "err", err)
				}
			}
		case ProposalRejected:
			out.Rejected++
		case ProposalExpired:
			out.Expired++
		}
	}
	s.log.Info("proposal resolution complete", "run_id", out.RunID, "approved", out.Approved,
		"rejected", out.Rejected, "expired", out.Expired, "skipped", out.Skipped)
	return out, nil
}

func proposalOutcome(p Proposal) ProposalStatus {
	switch {
	case p.VotesFor > p.VotesAgainst:
		return ProposalApproved
	case p.VotesFor == 0 && p.VotesAgainst == 0:
		return ProposalExpired
	default:
		return ProposalRejected
	}
}
