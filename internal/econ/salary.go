package econ

import (
	"context"

	"github.com/google/uuid"
)

// TriggerCeoSalaries pays every CEO at most once per cooldown window.
// The claim on the last-paid timestamp happens before any money moves, so
// two overlapping runs can never double-pay: exactly one wins the claim
// and the other counts the CEO as recently paid.
//
// The stipend is base + capital * bps / 10_000, debited from corporate
// capital all-or-nothing. A corporation that cannot cover it pays nothing
// and the payment is recorded as zeroed; the claim still stands, so the
// CEO waits out the full cooldown either way.
func (s *Scheduler) TriggerCeoSalaries(ctx context.Context) (SalaryRunResult, error) {
	out := SalaryRunResult{RunID: uuid.NewString(), RanAt: s.now()}
	if err := s.ensureEnabled(ctx); err != nil {
		return out, err
	}
	players, err := s.store.FindAllPlayers(ctx)
	if err != nil {
		return out, err
	}
	for _, p := range players {
		if !p.IsCEO() {
			continue
		}
		claimed, err := s.store.TrySetSalaryPaid(ctx, p.UserID, out.RanAt, s.params.SalaryCooldown)
		if err != nil {
			s.log.Error("salary claim failed", "run_id", out.RunID, "user_id", p.UserID, "err", err)
			out.Failed++
			continue
		}
		if !claimed {
			out.SkippedRecentlyPaid++
			continue
		}
		corp, err := s.store.FindCorporationByID(ctx, p.CEOCorporationID)
		if err != nil {
			s.log.Error("salary corporation lookup failed", "run_id", out.RunID,
				"user_id", p.UserID, "corporation_id", p.CEOCorporationID, "err", err)
			out.Failed++
			continue
		}
		stipend := s.params.SalaryBaseMicros + corp.CapitalMicros/10_000*s.params.SalaryCapitalBps
		covered, err := s.store.DebitCapital(ctx, corp.ID, stipend)
		if err != nil {
			s.log.Error("salary debit failed", "run_id", out.RunID,
				"user_id", p.UserID, "corporation_id", corp.ID, "err", err)
			out.Failed++
			continue
		}
		if !covered {
			out.Zeroed++
			s.log.Warn("salary zeroed, capital insufficient", "run_id", out.RunID,
				"user_id", p.UserID, "corporation_id", corp.ID, "stipend_micros", stipend)
			continue
		}
		if _, err := s.store.AddCash(ctx, p.UserID, stipend); err != nil {
			s.log.Error("salary credit failed", "run_id", out.RunID, "user_id", p.UserID, "err", err)
			out.Failed++
			continue
		}
		out.Paid++
		out.TotalPaidMicros += stipend
	}
	s.log.Info("ceo salaries complete", "run_id", out.RunID, "paid", out.Paid,
		"zeroed", out.Zeroed, "skipped", out.SkippedRecentlyPaid, "failed", out.Failed)
	return out, nil
}
