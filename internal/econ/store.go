package econ

import (
	"context"
	"time"
)

// Store is the persistence contract the turn engine runs against. Every
// money-moving operation is atomic at the store: deltas are applied in a
// single conditional update, never read-modify-write by the caller, so
// overlapping job invocations cannot lose updates.
type Store interface {
	// Corporations.
	FindCorporationByID(ctx context.Context, id int64) (Corporation, error)
	FindAllCorporations(ctx context.Context) ([]Corporation, error)
	// AddCapital applies a capital delta atomically, clamping the stored
	// value at zero, and returns the new capital.
	AddCapital(ctx context.Context, id int64, deltaMicros int64) (int64, error)
	// DebitCapital removes the full amount if and only if capital covers
	// it. Returns false (and debits nothing) otherwise.
	DebitCapital(ctx context.Context, id int64, amountMicros int64) (bool, error)
	UpdateSharePrice(ctx context.Context, id int64, priceMicros int64) error

	// Units.
	CountUnits(ctx context.Context) (UnitCounts, error)
	CountUnitsByCorporation(ctx context.Context, corporationID int64) (UnitCounts, error)

	// Players.
	FindAllPlayers(ctx context.Context) ([]Player, error)
	IncrementActions(ctx context.Context, userID string, amount int64) error
	// AddCash applies a cash delta atomically, clamped at zero, and
	// returns the new balance.
	AddCash(ctx context.Context, userID string, deltaMicros int64) (int64, error)

	// Salaries. TrySetSalaryPaid is a compare-and-set on the CEO's
	// last-paid timestamp: it returns true and marks the salary paid only
	// when no payment happened within the cooldown window. GetSalaryRecord
	// is the read side; the second return is false when the CEO has never
	// been paid.
	GetSalaryRecord(ctx context.Context, ceoUserID string) (SalaryRecord, bool, error)
	TrySetSalaryPaid(ctx context.Context, ceoUserID string, now time.Time, cooldown time.Duration) (bool, error)

	// Proposals. TransitionProposal succeeds only when the proposal is
	// currently in the expected status; a lost race returns ErrConflict.
	FindPendingProposalsExpiringBefore(ctx context.Context, t time.Time) ([]Proposal, error)
	TransitionProposal(ctx context.Context, id int64, expected, next ProposalStatus) error

	// Price history. RecordPriceSnapshot upserts on (kind, name, bucket),
	// so re-recording a bucket overwrites instead of duplicating.
	RecordPriceSnapshot(ctx context.Context, snap PriceSnapshot) error
	ListLatestPrices(ctx context.Context) ([]PriceSnapshot, error)

	// Configuration and runtime settings. GetSectorConfig may cache by
	// version; InvalidateSectorConfig drops any cache after an admin edit.
	// JobsEnabled is read fresh at the start of every job invocation.
	GetSectorConfig(ctx context.Context) (*SectorConfig, error)
	InvalidateSectorConfig()
	JobsEnabled(ctx context.Context) (bool, error)
	SetJobsEnabled(ctx context.Context, enabled bool) error
}
