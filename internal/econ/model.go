package econ

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	MicrosPerCred = int64(1_000_000)

	// MinSharePriceMicros is the hard floor for a corporation's share
	// price: 0.01 cred.
	MinSharePriceMicros = int64(10_000)
)

var (
	ErrJobsDisabled        = errors.New("turn jobs are disabled")
	ErrConflict            = errors.New("conditional update rejected")
	ErrConfigMissing       = errors.New("sector config entry missing")
	ErrCorporationNotFound = errors.New("corporation not found")
	ErrPlayerNotFound      = errors.New("player not found")
	ErrInvalidInput        = errors.New("invalid input")
)

func CredsToMicros(v float64) int64 {
	return int64(math.Round(v * float64(MicrosPerCred)))
}

func MicrosToCreds(v int64) float64 {
	return float64(v) / float64(MicrosPerCred)
}

// SectorCategory classifies a unit's role in the economy. Only these four
// categories exist; subtypes within them are defined by SectorConfig.
type SectorCategory string

const (
	SectorProduction SectorCategory = "production"
	SectorRetail     SectorCategory = "retail"
	SectorService    SectorCategory = "service"
	SectorExtraction SectorCategory = "extraction"
)

func ParseSectorCategory(s string) (SectorCategory, error) {
	switch SectorCategory(strings.ToLower(strings.TrimSpace(s))) {
	case SectorProduction:
		return SectorProduction, nil
	case SectorRetail:
		return SectorRetail, nil
	case SectorService:
		return SectorService, nil
	case SectorExtraction:
		return SectorExtraction, nil
	}
	return "", fmt.Errorf("%w: unknown sector category %q", ErrInvalidInput, s)
}

// UnitCounts maps category -> subtype -> number of deployed units.
type UnitCounts map[SectorCategory]map[string]int64

func (u UnitCounts) Add(category SectorCategory, subtype string, n int64) {
	if u[category] == nil {
		u[category] = make(map[string]int64)
	}
	u[category][subtype] += n
}

type Corporation struct {
	ID                int64          `json:"id"`
	Name              string         `json:"name"`
	Sector            SectorCategory `json:"sector"`
	Focus             string         `json:"focus"`
	CapitalMicros     int64          `json:"capital_micros"`
	OutstandingShares int64          `json:"outstanding_shares"`
	SharePriceMicros  int64          `json:"share_price_micros"`
}

type Player struct {
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	CashMicros   int64  `json:"cash_micros"`
	ActionPoints int64  `json:"action_points"`
	// CEOCorporationID is 0 when the player is not a CEO.
	CEOCorporationID int64 `json:"ceo_corporation_id"`
}

func (p Player) IsCEO() bool {
	return p.CEOCorporationID != 0
}

// SalaryRecord tracks when a CEO was last paid; the cooldown gate runs
// against LastPaidAt.
type SalaryRecord struct {
	CEOUserID  string    `json:"ceo_user_id"`
	LastPaidAt time.Time `json:"last_paid_at"`
}

type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalApproved ProposalStatus = "approved"
	ProposalRejected ProposalStatus = "rejected"
	ProposalExpired  ProposalStatus = "expired"
)

// Terminal reports whether a proposal can never change status again.
func (s ProposalStatus) Terminal() bool {
	return s == ProposalApproved || s == ProposalRejected || s == ProposalExpired
}

type Proposal struct {
	ID            int64          `json:"id"`
	CorporationID int64          `json:"corporation_id"`
	Kind          string         `json:"kind"`
	AmountMicros  int64          `json:"amount_micros"`
	VotesFor      int64          `json:"votes_for"`
	VotesAgainst  int64          `json:"votes_against"`
	Status        ProposalStatus `json:"status"`
	ExpiresAt     time.Time      `json:"expires_at"`
}

type PriceKind string

const (
	PriceCommodity PriceKind = "commodity"
	PriceProduct   PriceKind = "product"
)

type PriceSnapshot struct {
	Kind           PriceKind `json:"kind"`
	Name           string    `json:"name"`
	Bucket         time.Time `json:"bucket"`
	PriceMicros    int64     `json:"price_micros"`
	ScarcityFactor float64   `json:"scarcity_factor"`
}
