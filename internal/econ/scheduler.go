package econ

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Params are the per-deployment tunables of the turn engine. They are
// plain values so they can come straight from configuration without code
// changes.
type Params struct {
	// ActionAllotment is the number of action points granted to every
	// player each actions-increment period.
	ActionAllotment int64
	// SalaryBaseMicros and SalaryCapitalBps shape the CEO stipend:
	// base + capital * bps / 10_000.
	SalaryBaseMicros int64
	SalaryCapitalBps int64
	SalaryCooldown   time.Duration
	// PriceBucket sizes the period buckets of the price-history job.
	PriceBucket time.Duration
	// SharePriceFloorMicros overrides MinSharePriceMicros when > 0.
	SharePriceFloorMicros int64
}

func (p Params) sharePriceFloor() int64 {
	if p.SharePriceFloorMicros > 0 {
		return p.SharePriceFloorMicros
	}
	return MinSharePriceMicros
}

// Scheduler runs the periodic economy jobs. It owns no timer: an external
// collaborator (worker, admin trigger) invokes each job. Jobs never assume
// exclusive execution; every cross-entity effect goes through the store's
// atomic operations, so overlapping invocations stay safe.
type Scheduler struct {
	store  Store
	params Params
	log    *slog.Logger
	now    func() time.Time
}

func NewScheduler(store Store, params Params, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:  store,
		params: params,
		log:    logger,
		now:    time.Now,
	}
}

type ActionsIncrementResult struct {
	RunID         string    `json:"run_id"`
	UsersUpdated  int       `json:"users_updated"`
	CEOs          int       `json:"ceos"`
	Failed        int       `json:"failed"`
	AllotmentEach int64     `json:"allotment_each"`
	RanAt         time.Time `json:"ran_at"`
}

type MarketRevenueResult struct {
	RunID             string    `json:"run_id"`
	Corporations      int       `json:"corporations"`
	Failed            int       `json:"failed"`
	TotalProfitMicros int64     `json:"total_profit_micros"`
	RanAt             time.Time `json:"ran_at"`
}

type SalaryRunResult struct {
	RunID               string    `json:"run_id"`
	Paid                int       `json:"paid"`
	TotalPaidMicros     int64     `json:"total_paid_micros"`
	Zeroed              int       `json:"zeroed"`
	SkippedRecentlyPaid int       `json:"skipped_recently_paid"`
	Failed              int       `json:"failed"`
	RanAt               time.Time `json:"ran_at"`
}

type PriceHistoryResult struct {
	RunID    string    `json:"run_id"`
	Bucket   time.Time `json:"bucket"`
	Recorded int       `json:"recorded"`
	RanAt    time.Time `json:"ran_at"`
}

type ProposalRunResult struct {
	RunID    string    `json:"run_id"`
	Approved int       `json:"approved"`
	Rejected int       `json:"rejected"`
	Expired  int       `json:"expired"`
	Skipped  int       `json:"skipped"`
	RanAt    time.Time `json:"ran_at"`
}

type TurnResult struct {
	RunID    string                  `json:"run_id"`
	Actions  *ActionsIncrementResult `json:"actions,omitempty"`
	Market   *MarketRevenueResult    `json:"market,omitempty"`
	Salaries *SalaryRunResult        `json:"salaries,omitempty"`
	RanAt    time.Time               `json:"ran_at"`
}

// ensureEnabled reads the runtime flag fresh; it is never cached across
// invocations.
func (s *Scheduler) ensureEnabled(ctx context.Context) error {
	enabled, err := s.store.JobsEnabled(ctx)
	if err != nil {
		return err
	}
	if !enabled {
		return ErrJobsDisabled
	}
	return nil
}

// TriggerActionsIncrement grants the per-period action allotment to every
// player. Re-invocation within a period re-applies the grant; dedup across
// overlapping triggers belongs to the external scheduler.
func (s *Scheduler) TriggerActionsIncrement(ctx context.Context) (ActionsIncrementResult, error) {
	out := ActionsIncrementResult{RunID: uuid.NewString(), AllotmentEach: s.params.ActionAllotment, RanAt: s.now()}
	if err := s.ensureEnabled(ctx); err != nil {
		return out, err
	}
	players, err := s.store.FindAllPlayers(ctx)
	if err != nil {
		return out, err
	}
	for _, p := range players {
		if err := s.store.IncrementActions(ctx, p.UserID, s.params.ActionAllotment); err != nil {
			s.log.Error("actions increment failed", "run_id", out.RunID, "user_id", p.UserID, "err", err)
			out.Failed++
			continue
		}
		out.UsersUpdated++
		if p.IsCEO() {
			out.CEOs++
		}
	}
	s.log.Info("actions increment complete", "run_id", out.RunID, "users", out.UsersUpdated, "ceos", out.CEOs)
	return out, nil
}

// TriggerMarketRevenue aggregates global supply/demand, prices every
// commodity and product, settles each corporation's profit as an atomic
// capital delta, and revalues its stock. One corporation failing does not
// abort the pass.
func (s *Scheduler) TriggerMarketRevenue(ctx context.Context) (MarketRevenueResult, error) {
	out := MarketRevenueResult{RunID: uuid.NewString(), RanAt: s.now()}
	if err := s.ensureEnabled(ctx); err != nil {
		return out, err
	}
	cfg, err := s.store.GetSectorConfig(ctx)
	if err != nil {
		return out, err
	}
	quotes, err := s.quoteAll(ctx, cfg)
	if err != nil {
		return out, err
	}

	corps, err := s.store.FindAllCorporations(ctx)
	if err != nil {
		return out, err
	}
	for _, corp := range corps {
		counts, err := s.store.CountUnitsByCorporation(ctx, corp.ID)
		if err != nil {
			s.log.Error("unit count failed", "run_id", out.RunID, "corporation_id", corp.ID, "err", err)
			out.Failed++
			continue
		}
		profitMicros := CredsToMicros(corporationProfit(cfg, counts, quotes))
		newCapital, err := s.store.AddCapital(ctx, corp.ID, profitMicros)
		if err != nil {
			s.log.Error("capital update failed", "run_id", out.RunID, "corporation_id", corp.ID, "err", err)
			out.Failed++
			continue
		}
		if _, err := s.UpdateStockPrice(ctx, corp.ID, profitMicros); err != nil {
			s.log.Error("revaluation failed", "run_id", out.RunID, "corporation_id", corp.ID, "err", err)
			out.Failed++
			continue
		}
		out.Corporations++
		out.TotalProfitMicros += profitMicros
		s.log.Debug("corporation settled", "run_id", out.RunID, "corporation_id", corp.ID,
			"profit_micros", profitMicros, "capital_micros", newCapital)
	}
	s.log.Info("market revenue complete", "run_id", out.RunID,
		"corporations", out.Corporations, "failed", out.Failed, "total_profit_micros", out.TotalProfitMicros)
	return out, nil
}

// TriggerPriceHistoryRecording snapshots current prices into the period
// bucket containing now. Recording the same bucket twice overwrites.
func (s *Scheduler) TriggerPriceHistoryRecording(ctx context.Context) (PriceHistoryResult, error) {
	out := PriceHistoryResult{RunID: uuid.NewString(), RanAt: s.now()}
	if err := s.ensureEnabled(ctx); err != nil {
		return out, err
	}
	cfg, err := s.store.GetSectorConfig(ctx)
	if err != nil {
		return out, err
	}
	quotes, err := s.quoteAll(ctx, cfg)
	if err != nil {
		return out, err
	}
	out.Bucket = out.RanAt.UTC().Truncate(s.params.PriceBucket)
	for _, name := range cfg.ResourceNames() {
		q := quotes[name]
		if err := s.store.RecordPriceSnapshot(ctx, PriceSnapshot{
			Kind: PriceCommodity, Name: name, Bucket: out.Bucket,
			PriceMicros: CredsToMicros(q.Price), ScarcityFactor: q.ScarcityFactor,
		}); err != nil {
			return out, err
		}
		out.Recorded++
	}
	for _, name := range cfg.ProductNames() {
		q := quotes[name]
		if err := s.store.RecordPriceSnapshot(ctx, PriceSnapshot{
			Kind: PriceProduct, Name: name, Bucket: out.Bucket,
			PriceMicros: CredsToMicros(q.Price), ScarcityFactor: q.ScarcityFactor,
		}); err != nil {
			return out, err
		}
		out.Recorded++
	}
	s.log.Info("price history recorded", "run_id", out.RunID, "bucket", out.Bucket, "recorded", out.Recorded)
	return out, nil
}

// RunTurn executes actions increment, market revenue, and salaries in
// order. A failing step aborts the rest; completed steps are not rolled
// back, and the partial result says how far the turn got.
func (s *Scheduler) RunTurn(ctx context.Context) (TurnResult, error) {
	out := TurnResult{RunID: uuid.NewString(), RanAt: s.now()}
	actions, err := s.TriggerActionsIncrement(ctx)
	if err != nil {
		return out, err
	}
	out.Actions = &actions
	market, err := s.TriggerMarketRevenue(ctx)
	if err != nil {
		return out, err
	}
	out.Market = &market
	salaries, err := s.TriggerCeoSalaries(ctx)
	if err != nil {
		return out, err
	}
	out.Salaries = &salaries
	return out, nil
}

// quoteAll prices every configured resource and product off the global
// unit census. Resource and product names are disjoint (enforced by
// SectorConfig.Validate), so a single quote table is safe.
func (s *Scheduler) quoteAll(ctx context.Context, cfg *SectorConfig) (map[string]PriceQuote, error) {
	counts, err := s.store.CountUnits(ctx)
	if err != nil {
		return nil, err
	}
	resources := cfg.ResourceNames()
	products := cfg.ProductNames()
	csd := ComputeCommoditySupplyDemand(cfg, counts, resources)
	psd := ComputeProductSupplyDemand(cfg, counts, products)

	quotes := make(map[string]PriceQuote, len(resources)+len(products))
	for _, name := range resources {
		q, err := CalculateCommodityPrice(cfg, name, csd.Supply[name], csd.Demand[name])
		if err != nil {
			return nil, err
		}
		quotes[name] = q
	}
	for _, name := range products {
		q, err := CalculateProductPrice(cfg, name, psd.Supply[name], psd.Demand[name])
		if err != nil {
			return nil, err
		}
		quotes[name] = q
	}
	return quotes, nil
}

// corporationProfit values one corporation's turn in creds: flat base
// revenue plus outputs sold at current prices minus inputs bought at
// current prices.
func corporationProfit(cfg *SectorConfig, counts UnitCounts, quotes map[string]PriceQuote) float64 {
	var profit float64
	for _, subtypes := range counts {
		for subtype, count := range subtypes {
			sc, ok := cfg.Subtypes[subtype]
			if !ok {
				continue
			}
			n := float64(count)
			profit += sc.BaseRevenue * n
			for name, rate := range sc.Output {
				if q, ok := quotes[name]; ok {
					profit += q.Price * rate * n
				}
			}
			for name, rate := range sc.Consumption {
				if q, ok := quotes[name]; ok {
					profit -= q.Price * rate * n
				}
			}
		}
	}
	return profit
}
