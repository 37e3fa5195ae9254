package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"gopkg.in/yaml.v3"

	"magnate/internal/econ"
)

// Querier is the slice of pgxpool.Pool the store needs. pgxmock satisfies
// it too, which is what the tests run against.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres implements econ.Store on raw SQL. Every money-moving statement
// is a single conditional update so concurrent job runs cannot lose or
// duplicate a delta.
type Postgres struct {
	db  Querier
	log *slog.Logger

	cfgMu      sync.Mutex
	cfgCache   *econ.SectorConfig
	cfgVersion int64
}

var _ econ.Store = (*Postgres)(nil)

func New(db Querier, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{db: db, log: logger}
}

func (p *Postgres) FindCorporationByID(ctx context.Context, id int64) (econ.Corporation, error) {
	var (
		c      econ.Corporation
		sector string
	)
	err := p.db.QueryRow(ctx, `
		SELECT id, name, sector, focus, capital_micros, outstanding_shares, share_price_micros
		FROM econ.corporations
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &sector, &c.Focus, &c.CapitalMicros, &c.OutstandingShares, &c.SharePriceMicros)
	if err == pgx.ErrNoRows {
		return econ.Corporation{}, econ.ErrCorporationNotFound
	}
	if err != nil {
		return econ.Corporation{}, err
	}
	c.Sector = econ.SectorCategory(sector)
	return c, nil
}

func (p *Postgres) FindAllCorporations(ctx context.Context) ([]econ.Corporation, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id, name, sector, focus, capital_micros, outstanding_shares, share_price_micros
		FROM econ.corporations
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []econ.Corporation
	for rows.Next() {
		var (
			c      econ.Corporation
			sector string
		)
		if err := rows.Scan(&c.ID, &c.Name, &sector, &c.Focus,
			&c.CapitalMicros, &c.OutstandingShares, &c.SharePriceMicros); err != nil {
			return nil, err
		}
		c.Sector = econ.SectorCategory(sector)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) AddCapital(ctx context.Context, id int64, deltaMicros int64) (int64, error) {
	var capital int64
	err := p.db.QueryRow(ctx, `
		UPDATE econ.corporations
		SET capital_micros = GREATEST(capital_micros + $2, 0)
		WHERE id = $1
		RETURNING capital_micros
	`, id, deltaMicros).Scan(&capital)
	if err == pgx.ErrNoRows {
		return 0, econ.ErrCorporationNotFound
	}
	if err != nil {
		return 0, err
	}
	return capital, nil
}

func (p *Postgres) DebitCapital(ctx context.Context, id int64, amountMicros int64) (bool, error) {
	tag, err := p.db.Exec(ctx, `
		UPDATE econ.corporations
		SET capital_micros = capital_micros - $2
		WHERE id = $1 AND capital_micros >= $2
	`, id, amountMicros)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (p *Postgres) UpdateSharePrice(ctx context.Context, id int64, priceMicros int64) error {
	tag, err := p.db.Exec(ctx, `
		UPDATE econ.corporations
		SET share_price_micros = $2
		WHERE id = $1
	`, id, priceMicros)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return econ.ErrCorporationNotFound
	}
	return nil
}

func (p *Postgres) CountUnits(ctx context.Context) (econ.UnitCounts, error) {
	rows, err := p.db.Query(ctx, `
		SELECT category, subtype, SUM(count)::bigint
		FROM econ.units
		GROUP BY category, subtype
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUnitCounts(rows)
}

func (p *Postgres) CountUnitsByCorporation(ctx context.Context, corporationID int64) (econ.UnitCounts, error) {
	rows, err := p.db.Query(ctx, `
		SELECT category, subtype, SUM(count)::bigint
		FROM econ.units
		WHERE corporation_id = $1
		GROUP BY category, subtype
	`, corporationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUnitCounts(rows)
}

func scanUnitCounts(rows pgx.Rows) (econ.UnitCounts, error) {
	counts := econ.UnitCounts{}
	for rows.Next() {
		var (
			category string
			subtype  string
			n        int64
		)
		if err := rows.Scan(&category, &subtype, &n); err != nil {
			return nil, err
		}
		cat, err := econ.ParseSectorCategory(category)
		if err != nil {
			return nil, err
		}
		counts.Add(cat, subtype, n)
	}
	return counts, rows.Err()
}

func (p *Postgres) FindAllPlayers(ctx context.Context) ([]econ.Player, error) {
	rows, err := p.db.Query(ctx, `
		SELECT user_id, username, cash_micros, action_points, COALESCE(ceo_corporation_id, 0)
		FROM econ.players
		ORDER BY user_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []econ.Player
	for rows.Next() {
		var pl econ.Player
		if err := rows.Scan(&pl.UserID, &pl.Username, &pl.CashMicros,
			&pl.ActionPoints, &pl.CEOCorporationID); err != nil {
			return nil, err
		}
		out = append(out, pl)
	}
	return out, rows.Err()
}

func (p *Postgres) IncrementActions(ctx context.Context, userID string, amount int64) error {
	tag, err := p.db.Exec(ctx, `
		UPDATE econ.players
		SET action_points = action_points + $2
		WHERE user_id = $1
	`, userID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return econ.ErrPlayerNotFound
	}
	return nil
}

func (p *Postgres) AddCash(ctx context.Context, userID string, deltaMicros int64) (int64, error) {
	var cash int64
	err := p.db.QueryRow(ctx, `
		UPDATE econ.players
		SET cash_micros = GREATEST(cash_micros + $2, 0)
		WHERE user_id = $1
		RETURNING cash_micros
	`, userID, deltaMicros).Scan(&cash)
	if err == pgx.ErrNoRows {
		return 0, econ.ErrPlayerNotFound
	}
	if err != nil {
		return 0, err
	}
	return cash, nil
}

func (p *Postgres) GetSalaryRecord(ctx context.Context, ceoUserID string) (econ.SalaryRecord, bool, error) {
	rec := econ.SalaryRecord{CEOUserID: ceoUserID}
	err := p.db.QueryRow(ctx, `
		SELECT last_paid_at
		FROM econ.salary_records
		WHERE ceo_user_id = $1
	`, ceoUserID).Scan(&rec.LastPaidAt)
	if err == pgx.ErrNoRows {
		return econ.SalaryRecord{}, false, nil
	}
	if err != nil {
		return econ.SalaryRecord{}, false, err
	}
	return rec, true, nil
}

// TrySetSalaryPaid claims the payment slot for one cooldown window. The
// insert-or-conditional-update races safely: of any number of concurrent
// callers, exactly one gets a row back.
func (p *Postgres) TrySetSalaryPaid(ctx context.Context, ceoUserID string, now time.Time, cooldown time.Duration) (bool, error) {
	cutoff := now.Add(-cooldown)
	tag, err := p.db.Exec(ctx, `
		INSERT INTO econ.salary_records (ceo_user_id, last_paid_at)
		VALUES ($1, $2)
		ON CONFLICT (ceo_user_id) DO UPDATE
		SET last_paid_at = EXCLUDED.last_paid_at
		WHERE econ.salary_records.last_paid_at <= $3
	`, ceoUserID, now, cutoff)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (p *Postgres) FindPendingProposalsExpiringBefore(ctx context.Context, t time.Time) ([]econ.Proposal, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id, corporation_id, kind, amount_micros, votes_for, votes_against, status, expires_at
		FROM econ.proposals
		WHERE status = 'pending' AND expires_at < $1
		ORDER BY expires_at
	`, t)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []econ.Proposal
	for rows.Next() {
		var (
			pr     econ.Proposal
			status string
		)
		if err := rows.Scan(&pr.ID, &pr.CorporationID, &pr.Kind, &pr.AmountMicros,
			&pr.VotesFor, &pr.VotesAgainst, &status, &pr.ExpiresAt); err != nil {
			return nil, err
		}
		pr.Status = econ.ProposalStatus(status)
		out = append(out, pr)
	}
	return out, rows.Err()
}

func (p *Postgres) TransitionProposal(ctx context.Context, id int64, expected, next econ.ProposalStatus) error {
	tag, err := p.db.Exec(ctx, `
		UPDATE econ.proposals
		SET status = $3, resolved_at = now()
		WHERE id = $1 AND status = $2
	`, id, string(expected), string(next))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: proposal %d not in status %q", econ.ErrConflict, id, expected)
	}
	return nil
}

func (p *Postgres) RecordPriceSnapshot(ctx context.Context, snap econ.PriceSnapshot) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO econ.price_history (kind, name, bucket, price_micros, scarcity_factor)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (kind, name, bucket) DO UPDATE
		SET price_micros = EXCLUDED.price_micros,
		    scarcity_factor = EXCLUDED.scarcity_factor
	`, string(snap.Kind), snap.Name, snap.Bucket, snap.PriceMicros, snap.ScarcityFactor)
	return err
}

func (p *Postgres) ListLatestPrices(ctx context.Context) ([]econ.PriceSnapshot, error) {
	rows, err := p.db.Query(ctx, `
		SELECT DISTINCT ON (kind, name) kind, name, bucket, price_micros, scarcity_factor
		FROM econ.price_history
		ORDER BY kind, name, bucket DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []econ.PriceSnapshot
	for rows.Next() {
		var (
			s    econ.PriceSnapshot
			kind string
		)
		if err := rows.Scan(&kind, &s.Name, &s.Bucket, &s.PriceMicros, &s.ScarcityFactor); err != nil {
			return nil, err
		}
		s.Kind = econ.PriceKind(kind)
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetSectorConfig loads the newest config row, parsing the YAML body only
// when the version moved past the cached one. No row at all means nobody
// has edited the config yet and the compiled-in default applies.
func (p *Postgres) GetSectorConfig(ctx context.Context) (*econ.SectorConfig, error) {
	var (
		version int64
		body    []byte
	)
	err := p.db.QueryRow(ctx, `
		SELECT version, body
		FROM econ.sector_configs
		ORDER BY version DESC
		LIMIT 1
	`).Scan(&version, &body)
	if err == pgx.ErrNoRows {
		return econ.DefaultSectorConfig(), nil
	}
	if err != nil {
		return nil, err
	}

	p.cfgMu.Lock()
	defer p.cfgMu.Unlock()
	if p.cfgCache != nil && p.cfgVersion == version {
		return p.cfgCache, nil
	}
	cfg, err := econ.ParseSectorConfig(body)
	if err != nil {
		return nil, fmt.Errorf("sector config version %d: %w", version, err)
	}
	p.cfgCache = cfg
	p.cfgVersion = version
	return cfg, nil
}

func (p *Postgres) InvalidateSectorConfig() {
	p.cfgMu.Lock()
	p.cfgCache = nil
	p.cfgVersion = 0
	p.cfgMu.Unlock()
}

// SaveSectorConfig validates and stores a new config version. The version
// must move strictly forward; stale writes fail with ErrConflict.
func (p *Postgres) SaveSectorConfig(ctx context.Context, body []byte) (*econ.SectorConfig, error) {
	cfg, err := econ.ParseSectorConfig(body)
	if err != nil {
		return nil, err
	}
	tag, err := p.db.Exec(ctx, `
		INSERT INTO econ.sector_configs (version, body)
		SELECT $1, $2
		WHERE NOT EXISTS (
			SELECT 1 FROM econ.sector_configs WHERE version >= $1
		)
	`, cfg.Version, body)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: sector config version %d is not newer than the stored one",
			econ.ErrConflict, cfg.Version)
	}
	p.InvalidateSectorConfig()
	return cfg, nil
}

// SeedDefaultSectorConfig writes the compiled-in config as the first
// version when no config row exists yet. Safe to run on every startup.
func (p *Postgres) SeedDefaultSectorConfig(ctx context.Context) error {
	body, err := yaml.Marshal(econ.DefaultSectorConfig())
	if err != nil {
		return err
	}
	tag, err := p.db.Exec(ctx, `
		INSERT INTO econ.sector_configs (version, body)
		SELECT 1, $1
		WHERE NOT EXISTS (SELECT 1 FROM econ.sector_configs)
	`, body)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		p.log.Info("seeded default sector config")
	}
	return nil
}

func (p *Postgres) JobsEnabled(ctx context.Context) (bool, error) {
	var value string
	err := p.db.QueryRow(ctx, `
		SELECT value
		FROM econ.runtime_settings
		WHERE key = 'jobs_enabled'
	`).Scan(&value)
	if err == pgx.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return value == "true", nil
}

func (p *Postgres) SetJobsEnabled(ctx context.Context, enabled bool) error {
	value := "false"
	if enabled {
		value = "true"
	}
	_, err := p.db.Exec(ctx, `
		INSERT INTO econ.runtime_settings (key, value)
		VALUES ('jobs_enabled', $1)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, value)
	return err
}
