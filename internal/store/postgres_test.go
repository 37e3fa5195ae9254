package store

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"

	"magnate/internal/econ"
)

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Postgres) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock, New(mock, nil)
}

func expectMet(t *testing.T, mock pgxmock.PgxPoolIface) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindCorporationByID(t *testing.T) {
	t.Parallel()
	mock, st := newMock(t)

	rows := pgxmock.NewRows([]string{"id", "name", "sector", "focus",
		"capital_micros", "outstanding_shares", "share_price_micros"}).
		AddRow(int64(7), "Helios Energy", "production", "Energy",
			int64(5_000_000_000), int64(1000), int64(4_200_000))
	mock.ExpectQuery(`SELECT id, name, sector, focus, capital_micros, outstanding_shares, share_price_micros`).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	c, err := st.FindCorporationByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("FindCorporationByID: %v", err)
	}
	if c.Name != "Helios Energy" || c.Sector != econ.SectorProduction {
		t.Fatalf("corporation = %+v", c)
	}
	expectMet(t, mock)
}

func TestFindCorporationByIDNotFound(t *testing.T) {
	t.Parallel()
	mock, st := newMock(t)

	mock.ExpectQuery(`SELECT id, name, sector, focus`).
		WithArgs(int64(99)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "sector", "focus",
			"capital_micros", "outstanding_shares", "share_price_micros"}))

	_, err := st.FindCorporationByID(context.Background(), 99)
	if !errors.Is(err, econ.ErrCorporationNotFound) {
		t.Fatalf("err = %v, want ErrCorporationNotFound", err)
	}
	expectMet(t, mock)
}

func TestAddCapitalClamped(t *testing.T) {
	t.Parallel()
	mock, st := newMock(t)

	mock.ExpectQuery(`UPDATE econ\.corporations\s+SET capital_micros = GREATEST`).
		WithArgs(int64(3), int64(-10_000_000_000)).
		WillReturnRows(pgxmock.NewRows([]string{"capital_micros"}).AddRow(int64(0)))

	got, err := st.AddCapital(context.Background(), 3, -10_000_000_000)
	if err != nil {
		t.Fatalf("AddCapital: %v", err)
	}
	if got != 0 {
		t.Fatalf("capital = %d, want 0", got)
	}
	expectMet(t, mock)
}

func TestDebitCapital(t *testing.T) {
	t.Parallel()
	mock, st := newMock(t)

	mock.ExpectExec(`UPDATE econ\.corporations\s+SET capital_micros = capital_micros -`).
		WithArgs(int64(3), int64(500)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := st.DebitCapital(context.Background(), 3, 500)
	if err != nil {
		t.Fatalf("DebitCapital: %v", err)
	}
	if !ok {
		t.Fatal("expected debit to succeed")
	}

	// Insufficient capital matches no row and debits nothing.
	mock.ExpectExec(`UPDATE econ\.corporations\s+SET capital_micros = capital_micros -`).
		WithArgs(int64(3), int64(1_000_000_000)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	ok, err = st.DebitCapital(context.Background(), 3, 1_000_000_000)
	if err != nil {
		t.Fatalf("DebitCapital: %v", err)
	}
	if ok {
		t.Fatal("expected debit to be refused")
	}
	expectMet(t, mock)
}

func TestCountUnits(t *testing.T) {
	t.Parallel()
	mock, st := newMock(t)

	rows := pgxmock.NewRows([]string{"category", "subtype", "sum"}).
		AddRow("extraction", "Drilling", int64(12)).
		AddRow("retail", "Retail", int64(4))
	mock.ExpectQuery(`SELECT category, subtype, SUM`).WillReturnRows(rows)

	counts, err := st.CountUnits(context.Background())
	if err != nil {
		t.Fatalf("CountUnits: %v", err)
	}
	if got := counts[econ.SectorExtraction]["Drilling"]; got != 12 {
		t.Fatalf("Drilling count = %d, want 12", got)
	}
	if got := counts[econ.SectorRetail]["Retail"]; got != 4 {
		t.Fatalf("Retail count = %d, want 4", got)
	}
	expectMet(t, mock)
}

func TestTrySetSalaryPaid(t *testing.T) {
	t.Parallel()
	mock, st := newMock(t)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cooldown := time.Hour
	cutoff := now.Add(-cooldown)

	mock.ExpectExec(`INSERT INTO econ\.salary_records`).
		WithArgs("ceo-1", now, cutoff).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	claimed, err := st.TrySetSalaryPaid(context.Background(), "ceo-1", now, cooldown)
	if err != nil {
		t.Fatalf("TrySetSalaryPaid: %v", err)
	}
	if !claimed {
		t.Fatal("expected claim to succeed")
	}

	// Within the cooldown the conditional update matches nothing.
	mock.ExpectExec(`INSERT INTO econ\.salary_records`).
		WithArgs("ceo-1", now, cutoff).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	claimed, err = st.TrySetSalaryPaid(context.Background(), "ceo-1", now, cooldown)
	if err != nil {
		t.Fatalf("TrySetSalaryPaid: %v", err)
	}
	if claimed {
		t.Fatal("expected claim to be refused inside cooldown")
	}
	expectMet(t, mock)
}

func TestGetSalaryRecord(t *testing.T) {
	t.Parallel()
	mock, st := newMock(t)

	paidAt := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT last_paid_at\s+FROM econ\.salary_records`).
		WithArgs("ceo-1").
		WillReturnRows(pgxmock.NewRows([]string{"last_paid_at"}).AddRow(paidAt))

	rec, found, err := st.GetSalaryRecord(context.Background(), "ceo-1")
	if err != nil {
		t.Fatalf("GetSalaryRecord: %v", err)
	}
	if !found || !rec.LastPaidAt.Equal(paidAt) {
		t.Fatalf("record = %+v found = %v", rec, found)
	}

	mock.ExpectQuery(`SELECT last_paid_at\s+FROM econ\.salary_records`).
		WithArgs("never-paid").
		WillReturnRows(pgxmock.NewRows([]string{"last_paid_at"}))
	_, found, err = st.GetSalaryRecord(context.Background(), "never-paid")
	if err != nil {
		t.Fatalf("GetSalaryRecord: %v", err)
	}
	if found {
		t.Fatal("expected no record for an unpaid ceo")
	}
	expectMet(t, mock)
}

func TestTransitionProposalConflict(t *testing.T) {
	t.Parallel()
	mock, st := newMock(t)

	mock.ExpectExec(`UPDATE econ\.proposals`).
		WithArgs(int64(5), "pending", "approved").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := st.TransitionProposal(context.Background(), 5, econ.ProposalPending, econ.ProposalApproved)
	if !errors.Is(err, econ.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	expectMet(t, mock)
}

func TestRecordPriceSnapshot(t *testing.T) {
	t.Parallel()
	mock, st := newMock(t)

	bucket := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO econ\.price_history`).
		WithArgs("commodity", "Oil", bucket, int64(132_000_000), 1.1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := st.RecordPriceSnapshot(context.Background(), econ.PriceSnapshot{
		Kind: econ.PriceCommodity, Name: "Oil", Bucket: bucket,
		PriceMicros: 132_000_000, ScarcityFactor: 1.1,
	})
	if err != nil {
		t.Fatalf("RecordPriceSnapshot: %v", err)
	}
	expectMet(t, mock)
}

func TestGetSectorConfigDefaultWhenEmpty(t *testing.T) {
	t.Parallel()
	mock, st := newMock(t)

	mock.ExpectQuery(`SELECT version, body\s+FROM econ\.sector_configs`).
		WillReturnRows(pgxmock.NewRows([]string{"version", "body"}))

	cfg, err := st.GetSectorConfig(context.Background())
	if err != nil {
		t.Fatalf("GetSectorConfig: %v", err)
	}
	if got := cfg.ResourcePrices["Rare Earth"]; got != 9000 {
		t.Fatalf("Rare Earth base price = %v, want 9000", got)
	}
	expectMet(t, mock)
}

func TestGetSectorConfigCachesByVersion(t *testing.T) {
	t.Parallel()
	mock, st := newMock(t)

	body := []byte(`
version: 2
resource_prices:
  Ore: 10
product_prices:
  Widget: 20
subtypes: {}
`)
	for range 2 {
		mock.ExpectQuery(`SELECT version, body\s+FROM econ\.sector_configs`).
			WillReturnRows(pgxmock.NewRows([]string{"version", "body"}).AddRow(int64(2), body))
	}

	first, err := st.GetSectorConfig(context.Background())
	if err != nil {
		t.Fatalf("GetSectorConfig: %v", err)
	}
	second, err := st.GetSectorConfig(context.Background())
	if err != nil {
		t.Fatalf("GetSectorConfig: %v", err)
	}
	if first != second {
		t.Fatal("same version must return the cached config")
	}
	expectMet(t, mock)
}

func TestSaveSectorConfigStaleVersion(t *testing.T) {
	t.Parallel()
	mock, st := newMock(t)

	body := []byte(`
version: 1
resource_prices:
  Ore: 10
product_prices:
  Widget: 20
subtypes: {}
`)
	mock.ExpectExec(`INSERT INTO econ\.sector_configs`).
		WithArgs(int64(1), body).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	_, err := st.SaveSectorConfig(context.Background(), body)
	if !errors.Is(err, econ.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	expectMet(t, mock)
}

func TestJobsEnabledDefaultsTrue(t *testing.T) {
	t.Parallel()
	mock, st := newMock(t)

	mock.ExpectQuery(`SELECT value\s+FROM econ\.runtime_settings`).
		WillReturnRows(pgxmock.NewRows([]string{"value"}))

	enabled, err := st.JobsEnabled(context.Background())
	if err != nil {
		t.Fatalf("JobsEnabled: %v", err)
	}
	if !enabled {
		t.Fatal("jobs must default to enabled when no setting row exists")
	}
	expectMet(t, mock)
}

func TestSetJobsEnabled(t *testing.T) {
	t.Parallel()
	mock, st := newMock(t)

	mock.ExpectExec(`INSERT INTO econ\.runtime_settings`).
		WithArgs("false").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := st.SetJobsEnabled(context.Background(), false); err != nil {
		t.Fatalf("SetJobsEnabled: %v", err)
	}
	expectMet(t, mock)
}
