package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/accounting/coa"
	"github.com/tallyerp/bookkeeping/internal/accounting/reports"
	"github.com/tallyerp/bookkeeping/internal/accounting/stock"
	"github.com/tallyerp/bookkeeping/internal/shared"
)

type recordingObserver struct {
	mu      sync.Mutex
	commits []accounting.VoucherType
	errs    []error
}

func (o *recordingObserver) ObserveCommit(vt accounting.VoucherType, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.commits = append(o.commits, vt)
	o.errs = append(o.errs, err)
}

type harness struct {
	svc      *Service
	repo     *MemoryRepository
	mr       *miniredis.Miniredis
	observer *recordingObserver
	sess     shared.Session
	cash     uuid.UUID
	sales    uuid.UUID
}

func newHarness(t *testing.T) harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := NewMemoryRepository()
	svc := NewService(repo, NewCache(client, time.Hour))
	svc.WithNow(func() time.Time { return time.Date(2024, time.April, 30, 10, 0, 0, 0, time.UTC) })
	svc.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	observer := &recordingObserver{}
	svc.WithObserver(observer)

	h := harness{
		svc:      svc,
		repo:     repo,
		mr:       mr,
		observer: observer,
		sess:     shared.Session{CompanyID: uuid.New(), UserID: uuid.New()},
	}
	require.NoError(t, svc.SeedCompany(context.Background(), h.sess))
	h.cash = coa.SeedID(h.sess.CompanyID, "ledger", coa.LedgerCash)
	h.sales = h.ledger(t, coa.GroupSalesAccounts, "Sales")
	return h
}

func (h harness) groupID(name string) uuid.UUID {
	return coa.SeedID(h.sess.CompanyID, "group", name)
}

func (h harness) ledger(t *testing.T, group, name string) uuid.UUID {
	t.Helper()
	l, err := h.svc.UpsertLedger(context.Background(), h.sess, accounting.Ledger{Name: name, GroupID: h.groupID(group)})
	require.NoError(t, err)
	return l.ID
}

func entry(id uuid.UUID, side accounting.Side, amount string) accounting.Entry {
	return accounting.Entry{LedgerID: id, Side: side, Amount: decimal.RequireFromString(amount)}
}

func (h harness) cashSale(amount string, day int) accounting.Voucher {
	return accounting.Voucher{
		Type: accounting.VoucherSales,
		Date: accounting.Date(2024, time.April, day),
		Entries: []accounting.Entry{
			entry(h.cash, accounting.SideDr, amount),
			entry(h.sales, accounting.SideCr, amount),
		},
	}
}

func TestOperationsRequireCompany(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.FetchGroupTree(context.Background(), shared.Session{})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = h.svc.CommitVoucher(context.Background(), shared.Session{UserID: uuid.New()}, h.cashSale("1", 1), "")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestFetchGroupTreeSeedsPredefinedChart(t *testing.T) {
	h := newHarness(t)
	other := shared.Session{CompanyID: uuid.New()}

	tree, err := h.svc.FetchGroupTree(context.Background(), other)
	require.NoError(t, err)
	assert.Len(t, tree, 15)
	for _, root := range tree {
		assert.True(t, root.Group.IsSystem)
	}

	companies, err := h.svc.Companies(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{h.sess.CompanyID, other.CompanyID}, companies)
}

func TestUpsertGroupGuardsTree(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	current := h.groupID(coa.GroupCurrentAssets)

	wallets, err := h.svc.UpsertGroup(ctx, h.sess, accounting.LedgerGroup{Name: "Online Wallets", Nature: accounting.NatureAssets, ParentID: &current})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, wallets.ID)

	upi, err := h.svc.UpsertGroup(ctx, h.sess, accounting.LedgerGroup{Name: "UPI", Nature: accounting.NatureAssets, ParentID: &wallets.ID})
	require.NoError(t, err)

	wallets.ParentID = &upi.ID
	_, err = h.svc.UpsertGroup(ctx, h.sess, wallets)
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = h.svc.UpsertGroup(ctx, h.sess, accounting.LedgerGroup{ID: current, Name: "Renamed", Nature: accounting.NatureAssets})
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = h.svc.UpsertGroup(ctx, h.sess, accounting.LedgerGroup{Name: "Mine", Nature: accounting.NatureAssets, IsSystem: true})
	require.ErrorIs(t, err, shared.ErrConflict)

	tree, err := h.svc.FetchGroupTree(ctx, h.sess)
	require.NoError(t, err)
	var found bool
	for _, root := range tree {
		if root.Group.ID != current {
			continue
		}
		for _, child := range root.Children {
			if child.Group.ID == wallets.ID {
				found = true
				require.Len(t, child.Children, 1)
				assert.Equal(t, "UPI", child.Children[0].Group.Name)
			}
		}
	}
	assert.True(t, found, "rejected move leaves the stored tree untouched")
}

func TestUpsertLedgerAndSearch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	bank, err := h.svc.UpsertLedger(ctx, h.sess, accounting.Ledger{
		Name:           "HDFC Current",
		Alias:          "hdfc",
		GroupID:        h.groupID(coa.GroupBankAccounts),
		OpeningBalance: decimal.NewFromInt(2500),
		OpeningSide:    accounting.SideDr,
		Bank:           &accounting.BankInfo{BankName: "HDFC", IFSC: "HDFC0000001"},
	})
	require.NoError(t, err)

	got, err := h.svc.SearchLedgers(ctx, h.sess, "HDF", nil, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, bank.ID, got[0].ID)
	assert.Equal(t, "HDFC", got[0].Bank.BankName)

	liabilities := accounting.NatureLiabilities
	got, err = h.svc.SearchLedgers(ctx, h.sess, "hdfc", &liabilities, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	equity := accounting.Nature("equity")
	_, err = h.svc.SearchLedgers(ctx, h.sess, "", &equity, 0)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = h.svc.UpsertLedger(ctx, h.sess, accounting.Ledger{ID: h.cash, Name: "Petty", GroupID: h.groupID(coa.GroupCashInHand)})
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = h.svc.UpsertLedger(ctx, h.sess, accounting.Ledger{Name: "Orphan", GroupID: uuid.New()})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestVoucherNumbersAreConsumedOnlyByCommit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		number, err := h.svc.NextVoucherNumber(ctx, h.sess, accounting.VoucherSales)
		require.NoError(t, err)
		assert.Equal(t, "SAL/1", number)
	}

	posted, err := h.svc.PostVoucher(ctx, h.sess, h.cashSale("500", 3), "")
	require.NoError(t, err)
	assert.Equal(t, "SAL/1", posted.Number)
	assert.Equal(t, h.sess.UserID, posted.CreatedBy)

	number, err := h.svc.NextVoucherNumber(ctx, h.sess, accounting.VoucherSales)
	require.NoError(t, err)
	assert.Equal(t, "SAL/2", number)
	number, err = h.svc.NextVoucherNumber(ctx, h.sess, accounting.VoucherJournal)
	require.NoError(t, err)
	assert.Equal(t, "JRN/1", number)

	_, err = h.svc.NextVoucherNumber(ctx, h.sess, accounting.VoucherType("Memo"))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCommitRejectsInvalidVoucherAtomically(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	bad := h.cashSale("100", 2)
	bad.Entries[1].Amount = decimal.NewFromInt(90)
	_, err := h.svc.CommitVoucher(ctx, h.sess, bad, "")
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reasons, "voucher is not balanced: Dr 100.00, Cr 90.00, difference 10.00")

	number, err := h.svc.NextVoucherNumber(ctx, h.sess, accounting.VoucherSales)
	require.NoError(t, err)
	assert.Equal(t, "SAL/1", number)

	require.Len(t, h.observer.errs, 1)
	assert.Equal(t, accounting.VoucherSales, h.observer.commits[0])
	assert.Error(t, h.observer.errs[0])
}

func TestIdempotencyKeyRejectsReplay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	id, err := h.svc.CommitVoucher(ctx, h.sess, h.cashSale("100", 2), "req-1")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	_, err = h.svc.CommitVoucher(ctx, h.sess, h.cashSale("100", 2), "req-1")
	require.ErrorIs(t, err, shared.ErrConflict)

	number, err := h.svc.NextVoucherNumber(ctx, h.sess, accounting.VoucherSales)
	require.NoError(t, err)
	assert.Equal(t, "SAL/2", number, "the rejected replay does not consume a number")

	other := shared.Session{CompanyID: uuid.New()}
	require.NoError(t, h.svc.SeedCompany(ctx, other))
	sales, err := h.svc.UpsertLedger(ctx, other, accounting.Ledger{Name: "Sales", GroupID: coa.SeedID(other.CompanyID, "group", coa.GroupSalesAccounts)})
	require.NoError(t, err)
	v := accounting.Voucher{Type: accounting.VoucherSales, Date: accounting.Date(2024, time.April, 2), Entries: []accounting.Entry{
		entry(coa.SeedID(other.CompanyID, "ledger", coa.LedgerCash), accounting.SideDr, "1"),
		entry(sales.ID, accounting.SideCr, "1"),
	}}
	_, err = h.svc.CommitVoucher(ctx, other, v, "req-1")
	require.NoError(t, err, "keys are scoped per company")
}

func TestReverseVoucher(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	original, err := h.svc.PostVoucher(ctx, h.sess, h.cashSale("1000", 5), "")
	require.NoError(t, err)

	rev, err := h.svc.ReverseVoucher(ctx, h.sess, original.ID, time.Time{}, "")
	require.NoError(t, err)
	assert.Equal(t, "SAL/2", rev.Number)
	assert.Equal(t, accounting.Date(2024, time.April, 30), rev.Date)
	require.NotNil(t, rev.ReversalOf)
	assert.Equal(t, original.ID, *rev.ReversalOf)
	assert.Equal(t, accounting.SideCr, rev.Entries[0].Side)

	_, err = h.svc.ReverseVoucher(ctx, h.sess, original.ID, time.Time{}, "")
	require.ErrorIs(t, err, shared.ErrConflict)
	_, err = h.svc.ReverseVoucher(ctx, h.sess, uuid.New(), time.Time{}, "")
	require.ErrorIs(t, err, shared.ErrNotFound)

	report, err := h.svc.BuildReport(ctx, h.sess, reports.KindTrialBalance, ReportQuery{})
	require.NoError(t, err)
	tb := report.(reports.TrialBalance)
	assert.Empty(t, tb.Groups)
	assert.True(t, tb.Balanced)
}

func TestCommitterAdaptsBuilderPort(t *testing.T) {
	h := newHarness(t)
	id, err := h.svc.Committer(h.sess, "").CommitVoucher(context.Background(), h.cashSale("10", 1))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
}

func decodeTrialBalance(t *testing.T, raw json.RawMessage) reports.TrialBalance {
	t.Helper()
	var tb reports.TrialBalance
	require.NoError(t, json.Unmarshal(raw, &tb))
	return tb
}

func TestFetchReportIsCachedUntilBooksChange(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.CommitVoucher(ctx, h.sess, h.cashSale("100", 2), "")
	require.NoError(t, err)

	first, err := h.svc.FetchReport(ctx, h.sess, reports.KindTrialBalance, ReportQuery{})
	require.NoError(t, err)
	assert.True(t, decodeTrialBalance(t, first).TotalDr.Equal(decimal.NewFromInt(100)))

	// a write that bypasses the service does not invalidate the cache
	require.NoError(t, h.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		v := h.cashSale("50", 3)
		v.ID, v.Number = uuid.New(), "SAL/99"
		return tx.InsertVoucher(ctx, h.sess.CompanyID, v)
	}))
	cached, err := h.svc.FetchReport(ctx, h.sess, reports.KindTrialBalance, ReportQuery{})
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(cached))

	_, err = h.svc.CommitVoucher(ctx, h.sess, h.cashSale("25", 4), "")
	require.NoError(t, err)
	fresh, err := h.svc.FetchReport(ctx, h.sess, reports.KindTrialBalance, ReportQuery{})
	require.NoError(t, err)
	assert.True(t, decodeTrialBalance(t, fresh).TotalDr.Equal(decimal.NewFromInt(175)))

	// seed, the Sales ledger and two commits
	ver, err := h.svc.booksVersion(ctx, h.sess.CompanyID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), ver)
}

func TestCommitDuringRedisOutageStillRefreshesReports(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.CommitVoucher(ctx, h.sess, h.cashSale("100", 2), "")
	require.NoError(t, err)
	before, err := h.svc.FetchReport(ctx, h.sess, reports.KindTrialBalance, ReportQuery{})
	require.NoError(t, err)
	assert.True(t, decodeTrialBalance(t, before).TotalDr.Equal(decimal.NewFromInt(100)))

	h.mr.SetError("ERR cache unavailable")
	_, err = h.svc.CommitVoucher(ctx, h.sess, h.cashSale("75", 3), "")
	require.NoError(t, err)
	during, err := h.svc.FetchReport(ctx, h.sess, reports.KindTrialBalance, ReportQuery{})
	require.NoError(t, err)
	assert.True(t, decodeTrialBalance(t, during).TotalDr.Equal(decimal.NewFromInt(175)))
	_, err = h.svc.FetchGSTReport(ctx, h.sess, reports.KindGSTR3B, 4, 2024)
	require.NoError(t, err)

	h.mr.SetError("")
	after, err := h.svc.FetchReport(ctx, h.sess, reports.KindTrialBalance, ReportQuery{})
	require.NoError(t, err)
	assert.True(t, decodeTrialBalance(t, after).TotalDr.Equal(decimal.NewFromInt(175)))
}

func TestReportKeyCarriesBooksVersion(t *testing.T) {
	company := uuid.MustParse("5f0c9a52-4a8e-4c53-9d3c-0a4f3e1b2c7d")
	assert.Equal(t, "ledger:5f0c9a52-4a8e-4c53-9d3c-0a4f3e1b2c7d:v3:trial-balance:-", reportKey(company, 3, "trial-balance", "-"))
	assert.NotEqual(t, reportKey(company, 3, "x"), reportKey(company, 4, "x"))
	assert.Equal(t, "ledger:5f0c9a52-4a8e-4c53-9d3c-0a4f3e1b2c7d:v0", reportKey(company, 0))
}

func TestFetchReportValidatesQuery(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.FetchReport(ctx, h.sess, reports.KindLedgerStatement, ReportQuery{})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = h.svc.FetchReport(ctx, h.sess, reports.KindGSTR1, ReportQuery{})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = h.svc.FetchReport(ctx, h.sess, reports.KindDayBook, ReportQuery{Range: accounting.DateRange{
		From: accounting.Date(2024, time.May, 1), To: accounting.Date(2024, time.April, 1),
	}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = h.svc.FetchGSTReport(ctx, h.sess, reports.KindGSTR3B, 13, 2024)
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = h.svc.FetchGSTReport(ctx, h.sess, reports.KindTrialBalance, 4, 2024)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestFetchLedgerStatementAndGSTReturn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acme, err := h.svc.UpsertLedger(ctx, h.sess, accounting.Ledger{
		Name:    "Acme Retail",
		GroupID: h.groupID(coa.GroupSundryDebtors),
		Party:   &accounting.PartyInfo{State: "Karnataka"},
	})
	require.NoError(t, err)
	cgst := coa.SeedID(h.sess.CompanyID, "ledger", coa.LedgerOutputCGST)
	sgst := coa.SeedID(h.sess.CompanyID, "ledger", coa.LedgerOutputSGST)

	_, err = h.svc.CommitVoucher(ctx, h.sess, accounting.Voucher{
		Type:          accounting.VoucherSales,
		Date:          accounting.Date(2024, time.April, 10),
		PartyLedgerID: &acme.ID,
		GST:           &accounting.VoucherGST{SupplyType: accounting.SupplyB2C, Rate: decimal.NewFromInt(18)},
		Entries: []accounting.Entry{
			entry(acme.ID, accounting.SideDr, "1180"),
			entry(h.sales, accounting.SideCr, "1000"),
			entry(cgst, accounting.SideCr, "90"),
			entry(sgst, accounting.SideCr, "90"),
		},
	}, "")
	require.NoError(t, err)

	raw, err := h.svc.FetchReport(ctx, h.sess, reports.KindLedgerStatement, ReportQuery{
		Range:    accounting.MonthRange(2024, time.April),
		LedgerID: acme.ID,
	})
	require.NoError(t, err)
	var st reports.LedgerStatement
	require.NoError(t, json.Unmarshal(raw, &st))
	assert.Equal(t, "Acme Retail", st.LedgerName)
	require.Len(t, st.Rows, 1)
	assert.True(t, st.Closing.Equal(decimal.NewFromInt(1180)))

	raw, err = h.svc.FetchGSTReport(ctx, h.sess, reports.KindGSTR3B, 4, 2024)
	require.NoError(t, err)
	var r3 reports.GSTR3BReport
	require.NoError(t, json.Unmarshal(raw, &r3))
	assert.True(t, r3.NetPayable.Total.Equal(decimal.NewFromInt(180)))
	assert.Equal(t, 4, r3.Period.Month)
}

func TestExportCSV(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.CommitVoucher(ctx, h.sess, h.cashSale("1000", 2), "")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, h.svc.ExportCSV(ctx, h.sess, reports.KindTrialBalance, ReportQuery{}, &buf))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "Total", records[3][1])

	buf.Reset()
	require.NoError(t, h.svc.ExportCSV(ctx, h.sess, reports.KindCashBook, ReportQuery{Range: accounting.MonthRange(2024, time.April)}, &buf))
	records, err = csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 4)

	err = h.svc.ExportCSV(ctx, h.sess, reports.KindDayBook, ReportQuery{}, io.Discard)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestOverviewAndIntegrity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.CommitVoucher(ctx, h.sess, h.cashSale("1000", 2), "")
	require.NoError(t, err)

	ov, err := h.svc.Overview(ctx, h.sess, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, accounting.Date(2024, time.April, 30), ov.AsOf)
	assert.True(t, ov.TrialBalance.Balanced)
	assert.True(t, ov.BalanceSheet.Balanced)
	assert.True(t, ov.ProfitAndLoss.NetProfit.Equal(decimal.NewFromInt(1000)))
	assert.True(t, ov.Integrity.OK())

	report, err := h.svc.VerifyIntegrity(ctx, h.sess.CompanyID)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 1, report.Vouchers)

	require.NoError(t, h.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		v := h.cashSale("10", 3)
		v.ID, v.Number = uuid.New(), "BAD/1"
		v.Entries[1].Amount = decimal.NewFromInt(9)
		return tx.InsertVoucher(ctx, h.sess.CompanyID, v)
	}))
	report, err = h.svc.VerifyIntegrity(ctx, h.sess.CompanyID)
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Contains(t, report.Problems, "BAD/1: Dr 10.00 does not equal Cr 9.00")
}

func TestWarmFillsCache(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.svc.Warm(context.Background(), h.sess.CompanyID))
	assert.Len(t, h.mr.Keys(), 3)
}

func TestFinancialYear(t *testing.T) {
	fy := FinancialYear(accounting.Date(2025, time.February, 10))
	assert.Equal(t, accounting.Date(2024, time.April, 1), fy.From)
	fy = FinancialYear(accounting.Date(2024, time.April, 1))
	assert.Equal(t, accounting.Date(2024, time.April, 1), fy.From)
}

func TestMemoryRepositoryRollsBackFailedTransactions(t *testing.T) {
	repo := NewMemoryRepository()
	company := uuid.New()
	boom := errors.New("boom")
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		if err := tx.SaveGroup(ctx, company, accounting.LedgerGroup{ID: uuid.New(), Name: "G", Nature: accounting.NatureAssets}); err != nil {
			return err
		}
		if _, err := tx.NextSequence(ctx, company, accounting.VoucherSales); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		groups, err := tx.ListGroups(ctx, company)
		require.NoError(t, err)
		assert.Empty(t, groups)
		next, err := tx.PeekSequence(ctx, company, accounting.VoucherSales)
		require.NoError(t, err)
		assert.Equal(t, int64(1), next)
		return nil
	}))
}

func TestCacheWithoutRedisStillLoads(t *testing.T) {
	var c *Cache
	raw, err := c.FetchJSON(context.Background(), "ledger:x", func(context.Context) (any, error) { return map[string]int{"a": 1}, nil })
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))
}

func TestCacheServesLoaderWhenRedisFails(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c := NewCache(client, time.Minute)
	c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return map[string]int{"calls": calls}, nil
	}
	mr.SetError("ERR cache unavailable")
	raw, err := c.FetchJSON(context.Background(), "ledger:k", loader)
	require.NoError(t, err)
	assert.JSONEq(t, `{"calls":1}`, string(raw))

	mr.SetError("")
	raw, err = c.FetchJSON(context.Background(), "ledger:k", loader)
	require.NoError(t, err)
	assert.JSONEq(t, `{"calls":2}`, string(raw))
	raw, err = c.FetchJSON(context.Background(), "ledger:k", loader)
	require.NoError(t, err)
	assert.JSONEq(t, `{"calls":2}`, string(raw))
}

type recordingWarmup struct {
	mu        sync.Mutex
	companies []uuid.UUID
	err       error
}

func (w *recordingWarmup) ScheduleWarmup(_ context.Context, companyID uuid.UUID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.companies = append(w.companies, companyID)
	return w.err
}

func TestCommitsScheduleWarmup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	warmup := &recordingWarmup{}
	h.svc.WithWarmup(warmup)

	bad := h.cashSale("100", 2)
	bad.Entries[1].Amount = decimal.NewFromInt(90)
	_, err := h.svc.CommitVoucher(ctx, h.sess, bad, "")
	require.Error(t, err)
	assert.Empty(t, warmup.companies, "rejected vouchers leave the cache alone")

	_, err = h.svc.CommitVoucher(ctx, h.sess, h.cashSale("100", 2), "")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{h.sess.CompanyID}, warmup.companies)

	warmup.err = errors.New("queue down")
	_, err = h.svc.CommitVoucher(ctx, h.sess, h.cashSale("50", 3), "")
	require.NoError(t, err, "a failed schedule does not fail the commit")
	assert.Len(t, warmup.companies, 2)
}

func TestUpsertRejectsDuplicateNamesAndExtraPrecision(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.UpsertLedger(ctx, h.sess, accounting.Ledger{Name: "sales", GroupID: h.groupID(coa.GroupDirectIncomes)})
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = h.svc.UpsertGroup(ctx, h.sess, accounting.LedgerGroup{Name: "SUNDRY DEBTORS", Nature: accounting.NatureAssets})
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = h.svc.UpsertLedger(ctx, h.sess, accounting.Ledger{
		Name: "Petty Cash", GroupID: h.groupID(coa.GroupCashInHand),
		OpeningBalance: decimal.RequireFromString("99.999"), OpeningSide: accounting.SideDr,
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	found, err := h.svc.SearchLedgers(ctx, h.sess, "petty", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, found, "rejected ledgers are not stored")
}

func TestUniqueViolationBecomesConflict(t *testing.T) {
	err := nameTaken(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), "ledger", "Sales")
	var conflict *shared.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, `ledger name "Sales" is already used`, conflict.Reason)

	other := &pgconn.PgError{Code: "23503"}
	assert.Same(t, other, nameTaken(other, "ledger", "Sales"))
	assert.NoError(t, nameTaken(nil, "ledger", "Sales"))
}

func TestStockItemsFillInvoiceLines(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	nos, err := h.svc.UpsertStockUnit(ctx, h.sess, stock.Unit{Name: "Numbers", Symbol: "Nos"})
	require.NoError(t, err)
	furniture, err := h.svc.UpsertStockGroup(ctx, h.sess, stock.Group{Name: "Furniture"})
	require.NoError(t, err)
	chair, err := h.svc.UpsertStockItem(ctx, h.sess, stock.Item{
		Name: "Chair", UnitID: nos.ID, GroupID: &furniture.ID, HSNCode: "9401", GSTRate: decimal.NewFromInt(18),
	})
	require.NoError(t, err)
	_, err = h.svc.UpsertStockItem(ctx, h.sess, stock.Item{Name: "chair", UnitID: nos.ID})
	require.ErrorIs(t, err, shared.ErrConflict)

	masters, err := h.svc.FetchStock(ctx, h.sess)
	require.NoError(t, err)
	require.Len(t, masters.Items, 1)
	assert.Equal(t, "9401", masters.Items[0].HSNCode)

	sale := h.cashSale("1000", 5)
	sale.GST = &accounting.VoucherGST{SupplyType: accounting.SupplyB2C, Lines: []accounting.InvoiceLine{
		{StockItemID: &chair.ID, Quantity: decimal.NewFromInt(4), TaxableValue: decimal.NewFromInt(1000)},
	}}
	posted, err := h.svc.PostVoucher(ctx, h.sess, sale, "")
	require.NoError(t, err)
	stored, err := h.svc.GetVoucher(ctx, h.sess, posted.ID)
	require.NoError(t, err)
	require.Len(t, stored.GST.Lines, 1)
	assert.Equal(t, "9401", stored.GST.Lines[0].HSNCode)
	assert.True(t, stored.GST.Lines[0].Rate.Equal(decimal.NewFromInt(18)))
	assert.Equal(t, "Chair", stored.GST.Lines[0].Description)

	unknown := uuid.New()
	sale.GST.Lines[0].StockItemID = &unknown
	_, err = h.svc.PostVoucher(ctx, h.sess, sale, "")
	require.ErrorIs(t, err, shared.ErrValidation)
}
