package vouchers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/accounting/coa"
	"github.com/tallyerp/bookkeeping/internal/shared"
)

type fixture struct {
	chart *coa.Chart
	cash  uuid.UUID
	sales uuid.UUID
	acme  uuid.UUID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	company := uuid.New()
	chart := coa.Seeded(company)
	salesGroup, _ := chart.GroupByName(coa.GroupSalesAccounts)
	debtors, _ := chart.GroupByName(coa.GroupSundryDebtors)
	sales := accounting.Ledger{ID: uuid.New(), Name: "Sales", GroupID: salesGroup.ID}
	acme := accounting.Ledger{ID: uuid.New(), Name: "Acme", GroupID: debtors.ID}
	require.NoError(t, chart.AddLedger(sales))
	require.NoError(t, chart.AddLedger(acme))
	return fixture{chart: chart, cash: coa.SeedID(company, "ledger", coa.LedgerCash), sales: sales.ID, acme: acme.ID}
}

func fill(t *testing.T, b *Builder, i int, ledger uuid.UUID, side accounting.Side, amount string) {
	t.Helper()
	require.NoError(t, b.SetEntryField(i, FieldLedger, ledger))
	require.NoError(t, b.SetEntryField(i, FieldSide, side))
	require.NoError(t, b.SetEntryField(i, FieldAmount, amount))
}

func reasons(t *testing.T, err error) []string {
	t.Helper()
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	return verr.Reasons
}

type recordingCommitter struct {
	got []accounting.Voucher
	err error
}

func (r *recordingCommitter) CommitVoucher(_ context.Context, v accounting.Voucher) (uuid.UUID, error) {
	if r.err != nil {
		return uuid.Nil, r.err
	}
	r.got = append(r.got, v)
	return uuid.New(), nil
}

func TestNewBuilderStartsWithTwoDebitRows(t *testing.T) {
	b := NewBuilder(nil, accounting.VoucherJournal)
	entries := b.Entries()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, accounting.SideDr, e.Side)
		assert.True(t, e.Amount.IsZero())
	}
}

func TestRemoveEntryKeepsMinimum(t *testing.T) {
	b := NewBuilder(nil, accounting.VoucherJournal)
	require.Error(t, b.RemoveEntry(0))
	require.Error(t, b.RemoveEntry(5))

	idx := b.AddEntry()
	assert.Equal(t, 2, idx)
	require.NoError(t, b.RemoveEntry(1))
	assert.Len(t, b.Entries(), 2)
}

func TestSetEntryFieldParsesFormValues(t *testing.T) {
	f := newFixture(t)
	b := NewBuilder(f.chart, accounting.VoucherSales)

	require.NoError(t, b.SetEntryField(0, FieldLedger, f.acme.String()))
	require.NoError(t, b.SetEntryField(0, FieldAmount, "1,180.50"))
	require.NoError(t, b.SetEntryField(1, FieldSide, "Cr"))
	require.NoError(t, b.SetEntryField(1, FieldBillRef, " INV-7 "))

	entries := b.Entries()
	assert.Equal(t, f.acme, entries[0].LedgerID)
	assert.True(t, decimal.RequireFromString("1180.50").Equal(entries[0].Amount))
	assert.Equal(t, accounting.SideCr, entries[1].Side)
	assert.Equal(t, "INV-7", entries[1].BillRef)

	assert.Error(t, b.SetEntryField(0, FieldSide, "Debit"))
	assert.Error(t, b.SetEntryField(0, FieldAmount, "abc"))
	assert.Error(t, b.SetEntryField(0, FieldLedger, 42))
	assert.Error(t, b.SetEntryField(0, Field("rate"), "1"))
	assert.Error(t, b.SetEntryField(9, FieldAmount, "1"))

	require.NoError(t, b.ToggleSide(1))
	assert.Equal(t, accounting.SideDr, b.Entries()[1].Side)
}

func TestComputeTotalsTolerance(t *testing.T) {
	b := NewBuilder(nil, accounting.VoucherJournal)
	require.NoError(t, b.SetEntryField(0, FieldAmount, "100.00"))
	require.NoError(t, b.SetEntryField(1, FieldSide, accounting.SideCr))
	require.NoError(t, b.SetEntryField(1, FieldAmount, "99.995"))

	totals := b.ComputeTotals()
	assert.True(t, totals.Balanced)
	assert.True(t, decimal.RequireFromString("0.005").Equal(totals.Diff))

	require.NoError(t, b.SetEntryField(1, FieldAmount, "99.99"))
	assert.False(t, b.ComputeTotals().Balanced)
}

func TestBuildSucceedsOnlyForBalancedVoucherWithTwoEntries(t *testing.T) {
	f := newFixture(t)
	b := NewBuilder(f.chart, accounting.VoucherSales)
	b.SetDate(time.Date(2024, time.April, 5, 15, 4, 0, 0, time.UTC))
	b.SetNarration("  counter sale ")
	fill(t, b, 0, f.cash, accounting.SideDr, "1000")
	fill(t, b, 1, f.sales, accounting.SideCr, "1000")
	b.AddEntry()

	v, err := b.Build()
	require.NoError(t, err)
	assert.Len(t, v.Entries, 2, "blank rows are dropped")
	assert.Equal(t, accounting.Date(2024, time.April, 5), v.Date)
	assert.Equal(t, "counter sale", v.Narration)

	dr, cr := v.Totals()
	assert.True(t, dr.Equal(cr))

	// the snapshot does not track later draft edits
	require.NoError(t, b.SetEntryField(0, FieldAmount, "5"))
	assert.True(t, v.Entries[0].Amount.Equal(decimal.NewFromInt(1000)))
}

func TestValidateEnumeratesEveryViolation(t *testing.T) {
	f := newFixture(t)
	b := NewBuilder(f.chart, accounting.VoucherType("Memo"))
	fill(t, b, 0, uuid.New(), accounting.SideDr, "100")
	require.NoError(t, b.SetEntryField(1, FieldAmount, "-5"))
	b.AddEntry()
	require.NoError(t, b.SetEntryField(2, FieldLedger, f.sales))

	got := reasons(t, b.Validate())
	assert.Contains(t, got, `voucher type "Memo" is not supported`)
	assert.Contains(t, got, "date is required")
	assert.Contains(t, got, "entry 2: ledger is required")
	assert.Contains(t, got, "entry 2: amount must not be negative")
	assert.Contains(t, got, "entry 3: amount must be greater than zero")
	assert.Contains(t, got, "at least 2 entries with a ledger and an amount are required")
	assert.Contains(t, got, "voucher is not balanced: Dr 95.00, Cr 0.00, difference 95.00")
	assert.Len(t, got, 8)
}

func TestValidateRejectsExtraPrecisionAndBadGST(t *testing.T) {
	f := newFixture(t)
	b := NewBuilder(f.chart, accounting.VoucherSales)
	b.SetDate(accounting.Date(2024, time.April, 1))
	fill(t, b, 0, f.cash, accounting.SideDr, "10.001")
	fill(t, b, 1, f.sales, accounting.SideCr, "10.001")
	missing := uuid.New()
	b.SetParty(&missing)
	b.SetGST(&accounting.VoucherGST{SupplyType: "Barter", Rate: decimal.NewFromInt(180)})

	got := reasons(t, b.Validate())
	assert.Len(t, got, 5)
	assert.Contains(t, got, "supply type \"Barter\" is not supported")
}

func TestCommitSendsSnapshotOnlyWhenValid(t *testing.T) {
	f := newFixture(t)
	committer := &recordingCommitter{}

	b := NewBuilder(f.chart, accounting.VoucherReceipt)
	b.SetDate(accounting.Date(2024, time.April, 1))
	fill(t, b, 0, f.cash, accounting.SideDr, "500")
	fill(t, b, 1, f.acme, accounting.SideCr, "400")

	_, err := b.Commit(context.Background(), committer)
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Empty(t, committer.got)

	require.NoError(t, b.SetEntryField(1, FieldAmount, "500"))
	id, err := b.Commit(context.Background(), committer)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	require.Len(t, committer.got, 1)

	transport := &shared.TransportError{Op: "commit voucher", Err: errors.New("connection reset")}
	_, err = b.Commit(context.Background(), &recordingCommitter{err: transport})
	assert.Same(t, transport, err)
}

func TestAdviseFlagsUnusualNatures(t *testing.T) {
	f := newFixture(t)
	b := NewBuilder(f.chart, accounting.VoucherSales)
	fill(t, b, 0, f.sales, accounting.SideDr, "100")
	fill(t, b, 1, f.cash, accounting.SideCr, "100")

	advice := b.Advise()
	require.Len(t, advice, 2)
	assert.Equal(t, "entry 1: Sales vouchers usually debit an assets ledger, got income", advice[0])

	b.SetType(accounting.VoucherJournal)
	assert.Empty(t, b.Advise())

	hint := NatureHints(accounting.VoucherPurchase)
	require.NotNil(t, hint.DrNature)
	assert.Equal(t, accounting.NatureExpenses, *hint.DrNature)
	assert.True(t, hint.IsGST)
	assert.Equal(t, "JOURNAL", NatureHints("Unknown").Label)
}

func TestPreviewGSTUsesFirstCompleteEntry(t *testing.T) {
	f := newFixture(t)
	b := NewBuilder(f.chart, accounting.VoucherSales)
	_, err := b.PreviewGST(decimal.NewFromInt(18))
	require.ErrorIs(t, err, shared.ErrValidation)

	fill(t, b, 1, f.sales, accounting.SideCr, "1000")
	split, err := b.PreviewGST(decimal.NewFromInt(18))
	require.NoError(t, err)
	assert.True(t, split.CGST.Equal(decimal.NewFromInt(90)))

	b.SetGST(&accounting.VoucherGST{SupplyType: accounting.SupplyB2B, InterState: true})
	split, err = b.PreviewGST(decimal.NewFromInt(18))
	require.NoError(t, err)
	assert.True(t, split.IGST.Equal(decimal.NewFromInt(180)))
}

func TestReverseSwapsSides(t *testing.T) {
	f := newFixture(t)
	original := accounting.Voucher{
		ID: uuid.New(), Number: "SAL/4", Type: accounting.VoucherSales, Date: accounting.Date(2024, time.April, 1),
		Entries: []accounting.Entry{
			{LedgerID: f.cash, Side: accounting.SideDr, Amount: decimal.NewFromInt(10)},
			{LedgerID: f.sales, Side: accounting.SideCr, Amount: decimal.NewFromInt(10)},
		},
	}
	rev := Reverse(original, accounting.Date(2024, time.April, 9))
	assert.Equal(t, "Reversal of SAL/4", rev.Narration)
	assert.Equal(t, uuid.Nil, rev.ID)
	require.NotNil(t, rev.ReversalOf)
	assert.Equal(t, original.ID, *rev.ReversalOf)
	assert.Equal(t, accounting.SideCr, rev.Entries[0].Side)
	assert.Equal(t, accounting.SideDr, original.Entries[0].Side)

	v, err := FromVoucher(f.chart, rev).Build()
	require.NoError(t, err)
	assert.Equal(t, original.ID, *v.ReversalOf)
}
