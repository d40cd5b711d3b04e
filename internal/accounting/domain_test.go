package accounting

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound2HalfAwayFromZero(t *testing.T) {
	cases := map[string]string{
		"2.345":  "2.35",
		"2.344":  "2.34",
		"-2.345": "-2.35",
		"90":     "90",
	}
	for in, want := range cases {
		got := Round2(decimal.RequireFromString(in))
		assert.True(t, got.Equal(decimal.RequireFromString(want)), "%s rounded to %s", in, got)
	}
}

func TestVoucherNumbering(t *testing.T) {
	assert.Equal(t, "SAL/1", VoucherSales.FormatNumber(1))
	assert.Equal(t, "CRN/12", VoucherCreditNote.FormatNumber(12))
	for _, vt := range VoucherTypes {
		assert.True(t, vt.Valid())
		assert.Len(t, vt.Prefix(), 3)
	}
	assert.False(t, VoucherType("Memo").Valid())
}

func TestVoucherCloneIsDeep(t *testing.T) {
	party := uuid.New()
	v := Voucher{
		Type:          VoucherSales,
		PartyLedgerID: &party,
		Entries:       []Entry{{LedgerID: uuid.New(), Side: SideDr, Amount: decimal.NewFromInt(10)}},
		GST:           &VoucherGST{SupplyType: SupplyB2B, Lines: []InvoiceLine{{HSNCode: "1001"}}},
	}
	c := v.Clone()
	c.Entries[0].Amount = decimal.NewFromInt(99)
	c.GST.Lines[0].HSNCode = "2002"
	*c.PartyLedgerID = uuid.New()

	assert.True(t, v.Entries[0].Amount.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "1001", v.GST.Lines[0].HSNCode)
	assert.Equal(t, party, *v.PartyLedgerID)
}

func TestDateRange(t *testing.T) {
	r := MonthRange(2024, time.February)
	assert.Equal(t, Date(2024, time.February, 29), r.To)
	assert.True(t, r.Contains(Date(2024, time.February, 1)))
	assert.True(t, r.Contains(Date(2024, time.February, 29)))
	assert.False(t, r.Contains(Date(2024, time.March, 1)))
	assert.True(t, r.Before(Date(2024, time.January, 31)))

	open := DateRange{To: Date(2024, time.March, 31)}
	require.True(t, open.Contains(Date(1999, time.January, 1)))
	assert.False(t, open.Before(Date(1999, time.January, 1)))
}

func TestNatureSides(t *testing.T) {
	assert.True(t, NatureAssets.DebitIncreases())
	assert.True(t, NatureExpenses.DebitIncreases())
	assert.False(t, NatureIncome.DebitIncreases())
	assert.False(t, NatureLiabilities.DebitIncreases())
	assert.Equal(t, SideCr, SideDr.Opposite())
}
