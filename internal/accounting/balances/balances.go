// Package balances aggregates committed vouchers into ledger and group balances.
//
// Balances are kept nature-signed: a positive number means the balance sits on the
// side that grows that nature (debit for assets and expenses, credit for liabilities
// and income). Crossing natures goes through the debit-positive raw form.
package balances

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/accounting/coa"
	"github.com/tallyerp/bookkeeping/internal/shared"
)

// Chart is the read side of the chart of accounts used by aggregation.
type Chart interface {
	Ledger(id uuid.UUID) (accounting.Ledger, bool)
	Ledgers() []accounting.Ledger
	NatureOf(id uuid.UUID) (accounting.Nature, error)
	Tree() []coa.GroupNode
}

// Signed converts an entry amount into the nature-signed form.
func Signed(nature accounting.Nature, side accounting.Side, amount decimal.Decimal) decimal.Decimal {
	if (side == accounting.SideDr) == nature.DebitIncreases() {
		return amount
	}
	return amount.Neg()
}

// Raw converts a nature-signed balance into debit-positive form.
func Raw(nature accounting.Nature, signed decimal.Decimal) decimal.Decimal {
	if nature.DebitIncreases() {
		return signed
	}
	return signed.Neg()
}

// FromRaw converts a debit-positive balance into the nature-signed form.
func FromRaw(nature accounting.Nature, raw decimal.Decimal) decimal.Decimal {
	return Raw(nature, raw)
}

// Display returns the magnitude and side of a nature-signed balance.
// Zero balances are shown on the nature's natural side.
func Display(nature accounting.Nature, signed decimal.Decimal) (decimal.Decimal, accounting.Side) {
	raw := Raw(nature, signed)
	switch raw.Sign() {
	case 1:
		return raw, accounting.SideDr
	case -1:
		return raw.Neg(), accounting.SideCr
	}
	if nature.DebitIncreases() {
		return decimal.Zero, accounting.SideDr
	}
	return decimal.Zero, accounting.SideCr
}

// LedgerBalance is the position of one ledger over a range.
type LedgerBalance struct {
	LedgerID    uuid.UUID         `json:"ledgerId"`
	Name        string            `json:"name"`
	GroupID     uuid.UUID         `json:"groupId"`
	Nature      accounting.Nature `json:"nature"`
	Opening     decimal.Decimal   `json:"opening"`
	Debit       decimal.Decimal   `json:"debit"`
	Credit      decimal.Decimal   `json:"credit"`
	Closing     decimal.Decimal   `json:"closing"`
	ClosingSide accounting.Side   `json:"closingType"`
}

// Raw returns the closing balance in debit-positive form.
func (b LedgerBalance) Raw() decimal.Decimal { return Raw(b.Nature, b.Closing) }

// Movement returns the nature-signed change within the range.
func (b LedgerBalance) Movement() decimal.Decimal { return b.Closing.Sub(b.Opening) }

// OpeningOf returns the configured opening balance of a ledger in nature-signed form.
func OpeningOf(l accounting.Ledger, nature accounting.Nature) decimal.Decimal {
	if l.OpeningBalance.IsZero() {
		return decimal.Zero
	}
	side := l.OpeningSide
	if !side.Valid() {
		side = accounting.SideDr
	}
	return Signed(nature, side, l.OpeningBalance)
}

// LedgerBalances computes every ledger's balance over rng in chart order.
// Entries before rng.From fold into the opening; entries after rng.To are ignored.
func LedgerBalances(chart Chart, vouchers []accounting.Voucher, rng accounting.DateRange) ([]LedgerBalance, error) {
	ledgers := chart.Ledgers()
	out := make([]LedgerBalance, len(ledgers))
	idx := make(map[uuid.UUID]int, len(ledgers))
	for i, l := range ledgers {
		nature, err := chart.NatureOf(l.ID)
		if err != nil {
			return nil, err
		}
		idx[l.ID] = i
		out[i] = LedgerBalance{
			LedgerID: l.ID,
			Name:     l.Name,
			GroupID:  l.GroupID,
			Nature:   nature,
			Opening:  OpeningOf(l, nature),
			Debit:    decimal.Zero,
			Credit:   decimal.Zero,
		}
	}
	for _, v := range vouchers {
		before := rng.Before(v.Date)
		if !before && !rng.Contains(v.Date) {
			continue
		}
		for _, e := range v.Entries {
			i, ok := idx[e.LedgerID]
			if !ok {
				return nil, &shared.NotFoundError{Kind: "ledger", ID: e.LedgerID.String()}
			}
			b := &out[i]
			if before {
				b.Opening = b.Opening.Add(Signed(b.Nature, e.Side, e.Amount))
				continue
			}
			if e.Side == accounting.SideDr {
				b.Debit = b.Debit.Add(e.Amount)
			} else {
				b.Credit = b.Credit.Add(e.Amount)
			}
		}
	}
	for i := range out {
		b := &out[i]
		b.Closing = b.Opening.
			Add(Signed(b.Nature, accounting.SideDr, b.Debit)).
			Add(Signed(b.Nature, accounting.SideCr, b.Credit))
		_, b.ClosingSide = Display(b.Nature, b.Closing)
	}
	return out, nil
}

// Index maps balances by ledger id.
func Index(bals []LedgerBalance) map[uuid.UUID]LedgerBalance {
	out := make(map[uuid.UUID]LedgerBalance, len(bals))
	for _, b := range bals {
		out[b.LedgerID] = b
	}
	return out
}
