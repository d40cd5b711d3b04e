// Package reports projects ledger balances and vouchers into the statutory reports.
// Every builder is a pure function: the same inputs always give the same output.
package reports

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/accounting/balances"
)

// Chart is the read side of the chart of accounts reports need.
type Chart interface {
	balances.Chart
	Group(id uuid.UUID) (accounting.LedgerGroup, bool)
	GroupByName(name string) (accounting.LedgerGroup, bool)
	Ancestors(id uuid.UUID) []accounting.LedgerGroup
	Subtree(id uuid.UUID) []uuid.UUID
	LedgersOf(groupID uuid.UUID) []accounting.Ledger
}

// TrialBalanceRow is one ledger with a non-zero closing balance.
type TrialBalanceRow struct {
	LedgerID       uuid.UUID       `json:"ledgerId"`
	Name           string          `json:"name"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	ClosingBalance decimal.Decimal `json:"closingBalance"`
	ClosingType    accounting.Side `json:"closingType"`
}

// TrialBalanceGroup collects rows under their parent group name.
type TrialBalanceGroup struct {
	Name   string            `json:"name"`
	Rows   []TrialBalanceRow `json:"rows"`
	Debit  decimal.Decimal   `json:"debit"`
	Credit decimal.Decimal   `json:"credit"`
}

// TrialBalance lists every ledger's closing balance on its side.
type TrialBalance struct {
	AsOf       time.Time           `json:"asOf"`
	Groups     []TrialBalanceGroup `json:"groups"`
	TotalDr    decimal.Decimal     `json:"totalDr"`
	TotalCr    decimal.Decimal     `json:"totalCr"`
	Difference decimal.Decimal     `json:"difference"`
	Balanced   bool                `json:"balanced"`
}

// BuildTrialBalance groups non-zero closing balances by group name in first-seen order.
// Balanced is exact equality of the two totals.
func BuildTrialBalance(chart Chart, bals []balances.LedgerBalance, asOf time.Time) TrialBalance {
	tb := TrialBalance{AsOf: asOf, Groups: []TrialBalanceGroup{}}
	index := map[string]int{}
	for _, b := range bals {
		if b.Closing.IsZero() {
			continue
		}
		amount, side := balances.Display(b.Nature, b.Closing)
		row := TrialBalanceRow{LedgerID: b.LedgerID, Name: b.Name, ClosingBalance: amount, ClosingType: side}
		name := groupName(chart, b.GroupID)
		i, ok := index[name]
		if !ok {
			i = len(tb.Groups)
			index[name] = i
			tb.Groups = append(tb.Groups, TrialBalanceGroup{Name: name})
		}
		grp := &tb.Groups[i]
		if side == accounting.SideDr {
			row.Debit = amount
			grp.Debit = grp.Debit.Add(amount)
			tb.TotalDr = tb.TotalDr.Add(amount)
		} else {
			row.Credit = amount
			grp.Credit = grp.Credit.Add(amount)
			tb.TotalCr = tb.TotalCr.Add(amount)
		}
		grp.Rows = append(grp.Rows, row)
	}
	tb.Difference = tb.TotalDr.Sub(tb.TotalCr).Abs()
	tb.Balanced = tb.TotalDr.Equal(tb.TotalCr)
	return tb
}

func groupName(chart Chart, id uuid.UUID) string {
	if g, ok := chart.Group(id); ok {
		return g.Name
	}
	return "Ungrouped"
}
