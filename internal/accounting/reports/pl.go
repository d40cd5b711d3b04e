package reports

import (
	"github.com/shopspring/decimal"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/accounting/balances"
)

// ProfitAndLossLine is one income or expense ledger.
type ProfitAndLossLine struct {
	Name      string          `json:"name"`
	GroupName string          `json:"groupName"`
	Amount    decimal.Decimal `json:"amount"`
}

// ProfitAndLossSection groups lines of one part of the statement.
type ProfitAndLossSection struct {
	Lines []ProfitAndLossLine `json:"lines"`
	Total decimal.Decimal     `json:"total"`
}

func (s *ProfitAndLossSection) add(line ProfitAndLossLine) {
	s.Lines = append(s.Lines, line)
	s.Total = s.Total.Add(line.Amount)
}

// ProfitAndLoss splits results into the trading account and the rest.
type ProfitAndLoss struct {
	Range           accounting.DateRange `json:"range"`
	TradingIncome   ProfitAndLossSection `json:"tradingIncome"`
	TradingExpenses ProfitAndLossSection `json:"tradingExpenses"`
	OtherIncome     ProfitAndLossSection `json:"otherIncome"`
	OtherExpenses   ProfitAndLossSection `json:"otherExpenses"`
	GrossProfit     decimal.Decimal      `json:"grossProfit"`
	NetProfit       decimal.Decimal      `json:"netProfit"`
	IsProfit        bool                 `json:"isProfit"`
}

// BuildProfitAndLoss reports the movement of income and expense ledgers within the range.
// Ledgers under a group that affects gross profit land in the trading sections.
func BuildProfitAndLoss(chart Chart, bals []balances.LedgerBalance, rng accounting.DateRange) ProfitAndLoss {
	pl := classify(chart, bals, func(b balances.LedgerBalance) decimal.Decimal { return b.Movement() })
	pl.Range = rng
	return pl
}

// netProfitToDate uses closing balances so opening balances of revenue ledgers count too.
func netProfitToDate(chart Chart, bals []balances.LedgerBalance) decimal.Decimal {
	return classify(chart, bals, func(b balances.LedgerBalance) decimal.Decimal { return b.Closing }).NetProfit
}

func classify(chart Chart, bals []balances.LedgerBalance, amount func(balances.LedgerBalance) decimal.Decimal) ProfitAndLoss {
	empty := func() ProfitAndLossSection { return ProfitAndLossSection{Lines: []ProfitAndLossLine{}} }
	pl := ProfitAndLoss{
		TradingIncome:   empty(),
		TradingExpenses: empty(),
		OtherIncome:     empty(),
		OtherExpenses:   empty(),
	}
	for _, b := range bals {
		if b.Nature != accounting.NatureIncome && b.Nature != accounting.NatureExpenses {
			continue
		}
		amt := amount(b)
		if amt.IsZero() {
			continue
		}
		line := ProfitAndLossLine{Name: b.Name, GroupName: groupName(chart, b.GroupID), Amount: amt}
		trading := affectsGrossProfit(chart, b)
		switch {
		case b.Nature == accounting.NatureIncome && trading:
			pl.TradingIncome.add(line)
		case b.Nature == accounting.NatureIncome:
			pl.OtherIncome.add(line)
		case trading:
			pl.TradingExpenses.add(line)
		default:
			pl.OtherExpenses.add(line)
		}
	}
	pl.GrossProfit = pl.TradingIncome.Total.Sub(pl.TradingExpenses.Total)
	pl.NetProfit = pl.GrossProfit.Add(pl.OtherIncome.Total).Sub(pl.OtherExpenses.Total)
	pl.IsProfit = !pl.NetProfit.IsNegative()
	return pl
}

func affectsGrossProfit(chart Chart, b balances.LedgerBalance) bool {
	g, ok := chart.Group(b.GroupID)
	if !ok {
		return false
	}
	if g.AffectsGrossProfit {
		return true
	}
	for _, a := range chart.Ancestors(g.ID) {
		if a.AffectsGrossProfit {
			return true
		}
	}
	return false
}
