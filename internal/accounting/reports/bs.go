package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/accounting/balances"
)

// BalanceSheetLine is a single labelled amount.
type BalanceSheetLine struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// BalanceSheet shows group totals of liabilities and assets as of a date.
type BalanceSheet struct {
	AsOf             time.Time             `json:"asOf"`
	Liabilities      []balances.GroupTotal `json:"liabilities"`
	Assets           []balances.GroupTotal `json:"assets"`
	ProfitAndLoss    BalanceSheetLine      `json:"profitAndLoss"`
	NetProfit        decimal.Decimal       `json:"netProfit"`
	TotalLiabilities decimal.Decimal       `json:"totalLiabilities"`
	TotalAssets      decimal.Decimal       `json:"totalAssets"`
	Difference       decimal.Decimal       `json:"difference"`
	Balanced         bool                  `json:"balanced"`
}

// BuildBalanceSheet rolls balances up the group tree and places root groups by nature.
// Net profit to date is added to the liabilities side; a loss is a negative line there.
func BuildBalanceSheet(chart Chart, bals []balances.LedgerBalance, asOf time.Time) BalanceSheet {
	bs := BalanceSheet{AsOf: asOf, Liabilities: []balances.GroupTotal{}, Assets: []balances.GroupTotal{}}
	for _, root := range balances.Prune(balances.RollUp(chart, bals)) {
		switch root.Group.Nature {
		case accounting.NatureLiabilities:
			bs.Liabilities = append(bs.Liabilities, root)
			bs.TotalLiabilities = bs.TotalLiabilities.Add(root.Balance)
		case accounting.NatureAssets:
			bs.Assets = append(bs.Assets, root)
			bs.TotalAssets = bs.TotalAssets.Add(root.Balance)
		}
	}
	bs.NetProfit = netProfitToDate(chart, bals)
	bs.ProfitAndLoss = BalanceSheetLine{Label: "Profit & Loss A/c (Net Profit)", Amount: bs.NetProfit}
	if bs.NetProfit.IsNegative() {
		bs.ProfitAndLoss.Label = "Profit & Loss A/c (Net Loss)"
	}
	bs.TotalLiabilities = bs.TotalLiabilities.Add(bs.NetProfit)
	bs.Difference = bs.TotalLiabilities.Sub(bs.TotalAssets).Abs()
	bs.Balanced = bs.Difference.LessThan(accounting.Tolerance)
	return bs
}
