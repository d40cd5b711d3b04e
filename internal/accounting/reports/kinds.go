package reports

import (
	"fmt"

	"github.com/tallyerp/bookkeeping/internal/shared"
)

// Kind names a report projection.
type Kind string

const (
	KindTrialBalance    Kind = "trial-balance"
	KindBalanceSheet    Kind = "balance-sheet"
	KindProfitLoss      Kind = "profit-loss"
	KindDayBook         Kind = "day-book"
	KindCashBook        Kind = "cash-book"
	KindLedgerStatement Kind = "ledger-statement"
	KindGSTR1           Kind = "gstr1"
	KindGSTR3B          Kind = "gstr3b"
)

// Kinds lists the ledger reports served over a date range.
var Kinds = []Kind{KindTrialBalance, KindBalanceSheet, KindProfitLoss, KindDayBook, KindCashBook, KindLedgerStatement}

// GSTKinds lists the monthly tax returns.
var GSTKinds = []Kind{KindGSTR1, KindGSTR3B}

// ParseKind validates a report name.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	for _, known := range append(append([]Kind{}, Kinds...), GSTKinds...) {
		if k == known {
			return k, nil
		}
	}
	return "", shared.NewValidationError(fmt.Sprintf("report %q is not supported", s))
}

// IsGST reports whether k is a tax return.
func (k Kind) IsGST() bool { return k == KindGSTR1 || k == KindGSTR3B }

// Dated reports whether k is computed as of a single date rather than over a range.
func (k Kind) Dated() bool { return k == KindTrialBalance || k == KindBalanceSheet }
