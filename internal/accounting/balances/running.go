package balances

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/shared"
)

// Movement is one entry touching a statement's ledgers.
type Movement struct {
	VoucherID     uuid.UUID              `json:"voucherId"`
	VoucherNumber string                 `json:"voucherNumber"`
	VoucherType   accounting.VoucherType `json:"voucherType"`
	Date          time.Time              `json:"date"`
	Narration     string                 `json:"narration,omitempty"`
	Particulars   string                 `json:"particulars,omitempty"`
	Side          accounting.Side        `json:"type"`
	Amount        decimal.Decimal        `json:"amount"`
}

// Row is a statement line with the balance after it.
type Row struct {
	Movement
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	Balance       decimal.Decimal `json:"balance"`
	BalanceAmount decimal.Decimal `json:"balanceAmount"`
	BalanceSide   accounting.Side `json:"balanceType"`
}

// Statement is a running-balance listing.
type Statement struct {
	Nature      accounting.Nature `json:"nature"`
	Opening     decimal.Decimal   `json:"openingBalance"`
	OpeningSide accounting.Side   `json:"openingType"`
	Rows        []Row             `json:"transactions"`
	TotalDebit  decimal.Decimal   `json:"totalDebit"`
	TotalCredit decimal.Decimal   `json:"totalCredit"`
	Closing     decimal.Decimal   `json:"closingBalance"`
	ClosingSide accounting.Side   `json:"closingType"`
}

// Running orders movements by date, keeping insertion order for equal dates, and
// accumulates the nature-signed balance from opening.
func Running(nature accounting.Nature, opening decimal.Decimal, movements []Movement) Statement {
	sorted := append([]Movement(nil), movements...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	st := Statement{Nature: nature, Opening: opening, Rows: make([]Row, 0, len(sorted))}
	_, st.OpeningSide = Display(nature, opening)
	balance := opening
	for _, m := range sorted {
		row := Row{Movement: m, Debit: decimal.Zero, Credit: decimal.Zero}
		if m.Side == accounting.SideDr {
			row.Debit = m.Amount
			st.TotalDebit = st.TotalDebit.Add(m.Amount)
		} else {
			row.Credit = m.Amount
			st.TotalCredit = st.TotalCredit.Add(m.Amount)
		}
		balance = balance.Add(Signed(nature, m.Side, m.Amount))
		row.Balance = balance
		row.BalanceAmount, row.BalanceSide = Display(nature, balance)
		st.Rows = append(st.Rows, row)
	}
	st.Closing = balance
	_, st.ClosingSide = Display(nature, balance)
	return st
}

// StatementFor builds the running statement of a set of ledgers sharing one nature.
// Entries before rng.From are folded into the opening balance.
func StatementFor(chart Chart, vouchers []accounting.Voucher, ledgerIDs []uuid.UUID, rng accounting.DateRange) (Statement, error) {
	if len(ledgerIDs) == 0 {
		return Statement{}, shared.NewValidationError("at least one ledger is required")
	}
	members := make(map[uuid.UUID]struct{}, len(ledgerIDs))
	var nature accounting.Nature
	opening := decimal.Zero
	for i, id := range ledgerIDs {
		l, ok := chart.Ledger(id)
		if !ok {
			return Statement{}, &shared.NotFoundError{Kind: "ledger", ID: id.String()}
		}
		n, err := chart.NatureOf(id)
		if err != nil {
			return Statement{}, err
		}
		if i == 0 {
			nature = n
		} else if n != nature {
			return Statement{}, shared.NewValidationError("ledgers of a statement must share one nature")
		}
		members[id] = struct{}{}
		opening = opening.Add(OpeningOf(l, n))
	}

	var movements []Movement
	for _, v := range vouchers {
		before := rng.Before(v.Date)
		if !before && !rng.Contains(v.Date) {
			continue
		}
		for _, e := range v.Entries {
			if _, ok := members[e.LedgerID]; !ok {
				continue
			}
			if before {
				opening = opening.Add(Signed(nature, e.Side, e.Amount))
				continue
			}
			movements = append(movements, Movement{
				VoucherID:     v.ID,
				VoucherNumber: v.Number,
				VoucherType:   v.Type,
				Date:          v.Date,
				Narration:     v.Narration,
				Particulars:   particulars(chart, v, e.Side, members),
				Side:          e.Side,
				Amount:        e.Amount,
			})
		}
	}
	return Running(nature, opening, movements), nil
}

// particulars names the counter ledgers of an entry: those on the opposite side.
func particulars(chart Chart, v accounting.Voucher, side accounting.Side, members map[uuid.UUID]struct{}) string {
	var names []string
	seen := map[uuid.UUID]bool{}
	for _, e := range v.Entries {
		if e.Side == side || seen[e.LedgerID] {
			continue
		}
		if _, own := members[e.LedgerID]; own {
			continue
		}
		seen[e.LedgerID] = true
		if l, ok := chart.Ledger(e.LedgerID); ok {
			names = append(names, l.Name)
		}
	}
	return strings.Join(names, ", ")
}
