package reports

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/accounting/balances"
	"github.com/tallyerp/bookkeeping/internal/accounting/coa"
	"github.com/tallyerp/bookkeeping/internal/shared"
)

// DayBookEntry is one line of a voucher in the day book.
type DayBookEntry struct {
	LedgerID   uuid.UUID       `json:"ledgerId"`
	LedgerName string          `json:"ledgerName"`
	Side       accounting.Side `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
}

// DayBookVoucher is one voucher in the day book.
type DayBookVoucher struct {
	ID            uuid.UUID              `json:"id"`
	VoucherNumber string                 `json:"voucherNumber"`
	VoucherType   accounting.VoucherType `json:"voucherType"`
	Date          time.Time              `json:"date"`
	Narration     string                 `json:"narration,omitempty"`
	PartyName     string                 `json:"partyName,omitempty"`
	Entries       []DayBookEntry         `json:"entries"`
	Debit         decimal.Decimal        `json:"debit"`
	Credit        decimal.Decimal        `json:"credit"`
}

// DayBook lists all vouchers of a period in date order.
type DayBook struct {
	Range       accounting.DateRange `json:"range"`
	Vouchers    []DayBookVoucher     `json:"vouchers"`
	TotalDebit  decimal.Decimal      `json:"totalDebit"`
	TotalCredit decimal.Decimal      `json:"totalCredit"`
}

// BuildDayBook lists vouchers within rng by date, keeping commit order for equal dates.
func BuildDayBook(chart Chart, vouchers []accounting.Voucher, rng accounting.DateRange) DayBook {
	var in []accounting.Voucher
	for _, v := range vouchers {
		if rng.Contains(v.Date) {
			in = append(in, v)
		}
	}
	sort.SliceStable(in, func(i, j int) bool { return in[i].Date.Before(in[j].Date) })

	db := DayBook{Range: rng, Vouchers: make([]DayBookVoucher, 0, len(in))}
	for _, v := range in {
		dv := DayBookVoucher{
			ID:            v.ID,
			VoucherNumber: v.Number,
			VoucherType:   v.Type,
			Date:          v.Date,
			Narration:     v.Narration,
			Entries:       make([]DayBookEntry, 0, len(v.Entries)),
		}
		if v.PartyLedgerID != nil {
			if party, ok := chart.Ledger(*v.PartyLedgerID); ok {
				dv.PartyName = party.Name
			}
		}
		for _, e := range v.Entries {
			name := ""
			if l, ok := chart.Ledger(e.LedgerID); ok {
				name = l.Name
			}
			dv.Entries = append(dv.Entries, DayBookEntry{LedgerID: e.LedgerID, LedgerName: name, Side: e.Side, Amount: e.Amount})
		}
		dv.Debit, dv.Credit = v.Totals()
		db.TotalDebit = db.TotalDebit.Add(dv.Debit)
		db.TotalCredit = db.TotalCredit.Add(dv.Credit)
		db.Vouchers = append(db.Vouchers, dv)
	}
	return db
}

// LedgerStatement is the running account of one ledger.
type LedgerStatement struct {
	LedgerID   uuid.UUID            `json:"ledgerId"`
	LedgerName string               `json:"ledgerName"`
	Range      accounting.DateRange `json:"range"`
	balances.Statement
}

// BuildLedgerStatement returns every movement of ledgerID within rng with a running balance.
func BuildLedgerStatement(chart Chart, vouchers []accounting.Voucher, ledgerID uuid.UUID, rng accounting.DateRange) (LedgerStatement, error) {
	l, ok := chart.Ledger(ledgerID)
	if !ok {
		return LedgerStatement{}, &shared.NotFoundError{Kind: "ledger", ID: ledgerID.String()}
	}
	st, err := balances.StatementFor(chart, vouchers, []uuid.UUID{ledgerID}, rng)
	if err != nil {
		return LedgerStatement{}, err
	}
	return LedgerStatement{LedgerID: l.ID, LedgerName: l.Name, Range: rng, Statement: st}, nil
}

// CashBook is the combined running account of cash ledgers.
type CashBook struct {
	Range   accounting.DateRange `json:"range"`
	Ledgers []string             `json:"ledgers"`
	balances.Statement
}

// BuildCashBook runs a statement over every ledger under Cash-in-Hand, plus Bank Accounts
// when includeBank is set.
func BuildCashBook(chart Chart, vouchers []accounting.Voucher, rng accounting.DateRange, includeBank bool) (CashBook, error) {
	names := []string{coa.GroupCashInHand}
	if includeBank {
		names = append(names, coa.GroupBankAccounts)
	}
	var ids []uuid.UUID
	book := CashBook{Range: rng, Ledgers: []string{}}
	for _, name := range names {
		g, ok := chart.GroupByName(name)
		if !ok {
			continue
		}
		for _, gid := range chart.Subtree(g.ID) {
			for _, l := range chart.LedgersOf(gid) {
				ids = append(ids, l.ID)
				book.Ledgers = append(book.Ledgers, l.Name)
			}
		}
	}
	if len(ids) == 0 {
		book.Statement = balances.Running(accounting.NatureAssets, decimal.Zero, nil)
		return book, nil
	}
	st, err := balances.StatementFor(chart, vouchers, ids, rng)
	if err != nil {
		return CashBook{}, err
	}
	book.Statement = st
	return book, nil
}
