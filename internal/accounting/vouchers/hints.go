package vouchers

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/tallyerp/bookkeeping/internal/accounting"
)

// Hint describes which natures a voucher type usually debits and credits.
// Hints guide ledger pickers and are never enforced.
type Hint struct {
	Label    string             `json:"label"`
	DrNature *accounting.Nature `json:"drNature,omitempty"`
	CrNature *accounting.Nature `json:"crNature,omitempty"`
	IsGST    bool               `json:"isGST"`
	Shortcut string             `json:"shortcut"`
}

func nature(n accounting.Nature) *accounting.Nature { return &n }

var hints = map[accounting.VoucherType]Hint{
	accounting.VoucherSales:      {Label: "SALES", DrNature: nature(accounting.NatureAssets), CrNature: nature(accounting.NatureIncome), IsGST: true, Shortcut: "F8"},
	accounting.VoucherPurchase:   {Label: "PURCHASE", DrNature: nature(accounting.NatureExpenses), CrNature: nature(accounting.NatureAssets), IsGST: true, Shortcut: "F9"},
	accounting.VoucherReceipt:    {Label: "RECEIPT", DrNature: nature(accounting.NatureAssets), Shortcut: "F6"},
	accounting.VoucherPayment:    {Label: "PAYMENT", CrNature: nature(accounting.NatureAssets), Shortcut: "F5"},
	accounting.VoucherContra:     {Label: "CONTRA", DrNature: nature(accounting.NatureAssets), CrNature: nature(accounting.NatureAssets), Shortcut: "F4"},
	accounting.VoucherJournal:    {Label: "JOURNAL", Shortcut: "F7"},
	accounting.VoucherCreditNote: {Label: "CREDIT NOTE", DrNature: nature(accounting.NatureIncome), CrNature: nature(accounting.NatureAssets), IsGST: true, Shortcut: "A+F5"},
	accounting.VoucherDebitNote:  {Label: "DEBIT NOTE", DrNature: nature(accounting.NatureAssets), CrNature: nature(accounting.NatureExpenses), IsGST: true, Shortcut: "A+F6"},
}

// NatureHints returns the hint for vt; unknown types fall back to Journal.
func NatureHints(vt accounting.VoucherType) Hint {
	if h, ok := hints[vt]; ok {
		return h
	}
	return hints[accounting.VoucherJournal]
}

// Advise lists rows whose ledger nature differs from the usual one for the voucher type.
func (b *Builder) Advise() []string {
	h := NatureHints(b.voucherType)
	var out []string
	for i, e := range b.entries {
		if e.LedgerID == uuid.Nil || b.chart == nil {
			continue
		}
		want := h.DrNature
		if e.Side == accounting.SideCr {
			want = h.CrNature
		}
		if want == nil {
			continue
		}
		got, err := b.chart.NatureOf(e.LedgerID)
		if err != nil || got == *want {
			continue
		}
		out = append(out, fmt.Sprintf("entry %d: %s vouchers usually %s an %s ledger, got %s",
			i+1, b.voucherType, verb(e.Side), *want, got))
	}
	return out
}

func verb(s accounting.Side) string {
	if s == accounting.SideCr {
		return "credit"
	}
	return "debit"
}
