package gst

import (
	"github.com/google/uuid"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/shared"
)

// Chart resolves ledgers referenced by voucher entries.
type Chart interface {
	Ledger(id uuid.UUID) (accounting.Ledger, bool)
	NatureOf(id uuid.UUID) (accounting.Nature, error)
}

// InvoicesFromVouchers derives invoices from GST vouchers dated within rng.
// Sales and credit notes are outward supplies; purchases and debit notes are inward.
// Tax heads come from entries on ledgers carrying a GST tax type; the taxable value
// nets entries on income (outward) or expense (inward) ledgers by side, so a discount
// posted against the supply reduces it.
func InvoicesFromVouchers(chart Chart, vouchers []accounting.Voucher, rng accounting.DateRange) (outward, inward []Invoice, err error) {
	outward, inward = []Invoice{}, []Invoice{}
	for _, v := range vouchers {
		if v.GST == nil || !rng.Contains(v.Date) {
			continue
		}
		var isOutward, credit bool
		switch v.Type {
		case accounting.VoucherSales:
			isOutward = true
		case accounting.VoucherCreditNote:
			isOutward, credit = true, true
		case accounting.VoucherPurchase:
		case accounting.VoucherDebitNote:
			credit = true
		default:
			continue
		}
		if v.ReversalOf != nil {
			credit = !credit
		}
		supply := accounting.SideDr
		if isOutward {
			supply = accounting.SideCr
		}
		if credit {
			supply = supply.Opposite()
		}
		inv, err := invoiceOf(chart, v, isOutward, supply)
		if err != nil {
			return nil, nil, err
		}
		inv.IsCredit = credit
		if isOutward {
			outward = append(outward, inv)
		} else {
			inward = append(inward, inv)
		}
	}
	return outward, inward, nil
}

// invoiceOf adds entries posted on the supply side and subtracts the rest.
func invoiceOf(chart Chart, v accounting.Voucher, isOutward bool, supply accounting.Side) (Invoice, error) {
	inv := Invoice{
		VoucherID:     v.ID,
		VoucherNumber: v.Number,
		VoucherType:   v.Type,
		Date:          v.Date,
		State:         v.GST.PlaceOfSupply,
		Lines:         append([]accounting.InvoiceLine(nil), v.GST.Lines...),
	}
	if v.PartyLedgerID != nil {
		party, ok := chart.Ledger(*v.PartyLedgerID)
		if !ok {
			return Invoice{}, &shared.NotFoundError{Kind: "ledger", ID: v.PartyLedgerID.String()}
		}
		inv.PartyName = party.Name
		inv.GSTIN = party.GSTIN()
		if inv.State == "" && party.Party != nil {
			inv.State = party.Party.State
		}
	}
	taxable := accounting.NatureExpenses
	if isOutward {
		taxable = accounting.NatureIncome
	}
	for _, e := range v.Entries {
		l, ok := chart.Ledger(e.LedgerID)
		if !ok {
			return Invoice{}, &shared.NotFoundError{Kind: "ledger", ID: e.LedgerID.String()}
		}
		amount := e.Amount
		if e.Side != supply {
			amount = amount.Neg()
		}
		switch l.TaxType() {
		case accounting.TaxCGST:
			inv.CGST = inv.CGST.Add(amount)
		case accounting.TaxSGST:
			inv.SGST = inv.SGST.Add(amount)
		case accounting.TaxIGST:
			inv.IGST = inv.IGST.Add(amount)
		default:
			nature, err := chart.NatureOf(e.LedgerID)
			if err != nil {
				return Invoice{}, err
			}
			if nature == taxable {
				inv.Taxable = inv.Taxable.Add(amount)
			}
		}
	}
	return inv, nil
}
