package gst

import (
	"time"

	"github.com/shopspring/decimal"
)

// PartyInvoices groups B2B invoices of one registered buyer.
type PartyInvoices struct {
	PartyName string    `json:"partyName"`
	GSTIN     string    `json:"gstin"`
	Invoices  []Invoice `json:"invoices"`
}

// B2CLInvoice is a large unregistered invoice.
type B2CLInvoice struct {
	VoucherNumber string          `json:"voucherNumber"`
	Date          time.Time       `json:"date"`
	State         string          `json:"state"`
	Taxable       decimal.Decimal `json:"taxableAmount"`
	IGST          decimal.Decimal `json:"igstAmount"`
	IsCredit      bool            `json:"isCredit"`
}

// Summary aggregates taxable value and tax heads.
type Summary struct {
	Taxable decimal.Decimal `json:"taxableValue"`
	CGST    decimal.Decimal `json:"cgst"`
	SGST    decimal.Decimal `json:"sgst"`
	IGST    decimal.Decimal `json:"igst"`
}

func (s *Summary) add(inv Invoice) {
	sign := inv.sign()
	s.Taxable = s.Taxable.Add(inv.Taxable.Mul(sign))
	s.CGST = s.CGST.Add(inv.CGST.Mul(sign))
	s.SGST = s.SGST.Add(inv.SGST.Mul(sign))
	s.IGST = s.IGST.Add(inv.IGST.Mul(sign))
}

// Tax returns the sum of tax heads.
func (s Summary) Tax() decimal.Decimal { return s.CGST.Add(s.SGST).Add(s.IGST) }

// HSNRow aggregates invoice lines sharing an HSN/SAC code.
type HSNRow struct {
	HSNCode      string          `json:"hsnCode"`
	Description  string          `json:"description"`
	Quantity     decimal.Decimal `json:"quantity"`
	TaxableValue decimal.Decimal `json:"taxableValue"`
}

// GSTR1 is the outward supplies return.
type GSTR1 struct {
	B2B  []PartyInvoices `json:"b2b"`
	B2CL []B2CLInvoice   `json:"b2cl"`
	B2CS Summary         `json:"b2cs"`
	HSN  []HSNRow        `json:"hsnSummary"`
}

// BuildGSTR1 buckets outward invoices. Parties and HSN codes keep first-seen order.
func BuildGSTR1(invoices []Invoice) GSTR1 {
	out := GSTR1{B2B: []PartyInvoices{}, B2CL: []B2CLInvoice{}, HSN: []HSNRow{}}
	parties := map[string]int{}
	codes := map[string]int{}
	for _, inv := range invoices {
		switch Classify(inv) {
		case BucketB2B:
			i, ok := parties[inv.GSTIN]
			if !ok {
				i = len(out.B2B)
				parties[inv.GSTIN] = i
				out.B2B = append(out.B2B, PartyInvoices{PartyName: inv.PartyName, GSTIN: inv.GSTIN})
			}
			out.B2B[i].Invoices = append(out.B2B[i].Invoices, inv)
		case BucketB2CL:
			out.B2CL = append(out.B2CL, B2CLInvoice{
				VoucherNumber: inv.VoucherNumber,
				Date:          inv.Date,
				State:         inv.State,
				Taxable:       inv.Taxable,
				IGST:          inv.IGST,
				IsCredit:      inv.IsCredit,
			})
		default:
			out.B2CS.add(inv)
		}
		sign := inv.sign()
		for _, line := range inv.Lines {
			i, ok := codes[line.HSNCode]
			if !ok {
				i = len(out.HSN)
				codes[line.HSNCode] = i
				out.HSN = append(out.HSN, HSNRow{HSNCode: line.HSNCode, Description: line.Description})
			}
			row := &out.HSN[i]
			if row.Description == "" {
				row.Description = line.Description
			}
			row.Quantity = row.Quantity.Add(line.Quantity.Mul(sign))
			row.TaxableValue = row.TaxableValue.Add(line.TaxableValue.Mul(sign))
		}
	}
	return out
}

// TaxHeads carries the three GST heads.
type TaxHeads struct {
	CGST decimal.Decimal `json:"cgst"`
	SGST decimal.Decimal `json:"sgst"`
	IGST decimal.Decimal `json:"igst"`
}

// Total sums the heads.
func (h TaxHeads) Total() decimal.Decimal { return h.CGST.Add(h.SGST).Add(h.IGST) }

// NetPayable is output tax less input credit, per head. Negative heads carry forward.
type NetPayable struct {
	CGST  decimal.Decimal `json:"cgst"`
	SGST  decimal.Decimal `json:"sgst"`
	IGST  decimal.Decimal `json:"igst"`
	Total decimal.Decimal `json:"total"`
}

// GSTR3B is the monthly summary return.
type GSTR3B struct {
	OutwardTaxable decimal.Decimal `json:"outwardTaxable"`
	Outward        TaxHeads        `json:"outward"`
	InwardTaxable  decimal.Decimal `json:"inwardTaxable"`
	ITC            TaxHeads        `json:"itc"`
	NetPayable     NetPayable      `json:"netPayable"`
}

func sum(invoices []Invoice) Summary {
	var s Summary
	for _, inv := range invoices {
		s.add(inv)
	}
	return s
}

// BuildGSTR3B nets outward tax against input tax credit.
func BuildGSTR3B(outward, inward []Invoice) GSTR3B {
	o, in := sum(outward), sum(inward)
	r := GSTR3B{
		OutwardTaxable: o.Taxable,
		Outward:        TaxHeads{CGST: o.CGST, SGST: o.SGST, IGST: o.IGST},
		InwardTaxable:  in.Taxable,
		ITC:            TaxHeads{CGST: in.CGST, SGST: in.SGST, IGST: in.IGST},
	}
	r.NetPayable = NetPayable{
		CGST: r.Outward.CGST.Sub(r.ITC.CGST),
		SGST: r.Outward.SGST.Sub(r.ITC.SGST),
		IGST: r.Outward.IGST.Sub(r.ITC.IGST),
	}
	r.NetPayable.Total = r.NetPayable.CGST.Add(r.NetPayable.SGST).Add(r.NetPayable.IGST)
	return r
}
