// Package gst computes tax splits and assembles GSTR-1 and GSTR-3B returns.
package gst

import (
	"github.com/shopspring/decimal"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/shared"
)

var (
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

// Split is the tax due on a taxable value.
type Split struct {
	Taxable    decimal.Decimal `json:"taxable"`
	Rate       decimal.Decimal `json:"rate"`
	InterState bool            `json:"interState"`
	CGST       decimal.Decimal `json:"cgst"`
	SGST       decimal.Decimal `json:"sgst"`
	IGST       decimal.Decimal `json:"igst"`
}

// Tax returns the sum of all heads.
func (s Split) Tax() decimal.Decimal { return s.CGST.Add(s.SGST).Add(s.IGST) }

// Total returns taxable value plus tax.
func (s Split) Total() decimal.Decimal { return s.Taxable.Add(s.Tax()) }

// Compute splits taxable at ratePct. Intra-state supplies pay CGST and SGST at half
// the rate each, every head rounded on its own; inter-state supplies pay IGST.
func Compute(taxable, ratePct decimal.Decimal, interState bool) (Split, error) {
	verr := &shared.ValidationError{}
	if taxable.IsNegative() {
		verr.Add("taxable value must not be negative")
	}
	if ratePct.IsNegative() || ratePct.GreaterThan(hundred) {
		verr.Add("gst rate %s must be between 0 and 100", ratePct)
	}
	if err := verr.Err(); err != nil {
		return Split{}, err
	}
	s := Split{Taxable: taxable, Rate: ratePct, InterState: interState}
	if interState {
		s.IGST = accounting.Round2(taxable.Mul(ratePct).Div(hundred))
		return s, nil
	}
	s.CGST = accounting.Round2(taxable.Mul(ratePct).Div(two).Div(hundred))
	s.SGST = accounting.Round2(taxable.Mul(ratePct).Div(two).Div(hundred))
	return s, nil
}
