package reports

import (
	"time"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/accounting/gst"
	"github.com/tallyerp/bookkeeping/internal/shared"
)

// ReturnPeriod is the tax month a return covers.
type ReturnPeriod struct {
	Month int                  `json:"month"`
	Year  int                  `json:"year"`
	Range accounting.DateRange `json:"range"`
}

// NewReturnPeriod validates month and year.
func NewReturnPeriod(month, year int) (ReturnPeriod, error) {
	verr := &shared.ValidationError{}
	if month < 1 || month > 12 {
		verr.Add("month %d must be between 1 and 12", month)
	}
	if year < 2017 || year > 9999 {
		verr.Add("year %d is outside the GST era", year)
	}
	if err := verr.Err(); err != nil {
		return ReturnPeriod{}, err
	}
	return ReturnPeriod{Month: month, Year: year, Range: accounting.MonthRange(year, time.Month(month))}, nil
}

// GSTR1Report is the outward supplies return of a month.
type GSTR1Report struct {
	Period ReturnPeriod `json:"period"`
	gst.GSTR1
}

// GSTR3BReport is the summary return of a month.
type GSTR3BReport struct {
	Period ReturnPeriod `json:"period"`
	gst.GSTR3B
}

// BuildGSTR1 derives invoices of the month and buckets them.
func BuildGSTR1(chart Chart, vouchers []accounting.Voucher, period ReturnPeriod) (GSTR1Report, error) {
	outward, _, err := gst.InvoicesFromVouchers(chart, vouchers, period.Range)
	if err != nil {
		return GSTR1Report{}, err
	}
	return GSTR1Report{Period: period, GSTR1: gst.BuildGSTR1(outward)}, nil
}

// BuildGSTR3B nets the month's output tax against input credit.
func BuildGSTR3B(chart Chart, vouchers []accounting.Voucher, period ReturnPeriod) (GSTR3BReport, error) {
	outward, inward, err := gst.InvoicesFromVouchers(chart, vouchers, period.Range)
	if err != nil {
		return GSTR3BReport{}, err
	}
	return GSTR3BReport{Period: period, GSTR3B: gst.BuildGSTR3B(outward, inward)}, nil
}
