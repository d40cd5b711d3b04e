package reports

import (
	"encoding/csv"
	"io"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.MustParse("en-IN"))

// formatAmount renders money with Indian digit grouping and two decimals.
func formatAmount(d decimal.Decimal) string {
	return printer.Sprintf("%.2f", d.Round(2).InexactFloat64())
}

func formatSided(d decimal.Decimal, side string) string {
	if d.IsZero() {
		return ""
	}
	return formatAmount(d) + " " + side
}

// WriteTrialBalanceCSV emits the trial balance rows grouped by group name.
func WriteTrialBalanceCSV(w io.Writer, tb TrialBalance) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Group", "Ledger", "Debit", "Credit"}); err != nil {
		return err
	}
	for _, grp := range tb.Groups {
		for _, row := range grp.Rows {
			if err := writer.Write([]string{grp.Name, row.Name, formatAmount(row.Debit), formatAmount(row.Credit)}); err != nil {
				return err
			}
		}
	}
	if err := writer.Write([]string{"", "Total", formatAmount(tb.TotalDr), formatAmount(tb.TotalCr)}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

// WriteLedgerStatementCSV emits the running statement of a ledger.
func WriteLedgerStatementCSV(w io.Writer, st LedgerStatement) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Date", "Voucher", "Type", "Particulars", "Debit", "Credit", "Balance"}); err != nil {
		return err
	}
	if err := writer.Write([]string{"", "", "", "Opening Balance", "", "", formatSided(st.Opening.Abs(), string(st.OpeningSide))}); err != nil {
		return err
	}
	for _, row := range st.Rows {
		if err := writer.Write([]string{
			row.Date.Format("2006-01-02"),
			row.VoucherNumber,
			string(row.VoucherType),
			row.Particulars,
			formatAmount(row.Debit),
			formatAmount(row.Credit),
			formatSided(row.BalanceAmount, string(row.BalanceSide)),
		}); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{"", "", "", "Closing Balance", formatAmount(st.TotalDebit), formatAmount(st.TotalCredit), formatSided(st.Closing.Abs(), string(st.ClosingSide))}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

// WriteHSNSummaryCSV emits the HSN table of a GSTR-1 return.
func WriteHSNSummaryCSV(w io.Writer, r GSTR1Report) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"HSN/SAC", "Description", "Quantity", "Taxable Value"}); err != nil {
		return err
	}
	for _, row := range r.HSN {
		if err := writer.Write([]string{row.HSNCode, row.Description, row.Quantity.String(), formatAmount(row.TaxableValue)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
