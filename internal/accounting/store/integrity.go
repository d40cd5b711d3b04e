package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/accounting/balances"
	"github.com/tallyerp/bookkeeping/internal/accounting/reports"
)

// IntegrityReport summarises a scan of every committed voucher of a company.
type IntegrityReport struct {
	CompanyID     uuid.UUID       `json:"companyId"`
	Vouchers      int             `json:"vouchers"`
	Problems      []string        `json:"problems"`
	TotalDr       decimal.Decimal `json:"totalDr"`
	TotalCr       decimal.Decimal `json:"totalCr"`
	TrialBalanced bool            `json:"trialBalanced"`
}

// OK reports whether the scan found nothing wrong.
func (r IntegrityReport) OK() bool { return len(r.Problems) == 0 && r.TrialBalanced }

// VerifyIntegrity re-checks the double-entry invariants over the stored books.
func (s *Service) VerifyIntegrity(ctx context.Context, companyID uuid.UUID) (IntegrityReport, error) {
	snap, err := s.load(ctx, companyID, time.Time{})
	if err != nil {
		return IntegrityReport{}, err
	}
	report := inspect(companyID, snap)
	if !report.OK() {
		s.logger.WarnContext(ctx, "ledger integrity problems found",
			"company_id", companyID.String(), "problems", len(report.Problems))
	}
	return report, nil
}

func inspect(companyID uuid.UUID, snap snapshot) IntegrityReport {
	report := IntegrityReport{CompanyID: companyID, Vouchers: len(snap.vouchers), Problems: []string{}}
	known := true
	for _, v := range snap.vouchers {
		dr, cr := v.Totals()
		if dr.Sub(cr).Abs().GreaterThanOrEqual(accounting.Tolerance) {
			report.Problems = append(report.Problems, fmt.Sprintf("%s: Dr %s does not equal Cr %s", v.Number, dr.StringFixed(2), cr.StringFixed(2)))
		}
		if len(v.Entries) < 2 {
			report.Problems = append(report.Problems, fmt.Sprintf("%s: has %d entries", v.Number, len(v.Entries)))
		}
		for _, e := range v.Entries {
			if _, ok := snap.chart.Ledger(e.LedgerID); !ok {
				report.Problems = append(report.Problems, fmt.Sprintf("%s: unknown ledger %s", v.Number, e.LedgerID))
				known = false
			}
			if !e.Amount.IsPositive() {
				report.Problems = append(report.Problems, fmt.Sprintf("%s: non-positive amount %s", v.Number, e.Amount))
			}
		}
	}
	if !known {
		return report
	}
	bals, err := balances.LedgerBalances(snap.chart, snap.vouchers, accounting.DateRange{})
	if err != nil {
		report.Problems = append(report.Problems, err.Error())
		return report
	}
	tb := reports.BuildTrialBalance(snap.chart, bals, time.Time{})
	report.TotalDr, report.TotalCr = tb.TotalDr, tb.TotalCr
	report.TrialBalanced = tb.Balanced
	if !tb.Balanced {
		report.Problems = append(report.Problems, fmt.Sprintf("trial balance differs by %s", tb.Difference.StringFixed(2)))
	}
	return report
}
