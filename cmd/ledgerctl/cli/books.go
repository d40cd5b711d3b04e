package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/accounting/reports"
	"github.com/tallyerp/bookkeeping/internal/accounting/store"
	"github.com/tallyerp/bookkeeping/internal/shared"
)

func migrateCmd(rt func() *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := rt()
			if r == nil || r.Migrate == nil {
				return errNotConfigured
			}
			res, err := r.Migrate()
			if err != nil {
				return err
			}
			if !res.Changed {
				cmd.Printf("schema up to date at version %d\n", res.Version)
				return nil
			}
			cmd.Printf("migrated schema to version %d\n", res.Version)
			return nil
		},
	}
}

func seedCmd(rt func() *Runtime) *cobra.Command {
	var company string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the predefined chart of accounts for a company",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := requireBooks(rt)
			if err != nil {
				return err
			}
			companyID, err := parseCompany(company)
			if err != nil {
				return err
			}
			if err := books.SeedCompany(cmd.Context(), shared.Session{CompanyID: companyID}); err != nil {
				return err
			}
			cmd.Printf("seeded company %s\n", companyID)
			return nil
		},
	}
	companyFlag(cmd, &company)
	return cmd
}

func verifyCmd(rt func() *Runtime) *cobra.Command {
	var (
		company string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Re-check the double-entry invariants of stored books",
		Long:  "Scans every committed voucher and the trial balance. Without --company every company is scanned. Exits non-zero when problems are found.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := requireBooks(rt)
			if err != nil {
				return err
			}
			var companies []uuid.UUID
			if company != "" {
				id, err := parseCompany(company)
				if err != nil {
					return err
				}
				companies = []uuid.UUID{id}
			} else {
				all, err := books.Companies(cmd.Context())
				if err != nil {
					return err
				}
				companies = all
			}

			broken := 0
			results := make([]store.IntegrityReport, 0, len(companies))
			for _, id := range companies {
				report, err := books.VerifyIntegrity(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("verify %s: %w", id, err)
				}
				if !report.OK() {
					broken++
				}
				results = append(results, report)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					status := "ok"
					if !r.OK() {
						status = "BROKEN"
					}
					fmt.Fprintf(out, "%s %s vouchers=%d Dr=%s Cr=%s\n", r.CompanyID, status, r.Vouchers, r.TotalDr.StringFixed(2), r.TotalCr.StringFixed(2))
					for _, p := range r.Problems {
						fmt.Fprintf(out, "  - %s\n", p)
					}
				}
			}
			if broken > 0 {
				return fmt.Errorf("%d of %d companies failed verification", broken, len(results))
			}
			return nil
		},
	}
	companyFlag(cmd, &company)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the reports as JSON")
	return cmd
}

func exportCmd(rt func() *Runtime) *cobra.Command {
	var (
		company     string
		from, to    string
		ledger      string
		includeBank bool
		month, year int
	)
	cmd := &cobra.Command{
		Use:   "export <trial-balance|ledger-statement|cash-book|hsn>",
		Short: "Write a report as CSV to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := requireBooks(rt)
			if err != nil {
				return err
			}
			companyID, err := parseCompany(company)
			if err != nil {
				return err
			}
			sess := shared.Session{CompanyID: companyID}
			if args[0] == "hsn" {
				return books.ExportHSN(cmd.Context(), sess, month, year, cmd.OutOrStdout())
			}
			kind, err := reports.ParseKind(args[0])
			if err != nil {
				return err
			}
			q := store.ReportQuery{IncludeBank: includeBank}
			if q.Range.From, err = parseDate("from", from); err != nil {
				return err
			}
			if q.Range.To, err = parseDate("to", to); err != nil {
				return err
			}
			if ledger != "" {
				if q.LedgerID, err = uuid.Parse(ledger); err != nil {
					return shared.NewValidationError("--ledger " + ledger + " is not a valid UUID")
				}
			}
			return books.ExportCSV(cmd.Context(), sess, kind, q, cmd.OutOrStdout())
		},
	}
	companyFlag(cmd, &company)
	cmd.Flags().StringVar(&from, "from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "end date (YYYY-MM-DD), default today")
	cmd.Flags().StringVar(&ledger, "ledger", "", "ledger UUID for a ledger statement")
	cmd.Flags().BoolVar(&includeBank, "bank", false, "include bank ledgers in the cash book")
	cmd.Flags().IntVar(&month, "month", int(time.Now().Month()), "return month for hsn")
	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "return year for hsn")
	return cmd
}

func requireBooks(rt func() *Runtime) (Books, error) {
	if r := rt(); r != nil && r.Books != nil {
		return r.Books, nil
	}
	return nil, errNotConfigured
}

func parseDate(flag, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, shared.NewValidationError(fmt.Sprintf("--%s %q is not a YYYY-MM-DD date", flag, raw))
	}
	return accounting.TruncateDate(t), nil
}
