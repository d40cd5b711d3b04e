package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/accounting/balances"
	"github.com/tallyerp/bookkeeping/internal/accounting/coa"
	"github.com/tallyerp/bookkeeping/internal/accounting/reports"
	"github.com/tallyerp/bookkeeping/internal/accounting/vouchers"
	"github.com/tallyerp/bookkeeping/internal/shared"
)

// CommitObserver is told about every voucher commit attempt.
type CommitObserver interface {
	ObserveCommit(vt accounting.VoucherType, err error)
}

// WarmupScheduler queues a background refill of a company's report cache.
type WarmupScheduler interface {
	ScheduleWarmup(ctx context.Context, companyID uuid.UUID) error
}

// Service coordinates chart maintenance, voucher commits and report projections.
type Service struct {
	repo     Repository
	cache    *Cache
	flight   singleflight.Group
	observer CommitObserver
	warmup   WarmupScheduler
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the store service. cache may be nil.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, logger: slog.Default(), now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithObserver registers a commit observer.
func (s *Service) WithObserver(o CommitObserver) { s.observer = o }

// WithWarmup schedules a cache warmup after every change to the books.
func (s *Service) WithWarmup(w WarmupScheduler) { s.warmup = w }

// WithLogger replaces the default logger.
func (s *Service) WithLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
		if s.cache != nil {
			s.cache.logger = logger
		}
	}
}

func (s *Service) today() time.Time { return accounting.TruncateDate(s.now()) }

// loadChart reads the company's chart, seeding the predefined groups on first use.
func (s *Service) loadChart(ctx context.Context, tx TxRepository, companyID uuid.UUID) (*coa.Chart, error) {
	groups, err := tx.ListGroups(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("store: list groups: %w", err)
	}
	if len(groups) == 0 {
		if err := seed(ctx, tx, companyID); err != nil {
			return nil, err
		}
		if groups, err = tx.ListGroups(ctx, companyID); err != nil {
			return nil, fmt.Errorf("store: list groups: %w", err)
		}
	}
	ledgers, err := tx.ListLedgers(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("store: list ledgers: %w", err)
	}
	return coa.New(groups, ledgers)
}

func seed(ctx context.Context, tx TxRepository, companyID uuid.UUID) error {
	if _, err := tx.BumpBooksVersion(ctx, companyID); err != nil {
		return fmt.Errorf("store: bump books version: %w", err)
	}
	groups, ledgers := coa.SeedGroups(companyID)
	for _, g := range groups {
		if err := tx.SaveGroup(ctx, companyID, g); err != nil {
			return fmt.Errorf("store: seed group %s: %w", g.Name, err)
		}
	}
	for _, l := range ledgers {
		if err := tx.SaveLedger(ctx, companyID, l); err != nil {
			return fmt.Errorf("store: seed ledger %s: %w", l.Name, err)
		}
	}
	return nil
}

// SeedCompany makes sure the predefined groups and ledgers exist.
func (s *Service) SeedCompany(ctx context.Context, sess shared.Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, err := s.loadChart(ctx, tx, sess.CompanyID)
		return err
	})
}

// Companies lists the companies holding books.
func (s *Service) Companies(ctx context.Context) ([]uuid.UUID, error) {
	return s.repo.Companies(ctx)
}

// FetchGroupTree returns the nested chart of accounts.
func (s *Service) FetchGroupTree(ctx context.Context, sess shared.Session) ([]coa.GroupNode, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	var tree []coa.GroupNode
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		chart, err := s.loadChart(ctx, tx, sess.CompanyID)
		if err != nil {
			return err
		}
		tree = chart.Tree()
		return nil
	})
	return tree, err
}

// UpsertGroup creates or updates a user group. System groups are immutable.
func (s *Service) UpsertGroup(ctx context.Context, sess shared.Session, g accounting.LedgerGroup) (accounting.LedgerGroup, error) {
	if err := sess.Validate(); err != nil {
		return accounting.LedgerGroup{}, err
	}
	if g.IsSystem {
		return accounting.LedgerGroup{}, &shared.ConflictError{Reason: "system groups are predefined"}
	}
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	var saved accounting.LedgerGroup
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		chart, err := s.loadChart(ctx, tx, sess.CompanyID)
		if err != nil {
			return err
		}
		if err := chart.UpsertGroup(g); err != nil {
			return err
		}
		saved, _ = chart.Group(g.ID)
		if err := tx.SaveGroup(ctx, sess.CompanyID, saved); err != nil {
			return err
		}
		return bumpVersion(ctx, tx, sess.CompanyID)
	})
	if err != nil {
		return accounting.LedgerGroup{}, err
	}
	s.scheduleWarmup(ctx, sess.CompanyID)
	return saved, nil
}

// UpsertLedger creates or updates a user ledger. System ledgers are immutable.
func (s *Service) UpsertLedger(ctx context.Context, sess shared.Session, l accounting.Ledger) (accounting.Ledger, error) {
	if err := sess.Validate(); err != nil {
		return accounting.Ledger{}, err
	}
	if l.IsSystem {
		return accounting.Ledger{}, &shared.ConflictError{Reason: "system ledgers are predefined"}
	}
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.OpeningBalance.IsZero() && !l.OpeningSide.Valid() {
		l.OpeningSide = accounting.SideDr
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		chart, err := s.loadChart(ctx, tx, sess.CompanyID)
		if err != nil {
			return err
		}
		if err := chart.UpsertLedger(l); err != nil {
			return err
		}
		if err := tx.SaveLedger(ctx, sess.CompanyID, l); err != nil {
			return err
		}
		return bumpVersion(ctx, tx, sess.CompanyID)
	})
	if err != nil {
		return accounting.Ledger{}, err
	}
	s.scheduleWarmup(ctx, sess.CompanyID)
	return l, nil
}

// SearchLedgers matches ledgers by name or alias, optionally within one nature.
func (s *Service) SearchLedgers(ctx context.Context, sess shared.Session, query string, nature *accounting.Nature, limit int) ([]accounting.Ledger, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	if nature != nil && !nature.Valid() {
		return nil, shared.NewValidationError(fmt.Sprintf("nature %q is not supported", *nature))
	}
	var out []accounting.Ledger
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		chart, err := s.loadChart(ctx, tx, sess.CompanyID)
		if err != nil {
			return err
		}
		out = chart.Search(query, nature, limit)
		return nil
	})
	return out, err
}

// NextVoucherNumber previews the number the next voucher of vt will receive.
// The number is only reserved by CommitVoucher.
func (s *Service) NextVoucherNumber(ctx context.Context, sess shared.Session, vt accounting.VoucherType) (string, error) {
	if err := sess.Validate(); err != nil {
		return "", err
	}
	if !vt.Valid() {
		return "", shared.NewValidationError(fmt.Sprintf("voucher type %q is not supported", vt))
	}
	var number string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		seq, err := tx.PeekSequence(ctx, sess.CompanyID, vt)
		if err != nil {
			return fmt.Errorf("store: peek sequence: %w", err)
		}
		number = vt.FormatNumber(seq)
		return nil
	})
	return number, err
}

// CommitVoucher validates and persists v atomically and returns its id.
// A non-empty idempotency key rejects replays with a ConflictError.
func (s *Service) CommitVoucher(ctx context.Context, sess shared.Session, v accounting.Voucher, idempotencyKey string) (uuid.UUID, error) {
	committed, err := s.PostVoucher(ctx, sess, v, idempotencyKey)
	if err != nil {
		return uuid.Nil, err
	}
	return committed.ID, nil
}

// PostVoucher is CommitVoucher returning the stored voucher with its number.
func (s *Service) PostVoucher(ctx context.Context, sess shared.Session, v accounting.Voucher, idempotencyKey string) (accounting.Voucher, error) {
	return s.commit(ctx, sess, v.Type, idempotencyKey, func(context.Context, TxRepository) (accounting.Voucher, error) {
		return v, nil
	})
}

// ReverseVoucher commits the mirror image of voucher id dated on date, or today when zero.
func (s *Service) ReverseVoucher(ctx context.Context, sess shared.Session, id uuid.UUID, date time.Time, idempotencyKey string) (accounting.Voucher, error) {
	if date.IsZero() {
		date = s.today()
	}
	return s.commit(ctx, sess, "", idempotencyKey, func(ctx context.Context, tx TxRepository) (accounting.Voucher, error) {
		original, err := tx.GetVoucher(ctx, sess.CompanyID, id)
		if err != nil {
			return accounting.Voucher{}, err
		}
		return vouchers.Reverse(original, date), nil
	})
}

// GetVoucher returns one committed voucher.
func (s *Service) GetVoucher(ctx context.Context, sess shared.Session, id uuid.UUID) (accounting.Voucher, error) {
	if err := sess.Validate(); err != nil {
		return accounting.Voucher{}, err
	}
	var v accounting.Voucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		v, err = tx.GetVoucher(ctx, sess.CompanyID, id)
		return err
	})
	return v, err
}

// Committer adapts the service to the voucher builder's commit port.
func (s *Service) Committer(sess shared.Session, idempotencyKey string) vouchers.Committer {
	return committerFunc(func(ctx context.Context, v accounting.Voucher) (uuid.UUID, error) {
		return s.CommitVoucher(ctx, sess, v, idempotencyKey)
	})
}

type committerFunc func(ctx context.Context, v accounting.Voucher) (uuid.UUID, error)

func (f committerFunc) CommitVoucher(ctx context.Context, v accounting.Voucher) (uuid.UUID, error) {
	return f(ctx, v)
}

func (s *Service) commit(ctx context.Context, sess shared.Session, vt accounting.VoucherType, key string, prepare func(context.Context, TxRepository) (accounting.Voucher, error)) (accounting.Voucher, error) {
	if err := sess.Validate(); err != nil {
		return accounting.Voucher{}, err
	}
	var committed accounting.Voucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		chart, err := s.loadChart(ctx, tx, sess.CompanyID)
		if err != nil {
			return err
		}
		draft, err := prepare(ctx, tx)
		if err != nil {
			return err
		}
		if draft, err = resolveStockLines(ctx, tx, sess.CompanyID, draft); err != nil {
			return err
		}
		vt = draft.Type
		v, err := vouchers.FromVoucher(chart, draft).Build()
		if err != nil {
			return err
		}
		if v.ReversalOf != nil {
			if err := ensureReversible(ctx, tx, sess.CompanyID, *v.ReversalOf); err != nil {
				return err
			}
		}
		if key != "" {
			if err := tx.ClaimIdempotencyKey(ctx, sess.CompanyID, key); err != nil {
				return err
			}
		}
		seq, err := tx.NextSequence(ctx, sess.CompanyID, v.Type)
		if err != nil {
			return fmt.Errorf("store: next sequence: %w", err)
		}
		v.ID = uuid.New()
		v.Number = v.Type.FormatNumber(seq)
		v.CreatedBy = sess.UserID
		if err := tx.InsertVoucher(ctx, sess.CompanyID, v); err != nil {
			return fmt.Errorf("store: insert voucher: %w", err)
		}
		committed = v
		return bumpVersion(ctx, tx, sess.CompanyID)
	})
	if s.observer != nil {
		s.observer.ObserveCommit(vt, err)
	}
	if err != nil {
		return accounting.Voucher{}, err
	}
	s.scheduleWarmup(ctx, sess.CompanyID)
	s.logger.InfoContext(ctx, "voucher committed",
		slog.String("company_id", sess.CompanyID.String()),
		slog.String("number", committed.Number))
	return committed, nil
}

func ensureReversible(ctx context.Context, tx TxRepository, companyID, originalID uuid.UUID) error {
	if _, err := tx.GetVoucher(ctx, companyID, originalID); err != nil {
		return err
	}
	all, err := tx.ListVouchers(ctx, companyID, time.Time{})
	if err != nil {
		return fmt.Errorf("store: list vouchers: %w", err)
	}
	for _, v := range all {
		if v.ReversalOf != nil && *v.ReversalOf == originalID {
			return &shared.ConflictError{Reason: fmt.Sprintf("voucher %s is already reversed by %s", originalID, v.Number)}
		}
	}
	return nil
}

func bumpVersion(ctx context.Context, tx TxRepository, companyID uuid.UUID) error {
	if _, err := tx.BumpBooksVersion(ctx, companyID); err != nil {
		return fmt.Errorf("store: bump books version: %w", err)
	}
	return nil
}

// booksVersion reads the version cached projections are keyed on.
func (s *Service) booksVersion(ctx context.Context, companyID uuid.UUID) (int64, error) {
	var version int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		version, err = tx.BooksVersion(ctx, companyID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("store: books version: %w", err)
	}
	return version, nil
}

// scheduleWarmup runs after a committed change. Cached projections are already
// orphaned by the version bump inside the transaction.
func (s *Service) scheduleWarmup(ctx context.Context, companyID uuid.UUID) {
	if s.warmup == nil {
		return
	}
	if err := s.warmup.ScheduleWarmup(ctx, companyID); err != nil {
		s.logger.WarnContext(ctx, "schedule report warmup failed",
			slog.String("company_id", companyID.String()), slog.Any("error", err))
	}
}

// ReportQuery selects the data a ledger report covers. Dated reports use Range.To only.
type ReportQuery struct {
	Range       accounting.DateRange
	LedgerID    uuid.UUID
	IncludeBank bool
}

type snapshot struct {
	chart    *coa.Chart
	vouchers []accounting.Voucher
}

func (s *Service) load(ctx context.Context, companyID uuid.UUID, to time.Time) (snapshot, error) {
	var snap snapshot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		chart, err := s.loadChart(ctx, tx, companyID)
		if err != nil {
			return err
		}
		vs, err := tx.ListVouchers(ctx, companyID, to)
		if err != nil {
			return fmt.Errorf("store: list vouchers: %w", err)
		}
		snap = snapshot{chart: chart, vouchers: vs}
		return nil
	})
	return snap, err
}

func (s *Service) normalise(kind reports.Kind, q ReportQuery) (ReportQuery, error) {
	if kind.IsGST() {
		return q, shared.NewValidationError(fmt.Sprintf("report %q is a GST return", kind))
	}
	if q.Range.To.IsZero() {
		q.Range.To = s.today()
	}
	q.Range.To = accounting.TruncateDate(q.Range.To)
	if !q.Range.From.IsZero() {
		q.Range.From = accounting.TruncateDate(q.Range.From)
		if q.Range.From.After(q.Range.To) {
			return q, shared.NewValidationError("from date must not be after to date")
		}
	}
	if kind.Dated() {
		q.Range.From = time.Time{}
	}
	if kind == reports.KindLedgerStatement && q.LedgerID == uuid.Nil {
		return q, shared.NewValidationError("ledger is required for a ledger statement")
	}
	return q, nil
}

func project(snap snapshot, kind reports.Kind, q ReportQuery) (any, error) {
	switch kind {
	case reports.KindTrialBalance, reports.KindBalanceSheet:
		bals, err := balances.LedgerBalances(snap.chart, snap.vouchers, accounting.DateRange{To: q.Range.To})
		if err != nil {
			return nil, err
		}
		if kind == reports.KindTrialBalance {
			return reports.BuildTrialBalance(snap.chart, bals, q.Range.To), nil
		}
		return reports.BuildBalanceSheet(snap.chart, bals, q.Range.To), nil
	case reports.KindProfitLoss:
		bals, err := balances.LedgerBalances(snap.chart, snap.vouchers, q.Range)
		if err != nil {
			return nil, err
		}
		return reports.BuildProfitAndLoss(snap.chart, bals, q.Range), nil
	case reports.KindDayBook:
		return reports.BuildDayBook(snap.chart, snap.vouchers, q.Range), nil
	case reports.KindCashBook:
		return reports.BuildCashBook(snap.chart, snap.vouchers, q.Range, q.IncludeBank)
	case reports.KindLedgerStatement:
		return reports.BuildLedgerStatement(snap.chart, snap.vouchers, q.LedgerID, q.Range)
	}
	return nil, shared.NewValidationError(fmt.Sprintf("report %q is not supported", kind))
}

// BuildReport computes a ledger report without the cache.
func (s *Service) BuildReport(ctx context.Context, sess shared.Session, kind reports.Kind, q ReportQuery) (any, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	q, err := s.normalise(kind, q)
	if err != nil {
		return nil, err
	}
	snap, err := s.load(ctx, sess.CompanyID, q.Range.To)
	if err != nil {
		return nil, err
	}
	return project(snap, kind, q)
}

// FetchReport returns the JSON projection of a ledger report, served from the cache
// when the books have not changed since it was computed.
func (s *Service) FetchReport(ctx context.Context, sess shared.Session, kind reports.Kind, q ReportQuery) (json.RawMessage, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	q, err := s.normalise(kind, q)
	if err != nil {
		return nil, err
	}
	version, err := s.booksVersion(ctx, sess.CompanyID)
	if err != nil {
		return nil, err
	}
	key := reportKey(sess.CompanyID, version, string(kind),
		dateKey(q.Range.From), dateKey(q.Range.To), q.LedgerID.String(), strconv.FormatBool(q.IncludeBank))
	return s.fetch(ctx, key, func(ctx context.Context) (any, error) {
		snap, err := s.load(ctx, sess.CompanyID, q.Range.To)
		if err != nil {
			return nil, err
		}
		return project(snap, kind, q)
	})
}

// FetchGSTReport returns the JSON projection of a monthly GST return.
func (s *Service) FetchGSTReport(ctx context.Context, sess shared.Session, kind reports.Kind, month, year int) (json.RawMessage, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	if !kind.IsGST() {
		return nil, shared.NewValidationError(fmt.Sprintf("report %q is not a GST return", kind))
	}
	period, err := reports.NewReturnPeriod(month, year)
	if err != nil {
		return nil, err
	}
	version, err := s.booksVersion(ctx, sess.CompanyID)
	if err != nil {
		return nil, err
	}
	key := reportKey(sess.CompanyID, version, string(kind), strconv.Itoa(year), strconv.Itoa(month))
	return s.fetch(ctx, key, func(ctx context.Context) (any, error) {
		return s.gstReturn(ctx, sess.CompanyID, kind, period)
	})
}

func (s *Service) gstReturn(ctx context.Context, companyID uuid.UUID, kind reports.Kind, period reports.ReturnPeriod) (any, error) {
	snap, err := s.load(ctx, companyID, period.Range.To)
	if err != nil {
		return nil, err
	}
	if kind == reports.KindGSTR1 {
		return reports.BuildGSTR1(snap.chart, snap.vouchers, period)
	}
	return reports.BuildGSTR3B(snap.chart, snap.vouchers, period)
}

func (s *Service) fetch(ctx context.Context, key string, loader func(context.Context) (any, error)) (json.RawMessage, error) {
	res, err, _ := coalesce(ctx, &s.flight, key, func(ctx context.Context) (any, error) {
		return s.cache.FetchJSON(ctx, key, loader)
	})
	if err != nil {
		return nil, err
	}
	return res.(json.RawMessage), nil
}

func dateKey(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

// ExportCSV writes a trial balance, ledger statement or cash book as CSV.
func (s *Service) ExportCSV(ctx context.Context, sess shared.Session, kind reports.Kind, q ReportQuery, w io.Writer) error {
	switch kind {
	case reports.KindTrialBalance, reports.KindLedgerStatement, reports.KindCashBook:
	default:
		return shared.NewValidationError(fmt.Sprintf("report %q has no CSV export", kind))
	}
	report, err := s.BuildReport(ctx, sess, kind, q)
	if err != nil {
		return err
	}
	switch r := report.(type) {
	case reports.TrialBalance:
		return reports.WriteTrialBalanceCSV(w, r)
	case reports.LedgerStatement:
		return reports.WriteLedgerStatementCSV(w, r)
	case reports.CashBook:
		return reports.WriteLedgerStatementCSV(w, reports.LedgerStatement{LedgerName: "Cash Book", Range: r.Range, Statement: r.Statement})
	}
	return fmt.Errorf("store: unexpected report %T", report)
}

// ExportHSN writes the HSN summary of a month as CSV.
func (s *Service) ExportHSN(ctx context.Context, sess shared.Session, month, year int, w io.Writer) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	period, err := reports.NewReturnPeriod(month, year)
	if err != nil {
		return err
	}
	r, err := s.gstReturn(ctx, sess.CompanyID, reports.KindGSTR1, period)
	if err != nil {
		return err
	}
	return reports.WriteHSNSummaryCSV(w, r.(reports.GSTR1Report))
}

// Overview is the dashboard of a company as of one date.
type Overview struct {
	AsOf          time.Time             `json:"asOf"`
	TrialBalance  reports.TrialBalance  `json:"trialBalance"`
	BalanceSheet  reports.BalanceSheet  `json:"balanceSheet"`
	ProfitAndLoss reports.ProfitAndLoss `json:"profitAndLoss"`
	Integrity     IntegrityReport       `json:"integrity"`
}

// Overview computes the trial balance, balance sheet, year-to-date profit and
// integrity status concurrently from one snapshot of the books.
func (s *Service) Overview(ctx context.Context, sess shared.Session, asOf time.Time) (Overview, error) {
	if err := sess.Validate(); err != nil {
		return Overview{}, err
	}
	if asOf.IsZero() {
		asOf = s.today()
	}
	asOf = accounting.TruncateDate(asOf)
	snap, err := s.load(ctx, sess.CompanyID, asOf)
	if err != nil {
		return Overview{}, err
	}
	bals, err := balances.LedgerBalances(snap.chart, snap.vouchers, accounting.DateRange{To: asOf})
	if err != nil {
		return Overview{}, err
	}
	out := Overview{AsOf: asOf}
	ytd := FinancialYear(asOf)

	var g errgroup.Group
	g.Go(func() error {
		out.TrialBalance = reports.BuildTrialBalance(snap.chart, bals, asOf)
		return nil
	})
	g.Go(func() error {
		out.BalanceSheet = reports.BuildBalanceSheet(snap.chart, bals, asOf)
		return nil
	})
	g.Go(func() error {
		ytdBals, err := balances.LedgerBalances(snap.chart, snap.vouchers, ytd)
		if err != nil {
			return err
		}
		out.ProfitAndLoss = reports.BuildProfitAndLoss(snap.chart, ytdBals, ytd)
		return nil
	})
	g.Go(func() error {
		out.Integrity = inspect(sess.CompanyID, snap)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return out, nil
}

// FinancialYear returns the April to March year containing d, cut off at d.
func FinancialYear(d time.Time) accounting.DateRange {
	year := d.Year()
	if d.Month() < time.April {
		year--
	}
	return accounting.DateRange{From: accounting.Date(year, time.April, 1), To: accounting.TruncateDate(d)}
}

// Warm precomputes the reports most screens open with.
func (s *Service) Warm(ctx context.Context, companyID uuid.UUID) error {
	sess := shared.Session{CompanyID: companyID}
	var errs []error
	for _, kind := range []reports.Kind{reports.KindTrialBalance, reports.KindBalanceSheet} {
		if _, err := s.FetchReport(ctx, sess, kind, ReportQuery{}); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
		}
	}
	ytd := FinancialYear(s.today())
	if _, err := s.FetchReport(ctx, sess, reports.KindProfitLoss, ReportQuery{Range: ytd}); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", reports.KindProfitLoss, err))
	}
	return errors.Join(errs...)
}
