package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/platform/db"
	"github.com/tallyerp/bookkeeping/internal/shared"
)

// PostgresRepository persists books in PostgreSQL.
type PostgresRepository struct {
	pool        *pgxpool.Pool
	idempotency *shared.IdempotencyStore
}

// NewPostgresRepository constructs PostgresRepository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool, idempotency: shared.NewIdempotencyStore()}
}

type pgTx struct {
	tx          pgx.Tx
	idempotency *shared.IdempotencyStore
}

// WithTx executes fn within a repeatable-read transaction, rerunning it when
// PostgreSQL aborts it with a serialization failure or deadlock.
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return ErrRepositoryNotInitialised
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx, idempotency: r.idempotency})
	})
}

// Companies lists every company that owns a chart.
func (r *PostgresRepository) Companies(ctx context.Context) ([]uuid.UUID, error) {
	if r == nil || r.pool == nil {
		return nil, ErrRepositoryNotInitialised
	}
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT company_id FROM ledger_groups ORDER BY company_id`)
	if err != nil {
		return nil, fmt.Errorf("store: list companies: %w", err)
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CleanupIdempotencyKeys removes claimed keys older than retention.
func (r *PostgresRepository) CleanupIdempotencyKeys(ctx context.Context, retention time.Duration) error {
	if r == nil || r.pool == nil {
		return ErrRepositoryNotInitialised
	}
	return r.idempotency.Cleanup(ctx, r.pool, retention)
}

func (r *pgTx) ListGroups(ctx context.Context, companyID uuid.UUID) ([]accounting.LedgerGroup, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, name, nature, parent_id, is_system, affects_gross_profit
FROM ledger_groups WHERE company_id=$1 ORDER BY position`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []accounting.LedgerGroup
	for rows.Next() {
		var g accounting.LedgerGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.Nature, &g.ParentID, &g.IsSystem, &g.AffectsGrossProfit); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *pgTx) ListLedgers(ctx context.Context, companyID uuid.UUID) ([]accounting.Ledger, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, name, alias, group_id, opening_balance::text, opening_side, party, gst, bank, is_system
FROM ledgers WHERE company_id=$1 ORDER BY position`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ledgers []accounting.Ledger
	for rows.Next() {
		var (
			l                accounting.Ledger
			opening          string
			party, gst, bank []byte
		)
		if err := rows.Scan(&l.ID, &l.Name, &l.Alias, &l.GroupID, &opening, &l.OpeningSide, &party, &gst, &bank, &l.IsSystem); err != nil {
			return nil, err
		}
		if l.OpeningBalance, err = decimal.NewFromString(opening); err != nil {
			return nil, fmt.Errorf("store: ledger %s opening balance: %w", l.ID, err)
		}
		if err := unmarshalOptional(party, &l.Party); err != nil {
			return nil, err
		}
		if err := unmarshalOptional(gst, &l.GST); err != nil {
			return nil, err
		}
		if err := unmarshalOptional(bank, &l.Bank); err != nil {
			return nil, err
		}
		ledgers = append(ledgers, l)
	}
	return ledgers, rows.Err()
}

func (r *pgTx) SaveGroup(ctx context.Context, companyID uuid.UUID, g accounting.LedgerGroup) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO ledger_groups (id, company_id, name, nature, parent_id, is_system, affects_gross_profit)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, nature=EXCLUDED.nature, parent_id=EXCLUDED.parent_id,
	affects_gross_profit=EXCLUDED.affects_gross_profit, updated_at=NOW()
WHERE ledger_groups.company_id=EXCLUDED.company_id AND NOT ledger_groups.is_system`,
		g.ID, companyID, g.Name, g.Nature, g.ParentID, g.IsSystem, g.AffectsGrossProfit)
	return nameTaken(err, "group", g.Name)
}

func (r *pgTx) SaveLedger(ctx context.Context, companyID uuid.UUID, l accounting.Ledger) error {
	party, err := marshalOptional(l.Party)
	if err != nil {
		return err
	}
	gst, err := marshalOptional(l.GST)
	if err != nil {
		return err
	}
	bank, err := marshalOptional(l.Bank)
	if err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx, `INSERT INTO ledgers (id, company_id, group_id, name, alias, opening_balance, opening_side, party, gst, bank, is_system)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET group_id=EXCLUDED.group_id, name=EXCLUDED.name, alias=EXCLUDED.alias,
	opening_balance=EXCLUDED.opening_balance, opening_side=EXCLUDED.opening_side,
	party=EXCLUDED.party, gst=EXCLUDED.gst, bank=EXCLUDED.bank, updated_at=NOW()
WHERE ledgers.company_id=EXCLUDED.company_id AND NOT ledgers.is_system`,
		l.ID, companyID, l.GroupID, l.Name, l.Alias, toNumeric(l.OpeningBalance), l.OpeningSide, party, gst, bank, l.IsSystem)
	return nameTaken(err, "ledger", l.Name)
}

// nameTaken reports a clash on the per-company name indexes as a conflict.
func nameTaken(err error, kind, name string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return &shared.ConflictError{Reason: fmt.Sprintf("%s name %q is already used", kind, name)}
	}
	return err
}

func (r *pgTx) ListVouchers(ctx context.Context, companyID uuid.UUID, to time.Time) ([]accounting.Voucher, error) {
	var bound any
	if !to.IsZero() {
		bound = to
	}
	rows, err := r.tx.Query(ctx, `SELECT id, number, type, date, narration, party_ledger_id, gst, reversal_of, created_by
FROM vouchers WHERE company_id=$1 AND ($2::date IS NULL OR date <= $2::date) ORDER BY position`, companyID, bound)
	if err != nil {
		return nil, err
	}
	var out []accounting.Voucher
	index := map[uuid.UUID]int{}
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[v.ID] = len(out)
		out = append(out, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	entries, err := r.tx.Query(ctx, `SELECT e.voucher_id, e.ledger_id, e.side, e.amount::text, e.bill_ref
FROM voucher_entries e JOIN vouchers v ON v.id = e.voucher_id
WHERE v.company_id=$1 AND ($2::date IS NULL OR v.date <= $2::date) ORDER BY e.voucher_id, e.line_no`, companyID, bound)
	if err != nil {
		return nil, err
	}
	defer entries.Close()
	for entries.Next() {
		var voucherID uuid.UUID
		e, err := scanEntry(entries, &voucherID)
		if err != nil {
			return nil, err
		}
		if i, ok := index[voucherID]; ok {
			out[i].Entries = append(out[i].Entries, e)
		}
	}
	return out, entries.Err()
}

func (r *pgTx) GetVoucher(ctx context.Context, companyID, id uuid.UUID) (accounting.Voucher, error) {
	row := r.tx.QueryRow(ctx, `SELECT id, number, type, date, narration, party_ledger_id, gst, reversal_of, created_by
FROM vouchers WHERE company_id=$1 AND id=$2`, companyID, id)
	v, err := scanVoucher(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return accounting.Voucher{}, &shared.NotFoundError{Kind: "voucher", ID: id.String()}
		}
		return accounting.Voucher{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT voucher_id, ledger_id, side, amount::text, bill_ref
FROM voucher_entries WHERE voucher_id=$1 ORDER BY line_no`, id)
	if err != nil {
		return accounting.Voucher{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var voucherID uuid.UUID
		e, err := scanEntry(rows, &voucherID)
		if err != nil {
			return accounting.Voucher{}, err
		}
		v.Entries = append(v.Entries, e)
	}
	return v, rows.Err()
}

func (r *pgTx) InsertVoucher(ctx context.Context, companyID uuid.UUID, v accounting.Voucher) error {
	gst, err := marshalOptional(v.GST)
	if err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx, `INSERT INTO vouchers (id, company_id, number, type, date, narration, party_ledger_id, gst, reversal_of, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		v.ID, companyID, v.Number, v.Type, v.Date, v.Narration, v.PartyLedgerID, gst, v.ReversalOf, v.CreatedBy)
	if err != nil {
		return err
	}
	for i, e := range v.Entries {
		if _, err := r.tx.Exec(ctx, `INSERT INTO voucher_entries (voucher_id, line_no, ledger_id, side, amount, bill_ref)
VALUES ($1,$2,$3,$4,$5,$6)`, v.ID, i+1, e.LedgerID, e.Side, toNumeric(e.Amount), e.BillRef); err != nil {
			return err
		}
	}
	return nil
}

func (r *pgTx) PeekSequence(ctx context.Context, companyID uuid.UUID, vt accounting.VoucherType) (int64, error) {
	var next int64
	err := r.tx.QueryRow(ctx, `SELECT next_value FROM voucher_sequences WHERE company_id=$1 AND voucher_type=$2`, companyID, vt).Scan(&next)
	if errors.Is(err, pgx.ErrNoRows) {
		return 1, nil
	}
	return next, err
}

func (r *pgTx) NextSequence(ctx context.Context, companyID uuid.UUID, vt accounting.VoucherType) (int64, error) {
	var next int64
	err := r.tx.QueryRow(ctx, `INSERT INTO voucher_sequences (company_id, voucher_type, next_value) VALUES ($1,$2,2)
ON CONFLICT (company_id, voucher_type) DO UPDATE SET next_value = voucher_sequences.next_value + 1
RETURNING next_value - 1`, companyID, vt).Scan(&next)
	return next, err
}

func (r *pgTx) BooksVersion(ctx context.Context, companyID uuid.UUID) (int64, error) {
	var version int64
	err := r.tx.QueryRow(ctx, `SELECT version FROM books_versions WHERE company_id=$1`, companyID).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return version, err
}

func (r *pgTx) BumpBooksVersion(ctx context.Context, companyID uuid.UUID) (int64, error) {
	var version int64
	err := r.tx.QueryRow(ctx, `INSERT INTO books_versions (company_id, version) VALUES ($1, 1)
ON CONFLICT (company_id) DO UPDATE SET version = books_versions.version + 1
RETURNING version`, companyID).Scan(&version)
	return version, err
}

func (r *pgTx) ClaimIdempotencyKey(ctx context.Context, companyID uuid.UUID, key string) error {
	return r.idempotency.Claim(ctx, r.tx, companyID, key)
}

func scanVoucher(row pgx.Row) (accounting.Voucher, error) {
	var (
		v   accounting.Voucher
		gst []byte
	)
	if err := row.Scan(&v.ID, &v.Number, &v.Type, &v.Date, &v.Narration, &v.PartyLedgerID, &gst, &v.ReversalOf, &v.CreatedBy); err != nil {
		return accounting.Voucher{}, err
	}
	v.Date = accounting.TruncateDate(v.Date)
	if err := unmarshalOptional(gst, &v.GST); err != nil {
		return accounting.Voucher{}, err
	}
	return v, nil
}

func scanEntry(row pgx.Row, voucherID *uuid.UUID) (accounting.Entry, error) {
	var (
		e      accounting.Entry
		amount string
	)
	if err := row.Scan(voucherID, &e.LedgerID, &e.Side, &amount, &e.BillRef); err != nil {
		return accounting.Entry{}, err
	}
	var err error
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return accounting.Entry{}, fmt.Errorf("store: entry amount: %w", err)
	}
	return e, nil
}

func marshalOptional[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalOptional[T any](raw []byte, dest **T) error {
	if len(raw) == 0 {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("store: decode json column: %w", err)
	}
	*dest = &v
	return nil
}

// toNumeric renders an amount for NUMERIC(18,2). Amounts are validated to two places before they get here.
func toNumeric(d decimal.Decimal) string {
	return d.StringFixed(2)
}
