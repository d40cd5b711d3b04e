package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/accounting/stock"
	"github.com/tallyerp/bookkeeping/internal/shared"
)

type book struct {
	groups    []accounting.LedgerGroup
	ledgers   []accounting.Ledger
	vouchers  []accounting.Voucher
	sequences map[accounting.VoucherType]int64
	keys      map[string]struct{}
	version   int64
	stock     stock.Masters
}

func (b *book) clone() *book {
	out := &book{
		groups:    append([]accounting.LedgerGroup(nil), b.groups...),
		ledgers:   append([]accounting.Ledger(nil), b.ledgers...),
		vouchers:  make([]accounting.Voucher, 0, len(b.vouchers)),
		sequences: make(map[accounting.VoucherType]int64, len(b.sequences)),
		keys:      make(map[string]struct{}, len(b.keys)),
		version:   b.version,
		stock:     cloneMasters(b.stock),
	}
	for _, v := range b.vouchers {
		out.vouchers = append(out.vouchers, v.Clone())
	}
	for k, v := range b.sequences {
		out.sequences[k] = v
	}
	for k := range b.keys {
		out.keys[k] = struct{}{}
	}
	return out
}

// MemoryRepository keeps books in process memory. Transactions run one at a time
// against a copy that replaces the live state only when fn succeeds.
type MemoryRepository struct {
	mu    sync.Mutex
	books map[uuid.UUID]*book
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{books: map[uuid.UUID]*book{}}
}

// WithTx executes fn against a private copy of every book and publishes it on success.
func (r *MemoryRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return ErrRepositoryNotInitialised
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{base: r.books, dirty: map[uuid.UUID]*book{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for id, b := range tx.dirty {
		r.books[id] = b
	}
	return nil
}

// Companies lists companies with at least one group.
func (r *MemoryRepository) Companies(_ context.Context) ([]uuid.UUID, error) {
	if r == nil {
		return nil, ErrRepositoryNotInitialised
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uuid.UUID
	for id, b := range r.books {
		if len(b.groups) > 0 {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

type memoryTx struct {
	base  map[uuid.UUID]*book
	dirty map[uuid.UUID]*book
}

func (t *memoryTx) read(companyID uuid.UUID) *book {
	if b, ok := t.dirty[companyID]; ok {
		return b
	}
	if b, ok := t.base[companyID]; ok {
		return b
	}
	return &book{}
}

func (t *memoryTx) write(companyID uuid.UUID) *book {
	if b, ok := t.dirty[companyID]; ok {
		return b
	}
	b := t.read(companyID).clone()
	t.dirty[companyID] = b
	return b
}

func (t *memoryTx) ListGroups(_ context.Context, companyID uuid.UUID) ([]accounting.LedgerGroup, error) {
	return append([]accounting.LedgerGroup(nil), t.read(companyID).groups...), nil
}

func (t *memoryTx) ListLedgers(_ context.Context, companyID uuid.UUID) ([]accounting.Ledger, error) {
	return append([]accounting.Ledger(nil), t.read(companyID).ledgers...), nil
}

func (t *memoryTx) SaveGroup(_ context.Context, companyID uuid.UUID, g accounting.LedgerGroup) error {
	b := t.write(companyID)
	for i := range b.groups {
		if b.groups[i].ID == g.ID {
			if b.groups[i].IsSystem {
				return nil
			}
			b.groups[i] = g
			return nil
		}
	}
	b.groups = append(b.groups, g)
	return nil
}

func (t *memoryTx) SaveLedger(_ context.Context, companyID uuid.UUID, l accounting.Ledger) error {
	b := t.write(companyID)
	for i := range b.ledgers {
		if b.ledgers[i].ID == l.ID {
			if b.ledgers[i].IsSystem {
				return nil
			}
			b.ledgers[i] = l
			return nil
		}
	}
	b.ledgers = append(b.ledgers, l)
	return nil
}

func (t *memoryTx) ListVouchers(_ context.Context, companyID uuid.UUID, to time.Time) ([]accounting.Voucher, error) {
	var out []accounting.Voucher
	for _, v := range t.read(companyID).vouchers {
		if !to.IsZero() && v.Date.After(to) {
			continue
		}
		out = append(out, v.Clone())
	}
	return out, nil
}

func (t *memoryTx) GetVoucher(_ context.Context, companyID, id uuid.UUID) (accounting.Voucher, error) {
	for _, v := range t.read(companyID).vouchers {
		if v.ID == id {
			return v.Clone(), nil
		}
	}
	return accounting.Voucher{}, &shared.NotFoundError{Kind: "voucher", ID: id.String()}
}

func (t *memoryTx) InsertVoucher(_ context.Context, companyID uuid.UUID, v accounting.Voucher) error {
	b := t.write(companyID)
	for _, existing := range b.vouchers {
		if existing.ID == v.ID || existing.Number == v.Number {
			return &shared.ConflictError{Reason: fmt.Sprintf("voucher %s already exists", v.Number)}
		}
	}
	b.vouchers = append(b.vouchers, v.Clone())
	return nil
}

func (t *memoryTx) PeekSequence(_ context.Context, companyID uuid.UUID, vt accounting.VoucherType) (int64, error) {
	return t.read(companyID).sequences[vt] + 1, nil
}

func (t *memoryTx) NextSequence(_ context.Context, companyID uuid.UUID, vt accounting.VoucherType) (int64, error) {
	b := t.write(companyID)
	if b.sequences == nil {
		b.sequences = map[accounting.VoucherType]int64{}
	}
	b.sequences[vt]++
	return b.sequences[vt], nil
}

func (t *memoryTx) ClaimIdempotencyKey(_ context.Context, companyID uuid.UUID, key string) error {
	b := t.write(companyID)
	if b.keys == nil {
		b.keys = map[string]struct{}{}
	}
	if _, dup := b.keys[key]; dup {
		return &shared.ConflictError{Reason: shared.ErrIdempotencyConflict.Error()}
	}
	b.keys[key] = struct{}{}
	return nil
}

func (t *memoryTx) BooksVersion(_ context.Context, companyID uuid.UUID) (int64, error) {
	return t.read(companyID).version, nil
}

func (t *memoryTx) BumpBooksVersion(_ context.Context, companyID uuid.UUID) (int64, error) {
	b := t.write(companyID)
	b.version++
	return b.version, nil
}

func cloneMasters(m stock.Masters) stock.Masters {
	// rows are replaced whole, so pointees may be shared
	return stock.Masters{
		Units:  append([]stock.Unit(nil), m.Units...),
		Groups: append([]stock.Group(nil), m.Groups...),
		Items:  append([]stock.Item(nil), m.Items...),
	}
}

func (t *memoryTx) ListStock(_ context.Context, companyID uuid.UUID) (stock.Masters, error) {
	return cloneMasters(t.read(companyID).stock), nil
}

func (t *memoryTx) SaveStockUnit(_ context.Context, companyID uuid.UUID, u stock.Unit) error {
	b := t.write(companyID)
	b.stock.Units = upsertRow(b.stock.Units, u, func(x stock.Unit) uuid.UUID { return x.ID })
	return nil
}

func (t *memoryTx) SaveStockGroup(_ context.Context, companyID uuid.UUID, g stock.Group) error {
	b := t.write(companyID)
	b.stock.Groups = upsertRow(b.stock.Groups, g, func(x stock.Group) uuid.UUID { return x.ID })
	return nil
}

func (t *memoryTx) SaveStockItem(_ context.Context, companyID uuid.UUID, it stock.Item) error {
	b := t.write(companyID)
	b.stock.Items = upsertRow(b.stock.Items, it, func(x stock.Item) uuid.UUID { return x.ID })
	return nil
}

func upsertRow[T any](rows []T, row T, id func(T) uuid.UUID) []T {
	for i := range rows {
		if id(rows[i]) == id(row) {
			rows[i] = row
			return rows
		}
	}
	return append(rows, row)
}
