// Package store persists the chart of accounts and committed vouchers and serves
// report projections over them.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/accounting/stock"
)

// ErrRepositoryNotInitialised is returned when a nil repository is used.
var ErrRepositoryNotInitialised = errors.New("store: repository not initialised")

// Repository opens transactions against the book of every company.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Companies(ctx context.Context) ([]uuid.UUID, error)
}

// TxRepository exposes the operations available inside one transaction.
// Every call is scoped to a single company.
type TxRepository interface {
	ListGroups(ctx context.Context, companyID uuid.UUID) ([]accounting.LedgerGroup, error)
	ListLedgers(ctx context.Context, companyID uuid.UUID) ([]accounting.Ledger, error)
	SaveGroup(ctx context.Context, companyID uuid.UUID, g accounting.LedgerGroup) error
	SaveLedger(ctx context.Context, companyID uuid.UUID, l accounting.Ledger) error

	// ListVouchers returns vouchers dated on or before to in commit order. A zero to means all.
	ListVouchers(ctx context.Context, companyID uuid.UUID, to time.Time) ([]accounting.Voucher, error)
	GetVoucher(ctx context.Context, companyID, id uuid.UUID) (accounting.Voucher, error)
	InsertVoucher(ctx context.Context, companyID uuid.UUID, v accounting.Voucher) error

	// PeekSequence returns the next number of a voucher type without consuming it.
	PeekSequence(ctx context.Context, companyID uuid.UUID, vt accounting.VoucherType) (int64, error)
	// NextSequence consumes and returns the next number of a voucher type.
	NextSequence(ctx context.Context, companyID uuid.UUID, vt accounting.VoucherType) (int64, error)

	ClaimIdempotencyKey(ctx context.Context, companyID uuid.UUID, key string) error

	ListStock(ctx context.Context, companyID uuid.UUID) (stock.Masters, error)
	SaveStockUnit(ctx context.Context, companyID uuid.UUID, u stock.Unit) error
	SaveStockGroup(ctx context.Context, companyID uuid.UUID, g stock.Group) error
	SaveStockItem(ctx context.Context, companyID uuid.UUID, it stock.Item) error

	// BooksVersion returns the change counter of a company's books, zero before the first change.
	BooksVersion(ctx context.Context, companyID uuid.UUID) (int64, error)
	// BumpBooksVersion advances the change counter in the same transaction as the change.
	BumpBooksVersion(ctx context.Context, companyID uuid.UUID) (int64, error)
}
