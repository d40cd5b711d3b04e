package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/accounting/stock"
	"github.com/tallyerp/bookkeeping/internal/shared"
)

func loadCatalog(ctx context.Context, tx TxRepository, companyID uuid.UUID) (*stock.Catalog, error) {
	m, err := tx.ListStock(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("store: list stock: %w", err)
	}
	return stock.New(m)
}

// FetchStock lists the company's units, stock groups and stock items.
func (s *Service) FetchStock(ctx context.Context, sess shared.Session) (stock.Masters, error) {
	if err := sess.Validate(); err != nil {
		return stock.Masters{}, err
	}
	var out stock.Masters
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		catalog, err := loadCatalog(ctx, tx, sess.CompanyID)
		if err != nil {
			return err
		}
		out = catalog.Masters()
		return nil
	})
	return out, err
}

// UpsertStockUnit creates or updates a unit of measure.
func (s *Service) UpsertStockUnit(ctx context.Context, sess shared.Session, u stock.Unit) (stock.Unit, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	var saved stock.Unit
	err := s.mutateStock(ctx, sess, func(ctx context.Context, tx TxRepository, c *stock.Catalog) error {
		var err error
		if saved, err = c.UpsertUnit(u); err != nil {
			return err
		}
		return tx.SaveStockUnit(ctx, sess.CompanyID, saved)
	})
	return saved, err
}

// UpsertStockGroup creates or moves a stock group.
func (s *Service) UpsertStockGroup(ctx context.Context, sess shared.Session, g stock.Group) (stock.Group, error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	var saved stock.Group
	err := s.mutateStock(ctx, sess, func(ctx context.Context, tx TxRepository, c *stock.Catalog) error {
		var err error
		if saved, err = c.UpsertGroup(g); err != nil {
			return err
		}
		return tx.SaveStockGroup(ctx, sess.CompanyID, saved)
	})
	return saved, err
}

// UpsertStockItem creates or updates a stock item.
func (s *Service) UpsertStockItem(ctx context.Context, sess shared.Session, it stock.Item) (stock.Item, error) {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	var saved stock.Item
	err := s.mutateStock(ctx, sess, func(ctx context.Context, tx TxRepository, c *stock.Catalog) error {
		var err error
		if saved, err = c.UpsertItem(it); err != nil {
			return err
		}
		return tx.SaveStockItem(ctx, sess.CompanyID, saved)
	})
	return saved, err
}

func (s *Service) mutateStock(ctx context.Context, sess shared.Session, apply func(context.Context, TxRepository, *stock.Catalog) error) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		catalog, err := loadCatalog(ctx, tx, sess.CompanyID)
		if err != nil {
			return err
		}
		if err := apply(ctx, tx, catalog); err != nil {
			return err
		}
		return bumpVersion(ctx, tx, sess.CompanyID)
	})
	if err != nil {
		return err
	}
	s.scheduleWarmup(ctx, sess.CompanyID)
	return nil
}

// resolveStockLines fills invoice lines of v from the stock items they name.
func resolveStockLines(ctx context.Context, tx TxRepository, companyID uuid.UUID, v accounting.Voucher) (accounting.Voucher, error) {
	if v.GST == nil || !namesStockItem(v.GST.Lines) {
		return v, nil
	}
	catalog, err := loadCatalog(ctx, tx, companyID)
	if err != nil {
		return v, err
	}
	lines, err := catalog.ResolveLines(v.GST.Lines)
	if err != nil {
		return v, err
	}
	v = v.Clone()
	v.GST.Lines = lines
	return v, nil
}

func namesStockItem(lines []accounting.InvoiceLine) bool {
	for _, l := range lines {
		if l.StockItemID != nil {
			return true
		}
	}
	return false
}
