package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyerp/bookkeeping/internal/accounting/stock"
)

func (r *pgTx) ListStock(ctx context.Context, companyID uuid.UUID) (stock.Masters, error) {
	var m stock.Masters
	units, err := r.tx.Query(ctx, `SELECT id, name, symbol, decimal_places FROM stock_units WHERE company_id=$1 ORDER BY position`, companyID)
	if err != nil {
		return m, err
	}
	for units.Next() {
		var u stock.Unit
		if err := units.Scan(&u.ID, &u.Name, &u.Symbol, &u.DecimalPlaces); err != nil {
			units.Close()
			return m, err
		}
		m.Units = append(m.Units, u)
	}
	units.Close()
	if err := units.Err(); err != nil {
		return m, err
	}

	groups, err := r.tx.Query(ctx, `SELECT id, name, parent_id FROM stock_groups WHERE company_id=$1 ORDER BY position`, companyID)
	if err != nil {
		return m, err
	}
	for groups.Next() {
		var g stock.Group
		if err := groups.Scan(&g.ID, &g.Name, &g.ParentID); err != nil {
			groups.Close()
			return m, err
		}
		m.Groups = append(m.Groups, g)
	}
	groups.Close()
	if err := groups.Err(); err != nil {
		return m, err
	}

	items, err := r.tx.Query(ctx, `SELECT id, name, group_id, unit_id, hsn_code, gst_rate::text, taxability,
	opening_quantity::text, opening_rate::text, opening_value::text
FROM stock_items WHERE company_id=$1 ORDER BY position`, companyID)
	if err != nil {
		return m, err
	}
	defer items.Close()
	for items.Next() {
		var (
			it                      stock.Item
			rate, qty, price, value string
		)
		if err := items.Scan(&it.ID, &it.Name, &it.GroupID, &it.UnitID, &it.HSNCode, &rate, &it.Taxability, &qty, &price, &value); err != nil {
			return m, err
		}
		for _, f := range []struct {
			raw  string
			dest *decimal.Decimal
		}{{rate, &it.GSTRate}, {qty, &it.OpeningQuantity}, {price, &it.OpeningRate}, {value, &it.OpeningValue}} {
			if *f.dest, err = decimal.NewFromString(f.raw); err != nil {
				return m, fmt.Errorf("store: stock item %s: %w", it.ID, err)
			}
		}
		m.Items = append(m.Items, it)
	}
	return m, items.Err()
}

func (r *pgTx) SaveStockUnit(ctx context.Context, companyID uuid.UUID, u stock.Unit) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_units (id, company_id, name, symbol, decimal_places) VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, symbol=EXCLUDED.symbol, decimal_places=EXCLUDED.decimal_places, updated_at=NOW()
WHERE stock_units.company_id=EXCLUDED.company_id`,
		u.ID, companyID, u.Name, u.Symbol, u.DecimalPlaces)
	return nameTaken(err, "unit", u.Name)
}

func (r *pgTx) SaveStockGroup(ctx context.Context, companyID uuid.UUID, g stock.Group) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_groups (id, company_id, name, parent_id) VALUES ($1,$2,$3,$4)
ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, parent_id=EXCLUDED.parent_id, updated_at=NOW()
WHERE stock_groups.company_id=EXCLUDED.company_id`,
		g.ID, companyID, g.Name, g.ParentID)
	return nameTaken(err, "stock group", g.Name)
}

func (r *pgTx) SaveStockItem(ctx context.Context, companyID uuid.UUID, it stock.Item) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_items (id, company_id, name, group_id, unit_id, hsn_code, gst_rate, taxability,
	opening_quantity, opening_rate, opening_value)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, group_id=EXCLUDED.group_id, unit_id=EXCLUDED.unit_id,
	hsn_code=EXCLUDED.hsn_code, gst_rate=EXCLUDED.gst_rate, taxability=EXCLUDED.taxability,
	opening_quantity=EXCLUDED.opening_quantity, opening_rate=EXCLUDED.opening_rate,
	opening_value=EXCLUDED.opening_value, updated_at=NOW()
WHERE stock_items.company_id=EXCLUDED.company_id`,
		it.ID, companyID, it.Name, it.GroupID, it.UnitID, it.HSNCode, it.GSTRate.String(), it.Taxability,
		it.OpeningQuantity.String(), it.OpeningRate.String(), toNumeric(it.OpeningValue))
	return nameTaken(err, "stock item", it.Name)
}
