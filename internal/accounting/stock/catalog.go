// Package stock keeps the inventory masters GST invoice lines refer to:
// units of measure, stock groups and stock items. Quantities are not tracked.
package stock

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/shared"
)

// Unit is a unit of measure such as Nos or Kgs.
type Unit struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Symbol        string    `json:"symbol"`
	DecimalPlaces int32     `json:"decimalPlaces"`
}

// Group nests stock items. A nil parent means the group sits under Primary.
type Group struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name"`
	ParentID *uuid.UUID `json:"parentId,omitempty"`
}

// Taxability says whether an item attracts GST.
type Taxability string

const (
	Taxable  Taxability = "Taxable"
	Exempt   Taxability = "Exempt"
	NilRated Taxability = "Nil Rated"
)

// Valid reports whether t is a known taxability.
func (t Taxability) Valid() bool {
	switch t {
	case Taxable, Exempt, NilRated:
		return true
	}
	return false
}

// Item is a stock item master with its GST classification and opening stock.
type Item struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	GroupID         *uuid.UUID      `json:"groupId,omitempty"`
	UnitID          uuid.UUID       `json:"unitId"`
	HSNCode         string          `json:"hsnCode,omitempty"`
	GSTRate         decimal.Decimal `json:"gstRate"`
	Taxability      Taxability      `json:"taxability"`
	OpeningQuantity decimal.Decimal `json:"openingQuantity"`
	OpeningRate     decimal.Decimal `json:"openingRate"`
	OpeningValue    decimal.Decimal `json:"openingValue"`
}

// Masters is the flat listing of one company's stock masters.
type Masters struct {
	Units  []Unit  `json:"units"`
	Groups []Group `json:"groups"`
	Items  []Item  `json:"items"`
}

var (
	hsnPattern = regexp.MustCompile(`^[0-9]{4}([0-9]{2}){0,2}$`)
	hundred    = decimal.NewFromInt(100)
)

func (u Unit) key() uuid.UUID { return u.ID }
func (u Unit) label() string { return u.Name }
func (g Group) key() uuid.UUID { return g.ID }
func (g Group) label() string { return g.Name }
func (i Item) key() uuid.UUID { return i.ID }
func (i Item) label() string { return i.Name }

type record interface {
	key() uuid.UUID
	label() string
}

// table keeps rows in insertion order with an id index.
type table[T record] struct {
	rows []T
	idx  map[uuid.UUID]int
}

func newTable[T record]() table[T] { return table[T]{idx: map[uuid.UUID]int{}} }

func (t *table[T]) get(id uuid.UUID) (T, bool) {
	i, ok := t.idx[id]
	if !ok {
		var zero T
		return zero, false
	}
	return t.rows[i], true
}

func (t *table[T]) put(row T) {
	if i, ok := t.idx[row.key()]; ok {
		t.rows[i] = row
		return
	}
	t.idx[row.key()] = len(t.rows)
	t.rows = append(t.rows, row)
}

func (t *table[T]) nameTaken(row T) bool {
	name := strings.TrimSpace(row.label())
	for _, other := range t.rows {
		if other.key() != row.key() && strings.EqualFold(strings.TrimSpace(other.label()), name) {
			return true
		}
	}
	return false
}

// Catalog indexes the stock masters of one company.
type Catalog struct {
	units  table[Unit]
	groups table[Group]
	items  table[Item]
}

// New builds a catalog from stored rows, checking references between them.
func New(m Masters) (*Catalog, error) {
	c := &Catalog{units: newTable[Unit](), groups: newTable[Group](), items: newTable[Item]()}
	for _, u := range m.Units {
		c.units.put(u)
	}
	for _, g := range m.Groups {
		c.groups.put(cloneGroup(g))
	}
	for _, g := range c.groups.rows {
		if g.ParentID == nil {
			continue
		}
		if _, ok := c.groups.get(*g.ParentID); !ok {
			return nil, &shared.NotFoundError{Kind: "stock group", ID: g.ParentID.String()}
		}
		if c.cyclic(g.ID, *g.ParentID) {
			return nil, &shared.ConflictError{Reason: fmt.Sprintf("stock group %q is its own ancestor", g.Name)}
		}
	}
	for _, it := range m.Items {
		if _, ok := c.units.get(it.UnitID); !ok {
			return nil, &shared.NotFoundError{Kind: "stock unit", ID: it.UnitID.String()}
		}
		c.items.put(cloneItem(it))
	}
	return c, nil
}

// Masters lists every master in insertion order.
func (c *Catalog) Masters() Masters {
	out := Masters{
		Units:  append([]Unit{}, c.units.rows...),
		Groups: make([]Group, 0, len(c.groups.rows)),
		Items:  make([]Item, 0, len(c.items.rows)),
	}
	for _, g := range c.groups.rows {
		out.Groups = append(out.Groups, cloneGroup(g))
	}
	for _, it := range c.items.rows {
		out.Items = append(out.Items, cloneItem(it))
	}
	return out
}

// Item returns the stock item with id.
func (c *Catalog) Item(id uuid.UUID) (Item, bool) {
	it, ok := c.items.get(id)
	return cloneItem(it), ok
}

// UpsertUnit adds or replaces a unit of measure.
func (c *Catalog) UpsertUnit(u Unit) (Unit, error) {
	u.Name = strings.TrimSpace(u.Name)
	u.Symbol = strings.TrimSpace(u.Symbol)
	verr := &shared.ValidationError{}
	if u.ID == uuid.Nil {
		verr.Add("unit id is required")
	}
	if u.Name == "" {
		verr.Add("unit name is required")
	}
	if u.Symbol == "" {
		verr.Add("unit symbol is required")
	}
	if u.DecimalPlaces < 0 || u.DecimalPlaces > 4 {
		verr.Add("unit decimal places must be between 0 and 4, got %d", u.DecimalPlaces)
	}
	if err := verr.Err(); err != nil {
		return Unit{}, err
	}
	if c.units.nameTaken(u) {
		return Unit{}, &shared.ConflictError{Reason: fmt.Sprintf("unit name %q is already used", u.Name)}
	}
	if prev, ok := c.units.get(u.ID); ok && u.DecimalPlaces < prev.DecimalPlaces {
		for _, it := range c.items.rows {
			if it.UnitID == u.ID && !fits(it.OpeningQuantity, u.DecimalPlaces) {
				return Unit{}, &shared.ConflictError{Reason: fmt.Sprintf("stock item %q holds a quantity finer than %d decimal places", it.Name, u.DecimalPlaces)}
			}
		}
	}
	c.units.put(u)
	return u, nil
}

// UpsertGroup adds or moves a stock group.
func (c *Catalog) UpsertGroup(g Group) (Group, error) {
	g = cloneGroup(g)
	g.Name = strings.TrimSpace(g.Name)
	verr := &shared.ValidationError{}
	if g.ID == uuid.Nil {
		verr.Add("stock group id is required")
	}
	if g.Name == "" {
		verr.Add("stock group name is required")
	}
	if err := verr.Err(); err != nil {
		return Group{}, err
	}
	if c.groups.nameTaken(g) {
		return Group{}, &shared.ConflictError{Reason: fmt.Sprintf("stock group name %q is already used", g.Name)}
	}
	if g.ParentID != nil {
		if _, ok := c.groups.get(*g.ParentID); !ok {
			return Group{}, &shared.NotFoundError{Kind: "stock group", ID: g.ParentID.String()}
		}
		if *g.ParentID == g.ID || c.cyclic(g.ID, *g.ParentID) {
			return Group{}, &shared.ConflictError{Reason: fmt.Sprintf("stock group %q cannot sit under its own sub-group", g.Name)}
		}
	}
	c.groups.put(g)
	return cloneGroup(g), nil
}

// cyclic reports whether id appears among the ancestors of parent.
func (c *Catalog) cyclic(id, parent uuid.UUID) bool {
	for steps, cur := 0, &parent; cur != nil; steps++ {
		if *cur == id || steps > len(c.groups.rows) {
			return true
		}
		g, ok := c.groups.get(*cur)
		if !ok {
			return false
		}
		cur = g.ParentID
	}
	return false
}

// UpsertItem validates and stores a stock item. A zero opening value is
// derived from quantity and rate.
func (c *Catalog) UpsertItem(it Item) (Item, error) {
	it = cloneItem(it)
	it.Name = strings.TrimSpace(it.Name)
	it.HSNCode = strings.TrimSpace(it.HSNCode)
	if it.Taxability == "" {
		it.Taxability = Taxable
	}

	verr := &shared.ValidationError{}
	if it.ID == uuid.Nil {
		verr.Add("stock item id is required")
	}
	if it.Name == "" {
		verr.Add("stock item name is required")
	}
	unit, unitOK := c.units.get(it.UnitID)
	if !unitOK {
		verr.Add("unit %s does not exist", it.UnitID)
	}
	if it.GroupID != nil {
		if _, ok := c.groups.get(*it.GroupID); !ok {
			verr.Add("stock group %s does not exist", *it.GroupID)
		}
	}
	if it.HSNCode != "" && !hsnPattern.MatchString(it.HSNCode) {
		verr.Add("hsn code %q must be 4, 6 or 8 digits", it.HSNCode)
	}
	if !it.Taxability.Valid() {
		verr.Add("taxability %q is not supported", it.Taxability)
	}
	if it.GSTRate.IsNegative() || it.GSTRate.GreaterThan(hundred) {
		verr.Add("gst rate %s must be between 0 and 100", it.GSTRate)
	}
	if it.Taxability != Taxable && !it.GSTRate.IsZero() {
		verr.Add("%s items cannot carry a gst rate", strings.ToLower(string(it.Taxability)))
	}
	if it.OpeningQuantity.IsNegative() {
		verr.Add("opening quantity must not be negative")
	} else if unitOK && !fits(it.OpeningQuantity, unit.DecimalPlaces) {
		verr.Add("opening quantity %s has more than %d decimal places for %s", it.OpeningQuantity, unit.DecimalPlaces, unit.Symbol)
	}
	if it.OpeningRate.IsNegative() {
		verr.Add("opening rate must not be negative")
	}
	if it.OpeningValue.IsNegative() {
		verr.Add("opening value must not be negative")
	} else if !it.OpeningValue.Equal(accounting.Round2(it.OpeningValue)) {
		verr.Add("opening value %s has more than 2 decimal places", it.OpeningValue)
	}
	if err := verr.Err(); err != nil {
		return Item{}, err
	}
	if c.items.nameTaken(it) {
		return Item{}, &shared.ConflictError{Reason: fmt.Sprintf("stock item name %q is already used", it.Name)}
	}
	if it.OpeningValue.IsZero() {
		it.OpeningValue = accounting.Round2(it.OpeningQuantity.Mul(it.OpeningRate))
	}
	c.items.put(it)
	return cloneItem(it), nil
}

// ResolveLines fills the HSN code, rate and description of invoice lines that
// name a stock item and leave those blank.
func (c *Catalog) ResolveLines(lines []accounting.InvoiceLine) ([]accounting.InvoiceLine, error) {
	out := make([]accounting.InvoiceLine, len(lines))
	verr := &shared.ValidationError{}
	for i, line := range lines {
		out[i] = line
		if line.StockItemID == nil {
			continue
		}
		it, ok := c.items.get(*line.StockItemID)
		if !ok {
			verr.Add("invoice line %d: stock item %s does not exist", i+1, *line.StockItemID)
			continue
		}
		if out[i].HSNCode == "" {
			out[i].HSNCode = it.HSNCode
		}
		if out[i].Rate.IsZero() {
			out[i].Rate = it.GSTRate
		}
		if out[i].Description == "" {
			out[i].Description = it.Name
		}
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func fits(q decimal.Decimal, places int32) bool { return q.Equal(q.Truncate(places)) }

func cloneGroup(g Group) Group {
	if g.ParentID != nil {
		id := *g.ParentID
		g.ParentID = &id
	}
	return g
}

func cloneItem(it Item) Item {
	if it.GroupID != nil {
		id := *it.GroupID
		it.GroupID = &id
	}
	return it
}
