// Package vouchers assembles draft entries into balanced vouchers ready for commit.
package vouchers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/accounting/gst"
	"github.com/tallyerp/bookkeeping/internal/shared"
)

// MinEntries is the smallest number of valid entries a voucher may carry.
const MinEntries = 2

// Chart resolves ledgers referenced by entries.
type Chart interface {
	Ledger(id uuid.UUID) (accounting.Ledger, bool)
	NatureOf(id uuid.UUID) (accounting.Nature, error)
}

// Committer persists a built voucher atomically and returns its id.
type Committer interface {
	CommitVoucher(ctx context.Context, v accounting.Voucher) (uuid.UUID, error)
}

// Field names an editable entry column.
type Field string

const (
	FieldLedger  Field = "ledger"
	FieldSide    Field = "side"
	FieldAmount  Field = "amount"
	FieldBillRef Field = "billRef"
)

// Totals summarises both sides of the draft.
type Totals struct {
	TotalDr  decimal.Decimal `json:"totalDr"`
	TotalCr  decimal.Decimal `json:"totalCr"`
	Diff     decimal.Decimal `json:"diff"`
	Balanced bool            `json:"balanced"`
}

// Builder holds a mutable voucher draft. It is not safe for concurrent use.
type Builder struct {
	chart       Chart
	voucherType accounting.VoucherType
	date        time.Time
	narration   string
	party       *uuid.UUID
	gst         *accounting.VoucherGST
	reversalOf  *uuid.UUID
	entries     []accounting.Entry
}

func emptyEntry() accounting.Entry {
	return accounting.Entry{Side: accounting.SideDr, Amount: decimal.Zero}
}

// NewBuilder starts a draft with two blank debit rows.
func NewBuilder(chart Chart, vt accounting.VoucherType) *Builder {
	return &Builder{
		chart:       chart,
		voucherType: vt,
		entries:     []accounting.Entry{emptyEntry(), emptyEntry()},
	}
}

// FromVoucher loads an existing voucher into a draft so it can be revalidated.
func FromVoucher(chart Chart, v accounting.Voucher) *Builder {
	c := v.Clone()
	return &Builder{
		chart:       chart,
		voucherType: c.Type,
		date:        c.Date,
		narration:   c.Narration,
		party:       c.PartyLedgerID,
		gst:         c.GST,
		reversalOf:  c.ReversalOf,
		entries:     c.Entries,
	}
}

// Type returns the voucher type of the draft.
func (b *Builder) Type() accounting.VoucherType { return b.voucherType }

// SetType switches the voucher type, keeping entered rows.
func (b *Builder) SetType(vt accounting.VoucherType) { b.voucherType = vt }

// SetDate sets the voucher date, dropping any clock component.
func (b *Builder) SetDate(d time.Time) {
	if d.IsZero() {
		b.date = time.Time{}
		return
	}
	b.date = accounting.TruncateDate(d)
}

// SetNarration sets the free-text description.
func (b *Builder) SetNarration(n string) { b.narration = strings.TrimSpace(n) }

// SetParty sets or clears the party ledger.
func (b *Builder) SetParty(id *uuid.UUID) {
	if id == nil {
		b.party = nil
		return
	}
	p := *id
	b.party = &p
}

// SetGST sets or clears the GST metadata.
func (b *Builder) SetGST(meta *accounting.VoucherGST) {
	if meta == nil {
		b.gst = nil
		return
	}
	m := *meta
	m.Lines = append([]accounting.InvoiceLine(nil), meta.Lines...)
	b.gst = &m
}

// Entries returns a copy of the draft rows.
func (b *Builder) Entries() []accounting.Entry {
	return append([]accounting.Entry(nil), b.entries...)
}

// AddEntry appends a blank debit row and returns its index.
func (b *Builder) AddEntry() int {
	b.entries = append(b.entries, emptyEntry())
	return len(b.entries) - 1
}

// RemoveEntry drops row i. At least MinEntries rows always remain.
func (b *Builder) RemoveEntry(i int) error {
	if err := b.checkIndex(i); err != nil {
		return err
	}
	if len(b.entries) <= MinEntries {
		return shared.NewValidationError(fmt.Sprintf("minimum %d entries required", MinEntries))
	}
	b.entries = append(b.entries[:i], b.entries[i+1:]...)
	return nil
}

func (b *Builder) checkIndex(i int) error {
	if i < 0 || i >= len(b.entries) {
		return shared.NewValidationError(fmt.Sprintf("entry %d does not exist", i+1))
	}
	return nil
}

// SetEntryField updates one column of row i. Values may be typed or raw form strings.
func (b *Builder) SetEntryField(i int, field Field, value any) error {
	if err := b.checkIndex(i); err != nil {
		return err
	}
	e := &b.entries[i]
	switch field {
	case FieldLedger:
		id, err := parseLedger(value)
		if err != nil {
			return shared.NewValidationError(fmt.Sprintf("entry %d: %v", i+1, err))
		}
		e.LedgerID = id
	case FieldSide:
		side, err := parseSide(value)
		if err != nil {
			return shared.NewValidationError(fmt.Sprintf("entry %d: %v", i+1, err))
		}
		e.Side = side
	case FieldAmount:
		amt, err := parseAmount(value)
		if err != nil {
			return shared.NewValidationError(fmt.Sprintf("entry %d: %v", i+1, err))
		}
		e.Amount = amt
	case FieldBillRef:
		ref, ok := value.(string)
		if !ok {
			return shared.NewValidationError(fmt.Sprintf("entry %d: bill reference must be text", i+1))
		}
		e.BillRef = strings.TrimSpace(ref)
	default:
		return shared.NewValidationError(fmt.Sprintf("entry %d: unknown field %q", i+1, field))
	}
	return nil
}

// ToggleSide flips row i between Dr and Cr.
func (b *Builder) ToggleSide(i int) error {
	if err := b.checkIndex(i); err != nil {
		return err
	}
	b.entries[i].Side = b.entries[i].Side.Opposite()
	return nil
}

func parseLedger(value any) (uuid.UUID, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v, nil
	case *uuid.UUID:
		if v == nil {
			return uuid.Nil, nil
		}
		return *v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return uuid.Nil, nil
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return uuid.Nil, fmt.Errorf("ledger %q is not a valid id", v)
		}
		return id, nil
	}
	return uuid.Nil, fmt.Errorf("unsupported ledger value %T", value)
}

func parseSide(value any) (accounting.Side, error) {
	var side accounting.Side
	switch v := value.(type) {
	case accounting.Side:
		side = v
	case string:
		side = accounting.Side(v)
	default:
		return "", fmt.Errorf("unsupported side value %T", value)
	}
	if !side.Valid() {
		return "", fmt.Errorf("side %q must be Dr or Cr", side)
	}
	return side, nil
}

func parseAmount(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return decimal.Zero, nil
		}
		d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(v), ",", ""))
		if err != nil {
			return decimal.Zero, fmt.Errorf("amount %q is not a number", v)
		}
		return d, nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	}
	return decimal.Zero, fmt.Errorf("unsupported amount value %T", value)
}

// ComputeTotals sums every row on each side, including rows not yet complete.
func (b *Builder) ComputeTotals() Totals {
	var t Totals
	for _, e := range b.entries {
		switch e.Side {
		case accounting.SideDr:
			t.TotalDr = t.TotalDr.Add(e.Amount)
		case accounting.SideCr:
			t.TotalCr = t.TotalCr.Add(e.Amount)
		}
	}
	t.Diff = t.TotalDr.Sub(t.TotalCr).Abs()
	t.Balanced = t.Diff.LessThan(accounting.Tolerance)
	return t
}

func blank(e accounting.Entry) bool {
	return e.LedgerID == uuid.Nil && e.Amount.IsZero()
}

func valid(e accounting.Entry) bool {
	return e.LedgerID != uuid.Nil && e.Amount.IsPositive()
}

// Validate reports every violated rule at once. Completely blank rows are ignored.
func (b *Builder) Validate() error {
	verr := &shared.ValidationError{}
	if !b.voucherType.Valid() {
		verr.Add("voucher type %q is not supported", b.voucherType)
	}
	if b.date.IsZero() {
		verr.Add("date is required")
	}
	count := 0
	for i, e := range b.entries {
		if blank(e) {
			continue
		}
		n := i + 1
		if !e.Side.Valid() {
			verr.Add("entry %d: side %q must be Dr or Cr", n, e.Side)
		}
		switch {
		case e.LedgerID == uuid.Nil:
			verr.Add("entry %d: ledger is required", n)
		case b.chart != nil:
			if _, ok := b.chart.Ledger(e.LedgerID); !ok {
				verr.Add("entry %d: ledger %s not found", n, e.LedgerID)
			}
		}
		switch {
		case e.Amount.IsNegative():
			verr.Add("entry %d: amount must not be negative", n)
		case e.Amount.IsZero():
			verr.Add("entry %d: amount must be greater than zero", n)
		case !e.Amount.Equal(accounting.Round2(e.Amount)):
			verr.Add("entry %d: amount %s has more than 2 decimal places", n, e.Amount)
		}
		if valid(e) {
			count++
		}
	}
	if count < MinEntries {
		verr.Add("at least %d entries with a ledger and an amount are required", MinEntries)
	}
	totals := b.ComputeTotals()
	if !totals.Balanced {
		verr.Add("voucher is not balanced: Dr %s, Cr %s, difference %s",
			totals.TotalDr.StringFixed(2), totals.TotalCr.StringFixed(2), totals.Diff.StringFixed(2))
	}
	if b.party != nil && b.chart != nil {
		if _, ok := b.chart.Ledger(*b.party); !ok {
			verr.Add("party ledger %s not found", *b.party)
		}
	}
	if b.gst != nil {
		if !b.gst.SupplyType.Valid() {
			verr.Add("supply type %q is not supported", b.gst.SupplyType)
		}
		if b.gst.Rate.IsNegative() || b.gst.Rate.GreaterThan(decimal.NewFromInt(100)) {
			verr.Add("gst rate %s must be between 0 and 100", b.gst.Rate)
		}
	}
	return verr.Err()
}

// Build validates the draft and returns an immutable snapshot holding only complete rows.
func (b *Builder) Build() (accounting.Voucher, error) {
	if err := b.Validate(); err != nil {
		return accounting.Voucher{}, err
	}
	v := accounting.Voucher{
		Type:          b.voucherType,
		Date:          b.date,
		Narration:     b.narration,
		PartyLedgerID: b.party,
		GST:           b.gst,
		ReversalOf:    b.reversalOf,
	}
	for _, e := range b.entries {
		if valid(e) {
			v.Entries = append(v.Entries, e)
		}
	}
	return v.Clone(), nil
}

// Commit builds the snapshot and hands it to c. Nothing is sent when validation fails.
func (b *Builder) Commit(ctx context.Context, c Committer) (uuid.UUID, error) {
	v, err := b.Build()
	if err != nil {
		return uuid.Nil, err
	}
	return c.CommitVoucher(ctx, v)
}

// PreviewGST splits the first complete row at rate for display. It never changes the draft.
func (b *Builder) PreviewGST(rate decimal.Decimal) (gst.Split, error) {
	for _, e := range b.entries {
		if valid(e) {
			inter := b.gst != nil && b.gst.InterState
			return gst.Compute(e.Amount, rate, inter)
		}
	}
	return gst.Split{}, shared.NewValidationError("no entry with a ledger and an amount to compute GST on")
}
