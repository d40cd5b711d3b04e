package accounting

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Nature classifies a ledger group into one of the four accounting natures.
type Nature string

const (
	NatureAssets      Nature = "assets"
	NatureLiabilities Nature = "liabilities"
	NatureIncome      Nature = "income"
	NatureExpenses    Nature = "expenses"
)

// Natures lists every nature in presentation order.
var Natures = []Nature{NatureAssets, NatureLiabilities, NatureIncome, NatureExpenses}

// Valid reports whether n is a known nature.
func (n Nature) Valid() bool {
	switch n {
	case NatureAssets, NatureLiabilities, NatureIncome, NatureExpenses:
		return true
	}
	return false
}

// DebitIncreases reports whether a debit grows balances of this nature.
func (n Nature) DebitIncreases() bool {
	return n == NatureAssets || n == NatureExpenses
}

// Side is the debit or credit side of an entry.
type Side string

const (
	SideDr Side = "Dr"
	SideCr Side = "Cr"
)

// Valid reports whether s is Dr or Cr.
func (s Side) Valid() bool { return s == SideDr || s == SideCr }

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideDr {
		return SideCr
	}
	return SideDr
}

// VoucherType enumerates the Tally voucher kinds.
type VoucherType string

const (
	VoucherSales      VoucherType = "Sales"
	VoucherPurchase   VoucherType = "Purchase"
	VoucherReceipt    VoucherType = "Receipt"
	VoucherPayment    VoucherType = "Payment"
	VoucherContra     VoucherType = "Contra"
	VoucherJournal    VoucherType = "Journal"
	VoucherCreditNote VoucherType = "CreditNote"
	VoucherDebitNote  VoucherType = "DebitNote"
)

// VoucherTypes lists every voucher type.
var VoucherTypes = []VoucherType{
	VoucherSales, VoucherPurchase, VoucherReceipt, VoucherPayment,
	VoucherContra, VoucherJournal, VoucherCreditNote, VoucherDebitNote,
}

var voucherPrefixes = map[VoucherType]string{
	VoucherSales:      "SAL",
	VoucherPurchase:   "PUR",
	VoucherReceipt:    "RCT",
	VoucherPayment:    "PMT",
	VoucherContra:     "CTR",
	VoucherJournal:    "JRN",
	VoucherCreditNote: "CRN",
	VoucherDebitNote:  "DBN",
}

// Valid reports whether t is a known voucher type.
func (t VoucherType) Valid() bool {
	_, ok := voucherPrefixes[t]
	return ok
}

// Prefix returns the numbering prefix for the type.
func (t VoucherType) Prefix() string { return voucherPrefixes[t] }

// FormatNumber renders a voucher number such as SAL/1.
func (t VoucherType) FormatNumber(seq int64) string {
	return fmt.Sprintf("%s/%d", t.Prefix(), seq)
}

// LedgerGroup is a node in the chart of accounts.
type LedgerGroup struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	Nature             Nature     `json:"nature"`
	ParentID           *uuid.UUID `json:"parentId,omitempty"`
	IsSystem           bool       `json:"isSystem"`
	AffectsGrossProfit bool       `json:"affectsGrossProfit"`
}

// PartyInfo carries contact data for debtor and creditor ledgers.
type PartyInfo struct {
	Type    string `json:"type,omitempty"`
	Address string `json:"address,omitempty"`
	State   string `json:"state,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	PAN     string `json:"pan,omitempty"`
}

// TaxType marks a duties ledger as one of the GST heads.
type TaxType string

const (
	TaxCGST TaxType = "CGST"
	TaxSGST TaxType = "SGST"
	TaxIGST TaxType = "IGST"
)

// LedgerGST holds registration and tax configuration of a ledger.
type LedgerGST struct {
	GSTIN            string          `json:"gstin,omitempty"`
	RegistrationType string          `json:"registrationType,omitempty"`
	TaxType          TaxType         `json:"taxType,omitempty"`
	Rate             decimal.Decimal `json:"rate"`
	HSNCode          string          `json:"hsnCode,omitempty"`
	SACCode          string          `json:"sacCode,omitempty"`
}

// BankInfo stores account details of bank ledgers.
type BankInfo struct {
	AccountNumber string `json:"accountNumber,omitempty"`
	BankName      string `json:"bankName,omitempty"`
	IFSC          string `json:"ifsc,omitempty"`
}

// Ledger is a posting account attached to exactly one group.
type Ledger struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Alias          string          `json:"alias,omitempty"`
	GroupID        uuid.UUID       `json:"groupId"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
	OpeningSide    Side            `json:"openingBalanceType"`
	Party          *PartyInfo      `json:"party,omitempty"`
	GST            *LedgerGST      `json:"gst,omitempty"`
	Bank           *BankInfo       `json:"bank,omitempty"`
	IsSystem       bool            `json:"isSystem"`
}

// GSTIN returns the registration number of the ledger or an empty string.
func (l Ledger) GSTIN() string {
	if l.GST == nil {
		return ""
	}
	return l.GST.GSTIN
}

// TaxType returns the GST head the ledger collects, if any.
func (l Ledger) TaxType() TaxType {
	if l.GST == nil {
		return ""
	}
	return l.GST.TaxType
}

// Entry is one debit or credit line of a voucher.
type Entry struct {
	LedgerID uuid.UUID       `json:"ledgerId"`
	Side     Side            `json:"type"`
	Amount   decimal.Decimal `json:"amount"`
	BillRef  string          `json:"billRef,omitempty"`
}

// SupplyType distinguishes GST supply categories.
type SupplyType string

const (
	SupplyB2B    SupplyType = "B2B"
	SupplyB2C    SupplyType = "B2C"
	SupplyExport SupplyType = "Export"
	SupplySEZ    SupplyType = "SEZ"
)

// Valid reports whether st is a known supply type.
func (st SupplyType) Valid() bool {
	switch st {
	case SupplyB2B, SupplyB2C, SupplyExport, SupplySEZ:
		return true
	}
	return false
}

// InvoiceLine describes a taxable line for HSN reporting. A line naming a stock
// item inherits the item's HSN code and rate when it leaves them blank.
type InvoiceLine struct {
	StockItemID  *uuid.UUID      `json:"stockItemId,omitempty"`
	HSNCode      string          `json:"hsnCode"`
	Description  string          `json:"description,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	TaxableValue decimal.Decimal `json:"taxableValue"`
	Rate         decimal.Decimal `json:"rate"`
}

// VoucherGST carries the tax metadata of GST vouchers.
type VoucherGST struct {
	SupplyType    SupplyType      `json:"supplyType"`
	PlaceOfSupply string          `json:"placeOfSupply,omitempty"`
	InterState    bool            `json:"interState"`
	Rate          decimal.Decimal `json:"rate"`
	Lines         []InvoiceLine   `json:"lines,omitempty"`
}

// Voucher is a committed, balanced business transaction.
type Voucher struct {
	ID            uuid.UUID   `json:"id"`
	Number        string      `json:"voucherNumber"`
	Type          VoucherType `json:"voucherType"`
	Date          time.Time   `json:"date"`
	Narration     string      `json:"narration,omitempty"`
	PartyLedgerID *uuid.UUID  `json:"partyLedgerId,omitempty"`
	Entries       []Entry     `json:"entries"`
	GST           *VoucherGST `json:"gst,omitempty"`
	ReversalOf    *uuid.UUID  `json:"reversalOf,omitempty"`
	CreatedBy     uuid.UUID   `json:"createdBy"`
}

// Totals sums both sides of the voucher.
func (v Voucher) Totals() (dr, cr decimal.Decimal) {
	for _, e := range v.Entries {
		switch e.Side {
		case SideDr:
			dr = dr.Add(e.Amount)
		case SideCr:
			cr = cr.Add(e.Amount)
		}
	}
	return dr, cr
}

// Clone returns a deep copy so snapshots never share slices or pointers.
func (v Voucher) Clone() Voucher {
	out := v
	out.Entries = append([]Entry(nil), v.Entries...)
	if v.PartyLedgerID != nil {
		id := *v.PartyLedgerID
		out.PartyLedgerID = &id
	}
	if v.ReversalOf != nil {
		id := *v.ReversalOf
		out.ReversalOf = &id
	}
	if v.GST != nil {
		g := *v.GST
		g.Lines = make([]InvoiceLine, len(v.GST.Lines))
		for i, line := range v.GST.Lines {
			if line.StockItemID != nil {
				id := *line.StockItemID
				line.StockItemID = &id
			}
			g.Lines[i] = line
		}
		out.GST = &g
	}
	return out
}

// Tolerance is the largest Dr/Cr difference still considered balanced.
var Tolerance = decimal.New(1, -2)

// Round2 rounds half away from zero to two places.
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// DateRange bounds report queries. A zero From means since inception.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Before reports whether d falls before the range start.
func (r DateRange) Before(d time.Time) bool {
	return !r.From.IsZero() && d.Before(r.From)
}

// Contains reports whether d lies within the inclusive range.
func (r DateRange) Contains(d time.Time) bool {
	if r.Before(d) {
		return false
	}
	return r.To.IsZero() || !d.After(r.To)
}

// Date builds a UTC calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// TruncateDate drops the clock component of t.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

// MonthRange returns the first and last calendar day of a month.
func MonthRange(year int, month time.Month) DateRange {
	from := Date(year, month, 1)
	return DateRange{From: from, To: from.AddDate(0, 1, -1)}
}
