package gst

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyerp/bookkeeping/internal/accounting"
)

// Bucket is the GSTR-1 table an outward invoice is reported in.
type Bucket string

const (
	BucketB2B  Bucket = "B2B"
	BucketB2CL Bucket = "B2CL"
	BucketB2CS Bucket = "B2CS"
)

// B2CLThreshold is the invoice value above which unregistered sales are reported individually.
var B2CLThreshold = decimal.NewFromInt(250000)

// Invoice is the tax view of one GST voucher. Amounts are magnitudes; IsCredit marks
// notes that reduce the period totals.
type Invoice struct {
	VoucherID     uuid.UUID                `json:"voucherId"`
	VoucherNumber string                   `json:"voucherNumber"`
	VoucherType   accounting.VoucherType   `json:"voucherType"`
	Date          time.Time                `json:"date"`
	PartyName     string                   `json:"partyName"`
	GSTIN         string                   `json:"gstin,omitempty"`
	State         string                   `json:"state,omitempty"`
	Taxable       decimal.Decimal          `json:"taxableAmount"`
	CGST          decimal.Decimal          `json:"cgstAmount"`
	SGST          decimal.Decimal          `json:"sgstAmount"`
	IGST          decimal.Decimal          `json:"igstAmount"`
	IsCredit      bool                     `json:"isCredit"`
	Lines         []accounting.InvoiceLine `json:"lines,omitempty"`
}

// Total returns taxable value plus all taxes.
func (i Invoice) Total() decimal.Decimal {
	return i.Taxable.Add(i.CGST).Add(i.SGST).Add(i.IGST)
}

// sign is -1 for credit notes so aggregates net them off.
func (i Invoice) sign() decimal.Decimal {
	if i.IsCredit {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// Classify buckets an outward invoice: registered buyers are B2B, large unregistered
// invoices B2CL, the rest B2CS.
func Classify(inv Invoice) Bucket {
	if strings.TrimSpace(inv.GSTIN) != "" {
		return BucketB2B
	}
	if inv.Taxable.Abs().GreaterThan(B2CLThreshold) {
		return BucketB2CL
	}
	return BucketB2CS
}
