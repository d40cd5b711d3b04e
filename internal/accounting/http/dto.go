package accountinghttp

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/platform/httpx"
	"github.com/tallyerp/bookkeeping/internal/shared"
)

const dateLayout = "2006-01-02"

type groupRequest struct {
	Name               string     `json:"name" validate:"required,max=120"`
	Nature             string     `json:"nature" validate:"required,oneof=assets liabilities income expenses"`
	ParentID           *uuid.UUID `json:"parentId"`
	AffectsGrossProfit bool       `json:"affectsGrossProfit"`
}

func (req groupRequest) toGroup(id uuid.UUID) accounting.LedgerGroup {
	return accounting.LedgerGroup{
		ID:                 id,
		Name:               strings.TrimSpace(req.Name),
		Nature:             accounting.Nature(req.Nature),
		ParentID:           req.ParentID,
		AffectsGrossProfit: req.AffectsGrossProfit,
	}
}

type ledgerRequest struct {
	Name           string                `json:"name" validate:"required,max=120"`
	Alias          string                `json:"alias" validate:"max=120"`
	GroupID        uuid.UUID             `json:"groupId" validate:"required"`
	OpeningBalance decimal.Decimal       `json:"openingBalance"`
	OpeningSide    string                `json:"openingBalanceType" validate:"omitempty,oneof=Dr Cr"`
	Party          *accounting.PartyInfo `json:"party"`
	GST            *accounting.LedgerGST `json:"gst"`
	Bank           *accounting.BankInfo  `json:"bank"`
}

func (req ledgerRequest) toLedger(id uuid.UUID) accounting.Ledger {
	return accounting.Ledger{
		ID:             id,
		Name:           strings.TrimSpace(req.Name),
		Alias:          strings.TrimSpace(req.Alias),
		GroupID:        req.GroupID,
		OpeningBalance: req.OpeningBalance,
		OpeningSide:    accounting.Side(req.OpeningSide),
		Party:          req.Party,
		GST:            req.GST,
		Bank:           req.Bank,
	}
}

type entryRequest struct {
	LedgerID uuid.UUID       `json:"ledgerId" validate:"required"`
	Side     string          `json:"type" validate:"required,oneof=Dr Cr"`
	Amount   decimal.Decimal `json:"amount"`
	BillRef  string          `json:"billRef" validate:"max=64"`
}

type voucherRequest struct {
	Type          string                 `json:"voucherType" validate:"required"`
	Date          string                 `json:"date" validate:"required,datetime=2006-01-02"`
	Narration     string                 `json:"narration" validate:"max=500"`
	PartyLedgerID *uuid.UUID             `json:"partyLedgerId"`
	Entries       []entryRequest         `json:"entries" validate:"required,min=2,dive"`
	GST           *accounting.VoucherGST `json:"gst"`
}

func (req voucherRequest) toVoucher() (accounting.Voucher, error) {
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return accounting.Voucher{}, shared.NewValidationError(fmt.Sprintf("date %q is not a valid date", req.Date))
	}
	v := accounting.Voucher{
		Type:          accounting.VoucherType(req.Type),
		Date:          date,
		Narration:     req.Narration,
		PartyLedgerID: req.PartyLedgerID,
		GST:           req.GST,
		Entries:       make([]accounting.Entry, 0, len(req.Entries)),
	}
	for _, e := range req.Entries {
		v.Entries = append(v.Entries, accounting.Entry{
			LedgerID: e.LedgerID,
			Side:     accounting.Side(e.Side),
			Amount:   e.Amount,
			BillRef:  strings.TrimSpace(e.BillRef),
		})
	}
	return v, nil
}

type reverseRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var errEmptyBody = errors.New("request body is empty")

// decode reads the JSON body into dst and validates it, reporting every failed field.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return &shared.MalformedError{Reason: fmt.Sprintf("malformed request body: %v", err)}
	}
	if err := h.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		verr := &shared.ValidationError{}
		for _, fe := range fieldErrs {
			verr.Add("%s %s", fieldPath(fe), describe(fe))
		}
		return verr
	}
	return nil
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + fe.Param()
	case "min":
		return "must have at least " + fe.Param() + " items"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "datetime":
		return "must be a date formatted YYYY-MM-DD"
	}
	return "is invalid"
}
