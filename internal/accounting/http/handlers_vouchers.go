package accountinghttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/platform/httpx"
	"github.com/tallyerp/bookkeeping/internal/shared"
)

type nextNumberResponse struct {
	VoucherType accounting.VoucherType `json:"voucherType"`
	Number      string                 `json:"voucherNumber"`
}

func (h *Handler) handleNextNumber(w http.ResponseWriter, r *http.Request) {
	vt := accounting.VoucherType(r.URL.Query().Get("type"))
	number, err := h.service.NextVoucherNumber(r.Context(), sessionOf(r), vt)
	if err != nil {
		h.fail(w, r, "next voucher number", err)
		return
	}
	httpx.JSON(w, http.StatusOK, nextNumberResponse{VoucherType: vt, Number: number})
}

func (h *Handler) handlePostVoucher(w http.ResponseWriter, r *http.Request) {
	var req voucherRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, "decode voucher", bodyRequired(err))
		return
	}
	draft, err := req.toVoucher()
	if err != nil {
		h.fail(w, r, "decode voucher", err)
		return
	}
	v, err := h.service.PostVoucher(r.Context(), sessionOf(r), draft, idempotencyKey(r))
	if err != nil {
		h.fail(w, r, "post voucher", err)
		return
	}
	w.Header().Set("Location", "/api/vouchers/"+v.ID.String())
	httpx.JSON(w, http.StatusCreated, v)
}

func (h *Handler) handleGetVoucher(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "voucher")
	if err != nil {
		h.fail(w, r, "get voucher", err)
		return
	}
	v, err := h.service.GetVoucher(r.Context(), sessionOf(r), id)
	if err != nil {
		h.fail(w, r, "get voucher", err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) handleReverseVoucher(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "voucher")
	if err != nil {
		h.fail(w, r, "reverse voucher", err)
		return
	}
	var req reverseRequest
	if err := h.decode(r, &req); err != nil && err != errEmptyBody {
		h.fail(w, r, "decode reversal", err)
		return
	}
	var date time.Time
	if req.Date != "" {
		date, err = time.Parse(dateLayout, req.Date)
		if err != nil {
			h.fail(w, r, "decode reversal", shared.NewValidationError("date must be formatted YYYY-MM-DD"))
			return
		}
	}
	v, err := h.service.ReverseVoucher(r.Context(), sessionOf(r), id, date, idempotencyKey(r))
	if err != nil {
		h.fail(w, r, "reverse voucher", err)
		return
	}
	w.Header().Set("Location", "/api/vouchers/"+v.ID.String())
	httpx.JSON(w, http.StatusCreated, v)
}

func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
}
