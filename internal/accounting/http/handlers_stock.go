package accountinghttp

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyerp/bookkeeping/internal/accounting/stock"
	"github.com/tallyerp/bookkeeping/internal/platform/httpx"
)

type unitRequest struct {
	Name          string `json:"name" validate:"required,max=60"`
	Symbol        string `json:"symbol" validate:"required,max=20"`
	DecimalPlaces int32  `json:"decimalPlaces" validate:"min=0,max=4"`
}

type stockGroupRequest struct {
	Name     string     `json:"name" validate:"required,max=120"`
	ParentID *uuid.UUID `json:"parentId"`
}

type stockItemRequest struct {
	Name            string          `json:"name" validate:"required,max=120"`
	GroupID         *uuid.UUID      `json:"groupId"`
	UnitID          uuid.UUID       `json:"unitId" validate:"required"`
	HSNCode         string          `json:"hsnCode" validate:"omitempty,numeric,max=8"`
	GSTRate         decimal.Decimal `json:"gstRate"`
	Taxability      string          `json:"taxability" validate:"omitempty,oneof=Taxable Exempt 'Nil Rated'"`
	OpeningQuantity decimal.Decimal `json:"openingQuantity"`
	OpeningRate     decimal.Decimal `json:"openingRate"`
	OpeningValue    decimal.Decimal `json:"openingValue"`
}

func (req stockItemRequest) toItem(id uuid.UUID) stock.Item {
	return stock.Item{
		ID:              id,
		Name:            strings.TrimSpace(req.Name),
		GroupID:         req.GroupID,
		UnitID:          req.UnitID,
		HSNCode:         strings.TrimSpace(req.HSNCode),
		GSTRate:         req.GSTRate,
		Taxability:      stock.Taxability(req.Taxability),
		OpeningQuantity: req.OpeningQuantity,
		OpeningRate:     req.OpeningRate,
		OpeningValue:    req.OpeningValue,
	}
}

func (h *Handler) handleStock(w http.ResponseWriter, r *http.Request) {
	masters, err := h.service.FetchStock(r.Context(), sessionOf(r))
	if err != nil {
		h.fail(w, r, "fetch stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, masters)
}

// stockTarget reads the optional {id} of a stock route: absent on create.
func (h *Handler) stockTarget(w http.ResponseWriter, r *http.Request, op string) (uuid.UUID, int, bool) {
	if r.Method == http.MethodPost {
		return uuid.Nil, http.StatusCreated, true
	}
	id, err := pathID(r, op)
	if err != nil {
		h.fail(w, r, "update "+op, err)
		return uuid.Nil, 0, false
	}
	return id, http.StatusOK, true
}

func (h *Handler) handleSaveUnit(w http.ResponseWriter, r *http.Request) {
	id, status, ok := h.stockTarget(w, r, "unit")
	if !ok {
		return
	}
	var req unitRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, "decode unit", bodyRequired(err))
		return
	}
	saved, err := h.service.UpsertStockUnit(r.Context(), sessionOf(r), stock.Unit{
		ID: id, Name: strings.TrimSpace(req.Name), Symbol: strings.TrimSpace(req.Symbol), DecimalPlaces: req.DecimalPlaces,
	})
	if err != nil {
		h.fail(w, r, "upsert unit", err)
		return
	}
	httpx.JSON(w, status, saved)
}

func (h *Handler) handleSaveStockGroup(w http.ResponseWriter, r *http.Request) {
	id, status, ok := h.stockTarget(w, r, "stock group")
	if !ok {
		return
	}
	var req stockGroupRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, "decode stock group", bodyRequired(err))
		return
	}
	saved, err := h.service.UpsertStockGroup(r.Context(), sessionOf(r), stock.Group{
		ID: id, Name: strings.TrimSpace(req.Name), ParentID: req.ParentID,
	})
	if err != nil {
		h.fail(w, r, "upsert stock group", err)
		return
	}
	httpx.JSON(w, status, saved)
}

func (h *Handler) handleSaveStockItem(w http.ResponseWriter, r *http.Request) {
	id, status, ok := h.stockTarget(w, r, "stock item")
	if !ok {
		return
	}
	var req stockItemRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, "decode stock item", bodyRequired(err))
		return
	}
	saved, err := h.service.UpsertStockItem(r.Context(), sessionOf(r), req.toItem(id))
	if err != nil {
		h.fail(w, r, "upsert stock item", err)
		return
	}
	httpx.JSON(w, status, saved)
}
