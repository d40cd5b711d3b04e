package accountinghttp

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/platform/httpx"
	"github.com/tallyerp/bookkeeping/internal/shared"
)

func (h *Handler) handleGroupTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.FetchGroupTree(r.Context(), sessionOf(r))
	if err != nil {
		h.fail(w, r, "fetch group tree", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tree)
}

func (h *Handler) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	h.saveGroup(w, r, uuid.Nil, http.StatusCreated)
}

func (h *Handler) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "group")
	if err != nil {
		h.fail(w, r, "update group", err)
		return
	}
	h.saveGroup(w, r, id, http.StatusOK)
}

func (h *Handler) saveGroup(w http.ResponseWriter, r *http.Request, id uuid.UUID, status int) {
	var req groupRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, "decode group", bodyRequired(err))
		return
	}
	saved, err := h.service.UpsertGroup(r.Context(), sessionOf(r), req.toGroup(id))
	if err != nil {
		h.fail(w, r, "upsert group", err)
		return
	}
	httpx.JSON(w, status, saved)
}

func (h *Handler) handleSearchLedgers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var nature *accounting.Nature
	if raw := strings.TrimSpace(query.Get("nature")); raw != "" {
		n := accounting.Nature(strings.ToLower(raw))
		nature = &n
	}
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.fail(w, r, "search ledgers", shared.NewValidationError("limit must be a number"))
			return
		}
		limit = n
	}
	ledgers, err := h.service.SearchLedgers(r.Context(), sessionOf(r), query.Get("q"), nature, limit)
	if err != nil {
		h.fail(w, r, "search ledgers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ledgers)
}

func (h *Handler) handleCreateLedger(w http.ResponseWriter, r *http.Request) {
	h.saveLedger(w, r, uuid.Nil, http.StatusCreated)
}

func (h *Handler) handleUpdateLedger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "ledger")
	if err != nil {
		h.fail(w, r, "update ledger", err)
		return
	}
	h.saveLedger(w, r, id, http.StatusOK)
}

func (h *Handler) saveLedger(w http.ResponseWriter, r *http.Request, id uuid.UUID, status int) {
	var req ledgerRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, "decode ledger", bodyRequired(err))
		return
	}
	saved, err := h.service.UpsertLedger(r.Context(), sessionOf(r), req.toLedger(id))
	if err != nil {
		h.fail(w, r, "upsert ledger", err)
		return
	}
	httpx.JSON(w, status, saved)
}

func bodyRequired(err error) error {
	if err == errEmptyBody {
		return shared.NewValidationError(errEmptyBody.Error())
	}
	return err
}
