// Package accountinghttp exposes the bookkeeping store as a JSON API.
package accountinghttp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/accounting/coa"
	"github.com/tallyerp/bookkeeping/internal/accounting/reports"
	"github.com/tallyerp/bookkeeping/internal/accounting/stock"
	"github.com/tallyerp/bookkeeping/internal/accounting/store"
	"github.com/tallyerp/bookkeeping/internal/platform/httpx"
	"github.com/tallyerp/bookkeeping/internal/shared"
)

const reportTimeout = 10 * time.Second

// Service is the store contract used by the handler.
type Service interface {
	SeedCompany(ctx context.Context, sess shared.Session) error
	FetchGroupTree(ctx context.Context, sess shared.Session) ([]coa.GroupNode, error)
	UpsertGroup(ctx context.Context, sess shared.Session, g accounting.LedgerGroup) (accounting.LedgerGroup, error)
	UpsertLedger(ctx context.Context, sess shared.Session, l accounting.Ledger) (accounting.Ledger, error)
	SearchLedgers(ctx context.Context, sess shared.Session, query string, nature *accounting.Nature, limit int) ([]accounting.Ledger, error)
	NextVoucherNumber(ctx context.Context, sess shared.Session, vt accounting.VoucherType) (string, error)
	PostVoucher(ctx context.Context, sess shared.Session, v accounting.Voucher, idempotencyKey string) (accounting.Voucher, error)
	GetVoucher(ctx context.Context, sess shared.Session, id uuid.UUID) (accounting.Voucher, error)
	ReverseVoucher(ctx context.Context, sess shared.Session, id uuid.UUID, date time.Time, idempotencyKey string) (accounting.Voucher, error)
	FetchReport(ctx context.Context, sess shared.Session, kind reports.Kind, q store.ReportQuery) (json.RawMessage, error)
	FetchGSTReport(ctx context.Context, sess shared.Session, kind reports.Kind, month, year int) (json.RawMessage, error)
	ExportCSV(ctx context.Context, sess shared.Session, kind reports.Kind, q store.ReportQuery, w io.Writer) error
	ExportHSN(ctx context.Context, sess shared.Session, month, year int, w io.Writer) error
	Overview(ctx context.Context, sess shared.Session, asOf time.Time) (store.Overview, error)
	VerifyIntegrity(ctx context.Context, companyID uuid.UUID) (store.IntegrityReport, error)
	FetchStock(ctx context.Context, sess shared.Session) (stock.Masters, error)
	UpsertStockUnit(ctx context.Context, sess shared.Session, u stock.Unit) (stock.Unit, error)
	UpsertStockGroup(ctx context.Context, sess shared.Session, g stock.Group) (stock.Group, error)
	UpsertStockItem(ctx context.Context, sess shared.Session, it stock.Item) (stock.Item, error)
}

// Handler serves the chart, voucher and report endpoints.
type Handler struct {
	logger   *slog.Logger
	service  Service
	validate *validator.Validate
	csvPool  sync.Pool
}

// NewHandler constructs the bookkeeping HTTP handler.
func NewHandler(logger *slog.Logger, service Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		logger:   logger,
		service:  service,
		validate: newValidator(),
	}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// MountRoutes registers the API on r. Every route requires a company session.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(RequireSession)

	r.Post("/company/seed", h.handleSeedCompany)

	r.Get("/ledger-groups/tree", h.handleGroupTree)
	r.Post("/ledger-groups", h.handleCreateGroup)
	r.Put("/ledger-groups/{id}", h.handleUpdateGroup)

	r.Get("/ledgers", h.handleSearchLedgers)
	r.Post("/ledgers", h.handleCreateLedger)
	r.Put("/ledgers/{id}", h.handleUpdateLedger)

	r.Get("/stock", h.handleStock)
	r.Post("/stock/units", h.handleSaveUnit)
	r.Put("/stock/units/{id}", h.handleSaveUnit)
	r.Post("/stock/groups", h.handleSaveStockGroup)
	r.Put("/stock/groups/{id}", h.handleSaveStockGroup)
	r.Post("/stock/items", h.handleSaveStockItem)
	r.Put("/stock/items/{id}", h.handleSaveStockItem)

	r.Get("/vouchers/next-number", h.handleNextNumber)
	r.Post("/vouchers", h.handlePostVoucher)
	r.Get("/vouchers/{id}", h.handleGetVoucher)
	r.Post("/vouchers/{id}/reverse", h.handleReverseVoucher)

	r.Get("/reports/{kind}", h.handleReport)
	r.Get("/gst/{kind}", h.handleGSTReport)
	r.Get("/overview", h.handleOverview)
	r.Get("/integrity", h.handleIntegrity)
}

func (h *Handler) handleSeedCompany(w http.ResponseWriter, r *http.Request) {
	sess := sessionOf(r)
	if err := h.service.SeedCompany(r.Context(), sess); err != nil {
		h.fail(w, r, "seed company", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail writes err as a problem response. Server faults are logged; client faults are not.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), op, slog.Any("error", err), slog.String("path", r.URL.Path))
	}
	httpx.RespondError(w, err)
}

func pathID(r *http.Request, kind string) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, shared.NewValidationError(kind + " id " + raw + " is not a valid UUID")
	}
	return id, nil
}
