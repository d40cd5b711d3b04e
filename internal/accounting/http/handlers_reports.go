package accountinghttp

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tallyerp/bookkeeping/internal/accounting/reports"
	"github.com/tallyerp/bookkeeping/internal/accounting/store"
	"github.com/tallyerp/bookkeeping/internal/platform/httpx"
	"github.com/tallyerp/bookkeeping/internal/shared"
)

const hsnExport = "hsn"

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	name, asCSV := strings.CutSuffix(chi.URLParam(r, "kind"), ".csv")
	kind, err := reports.ParseKind(name)
	if err != nil {
		h.fail(w, r, "parse report kind", err)
		return
	}
	q, err := parseReportQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, "parse report query", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reportTimeout)
	defer cancel()

	sess := sessionOf(r)
	if asCSV {
		filename := string(kind) + ".csv"
		if !q.Range.To.IsZero() {
			filename = fmt.Sprintf("%s-%s.csv", kind, q.Range.To.Format(dateLayout))
		}
		h.writeCSV(w, r, filename, func(buf *bytes.Buffer) error {
			return h.service.ExportCSV(ctx, sess, kind, q, buf)
		})
		return
	}
	body, err := h.service.FetchReport(ctx, sess, kind, q)
	if err != nil {
		h.fail(w, r, "fetch report", err)
		return
	}
	httpx.RawJSON(w, http.StatusOK, body)
}

func (h *Handler) handleGSTReport(w http.ResponseWriter, r *http.Request) {
	name, asCSV := strings.CutSuffix(chi.URLParam(r, "kind"), ".csv")
	month, year, err := parsePeriod(r.URL.Query())
	if err != nil {
		h.fail(w, r, "parse return period", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reportTimeout)
	defer cancel()

	sess := sessionOf(r)
	if asCSV {
		if name != hsnExport {
			h.fail(w, r, "export gst", shared.NewValidationError(fmt.Sprintf("GST export %q is not supported", name)))
			return
		}
		h.writeCSV(w, r, fmt.Sprintf("hsn-%04d-%02d.csv", year, month), func(buf *bytes.Buffer) error {
			return h.service.ExportHSN(ctx, sess, month, year, buf)
		})
		return
	}
	kind, err := reports.ParseKind(name)
	if err != nil {
		h.fail(w, r, "parse return kind", err)
		return
	}
	body, err := h.service.FetchGSTReport(ctx, sess, kind, month, year)
	if err != nil {
		h.fail(w, r, "fetch gst report", err)
		return
	}
	httpx.RawJSON(w, http.StatusOK, body)
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	var asOf time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			h.fail(w, r, "parse overview date", shared.NewValidationError("date must be formatted YYYY-MM-DD"))
			return
		}
		asOf = d
	}

	ctx, cancel := context.WithTimeout(r.Context(), reportTimeout)
	defer cancel()

	overview, err := h.service.Overview(ctx, sessionOf(r), asOf)
	if err != nil {
		h.fail(w, r, "overview", err)
		return
	}
	httpx.JSON(w, http.StatusOK, overview)
}

func (h *Handler) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.VerifyIntegrity(r.Context(), sessionOf(r).CompanyID)
	if err != nil {
		h.fail(w, r, "verify integrity", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

// writeCSV renders into a pooled buffer first so a failed export still yields a problem response.
func (h *Handler) writeCSV(w http.ResponseWriter, r *http.Request, filename string, render func(*bytes.Buffer) error) {
	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer h.csvPool.Put(buf)

	if err := render(buf); err != nil {
		h.fail(w, r, "export csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// parseReportQuery reads from, to, date, ledger and bank. date is an alias of to.
func parseReportQuery(values url.Values) (store.ReportQuery, error) {
	verr := &shared.ValidationError{}
	var q store.ReportQuery
	parseDate := func(name string) time.Time {
		raw := strings.TrimSpace(values.Get(name))
		if raw == "" {
			return time.Time{}
		}
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			verr.Add("%s %q must be formatted YYYY-MM-DD", name, raw)
		}
		return d
	}
	q.Range.From = parseDate("from")
	q.Range.To = parseDate("to")
	if d := parseDate("date"); !d.IsZero() {
		q.Range.To = d
	}
	if raw := strings.TrimSpace(values.Get("ledger")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			verr.Add("ledger %q is not a valid UUID", raw)
		}
		q.LedgerID = id
	}
	if raw := values.Get("bank"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			verr.Add("bank %q must be true or false", raw)
		}
		q.IncludeBank = b
	}
	return q, verr.Err()
}

func parsePeriod(values url.Values) (month, year int, err error) {
	verr := &shared.ValidationError{}
	month, convErr := strconv.Atoi(values.Get("month"))
	if convErr != nil {
		verr.Add("month is required and must be a number")
	}
	year, convErr = strconv.Atoi(values.Get("year"))
	if convErr != nil {
		verr.Add("year is required and must be a number")
	}
	return month, year, verr.Err()
}
