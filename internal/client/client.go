// Package client talks to the bookkeeping API over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/accounting/coa"
	"github.com/tallyerp/bookkeeping/internal/accounting/reports"
	"github.com/tallyerp/bookkeeping/internal/platform/httpx"
	"github.com/tallyerp/bookkeeping/internal/shared"
)

const (
	headerCompanyID      = "X-Company-ID"
	headerUserID         = "X-User-ID"
	headerIdempotencyKey = "Idempotency-Key"
)

// Client wraps calls to the API for one session.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    shared.Session
	breaker    *gobreaker.CircuitBreaker
	trip       breakerConfig
}

type breakerConfig struct {
	failures uint32
	cooldown time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBreaker opens the circuit after failures consecutive server or network faults
// and keeps it open for cooldown.
func WithBreaker(failures uint32, cooldown time.Duration) Option {
	return func(c *Client) {
		if failures > 0 {
			c.trip.failures = failures
		}
		if cooldown > 0 {
			c.trip.cooldown = cooldown
		}
	}
}

// New constructs a client bound to sess. baseURL points at the API root, e.g. http://host/api.
func New(baseURL string, sess shared.Session, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		session: sess,
		trip:    breakerConfig{failures: 5, cooldown: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "bookkeeping-api",
		MaxRequests: 1,
		Timeout:     c.trip.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.trip.failures
		},
		IsSuccessful: func(err error) bool { return !isFault(err) },
	})
	return c
}

// isFault reports whether err says the API is unhealthy. Domain rejections and
// requests cancelled by the caller do not count.
func isFault(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var te *shared.TransportError
	if errors.As(err, &te) {
		return te.StatusCode == 0 || te.StatusCode >= http.StatusInternalServerError
	}
	return true
}

// Session returns the session the client acts for.
func (c *Client) Session() shared.Session { return c.session }

// FetchGroupTree returns the nested chart of accounts.
func (c *Client) FetchGroupTree(ctx context.Context) ([]coa.GroupNode, error) {
	var out []coa.GroupNode
	err := c.do(ctx, "fetch group tree", http.MethodGet, "/ledger-groups/tree", nil, nil, &out)
	return out, err
}

// UpsertGroup creates a group when its id is nil, otherwise updates it.
func (c *Client) UpsertGroup(ctx context.Context, g accounting.LedgerGroup) (accounting.LedgerGroup, error) {
	body := map[string]any{
		"name":               g.Name,
		"nature":             g.Nature,
		"parentId":           g.ParentID,
		"affectsGrossProfit": g.AffectsGrossProfit,
	}
	method, path := http.MethodPost, "/ledger-groups"
	if g.ID != uuid.Nil {
		method, path = http.MethodPut, "/ledger-groups/"+g.ID.String()
	}
	var out accounting.LedgerGroup
	err := c.do(ctx, "upsert group", method, path, body, nil, &out)
	return out, err
}

// UpsertLedger creates a ledger when its id is nil, otherwise updates it.
func (c *Client) UpsertLedger(ctx context.Context, l accounting.Ledger) (accounting.Ledger, error) {
	body := map[string]any{
		"name":               l.Name,
		"alias":              l.Alias,
		"groupId":            l.GroupID,
		"openingBalance":     l.OpeningBalance,
		"openingBalanceType": l.OpeningSide,
		"party":              l.Party,
		"gst":                l.GST,
		"bank":               l.Bank,
	}
	method, path := http.MethodPost, "/ledgers"
	if l.ID != uuid.Nil {
		method, path = http.MethodPut, "/ledgers/"+l.ID.String()
	}
	var out accounting.Ledger
	err := c.do(ctx, "upsert ledger", method, path, body, nil, &out)
	return out, err
}

// SearchLedgers matches ledgers by name or alias, optionally within one nature.
func (c *Client) SearchLedgers(ctx context.Context, query string, nature *accounting.Nature) ([]accounting.Ledger, error) {
	values := url.Values{}
	values.Set("q", query)
	if nature != nil {
		values.Set("nature", string(*nature))
	}
	var out []accounting.Ledger
	err := c.do(ctx, "search ledgers", http.MethodGet, "/ledgers?"+values.Encode(), nil, nil, &out)
	return out, err
}

// NextVoucherNumber previews the next number of vt.
func (c *Client) NextVoucherNumber(ctx context.Context, vt accounting.VoucherType) (string, error) {
	var out struct {
		Number string `json:"voucherNumber"`
	}
	err := c.do(ctx, "next voucher number", http.MethodGet, "/vouchers/next-number?type="+url.QueryEscape(string(vt)), nil, nil, &out)
	return out.Number, err
}

// CommitVoucher posts v and returns its id. The key, when set, makes the call idempotent.
func (c *Client) CommitVoucher(ctx context.Context, v accounting.Voucher, idempotencyKey string) (uuid.UUID, error) {
	committed, err := c.PostVoucher(ctx, v, idempotencyKey)
	return committed.ID, err
}

// PostVoucher posts v and returns the stored voucher with its number.
func (c *Client) PostVoucher(ctx context.Context, v accounting.Voucher, idempotencyKey string) (accounting.Voucher, error) {
	entries := make([]map[string]any, 0, len(v.Entries))
	for _, e := range v.Entries {
		entries = append(entries, map[string]any{
			"ledgerId": e.LedgerID,
			"type":     e.Side,
			"amount":   e.Amount,
			"billRef":  e.BillRef,
		})
	}
	body := map[string]any{
		"voucherType":   v.Type,
		"date":          v.Date.Format("2006-01-02"),
		"narration":     v.Narration,
		"partyLedgerId": v.PartyLedgerID,
		"entries":       entries,
		"gst":           v.GST,
	}
	var out accounting.Voucher
	err := c.do(ctx, "commit voucher", http.MethodPost, "/vouchers", body, idempotencyHeader(idempotencyKey), &out)
	return out, err
}

// ReverseVoucher posts the reversal of voucher id dated date, or today when date is zero.
func (c *Client) ReverseVoucher(ctx context.Context, id uuid.UUID, date time.Time, idempotencyKey string) (accounting.Voucher, error) {
	body := map[string]any{}
	if !date.IsZero() {
		body["date"] = date.Format("2006-01-02")
	}
	var out accounting.Voucher
	err := c.do(ctx, "reverse voucher", http.MethodPost, "/vouchers/"+id.String()+"/reverse", body, idempotencyHeader(idempotencyKey), &out)
	return out, err
}

// ReportQuery mirrors the report endpoint parameters.
type ReportQuery struct {
	Range       accounting.DateRange
	LedgerID    uuid.UUID
	IncludeBank bool
}

func (q ReportQuery) values() url.Values {
	values := url.Values{}
	if !q.Range.From.IsZero() {
		values.Set("from", q.Range.From.Format("2006-01-02"))
	}
	if !q.Range.To.IsZero() {
		values.Set("to", q.Range.To.Format("2006-01-02"))
	}
	if q.LedgerID != uuid.Nil {
		values.Set("ledger", q.LedgerID.String())
	}
	if q.IncludeBank {
		values.Set("bank", "true")
	}
	return values
}

// FetchReport returns the raw JSON projection of a ledger report.
func (c *Client) FetchReport(ctx context.Context, kind reports.Kind, q ReportQuery) (json.RawMessage, error) {
	var out json.RawMessage
	path := "/reports/" + url.PathEscape(string(kind))
	if encoded := q.values().Encode(); encoded != "" {
		path += "?" + encoded
	}
	err := c.do(ctx, "fetch report", http.MethodGet, path, nil, nil, &out)
	return out, err
}

// FetchGSTReport returns the raw JSON projection of a monthly GST return.
func (c *Client) FetchGSTReport(ctx context.Context, kind reports.Kind, month, year int) (json.RawMessage, error) {
	values := url.Values{}
	values.Set("month", strconv.Itoa(month))
	values.Set("year", strconv.Itoa(year))
	var out json.RawMessage
	err := c.do(ctx, "fetch gst report", http.MethodGet, "/gst/"+url.PathEscape(string(kind))+"?"+values.Encode(), nil, nil, &out)
	return out, err
}

func idempotencyHeader(key string) http.Header {
	if key == "" {
		return nil
	}
	return http.Header{headerIdempotencyKey: []string{key}}
}

// do performs one request. It never retries; any failure is reported as a TransportError.
func (c *Client) do(ctx context.Context, op, method, path string, body any, headers http.Header, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.send(ctx, op, method, path, body, headers, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &shared.TransportError{Op: op, Err: err}
	}
	return err
}

func (c *Client) send(ctx context.Context, op, method, path string, body any, headers http.Header, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return &shared.TransportError{Op: op, Err: err}
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &shared.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(headerCompanyID, c.session.CompanyID.String())
	if c.session.UserID != uuid.Nil {
		req.Header.Set(headerUserID, c.session.UserID.String())
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &shared.TransportError{Op: op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return problemError(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &shared.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// problemError rebuilds the typed error behind a problem response so callers can
// still match ErrValidation, ErrNotFound or ErrConflict through the TransportError.
func problemError(op string, resp *http.Response) error {
	var problem httpx.ProblemDetail
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := json.Unmarshal(raw, &problem); err != nil || problem.Status == 0 {
		problem = httpx.ProblemDetail{Status: resp.StatusCode, Detail: strings.TrimSpace(string(raw))}
	}
	te := &shared.TransportError{Op: op, StatusCode: resp.StatusCode, Detail: problem.Detail, Reasons: problem.Reasons}
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		te.Err = shared.NewValidationError(problem.Reasons...)
	case http.StatusNotFound:
		te.Err = shared.ErrNotFound
	case http.StatusConflict:
		reason := problem.Detail
		if len(problem.Reasons) > 0 {
			reason = problem.Reasons[0]
		}
		te.Err = &shared.ConflictError{Reason: reason}
	default:
		te.Err = errors.New(http.StatusText(resp.StatusCode))
	}
	return te
}
