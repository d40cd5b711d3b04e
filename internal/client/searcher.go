package client

import (
	"context"
	"encoding/json"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/accounting/reports"
)

// SearchResult is delivered once per search. Err is ErrStale when a newer search replaced it.
type SearchResult struct {
	Query   string
	Token   uint64
	Ledgers []accounting.Ledger
	Err     error
}

// Searcher runs ledger searches asynchronously, keeping only the newest one.
type Searcher struct {
	client *Client
	seq    *Sequencer
}

// NewSearcher constructs a searcher over c.
func NewSearcher(c *Client) *Searcher {
	return &Searcher{client: c, seq: NewSequencer()}
}

const searchView = "ledger-search"

// Search starts a search and returns a channel receiving exactly one result.
// Starting another search cancels this one.
func (s *Searcher) Search(ctx context.Context, query string, nature *accounting.Nature) <-chan SearchResult {
	out := make(chan SearchResult, 1)
	reqCtx, ticket := s.seq.Begin(ctx, searchView)
	go func() {
		defer close(out)
		defer ticket.Done()
		ledgers, err := s.client.SearchLedgers(reqCtx, query, nature)
		if err := ticket.Accept(err); err != nil {
			out <- SearchResult{Query: query, Token: ticket.Token(), Err: err}
			return
		}
		out <- SearchResult{Query: query, Token: ticket.Token(), Ledgers: ledgers}
	}()
	return out
}

// ReportView fetches reports for one on-screen view, dropping responses to superseded parameters.
type ReportView struct {
	client *Client
	seq    *Sequencer
	name   string
}

// NewReportView constructs a view named name over c.
func NewReportView(c *Client, name string) *ReportView {
	return &ReportView{client: c, seq: NewSequencer(), name: name}
}

// Fetch loads kind for q. It returns ErrStale when Fetch was called again before this call finished.
func (v *ReportView) Fetch(ctx context.Context, kind reports.Kind, q ReportQuery) (json.RawMessage, error) {
	return Latest(ctx, v.seq, v.name, func(ctx context.Context) (json.RawMessage, error) {
		return v.client.FetchReport(ctx, kind, q)
	})
}
