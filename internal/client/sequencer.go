package client

import (
	"context"
	"errors"
	"sync"
)

// ErrStale reports a response that was superseded by a newer request for the same view.
var ErrStale = errors.New("client: response superseded by a newer request")

// Sequencer issues monotonically increasing tokens per view. Only the response carrying
// the latest token of a view may be applied; beginning a new request cancels the previous one.
type Sequencer struct {
	mu    sync.Mutex
	views map[string]*viewState
}

type viewState struct {
	token  uint64
	cancel context.CancelFunc
}

// NewSequencer constructs an empty sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{views: map[string]*viewState{}}
}

// Ticket identifies one request of a view.
type Ticket struct {
	seq   *Sequencer
	view  string
	token uint64
}

// Token returns the ticket's sequence number.
func (t Ticket) Token() uint64 { return t.token }

// View returns the view the ticket was issued for.
func (t Ticket) View() string { return t.view }

// Begin issues the next token of view and returns a context that is cancelled as soon as
// a newer request for the same view begins.
func (s *Sequencer) Begin(ctx context.Context, view string) (context.Context, Ticket) {
	reqCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.views[view]
	if !ok {
		st = &viewState{}
		s.views[view] = st
	}
	if st.cancel != nil {
		st.cancel()
	}
	st.token++
	st.cancel = cancel
	return reqCtx, Ticket{seq: s, view: view, token: st.token}
}

// Current reports whether t is still the latest ticket of its view.
func (t Ticket) Current() bool {
	t.seq.mu.Lock()
	defer t.seq.mu.Unlock()
	st, ok := t.seq.views[t.view]
	return ok && st.token == t.token
}

// Latest returns the newest token issued for view, zero when none was.
func (s *Sequencer) Latest(view string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.views[view]; ok {
		return st.token
	}
	return 0
}

// Done releases the request context of t. Call it once the response has been handled.
func (t Ticket) Done() {
	t.seq.mu.Lock()
	defer t.seq.mu.Unlock()
	st, ok := t.seq.views[t.view]
	if ok && st.token == t.token && st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}
}

// Accept returns ErrStale when t has been superseded, otherwise err unchanged.
func (t Ticket) Accept(err error) error {
	if !t.Current() {
		return ErrStale
	}
	return err
}

// Latest runs fn as the newest request of view. The result is returned only when no newer
// request for the view began meanwhile; otherwise it is discarded and ErrStale returned.
func Latest[T any](ctx context.Context, seq *Sequencer, view string, fn func(context.Context) (T, error)) (T, error) {
	reqCtx, ticket := seq.Begin(ctx, view)
	defer ticket.Done()

	out, err := fn(reqCtx)
	if err := ticket.Accept(err); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
