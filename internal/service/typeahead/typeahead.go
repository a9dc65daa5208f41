// Package typeahead is the client-side helper for search-as-you-type callers.
// A Searcher debounces keystrokes, tags each search with a Sequencer token and
// delivers only the newest result; the HTTP API echoes that token back in the
// page so the caller can drop stale responses.
package typeahead

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/octobees/directory-search/internal/dto"
)

// DefaultDebounce is the input quiescence required before a search runs.
const DefaultDebounce = 300 * time.Millisecond

// Sequencer issues monotonically increasing request tokens.
type Sequencer struct {
	last atomic.Uint64
}

// Next issues a new token; tokens start at 1.
func (s *Sequencer) Next() uint64 { return s.last.Add(1) }

// Latest returns the most recently issued token, or 0.
func (s *Sequencer) Latest() uint64 { return s.last.Load() }

// IsLatest reports whether token is the most recently issued one.
func (s *Sequencer) IsLatest(token uint64) bool { return token != 0 && token == s.last.Load() }

// SearchFunc runs one search. SearchService.Search satisfies it.
type SearchFunc func(ctx context.Context, req dto.SearchRequest) (dto.RankedPage, error)

// DeliverFunc receives the result of the latest search only.
type DeliverFunc func(page dto.RankedPage, err error)

// Searcher debounces keystroke-driven searches and discards superseded
// responses. Submitting a new request cancels any pending or in-flight one.
type Searcher struct {
	search   SearchFunc
	deliver  DeliverFunc
	debounce time.Duration
	seq      Sequencer

	mu       sync.Mutex
	timer    *time.Timer
	inflight context.CancelFunc
	closed   bool
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithDebounce overrides DefaultDebounce; zero runs searches immediately.
func WithDebounce(d time.Duration) Option {
	return func(s *Searcher) {
		if d >= 0 {
			s.debounce = d
		}
	}
}

// NewSearcher wires search to deliver.
func NewSearcher(search SearchFunc, deliver DeliverFunc, opts ...Option) *Searcher {
	s := &Searcher{search: search, deliver: deliver, debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit schedules req and returns its token. The token is stamped on the
// request so the delivered page carries it back.
func (s *Searcher) Submit(ctx context.Context, req dto.SearchRequest) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0
	}
	token := s.seq.Next()
	req.Token = token

	if s.timer != nil {
		s.timer.Stop()
	}
	if s.inflight != nil {
		s.inflight()
		s.inflight = nil
	}
	s.timer = time.AfterFunc(s.debounce, func() { s.run(ctx, token, req) })
	return token
}

// Latest returns the token of the most recent submission.
func (s *Searcher) Latest() uint64 { return s.seq.Latest() }

// Close cancels pending and in-flight work; later submissions are ignored.
func (s *Searcher) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.inflight != nil {
		s.inflight()
		s.inflight = nil
	}
}

func (s *Searcher) run(parent context.Context, token uint64, req dto.SearchRequest) {
	s.mu.Lock()
	if s.closed || !s.seq.IsLatest(token) {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	s.inflight = cancel
	s.mu.Unlock()

	page, err := s.search(ctx, req)

	s.mu.Lock()
	latest := !s.closed && s.seq.IsLatest(token)
	if latest {
		s.inflight = nil
	}
	s.mu.Unlock()
	cancel()

	if latest {
		s.deliver(page, err)
	}
}
