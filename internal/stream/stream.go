// Package stream maintains the latest order book snapshot for a configured
// set of (venue, symbol) pairs, refreshed on a bounded-concurrency scheduler.
package stream

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/arbiq/enginecore/internal/domain"
	"github.com/arbiq/enginecore/internal/venue"
)

// State is a pair's position in the per-pair refresh state machine.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateFresh
	StateStale
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateFetching:
		return "FETCHING"
	case StateFresh:
		return "FRESH"
	case StateStale:
		return "STALE"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Listener is invoked with each new snapshot. Listeners run on the stream's
// scheduler and must not block.
type Listener func(venueName string, snapshot *domain.OrderBook)

// Pair identifies a (venue, symbol) the stream tracks.
type Pair struct {
	VenueName string
	Adapter   venue.Adapter
	Symbol    domain.Symbol
}

// Config configures a Stream.
type Config struct {
	Pairs []Pair
	// RefreshInterval is how often each pair is re-fetched.
	RefreshInterval time.Duration
	// MaxAge is how long a snapshot may age before it is considered stale.
	MaxAge time.Duration
	// PerVenueConcurrency bounds how many in-flight fetches a single venue may
	// have at once, to respect its rate limits.
	PerVenueConcurrency int64
	// MaxConsecutiveErrors trips a pair to STOPPED after this many consecutive
	// fetch failures.
	MaxConsecutiveErrors int
	// Depth is the order book depth requested per fetch.
	Depth  int
	Logger *zap.Logger
}

type pairState struct {
	pair              Pair
	mu                sync.RWMutex
	state             State
	snapshot          *domain.OrderBook
	lastFetchedAt     time.Time
	consecutiveErrors int
}

// Stream drives periodic refresh of order book snapshots for a set of pairs
// on a single cooperative scheduler: a bounded goroutine pool gated by
// per-venue semaphores, not a thread per pair.
type Stream struct {
	cfg    Config
	log    *zap.Logger
	states []*pairState
	sems   map[string]*semaphore.Weighted

	mu        sync.RWMutex
	listeners []Listener

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Stream from cfg. Call Start to begin refreshing.
func New(cfg Config) *Stream {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Depth < 1 {
		cfg.Depth = 10
	}

	s := &Stream{
		cfg:  cfg,
		log:  log,
		sems: make(map[string]*semaphore.Weighted),
	}
	for _, p := range cfg.Pairs {
		s.states = append(s.states, &pairState{pair: p, state: StateIdle})
		if _, ok := s.sems[p.VenueName]; !ok {
			weight := cfg.PerVenueConcurrency
			if weight < 1 {
				weight = 1
			}
			s.sems[p.VenueName] = semaphore.NewWeighted(weight)
		}
	}
	return s
}

// Subscribe registers listener to be invoked with each new snapshot.
func (s *Stream) Subscribe(listener Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// Start begins periodic refresh of all configured pairs. It returns
// immediately; refreshing happens on background goroutines until Stop is
// called.
func (s *Stream) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, st := range s.states {
		st := st
		s.wg.Add(1)
		go s.runPair(ctx, st)
	}
}

// Stop signals all refresh loops to halt and waits for in-flight refreshes to
// settle, up to timeout.
func (s *Stream) Stop(timeout time.Duration) {
	if s.cancel == nil {
		return
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		s.log.Warn("stream stop timed out waiting for in-flight refreshes")
	}
}

func (s *Stream) runPair(ctx context.Context, st *pairState) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	s.refresh(ctx, st)
	for {
		select {
		case <-ctx.Done():
			st.mu.Lock()
			st.state = StateStopped
			st.mu.Unlock()
			return
		case <-ticker.C:
			if s.refresh(ctx, st) {
				return
			}
		}
	}
}

// refresh fetches one snapshot for st, respecting the venue's concurrency
// cap. It returns true if the pair transitioned to STOPPED and the refresh
// loop should exit.
func (s *Stream) refresh(ctx context.Context, st *pairState) bool {
	sem := s.sems[st.pair.VenueName]
	if err := sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer sem.Release(1)

	st.mu.Lock()
	st.state = StateFetching
	st.mu.Unlock()

	book, err := st.pair.Adapter.FetchOrderBook(ctx, st.pair.Symbol, s.cfg.Depth)

	st.mu.Lock()
	defer st.mu.Unlock()

	if err != nil {
		st.consecutiveErrors++
		s.log.Warn("order book refresh failed",
			zap.String("venue", st.pair.VenueName),
			zap.Int("consecutive_errors", st.consecutiveErrors),
			zap.Error(err))
		if st.consecutiveErrors >= s.cfg.MaxConsecutiveErrors && s.cfg.MaxConsecutiveErrors > 0 {
			st.state = StateStopped
			return true
		}
		st.state = StateStale
		return false
	}

	st.consecutiveErrors = 0
	st.snapshot = book
	st.lastFetchedAt = time.Now()
	st.state = StateFresh

	s.notify(st.pair.VenueName, book)
	return false
}

func (s *Stream) notify(venueName string, book *domain.OrderBook) {
	s.mu.RLock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, l := range listeners {
		l(venueName, book)
	}
}

// Snapshot returns the latest snapshot for (venueName, symbol) and whether it
// is fresh (strictly younger than MaxAge; a snapshot exactly MaxAge old counts
// as stale). A stale or never-fetched snapshot is still returned so callers
// can inspect its age, but ok is false.
func (s *Stream) Snapshot(venueName string, sym domain.Symbol) (book *domain.OrderBook, ok bool) {
	for _, st := range s.states {
		if st.pair.VenueName != venueName || st.pair.Symbol != sym {
			continue
		}
		st.mu.RLock()
		defer st.mu.RUnlock()
		if st.snapshot == nil {
			return nil, false
		}
		fresh := st.state == StateFresh && time.Since(st.lastFetchedAt) < s.cfg.MaxAge
		return st.snapshot, fresh
	}
	return nil, false
}

// State returns the current state machine value for (venueName, symbol).
func (s *Stream) State(venueName string, sym domain.Symbol) State {
	for _, st := range s.states {
		if st.pair.VenueName != venueName || st.pair.Symbol != sym {
			continue
		}
		st.mu.RLock()
		defer st.mu.RUnlock()
		return st.state
	}
	return StateIdle
}
