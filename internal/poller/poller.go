// Package poller watches a scan until the API reports a terminal status and
// then navigates once to the results or failure view.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/fish-not-phish/pixurebyte/internal/metrics"
	"github.com/fish-not-phish/pixurebyte/internal/schema"
)

// DefaultInterval is the delay between status fetches.
const DefaultInterval = 5 * time.Second

// ErrTimeout is returned by Task.Wait when MaxWait elapsed before the scan
// reached a terminal status.
var ErrTimeout = errors.New("scan did not finish before the deadline")

// ScanHandle identifies the scan being polled.
type ScanHandle struct {
	TeamID string
	ScanID string
}

// ResultsPath is the view shown for a completed scan.
func ResultsPath(h ScanHandle) string {
	return fmt.Sprintf("/team/%s/scan/%s/results", h.TeamID, h.ScanID)
}

// FailedPath is the view shown for a failed scan.
func FailedPath(h ScanHandle) string {
	return fmt.Sprintf("/team/%s/scan/%s/failed", h.TeamID, h.ScanID)
}

// LoadingPath is the view shown while a scan is processing.
func LoadingPath(h ScanHandle) string {
	return fmt.Sprintf("/team/%s/scan/%s/loading", h.TeamID, h.ScanID)
}

// Fetcher returns the current scan record.
type Fetcher interface {
	FetchScan(ctx context.Context, teamID, scanID string) (*schema.Scan, error)
}

// Navigator performs the route change once polling resolves.
type Navigator interface {
	GoTo(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) GoTo(path string) { f(path) }

type State int32

const (
	Idle State = iota
	Polling
	Resolved
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Polling:
		return "polling"
	case Resolved:
		return "resolved"
	}
	return "unknown"
}

type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMaxWait stops polling without navigating after d. Zero means poll until
// a terminal status.
func WithMaxWait(d time.Duration) Option {
	return func(p *Poller) { p.maxWait = d }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(p *Poller) {
		if l != nil {
			p.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Poller) { p.metrics = m }
}

type Poller struct {
	fetcher  Fetcher
	nav      Navigator
	interval time.Duration
	maxWait  time.Duration
	log      *zap.SugaredLogger
	metrics  *metrics.Metrics
}

func New(fetcher Fetcher, nav Navigator, opts ...Option) *Poller {
	p := &Poller{
		fetcher:  fetcher,
		nav:      nav,
		interval: DefaultInterval,
		log:      zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Task is one running poll loop. Fetches run one at a time on the task's own
// goroutine, so a slow fetch delays the next tick instead of overlapping it.
type Task struct {
	handle ScanHandle
	cancel context.CancelFunc
	done   chan struct{}
	state  atomic.Int32

	mu       sync.Mutex
	status   string
	path     string
	timedOut bool
}

// Start fetches immediately and then once per interval until the scan
// completes or fails, ctx is cancelled, or Stop is called.
func (p *Poller) Start(ctx context.Context, h ScanHandle) *Task {
	var cancel context.CancelFunc
	if p.maxWait > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.maxWait)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	t := &Task{handle: h, cancel: cancel, done: make(chan struct{})}
	t.state.Store(int32(Polling))
	go p.run(ctx, t)
	return t
}

func (p *Poller) run(ctx context.Context, t *Task) {
	defer close(t.done)
	defer t.state.CompareAndSwap(int32(Polling), int32(Idle))
	defer t.cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	if p.poll(ctx, t) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				t.mu.Lock()
				t.timedOut = true
				t.mu.Unlock()
			}
			return
		case <-ticker.C:
			if p.poll(ctx, t) {
				return
			}
		}
	}
}

// poll performs one fetch and reports whether the loop should stop.
func (p *Poller) poll(ctx context.Context, t *Task) bool {
	scan, err := p.fetcher.FetchScan(ctx, t.handle.TeamID, t.handle.ScanID)
	if ctx.Err() != nil {
		// Torn down while the fetch was in flight; drop the result.
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			t.mu.Lock()
			t.timedOut = true
			t.mu.Unlock()
		}
		return true
	}
	if err != nil {
		p.metrics.ObservePoll(metrics.PollError)
		p.log.Warnw("polling error", "team", t.handle.TeamID, "scan", t.handle.ScanID, "error", err)
		return false
	}

	switch scan.Status {
	case schema.StatusComplete:
		p.metrics.ObservePoll(metrics.PollComplete)
		p.resolve(t, scan.Status, ResultsPath(t.handle))
		return true
	case schema.StatusFailed:
		p.metrics.ObservePoll(metrics.PollFailed)
		p.resolve(t, scan.Status, FailedPath(t.handle))
		return true
	default:
		p.metrics.ObservePoll(metrics.PollPending)
		p.log.Debugw("scan still running", "scan", t.handle.ScanID, "status", scan.Status)
		return false
	}
}

func (p *Poller) resolve(t *Task, status, path string) {
	t.mu.Lock()
	t.status = status
	t.path = path
	t.mu.Unlock()
	t.state.Store(int32(Resolved))
	p.log.Infow("scan finished", "scan", t.handle.ScanID, "status", status)
	p.nav.GoTo(path)
}

// Stop cancels the loop and waits for it to exit. No fetch is issued and no
// navigation happens after Stop returns. Safe to call more than once.
func (t *Task) Stop() {
	t.cancel()
	<-t.done
}

// Done is closed when the loop has exited.
func (t *Task) Done() <-chan struct{} { return t.done }

func (t *Task) State() State { return State(t.state.Load()) }

// Result returns the terminal status and the path navigated to. Both are
// empty unless the task resolved.
func (t *Task) Result() (status, path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status, t.path
}

// Wait blocks until the task exits or ctx is done and returns the terminal
// status. It returns ErrTimeout when MaxWait elapsed and context.Canceled
// when the task was stopped before resolving.
func (t *Task) Wait(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-t.done:
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != "" {
		return t.status, nil
	}
	if t.timedOut {
		return "", ErrTimeout
	}
	return "", context.Canceled
}
