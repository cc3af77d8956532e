package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fish-not-phish/pixurebyte/internal/metrics"
	"github.com/fish-not-phish/pixurebyte/internal/schema"
)

type step struct {
	status string
	err    error
}

// scriptedFetcher replays steps in order and repeats the last one.
type scriptedFetcher struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (f *scriptedFetcher) FetchScan(_ context.Context, teamID, scanID string) (*schema.Scan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	f.calls++
	s := f.steps[i]
	if s.err != nil {
		return nil, s.err
	}
	return &schema.Scan{TeamID: teamID, ScanID: scanID, Status: s.status}, nil
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) GoTo(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

var handle = ScanHandle{TeamID: "t1", ScanID: "s1"}

func waitDone(t *testing.T, task *Task) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poll task did not finish")
	}
}

func TestPoller_CompleteAfterProcessing(t *testing.T) {
	f := &scriptedFetcher{steps: []step{
		{status: schema.StatusProcessing},
		{status: schema.StatusProcessing},
		{status: schema.StatusComplete},
	}}
	nav := &recorder{}
	m := metrics.New()
	p := New(f, nav, WithInterval(10*time.Millisecond), WithMetrics(m))

	task := p.Start(context.Background(), handle)
	waitDone(t, task)

	assert.Equal(t, 3, f.Calls())
	assert.Equal(t, []string{"/team/t1/scan/s1/results"}, nav.Paths())
	assert.Equal(t, Resolved, task.State())

	status, path := task.Result()
	assert.Equal(t, schema.StatusComplete, status)
	assert.Equal(t, ResultsPath(handle), path)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PollCounter(metrics.PollPending)))

	// nothing more happens once resolved
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 3, f.Calls())
	assert.Len(t, nav.Paths(), 1)
}

func TestPoller_FailedNavigatesToFailedView(t *testing.T) {
	f := &scriptedFetcher{steps: []step{{status: schema.StatusPending}, {status: schema.StatusFailed}}}
	nav := &recorder{}
	task := New(f, nav, WithInterval(10*time.Millisecond)).Start(context.Background(), handle)
	waitDone(t, task)

	assert.Equal(t, []string{"/team/t1/scan/s1/failed"}, nav.Paths())
	status, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, schema.StatusFailed, status)
}

func TestPoller_ImmediateTerminalFetchesOnce(t *testing.T) {
	f := &scriptedFetcher{steps: []step{{status: schema.StatusComplete}}}
	nav := &recorder{}
	task := New(f, nav, WithInterval(time.Hour)).Start(context.Background(), handle)
	waitDone(t, task)

	assert.Equal(t, 1, f.Calls())
	assert.Equal(t, []string{ResultsPath(handle)}, nav.Paths())
}

func TestPoller_ErrorsKeepPolling(t *testing.T) {
	f := &scriptedFetcher{steps: []step{
		{err: errors.New("connection refused")},
		{err: errors.New("502")},
		{status: schema.StatusComplete},
	}}
	nav := &recorder{}
	m := metrics.New()
	task := New(f, nav, WithInterval(10*time.Millisecond), WithMetrics(m)).Start(context.Background(), handle)
	waitDone(t, task)

	assert.Equal(t, 3, f.Calls())
	assert.Equal(t, []string{ResultsPath(handle)}, nav.Paths())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PollCounter(metrics.PollError)))
}

func TestPoller_StopHaltsFetching(t *testing.T) {
	f := &scriptedFetcher{steps: []step{{status: schema.StatusProcessing}}}
	nav := &recorder{}
	task := New(f, nav, WithInterval(10*time.Millisecond)).Start(context.Background(), handle)

	require.Eventually(t, func() bool { return f.Calls() >= 2 }, time.Second, 5*time.Millisecond)
	task.Stop()
	after := f.Calls()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, f.Calls())
	assert.Empty(t, nav.Paths())
	assert.Equal(t, Idle, task.State())

	_, err := task.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)

	task.Stop()
}

// blockingFetcher returns a terminal status only after the poll context ends.
type blockingFetcher struct {
	started chan struct{}
}

func (f *blockingFetcher) FetchScan(ctx context.Context, teamID, scanID string) (*schema.Scan, error) {
	close(f.started)
	<-ctx.Done()
	return &schema.Scan{Status: schema.StatusComplete}, nil
}

func TestPoller_StopDuringFetchSuppressesNavigation(t *testing.T) {
	f := &blockingFetcher{started: make(chan struct{})}
	nav := &recorder{}
	task := New(f, nav).Start(context.Background(), handle)

	<-f.started
	task.Stop()

	assert.Empty(t, nav.Paths())
	status, _ := task.Result()
	assert.Empty(t, status)
}

func TestPoller_MaxWait(t *testing.T) {
	f := &scriptedFetcher{steps: []step{{status: schema.StatusProcessing}}}
	nav := &recorder{}
	task := New(f, nav, WithInterval(10*time.Millisecond), WithMaxWait(40*time.Millisecond)).
		Start(context.Background(), handle)

	_, err := task.Wait(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Empty(t, nav.Paths())
}

func TestPoller_ParentCancel(t *testing.T) {
	f := &scriptedFetcher{steps: []step{{status: schema.StatusProcessing}}}
	ctx, cancel := context.WithCancel(context.Background())
	task := New(f, NavigatorFunc(func(string) { t.Error("unexpected navigation") }),
		WithInterval(10*time.Millisecond)).Start(ctx, handle)

	cancel()
	waitDone(t, task)
}

func TestPaths(t *testing.T) {
	h := ScanHandle{TeamID: "team-a", ScanID: "scan-b"}
	assert.Equal(t, "/team/team-a/scan/scan-b/results", ResultsPath(h))
	assert.Equal(t, "/team/team-a/scan/scan-b/failed", FailedPath(h))
	assert.Equal(t, "/team/team-a/scan/scan-b/loading", LoadingPath(h))
	assert.Equal(t, "polling", Polling.String())
}
