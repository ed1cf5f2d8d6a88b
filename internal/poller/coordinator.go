package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// DefaultInterval is used when a non-positive interval is passed to
// [NewCoordinator]. Interval bounds are enforced by configuration, not here.
const DefaultInterval = 30 * time.Second

// refreshKey is the single-flight key; one device per coordinator means one key.
const refreshKey = "refresh"

// Coordinator owns the refresh cycle for one device.
//
// It keeps exactly one authoritative [Snapshot], refreshed on a fixed
// interval or on demand. Concurrent refresh triggers (timer tick, explicit
// Refresh, post-write RequestRefresh) share a single in-flight round trip.
// A failed refresh never replaces the current Snapshot.
//
// Readers call [Coordinator.Current] (never blocks, never does I/O) or
// register a callback with [Coordinator.Subscribe].
//
// All methods are safe for concurrent use.
type Coordinator struct {
	transport Transport
	interval  time.Duration
	metrics   *Metrics
	logger    *slog.Logger

	group    singleflight.Group
	current  atomic.Pointer[Snapshot]
	requests chan struct{}
	session  *session

	// flights counts refreshes that have begun fetching. requestedAt is the
	// highest flight count seen by RequestRefresh; a request is served only
	// by a flight numbered above it.
	flights     atomic.Uint64
	requestedAt atomic.Uint64

	// baseCtx parents every shared refresh; Stop cancels it so an in-flight
	// refresh is abandoned instead of holding the single-flight slot.
	baseCtx    context.Context
	baseCancel context.CancelFunc

	authFailed chan struct{}
	authOnce   sync.Once

	mu          sync.Mutex
	lastErr     error
	subscribers []subscriber
	nextSubID   int
	stateHooks  []func(from, to SessionState)
	failHooks   []func(error)

	// lifecycle
	startMu    sync.Mutex
	lifeMu     sync.Mutex
	loopCancel context.CancelFunc
	wg         sync.WaitGroup
}

type subscriber struct {
	id int
	fn func(Snapshot)
}

// NewCoordinator creates a [Coordinator] for transport.
//
// Parameters:
//   - transport: device API used for every fetch and write
//   - interval: time between periodic refreshes
//   - metrics: prometheus collectors; nil disables metrics
//   - logger: logger for refresh outcomes; nil uses [slog.Default]
//
// No network I/O happens until [Coordinator.Start] or [Coordinator.Refresh].
func NewCoordinator(transport Transport, interval time.Duration, metrics *Metrics, logger *slog.Logger) *Coordinator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	c := &Coordinator{
		transport:  transport,
		interval:   interval,
		metrics:    metrics,
		logger:     logger,
		requests:   make(chan struct{}, 1),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		authFailed: make(chan struct{}),
	}
	c.current.Store(&Snapshot{})
	c.session = newSession(c.notifyState)
	return c
}

// Start performs one synchronous refresh and, if it succeeds, begins
// periodic refreshing in a background goroutine.
//
// The first refresh must succeed so a dead configuration is detected
// immediately:
//   - an authentication failure returns an error matching [ErrAuth] and the
//     session moves to [StateAuthFailed]; Start will keep returning it
//   - a transient failure returns an error matching [ErrTransient]; the
//     session stays [StateIdle] and Start may be called again
//
// Start on a polling coordinator is a no-op. Start after [Coordinator.Stop]
// returns [ErrStopped]. The loop ends when ctx is cancelled or Stop is called.
func (c *Coordinator) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.startMu.Lock()
	defer c.startMu.Unlock()

	switch c.session.state() {
	case StatePolling:
		return nil
	case StateStopped:
		return ErrStopped
	case StateAuthFailed:
		return c.LastError()
	}

	if _, err := c.Refresh(ctx); err != nil {
		if c.session.is(StateStopped) {
			return ErrStopped
		}
		return err
	}

	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	// the session may have been stopped while the first refresh was in flight
	if err := c.session.fire(eventStart); err != nil {
		if c.session.is(StateAuthFailed) {
			return c.LastError()
		}
		return ErrStopped
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.loopCancel = cancel
	c.wg.Add(1)
	go c.run(loopCtx)

	c.logger.Info("polling started", "interval", c.interval.String())
	return nil
}

// Stop halts periodic refreshing and abandons any in-flight refresh.
//
// Stop blocks until the polling goroutine has exited. It is idempotent and
// safe to call before Start. The single-flight slot is never left held: an
// abandoned refresh fails as transient and its waiters are released.
func (c *Coordinator) Stop() {
	c.shutdown()
	c.wg.Wait()

	// clean up client connections after the loop has exited
	if closer, ok := c.transport.(interface{ Close() }); ok {
		closer.Close()
	}
}

// shutdown moves the session to stopped and cancels all work without
// waiting. The polling goroutine calls it on context cancellation.
func (c *Coordinator) shutdown() {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	if !c.session.is(StateStopped) {
		if err := c.session.fire(eventStop); err != nil {
			c.logger.Warn("session stop transition failed", "error", err)
		}
	}
	if c.loopCancel != nil {
		c.loopCancel()
	}
	c.baseCancel()
}

// run is the polling loop.
func (c *Coordinator) run(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return
		case <-c.authFailed:
			c.logger.Error("polling suspended: device API rejected the token, reconfiguration required")
			return
		case <-ticker.C:
			c.refreshFromLoop(ctx)
		case <-c.requests:
			c.refreshFromLoop(ctx)
			c.serveLateRequests(ctx)
		}

		// next periodic refresh is a full interval after this one
		ticker.Reset(c.interval)
	}
}

// refreshFromLoop runs one refresh on behalf of the loop and logs the outcome.
func (c *Coordinator) refreshFromLoop(ctx context.Context) {
	snap, err := c.Refresh(ctx)
	switch Classify(err) {
	case KindNone:
		c.logger.Debug("refresh completed",
			"revision", snap.Revision,
			"connected", snap.Connected,
			"pins", len(snap.Values),
		)
	case KindTransient:
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("refresh failed, keeping last snapshot",
			"error", err.Error(),
			"revision", snap.Revision,
		)
	case KindAuth:
		// the loop exits on the next select via authFailed
	}
}

// serveLateRequests runs one more refresh when a request arrived after the
// flight that served it had already started fetching.
func (c *Coordinator) serveLateRequests(ctx context.Context) {
	for ctx.Err() == nil && c.session.is(StatePolling) {
		// queued requests are covered by the requestedAt check below
		select {
		case <-c.requests:
		default:
		}
		if c.flights.Load() > c.requestedAt.Load() {
			return
		}
		c.refreshFromLoop(ctx)
	}
}

// Refresh performs one fetch cycle: getAll, then isHardwareConnected.
//
// On success a new Snapshot with revision = previous + 1 is published,
// the stored error is cleared, subscribers are notified, and the new
// Snapshot is returned. On failure the previous Snapshot stays current and
// is returned together with the classified error.
//
// At most one refresh is in flight at a time. A caller arriving while one
// is running waits for that refresh and receives its result. If ctx ends
// first the caller stops waiting, but the shared refresh continues for the
// other waiters.
//
// After an authentication failure Refresh returns the recorded error
// without contacting the device. After Stop it returns [ErrStopped].
func (c *Coordinator) Refresh(ctx context.Context) (Snapshot, error) {
	switch c.session.state() {
	case StateAuthFailed:
		return c.Current(), c.LastError()
	case StateStopped:
		return c.Current(), ErrStopped
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ch := c.group.DoChan(refreshKey, func() (any, error) {
		return c.doRefresh()
	})

	select {
	case res := <-ch:
		snap, _ := res.Val.(Snapshot)
		return snap, res.Err
	case <-ctx.Done():
		return c.Current(), ctx.Err()
	}
}

// doRefresh is the body of the single-flight call. Only one runs at a time,
// which makes the revision read-increment-publish sequence safe.
func (c *Coordinator) doRefresh() (Snapshot, error) {
	start := time.Now()
	ctx := c.baseCtx
	c.flights.Add(1)

	values, err := c.transport.FetchAll(ctx)
	var connected bool
	if err == nil {
		// sequential on purpose: a connectivity failure must not be masked
		// by a successful data fetch
		connected, err = c.transport.FetchConnected(ctx)
	}
	c.metrics.observeRefresh(err, time.Since(start))

	if err != nil {
		c.recordFailure(err)
		return c.Current(), err
	}

	prev := c.current.Load()
	next := &Snapshot{
		Values:    values,
		Connected: connected,
		Revision:  prev.Revision + 1,
		FetchedAt: time.Now(),
	}
	c.current.Store(next)
	c.metrics.observeSnapshot(*next)

	c.mu.Lock()
	c.lastErr = nil
	subs := slices.Clone(c.subscribers)
	c.mu.Unlock()

	// callbacks fire strictly after the new snapshot is published
	for _, sub := range subs {
		c.invokeSafe(sub.fn, *next)
	}
	return *next, nil
}

// recordFailure stores err and, for authentication failures, suspends the session.
func (c *Coordinator) recordFailure(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()

	if Classify(err) == KindAuth {
		if ferr := c.session.fire(eventAuthFailed); ferr == nil {
			c.authOnce.Do(func() { close(c.authFailed) })
		}
	}

	c.mu.Lock()
	hooks := slices.Clone(c.failHooks)
	c.mu.Unlock()
	for _, hook := range hooks {
		c.invokeFailureHookSafe(hook, err)
	}
}

// Current returns the latest published Snapshot.
// It never blocks and never performs I/O.
func (c *Coordinator) Current() Snapshot {
	return *c.current.Load()
}

// RequestRefresh schedules an out-of-band refresh without waiting for it.
//
// Requests are served by the polling loop; any number of requests made
// before the loop picks one up collapse into a single refresh, which itself
// joins an in-flight refresh if there is one. A request that arrives after
// the in-flight refresh has started fetching gets exactly one more refresh
// once it completes. Requests made before Start are kept and served once
// polling begins. Requests on a stopped or auth-failed session are dropped.
func (c *Coordinator) RequestRefresh() {
	if st := c.session.state(); st == StateStopped || st == StateAuthFailed {
		c.logger.Debug("refresh request dropped", "state", string(st))
		return
	}
	c.markRequested()
	select {
	case c.requests <- struct{}{}:
	default:
		// a request is already pending
	}
}

// markRequested raises requestedAt to the current flight count, so a flight
// that was already fetching does not count as serving this request.
func (c *Coordinator) markRequested() {
	n := c.flights.Load()
	for {
		cur := c.requestedAt.Load()
		if cur >= n || c.requestedAt.CompareAndSwap(cur, n) {
			return
		}
	}
}

// Write sets pin to value on the device, then requests a refresh so
// subscribers see the effect promptly.
//
// Write failures are returned verbatim and are not retried.
func (c *Coordinator) Write(ctx context.Context, pin, value string) error {
	err := c.transport.Write(ctx, pin, value)
	c.metrics.observeWrite(err)
	if err != nil {
		return err
	}
	c.logger.Debug("pin written", "pin", pin, "value", value)
	c.RequestRefresh()
	return nil
}

// Subscribe registers fn to be called with every newly published Snapshot.
//
// Callbacks run synchronously on the refreshing goroutine, in registration
// order, after the Snapshot is published and before waiting Refresh callers
// are released. They must not block and must not call [Coordinator.Refresh]:
// the refresh they would join is the one running them, so the call never
// returns. Use [Coordinator.RequestRefresh] instead. Panics are recovered
// and logged.
//
// The returned function removes the subscription; calling it more than once
// is safe.
func (c *Coordinator) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	c.mu.Lock()
	c.nextSubID++
	id := c.nextSubID
	c.subscribers = append(c.subscribers, subscriber{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.subscribers = slices.DeleteFunc(c.subscribers, func(s subscriber) bool {
			return s.id == id
		})
	}
}

// OnStateChange registers fn to be called after every session transition.
// fn runs synchronously on the goroutine that caused the transition.
func (c *Coordinator) OnStateChange(fn func(from, to SessionState)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.stateHooks = append(c.stateHooks, fn)
	c.mu.Unlock()
}

// OnRefreshFailure registers fn to be called with the error of every failed
// refresh, after the error is recorded and any session transition is done.
// fn runs synchronously on the refreshing goroutine.
func (c *Coordinator) OnRefreshFailure(fn func(error)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.failHooks = append(c.failHooks, fn)
	c.mu.Unlock()
}

func (c *Coordinator) notifyState(from, to SessionState) {
	c.logger.Info("session state changed", "from", string(from), "to", string(to))

	c.mu.Lock()
	hooks := slices.Clone(c.stateHooks)
	c.mu.Unlock()

	for _, hook := range hooks {
		c.invokeHookSafe(hook, from, to)
	}
}

// State returns the current session state.
func (c *Coordinator) State() SessionState {
	return c.session.state()
}

// LastError returns the error of the most recent refresh, or nil if it succeeded.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Interval returns the periodic refresh interval.
func (c *Coordinator) Interval() time.Duration {
	return c.interval
}

// invokeSafe calls a snapshot subscriber with panic recovery.
// The full stack is logged under a correlation ID.
func (c *Coordinator) invokeSafe(fn func(Snapshot), snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("snapshot subscriber panicked",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"revision", snap.Revision,
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn(snap)
}

func (c *Coordinator) invokeHookSafe(fn func(from, to SessionState), from, to SessionState) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("session state hook panicked",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"to", string(to),
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn(from, to)
}

func (c *Coordinator) invokeFailureHookSafe(fn func(error), err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("refresh failure hook panicked",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn(err)
}
