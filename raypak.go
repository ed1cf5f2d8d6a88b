package raypak

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jpalmerr/raypak/dashboard"
	"github.com/jpalmerr/raypak/internal/poller"
	"github.com/jpalmerr/raypak/internal/server"
	"github.com/jpalmerr/raypak/internal/store"
)

// DefaultServer is the public device API host for Raypak heaters.
const DefaultServer = "raymote.raypak.com"

const (
	defaultPollingInterval = poller.DefaultInterval
	defaultTimeout         = poller.DefaultTimeout
	defaultPort            = 8080
)

var (
	// ErrAuth matches, via errors.Is, every failure caused by the device API
	// rejecting the token. It is terminal for a Monitor: polling is suspended
	// until a new Monitor is built with a valid token.
	ErrAuth = poller.ErrAuth

	// ErrTransient matches every other device API failure. The next refresh
	// may succeed.
	ErrTransient = poller.ErrTransient

	// ErrStopped is returned when starting a Monitor whose polling has ended.
	ErrStopped = poller.ErrStopped

	errAlreadyStarted = errors.New("monitor already started")
)

// SessionState is the lifecycle phase of the Monitor's polling session:
// "idle", "polling", "auth_failed" or "stopped".
type SessionState = poller.SessionState

// Monitor polls one Raypak heater and serves its state.
//
// A Monitor keeps exactly one current [Snapshot], refreshed on a fixed
// interval or on demand, derives [Reading] values from it, and serves them on
// a live dashboard. It is created using [New] with functional options and
// started with [Monitor.Start].
//
// The typical lifecycle is:
//
//	m, err := raypak.New(raypak.WithDevice(raypak.DefaultServer, token))
//	if err != nil {
//	    slog.Error("failed to create monitor", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	if err := m.Start(ctx); err != nil { // blocks until ctx is cancelled
//	    slog.Error("monitor stopped", "error", err)
//	}
//
// The pull methods ([Monitor.Current], [Monitor.Readings], [Monitor.Heater])
// never block and never perform I/O.
type Monitor struct {
	title           string
	server          string
	pollingInterval time.Duration
	port            int
	logger          *slog.Logger
	registry        *prometheus.Registry

	client      *poller.Client
	coordinator *poller.Coordinator
	store       *store.MemoryStore
	heater      *Heater

	snapshotCallbacks []func(Snapshot)
	readingsCallbacks []func([]Reading)

	started    atomic.Bool
	authFailed chan struct{}
	authOnce   sync.Once
}

// New creates a new [Monitor] with the given options.
//
// [WithDevice] is required. Other options have sensible defaults:
//   - Polling interval: 30 seconds
//   - Request timeout: 10 seconds
//   - Port: 8080
//
// New performs no network I/O. Returns an error if the device is not
// configured, if any option is invalid, or if the metrics cannot be
// registered.
func New(opts ...Option) (*Monitor, error) {
	cfg := &monitorConfig{
		pollingInterval: defaultPollingInterval,
		timeout:         defaultTimeout,
		port:            defaultPort,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.server == "" || cfg.token == "" {
		return nil, errors.New("device server and token are required")
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	reg := cfg.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	metrics, err := poller.NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	client := poller.NewClient(cfg.server, cfg.token, cfg.timeout)
	m := &Monitor{
		title:             cfg.title,
		server:            cfg.server,
		pollingInterval:   cfg.pollingInterval,
		port:              cfg.port,
		logger:            logger,
		registry:          reg,
		client:            client,
		coordinator:       poller.NewCoordinator(client, cfg.pollingInterval, metrics, logger),
		store:             store.NewMemoryStore(),
		snapshotCallbacks: cfg.snapshotCallbacks,
		readingsCallbacks: cfg.readingsCallbacks,
		authFailed:        make(chan struct{}),
	}
	m.heater = newHeater(monitorController{m})

	// store update first (callbacks fire after data is persisted)
	m.coordinator.Subscribe(m.onSnapshot)
	m.coordinator.OnStateChange(m.onStateChange)
	m.coordinator.OnRefreshFailure(m.onRefreshFailure)

	return m, nil
}

// Start performs the first refresh, begins periodic polling, and serves the
// dashboard.
//
// The first refresh must succeed so a dead configuration is detected
// immediately. If it fails Start returns the error: one matching [ErrAuth]
// when the token was rejected, [ErrTransient] otherwise. After a transient
// failure Start may be called again.
//
// Once running, Start blocks until ctx is cancelled (returns nil) or the
// device API rejects the token (returns an error matching [ErrAuth]).
// Polling has stopped and the dashboard is shut down when Start returns.
//
// During execution:
//
//   - The device is refreshed at the configured interval and after every write
//   - The HTTP server serves the dashboard, /api/state, /api/sse, /api/ws,
//     the control endpoints and /metrics on the configured port
//   - Snapshot and readings callbacks fire after every successful refresh
func (m *Monitor) Start(ctx context.Context) error {
	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}
	if m.started.Load() {
		return errAlreadyStarted
	}

	m.logger.Info("raypak starting", "server", m.server)
	m.logger.Info("polling configured", "interval", m.pollingInterval.String())

	if err := m.coordinator.Start(ctx); err != nil {
		if errors.Is(err, ErrAuth) {
			m.logger.Error("initial refresh rejected", "error", err)
		}
		return fmt.Errorf("initial refresh failed: %w", err)
	}
	if !m.started.CompareAndSwap(false, true) {
		return errAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpServer := server.NewServer(m.store, monitorController{m}, server.Config{
		Port:     m.port,
		Assets:   dashboard.Assets,
		Title:    m.title,
		Gatherer: m.registry,
	}, m.logger)
	if err := httpServer.Start(runCtx); err != nil {
		m.coordinator.Stop()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	m.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", m.port))

	var result error
	select {
	case <-ctx.Done():
	case <-m.authFailed:
		result = fmt.Errorf("polling suspended: %w", m.coordinator.LastError())
	}

	m.coordinator.Stop()
	m.logger.Info("raypak stopped")
	return result
}

// Current returns the latest published snapshot. The zero Snapshot means no
// refresh has succeeded yet.
func (m *Monitor) Current() Snapshot {
	return fromPoller(m.coordinator.Current())
}

// Readings derives every registered value from the current snapshot.
func (m *Monitor) Readings() []Reading {
	return DeriveAll(m.Current())
}

// Refresh fetches from the device now, joining a refresh that is already
// in flight, and returns the resulting snapshot.
//
// On failure the previous snapshot is returned together with the error.
// Refresh works before [Monitor.Start] and after it.
func (m *Monitor) Refresh(ctx context.Context) (Snapshot, error) {
	snap, err := m.coordinator.Refresh(ctx)
	return fromPoller(snap), err
}

// RequestRefresh schedules a refresh without waiting for it.
// Requests collapse while one is pending.
func (m *Monitor) RequestRefresh() {
	m.coordinator.RequestRefresh()
}

// Write sets a device pin to value and requests a refresh.
// Write errors are returned as-is and never retried.
func (m *Monitor) Write(ctx context.Context, pin, value string) error {
	return m.coordinator.Write(ctx, pin, value)
}

// State returns the polling session state.
func (m *Monitor) State() SessionState {
	return m.coordinator.State()
}

// LastError returns the error of the most recent refresh, or nil if it
// succeeded.
func (m *Monitor) LastError() error {
	return m.coordinator.LastError()
}

// Heater returns the heater control view.
func (m *Monitor) Heater() *Heater {
	return m.heater
}

// Validate checks the credentials with a single lightweight call to the
// device API. It does not publish a snapshot.
func (m *Monitor) Validate(ctx context.Context) error {
	_, err := m.client.FetchConnected(ctx)
	return err
}

// Port returns the configured HTTP port for the dashboard server.
func (m *Monitor) Port() int {
	return m.port
}

// PollingInterval returns the configured interval between refreshes.
func (m *Monitor) PollingInterval() time.Duration {
	return m.pollingInterval
}

func (m *Monitor) onSnapshot(ps poller.Snapshot) {
	snap := fromPoller(ps)
	readings := DeriveAll(snap)
	m.store.Publish(toStoreState(snap, readings, m.coordinator.State(), nil))

	for _, cb := range m.snapshotCallbacks {
		invokeCallbackSafe(cb, snap, snap.Revision, m.logger)
	}
	for _, cb := range m.readingsCallbacks {
		invokeCallbackSafe(cb, slices.Clone(readings), snap.Revision, m.logger)
	}
}

// onStateChange runs inside the session transition; it must not query the
// session state, so to is passed through.
func (m *Monitor) onStateChange(_, to SessionState) {
	m.republish(to)
	if to == poller.StateAuthFailed {
		m.authOnce.Do(func() { close(m.authFailed) })
	}
}

func (m *Monitor) onRefreshFailure(error) {
	m.republish(m.coordinator.State())
}

// republish refreshes the session and error fields of the stored state.
func (m *Monitor) republish(session SessionState) {
	snap := m.Current()
	m.store.Publish(toStoreState(snap, DeriveAll(snap), session, m.coordinator.LastError()))
}

// toStoreState converts a snapshot and its readings to the presentation state.
func toStoreState(snap Snapshot, readings []Reading, session SessionState, lastErr error) store.State {
	var errStr *string
	if lastErr != nil {
		s := lastErr.Error()
		errStr = &s
	}

	storeReadings := make([]store.Reading, len(readings))
	for i, r := range readings {
		storeReadings[i] = store.Reading{
			Key:         r.Key,
			Name:        r.Name,
			Value:       r.Value.Interface(),
			Unit:        r.Unit,
			Role:        string(r.Role),
			DeviceClass: r.DeviceClass,
			StateClass:  string(r.StateClass),
		}
	}

	h := heaterStateOf(snap)
	operations := make([]string, len(h.Operations))
	for i, op := range h.Operations {
		operations[i] = string(op)
	}

	return store.State{
		Session:   string(session),
		Revision:  snap.Revision,
		Connected: snap.Connected,
		FetchedAt: snap.FetchedAt,
		LastError: errStr,
		Readings:  storeReadings,
		Heater: store.Heater{
			CurrentTemperature: h.CurrentTemperature.Interface(),
			TargetTemperature:  h.TargetTemperature.Interface(),
			Mode:               string(h.Mode),
			MinTemperature:     h.MinTemperature,
			MaxTemperature:     h.MaxTemperature,
			Operations:         operations,
		},
	}
}

// invokeCallbackSafe calls a user callback with panic recovery.
// Panics are logged under a correlation ID but do not propagate.
func invokeCallbackSafe[T any](cb func(T), arg T, revision uint64, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("callback panicked",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"revision", revision,
				"stack", string(debug.Stack()),
			)
		}
	}()
	cb(arg)
}

// monitorController adapts a Monitor to the heater and the HTTP control
// endpoints.
type monitorController struct {
	m *Monitor
}

func (c monitorController) Current() Snapshot {
	return c.m.Current()
}

func (c monitorController) Write(ctx context.Context, pin, value string) error {
	return c.m.Write(ctx, pin, value)
}

func (c monitorController) Refresh(ctx context.Context) error {
	_, err := c.m.Refresh(ctx)
	return err
}

func (c monitorController) SetTarget(ctx context.Context, temperature float64) error {
	err := c.m.heater.SetTarget(ctx, temperature)
	if errors.Is(err, ErrTemperatureOutOfRange) {
		return fmt.Errorf("%w: %w", server.ErrInvalidInput, err)
	}
	return err
}

func (c monitorController) SetMode(ctx context.Context, mode string) error {
	err := c.m.heater.SetMode(ctx, Mode(mode))
	if errors.Is(err, ErrUnknownMode) {
		return fmt.Errorf("%w: %w", server.ErrInvalidInput, err)
	}
	return err
}
