package kerberos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/tgtkeep/internal/logger"
	"github.com/marmos91/tgtkeep/internal/telemetry"
	"github.com/marmos91/tgtkeep/pkg/config"
	"github.com/marmos91/tgtkeep/pkg/keytab"
)

// ErrNotInitialized is returned by Refresh when Init has not completed
// successfully on an enabled manager.
var ErrNotInitialized = errors.New("ticket manager not initialized")

// Acquisition triggers recorded in logs, spans and metrics.
const (
	TriggerInit    = "init"
	TriggerRefresh = "refresh"
	TriggerForce   = "force"
)

// Manager owns the TGT lifecycle for one principal.
//
// Lifecycle: NewManager → Init (once, before anything else, never
// concurrent) → any number of concurrent Refresh calls. A disabled
// manager accepts the same calls and does nothing.
//
// Concurrency: the freshness timestamp is an atomic, so the fast path
// of Refresh takes no lock. Acquisition is serialized behind the gate
// mutex with a second freshness check inside it, so N callers that all
// observe a stale ticket produce exactly one kinit invocation.
type Manager struct {
	cfg     config.KerberosConfig
	log     *slog.Logger
	metrics Metrics

	resolver *Resolver
	runner   commandRunner

	enabled bool

	// Acquisition command, captured once at Init. Immutable afterwards.
	cmdPath string
	cmdArgs []string

	// Resolved KDC snapshot, written once by Init. Doubles as the
	// discovery cache: accessors never trigger another DNS query.
	kdc       string
	kdcSource string

	// lastAcquired is the UnixNano timestamp of the last confirmed
	// successful acquisition; zero means never. It only moves forward,
	// and only after kinit exited with code 0.
	lastAcquired atomic.Int64
	gate         sync.Mutex
	initialized  atomic.Bool

	// now is a test seam for the clock.
	now func() time.Time
}

// NewManager creates a ticket manager from validated configuration.
//
// Enablement is computed here, once: the platform must be a supported
// function-runtime family (linux or windows) and the marker environment
// variable must be non-empty. A disabled manager logs a single
// informational line and silently no-ops every operation afterwards.
//
// log may be nil, in which case the package logger is used. m may be
// nil, disabling metrics with zero overhead.
func NewManager(cfg *config.KerberosConfig, m Metrics, log *slog.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("kerberos config is nil")
	}

	if cfg.TicketLifetime <= 0 {
		return nil, fmt.Errorf("ticket lifetime must be positive, got %s", cfg.TicketLifetime)
	}

	if log == nil {
		log = logger.Component("kerberos")
	}

	markerEnv := cfg.MarkerEnv
	if markerEnv == "" {
		markerEnv = config.DefaultMarkerEnv
	}

	enabled := platformSupported() && os.Getenv(markerEnv) != ""

	if enabled && cfg.Principal == "" {
		return nil, fmt.Errorf("principal is required")
	}

	mgr := &Manager{
		cfg:      *cfg,
		log:      log,
		metrics:  m,
		resolver: NewResolver(cfg.RealmKdc, cfg.RealmKdcSrvName, nil),
		runner:   execRunner{},
		enabled:  enabled,
		now:      time.Now,
	}

	if !enabled {
		log.Info("ticket manager disabled",
			"platform", runtime.GOOS,
			"marker_env", markerEnv)
	}

	return mgr, nil
}

// platformSupported reports whether GOOS belongs to a function-runtime
// family where the external kinit contract is meaningful.
func platformSupported() bool {
	return runtime.GOOS == "linux" || runtime.GOOS == "windows"
}

// Init prepares the environment and acquires the initial TGT:
// KDC resolution, krb5.conf materialization, keytab provisioning, then
// one synchronous acquisition.
//
// Resolution failures are logged and absorbed (the template may carry
// the KDC itself); template, config and keytab I/O errors are fatal;
// an acquisition failure is returned and leaves the manager
// uninitialized with the freshness timestamp unset.
//
// Init must complete before Refresh is used and must not be called
// concurrently.
func (m *Manager) Init(ctx context.Context, keytabBytes []byte) error {
	if !m.enabled {
		return nil
	}

	kinitPath := m.cfg.KinitPath
	if kinitPath == "" {
		kinitPath = "kinit"
	}

	m.cmdPath = kinitPath
	m.cmdArgs = []string{"-V", "-kt", m.cfg.KeytabPath, m.cfg.Principal}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanInit,
		trace.WithAttributes(telemetry.Principal(m.cfg.Principal)))
	defer span.End()

	kdc, source, err := m.resolveKDC(ctx)
	switch {
	case err != nil:
		m.log.Warn("KDC resolution failed, continuing without a resolved KDC",
			logger.KeyKdcSource, source,
			logger.KeyError, err.Error())
		m.recordResolution(source, "error")
	case kdc == "" && source == SourceSRV:
		m.log.Warn("KDC SRV query returned no records",
			logger.KeyKdcSource, source)
		m.recordResolution(source, "empty")
	case kdc == "":
		m.log.Warn("no KDC configured, relying on the template")
		m.recordResolution(source, "empty")
	default:
		m.log.Info("resolved KDC",
			logger.KeyKdc, kdc,
			logger.KeyKdcSource, source)
		m.recordResolution(source, "success")
	}

	m.kdc = kdc
	m.kdcSource = source

	matCtx, matSpan := telemetry.StartSpan(ctx, telemetry.SpanMaterialize,
		trace.WithAttributes(telemetry.Kdc(kdc)))
	if err := m.materialize(kdc); err != nil {
		telemetry.RecordError(matCtx, err)
		matSpan.End()
		return err
	}
	matSpan.End()

	if err := m.writeKeytab(keytabBytes); err != nil {
		return err
	}

	m.gate.Lock()
	defer m.gate.Unlock()

	if err := m.acquire(ctx, TriggerInit); err != nil {
		return fmt.Errorf("initial ticket acquisition: %w", err)
	}

	m.initialized.Store(true)

	m.log.Info("ticket manager ready",
		logger.KeyPrincipal, m.cfg.Principal,
		logger.KeyKdc, m.kdc)

	return nil
}

// writeKeytab validates and persists the provisioned keytab bytes.
// An unparseable keytab is fatal; a keytab without an entry for the
// configured principal is only worth a warning (cross-realm setups may
// resolve the entry differently at acquisition time).
func (m *Manager) writeKeytab(data []byte) error {
	if err := keytab.Validate(data); err != nil {
		return fmt.Errorf("keytab validation: %w", err)
	}

	if ok, err := keytab.HasPrincipal(data, m.cfg.Principal); err == nil && !ok {
		m.log.Warn("keytab has no entry for the configured principal",
			logger.KeyPrincipal, m.cfg.Principal)
	}

	if err := os.WriteFile(m.cfg.KeytabPath, data, 0600); err != nil {
		return fmt.Errorf("write keytab %s: %w", m.cfg.KeytabPath, err)
	}

	m.log.Debug("keytab provisioned",
		logger.KeyPath, m.cfg.KeytabPath)

	return nil
}

// Refresh re-acquires the TGT when its age exceeds the configured
// lifetime, or unconditionally when force is set.
//
// The fresh-ticket fast path is a single atomic load: no lock, no
// filesystem, no network. Stale callers serialize behind the gate and
// re-check freshness inside it, so a herd of concurrent stale callers
// spawns kinit exactly once; the rest observe the advanced timestamp
// and return nil.
//
// On acquisition failure the error is returned and the timestamp does
// not advance, so the next caller retries.
func (m *Manager) Refresh(ctx context.Context, force bool) error {
	if !m.enabled {
		return nil
	}

	if !m.initialized.Load() {
		return ErrNotInitialized
	}

	if !force && m.fresh() {
		m.recordRefresh("fresh")
		return nil
	}

	// The fast path stays span-free; only the slow path is worth a
	// trace, and its span covers the wait for the gate.
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanRefresh,
		trace.WithAttributes(telemetry.Principal(m.cfg.Principal)))
	defer span.End()

	m.gate.Lock()
	defer m.gate.Unlock()

	if !force && m.fresh() {
		// Another caller refreshed while we waited for the gate.
		m.recordRefresh("skipped")
		return nil
	}

	trigger := TriggerRefresh
	if force {
		trigger = TriggerForce
	}
	telemetry.SetAttributes(ctx, telemetry.Trigger(trigger))

	if err := m.acquire(ctx, trigger); err != nil {
		m.recordRefresh("error")
		telemetry.RecordError(ctx, err)
		return err
	}

	m.recordRefresh("refreshed")
	return nil
}

// fresh reports whether the last acquisition is younger than the
// ticket lifetime. Zero timestamp (never acquired) is never fresh.
func (m *Manager) fresh() bool {
	last := m.lastAcquired.Load()
	if last == 0 {
		return false
	}
	return m.now().Sub(time.Unix(0, last)) < m.cfg.TicketLifetime
}

// resolveKDC runs KDC discovery under its own span so a slow or
// failing SRV lookup shows up in traces separately from the
// acquisition itself.
func (m *Manager) resolveKDC(ctx context.Context) (kdc, source string, err error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanResolve)
	defer span.End()

	if m.cfg.RealmKdcSrvName != "" {
		telemetry.SetAttributes(ctx, telemetry.SrvName(m.cfg.RealmKdcSrvName))
	}

	kdc, source, err = m.resolver.Resolve(ctx)
	telemetry.SetAttributes(ctx, telemetry.Kdc(kdc), telemetry.KdcSource(source))
	if err != nil {
		telemetry.RecordError(ctx, err)
	}

	return kdc, source, err
}

// acquire spawns the captured acquisition command and waits for it,
// bounded by AcquireTimeout. The freshness timestamp advances only on a
// confirmed zero exit. Callers must hold the gate.
func (m *Manager) acquire(ctx context.Context, trigger string) error {
	attemptID := uuid.New().String()

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanAcquire,
		trace.WithAttributes(
			telemetry.Principal(m.cfg.Principal),
			telemetry.Kdc(m.kdc),
			telemetry.Trigger(trigger),
			telemetry.AttemptID(attemptID),
		))
	defer span.End()

	log := m.log.With(
		logger.KeyAttemptID, attemptID,
		logger.KeyTrigger, trigger,
		logger.KeyPrincipal, m.cfg.Principal,
	)

	runCtx := ctx
	if m.cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, m.cfg.AcquireTimeout)
		defer cancel()
	}

	log.Debug("spawning acquisition command",
		logger.KeyCommand, m.cmdPath)

	start := m.now()
	err := m.runner.Run(runCtx, m.cmdPath, m.cmdArgs)
	duration := m.now().Sub(start)

	if err != nil {
		status := "error"
		if runCtx.Err() != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			status = "timeout"
		}

		var execErr *ExecError
		if errors.As(err, &execErr) {
			log.Error("ticket acquisition failed",
				logger.KeyExitCode, execErr.ExitCode,
				logger.KeyStderr, execErr.Stderr,
				logger.KeyDurationMs, float64(duration.Milliseconds()))
			telemetry.SetAttributes(ctx, telemetry.ExitCode(execErr.ExitCode))
		} else {
			log.Error("ticket acquisition failed",
				logger.KeyError, err.Error(),
				logger.KeyDurationMs, float64(duration.Milliseconds()))
		}

		telemetry.RecordError(ctx, err)
		m.recordAcquisition(trigger, status, duration)

		return err
	}

	acquiredAt := m.now()
	m.lastAcquired.Store(acquiredAt.UnixNano())
	m.recordAcquisition(trigger, "success", duration)

	if m.metrics != nil {
		m.metrics.SetLastAcquired(acquiredAt)

		// Best effort: the ccache now holds the fresh TGT.
		if status, err := InspectCCache(m.cfg.CcachePath); err == nil && status.HasTGT {
			m.metrics.SetTicketExpiry(status.ExpiresAt)
		}
	}

	log.Info("ticket acquired",
		logger.KeyDurationMs, float64(duration.Milliseconds()))

	return nil
}

// Enabled reports whether the manager operates in this environment.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// Initialized reports whether Init completed successfully.
func (m *Manager) Initialized() bool {
	return m.initialized.Load()
}

// Principal returns the configured principal.
func (m *Manager) Principal() string {
	return m.cfg.Principal
}

// KDC returns the resolved KDC host and its source. Valid after Init.
func (m *Manager) KDC() (host, source string) {
	return m.kdc, m.kdcSource
}

// ConfPath returns the rendered krb5.conf path.
func (m *Manager) ConfPath() string {
	return m.cfg.ConfPath
}

// LastAcquired returns the time of the last successful acquisition, or
// the zero time when no acquisition has succeeded yet.
func (m *Manager) LastAcquired() time.Time {
	last := m.lastAcquired.Load()
	if last == 0 {
		return time.Time{}
	}
	return time.Unix(0, last)
}

// TicketAge returns the age of the current ticket, or zero when no
// acquisition has succeeded yet.
func (m *Manager) TicketAge() time.Duration {
	last := m.LastAcquired()
	if last.IsZero() {
		return 0
	}
	return m.now().Sub(last)
}

// TicketLifetime returns the configured renewal threshold.
func (m *Manager) TicketLifetime() time.Duration {
	return m.cfg.TicketLifetime
}

// Status inspects the credential cache on disk. Returns (nil, nil) on a
// disabled manager, which touches no files.
func (m *Manager) Status() (*TicketStatus, error) {
	if !m.enabled {
		return nil, nil
	}
	return InspectCCache(m.cfg.CcachePath)
}

func (m *Manager) recordAcquisition(trigger, status string, d time.Duration) {
	if m.metrics != nil {
		m.metrics.RecordAcquisition(trigger, status, d)
	}
}

func (m *Manager) recordRefresh(outcome string) {
	if m.metrics != nil {
		m.metrics.RecordRefresh(outcome)
	}
}

func (m *Manager) recordResolution(source, status string) {
	if m.metrics != nil {
		m.metrics.RecordResolution(source, status)
	}
}
