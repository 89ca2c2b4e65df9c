package kerberos

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jcmturner/gokrb5/v8/keytab"

	"github.com/marmos91/tgtkeep/pkg/config"
)

// fakeRunner counts spawn attempts and returns canned results.
type fakeRunner struct {
	mu    sync.Mutex
	calls int
	err   error
	block bool // wait for ctx cancellation instead of returning
}

func (f *fakeRunner) Run(ctx context.Context, path string, args []string) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return &ExecError{Cmdline: path, ExitCode: -1, Stderr: "killed"}
	}

	return f.err
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeClock is a manually-advanced clock safe for concurrent readers.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// createTestKeytabBytes builds a minimal keytab carrying the test
// manager's principal.
func createTestKeytabBytes(t *testing.T) []byte {
	t.Helper()

	kt := keytab.New()
	if err := kt.AddEntry("svc-reports", "EXAMPLE.COM", "test-password", time.Now(), 1, 17); err != nil {
		t.Fatalf("add keytab entry: %v", err)
	}

	data, err := kt.Marshal()
	if err != nil {
		t.Fatalf("marshal test keytab: %v", err)
	}

	return data
}

// initTestManager prepares an enabled manager with a template on disk,
// a fake runner and a fake clock, and runs Init.
func initTestManager(t *testing.T, runner *fakeRunner, clk *fakeClock) *Manager {
	t.Helper()
	t.Setenv("KRB5_CONFIG", "")

	dir := t.TempDir()
	m := newTestManager(t, dir)
	m.runner = runner
	m.now = clk.Now
	writeTemplate(t, m, "[realms]\nEXAMPLE.COM = {\n  kdc = {{kdc}}\n}\n")

	if err := m.Init(context.Background(), createTestKeytabBytes(t)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	return m
}

// ============================================================================
// NewManager tests
// ============================================================================

func TestNewManager_NilConfig(t *testing.T) {
	if _, err := NewManager(nil, nil, nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestNewManager_NonPositiveLifetime(t *testing.T) {
	cfg := &config.KerberosConfig{Principal: "svc@EXAMPLE.COM"}
	if _, err := NewManager(cfg, nil, nil); err == nil {
		t.Fatal("expected error for non-positive ticket lifetime")
	}
}

func TestNewManager_DisabledWithoutMarker(t *testing.T) {
	t.Setenv("TGTKEEP_TEST_MARKER", "")

	cfg := &config.KerberosConfig{
		TicketLifetime: 8 * time.Hour,
		MarkerEnv:      "TGTKEEP_TEST_MARKER",
	}

	m, err := NewManager(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if m.Enabled() {
		t.Fatal("expected manager disabled without the marker variable")
	}
}

func TestNewManager_EnabledRequiresPrincipal(t *testing.T) {
	t.Setenv("TGTKEEP_TEST_MARKER", "my-function")

	cfg := &config.KerberosConfig{
		TicketLifetime: 8 * time.Hour,
		MarkerEnv:      "TGTKEEP_TEST_MARKER",
	}

	if _, err := NewManager(cfg, nil, nil); err == nil {
		t.Fatal("expected error for missing principal on enabled manager")
	}
}

func TestNewManager_EnabledWithMarker(t *testing.T) {
	t.Setenv("TGTKEEP_TEST_MARKER", "my-function")

	cfg := &config.KerberosConfig{
		Principal:      "svc@EXAMPLE.COM",
		TicketLifetime: 8 * time.Hour,
		MarkerEnv:      "TGTKEEP_TEST_MARKER",
	}

	m, err := NewManager(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if !m.Enabled() {
		t.Fatal("expected manager enabled with the marker variable set")
	}
}

// ============================================================================
// Disabled manager tests
// ============================================================================

func TestDisabled_NoSideEffects(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{}

	m := newTestManager(t, dir)
	m.enabled = false
	m.runner = runner

	// No template exists on disk; a disabled Init must not care.
	if err := m.Init(context.Background(), []byte("garbage")); err != nil {
		t.Fatalf("disabled Init must be a no-op, got: %v", err)
	}
	if err := m.Refresh(context.Background(), false); err != nil {
		t.Fatalf("disabled Refresh must be a no-op, got: %v", err)
	}
	if err := m.Refresh(context.Background(), true); err != nil {
		t.Fatalf("disabled forced Refresh must be a no-op, got: %v", err)
	}

	if runner.count() != 0 {
		t.Fatalf("disabled manager spawned %d processes", runner.count())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("disabled manager touched the filesystem: %v", entries)
	}

	status, err := m.Status()
	if err != nil || status != nil {
		t.Fatalf("disabled Status must be (nil, nil), got (%v, %v)", status, err)
	}
}

// ============================================================================
// Init tests
// ============================================================================

func TestInit_Success(t *testing.T) {
	runner := &fakeRunner{}
	clk := &fakeClock{t: time.Now()}
	m := initTestManager(t, runner, clk)

	if !m.Initialized() {
		t.Fatal("expected manager initialized")
	}
	if runner.count() != 1 {
		t.Fatalf("expected exactly 1 spawn during Init, got %d", runner.count())
	}
	if m.LastAcquired().IsZero() {
		t.Fatal("expected freshness timestamp set after Init")
	}

	// Keytab provisioned with restricted permissions.
	info, err := os.Stat(m.cfg.KeytabPath)
	if err != nil {
		t.Fatalf("stat keytab: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("expected keytab mode 0600, got %v", info.Mode().Perm())
	}

	// Config rendered with the (empty) resolved KDC.
	if _, err := os.Stat(m.cfg.ConfPath); err != nil {
		t.Fatalf("stat rendered config: %v", err)
	}
}

func TestInit_AcquisitionFailure(t *testing.T) {
	t.Setenv("KRB5_CONFIG", "")

	dir := t.TempDir()
	runner := &fakeRunner{err: &ExecError{Cmdline: "kinit", ExitCode: 1, Stderr: "kinit: password incorrect"}}

	m := newTestManager(t, dir)
	m.runner = runner
	writeTemplate(t, m, "kdc = {{kdc}}\n")

	err := m.Init(context.Background(), createTestKeytabBytes(t))
	if err == nil {
		t.Fatal("expected Init to surface the acquisition failure")
	}
	if m.Initialized() {
		t.Fatal("failed Init must leave the manager uninitialized")
	}
	if !m.LastAcquired().IsZero() {
		t.Fatal("failed acquisition must not advance the freshness timestamp")
	}

	var execErr *ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *ExecError in chain, got %T", err)
	}
	if execErr.ExitCode != 1 {
		t.Fatalf("expected exit code 1, got %d", execErr.ExitCode)
	}
}

func TestInit_InvalidKeytabFatal(t *testing.T) {
	t.Setenv("KRB5_CONFIG", "")

	dir := t.TempDir()
	runner := &fakeRunner{}

	m := newTestManager(t, dir)
	m.runner = runner
	writeTemplate(t, m, "kdc = {{kdc}}\n")

	if err := m.Init(context.Background(), []byte("not a keytab")); err == nil {
		t.Fatal("expected error for unparseable keytab")
	}
	if runner.count() != 0 {
		t.Fatal("invalid keytab must fail before any spawn")
	}
}

func TestInit_StaticKdcRendered(t *testing.T) {
	t.Setenv("KRB5_CONFIG", "")

	dir := t.TempDir()
	m := newTestManager(t, dir)
	m.cfg.RealmKdc = "static-kdc.example.com"
	m.resolver = NewResolver(m.cfg.RealmKdc, "", nil)
	m.runner = &fakeRunner{}
	writeTemplate(t, m, "kdc = {{kdc}}\n")

	if err := m.Init(context.Background(), createTestKeytabBytes(t)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	data, err := os.ReadFile(m.cfg.ConfPath)
	if err != nil {
		t.Fatalf("read rendered config: %v", err)
	}
	if string(data) != "kdc = static-kdc.example.com\n" {
		t.Fatalf("expected static KDC in rendered config, got %q", data)
	}

	host, source := m.KDC()
	if host != "static-kdc.example.com" || source != SourceStatic {
		t.Fatalf("unexpected KDC snapshot: %s (%s)", host, source)
	}
}

func TestInit_SingleSRVQuery(t *testing.T) {
	t.Setenv("KRB5_CONFIG", "")

	dir := t.TempDir()
	m := newTestManager(t, dir)
	fl := &fakeLookup{
		addrs: []*net.SRV{{Target: "srv-kdc.example.com.", Port: 88}},
	}
	m.cfg.RealmKdcSrvName = "_kerberos._tcp.EXAMPLE.COM"
	m.resolver = NewResolver("", m.cfg.RealmKdcSrvName, fl.lookup)
	m.runner = &fakeRunner{}
	writeTemplate(t, m, "kdc = {{kdc}}\n")

	if err := m.Init(context.Background(), createTestKeytabBytes(t)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	// The KDC is resolved once at Init and snapshotted; renewals and
	// accessors reuse the snapshot instead of querying DNS again.
	for i := 0; i < 3; i++ {
		if err := m.Refresh(context.Background(), true); err != nil {
			t.Fatalf("forced refresh %d failed: %v", i, err)
		}
	}
	if host, source := m.KDC(); host != "srv-kdc.example.com" || source != SourceSRV {
		t.Fatalf("unexpected KDC snapshot: %s (%s)", host, source)
	}

	if fl.calls != 1 {
		t.Fatalf("expected exactly one SRV query, got %d", fl.calls)
	}
}

// ============================================================================
// Refresh tests
// ============================================================================

func TestRefresh_BeforeInit(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t, dir)
	m.runner = &fakeRunner{}

	if err := m.Refresh(context.Background(), false); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestRefresh_FreshTicketNoSpawn(t *testing.T) {
	runner := &fakeRunner{}
	clk := &fakeClock{t: time.Now()}
	m := initTestManager(t, runner, clk)

	clk.Advance(time.Hour) // well within the 8h lifetime

	for i := 0; i < 5; i++ {
		if err := m.Refresh(context.Background(), false); err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}
	}

	if runner.count() != 1 {
		t.Fatalf("fresh ticket must not spawn, got %d total spawns", runner.count())
	}
}

func TestRefresh_StaleTicketSpawnsOnce(t *testing.T) {
	runner := &fakeRunner{}
	clk := &fakeClock{t: time.Now()}
	m := initTestManager(t, runner, clk)

	before := m.LastAcquired()
	clk.Advance(9 * time.Hour)

	if err := m.Refresh(context.Background(), false); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if runner.count() != 2 {
		t.Fatalf("expected 1 refresh spawn on top of Init, got %d total", runner.count())
	}
	if !m.LastAcquired().After(before) {
		t.Fatal("expected freshness timestamp to advance")
	}

	// Immediately after, the ticket is fresh again.
	if err := m.Refresh(context.Background(), false); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if runner.count() != 2 {
		t.Fatal("fresh ticket after refresh must not spawn again")
	}
}

func TestRefresh_ForceAlwaysSpawns(t *testing.T) {
	runner := &fakeRunner{}
	clk := &fakeClock{t: time.Now()}
	m := initTestManager(t, runner, clk)

	for i := 0; i < 3; i++ {
		if err := m.Refresh(context.Background(), true); err != nil {
			t.Fatalf("forced Refresh failed: %v", err)
		}
	}

	if runner.count() != 4 {
		t.Fatalf("expected 3 forced spawns on top of Init, got %d total", runner.count())
	}
}

func TestRefresh_FailureDoesNotAdvance(t *testing.T) {
	runner := &fakeRunner{}
	clk := &fakeClock{t: time.Now()}
	m := initTestManager(t, runner, clk)

	acquired := m.LastAcquired()
	clk.Advance(9 * time.Hour)

	runner.err = &ExecError{Cmdline: "kinit", ExitCode: 1, Stderr: "kdc unreachable"}

	if err := m.Refresh(context.Background(), false); err == nil {
		t.Fatal("expected error from failed acquisition")
	}
	if !m.LastAcquired().Equal(acquired) {
		t.Fatal("failed refresh must not advance the freshness timestamp")
	}

	// Next refresh retries because the timestamp never advanced.
	runner.err = nil
	if err := m.Refresh(context.Background(), false); err != nil {
		t.Fatalf("retry Refresh failed: %v", err)
	}
	if runner.count() != 3 {
		t.Fatalf("expected retry spawn, got %d total", runner.count())
	}
}

func TestRefresh_TimeoutIsFailure(t *testing.T) {
	runner := &fakeRunner{block: true}
	clk := &fakeClock{t: time.Now()}
	m := initTestManager(t, &fakeRunner{}, clk)

	m.runner = runner
	m.cfg.AcquireTimeout = 50 * time.Millisecond

	acquired := m.LastAcquired()

	if err := m.Refresh(context.Background(), true); err == nil {
		t.Fatal("expected timeout to surface as an acquisition failure")
	}
	if !m.LastAcquired().Equal(acquired) {
		t.Fatal("timed-out acquisition must not advance the freshness timestamp")
	}
}

func TestRefresh_ConcurrentStaleCallersSpawnOnce(t *testing.T) {
	runner := &fakeRunner{}
	clk := &fakeClock{t: time.Now()}
	m := initTestManager(t, runner, clk)

	clk.Advance(9 * time.Hour)

	const callers = 16
	var wg sync.WaitGroup
	errCh := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- m.Refresh(context.Background(), false)
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Fatalf("concurrent Refresh failed: %v", err)
		}
	}

	if runner.count() != 2 {
		t.Fatalf("concurrent stale callers must collapse into 1 spawn, got %d on top of Init", runner.count()-1)
	}
}

// ============================================================================
// Accessor tests
// ============================================================================

func TestTicketAge(t *testing.T) {
	runner := &fakeRunner{}
	clk := &fakeClock{t: time.Now()}
	m := initTestManager(t, runner, clk)

	clk.Advance(2 * time.Hour)

	if age := m.TicketAge(); age != 2*time.Hour {
		t.Fatalf("expected ticket age 2h, got %s", age)
	}
}

func TestTicketAge_NeverAcquired(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t, dir)

	if age := m.TicketAge(); age != 0 {
		t.Fatalf("expected zero age before any acquisition, got %s", age)
	}
	if !m.LastAcquired().IsZero() {
		t.Fatal("expected zero LastAcquired before any acquisition")
	}
}

func TestExecError_Message(t *testing.T) {
	err := &ExecError{
		Cmdline:  "kinit -V -kt /tmp/kt svc@EXAMPLE.COM",
		ExitCode: 1,
		Stderr:   "kinit: Client not found in Kerberos database",
	}

	msg := err.Error()
	if !strings.Contains(msg, "code 1") {
		t.Fatalf("expected exit code in message, got %q", msg)
	}
	if !strings.Contains(msg, "Client not found") {
		t.Fatalf("expected stderr in message, got %q", msg)
	}
}
