package keytab

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jcmturner/gokrb5/v8/keytab"

	"github.com/marmos91/tgtkeep/pkg/config"
)

// createTestKeytab marshals a minimal keytab with one entry.
func createTestKeytab(t *testing.T, principal, realm string) []byte {
	t.Helper()

	kt := keytab.New()
	if err := kt.AddEntry(principal, realm, "test-password", time.Now(), 1, 17); err != nil {
		t.Fatalf("add keytab entry: %v", err)
	}

	data, err := kt.Marshal()
	if err != nil {
		t.Fatalf("marshal test keytab: %v", err)
	}

	return data
}

// ============================================================================
// Validate tests
// ============================================================================

func TestValidate_WellFormed(t *testing.T) {
	data := createTestKeytab(t, "svc-reports", "EXAMPLE.COM")

	if err := Validate(data); err != nil {
		t.Fatalf("Validate failed on well-formed keytab: %v", err)
	}
}

func TestValidate_Empty(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Fatal("expected error for empty keytab")
	}
}

func TestValidate_Garbage(t *testing.T) {
	if err := Validate([]byte("definitely not a keytab")); err == nil {
		t.Fatal("expected error for unparseable keytab")
	}
}

// ============================================================================
// Entries tests
// ============================================================================

func TestEntries_Summary(t *testing.T) {
	data := createTestKeytab(t, "svc-reports", "EXAMPLE.COM")

	entries, err := Entries(data)
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	e := entries[0]
	if e.Principal != "svc-reports" {
		t.Fatalf("expected principal svc-reports, got %s", e.Principal)
	}
	if e.Realm != "EXAMPLE.COM" {
		t.Fatalf("expected realm EXAMPLE.COM, got %s", e.Realm)
	}
	if e.KVNO != 1 {
		t.Fatalf("expected kvno 1, got %d", e.KVNO)
	}
	if e.EType != 17 {
		t.Fatalf("expected etype 17, got %d", e.EType)
	}
}

func TestEntries_MultiComponentPrincipal(t *testing.T) {
	data := createTestKeytab(t, "svc/host.example.com", "EXAMPLE.COM")

	entries, err := Entries(data)
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if entries[0].Principal != "svc/host.example.com" {
		t.Fatalf("expected slash-joined components, got %s", entries[0].Principal)
	}
}

// ============================================================================
// HasPrincipal tests
// ============================================================================

func TestHasPrincipal_Match(t *testing.T) {
	data := createTestKeytab(t, "svc-reports", "EXAMPLE.COM")

	ok, err := HasPrincipal(data, "svc-reports@EXAMPLE.COM")
	if err != nil {
		t.Fatalf("HasPrincipal failed: %v", err)
	}
	if !ok {
		t.Fatal("expected principal match")
	}
}

func TestHasPrincipal_RealmCaseInsensitive(t *testing.T) {
	data := createTestKeytab(t, "svc-reports", "EXAMPLE.COM")

	ok, err := HasPrincipal(data, "svc-reports@example.com")
	if err != nil {
		t.Fatalf("HasPrincipal failed: %v", err)
	}
	if !ok {
		t.Fatal("expected case-insensitive realm match")
	}
}

func TestHasPrincipal_NoRealmGiven(t *testing.T) {
	data := createTestKeytab(t, "svc-reports", "EXAMPLE.COM")

	ok, err := HasPrincipal(data, "svc-reports")
	if err != nil {
		t.Fatalf("HasPrincipal failed: %v", err)
	}
	if !ok {
		t.Fatal("expected match when no realm is given")
	}
}

func TestHasPrincipal_NoMatch(t *testing.T) {
	data := createTestKeytab(t, "svc-reports", "EXAMPLE.COM")

	ok, err := HasPrincipal(data, "other@EXAMPLE.COM")
	if err != nil {
		t.Fatalf("HasPrincipal failed: %v", err)
	}
	if ok {
		t.Fatal("expected no match for a different principal")
	}
}

// ============================================================================
// SplitPrincipal tests
// ============================================================================

func TestSplitPrincipal(t *testing.T) {
	name, realm := SplitPrincipal("svc-reports@EXAMPLE.COM")
	if name != "svc-reports" || realm != "EXAMPLE.COM" {
		t.Fatalf("unexpected split: %s / %s", name, realm)
	}

	name, realm = SplitPrincipal("svc-reports")
	if name != "svc-reports" || realm != "" {
		t.Fatalf("unexpected split without realm: %s / %s", name, realm)
	}
}

// ============================================================================
// Source tests
// ============================================================================

func TestFileSource_Fetch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.keytab")
	data := createTestKeytab(t, "svc-reports", "EXAMPLE.COM")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write keytab: %v", err)
	}

	src := NewFileSource(path)

	got, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(got) != len(data) {
		t.Fatalf("expected %d bytes, got %d", len(data), len(got))
	}
}

func TestFileSource_Missing(t *testing.T) {
	src := NewFileSource("/nonexistent/test.keytab")

	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFromConfig_FileSource(t *testing.T) {
	cfg := &config.KeytabConfig{Source: "file", Path: "/var/task/app.keytab"}

	src, err := FromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	if _, ok := src.(*FileSource); !ok {
		t.Fatalf("expected *FileSource, got %T", src)
	}
}

func TestFromConfig_DefaultsToFile(t *testing.T) {
	cfg := &config.KeytabConfig{Path: "/var/task/app.keytab"}

	src, err := FromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	if src.Describe() != "file:/var/task/app.keytab" {
		t.Fatalf("unexpected source: %s", src.Describe())
	}
}

func TestFromConfig_NoSource(t *testing.T) {
	if _, err := FromConfig(context.Background(), nil); !errors.Is(err, ErrNoSource) {
		t.Fatalf("expected ErrNoSource, got %v", err)
	}

	if _, err := FromConfig(context.Background(), &config.KeytabConfig{Source: "file"}); !errors.Is(err, ErrNoSource) {
		t.Fatalf("expected ErrNoSource for file source without path, got %v", err)
	}

	if _, err := FromConfig(context.Background(), &config.KeytabConfig{Source: "carrier-pigeon"}); !errors.Is(err, ErrNoSource) {
		t.Fatalf("expected ErrNoSource for unknown source, got %v", err)
	}
}

func TestS3Source_RequiresBucketAndKey(t *testing.T) {
	if _, err := NewS3Source(context.Background(), &config.S3KeytabConfig{Bucket: "b"}); err == nil {
		t.Fatal("expected error for missing key")
	}
	if _, err := NewS3Source(context.Background(), &config.S3KeytabConfig{Key: "k"}); err == nil {
		t.Fatal("expected error for missing bucket")
	}
}
