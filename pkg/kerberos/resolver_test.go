package kerberos

import (
	"context"
	"errors"
	"net"
	"testing"
)

// fakeLookup returns a canned SRV answer and counts invocations.
type fakeLookup struct {
	addrs []*net.SRV
	err   error
	calls int
}

func (f *fakeLookup) lookup(_ context.Context, name string) (string, []*net.SRV, error) {
	f.calls++
	return name, f.addrs, f.err
}

// ============================================================================
// Resolve tests
// ============================================================================

func TestResolve_StaticKdcWins(t *testing.T) {
	fl := &fakeLookup{
		addrs: []*net.SRV{{Target: "srv-kdc.example.com.", Port: 88}},
	}

	r := NewResolver("static-kdc.example.com", "_kerberos._udp.EXAMPLE.COM", fl.lookup)

	kdc, source, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if kdc != "static-kdc.example.com" {
		t.Fatalf("expected static KDC, got %s", kdc)
	}
	if source != SourceStatic {
		t.Fatalf("expected source %s, got %s", SourceStatic, source)
	}
	if fl.calls != 0 {
		t.Fatalf("static KDC must not trigger DNS, got %d lookups", fl.calls)
	}
}

func TestResolve_SRVFirstRecordAsReturned(t *testing.T) {
	// The answer order is deliberately not priority-sorted; the first
	// record must be taken exactly as returned.
	fl := &fakeLookup{
		addrs: []*net.SRV{
			{Target: "kdc-b.example.com.", Priority: 20, Weight: 0, Port: 88},
			{Target: "kdc-a.example.com.", Priority: 10, Weight: 100, Port: 88},
		},
	}

	r := NewResolver("", "_kerberos._udp.EXAMPLE.COM", fl.lookup)

	kdc, source, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if kdc != "kdc-b.example.com" {
		t.Fatalf("expected first record with trailing dot trimmed, got %s", kdc)
	}
	if source != SourceSRV {
		t.Fatalf("expected source %s, got %s", SourceSRV, source)
	}
}

func TestResolve_SRVError(t *testing.T) {
	fl := &fakeLookup{err: errors.New("no such host")}

	r := NewResolver("", "_kerberos._udp.EXAMPLE.COM", fl.lookup)

	kdc, source, err := r.Resolve(context.Background())
	if err == nil {
		t.Fatal("expected error from failing lookup")
	}
	if kdc != "" {
		t.Fatalf("expected empty KDC on error, got %s", kdc)
	}
	if source != SourceSRV {
		t.Fatalf("expected source %s, got %s", SourceSRV, source)
	}
}

func TestResolve_SRVNoRecords(t *testing.T) {
	fl := &fakeLookup{}

	r := NewResolver("", "_kerberos._udp.EXAMPLE.COM", fl.lookup)

	kdc, source, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("zero records must not be an error, got: %v", err)
	}
	if kdc != "" {
		t.Fatalf("expected empty KDC, got %s", kdc)
	}
	if source != SourceSRV {
		t.Fatalf("expected source %s, got %s", SourceSRV, source)
	}
}

func TestResolve_NothingConfigured(t *testing.T) {
	fl := &fakeLookup{}

	r := NewResolver("", "", fl.lookup)

	kdc, source, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if kdc != "" {
		t.Fatalf("expected empty KDC, got %s", kdc)
	}
	if source != SourceNone {
		t.Fatalf("expected source %s, got %s", SourceNone, source)
	}
	if fl.calls != 0 {
		t.Fatalf("expected no lookups, got %d", fl.calls)
	}
}
