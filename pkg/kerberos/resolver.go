package kerberos

import (
	"context"
	"fmt"
	"net"
	"strings"
)

// KDC resolution sources reported by Resolver.Resolve.
const (
	SourceStatic = "static"
	SourceSRV    = "srv"
	SourceNone   = "none"
)

// SRVLookupFunc performs a DNS SRV query for the given full query name
// (e.g. "_kerberos._udp.EXAMPLE.COM"). It matches the shape of
// net.Resolver.LookupSRV with empty service and proto, which queries
// the supplied name directly.
type SRVLookupFunc func(ctx context.Context, name string) (cname string, addrs []*net.SRV, err error)

// defaultSRVLookup queries the system-configured resolver.
func defaultSRVLookup(ctx context.Context, name string) (string, []*net.SRV, error) {
	return net.DefaultResolver.LookupSRV(ctx, "", "", name)
}

// Resolver discovers the realm's KDC host.
//
// A static KDC always wins and short-circuits any network activity.
// Otherwise the configured SRV name is queried and the first record is
// taken exactly as the resolver returned it; answer order is trusted
// and never re-sorted.
type Resolver struct {
	staticKdc string
	srvName   string
	lookup    SRVLookupFunc
}

// NewResolver creates a Resolver. A nil lookup uses the system
// resolver.
func NewResolver(staticKdc, srvName string, lookup SRVLookupFunc) *Resolver {
	if lookup == nil {
		lookup = defaultSRVLookup
	}

	return &Resolver{
		staticKdc: staticKdc,
		srvName:   srvName,
		lookup:    lookup,
	}
}

// Resolve returns the KDC host and the source it came from.
//
// Outcomes:
//   - static KDC configured: (host, SourceStatic, nil) with zero
//     network calls
//   - SRV name configured: first record's target with the trailing dot
//     trimmed, or an empty host when the query errors or returns no
//     records (the error, if any, is returned for the caller to log;
//     resolution failure is not fatal)
//   - neither configured: ("", SourceNone, nil)
func (r *Resolver) Resolve(ctx context.Context) (kdc, source string, err error) {
	if r.staticKdc != "" {
		return r.staticKdc, SourceStatic, nil
	}

	if r.srvName == "" {
		return "", SourceNone, nil
	}

	_, addrs, err := r.lookup(ctx, r.srvName)
	if err != nil {
		return "", SourceSRV, fmt.Errorf("SRV lookup %s: %w", r.srvName, err)
	}

	if len(addrs) == 0 {
		return "", SourceSRV, nil
	}

	return strings.TrimSuffix(addrs[0].Target, "."), SourceSRV, nil
}
