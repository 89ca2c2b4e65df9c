// Package kerberos manages the lifecycle of a Kerberos ticket-granting
// ticket for short-lived compute environments.
//
// The Manager discovers the realm's KDC (static override or DNS SRV),
// renders a krb5.conf from a template, provisions a keytab, acquires an
// initial TGT through the external kinit executable and transparently
// renews it once its age exceeds the configured lifetime. Renewal is
// concurrency-safe: callers on the hot path pay one atomic load while
// the ticket is fresh, and concurrent stale callers collapse into a
// single kinit invocation behind a mutex gate.
//
// Outside a recognized function-runtime environment the Manager is
// inert: every operation is a no-op with no filesystem, network or
// process side effects.
package kerberos
