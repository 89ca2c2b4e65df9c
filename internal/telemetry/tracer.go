package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys for ticket lifecycle spans.
// OpenTelemetry semantic conventions apply where they exist;
// Kerberos-specific keys use the "kerberos." prefix.
const (
	AttrPrincipal = "kerberos.principal"
	AttrKdc       = "kerberos.kdc"
	AttrKdcSource = "kerberos.kdc_source" // static, srv, none
	AttrTrigger   = "kerberos.trigger"    // init, refresh, force
	AttrAttemptID = "kerberos.attempt_id"

	AttrExitCode = "process.exit_code"

	AttrSrvName = "dns.srv_name"
)

// Span names for operations.
// Format: <component>.<operation>.
const (
	SpanInit        = "kerberos.init"
	SpanResolve     = "kerberos.resolve_kdc"
	SpanMaterialize = "kerberos.materialize_config"
	SpanRefresh     = "kerberos.refresh"
	SpanAcquire     = "kerberos.acquire"
	SpanKeytabFetch = "keytab.fetch"
)

// Principal returns an attribute for the Kerberos principal.
func Principal(p string) attribute.KeyValue {
	return attribute.String(AttrPrincipal, p)
}

// Kdc returns an attribute for the resolved KDC hostname.
func Kdc(host string) attribute.KeyValue {
	return attribute.String(AttrKdc, host)
}

// KdcSource returns an attribute for the KDC discovery source.
func KdcSource(source string) attribute.KeyValue {
	return attribute.String(AttrKdcSource, source)
}

// Trigger returns an attribute for what drove an acquisition.
func Trigger(t string) attribute.KeyValue {
	return attribute.String(AttrTrigger, t)
}

// AttemptID returns an attribute for the acquisition attempt id.
func AttemptID(id string) attribute.KeyValue {
	return attribute.String(AttrAttemptID, id)
}

// ExitCode returns an attribute for a subprocess exit code.
func ExitCode(code int) attribute.KeyValue {
	return attribute.Int(AttrExitCode, code)
}

// SrvName returns an attribute for the DNS SRV query name.
func SrvName(name string) attribute.KeyValue {
	return attribute.String(AttrSrvName, name)
}
