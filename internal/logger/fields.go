package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation
// and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Kerberos lifecycle
	// ========================================================================
	KeyComponent = "component"  // Component name: resolver, materializer, manager, ops
	KeyPrincipal = "principal"  // Kerberos principal the ticket is acquired for
	KeyRealm     = "realm"      // Kerberos realm
	KeyKdc       = "kdc"        // Resolved KDC hostname
	KeyKdcSource = "kdc_source" // How the KDC was discovered: static, srv, none
	KeyTrigger   = "trigger"    // What drove an acquisition: init, refresh, force
	KeyAttemptID = "attempt_id" // Correlation id of a single acquisition attempt
	KeyTicketAge = "ticket_age" // Age of the current ticket

	// ========================================================================
	// Process / command execution
	// ========================================================================
	KeyCommand  = "command"   // External command line
	KeyExitCode = "exit_code" // Subprocess exit code
	KeyStderr   = "stderr"    // Captured subprocess stderr

	// ========================================================================
	// Filesystem
	// ========================================================================
	KeyPath = "path" // File path

	// ========================================================================
	// HTTP (ops server)
	// ========================================================================
	KeyRequestID  = "request_id"  // HTTP request id
	KeyMethod     = "method"      // HTTP method
	KeyStatus     = "status"      // HTTP status code
	KeyRemoteAddr = "remote_addr" // Client address

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
)

// Err returns a slog.Attr for an error value, handling nil gracefully.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Component returns a pre-bound logger for the named component.
func Component(name string) *slog.Logger {
	return With(KeyComponent, name)
}

// FormatFields formats key-value pairs into a string for error messages.
// Used when field data needs to be embedded in error text rather than
// structured logging.
func FormatFields(args ...any) string {
	if len(args) == 0 {
		return ""
	}

	result := ""
	for i := 0; i < len(args)-1; i += 2 {
		if i > 0 {
			result += " "
		}
		result += fmt.Sprintf("%v=%v", args[i], args[i+1])
	}
	return result
}
