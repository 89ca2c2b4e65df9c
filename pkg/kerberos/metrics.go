package kerberos

import "time"

// Metrics receives observations from the ticket manager.
//
// Implementations must be safe for concurrent use. A nil Metrics is
// valid and disables instrumentation entirely.
type Metrics interface {
	// RecordAcquisition records one kinit invocation with its trigger
	// ("init", "refresh", "force"), outcome ("success", "error",
	// "timeout") and wall-clock duration.
	RecordAcquisition(trigger, status string, duration time.Duration)

	// RecordRefresh records the outcome of a Refresh call:
	// "refreshed", "fresh", "skipped" or "error".
	RecordRefresh(outcome string)

	// RecordResolution records a KDC resolution attempt by source
	// ("static", "srv") and outcome ("success", "error", "empty").
	RecordResolution(source, status string)

	// SetTicketExpiry publishes the end time of the current TGT.
	SetTicketExpiry(t time.Time)

	// SetLastAcquired publishes the timestamp of the last successful
	// acquisition.
	SetLastAcquired(t time.Time)
}
