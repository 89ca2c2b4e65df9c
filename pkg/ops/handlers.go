// Package ops exposes the sidecar's operational HTTP surface: health
// probes, ticket status, on-demand refresh and Prometheus metrics. It
// also exports a middleware for applications that embed the ticket
// manager in their own router.
package ops

import (
	"context"
	"net/http"
	"time"

	"github.com/marmos91/tgtkeep/internal/logger"
	"github.com/marmos91/tgtkeep/pkg/kerberos"
)

// TicketManager is the slice of the ticket manager the ops server
// consumes. *kerberos.Manager satisfies it; tests substitute fakes.
type TicketManager interface {
	Enabled() bool
	Initialized() bool
	Principal() string
	KDC() (host, source string)
	LastAcquired() time.Time
	TicketAge() time.Duration
	TicketLifetime() time.Duration
	Refresh(ctx context.Context, force bool) error
	Status() (*kerberos.TicketStatus, error)
}

// ticketHandler handles the ops endpoints.
type ticketHandler struct {
	manager   TicketManager
	startTime time.Time
}

func newTicketHandler(m TicketManager) *ticketHandler {
	return &ticketHandler{
		manager:   m,
		startTime: time.Now(),
	}
}

// Liveness handles GET /health - simple liveness probe.
//
// Returns 200 OK as long as the HTTP server is responsive.
func (h *ticketHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"service":    "tgtkeep",
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	}))
}

// Readiness handles GET /health/ready - readiness probe.
//
// Ready means the manager completed Init, or is disabled (a disabled
// manager never blocks anyone).
func (h *ticketHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.manager == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("ticket manager not configured"))
		return
	}

	if h.manager.Enabled() && !h.manager.Initialized() {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("ticket manager not initialized"))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"enabled":     h.manager.Enabled(),
		"initialized": h.manager.Initialized(),
	}))
}

// TicketInfo is the payload of GET /api/v1/ticket.
type TicketInfo struct {
	Enabled        bool                   `json:"enabled"`
	Initialized    bool                   `json:"initialized"`
	Principal      string                 `json:"principal,omitempty"`
	Kdc            string                 `json:"kdc,omitempty"`
	KdcSource      string                 `json:"kdc_source,omitempty"`
	LastAcquired   *time.Time             `json:"last_acquired,omitempty"`
	TicketAge      string                 `json:"ticket_age,omitempty"`
	TicketLifetime string                 `json:"ticket_lifetime,omitempty"`
	Ccache         *kerberos.TicketStatus `json:"ccache,omitempty"`
}

// Status handles GET /api/v1/ticket - manager status.
func (h *ticketHandler) Status(w http.ResponseWriter, r *http.Request) {
	info := TicketInfo{
		Enabled:     h.manager.Enabled(),
		Initialized: h.manager.Initialized(),
	}

	if h.manager.Enabled() {
		info.Principal = h.manager.Principal()
		info.Kdc, info.KdcSource = h.manager.KDC()
		info.TicketLifetime = h.manager.TicketLifetime().String()

		if last := h.manager.LastAcquired(); !last.IsZero() {
			info.LastAcquired = &last
			info.TicketAge = h.manager.TicketAge().Round(time.Second).String()
		}

		// ccache details are best effort: a missing cache just means
		// kinit has not run yet.
		if status, err := h.manager.Status(); err == nil {
			info.Ccache = status
		}
	}

	writeJSON(w, http.StatusOK, okResponse(info))
}

// RefreshTicketHandler handles POST /api/v1/ticket/refresh?force= -
// drives one refresh cycle.
//
// Returns 502 when the acquisition fails; the body carries the
// subprocess error.
func (h *ticketHandler) RefreshTicketHandler(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"

	before := h.manager.LastAcquired()

	if err := h.manager.Refresh(r.Context(), force); err != nil {
		logger.Error("refresh request failed",
			"force", force,
			logger.KeyError, err.Error())
		writeJSON(w, http.StatusBadGateway, errorResponse(err.Error()))
		return
	}

	after := h.manager.LastAcquired()

	writeJSON(w, http.StatusOK, okResponse(map[string]interface{}{
		"refreshed":     after.After(before),
		"force":         force,
		"last_acquired": after,
	}))
}
