package ops

import (
	"net/http"

	"github.com/marmos91/tgtkeep/internal/logger"
)

// RefreshTicket returns middleware that keeps the TGT fresh on the
// request hot path.
//
// Applications that embed the ticket manager mount this in their own
// router: every inbound request pays one atomic load while the ticket
// is fresh, and the first request past the lifetime triggers a single
// renewal while concurrent requests wait behind the gate.
//
// A renewal failure produces 503: the handler downstream would fail
// against the backing service anyway, and a retryable status lets the
// caller back off.
func RefreshTicket(m TicketManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := m.Refresh(r.Context(), false); err != nil {
				logger.Error("ticket refresh failed on request path",
					logger.KeyPath, r.URL.Path,
					logger.KeyError, err.Error())
				writeJSON(w, http.StatusServiceUnavailable, errorResponse("ticket refresh failed"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
