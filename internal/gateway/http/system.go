package http

import (
	"net/http"
	"time"

	"github.com/ducgiangtran/switchboard/pkg/httpx"
)

// HealthResponse is the body of the liveness probe. The gateway holds no
// stateful dependencies, so liveness is the only probe it serves.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}

func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}
