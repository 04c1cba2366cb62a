package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/streamlens/streamlens/internal/core"
	apperrors "github.com/streamlens/streamlens/internal/errors"
)

// StatusProviders supplies the live data behind the status endpoint.
// Nil fields disable the corresponding section.
type StatusProviders struct {
	FlowStats func() core.FlowStats
	LatestRun func(ctx context.Context) (*core.RunSummary, error)
}

// StatusResponse is the /api/v1/status body.
type StatusResponse struct {
	Timestamp time.Time        `json:"timestamp"`
	Flow      *core.FlowStats  `json:"flow,omitempty"`
	LastRun   *core.RunSummary `json:"last_run,omitempty"`
}

var statusProviders StatusProviders

// SetStatusProviders injects the data sources used by StatusHandler.
func SetStatusProviders(providers StatusProviders) {
	statusProviders = providers
}

// StatusHandler reports the validator's flow state and the latest
// aggregation run.
func StatusHandler(w http.ResponseWriter, r *http.Request) {
	response := StatusResponse{Timestamp: time.Now().UTC()}

	if statusProviders.FlowStats != nil {
		stats := statusProviders.FlowStats()
		response.Flow = &stats
	}

	if statusProviders.LatestRun != nil {
		run, err := statusProviders.LatestRun(r.Context())
		if err != nil {
			respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to load latest run"))
			return
		}
		response.LastRun = run
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
