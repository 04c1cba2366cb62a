package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/streamlens/streamlens/internal/core"
)

func TestStatusHandlerReportsFlowAndLastRun(t *testing.T) {
	t.Cleanup(func() { SetStatusProviders(StatusProviders{}) })

	run := &core.RunSummary{
		RunID:          "run-7",
		Sources:        2,
		Channels:       40,
		ValidEndpoints: 31,
		StartedAt:      time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC),
		CompletedAt:    time.Date(2026, 8, 27, 9, 5, 0, 0, time.UTC),
	}
	SetStatusProviders(StatusProviders{
		FlowStats: func() core.FlowStats {
			return core.FlowStats{CurrentConcurrency: 5, IsThrottling: true}
		},
		LatestRun: func(ctx context.Context) (*core.RunSummary, error) {
			return run, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()

	StatusHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Flow == nil || resp.Flow.CurrentConcurrency != 5 || !resp.Flow.IsThrottling {
		t.Fatalf("unexpected flow stats: %+v", resp.Flow)
	}
	if resp.LastRun == nil || resp.LastRun.RunID != "run-7" {
		t.Fatalf("unexpected last run: %+v", resp.LastRun)
	}
}

func TestStatusHandlerWithoutProviders(t *testing.T) {
	t.Cleanup(func() { SetStatusProviders(StatusProviders{}) })
	SetStatusProviders(StatusProviders{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()

	StatusHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Flow != nil || resp.LastRun != nil {
		t.Fatalf("expected empty sections, got %+v", resp)
	}
}

func TestStatusHandlerStoreFailure(t *testing.T) {
	t.Cleanup(func() { SetStatusProviders(StatusProviders{}) })

	SetStatusProviders(StatusProviders{
		LatestRun: func(ctx context.Context) (*core.RunSummary, error) {
			return nil, errors.New("db down")
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()

	StatusHandler(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
}
