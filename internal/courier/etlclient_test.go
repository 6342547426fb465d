package courier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckHealth_ReportsHealthyFromResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		json.NewEncoder(w).Encode(HealthResponse{Status: HealthHealthy, Version: "1.0", Service: "etl"})
	}))
	defer srv.Close()

	client := NewETLClient(srv.URL)
	healthy, resp, err := client.CheckHealth(context.Background())
	require.NoError(t, err)
	assert.True(t, healthy)
	assert.Equal(t, HealthHealthy, resp.Status)
}

func TestCheckHealth_UnreachableServiceReportsUnhealthy(t *testing.T) {
	client := NewETLClient("http://127.0.0.1:1")
	healthy, _, err := client.CheckHealth(context.Background())
	require.NoError(t, err)
	assert.False(t, healthy)
}

func TestTriggerAnalysis_ParsesAcceptedResponse(t *testing.T) {
	jobID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze/file", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(TriggerResponse{JobID: jobID, Status: "pending"})
	}))
	defer srv.Close()

	client := NewETLClient(srv.URL)
	resp, err := client.TriggerAnalysis(context.Background(), "/shared/uploads/a.csv", uuid.New(), FileCSV, "")
	require.NoError(t, err)
	assert.Equal(t, jobID, resp.JobID)
}

func TestGetStatus_PropagatesErrorOnNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewETLClient(srv.URL)
	_, err := client.GetStatus(context.Background(), uuid.New())
	assert.Error(t, err)
}

func TestGetStatus_DecodesTerminalStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(StatusResponse{Status: "completed", Phase: "complete", ItemsProcessed: 10, ItemsTotal: 10})
	}))
	defer srv.Close()

	client := NewETLClient(srv.URL)
	status, err := client.GetStatus(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, status.IsTerminal())
}
