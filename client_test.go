package outreach

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-test/deep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientUpload(t *testing.T) {
	var got UploadRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/recipients", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(UploadResponse{
			Success:        true,
			Message:        "email sent successfully",
			ApplicantEmail: got.Data.Email,
			Action:         ActionCreated,
			EmailResult:    EmailOutcome{Sent: true},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL + "/")

	sent := UploadRequest{
		Data:     Recipient{FullName: "Jane Doe", Email: "jane@example.com"},
		Template: "welcome",
		Force:    true,
	}
	resp, err := client.Upload(context.Background(), sent)
	require.NoError(t, err)

	if diff := deep.Equal(sent, got); diff != nil {
		t.Error(diff)
	}
	assert.True(t, resp.Success)
	assert.Equal(t, ActionCreated, resp.Action)
	assert.True(t, resp.EmailResult.Sent)
}

func TestClientUploadNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing required fields", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Upload(context.Background(), UploadRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "missing required fields")
}

func TestClientStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tracking/stats", r.URL.Path)
		var stats AggregateStats
		stats.TotalEmails = 10
		stats.TotalOpens = 4
		stats.Deliveries.Success = 9
		_ = json.NewEncoder(w).Encode(stats)
	}))
	defer srv.Close()

	stats, err := NewClient(srv.URL).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, stats.TotalEmails)
	assert.Equal(t, 4, stats.TotalOpens)
	assert.Equal(t, 9, stats.Deliveries.Success)
}

func TestClientTracking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tracking/tid-1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(TrackingStats{DeliveryId: "tid-1", OpenCount: 2})
	}))
	defer srv.Close()

	stats, err := NewClient(srv.URL).Tracking(context.Background(), "tid-1")
	require.NoError(t, err)
	assert.Equal(t, "tid-1", stats.DeliveryId)
	assert.Equal(t, 2, stats.OpenCount)
}
