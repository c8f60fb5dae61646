package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfenwick/tradedesk/internal/domain"
)

func TestTriggerAudit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/audit/run", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]bool{"success": true})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test")
	ok, err := c.TriggerAudit(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTriggerAuditEngineRefuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]bool{"success": false})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test")
	ok, err := c.TriggerAudit(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepairStage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audit/repair", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "core_tests", body["stage"])

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test")
	assert.NoError(t, c.RepairStage(context.Background(), "core_tests"))
}

func TestRepairStageFailureIsStatusDriven(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "stage repair exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test")
	err := c.RepairStage(context.Background(), "core_tests")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestTuningHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tuning/history", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("limit"))

		json.NewEncoder(w).Encode(map[string]any{
			"records": []domain.TuningRecord{
				{ID: "tr-2", Timestamp: time.Now(), Strategy: "momentum", Score: 1.4},
				{ID: "tr-1", Timestamp: time.Now().Add(-time.Hour), Strategy: "momentum", Score: 1.1},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test")
	records, err := c.TuningHistory(context.Background(), 25)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "tr-2", records[0].ID)
}

func TestTuningHistoryOmitsZeroLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("limit"))
		json.NewEncoder(w).Encode(map[string]any{"records": []domain.TuningRecord{}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test")
	records, err := c.TuningHistory(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestUnauthorizedMapsToSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad-token")
	_, err := c.TriggerAudit(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
