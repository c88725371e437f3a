package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cronq/internal/cronq"
	"cronq/internal/cronq/test/mocks"
	"cronq/internal/models"
	"cronq/internal/state"
	"cronq/internal/store"
)

type fakeController struct {
	queueFunc   func(ctx context.Context, name string) (string, error)
	restartFunc func(ctx context.Context, instanceID string) error
}

func (f *fakeController) QueueJobNow(ctx context.Context, name string) (string, error) {
	return f.queueFunc(ctx, name)
}

func (f *fakeController) RestartInstance(ctx context.Context, instanceID string) error {
	return f.restartFunc(ctx, instanceID)
}

func newTestServer(controller *fakeController, instanceStore *mocks.MockInstanceStore) *httptest.Server {
	handler := NewRouteHandler(controller, instanceStore, 0)
	return httptest.NewServer(handler.Router())
}

func TestHandleQueueJob(t *testing.T) {
	controller := &fakeController{
		queueFunc: func(ctx context.Context, name string) (string, error) {
			if name == "nightly_sync" {
				return "inst-1", nil
			}
			return "", store.ErrJobNotFound
		},
	}
	server := newTestServer(controller, mocks.NewMockInstanceStore())
	defer server.Close()

	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
	}{
		{"known job", http.MethodPost, `{"name":"nightly_sync"}`, http.StatusAccepted},
		{"unknown job", http.MethodPost, `{"name":"ghost"}`, http.StatusNotFound},
		{"missing name", http.MethodPost, `{}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, `{`, http.StatusBadRequest},
		{"wrong method", http.MethodGet, ``, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, server.URL+"/api/jobs/queue", strings.NewReader(tt.body))
			require.NoError(t, err)
			resp, err := server.Client().Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus == http.StatusAccepted {
				var body map[string]string
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, "inst-1", body["instance_id"])
			}
		})
	}
}

func TestHandleRestartInstance(t *testing.T) {
	controller := &fakeController{
		restartFunc: func(ctx context.Context, instanceID string) error {
			switch instanceID {
			case "inst-failed":
				return nil
			case "inst-done":
				return cronq.ErrNotRestartable
			default:
				return store.ErrInstanceNotFound
			}
		},
	}
	server := newTestServer(controller, mocks.NewMockInstanceStore())
	defer server.Close()

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"failed instance replayed", `{"instance_id":"inst-failed"}`, http.StatusAccepted},
		{"completed instance rejected", `{"instance_id":"inst-done"}`, http.StatusConflict},
		{"unknown instance", `{"instance_id":"ghost"}`, http.StatusNotFound},
		{"missing id", `{}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := server.Client().Post(server.URL+"/api/instances/restart", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestHandleListInstances(t *testing.T) {
	instanceStore := mocks.NewMockInstanceStore()
	instanceStore.SetJobName(1, "nightly_sync")

	ctx := context.Background()
	now := time.Now()
	for i, id := range []string{"inst-1", "inst-2", "inst-3"} {
		claimed, err := instanceStore.Insert(ctx, models.Instance{
			ID: id, JobID: 1, Status: state.StatusQueued,
			StartTime: now.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		require.True(t, claimed)
	}
	require.NoError(t, instanceStore.MarkCompleted(ctx, "inst-3", now.Add(time.Hour)))

	server := newTestServer(&fakeController{}, instanceStore)
	defer server.Close()

	t.Run("all instances", func(t *testing.T) {
		resp, err := server.Client().Get(server.URL + "/api/instances")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result struct {
			Items      []models.InstanceReportRow `json:"items"`
			TotalItems int                        `json:"total_items"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.Equal(t, 3, result.TotalItems)
		assert.Len(t, result.Items, 3)
	})

	t.Run("filtered by status", func(t *testing.T) {
		resp, err := server.Client().Get(server.URL + "/api/instances?status=completed")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result struct {
			Items []models.InstanceReportRow `json:"items"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		require.Len(t, result.Items, 1)
		assert.Equal(t, "inst-3", result.Items[0].InstanceID)
	})

	t.Run("unknown status", func(t *testing.T) {
		resp, err := server.Client().Get(server.URL + "/api/instances?status=bogus")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("wrong method", func(t *testing.T) {
		resp, err := server.Client().Post(server.URL+"/api/instances", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}
