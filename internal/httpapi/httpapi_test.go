package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/stepflow/internal/controller"
	"github.com/ChuLiYu/stepflow/internal/metrics"
	"github.com/ChuLiYu/stepflow/internal/scheduler"
	"github.com/ChuLiYu/stepflow/pkg/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(t *testing.T, reportPath string) *gin.Engine {
	t.Helper()
	r, _ := setupRouterWithController(t, reportPath)
	return r
}

func setupRouterWithController(t *testing.T, reportPath string) (*gin.Engine, *controller.Controller) {
	t.Helper()
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := metrics.NewCollector()

	ctrl, err := controller.NewController(controller.Config{
		Workers:        2,
		DurationPolicy: scheduler.PolicyLetter,
		Tick:           time.Millisecond,
		ReportPath:     reportPath,
	}, collector)
	require.NoError(t, err)
	t.Cleanup(func() { ctrl.Close() })

	return NewRouter(ctrl, collector.Handler(), "test"), ctrl
}

func referenceRequest() types.PlanRequest {
	pairs := [][2]types.TaskID{
		{"C", "A"}, {"C", "F"}, {"A", "B"}, {"A", "D"},
		{"B", "E"}, {"D", "E"}, {"F", "E"},
	}
	req := types.PlanRequest{}
	for _, p := range pairs {
		req.Edges = append(req.Edges, types.NewEdge(p[0], p[1]))
	}
	return req
}

func post(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) APIResponse[T] {
	t.Helper()
	var resp APIResponse[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	r := setupRouter(t, "")

	w := get(r, "/health")
	assert.Equal(t, http.StatusOK, w.Code)

	resp := decode[HealthResponse](t, w)
	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, "healthy", resp.Data.Status)
	assert.Equal(t, "test", resp.Data.Version)
}

func TestOrder(t *testing.T) {
	r := setupRouter(t, "")

	w := post(t, r, "/v1/order", referenceRequest())
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[types.PlanReport](t, w)
	assert.Equal(t, "success", resp.Message)
	assert.Equal(t, []types.TaskID{"C", "A", "B", "D", "F", "E"}, resp.Data.Order)
	assert.Equal(t, types.ModeOrder, resp.Data.Mode)
	assert.NotEmpty(t, resp.Data.RunID)
}

func TestMakespan(t *testing.T) {
	r := setupRouter(t, "")

	t.Run("config defaults", func(t *testing.T) {
		w := post(t, r, "/v1/makespan", referenceRequest())
		require.Equal(t, http.StatusOK, w.Code)

		resp := decode[types.PlanReport](t, w)
		assert.Equal(t, 15, resp.Data.Makespan)
		assert.Equal(t, 2, resp.Data.Workers)
		assert.Len(t, resp.Data.Timeline, 6)
	})

	t.Run("request overrides", func(t *testing.T) {
		req := referenceRequest()
		workers, base := 5, 60
		req.Workers = &workers
		req.Base = &base

		w := post(t, r, "/v1/makespan", req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 253, decode[types.PlanReport](t, w).Data.Makespan)
	})

	t.Run("unit policy", func(t *testing.T) {
		req := referenceRequest()
		workers := 1
		req.Workers = &workers
		req.Policy = scheduler.PolicyUnit

		w := post(t, r, "/v1/makespan", req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 6, decode[types.PlanReport](t, w).Data.Makespan)
	})
}

func TestReady(t *testing.T) {
	r := setupRouter(t, "")

	req := referenceRequest()
	req.Completed = []types.TaskID{"C", "A"}

	w := post(t, r, "/v1/ready", req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []types.TaskID{"B", "D", "F"}, decode[types.ReadyResponse](t, w).Data.Ready)

	req.Completed = []types.TaskID{"C", "A", "B", "D", "F", "E"}
	w = post(t, r, "/v1/ready", req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ready":[]`)
}

func TestReadyAfterClose(t *testing.T) {
	r, ctrl := setupRouterWithController(t, "")
	require.NoError(t, ctrl.Close())

	w := post(t, r, "/v1/ready", referenceRequest())
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), controller.ErrClosed.Error())
}

func TestErrors(t *testing.T) {
	r := setupRouter(t, "")

	tests := []struct {
		name string
		path string
		body any
		code int
	}{
		{
			name: "cycle in order",
			path: "/v1/order",
			body: types.PlanRequest{Edges: []types.Edge[types.TaskID]{
				types.NewEdge[types.TaskID]("A", "B"), types.NewEdge[types.TaskID]("B", "A"),
			}},
			code: http.StatusUnprocessableEntity,
		},
		{
			name: "cycle in makespan",
			path: "/v1/makespan",
			body: types.PlanRequest{Edges: []types.Edge[types.TaskID]{types.NewEdge[types.TaskID]("A", "A")}},
			code: http.StatusUnprocessableEntity,
		},
		{
			name: "zero workers",
			path: "/v1/makespan",
			body: map[string]any{"edges": []map[string]string{{"before": "A", "after": "B"}}, "workers": 0},
			code: http.StatusBadRequest,
		},
		{
			name: "unknown policy",
			path: "/v1/makespan",
			body: map[string]any{"edges": []map[string]string{{"before": "A", "after": "B"}}, "policy": "random"},
			code: http.StatusBadRequest,
		},
		{
			name: "malformed body",
			path: "/v1/order",
			body: map[string]any{"edges": "A->B"},
			code: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, r, tt.path, tt.body)
			assert.Equal(t, tt.code, w.Code)

			resp := decode[any](t, w)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestCycleMessageNamesPath(t *testing.T) {
	r := setupRouter(t, "")

	w := post(t, r, "/v1/order", types.PlanRequest{Edges: []types.Edge[types.TaskID]{
		types.NewEdge[types.TaskID]("A", "B"), types.NewEdge[types.TaskID]("B", "A"),
	}})
	assert.Contains(t, decode[any](t, w).Message, "A -> B -> A")
}

func TestReport(t *testing.T) {
	t.Run("reports disabled", func(t *testing.T) {
		r := setupRouter(t, "")
		assert.Equal(t, http.StatusNotFound, get(r, "/v1/report").Code)
	})

	t.Run("last run", func(t *testing.T) {
		r := setupRouter(t, filepath.Join(t.TempDir(), "report.json"))

		assert.Equal(t, http.StatusNotFound, get(r, "/v1/report").Code, "no run yet")

		require.Equal(t, http.StatusOK, post(t, r, "/v1/makespan", referenceRequest()).Code)

		w := get(r, "/v1/report")
		require.Equal(t, http.StatusOK, w.Code)
		report := decode[types.PlanReport](t, w).Data
		assert.Equal(t, types.ModeMakespan, report.Mode)
		assert.Equal(t, 15, report.Makespan)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	r := setupRouter(t, "")
	require.Equal(t, http.StatusOK, post(t, r, "/v1/order", referenceRequest()).Code)
	require.Equal(t, http.StatusBadRequest, post(t, r, "/v1/order", map[string]any{"edges": 3}).Code)

	w := get(r, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `stepflow_runs_total{mode="order"} 1`))
	assert.True(t, strings.Contains(body, `stepflow_failures_total{reason="input"} 1`))
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := get(r, "/boom")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, http.StatusInternalServerError, decode[any](t, w).Code)
}
