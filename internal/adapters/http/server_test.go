package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/stepgraph"
	httpAdapter "github.com/aretw0/stepgraph/internal/adapters/http"
	"github.com/aretw0/stepgraph/internal/metrics"
	"github.com/aretw0/stepgraph/pkg/adapters/memory"
	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler(t *testing.T) http.Handler {
	t.Helper()
	fs := memory.NewFS()
	m := metrics.New()
	eng := stepgraph.New(
		stepgraph.WithDrivers(ports.DriverSet{File: fs, Shell: memory.NewShell()}),
		stepgraph.WithInspector(memory.NewInspector(fs, memory.NewContainers())),
		stepgraph.WithReportStore(memory.NewStore()),
		stepgraph.WithLifecycleHooks(m.Hooks()),
	)
	return httpAdapter.NewHandler(eng, httpAdapter.WithMetricsHandler(m.Handler()))
}

func do(t *testing.T, h http.Handler, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestGetHealth(t *testing.T) {
	rr := do(t, newHandler(t), http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestGetInfo(t *testing.T) {
	rr := do(t, newHandler(t), http.MethodGet, "/info", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "stepgraph-http", resp["app"])
	assert.NotEmpty(t, resp["version"])
}

func TestRuns_CreateListGet(t *testing.T) {
	h := newHandler(t)

	body := `[{"type": "touch", "cmd": ["./p/main.py"]}, {"type": "shell", "cmd": ["echo", "hi"]}]`
	rr := do(t, h, http.MethodPost, "/runs?fit=true&run_id=r1", "application/json", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "/runs/r1", rr.Header().Get("Location"))

	var report domain.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.True(t, report.Success)
	assert.Equal(t, 2, report.Counts.Succeeded)
	require.NotNil(t, report.Fitting)
	assert.Equal(t, 1, report.Fitting.SuccessfulPreparations)

	rr = do(t, h, http.MethodGet, "/runs", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list map[string][]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Equal(t, []string{"r1"}, list["runs"])

	rr = do(t, h, http.MethodGet, "/runs/r1", "", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/runs/ghost", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRuns_YAMLBody(t *testing.T) {
	body := "steps:\n  - type: shell\n    cmd: [\"false\"]\n"
	rr := do(t, newHandler(t), http.MethodPost, "/runs", "application/x-yaml", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var report domain.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.False(t, report.Success)
	assert.NotEmpty(t, report.RunID)
}

func TestRuns_BadRequests(t *testing.T) {
	h := newHandler(t)

	rr := do(t, h, http.MethodPost, "/runs", "application/json", `[{"type":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/runs?fit=maybe", "application/json", `[]`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/runs", "application/json", `[{"type": "python", "cmd": ["main.py"]}]`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, "no interpreter driver is configured")
}

func TestValidateAndGraph(t *testing.T) {
	h := newHandler(t)
	body := `{"steps": [{"type": "mkdir", "cmd": ["./p"]}, {"type": "teleport", "cmd": ["x"]}, {"type": "shell", "cmd": ["ls"]}]}`

	rr := do(t, h, http.MethodPost, "/validate", "application/json", body)
	require.Equal(t, http.StatusOK, rr.Code)
	var v struct {
		Valid  bool     `json:"valid"`
		Nodes  int      `json:"nodes"`
		Errors []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	assert.False(t, v.Valid)
	assert.Equal(t, 2, v.Nodes)
	assert.Len(t, v.Errors, 1)

	rr = do(t, h, http.MethodPost, "/graph", "application/json", body)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("X-Build-Errors"))
	assert.True(t, strings.HasPrefix(rr.Body.String(), "graph TD\n"))
	assert.Contains(t, rr.Body.String(), "mkdir ./p")
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHandler(t)
	rr := do(t, h, http.MethodPost, "/runs", "application/json", `[{"type": "shell", "cmd": ["true"]}]`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(t, h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `stepgraph_nodes_total{kind="shell",state="SUCCEEDED"} 1`)
}
