package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/ksp-balance/balance/batch"
	"github.com/wricardo/ksp-balance/balance/config"
	"github.com/wricardo/ksp-balance/balance/engine"
	"github.com/wricardo/ksp-balance/balance/runs"
	"github.com/wricardo/ksp-balance/balance/service"
	"github.com/wricardo/ksp-balance/transport/websocket"
)

// MockBalanceService implements service.BalanceService for testing
type MockBalanceService struct {
	// Registry
	ListTechsFunc   func(ctx context.Context) ([]*service.TechInfo, error)
	GetTechFunc     func(ctx context.Context, name string) (*service.TechInfo, error)
	ListConfigsFunc func(ctx context.Context) ([]*service.ConfigInfo, error)
	GetConfigFunc   func(ctx context.Context, name string) (*service.ConfigInfo, error)
	DiagnosticsFunc func(ctx context.Context) (config.Diagnostics, error)
	ReloadFunc      func(ctx context.Context) (*service.ReloadResult, error)

	// Derivation
	DeriveFunc    func(ctx context.Context, configName string, size float64) (*service.DeriveResult, error)
	BatchFunc     func(ctx context.Context, rows []batch.Row, rowErrs []batch.RowError) (*service.BatchResult, error)
	TechCurveFunc func(ctx context.Context, techName string, samples int) (*service.CurveResult, error)

	// Runs
	StartRunFunc  func(ctx context.Context, rows []batch.Row, rowErrs []batch.RowError) (*runs.Run, error)
	GetRunFunc    func(ctx context.Context, id string) (*runs.Run, error)
	ListRunsFunc  func(ctx context.Context) ([]runs.Run, error)
	DeleteRunFunc func(ctx context.Context, id string) error
}

func (m *MockBalanceService) ListTechs(ctx context.Context) ([]*service.TechInfo, error) {
	if m.ListTechsFunc != nil {
		return m.ListTechsFunc(ctx)
	}
	return []*service.TechInfo{{Name: "LiquidFuel", MaxTmr: 40, MinTmr: 10}}, nil
}

func (m *MockBalanceService) GetTech(ctx context.Context, name string) (*service.TechInfo, error) {
	if m.GetTechFunc != nil {
		return m.GetTechFunc(ctx, name)
	}
	return &service.TechInfo{Name: name, MaxTmr: 40, MinTmr: 10}, nil
}

func (m *MockBalanceService) ListConfigs(ctx context.Context) ([]*service.ConfigInfo, error) {
	if m.ListConfigsFunc != nil {
		return m.ListConfigsFunc(ctx)
	}
	return []*service.ConfigInfo{{Name: "Lifter", Tech: "LiquidFuel"}}, nil
}

func (m *MockBalanceService) GetConfig(ctx context.Context, name string) (*service.ConfigInfo, error) {
	if m.GetConfigFunc != nil {
		return m.GetConfigFunc(ctx, name)
	}
	return &service.ConfigInfo{Name: name, Tech: "LiquidFuel"}, nil
}

func (m *MockBalanceService) Diagnostics(ctx context.Context) (config.Diagnostics, error) {
	if m.DiagnosticsFunc != nil {
		return m.DiagnosticsFunc(ctx)
	}
	return nil, nil
}

func (m *MockBalanceService) Reload(ctx context.Context) (*service.ReloadResult, error) {
	if m.ReloadFunc != nil {
		return m.ReloadFunc(ctx)
	}
	return &service.ReloadResult{Techs: 1, Configs: 1}, nil
}

func (m *MockBalanceService) Derive(ctx context.Context, configName string, size float64) (*service.DeriveResult, error) {
	if m.DeriveFunc != nil {
		return m.DeriveFunc(ctx, configName, size)
	}
	return &service.DeriveResult{
		Config: configName,
		Tech:   "LiquidFuel",
		Size:   size,
		Tmr:    20,
		Stats:  engine.EngineStats{Mass: 0.5, Thrust: 10, VacIsp: 340, AtmIsp: 306},
	}, nil
}

func (m *MockBalanceService) Batch(ctx context.Context, rows []batch.Row, rowErrs []batch.RowError) (*service.BatchResult, error) {
	if m.BatchFunc != nil {
		return m.BatchFunc(ctx, rows, rowErrs)
	}
	results := make([]batch.Result, len(rows))
	for i, row := range rows {
		results[i] = batch.Result{Row: row, Stats: &engine.EngineStats{Mass: 1}}
	}
	return &service.BatchResult{Results: results, RowErrors: rowErrs, Succeeded: len(rows), Failed: len(rowErrs)}, nil
}

func (m *MockBalanceService) TechCurve(ctx context.Context, techName string, samples int) (*service.CurveResult, error) {
	if m.TechCurveFunc != nil {
		return m.TechCurveFunc(ctx, techName, samples)
	}
	return &service.CurveResult{Tech: techName, Points: make([]engine.CurvePoint, samples)}, nil
}

func (m *MockBalanceService) StartRun(ctx context.Context, rows []batch.Row, rowErrs []batch.RowError) (*runs.Run, error) {
	if m.StartRunFunc != nil {
		return m.StartRunFunc(ctx, rows, rowErrs)
	}
	return &runs.Run{ID: "run-1", Status: runs.StatusPending, Total: len(rows), RowErrors: rowErrs, CreatedAt: time.Now()}, nil
}

func (m *MockBalanceService) GetRun(ctx context.Context, id string) (*runs.Run, error) {
	if m.GetRunFunc != nil {
		return m.GetRunFunc(ctx, id)
	}
	return &runs.Run{ID: id, Status: runs.StatusRunning, CreatedAt: time.Now()}, nil
}

func (m *MockBalanceService) ListRuns(ctx context.Context) ([]runs.Run, error) {
	if m.ListRunsFunc != nil {
		return m.ListRunsFunc(ctx)
	}
	return []runs.Run{}, nil
}

func (m *MockBalanceService) DeleteRun(ctx context.Context, id string) error {
	if m.DeleteRunFunc != nil {
		return m.DeleteRunFunc(ctx, id)
	}
	return nil
}

func newTestServer(svc service.BalanceService) *Server {
	return NewServer(svc, websocket.NewHub(nil), nil)
}

func doRequest(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(&MockBalanceService{})

	w := doRequest(t, srv, "GET", "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
}

func TestServer_ListTechs(t *testing.T) {
	srv := newTestServer(&MockBalanceService{})

	w := doRequest(t, srv, "GET", "/api/techs", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count int                 `json:"count"`
		Techs []*service.TechInfo `json:"techs"`
	}
	decode(t, w, &resp)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "LiquidFuel", resp.Techs[0].Name)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestServer_GetTech_NotFound(t *testing.T) {
	srv := newTestServer(&MockBalanceService{
		GetTechFunc: func(ctx context.Context, name string) (*service.TechInfo, error) {
			return nil, fmt.Errorf("%w: %q", config.ErrTechNotFound, name)
		},
	})

	w := doRequest(t, srv, "GET", "/api/techs/Nuclear", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp map[string]string
	decode(t, w, &resp)
	assert.Contains(t, resp["error"], "Nuclear")
}

func TestServer_TechCurve(t *testing.T) {
	var gotSamples int
	srv := newTestServer(&MockBalanceService{
		TechCurveFunc: func(ctx context.Context, techName string, samples int) (*service.CurveResult, error) {
			gotSamples = samples
			return &service.CurveResult{Tech: techName}, nil
		},
	})

	t.Run("default samples", func(t *testing.T) {
		w := doRequest(t, srv, "GET", "/api/techs/LiquidFuel/curve", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, DefaultCurveSamples, gotSamples)
	})

	t.Run("explicit samples", func(t *testing.T) {
		w := doRequest(t, srv, "GET", "/api/techs/LiquidFuel/curve?samples=7", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 7, gotSamples)
	})

	t.Run("non-numeric samples", func(t *testing.T) {
		w := doRequest(t, srv, "GET", "/api/techs/LiquidFuel/curve?samples=lots", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestServer_TechCurve_DomainError(t *testing.T) {
	srv := newTestServer(&MockBalanceService{
		TechCurveFunc: func(ctx context.Context, techName string, samples int) (*service.CurveResult, error) {
			return nil, fmt.Errorf("%w: need at least 2 samples", engine.ErrDomain)
		},
	})

	w := doRequest(t, srv, "GET", "/api/techs/LiquidFuel/curve?samples=1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestServer_Configs(t *testing.T) {
	srv := newTestServer(&MockBalanceService{
		GetConfigFunc: func(ctx context.Context, name string) (*service.ConfigInfo, error) {
			if name != "Lifter" {
				return nil, fmt.Errorf("%w: %q", config.ErrConfigNotFound, name)
			}
			return &service.ConfigInfo{Name: name, Tech: "LiquidFuel"}, nil
		},
	})

	w := doRequest(t, srv, "GET", "/api/configs", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = doRequest(t, srv, "GET", "/api/configs/Lifter", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, srv, "GET", "/api/configs/Vacuum", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_Derive(t *testing.T) {
	srv := newTestServer(&MockBalanceService{})

	w := doRequest(t, srv, "POST", "/api/derive", map[string]interface{}{"config": "Lifter", "size": 1.25})
	require.Equal(t, http.StatusOK, w.Code)

	var resp service.DeriveResult
	decode(t, w, &resp)
	assert.Equal(t, "Lifter", resp.Config)
	assert.Equal(t, 1.25, resp.Size)
	assert.Equal(t, 10.0, resp.Stats.Thrust)
}

func TestServer_Derive_BadRequests(t *testing.T) {
	srv := newTestServer(&MockBalanceService{})

	tests := []struct {
		name string
		body interface{}
	}{
		{"malformed json", "{not json"},
		{"missing size", map[string]interface{}{"config": "Lifter"}},
		{"missing config", map[string]interface{}{"size": 2.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, srv, "POST", "/api/derive", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestServer_Derive_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown config", fmt.Errorf("%w: %q", config.ErrConfigNotFound, "X"), http.StatusNotFound},
		{"non-positive size", engine.ErrNonPositiveSize, http.StatusUnprocessableEntity},
		{"non-finite result", engine.ErrNonFinite, http.StatusUnprocessableEntity},
		{"unexpected", fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&MockBalanceService{
				DeriveFunc: func(ctx context.Context, configName string, size float64) (*service.DeriveResult, error) {
					return nil, tt.err
				},
			})

			w := doRequest(t, srv, "POST", "/api/derive", map[string]interface{}{"config": "Lifter", "size": -1})
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestServer_Batch_JSON(t *testing.T) {
	var got []batch.Row
	srv := newTestServer(&MockBalanceService{
		BatchFunc: func(ctx context.Context, rows []batch.Row, rowErrs []batch.RowError) (*service.BatchResult, error) {
			got = rows
			return &service.BatchResult{Succeeded: len(rows)}, nil
		},
	})

	body := map[string]interface{}{
		"parts": []map[string]interface{}{
			{"name": "a", "size": 1.25, "config": "Lifter", "module": "ModuleEngines"},
			{"name": "b", "size": 2.5, "config": "Lifter", "module": "ModuleEngines", "index": 1},
		},
	}
	w := doRequest(t, srv, "POST", "/api/batch", body)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Nil(t, got[0].Index)
	require.NotNil(t, got[1].Index)
	assert.Equal(t, 1, *got[1].Index)
}

func TestServer_Batch_CSV(t *testing.T) {
	var got []batch.Row
	srv := newTestServer(&MockBalanceService{
		BatchFunc: func(ctx context.Context, rows []batch.Row, rowErrs []batch.RowError) (*service.BatchResult, error) {
			got = rows
			return &service.BatchResult{Succeeded: len(rows)}, nil
		},
	})

	csvBody := "name,size,config,module,index\nlifter,2.5,Lifter,ModuleEngines,\n"
	req := httptest.NewRequest("POST", "/api/batch", strings.NewReader(csvBody))
	req.Header.Set("Content-Type", "text/csv; charset=utf-8")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, got, 1)
	assert.Equal(t, 2.5, got[0].Size)
}

func TestServer_Batch_UnreadableCSVRows(t *testing.T) {
	var gotRows []batch.Row
	var gotErrs []batch.RowError
	srv := newTestServer(&MockBalanceService{
		BatchFunc: func(ctx context.Context, rows []batch.Row, rowErrs []batch.RowError) (*service.BatchResult, error) {
			gotRows, gotErrs = rows, rowErrs
			results := make([]batch.Result, len(rows))
			for i, row := range rows {
				results[i] = batch.Result{Row: row, Stats: &engine.EngineStats{Mass: 1}}
			}
			return &service.BatchResult{Results: results, RowErrors: rowErrs, Succeeded: len(rows), Failed: len(rowErrs)}, nil
		},
	})

	csvBody := "lifter,2.5,Lifter,ModuleEngines\nvernier,big,Lifter,ModuleRCS\n"
	req := httptest.NewRequest("POST", "/api/batch", strings.NewReader(csvBody))
	req.Header.Set("Content-Type", "text/csv")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, gotRows, 1)
	assert.Equal(t, "lifter", gotRows[0].Name)
	require.Len(t, gotErrs, 1)
	assert.Equal(t, 2, gotErrs[0].Line)

	var result service.BatchResult
	decode(t, w, &result)
	assert.Len(t, result.Results, 1)
	require.Len(t, result.RowErrors, 1)
	assert.Equal(t, 2, result.RowErrors[0].Line)
	assert.Contains(t, result.RowErrors[0].Error(), `size "big" is not a number`)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
}

func TestServer_Runs_UnreadableCSVRows(t *testing.T) {
	srv := newTestServer(&MockBalanceService{})

	req := httptest.NewRequest("POST", "/api/runs", strings.NewReader("lifter,2.5,Lifter,ModuleEngines\nvernier,1,Lifter,ModuleRCS,first\n"))
	req.Header.Set("Content-Type", "text/csv")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var run runs.Run
	decode(t, w, &run)
	assert.Equal(t, 1, run.Total)
	require.Len(t, run.RowErrors, 1)
	assert.Equal(t, 2, run.RowErrors[0].Line)
}

func TestServer_Batch_InvalidInput(t *testing.T) {
	srv := newTestServer(&MockBalanceService{
		BatchFunc: func(ctx context.Context, rows []batch.Row, rowErrs []batch.RowError) (*service.BatchResult, error) {
			return nil, fmt.Errorf("%w: no parts given", service.ErrInvalidInput)
		},
	})

	w := doRequest(t, srv, "POST", "/api/batch", map[string]interface{}{"parts": []interface{}{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_Runs(t *testing.T) {
	srv := newTestServer(&MockBalanceService{
		GetRunFunc: func(ctx context.Context, id string) (*runs.Run, error) {
			if id == "missing" {
				return nil, runs.ErrRunNotFound
			}
			if id == "bad" {
				return nil, runs.ErrInvalidRunID
			}
			return &runs.Run{ID: id, Status: runs.StatusComplete}, nil
		},
	})

	body := map[string]interface{}{
		"parts": []map[string]interface{}{{"name": "a", "size": 1.25, "config": "Lifter", "module": "M"}},
	}
	w := doRequest(t, srv, "POST", "/api/runs", body)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "/api/runs/run-1", w.Header().Get("Location"))

	var run runs.Run
	decode(t, w, &run)
	assert.Equal(t, 1, run.Total)

	w = doRequest(t, srv, "GET", "/api/runs", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)

	w = doRequest(t, srv, "GET", "/api/runs/abc", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, srv, "GET", "/api/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, srv, "GET", "/api/runs/bad", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_DeleteRun(t *testing.T) {
	var deleted []string
	srv := newTestServer(&MockBalanceService{
		DeleteRunFunc: func(ctx context.Context, id string) error {
			switch id {
			case "missing":
				return runs.ErrRunNotFound
			case "busy":
				return runs.ErrRunActive
			}
			deleted = append(deleted, id)
			return nil
		},
	})

	w := doRequest(t, srv, "DELETE", "/api/runs/done", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"done"}, deleted)

	w = doRequest(t, srv, "DELETE", "/api/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, srv, "DELETE", "/api/runs/busy", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestServer_DiagnosticsAndReload(t *testing.T) {
	diags := config.Diagnostics{{
		Kind:    config.KindConfiguration,
		Source:  "techs.ini",
		Section: "Broken",
		Field:   config.FieldExponent,
		Err:     config.ErrMissingField,
	}}
	srv := newTestServer(&MockBalanceService{
		DiagnosticsFunc: func(ctx context.Context) (config.Diagnostics, error) { return diags, nil },
	})

	w := doRequest(t, srv, "GET", "/api/diagnostics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"section":"Broken"`)
	assert.Contains(t, w.Body.String(), `"field":"exponent"`)

	w = doRequest(t, srv, "POST", "/api/reload", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"diagnostics":[]`)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(&MockBalanceService{})

	for _, tc := range []struct {
		method, path string
	}{
		{"GET", "/api/derive"},
		{"GET", "/api/batch"},
		{"PUT", "/api/runs"},
		{"POST", "/api/techs/LiquidFuel"},
		{"POST", "/healthz"},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := doRequest(t, srv, tc.method, tc.path, nil)
			assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
			assert.Contains(t, w.Body.String(), "not allowed")
		})
	}

	w := doRequest(t, srv, "GET", "/api/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_Metrics(t *testing.T) {
	srv := newTestServer(&MockBalanceService{})

	doRequest(t, srv, "GET", "/api/techs", nil)
	w := doRequest(t, srv, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "kspbal_http_requests_total")
}

func TestServer_WebSocket(t *testing.T) {
	t.Run("missing run parameter", func(t *testing.T) {
		srv := newTestServer(&MockBalanceService{})
		w := doRequest(t, srv, "GET", "/ws", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown run", func(t *testing.T) {
		srv := newTestServer(&MockBalanceService{
			GetRunFunc: func(ctx context.Context, id string) (*runs.Run, error) {
				return nil, runs.ErrRunNotFound
			},
		})
		w := doRequest(t, srv, "GET", "/ws?run=nope", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("finished run greets with final state", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		hub := websocket.NewHub(nil)
		go hub.Run(ctx)

		srv := NewServer(&MockBalanceService{
			GetRunFunc: func(ctx context.Context, id string) (*runs.Run, error) {
				return &runs.Run{ID: id, Status: runs.StatusComplete, Total: 3, Succeeded: 3}, nil
			},
		}, hub, nil)
		ts := httptest.NewServer(srv)
		defer ts.Close()

		url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?run=run-9"
		conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg websocket.Message
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, websocket.EventRunComplete, msg.Event)
		assert.Equal(t, "run-9", msg.RunID)
		require.NotNil(t, msg.Run)
		assert.Equal(t, 3, msg.Run.Succeeded)
	})
}
