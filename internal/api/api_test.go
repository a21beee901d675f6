package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shaiso/Flowtrack/internal/config"
	"github.com/shaiso/Flowtrack/internal/domain"
	"github.com/shaiso/Flowtrack/internal/tracker"
)

const salesJSON = `{
  "flowName": "Sales",
  "refreshInterval": 60,
  "databases": {
    "aws": {"host": "airflow-db", "user": "reader", "password": "secret", "database": "airflow"}
  },
  "flowDefinition": {"overall": "Ingest{extract->load}Report{publish}"},
  "stageMappings": {
    "aws": {"extract": "sales_extract"},
    "onPrem": {"publish": {"bpf_id": 12, "process_id": 7}}
  }
}`

const salesYAML = `
flowName: Sales
flowDefinition:
  overall: "Ingest{extract->load}Report{publish"
stageMappings:
  aws:
    extract: sales_extract
`

// stubOrchestrator отвечает "running" для каждой стадии маппинга.
type stubOrchestrator struct{}

func (stubOrchestrator) FetchStatuses(_ context.Context, _ domain.Endpoint, mapping map[string]string) map[string]domain.StageStatus {
	out := make(map[string]domain.StageStatus, len(mapping))
	for stage, dagID := range mapping {
		out[stage] = domain.StageStatus{Status: domain.StatusRunning, Details: map[string]any{"dag_id": dagID}}
	}
	return out
}

// stubProcess отвечает "completed" для каждой стадии маппинга.
type stubProcess struct{}

func (stubProcess) FetchStatuses(_ context.Context, _ domain.Endpoint, mapping map[string]domain.ProcessRef) map[string]domain.StageStatus {
	out := make(map[string]domain.StageStatus, len(mapping))
	for stage := range mapping {
		out[stage] = domain.StageStatus{Status: domain.StatusCompleted}
	}
	return out
}

type testEnv struct {
	server  *httptest.Server
	tracker *tracker.Tracker
	store   *config.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := config.NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	tr := tracker.New(tracker.Config{
		Orchestrator: stubOrchestrator{},
		Process:      stubProcess{},
	})

	h := NewHandler(Config{
		Tracker:  tr,
		Store:    store,
		Settings: config.Settings{StatusUpdateInterval: time.Minute},
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Cleanup(tr.Stop)

	return &testEnv{server: srv, tracker: tr, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, contentType string, body io.Reader) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, e.server.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) upload(t *testing.T, body string) *http.Response {
	t.Helper()
	return e.do(t, http.MethodPost, "/api/v1/configs", "application/json", strings.NewReader(body))
}

func decodeData[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var envelope struct {
		Data T `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return envelope.Data
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, body)
	}
}

func TestUploadConfig_RegistersAndSaves(t *testing.T) {
	env := newTestEnv(t)

	resp := env.upload(t, salesJSON)
	expectStatus(t, resp, http.StatusCreated)

	got := decodeData[UploadResponse](t, resp)
	if got.FlowName != "Sales" || got.File != "sales.json" {
		t.Errorf("unexpected upload response: %+v", got)
	}
	if got.Replaced {
		t.Error("first upload should not be a replacement")
	}
	if len(got.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", got.Warnings)
	}
	if got.Summary.CategoryCount != 2 {
		t.Errorf("expected 2 categories, got %d", got.Summary.CategoryCount)
	}

	if _, err := os.Stat(filepath.Join(env.store.Dir(), "sales.json")); err != nil {
		t.Errorf("config file not saved: %v", err)
	}
	if flows := env.tracker.ListFlows(); len(flows) != 1 {
		t.Errorf("expected 1 registered flow, got %d", len(flows))
	}

	// Повторная загрузка заменяет flow
	resp = env.upload(t, salesJSON)
	expectStatus(t, resp, http.StatusOK)
	if !decodeData[UploadResponse](t, resp).Replaced {
		t.Error("second upload should be a replacement")
	}
}

func TestUploadConfig_YAMLReturnsWarnings(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/configs?format=yaml", "", strings.NewReader(salesYAML))
	expectStatus(t, resp, http.StatusCreated)

	got := decodeData[UploadResponse](t, resp)
	if got.File != "sales.yaml" {
		t.Errorf("expected sales.yaml, got %s", got.File)
	}
	if len(got.Warnings) == 0 {
		t.Error("expected a warning for the unclosed block")
	}
}

func TestUploadConfig_Multipart(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "sales.yml")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	part.Write([]byte(salesYAML))
	mw.Close()

	resp := env.do(t, http.MethodPost, "/api/v1/configs", mw.FormDataContentType(), &buf)
	expectStatus(t, resp, http.StatusCreated)

	if got := decodeData[UploadResponse](t, resp); got.File != "sales.yaml" {
		t.Errorf("expected sales.yaml, got %s", got.File)
	}
}

func TestUploadConfig_Rejected(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty body", "  ", http.StatusBadRequest},
		{"schema violation", `{"flowName": "Sales"}`, http.StatusUnprocessableEntity},
		{"no categories", `{"flowName": "Sales", "flowDefinition": {"overall": "nothing here"}}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.upload(t, tt.body)
			expectStatus(t, resp, tt.want)
		})
	}

	names, _ := env.store.List()
	if len(names) != 0 {
		t.Errorf("rejected configs must not be saved, got %v", names)
	}
}

func TestGetConfig_Redacted(t *testing.T) {
	env := newTestEnv(t)
	expectStatus(t, env.upload(t, salesJSON), http.StatusCreated)

	resp := env.do(t, http.MethodGet, "/api/v1/configs/Sales", "", nil)
	expectStatus(t, resp, http.StatusOK)

	got := decodeData[ConfigResponse](t, resp)
	if got.File != "sales.json" || got.Format != config.FormatJSON {
		t.Errorf("unexpected config response: %+v", got)
	}
	if got.Config.Databases.AWS == nil || got.Config.Databases.AWS.Password != "" {
		t.Error("password must be redacted")
	}

	resp = env.do(t, http.MethodGet, "/api/v1/configs/missing", "", nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestDeleteConfig_Unregisters(t *testing.T) {
	env := newTestEnv(t)
	expectStatus(t, env.upload(t, salesJSON), http.StatusCreated)

	resp := env.do(t, http.MethodDelete, "/api/v1/configs/sales.json", "", nil)
	expectStatus(t, resp, http.StatusNoContent)

	if _, err := env.tracker.GetFlow("Sales"); err == nil {
		t.Error("flow should be unregistered")
	}
	resp = env.do(t, http.MethodGet, "/api/v1/configs", "", nil)
	expectStatus(t, resp, http.StatusOK)
	if names := decodeData[[]string](t, resp); len(names) != 0 {
		t.Errorf("expected no configs, got %v", names)
	}

	resp = env.do(t, http.MethodDelete, "/api/v1/configs/sales.json", "", nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestFlows(t *testing.T) {
	env := newTestEnv(t)
	expectStatus(t, env.upload(t, salesJSON), http.StatusCreated)

	resp := env.do(t, http.MethodGet, "/api/v1/flows", "", nil)
	expectStatus(t, resp, http.StatusOK)
	list := decodeData[[]domain.FlowSummary](t, resp)
	if len(list) != 1 || list[0].Name != "Sales" {
		t.Fatalf("unexpected flow list: %+v", list)
	}

	resp = env.do(t, http.MethodGet, "/api/v1/flows/sales", "", nil)
	expectStatus(t, resp, http.StatusOK)
	flow := decodeData[FlowResponse](t, resp)
	if strings.Join(flow.StageOrder, ",") != "extract,load,publish" {
		t.Errorf("unexpected stage order: %v", flow.StageOrder)
	}
	if flow.RefreshInterval != 60 {
		t.Errorf("expected refresh interval 60, got %d", flow.RefreshInterval)
	}
	if flow.Graph == nil || flow.Graph.Node("stage-Ingest-extract") == nil {
		t.Error("graph should contain stage-Ingest-extract")
	}

	resp = env.do(t, http.MethodDelete, "/api/v1/flows/SALES", "", nil)
	expectStatus(t, resp, http.StatusNoContent)

	resp = env.do(t, http.MethodGet, "/api/v1/flows/sales", "", nil)
	expectStatus(t, resp, http.StatusNotFound)

	resp = env.do(t, http.MethodDelete, "/api/v1/flows/sales", "", nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestGetStatus(t *testing.T) {
	env := newTestEnv(t)
	expectStatus(t, env.upload(t, salesJSON), http.StatusCreated)

	resp := env.do(t, http.MethodGet, "/api/v1/flows/Sales/status", "", nil)
	expectStatus(t, resp, http.StatusOK)

	update := decodeData[domain.StatusUpdate](t, resp)
	if update.FlowName != "Sales" {
		t.Errorf("expected flowName Sales, got %s", update.FlowName)
	}
	want := map[string]domain.Status{
		"extract": domain.StatusRunning,
		"load":    domain.StatusUnknown,
		"publish": domain.StatusCompleted,
	}
	for stage, status := range want {
		if got := update.Stages[stage].Status; got != status {
			t.Errorf("stage %s: expected %s, got %s", stage, status, got)
		}
	}

	resp = env.do(t, http.MethodGet, "/api/v1/flows/missing/status", "", nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestServeWS(t *testing.T) {
	env := newTestEnv(t)
	if err := env.tracker.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	expectStatus(t, env.upload(t, salesJSON), http.StatusCreated)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/sales"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Клиентские кадры игнорируются
	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var update domain.StatusUpdate
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("read: %v", err)
	}
	if update.FlowName != "Sales" || update.Stages["extract"].Status != domain.StatusRunning {
		t.Errorf("unexpected update: %+v", update)
	}

	// Снятие flow закрывает соединение
	expectStatus(t, env.do(t, http.MethodDelete, "/api/v1/flows/sales", "", nil), http.StatusNoContent)

	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal close, got %v", err)
	}
}

func TestServeWS_UnknownFlow(t *testing.T) {
	env := newTestEnv(t)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/missing"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial error")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %v", resp)
	}
}

func TestStreamEvents(t *testing.T) {
	env := newTestEnv(t)
	if err := env.tracker.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	expectStatus(t, env.upload(t, salesJSON), http.StatusCreated)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, env.server.URL+"/api/v1/flows/sales/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	var event string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			event = strings.TrimPrefix(line, "event: ")
		}
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			var update domain.StatusUpdate
			if err := json.Unmarshal([]byte(data), &update); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			if event != "status" || update.FlowName != "Sales" {
				t.Errorf("unexpected event %q: %+v", event, update)
			}
			return
		}
	}
	t.Fatalf("stream ended without events: %v", scanner.Err())
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/healthz", "", nil)
	expectStatus(t, resp, http.StatusOK)

	// Счётчик запросов виден после хотя бы одного запроса через middleware
	env.do(t, http.MethodGet, "/api/v1/flows", "", nil)

	resp = env.do(t, http.MethodGet, "/metrics", "", nil)
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "flowtrack_http_requests_total") {
		t.Error("metrics should expose flowtrack_http_requests_total")
	}
}

type fakeBroker struct {
	connected bool
}

func (b fakeBroker) IsConnected() bool { return b.connected }

func TestHealth_Broker(t *testing.T) {
	tests := []struct {
		name     string
		broker   Broker
		code     int
		status   string
		rabbitmq string
	}{
		{"disabled", nil, http.StatusOK, "ok", "disabled"},
		{"connected", fakeBroker{connected: true}, http.StatusOK, "ok", "connected"},
		{"disconnected", fakeBroker{connected: false}, http.StatusServiceUnavailable, "degraded", "disconnected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := tracker.New(tracker.Config{})
			h := NewHandler(Config{Tracker: tr, Broker: tt.broker})

			rec := httptest.NewRecorder()
			h.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rec.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["status"] != tt.status || body["rabbitmq"] != tt.rabbitmq {
				t.Errorf("unexpected body: %v", body)
			}
		})
	}
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(mark("a"), mark("b"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if strings.Join(order, ",") != "a,b" {
		t.Errorf("unexpected order: %v", order)
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("expected 418, got %d", rec.Code)
	}
}
