package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shaiso/Flowtrack/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestClient_ListFlows(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/flows", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"data":  []domain.FlowSummary{{Name: "Sales", NodeCount: 5, EdgeCount: 2, CategoryCount: 2}},
			"total": 1,
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	flows, err := NewClient(srv.URL + "/").ListFlows()
	if err != nil {
		t.Fatalf("ListFlows: %v", err)
	}
	if len(flows) != 1 || flows[0].Name != "Sales" || flows[0].NodeCount != 5 {
		t.Errorf("unexpected flows: %+v", flows)
	}
}

func TestClient_APIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/flows/{name}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]string{"code": "NOT_FOUND", "message": "flow not found"},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := NewClient(srv.URL).GetFlow("missing")
	if err == nil || err.Error() != "NOT_FOUND: flow not found" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClient_UploadConfig(t *testing.T) {
	var gotType, gotBody string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/configs", func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		writeJSON(w, http.StatusCreated, map[string]any{
			"data": UploadResponse{FlowName: "Sales", File: "sales.yaml", Warnings: []string{"B: unclosed"}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "Sales.yml")
	if err := os.WriteFile(path, []byte("flowName: Sales\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := NewClient(srv.URL).UploadConfig(path)
	if err != nil {
		t.Fatalf("UploadConfig: %v", err)
	}
	if gotType != "application/yaml" {
		t.Errorf("expected application/yaml, got %s", gotType)
	}
	if gotBody != "flowName: Sales\n" {
		t.Errorf("unexpected body %q", gotBody)
	}
	if result.File != "sales.yaml" || len(result.Warnings) != 1 {
		t.Errorf("unexpected result: %+v", result)
	}

	txt := filepath.Join(t.TempDir(), "sales.txt")
	os.WriteFile(txt, []byte("x"), 0o644)
	if _, err := NewClient(srv.URL).UploadConfig(txt); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestClient_WatchStatus(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/{name}", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for i := 0; i < 2; i++ {
			conn.WriteJSON(domain.StatusUpdate{
				Timestamp: time.Now(),
				FlowName:  r.PathValue("name"),
				Stages:    map[string]domain.StageStatus{"extract": {Status: domain.StatusRunning}},
			})
		}
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "flow unregistered"))
		conn.ReadMessage()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []domain.StatusUpdate
	err := NewClient(srv.URL).WatchStatus(ctx, "sales", func(u domain.StatusUpdate) error {
		got = append(got, u)
		return nil
	})
	if err != nil {
		t.Fatalf("WatchStatus: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(got))
	}
	if got[0].FlowName != "sales" || got[0].Stages["extract"].Status != domain.StatusRunning {
		t.Errorf("unexpected update: %+v", got[0])
	}
}

func TestClient_WatchStatus_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/{name}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]string{"code": "NOT_FOUND", "message": "flow not found"},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	err := NewClient(srv.URL).WatchStatus(context.Background(), "missing", func(domain.StatusUpdate) error {
		t.Error("handler must not be called")
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Errorf("expected NOT_FOUND error, got %v", err)
	}
}

func TestOutput_StatusOrder(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := newOutput(false, &stdout, &stderr)

	out.Status(domain.StatusUpdate{
		FlowName: "Sales",
		Stages: map[string]domain.StageStatus{
			"publish": {Status: domain.StatusCompleted},
			"extract": {Status: domain.StatusRunning},
			"zeta":    domain.NewUnknownStatus("stage has no backend mapping"),
			"alpha":   {Status: domain.StatusPending},
		},
	}, []string{"extract", "publish", "missing"})

	text := stdout.String()
	order := []string{"extract", "publish", "alpha", "zeta"}
	last := -1
	for _, stage := range order {
		idx := strings.Index(text, stage)
		if idx < 0 || idx < last {
			t.Fatalf("stage %s out of order in:\n%s", stage, text)
		}
		last = idx
	}
	if !strings.Contains(text, "stage has no backend mapping") {
		t.Error("error detail should be printed")
	}
	if !strings.Contains(text, "1/4 finished") {
		t.Errorf("expected finished stage count in header:\n%s", text)
	}
}

func TestOutput_JSONMode(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := newOutput(true, &stdout, &stderr)

	out.Print([]string{"NAME"}, [][]string{{"Sales"}}, []string{"Sales"})
	out.Warn("careful")

	if strings.TrimSpace(stdout.String()) != "[\n  \"Sales\"\n]" {
		t.Errorf("unexpected json output: %q", stdout.String())
	}
	if stderr.String() != "Warning: careful\n" {
		t.Errorf("unexpected stderr: %q", stderr.String())
	}
}

func TestCompileFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sales.json")
	os.WriteFile(path, []byte(`{"flowName": "Sales", "flowDefinition": {"overall": "A{s1->s2}B{s3"}}`), 0o644)

	result, err := compileFile(path)
	if err != nil {
		t.Fatalf("compileFile: %v", err)
	}
	if got := strings.Join(result.Graph.StageLabels(), ","); got != "s1,s2" {
		t.Errorf("unexpected stages: %s", got)
	}
	if !result.HasWarnings() {
		t.Error("expected warning for unclosed block")
	}

	if _, err := compileFile(filepath.Join(dir, "sales.toml")); err == nil {
		t.Error("expected error for unsupported extension")
	}
}
