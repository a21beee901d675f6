package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shaiso/Flowtrack/internal/domain"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// FlowResponse — flow из API.
type FlowResponse struct {
	Name                string                       `json:"name"`
	RefreshInterval     int                          `json:"refreshInterval"`
	RegisteredAt        string                       `json:"registeredAt"`
	Summary             domain.FlowSummary           `json:"summary"`
	Graph               *domain.Graph                `json:"graph"`
	StageOrder          []string                     `json:"stageOrder,omitempty"`
	OrchestratorMapping map[string]string            `json:"orchestratorMapping,omitempty"`
	ProcessMapping      map[string]domain.ProcessRef `json:"processMapping,omitempty"`
}

// UploadResponse — результат загрузки конфигурации.
type UploadResponse struct {
	FlowName string             `json:"flowName"`
	File     string             `json:"file"`
	Replaced bool               `json:"replaced"`
	Summary  domain.FlowSummary `json:"summary"`
	Warnings []string           `json:"warnings"`
}

// ConfigResponse — конфигурация flow без паролей.
type ConfigResponse struct {
	File   string         `json:"file"`
	Format string         `json:"format"`
	Config map[string]any `json:"config"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Flowtrack API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// --- Flows ---

// ListFlows возвращает сводки зарегистрированных flows.
func (c *Client) ListFlows() ([]domain.FlowSummary, error) {
	var flows []domain.FlowSummary
	err := c.list("/api/v1/flows", &flows)
	return flows, err
}

// GetFlow возвращает flow с графом.
func (c *Client) GetFlow(name string) (*FlowResponse, error) {
	var flow FlowResponse
	err := c.get("/api/v1/flows/"+url.PathEscape(name), &flow)
	return &flow, err
}

// DeleteFlow снимает flow с отслеживания.
func (c *Client) DeleteFlow(name string) error {
	return c.delete("/api/v1/flows/" + url.PathEscape(name))
}

// --- Configs ---

// ListConfigs возвращает имена файлов конфигураций.
func (c *Client) ListConfigs() ([]string, error) {
	var names []string
	err := c.list("/api/v1/configs", &names)
	return names, err
}

// GetConfig возвращает конфигурацию flow.
func (c *Client) GetConfig(name string) (*ConfigResponse, error) {
	var cfg ConfigResponse
	err := c.get("/api/v1/configs/"+url.PathEscape(name), &cfg)
	return &cfg, err
}

// DeleteConfig удаляет файл конфигурации и снимает flow с отслеживания.
func (c *Client) DeleteConfig(name string) error {
	return c.delete("/api/v1/configs/" + url.PathEscape(name))
}

// UploadConfig загружает файл конфигурации flow.
// Формат определяется по расширению файла.
func (c *Client) UploadConfig(path string) (*UploadResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	contentType := "application/json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		contentType = "application/yaml"
	case ".json":
	default:
		return nil, fmt.Errorf("unsupported config extension: %s", filepath.Ext(path))
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/v1/configs", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return nil, err
	}

	var result UploadResponse
	if err := decodeData(resp.Body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// --- Status ---

// GetStatus возвращает свежий снимок статусов flow.
func (c *Client) GetStatus(name string) (*domain.StatusUpdate, error) {
	var update domain.StatusUpdate
	err := c.get("/api/v1/flows/"+url.PathEscape(name)+"/status", &update)
	return &update, err
}

// WatchStatus подписывается на снимки flow через WebSocket и вызывает fn
// для каждого снимка. Возвращает nil, когда сервер закрыл поток
// или отменён ctx.
func (c *Client) WatchStatus(ctx context.Context, name string, fn func(domain.StatusUpdate) error) error {
	wsURL, err := c.wsURL("/ws/" + url.PathEscape(name))
	if err != nil {
		return err
	}

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if apiErr := c.checkError(resp); apiErr != nil {
				return apiErr
			}
		}
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	// Закрываем соединение при отмене, чтобы прервать ReadJSON
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		var update domain.StatusUpdate
		if err := conn.ReadJSON(&update); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read status: %w", err)
		}
		if err := fn(update); err != nil {
			return err
		}
	}
}

func (c *Client) wsURL(path string) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("invalid api url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, result any) error {
	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	return decodeData(resp.Body, result)
}

func decodeData(body io.Reader, result any) error {
	var dr dataResponse
	if err := json.NewDecoder(body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
