package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/shaiso/Flowtrack/internal/config"
)

// maxConfigSize — ограничение на размер загружаемой конфигурации.
const maxConfigSize = 1 << 20

// ListConfigs возвращает имена файлов конфигураций.
// GET /api/v1/configs
func (h *Handler) ListConfigs(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.List()
	if HandleError(w, h.logger, err, "") {
		return
	}

	List(w, names, len(names))
}

// UploadConfig принимает конфигурацию flow, регистрирует flow и сохраняет файл.
// POST /api/v1/configs
//
// Тело — JSON или YAML (по Content-Type или ?format=), либо multipart
// с полем file (формат по расширению файла).
func (h *Handler) UploadConfig(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxConfigSize)

	data, format, err := readUpload(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	cfg, err := config.ParseFlowConfig(data, format)
	if HandleError(w, h.logger, err, "") {
		return
	}

	_, existed := h.lookupFlow(cfg.FlowName)

	result, err := h.tracker.RegisterFlow(cfg.Registration(h.settings))
	if HandleError(w, h.logger, err, "") {
		return
	}

	file, err := h.store.Save(cfg.FlowName, data, format)
	if err != nil {
		// flow уже отслеживается; файл догонит следующая загрузка
		InternalError(w, h.logger, fmt.Errorf("save config %s: %w", cfg.FlowName, err))
		return
	}

	resp := UploadResponse{
		FlowName: cfg.FlowName,
		File:     file,
		Replaced: existed,
		Warnings: warningStrings(result),
	}
	if flow, ok := h.lookupFlow(cfg.FlowName); ok {
		resp.Summary = flow.Summary()
	}

	if existed {
		Success(w, resp)
		return
	}
	Created(w, resp)
}

// GetConfig возвращает конфигурацию flow без паролей.
// GET /api/v1/configs/{name}
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	f, err := h.store.Read(name)
	if HandleError(w, h.logger, err, "config not found") {
		return
	}

	cfg, err := config.ParseFlowConfig(f.Data, f.Format)
	if HandleError(w, h.logger, err, "") {
		return
	}

	Success(w, ConfigResponse{
		File:   f.Name,
		Format: f.Format,
		Config: cfg.Redacted(),
	})
}

// DeleteConfig удаляет файл конфигурации и снимает flow с отслеживания.
// DELETE /api/v1/configs/{name}
func (h *Handler) DeleteConfig(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	f, err := h.store.Read(name)
	if HandleError(w, h.logger, err, "config not found") {
		return
	}

	flowName := strings.TrimSuffix(f.Name, f.Format.Ext())
	if cfg, err := config.ParseFlowConfig(f.Data, f.Format); err == nil {
		flowName = cfg.FlowName
	}

	if err := h.store.Delete(f.Name); HandleError(w, h.logger, err, "config not found") {
		return
	}
	h.tracker.UnregisterFlow(flowName)

	NoContent(w)
}

// readUpload извлекает содержимое и формат конфигурации из запроса.
func readUpload(r *http.Request) ([]byte, config.Format, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", fmt.Errorf("multipart field %q is required", "file")
		}
		defer file.Close()

		format, ok := config.FormatFromName(header.Filename)
		if !ok {
			return nil, "", fmt.Errorf("unsupported file extension: %s", header.Filename)
		}
		data, err := readAll(file)
		return data, format, err
	}

	format := config.FormatJSON
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "yaml", "yml":
		format = config.FormatYAML
	case "", "json":
		if strings.Contains(mediaType, "yaml") {
			format = config.FormatYAML
		}
	default:
		return nil, "", fmt.Errorf("unsupported format: %s", r.URL.Query().Get("format"))
	}

	data, err := readAll(r.Body)
	return data, format, err
}

func readAll(src io.Reader) ([]byte, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("config exceeds %d bytes", tooLarge.Limit)
		}
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty config")
	}
	return data, nil
}
