package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shaiso/Flowtrack/internal/domain"
)

// extensions — поддерживаемые расширения в порядке поиска.
var extensions = []string{".json", ".yaml", ".yml"}

// File — файл конфигурации в CONFIG_DIR.
type File struct {
	Name   string
	Format Format
	Data   []byte
}

// Store хранит файлы конфигураций flows в каталоге.
//
// Один файл на flow: имя файла — имя flow в нижнем регистре
// плюс расширение формата.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore создаёт каталог, если его нет.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir возвращает каталог хранилища.
func (s *Store) Dir() string {
	return s.dir
}

// FileName возвращает имя файла конфигурации flow.
func FileName(flowName string, format Format) string {
	return domain.FlowKey(flowName) + format.Ext()
}

// Save записывает конфигурацию flow и удаляет её файлы в других форматах.
// Возвращает имя записанного файла.
func (s *Store) Save(flowName string, data []byte, format Format) (string, error) {
	name := FileName(flowName, format)
	if err := checkName(name); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename config: %w", err)
	}

	// Старые файлы этого flow в других форматах
	base := domain.FlowKey(flowName)
	for _, ext := range extensions {
		other := base + ext
		if other == name {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, other)); err == nil {
			s.logger.Info("removed stale config", "file", other)
		}
	}

	s.logger.Info("config saved", "file", name, "flow", flowName)
	return name, nil
}

// Read возвращает файл конфигурации.
// name — имя файла или имя flow (поиск по всем расширениям).
func (s *Store) Read(name string) (*File, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	candidates := []string{name}
	if _, ok := FormatFromName(name); !ok {
		candidates = candidates[:0]
		for _, ext := range extensions {
			candidates = append(candidates, domain.FlowKey(name)+ext)
		}
	}

	for _, candidate := range candidates {
		data, err := os.ReadFile(filepath.Join(s.dir, candidate))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", candidate, err)
		}
		format, _ := FormatFromName(candidate)
		return &File{Name: candidate, Format: format, Data: data}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, name)
}

// Load читает и валидирует конфигурацию.
func (s *Store) Load(name string) (*FlowConfig, error) {
	f, err := s.Read(name)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseFlowConfig(f.Data, f.Format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	return cfg, nil
}

// List возвращает отсортированные имена файлов конфигураций.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read config dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, ok := FormatFromName(e.Name()); ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// ReadAll читает все файлы конфигураций.
// Нечитаемые файлы логируются и пропускаются.
func (s *Store) ReadAll() ([]File, error) {
	names, err := s.List()
	if err != nil {
		return nil, err
	}

	files := make([]File, 0, len(names))
	for _, name := range names {
		f, err := s.Read(name)
		if err != nil {
			s.logger.Warn("failed to read config", "file", name, "error", err)
			continue
		}
		files = append(files, *f)
	}
	return files, nil
}

// Delete удаляет все файлы конфигурации flow.
// name — имя файла или имя flow.
func (s *Store) Delete(name string) error {
	if err := checkName(name); err != nil {
		return err
	}

	candidates := []string{name}
	if _, ok := FormatFromName(name); !ok {
		candidates = candidates[:0]
		for _, ext := range extensions {
			candidates = append(candidates, domain.FlowKey(name)+ext)
		}
	}

	removed := 0
	for _, candidate := range candidates {
		err := os.Remove(filepath.Join(s.dir, candidate))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("delete config %s: %w", candidate, err)
		}
		removed++
	}

	if removed == 0 {
		return fmt.Errorf("%w: %s", ErrConfigNotFound, name)
	}
	s.logger.Info("config deleted", "name", name)
	return nil
}

// checkName запрещает выход за пределы каталога.
func checkName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: bad config name %q", ErrInvalidConfig, name)
	}
	return nil
}
