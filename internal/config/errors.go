package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig — конфигурация не прошла разбор или валидацию.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrConfigNotFound — файла конфигурации нет в CONFIG_DIR.
	ErrConfigNotFound = errors.New("config not found")
)

// ValidationError — нарушение JSON-схемы конфигурации flow.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid flow config: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is позволяет проверять errors.Is(err, ErrInvalidConfig).
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}
