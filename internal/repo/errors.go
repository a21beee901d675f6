package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrInvalidEndpoint — параметры подключения неполные.
	ErrInvalidEndpoint = errors.New("invalid endpoint")
)
