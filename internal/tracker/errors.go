package tracker

import "errors"

// Ошибки трекера.
var (
	// ErrFlowNotFound — flow не зарегистрирован.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrInvalidRegistration — регистрация отклонена (пустое имя, интервал, граф).
	ErrInvalidRegistration = errors.New("invalid flow registration")

	// ErrStopped — трекер уже остановлен.
	ErrStopped = errors.New("tracker stopped")
)
