package domain

// Status — канонический статус стадии.
//
// Все статусы бэкендов (Airflow, on-prem) приводятся к этому словарю.
// Нераспознанный статус бэкенда не отбрасывается, а сохраняется
// как есть (в нижнем регистре), поэтому Status — открытая строка,
// а не закрытый набор значений.
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ FAILED
type Status string

const (
	// StatusPending — стадия ещё не начала выполняться.
	StatusPending Status = "pending"

	// StatusRunning — стадия выполняется.
	StatusRunning Status = "running"

	// StatusCompleted — стадия успешно завершена.
	StatusCompleted Status = "completed"

	// StatusFailed — бэкенд сообщил о падении стадии.
	StatusFailed Status = "failed"

	// StatusUnknown — статус не удалось определить (нет записи или нет маппинга).
	StatusUnknown Status = "unknown"

	// StatusError — сбой обращения к бэкенду (не путать с StatusFailed).
	StatusError Status = "error"

	// StatusNotFound — бэкенд не вернул строку для пары process/instance id.
	StatusNotFound Status = "not_found"
)

// IsTerminal возвращает true, если стадия завершена (успешно или нет).
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// IsCanonical возвращает true, если статус входит в канонический словарь.
func (s Status) IsCanonical() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed,
		StatusUnknown, StatusError, StatusNotFound:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление Status.
func (s Status) String() string {
	return string(s)
}
