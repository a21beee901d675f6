package domain

import "time"

// StageStatus — статус одной стадии в снимке.
type StageStatus struct {
	// Status — канонический статус.
	Status Status `json:"status"`

	// StartTime — время начала (nil, если неизвестно).
	StartTime *time.Time `json:"start_time"`

	// EndTime — время окончания (nil, если неизвестно).
	EndTime *time.Time `json:"end_time"`

	// Details — сырая запись бэкенда; при сбое содержит ключ "error".
	Details map[string]any `json:"details"`
}

// ErrorDetail возвращает текст ошибки из Details, если он есть.
func (s StageStatus) ErrorDetail() string {
	if s.Details == nil {
		return ""
	}
	msg, _ := s.Details["error"].(string)
	return msg
}

// NewErrorStatus создаёт статус сбоя обращения к бэкенду.
func NewErrorStatus(err error) StageStatus {
	return StageStatus{
		Status:  StatusError,
		Details: map[string]any{"error": err.Error()},
	}
}

// NewUnknownStatus создаёт статус "unknown" с необязательным пояснением.
func NewUnknownStatus(reason string) StageStatus {
	details := map[string]any{}
	if reason != "" {
		details["error"] = reason
	}
	return StageStatus{
		Status:  StatusUnknown,
		Details: details,
	}
}

// StatusUpdate — снимок статусов flow, рассылаемый подписчикам.
type StatusUpdate struct {
	Timestamp time.Time              `json:"timestamp"`
	FlowName  string                 `json:"flowName"`
	Stages    map[string]StageStatus `json:"stages"`
}
