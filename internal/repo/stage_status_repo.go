package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// StageRecord — запись о стадии on-prem процесса.
type StageRecord struct {
	Status    string
	StartDate *time.Time
	EndDate   *time.Time
}

// StageStatusRepo читает таблицу stage_status on-prem базы (Oracle).
type StageStatusRepo struct {
	db    *sql.DB
	table string
}

// NewStageStatusRepo создаёт новый StageStatusRepo.
// schema — схема с таблицей stage_status; пустая строка — схема пользователя.
func NewStageStatusRepo(db *sql.DB, schema string) *StageStatusRepo {
	table := "stage_status"
	if schema != "" {
		table = schema + "." + table
	}
	return &StageStatusRepo{db: db, table: table}
}

// StageStatus возвращает запись для пары (bpf_id, process_id).
// Если записи нет, возвращает ErrNotFound.
func (r *StageStatusRepo) StageStatus(ctx context.Context, bpfID, processID int64) (*StageRecord, error) {
	query := fmt.Sprintf(`
		SELECT status, start_date, end_date
		FROM %s
		WHERE bpf_id = :bpf_id AND process_id = :process_id
	`, r.table)

	var (
		status     sql.NullString
		start, end sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query,
		sql.Named("bpf_id", bpfID),
		sql.Named("process_id", processID),
	).Scan(&status, &start, &end)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query stage status: %w", err)
	}

	rec := &StageRecord{Status: status.String}
	if start.Valid {
		rec.StartDate = &start.Time
	}
	if end.Valid {
		rec.EndDate = &end.Time
	}
	return rec, nil
}

// Close закрывает пул.
func (r *StageStatusRepo) Close() error {
	return r.db.Close()
}
