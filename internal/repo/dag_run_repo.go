package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DagRun — последний запуск DAG в Airflow.
type DagRun struct {
	DagID         string
	State         string
	ExecutionDate time.Time
	StartDate     *time.Time
	EndDate       *time.Time
}

// DagRunRepo читает таблицу dag_run метаданных Airflow.
type DagRunRepo struct {
	pool  *pgxpool.Pool
	table string
}

// NewDagRunRepo создаёт новый DagRunRepo.
// schema — схема с таблицей dag_run; пустая строка — search_path.
func NewDagRunRepo(pool *pgxpool.Pool, schema string) *DagRunRepo {
	return &DagRunRepo{pool: pool, table: dagRunTable(schema)}
}

func dagRunTable(schema string) string {
	if schema == "" {
		return pgx.Identifier{"dag_run"}.Sanitize()
	}
	return pgx.Identifier{schema, "dag_run"}.Sanitize()
}

// LatestDagRuns возвращает последний запуск (по execution_date) каждого DAG.
// DAG без запусков в результат не попадает.
func (r *DagRunRepo) LatestDagRuns(ctx context.Context, dagIDs []string) (map[string]DagRun, error) {
	result := make(map[string]DagRun, len(dagIDs))
	if len(dagIDs) == 0 {
		return result, nil
	}

	query := fmt.Sprintf(`
		SELECT r.dag_id, COALESCE(r.state, ''), r.execution_date, r.start_date, r.end_date
		FROM %[1]s r
		INNER JOIN (
			SELECT dag_id, MAX(execution_date) AS max_date
			FROM %[1]s
			WHERE dag_id = ANY($1)
			GROUP BY dag_id
		) latest ON r.dag_id = latest.dag_id AND r.execution_date = latest.max_date
	`, r.table)

	rows, err := r.pool.Query(ctx, query, dagIDs)
	if err != nil {
		return nil, fmt.Errorf("query dag runs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var run DagRun
		if err := rows.Scan(&run.DagID, &run.State, &run.ExecutionDate, &run.StartDate, &run.EndDate); err != nil {
			return nil, fmt.Errorf("scan dag run: %w", err)
		}
		result[run.DagID] = run
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dag runs: %w", err)
	}

	return result, nil
}

// Close закрывает пул.
func (r *DagRunRepo) Close() error {
	r.pool.Close()
	return nil
}
