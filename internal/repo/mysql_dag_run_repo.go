package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// MySQLDagRunRepo читает таблицу dag_run метаданных Airflow на MySQL.
type MySQLDagRunRepo struct {
	db    *sql.DB
	table string
}

// NewMySQLDagRunRepo создаёт новый MySQLDagRunRepo.
// schema — база с таблицей dag_run; пустая строка — база подключения.
func NewMySQLDagRunRepo(db *sql.DB, schema string) *MySQLDagRunRepo {
	return &MySQLDagRunRepo{db: db, table: mysqlDagRunTable(schema)}
}

func mysqlDagRunTable(schema string) string {
	if schema == "" {
		return quoteMySQL("dag_run")
	}
	return quoteMySQL(schema) + "." + quoteMySQL("dag_run")
}

func quoteMySQL(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

// latestDagRunsQuery собирает запрос с n плейсхолдерами для IN.
func latestDagRunsQuery(table string, n int) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
	return fmt.Sprintf(`
		SELECT r.dag_id, COALESCE(r.state, ''), r.execution_date, r.start_date, r.end_date
		FROM %[1]s r
		INNER JOIN (
			SELECT dag_id, MAX(execution_date) AS max_date
			FROM %[1]s
			WHERE dag_id IN (%[2]s)
			GROUP BY dag_id
		) latest ON r.dag_id = latest.dag_id AND r.execution_date = latest.max_date
	`, table, placeholders)
}

// LatestDagRuns возвращает последний запуск (по execution_date) каждого DAG.
// DAG без запусков в результат не попадает.
func (r *MySQLDagRunRepo) LatestDagRuns(ctx context.Context, dagIDs []string) (map[string]DagRun, error) {
	result := make(map[string]DagRun, len(dagIDs))
	if len(dagIDs) == 0 {
		return result, nil
	}

	args := make([]any, len(dagIDs))
	for i, id := range dagIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, latestDagRunsQuery(r.table, len(dagIDs)), args...)
	if err != nil {
		return nil, fmt.Errorf("query dag runs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			run        DagRun
			start, end sql.NullTime
		)
		if err := rows.Scan(&run.DagID, &run.State, &run.ExecutionDate, &start, &end); err != nil {
			return nil, fmt.Errorf("scan dag run: %w", err)
		}
		if start.Valid {
			run.StartDate = &start.Time
		}
		if end.Valid {
			run.EndDate = &end.Time
		}
		result[run.DagID] = run
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dag runs: %w", err)
	}

	return result, nil
}

// Close закрывает пул.
func (r *MySQLDagRunRepo) Close() error {
	return r.db.Close()
}
