// Package provider опрашивает бэкенды статусов стадий.
//
// Два варианта:
//   - Orchestrator — метаданные Airflow (последний dag_run на dag_id)
//   - Process — on-prem база процессов (одна запись на пару bpf_id/process_id)
//
// Провайдеры никогда не возвращают ошибку вызывающему: сбой транспорта
// или запроса превращается в статус "error" для стадий этого вызова.
package provider

import (
	"context"
	"fmt"

	"github.com/shaiso/Flowtrack/internal/connpool"
	"github.com/shaiso/Flowtrack/internal/domain"
	"github.com/shaiso/Flowtrack/internal/repo"
)

// DagRunReader читает последние запуски DAG.
type DagRunReader interface {
	LatestDagRuns(ctx context.Context, dagIDs []string) (map[string]repo.DagRun, error)
	Close() error
}

// StageReader читает запись стадии on-prem процесса.
type StageReader interface {
	StageStatus(ctx context.Context, bpfID, processID int64) (*repo.StageRecord, error)
	Close() error
}

// OrchestratorOpener открывает DagRunReader по драйверу endpoint:
// pgxpool для postgres (по умолчанию), database/sql для mysql.
// schema — схема (для mysql — база) с таблицей dag_run.
func OrchestratorOpener(schema string) connpool.Opener[DagRunReader] {
	return func(ctx context.Context, ep domain.Endpoint) (DagRunReader, error) {
		switch ep.Driver {
		case "", domain.DriverPostgres:
			pool, err := repo.NewPool(ctx, ep)
			if err != nil {
				return nil, err
			}
			return repo.NewDagRunRepo(pool, schema), nil
		case domain.DriverMySQL:
			db, err := repo.NewMySQLDB(ctx, ep)
			if err != nil {
				return nil, err
			}
			return repo.NewMySQLDagRunRepo(db, schema), nil
		default:
			return nil, fmt.Errorf("%w: unsupported driver %q", repo.ErrInvalidEndpoint, ep.Driver)
		}
	}
}

// ProcessOpener открывает StageReader поверх go-ora.
// schema — схема с таблицей stage_status.
func ProcessOpener(schema string) connpool.Opener[StageReader] {
	return func(ctx context.Context, ep domain.Endpoint) (StageReader, error) {
		db, err := repo.NewOracleDB(ctx, ep)
		if err != nil {
			return nil, err
		}
		return repo.NewStageStatusRepo(db, schema), nil
	}
}
