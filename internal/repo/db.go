package repo

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	go_ora "github.com/sijms/go-ora/v2"

	"github.com/shaiso/Flowtrack/internal/domain"
)

const (
	defaultPostgresPort = 5432
	defaultMySQLPort    = 3306
	defaultOraclePort   = 1521
	pingTimeout         = 5 * time.Second
)

// PostgresDSN собирает DSN для метаданных Airflow.
func PostgresDSN(ep domain.Endpoint) (string, error) {
	if ep.Host == "" || ep.Database == "" {
		return "", fmt.Errorf("%w: host and database are required", ErrInvalidEndpoint)
	}

	port := ep.Port
	if port == 0 {
		port = defaultPostgresPort
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(ep.User, ep.Password),
		Host:   ep.Host + ":" + strconv.Itoa(port),
		Path:   "/" + ep.Database,
	}
	return u.String(), nil
}

// NewPool открывает пул подключений к метаданным Airflow.
func NewPool(ctx context.Context, ep domain.Endpoint) (*pgxpool.Pool, error) {
	dsn, err := PostgresDSN(ep)
	if err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

// MySQLDSN собирает DSN для метаданных Airflow на MySQL.
// Времена разбираются в time.Time в UTC.
func MySQLDSN(ep domain.Endpoint) (string, error) {
	if ep.Host == "" || ep.Database == "" {
		return "", fmt.Errorf("%w: host and database are required", ErrInvalidEndpoint)
	}

	port := ep.Port
	if port == 0 {
		port = defaultMySQLPort
	}

	cfg := mysql.NewConfig()
	cfg.User = ep.User
	cfg.Passwd = ep.Password
	cfg.Net = "tcp"
	cfg.Addr = ep.Host + ":" + strconv.Itoa(port)
	cfg.DBName = ep.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// NewMySQLDB открывает пул подключений к метаданным Airflow на MySQL.
func NewMySQLDB(ctx context.Context, ep domain.Endpoint) (*sql.DB, error) {
	dsn, err := MySQLDSN(ep)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

// OracleURL собирает URL для go-ora. Database — service name.
func OracleURL(ep domain.Endpoint) (string, error) {
	if ep.Host == "" || ep.Database == "" {
		return "", fmt.Errorf("%w: host and service are required", ErrInvalidEndpoint)
	}

	port := ep.Port
	if port == 0 {
		port = defaultOraclePort
	}
	return go_ora.BuildUrl(ep.Host, port, ep.Database, ep.User, ep.Password, nil), nil
}

// NewOracleDB открывает пул подключений к on-prem базе процессов.
func NewOracleDB(ctx context.Context, ep domain.Endpoint) (*sql.DB, error) {
	dsn, err := OracleURL(ep)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("oracle", dsn)
	if err != nil {
		return nil, fmt.Errorf("open oracle: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping oracle: %w", err)
	}
	return db, nil
}
