// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package pgxdriver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PoolConfig configures the pooled PostgreSQL connection used by the store
// adapter. There is no protobuf config layer in this service, so this is a
// plain struct loaded by internal/config via viper.
type PoolConfig struct {
	DSN      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	Schema   string

	MaxConns          int32
	MinConns          int32
	MaxConnIdleTime   time.Duration
	MaxConnLifetime   time.Duration
	HealthCheckPeriod time.Duration

	// CommandTimeout bounds every statement executed against the pool.
	CommandTimeout time.Duration
}

// Default pool parameters per the store adapter contract: min 5 / max 20
// connections, 180s command timeout.
const (
	DefaultMaxConns          = 20
	DefaultMinConns          = 5
	DefaultMaxConnIdleTime   = 5 * time.Minute
	DefaultMaxConnLifetime   = time.Hour
	DefaultHealthCheckPeriod = 30 * time.Second
	DefaultCommandTimeout    = 180 * time.Second
)

// NewPool creates a pgxpool.Pool from PoolConfig, verifying connectivity
// before returning. Callers own exactly one pool for the process lifetime.
func NewPool(ctx context.Context, cfg PoolConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := BuildDSN(cfg)
	if dsn == "" {
		return nil, fmt.Errorf("postgres configuration requires either dsn or host+database")
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}

	applyPoolConfig(poolCfg, cfg)

	schema := cfg.Schema
	if schema == "" {
		schema = "public"
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", pgx.Identifier{schema}.Sanitize()))
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	logger.Info("postgres pool initialized",
		zap.Int32("max_conns", poolCfg.MaxConns),
		zap.Int32("min_conns", poolCfg.MinConns),
		zap.String("schema", schema))

	return pool, nil
}

// BuildDSN constructs a PostgreSQL connection string from PoolConfig, so
// callers that need a bare DSN (the migration runner) build it the same
// way the pool does. Values are single-quoted per libpq keyword/value
// format to handle special characters (spaces, @, =, etc.) safely. See:
// https://www.postgresql.org/docs/current/libpq-connect.html#LIBPQ-CONNSTRING
func BuildDSN(cfg PoolConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}

	host := cfg.Host
	if host == "" {
		return ""
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	database := cfg.Database
	if database == "" {
		return ""
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		dsnQuoteValue(host), port, dsnQuoteValue(database), dsnQuoteValue(sslMode))

	if cfg.User != "" {
		dsn += fmt.Sprintf(" user=%s", dsnQuoteValue(cfg.User))
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", dsnQuoteValue(cfg.Password))
	}

	return dsn
}

// dsnQuoteValue quotes a value for use in a libpq keyword/value connection
// string. Per the PostgreSQL documentation, values containing spaces,
// special characters, or that are empty must be enclosed in single quotes.
// Within quoted values, single quotes and backslashes must be escaped with
// a backslash. For simplicity and safety, we always quote all values.
func dsnQuoteValue(val string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(val)
	return "'" + escaped + "'"
}

// applyPoolConfig maps PoolConfig pool settings onto pgxpool.Config,
// applying the store adapter's defaults. CommandTimeout becomes each
// connection's statement_timeout.
func applyPoolConfig(poolCfg *pgxpool.Config, cfg PoolConfig) {
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	} else {
		poolCfg.MaxConns = DefaultMaxConns
	}

	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	} else {
		poolCfg.MinConns = DefaultMinConns
	}

	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	} else {
		poolCfg.MaxConnIdleTime = DefaultMaxConnIdleTime
	}

	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	} else {
		poolCfg.MaxConnLifetime = DefaultMaxConnLifetime
	}

	if cfg.HealthCheckPeriod > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	} else {
		poolCfg.HealthCheckPeriod = DefaultHealthCheckPeriod
	}

	timeout := cfg.CommandTimeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	if poolCfg.ConnConfig != nil {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = map[string]string{}
		}
		poolCfg.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", timeout.Milliseconds())
	}
}
