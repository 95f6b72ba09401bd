/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"
)

// Normalized driver names returned by ConnectionConfig.Driver.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

const sqliteMemory = ":memory:"

// AbstractDatabaseManager owns one connection pool: connecting, health
// checks, reconnects and migrations.
type AbstractDatabaseManager interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Reconnect(ctx context.Context) error
	Ping(ctx context.Context) error
	HealthCheck(ctx context.Context) *HealthStatus
	GetDB() *bun.DB
	GetSQLDB() *sql.DB
	RunMigrations(ctx context.Context) error
	GetStats() *DBStats
	SetLogger(logger Logger)
}

// HealthStatus is the outcome of the last ping, served on /healthz.
type HealthStatus struct {
	Driver        string        `json:"driver,omitempty"`
	Healthy       bool          `json:"healthy"`
	Connected     bool          `json:"connected"`
	ResponseTime  time.Duration `json:"response_time"`
	InUse         int           `json:"in_use"`
	Idle          int           `json:"idle"`
	MaxOpenConns  int           `json:"max_open_conns"`
	LastError     string        `json:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time"`
}

// DBStats is the pool state of the connection.
type DBStats struct {
	Driver string `json:"driver,omitempty"`
	sql.DBStats
}

func newDBStats(driver string, db *sql.DB) *DBStats {
	if db == nil {
		return &DBStats{Driver: driver}
	}
	return &DBStats{Driver: driver, DBStats: db.Stats()}
}

// ConnectionConfig selects the database and tunes its pool. For sqlite,
// DBName is a file name (".db" appended when missing) or ":memory:".
type ConnectionConfig struct {
	Type                string        `json:"type"`
	Host                string        `json:"host"`
	Port                int           `json:"port"`
	Username            string        `json:"username"`
	Password            string        `json:"password"`
	DBName              string        `json:"dbname"`
	SSLMode             string        `json:"sslmode"`
	MaxIdleConns        int           `json:"max_idle_conns"`
	MaxOpenConns        int           `json:"max_open_conns"`
	ConnMaxLifetime     time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime     time.Duration `json:"conn_max_idle_time"`
	ConnectTimeout      time.Duration `json:"connect_timeout"`
	ReadTimeout         time.Duration `json:"read_timeout"`
	WriteTimeout        time.Duration `json:"write_timeout"`
	EnableReconnect     bool          `json:"enable_reconnect"`
	ReconnectInterval   time.Duration `json:"reconnect_interval"`
	MaxReconnectTries   int           `json:"max_reconnect_tries"`
	HealthCheckInterval time.Duration `json:"health_check_interval"`
	EnableQueryLog      bool          `json:"enable_query_log"`
	SlowQueryTime       time.Duration `json:"slow_query_time"`
}

// Driver maps Type and its aliases to one of the Driver constants, or ""
// when the type is not supported.
func (c *ConnectionConfig) Driver() string {
	switch strings.ToLower(strings.TrimSpace(c.Type)) {
	case "postgres", "postgresql", "pg":
		return DriverPostgres
	case "mysql", "mariadb":
		return DriverMySQL
	case "sqlite", "sqlite3":
		return DriverSQLite
	default:
		return ""
	}
}

func (c *ConnectionConfig) Validate() error {
	if c.Driver() == "" {
		return fmt.Errorf("unsupported database type: %q, supported types: %s, %s, %s",
			c.Type, DriverPostgres, DriverMySQL, DriverSQLite)
	}
	return nil
}

// DSN renders the data source name for the selected driver.
func (c *ConnectionConfig) DSN() string {
	switch c.Driver() {
	case DriverMySQL:
		cfg := mysql.NewConfig()
		cfg.User = c.Username
		cfg.Passwd = c.Password
		cfg.Net = "tcp"
		cfg.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
		cfg.DBName = c.DBName
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		cfg.Timeout = c.ConnectTimeout
		cfg.ReadTimeout = c.ReadTimeout
		cfg.WriteTimeout = c.WriteTimeout
		// Updates report matched rows, so rewriting a value is not "no row".
		cfg.ClientFoundRows = true
		cfg.Params = map[string]string{"charset": "utf8mb4"}
		return cfg.FormatDSN()
	case DriverPostgres:
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.Username, c.Password),
			Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
			Path:   "/" + c.DBName,
		}
		q := url.Values{}
		q.Set("sslmode", sslMode)
		q.Set("connect_timeout", fmt.Sprint(int(c.ConnectTimeout.Seconds())))
		u.RawQuery = q.Encode()
		return u.String()
	case DriverSQLite:
		return sqliteDSN(c.DBName)
	default:
		return ""
	}
}

func sqliteDSN(name string) string {
	switch {
	case name == "" || name == sqliteMemory:
		return sqliteMemory
	case strings.HasPrefix(name, "file:"), strings.HasSuffix(name, ".db"):
		return name
	default:
		return name + ".db"
	}
}

// DataMigrateConfig controls schema migration on startup and the foreign
// key policy file.
type DataMigrateConfig struct {
	EnableMigrateOnStartup bool   `json:"enable_migrate_on_startup"`
	ForeignKeyFile         string `json:"foreign_key_file"`
}

// DataInitConfig controls seeding of the food catalog.
type DataInitConfig struct {
	AutoInitOnMigration bool   `json:"auto_init_on_migration"`
	Filepath            string `json:"filepath"`
}

type Config struct {
	ConnectionConfig  ConnectionConfig  `json:"connection_config"`
	DataMigrateConfig DataMigrateConfig `json:"data_migrate_config"`
	DataInitConfig    DataInitConfig    `json:"data_init_config"`
}

// DefaultConnectionConfig is a local sqlite file with pool defaults for
// server databases.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Type:                DriverSQLite,
		DBName:              "nutrilog",
		MaxIdleConns:        10,
		MaxOpenConns:        100,
		ConnMaxLifetime:     time.Hour,
		ConnMaxIdleTime:     30 * time.Minute,
		ConnectTimeout:      10 * time.Second,
		ReadTimeout:         30 * time.Second,
		WriteTimeout:        30 * time.Second,
		EnableReconnect:     true,
		ReconnectInterval:   5 * time.Second,
		MaxReconnectTries:   3,
		HealthCheckInterval: 5 * time.Minute,
		SlowQueryTime:       2 * time.Second,
	}
}
