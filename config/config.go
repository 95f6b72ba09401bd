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

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/jinzhu/configor"
	"github.com/joho/godotenv"
	"github.com/tomoncle/nutrilog/database"
	"github.com/tomoncle/nutrilog/utils"
)

// DefaultFile is read when Load is called without files.
const DefaultFile = "configs/config.yml"

// EnvPrefix prefixes the generated environment overrides, e.g.
// NUTRILOG_DATABASE_HOST.
const EnvPrefix = "NUTRILOG"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
}

type ServerConfig struct {
	Addr         string `yaml:"addr" default:":8080" env:"NUTRILOG_ADDR"`
	Mode         string `yaml:"mode" default:"release" env:"GIN_MODE"`
	DefaultLimit int    `yaml:"default_limit" default:"100"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" env:"LOG_LEVEL"`
	Format string `yaml:"format" default:"text" env:"CONSOLE_LOG_FORMAT"`
}

type DatabaseConfig struct {
	Type                string        `yaml:"type" default:"sqlite"`
	Host                string        `yaml:"host"`
	Port                int           `yaml:"port"`
	Username            string        `yaml:"username"`
	Password            string        `yaml:"password"`
	Name                string        `yaml:"name" default:"nutrilog"`
	SSLMode             string        `yaml:"sslmode" default:"disable"`
	MaxIdleConns        int           `yaml:"max_idle_conns" default:"10"`
	MaxOpenConns        int           `yaml:"max_open_conns" default:"100"`
	ConnMaxLifetime     time.Duration `yaml:"conn_max_lifetime" default:"1h"`
	ConnMaxIdleTime     time.Duration `yaml:"conn_max_idle_time" default:"30m"`
	ConnectTimeout      time.Duration `yaml:"connect_timeout" default:"10s"`
	EnableReconnect     bool          `yaml:"enable_reconnect"`
	ReconnectInterval   time.Duration `yaml:"reconnect_interval" default:"5s"`
	MaxReconnectTries   int           `yaml:"max_reconnect_tries" default:"3"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval" default:"5m"`
	EnableQueryLog      bool          `yaml:"enable_query_log"`
	SlowQueryTime       time.Duration `yaml:"slow_query_time" default:"2s"`
	SkipMigrations      bool          `yaml:"skip_migrations"`
	ForeignKeyFile      string        `yaml:"foreign_key_file"`
	Catalog             CatalogConfig `yaml:"catalog"`
}

// CatalogConfig controls seeding the food catalog as a migration.
type CatalogConfig struct {
	SeedOnMigration bool   `yaml:"seed_on_migration"`
	File            string `yaml:"file" default:"configs/foods.yml"`
}

// Load reads .env when present, then files (DefaultFile when none are
// given) and the environment. Missing files are skipped.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if len(files) == 0 {
		files = []string{DefaultFile}
	}
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}

	cfg := new(Config)
	loader := configor.New(&configor.Config{ENVPrefix: EnvPrefix, Silent: true})
	if err := loader.Load(cfg, existing...); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// ApplyLogging configures the process loggers.
func (c *Config) ApplyLogging() {
	utils.ConfigureConsoleLogFormat(c.Log.Format)
	utils.ConfigureLogLevel(c.Log.Level)
}

// DatabaseConfig converts the database section for database.InitDB.
func (c *Config) DatabaseConfig() *database.Config {
	d := c.Database
	conn := database.DefaultConnectionConfig()
	conn.Type = d.Type
	conn.Host = d.Host
	conn.Port = d.Port
	conn.Username = d.Username
	conn.Password = d.Password
	conn.DBName = d.Name
	conn.SSLMode = d.SSLMode
	conn.MaxIdleConns = d.MaxIdleConns
	conn.MaxOpenConns = d.MaxOpenConns
	conn.ConnMaxLifetime = d.ConnMaxLifetime
	conn.ConnMaxIdleTime = d.ConnMaxIdleTime
	conn.ConnectTimeout = d.ConnectTimeout
	conn.EnableReconnect = d.EnableReconnect
	conn.ReconnectInterval = d.ReconnectInterval
	conn.MaxReconnectTries = d.MaxReconnectTries
	conn.HealthCheckInterval = d.HealthCheckInterval
	conn.EnableQueryLog = d.EnableQueryLog
	conn.SlowQueryTime = d.SlowQueryTime

	return &database.Config{
		ConnectionConfig: *conn,
		DataMigrateConfig: database.DataMigrateConfig{
			EnableMigrateOnStartup: !d.SkipMigrations,
			ForeignKeyFile:         d.ForeignKeyFile,
		},
		DataInitConfig: database.DataInitConfig{
			AutoInitOnMigration: d.Catalog.SeedOnMigration,
			Filepath:            d.Catalog.File,
		},
	}
}
