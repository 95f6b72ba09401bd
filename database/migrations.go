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
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/uptrace/bun"
)

const baseTablesVersion = "001"

var (
	registeredMigrations   = map[string]MigrationItem{}
	registeredMigrationsMu sync.RWMutex
)

// Migration is an applied migration record.
type Migration struct {
	bun.BaseModel `bun:"table:migrations"`

	Version     string    `bun:"version,pk"`
	Name        string    `bun:"name,notnull"`
	AppliedAt   time.Time `bun:"applied_at,notnull"`
	Description string    `bun:"description"`
}

// MigrationFunc is a migration step executed within a transaction.
type MigrationFunc func(ctx context.Context, db bun.IDB) error

// MigrationItem describes a single migration version.
type MigrationItem struct {
	Version     string
	Name        string
	Description string
	Up          MigrationFunc
}

// RegisterMigration adds a migration that runs after the base tables exist.
// Registering a version again replaces the previous item.
func RegisterMigration(item MigrationItem) error {
	if item.Version == "" || item.Up == nil {
		return fmt.Errorf("migration requires a version and an up function")
	}
	if item.Version == baseTablesVersion {
		return fmt.Errorf("migration version %s is reserved", baseTablesVersion)
	}
	registeredMigrationsMu.Lock()
	defer registeredMigrationsMu.Unlock()
	registeredMigrations[item.Version] = item
	return nil
}

// UnregisterMigration removes a migration added with RegisterMigration.
func UnregisterMigration(version string) {
	registeredMigrationsMu.Lock()
	defer registeredMigrationsMu.Unlock()
	delete(registeredMigrations, version)
}

// MigrationManager creates the registered tables and applies versioned
// migrations exactly once, recording them in the migrations table.
type MigrationManager struct {
	db     *bun.DB
	logger Logger
	fkm    *ForeignKeyManager
}

// NewMigrationManager constructs a MigrationManager. A nil fkm creates tables
// without foreign key clauses.
func NewMigrationManager(db *bun.DB, logger Logger, fkm *ForeignKeyManager) *MigrationManager {
	if logger == nil {
		logger = GetLogger()
	}
	return &MigrationManager{
		db:     db,
		logger: logger,
		fkm:    fkm,
	}
}

// RunMigrations creates the migration tracking table if needed and executes
// pending migrations in ascending version order. Running it again is a
// no-op.
func (mm *MigrationManager) RunMigrations(ctx context.Context) error {
	if mm.db == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, ok := os.LookupEnv("BUNDEBUG_MIGRATION"); !ok {
		EnableSilentMode(true)
		defer EnableSilentMode(false)
	}

	if mm.fkm != nil {
		if errs := mm.fkm.ValidateConstraints(); len(errs) > 0 {
			for _, err := range errs {
				mm.logger.Error("Foreign key constraint validation failed", "error", err.Error())
			}
			return fmt.Errorf("foreign key constraint validation failed, %d errors in total", len(errs))
		}
	}

	if err := mm.createMigrationTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, migration := range mm.getAllMigrations() {
		if err := mm.runMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", migration.Version, err)
		}
	}

	mm.logger.Info("Database migrations completed")
	return nil
}

func (mm *MigrationManager) createMigrationTable(ctx context.Context) error {
	_, err := mm.db.NewCreateTable().
		Model((*Migration)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (mm *MigrationManager) getAllMigrations() []MigrationItem {
	migrations := []MigrationItem{
		{
			Version:     baseTablesVersion,
			Name:        "create_base_tables",
			Description: "Create tables of the registered models",
			Up:          mm.createBaseTables,
		},
	}

	registeredMigrationsMu.RLock()
	for _, item := range registeredMigrations {
		migrations = append(migrations, item)
	}
	registeredMigrationsMu.RUnlock()

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations
}

func (mm *MigrationManager) runMigration(ctx context.Context, migration MigrationItem) error {
	exists, err := mm.db.NewSelect().
		Model((*Migration)(nil)).
		Where("version = ?", migration.Version).
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		mm.logger.Debug("Migration already applied", "version", migration.Version)
		return nil
	}

	tx, err := mm.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	var committed bool
	defer func(tx bun.Tx) {
		if !committed {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				mm.logger.Error("Failed to rollback transaction", "error", rollbackErr)
			}
		}
	}(tx)

	if err := migration.Up(ctx, tx); err != nil {
		return err
	}

	record := &Migration{
		Version:     migration.Version,
		Name:        migration.Name,
		AppliedAt:   time.Now().UTC(),
		Description: migration.Description,
	}
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	mm.logger.Info("Migration executed", "version", migration.Version, "name", migration.Name)
	return nil
}

// createBaseTables creates every registered model table in priority order.
// The statements use IF NOT EXISTS, so tables created outside the
// migrations table are left untouched.
func (mm *MigrationManager) createBaseTables(ctx context.Context, db bun.IDB) error {
	return CreateTables(ctx, db, mm.fkm)
}

// CreateTables issues CREATE TABLE IF NOT EXISTS for every registered model,
// declaring the foreign keys fkm holds for each table.
func CreateTables(ctx context.Context, db bun.IDB, fkm *ForeignKeyManager) error {
	for _, model := range RegisteredModelInstances() {
		q := db.NewCreateTable().
			Model(model).
			IfNotExists()
		if fkm != nil {
			for _, fk := range fkm.GetConstraintsByTable(TableName(model)) {
				q = fk.ApplyTo(q)
			}
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table %s: %w", TableName(model), err)
		}
	}
	return nil
}

// GetAppliedMigrations returns migration records ordered by version.
func (mm *MigrationManager) GetAppliedMigrations(ctx context.Context) ([]Migration, error) {
	var migrations []Migration
	err := mm.db.NewSelect().
		Model(&migrations).
		Order("version ASC").
		Scan(ctx)
	return migrations, err
}
