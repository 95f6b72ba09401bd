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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/uptrace/bun"
	"gopkg.in/yaml.v3"
)

// KeyColumn is the surrogate key column every registered table uses.
const KeyColumn = "id"

const (
	ActionCascade  = "CASCADE"
	ActionRestrict = "RESTRICT"
	ActionSetNull  = "SET NULL"
	ActionNoAction = "NO ACTION"
)

var validActions = []string{ActionCascade, ActionRestrict, ActionSetNull, ActionNoAction}

var (
	registeredForeignKeys   []ForeignKeyConstraint
	registeredForeignKeysMu sync.RWMutex

	activeForeignKeys   *ForeignKeyManager
	activeForeignKeysMu sync.RWMutex
)

// ForeignKeyConstraint describes a foreign key relationship between tables.
type ForeignKeyConstraint struct {
	Table           string
	Column          string
	ReferenceTable  string
	ReferenceColumn string
	OnDelete        string // CASCADE, RESTRICT, SET NULL, NO ACTION
	OnUpdate        string // CASCADE, RESTRICT, SET NULL, NO ACTION
	ConstraintName  string
}

// GenerateConstraintName returns the explicit name or a derived name.
func (fk *ForeignKeyConstraint) GenerateConstraintName() string {
	if fk.ConstraintName != "" {
		return fk.ConstraintName
	}
	return fmt.Sprintf("fk_%s_%s", fk.Table, fk.Column)
}

// DeleteAction returns the normalized ON DELETE action. An empty action is
// reported as NO ACTION, which is what every supported database defaults to.
func (fk *ForeignKeyConstraint) DeleteAction() string {
	action := strings.ToUpper(strings.TrimSpace(fk.OnDelete))
	if action == "" {
		return ActionNoAction
	}
	return action
}

// ApplyTo appends the constraint as a table-level FOREIGN KEY clause of a
// CREATE TABLE query.
func (fk *ForeignKeyConstraint) ApplyTo(q *bun.CreateTableQuery) *bun.CreateTableQuery {
	clause := "(?) REFERENCES ? (?) ON DELETE " + fk.DeleteAction()
	if fk.OnUpdate != "" {
		clause += " ON UPDATE " + strings.ToUpper(strings.TrimSpace(fk.OnUpdate))
	}
	return q.ForeignKey(clause,
		bun.Ident(fk.Column),
		bun.Ident(fk.ReferenceTable),
		bun.Ident(fk.ReferenceColumn),
	)
}

// RegisterForeignKey adds a code-defined constraint. Models call it from
// their init functions.
func RegisterForeignKey(fk ForeignKeyConstraint) {
	registeredForeignKeysMu.Lock()
	defer registeredForeignKeysMu.Unlock()
	registeredForeignKeys = append(registeredForeignKeys, fk)
}

func getForeignKeyConstraints() []ForeignKeyConstraint {
	registeredForeignKeysMu.RLock()
	defer registeredForeignKeysMu.RUnlock()
	result := make([]ForeignKeyConstraint, len(registeredForeignKeys))
	copy(result, registeredForeignKeys)
	return result
}

// SetForeignKeyManager replaces the manager returned by ActiveForeignKeys.
func SetForeignKeyManager(fkm *ForeignKeyManager) {
	activeForeignKeysMu.Lock()
	defer activeForeignKeysMu.Unlock()
	activeForeignKeys = fkm
}

// ActiveForeignKeys returns the manager installed by SetForeignKeyManager,
// or one built from the code-defined constraints.
func ActiveForeignKeys() *ForeignKeyManager {
	activeForeignKeysMu.RLock()
	fkm := activeForeignKeys
	activeForeignKeysMu.RUnlock()
	if fkm != nil {
		return fkm
	}
	return NewForeignKeyManager(GetLogger())
}

// ForeignKeyManager holds the foreign key constraints of the schema and
// enforces their delete actions.
type ForeignKeyManager struct {
	constraints []ForeignKeyConstraint
	logger      Logger
}

// NewForeignKeyManager creates a manager with code-defined constraints.
func NewForeignKeyManager(logger Logger) *ForeignKeyManager {
	return &ForeignKeyManager{
		constraints: getForeignKeyConstraints(),
		logger:      logger,
	}
}

// NewForeignKeyManagerWith creates a manager over an explicit constraint set.
func NewForeignKeyManagerWith(logger Logger, constraints []ForeignKeyConstraint) *ForeignKeyManager {
	return &ForeignKeyManager{constraints: constraints, logger: logger}
}

// GetConstraintsByTable returns the constraints declared on a table.
func (fkm *ForeignKeyManager) GetConstraintsByTable(tableName string) []ForeignKeyConstraint {
	var result []ForeignKeyConstraint
	for _, constraint := range fkm.constraints {
		if strings.EqualFold(constraint.Table, tableName) {
			result = append(result, constraint)
		}
	}
	return result
}

// GetReferencingConstraints returns the constraints pointing at a table.
func (fkm *ForeignKeyManager) GetReferencingConstraints(tableName string) []ForeignKeyConstraint {
	var result []ForeignKeyConstraint
	for _, constraint := range fkm.constraints {
		if strings.EqualFold(constraint.ReferenceTable, tableName) {
			result = append(result, constraint)
		}
	}
	return result
}

// ListAllConstraints returns all configured constraints.
func (fkm *ForeignKeyManager) ListAllConstraints() []ForeignKeyConstraint {
	return fkm.constraints
}

// ValidateConstraints checks the configured constraints for common issues.
func (fkm *ForeignKeyManager) ValidateConstraints() []error {
	var errs []error

	for _, constraint := range fkm.constraints {
		if constraint.Table == "" {
			errs = append(errs, fmt.Errorf("table name cannot be empty"))
		}
		if constraint.Column == "" {
			errs = append(errs, fmt.Errorf("column name cannot be empty: %s", constraint.Table))
		}
		if constraint.ReferenceTable == "" {
			errs = append(errs, fmt.Errorf("reference table name cannot be empty: %s.%s", constraint.Table, constraint.Column))
		}
		if constraint.ReferenceColumn == "" {
			errs = append(errs, fmt.Errorf("reference column name cannot be empty: %s.%s -> %s", constraint.Table, constraint.Column, constraint.ReferenceTable))
		}
		if !isValidAction(constraint.DeleteAction()) {
			errs = append(errs, fmt.Errorf("invalid delete policy: %s, constraint: %s", constraint.OnDelete, constraint.GenerateConstraintName()))
		}
	}

	return errs
}

func isValidAction(action string) bool {
	for _, valid := range validActions {
		if action == valid {
			return true
		}
	}
	return false
}

// DeleteDependents applies the ON DELETE action of every constraint that
// references table for the rows whose key is in keys. Cascading children
// are removed depth first. A RESTRICT or NO ACTION reference that still has
// rows aborts with a ConstraintViolation wrapping ErrReferenced. Run it in
// the same transaction as the parent delete.
func (fkm *ForeignKeyManager) DeleteDependents(ctx context.Context, db bun.IDB, table string, keys []interface{}) error {
	if len(keys) == 0 {
		return nil
	}
	for _, fk := range fkm.GetReferencingConstraints(table) {
		switch fk.DeleteAction() {
		case ActionCascade:
			var childKeys []int64
			err := db.NewSelect().
				TableExpr("?", bun.Ident(fk.Table)).
				Column(KeyColumn).
				Where("? IN (?)", bun.Ident(fk.Column), bun.In(keys)).
				Scan(ctx, &childKeys)
			if err != nil {
				return fmt.Errorf("failed to load %s dependents: %w", fk.Table, err)
			}
			if len(childKeys) == 0 {
				continue
			}
			if err := fkm.DeleteDependents(ctx, db, fk.Table, int64Keys(childKeys)); err != nil {
				return err
			}
			if _, err := db.ExecContext(ctx, "DELETE FROM ? WHERE ? IN (?)",
				bun.Ident(fk.Table), bun.Ident(fk.Column), bun.In(keys)); err != nil {
				return fmt.Errorf("failed to cascade delete %s: %w", fk.Table, AsConstraintViolation(err))
			}
			if fkm.logger != nil {
				fkm.logger.Debug("Cascade delete", "table", fk.Table, "rows", len(childKeys))
			}
		case ActionSetNull:
			if _, err := db.ExecContext(ctx, "UPDATE ? SET ? = NULL WHERE ? IN (?)",
				bun.Ident(fk.Table), bun.Ident(fk.Column), bun.Ident(fk.Column), bun.In(keys)); err != nil {
				return fmt.Errorf("failed to detach %s: %w", fk.Table, AsConstraintViolation(err))
			}
		default:
			n, err := db.NewSelect().
				TableExpr("?", bun.Ident(fk.Table)).
				Where("? IN (?)", bun.Ident(fk.Column), bun.In(keys)).
				Count(ctx)
			if err != nil {
				return fmt.Errorf("failed to count %s references: %w", fk.Table, err)
			}
			if n > 0 {
				return &ConstraintViolation{
					Kind: RestrictViolationErr,
					Err:  fmt.Errorf("%w by %d %s row(s) via %s", ErrReferenced, n, fk.Table, fk.GenerateConstraintName()),
				}
			}
		}
	}
	return nil
}

func int64Keys(ids []int64) []interface{} {
	keys := make([]interface{}, len(ids))
	for i, id := range ids {
		keys[i] = id
	}
	return keys
}

// ForeignKeyConfig is the YAML structure that lists foreign key constraints.
type ForeignKeyConfig struct {
	ForeignKeys []ForeignKeyConstraintConfig `yaml:"foreign_keys"`
}

// ForeignKeyConstraintConfig describes a single foreign key in configuration.
type ForeignKeyConstraintConfig struct {
	Table           string `yaml:"table"`
	Column          string `yaml:"column"`
	ReferenceTable  string `yaml:"reference_table"`
	ReferenceColumn string `yaml:"reference_column"`
	OnDelete        string `yaml:"on_delete"`
	OnUpdate        string `yaml:"on_update,omitempty"`
	ConstraintName  string `yaml:"constraint_name,omitempty"`
	Description     string `yaml:"description,omitempty"`
}

func (fkc *ForeignKeyConstraintConfig) ToForeignKeyConstraint() ForeignKeyConstraint {
	return ForeignKeyConstraint{
		Table:           fkc.Table,
		Column:          fkc.Column,
		ReferenceTable:  fkc.ReferenceTable,
		ReferenceColumn: fkc.ReferenceColumn,
		OnDelete:        fkc.OnDelete,
		OnUpdate:        fkc.OnUpdate,
		ConstraintName:  fkc.ConstraintName,
	}
}

// ConfigurableForeignKeyManager loads foreign key constraints from a YAML
// file and falls back to the code-defined ones when the file is missing or
// unreadable.
type ConfigurableForeignKeyManager struct {
	*ForeignKeyManager
	configPath string
}

func NewConfigurableForeignKeyManager(logger Logger, configPath string) *ConfigurableForeignKeyManager {
	manager := &ConfigurableForeignKeyManager{configPath: configPath}
	constraints, err := manager.loadFromConfig()
	if err != nil {
		if logger != nil {
			logger.Debug("Failed to load foreign key constraints from config, using code-defined defaults", "error", err.Error(), "config_path", configPath)
		}
		constraints = getForeignKeyConstraints()
	}
	manager.ForeignKeyManager = NewForeignKeyManagerWith(logger, constraints)
	return manager
}

func (cfm *ConfigurableForeignKeyManager) loadFromConfig() ([]ForeignKeyConstraint, error) {
	if cfm.configPath == "" {
		return nil, fmt.Errorf("no config file configured")
	}
	data, err := os.ReadFile(cfm.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config ForeignKeyConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	constraints := make([]ForeignKeyConstraint, 0, len(config.ForeignKeys))
	for _, fkConfig := range config.ForeignKeys {
		constraints = append(constraints, fkConfig.ToForeignKeyConstraint())
	}
	return constraints, nil
}

// ReloadConfig refreshes constraints from the YAML file.
func (cfm *ConfigurableForeignKeyManager) ReloadConfig() error {
	constraints, err := cfm.loadFromConfig()
	if err != nil {
		return err
	}
	cfm.constraints = constraints
	return nil
}

// ExportToConfig writes the current constraints as YAML to outputPath,
// creating parent directories as needed.
func (cfm *ConfigurableForeignKeyManager) ExportToConfig(outputPath string) error {
	configConstraints := make([]ForeignKeyConstraintConfig, 0, len(cfm.constraints))
	for _, constraint := range cfm.constraints {
		configConstraints = append(configConstraints, ForeignKeyConstraintConfig{
			Table:           constraint.Table,
			Column:          constraint.Column,
			ReferenceTable:  constraint.ReferenceTable,
			ReferenceColumn: constraint.ReferenceColumn,
			OnDelete:        constraint.OnDelete,
			OnUpdate:        constraint.OnUpdate,
			ConstraintName:  constraint.ConstraintName,
			Description:     fmt.Sprintf("%s.%s -> %s.%s", constraint.Table, constraint.Column, constraint.ReferenceTable, constraint.ReferenceColumn),
		})
	}

	data, err := yaml.Marshal(&ForeignKeyConfig{ForeignKeys: configConstraints})
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (cfm *ConfigurableForeignKeyManager) GetConfigPath() string {
	return cfm.configPath
}

// LoadForeignKeyPolicy builds the foreign key policy from path, or from the
// code-defined constraints when path is empty. A named file that cannot be
// read or holds invalid constraints is an error.
func LoadForeignKeyPolicy(logger Logger, path string) (*ConfigurableForeignKeyManager, error) {
	cfm := NewConfigurableForeignKeyManager(logger, path)
	if path != "" {
		if err := cfm.ReloadConfig(); err != nil {
			return nil, fmt.Errorf("failed to load foreign key policy %s: %w", path, err)
		}
	}
	if errs := cfm.ValidateConstraints(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid foreign key policy: %w", errors.Join(errs...))
	}
	return cfm, nil
}
