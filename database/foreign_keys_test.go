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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func TestForeignKeyConstraint_Names(t *testing.T) {
	fk := ForeignKeyConstraint{Table: "food_entries", Column: "food_id", ReferenceTable: "foods", ReferenceColumn: "id"}
	assert.Equal(t, "fk_food_entries_food_id", fk.GenerateConstraintName())
	assert.Equal(t, ActionNoAction, fk.DeleteAction())

	fk.ConstraintName = "entries_food"
	fk.OnDelete = " set null "
	assert.Equal(t, "entries_food", fk.GenerateConstraintName())
	assert.Equal(t, ActionSetNull, fk.DeleteAction())
}

func TestValidateConstraints(t *testing.T) {
	fkm := NewForeignKeyManagerWith(nil, []ForeignKeyConstraint{
		{Table: "a", Column: "b_id", ReferenceTable: "b", ReferenceColumn: "id", OnDelete: "cascade"},
		{Table: "", Column: "", ReferenceTable: "", ReferenceColumn: "", OnDelete: "DROP"},
	})
	errs := fkm.ValidateConstraints()
	assert.Len(t, errs, 5)
}

func TestGetConstraintsByTable(t *testing.T) {
	fkm := NewForeignKeyManagerWith(nil, testConstraints())
	assert.Len(t, fkm.GetConstraintsByTable("TEST_BOOKS"), 1)
	assert.Len(t, fkm.GetReferencingConstraints("test_books"), 2)
	assert.Empty(t, fkm.GetReferencingConstraints("test_notes"))
	assert.Len(t, fkm.ListAllConstraints(), 3)
}

func seedLibrary(t *testing.T, db bun.IDB) (shelf *testShelf, book *testBook) {
	t.Helper()
	ctx := context.Background()
	shelf = &testShelf{Name: "hall"}
	_, err := db.NewInsert().Model(shelf).Exec(ctx)
	require.NoError(t, err)
	book = &testBook{ShelfID: shelf.ID, Title: "Dune"}
	_, err = db.NewInsert().Model(book).Exec(ctx)
	require.NoError(t, err)
	for _, text := range []string{"first", "second"} {
		_, err = db.NewInsert().Model(&testNote{BookID: book.ID, Text: text}).Exec(ctx)
		require.NoError(t, err)
	}
	return shelf, book
}

func TestDeleteDependents_CascadesDepthFirst(t *testing.T) {
	ctx := context.Background()
	db, fkm := migratedTestDB(t)
	shelf, _ := seedLibrary(t, db)

	require.NoError(t, fkm.DeleteDependents(ctx, db, "test_shelves", []interface{}{shelf.ID}))

	books, err := db.NewSelect().Model((*testBook)(nil)).Count(ctx)
	require.NoError(t, err)
	notes, err := db.NewSelect().Model((*testNote)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, books)
	assert.Zero(t, notes)

	// the parent row is left for the caller
	shelves, err := db.NewSelect().Model((*testShelf)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, shelves)
}

func TestDeleteDependents_RestrictAbortsTransaction(t *testing.T) {
	ctx := context.Background()
	db, fkm := migratedTestDB(t)
	shelf, book := seedLibrary(t, db)
	_, err := db.NewInsert().Model(&testLoan{BookID: book.ID}).Exec(ctx)
	require.NoError(t, err)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	err = fkm.DeleteDependents(ctx, tx, "test_shelves", []interface{}{shelf.ID})
	require.NoError(t, tx.Rollback())

	require.Error(t, err)
	var cv *ConstraintViolation
	require.True(t, errors.As(err, &cv))
	assert.Equal(t, RestrictViolationErr, cv.Kind)
	assert.ErrorIs(t, err, ErrReferenced)

	notes, err := db.NewSelect().Model((*testNote)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, notes)
}

func TestDeleteDependents_NoKeys(t *testing.T) {
	fkm := NewForeignKeyManagerWith(nil, testConstraints())
	assert.NoError(t, fkm.DeleteDependents(context.Background(), nil, "test_shelves", nil))
}

func TestConfigurableForeignKeyManager_LoadAndExport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fk.yml")
	content := `foreign_keys:
  - table: food_entries
    column: food_id
    reference_table: foods
    reference_column: id
    on_delete: SET NULL
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfm := NewConfigurableForeignKeyManager(nil, path)
	require.Len(t, cfm.ListAllConstraints(), 1)
	assert.Equal(t, ActionSetNull, cfm.ListAllConstraints()[0].DeleteAction())
	assert.Equal(t, path, cfm.GetConfigPath())

	out := filepath.Join(dir, "nested", "export.yml")
	require.NoError(t, cfm.ExportToConfig(out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "food_entries.food_id -> foods.id")

	require.NoError(t, os.WriteFile(path, []byte("foreign_keys: []\n"), 0644))
	require.NoError(t, cfm.ReloadConfig())
	assert.Empty(t, cfm.ListAllConstraints())
}

func TestConfigurableForeignKeyManager_FallsBackToRegistered(t *testing.T) {
	RegisterForeignKey(ForeignKeyConstraint{Table: "x", Column: "y_id", ReferenceTable: "y", ReferenceColumn: "id"})
	defer func() {
		registeredForeignKeysMu.Lock()
		registeredForeignKeys = registeredForeignKeys[:len(registeredForeignKeys)-1]
		registeredForeignKeysMu.Unlock()
	}()

	cfm := NewConfigurableForeignKeyManager(nil, filepath.Join(t.TempDir(), "missing.yml"))
	require.NotEmpty(t, cfm.ListAllConstraints())
	assert.Equal(t, "x", cfm.ListAllConstraints()[len(cfm.ListAllConstraints())-1].Table)
}

func TestActiveForeignKeys(t *testing.T) {
	custom := NewForeignKeyManagerWith(nil, testConstraints())
	SetForeignKeyManager(custom)
	defer SetForeignKeyManager(nil)
	assert.Same(t, custom, ActiveForeignKeys())
}

func writeForeignKeyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "foreign_keys.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const libraryForeignKeys = `foreign_keys:
  - table: test_books
    column: shelf_id
    reference_table: test_shelves
    reference_column: id
    on_delete: CASCADE
  - table: test_notes
    column: book_id
    reference_table: test_books
    reference_column: id
    on_delete: CASCADE
  - table: test_loans
    column: book_id
    reference_table: test_books
    reference_column: id
    on_delete: RESTRICT
`

func TestLoadForeignKeyPolicy(t *testing.T) {
	t.Run("built-in", func(t *testing.T) {
		cfm, err := LoadForeignKeyPolicy(nil, "")
		require.NoError(t, err)
		assert.Equal(t, "", cfm.GetConfigPath())
		assert.Equal(t, getForeignKeyConstraints(), cfm.ListAllConstraints())
	})
	t.Run("file", func(t *testing.T) {
		path := writeForeignKeyFile(t, libraryForeignKeys)
		cfm, err := LoadForeignKeyPolicy(nil, path)
		require.NoError(t, err)
		assert.Equal(t, path, cfm.GetConfigPath())
		assert.Len(t, cfm.ListAllConstraints(), 3)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadForeignKeyPolicy(nil, filepath.Join(t.TempDir(), "missing.yml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load foreign key policy")
	})
	t.Run("invalid action", func(t *testing.T) {
		path := writeForeignKeyFile(t, `foreign_keys:
  - table: test_books
    column: shelf_id
    reference_table: test_shelves
    reference_column: id
    on_delete: EXPLODE
`)
		_, err := LoadForeignKeyPolicy(nil, path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid delete policy")
	})
}

func TestInitDB_InstallsForeignKeyPolicy(t *testing.T) {
	ctx := context.Background()
	path := writeForeignKeyFile(t, libraryForeignKeys)
	t.Cleanup(func() {
		SetForeignKeyManager(nil)
		_ = CloseDB()
	})

	db, err := InitDB(ctx, &Config{
		ConnectionConfig:  ConnectionConfig{Type: DriverSQLite, DBName: sqliteMemory},
		DataMigrateConfig: DataMigrateConfig{EnableMigrateOnStartup: true, ForeignKeyFile: path},
	})
	require.NoError(t, err)
	assert.Same(t, db, GetDB())
	assert.Len(t, ActiveForeignKeys().ListAllConstraints(), 3)
	assert.True(t, GetHealthStatus(ctx).Healthy)

	shelf, book := seedLibrary(t, db)
	_, err = db.NewInsert().Model(&testLoan{BookID: book.ID}).Exec(ctx)
	require.NoError(t, err)
	err = ActiveForeignKeys().DeleteDependents(ctx, db, "test_shelves", []interface{}{shelf.ID})
	assert.True(t, IsConstraintViolation(err))
}

func TestInitDB_RejectsBadForeignKeyFile(t *testing.T) {
	t.Cleanup(func() { _ = CloseDB() })
	_, err := InitDB(context.Background(), &Config{
		ConnectionConfig:  ConnectionConfig{Type: DriverSQLite, DBName: sqliteMemory},
		DataMigrateConfig: DataMigrateConfig{ForeignKeyFile: filepath.Join(t.TempDir(), "missing.yml")},
	})
	require.Error(t, err)
	assert.Nil(t, GetDB())

	_, err = InitDB(context.Background(), nil)
	assert.Error(t, err)
}
