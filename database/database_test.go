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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type testShelf struct {
	bun.BaseModel `bun:"table:test_shelves,alias:ts"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull,unique"`
}

type testBook struct {
	bun.BaseModel `bun:"table:test_books,alias:tb"`

	ID      int64  `bun:"id,pk,autoincrement"`
	ShelfID int64  `bun:"shelf_id,notnull"`
	Title   string `bun:"title,notnull"`
}

type testNote struct {
	bun.BaseModel `bun:"table:test_notes,alias:tn"`

	ID     int64  `bun:"id,pk,autoincrement"`
	BookID int64  `bun:"book_id,notnull"`
	Text   string `bun:"text"`
}

type testLoan struct {
	bun.BaseModel `bun:"table:test_loans,alias:tl"`

	ID     int64 `bun:"id,pk,autoincrement"`
	BookID int64 `bun:"book_id,notnull"`
}

func init() {
	RegisteredModel(NewModelAdapter((*testNote)(nil), 30))
	RegisteredModel(NewModelAdapter((*testShelf)(nil), 10))
	RegisteredModel(NewModelAdapter((*testBook)(nil), 20))
	RegisteredModel(NewModelAdapter((*testLoan)(nil), 30))
}

func testConstraints() []ForeignKeyConstraint {
	return []ForeignKeyConstraint{
		{Table: "test_books", Column: "shelf_id", ReferenceTable: "test_shelves", ReferenceColumn: "id", OnDelete: "cascade"},
		{Table: "test_notes", Column: "book_id", ReferenceTable: "test_books", ReferenceColumn: "id", OnDelete: ActionCascade},
		{Table: "test_loans", Column: "book_id", ReferenceTable: "test_books", ReferenceColumn: "id", OnDelete: ActionRestrict},
	}
}

func openTestDB(t *testing.T) *bun.DB {
	t.Helper()
	manager := NewDatabaseManager(&ConnectionConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, manager.Connect(context.Background()))
	t.Cleanup(func() { _ = manager.Disconnect() })
	return manager.GetDB()
}

func migratedTestDB(t *testing.T) (*bun.DB, *ForeignKeyManager) {
	t.Helper()
	db := openTestDB(t)
	fkm := NewForeignKeyManagerWith(nil, testConstraints())
	require.NoError(t, NewMigrationManager(db, nil, fkm).RunMigrations(context.Background()))
	return db, fkm
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "test_shelves", TableName((*testShelf)(nil)))
	assert.Equal(t, "test_books", TableName(&testBook{}))
	assert.Equal(t, "migrations", TableName(Migration{}))
	assert.Equal(t, "", TableName(42))
}

func TestGetRegisteredModels_SortedByPriority(t *testing.T) {
	models := GetRegisteredModels()
	require.Len(t, models, 4)
	assert.Equal(t, "test_shelves", TableName(models[0].Instance()))
	assert.Equal(t, "test_books", TableName(models[1].Instance()))
	for i := 1; i < len(models); i++ {
		assert.LessOrEqual(t, models[i-1].Priority(), models[i].Priority())
	}
}

func TestManager_ConnectSQLiteMemory(t *testing.T) {
	ctx := context.Background()
	manager := NewDatabaseManager(&ConnectionConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, manager.Connect(ctx))
	defer manager.Disconnect()

	require.NoError(t, manager.Ping(ctx))
	status := manager.HealthCheck(ctx)
	assert.True(t, status.Healthy)
	assert.True(t, status.Connected)
	assert.Equal(t, 1, status.MaxOpenConns)
	assert.Equal(t, 1, manager.GetStats().MaxOpenConnections)

	var fk int
	require.NoError(t, manager.GetDB().NewRaw("PRAGMA foreign_keys").Scan(ctx, &fk))
	assert.Equal(t, 1, fk)
}

func TestManager_UnsupportedType(t *testing.T) {
	manager := NewDatabaseManager(&ConnectionConfig{Type: "oracle"})
	err := manager.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
	assert.False(t, manager.HealthCheck(context.Background()).Healthy)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, ":memory:", sqliteDSN(""))
	assert.Equal(t, ":memory:", sqliteDSN(":memory:"))
	assert.Equal(t, "nutrilog.db", sqliteDSN("nutrilog"))
	assert.Equal(t, "data/app.db", sqliteDSN("data/app.db"))
	assert.Equal(t, "file::memory:?cache=shared", sqliteDSN("file::memory:?cache=shared"))
}

func TestRunMigrations_Idempotent(t *testing.T) {
	ctx := context.Background()
	db, fkm := migratedTestDB(t)
	mm := NewMigrationManager(db, nil, fkm)

	require.NoError(t, mm.RunMigrations(ctx))
	require.NoError(t, mm.RunMigrations(ctx))

	applied, err := mm.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, "001", applied[0].Version)

	// tables exist and accept rows
	_, err = db.NewInsert().Model(&testShelf{Name: "kitchen"}).Exec(ctx)
	require.NoError(t, err)
}

func TestRunMigrations_RegisteredMigrationRunsOnce(t *testing.T) {
	ctx := context.Background()
	calls := 0
	require.NoError(t, RegisterMigration(MigrationItem{
		Version: "900",
		Name:    "count_calls",
		Up: func(ctx context.Context, db bun.IDB) error {
			calls++
			_, err := db.NewInsert().Model(&testShelf{Name: "seeded"}).Exec(ctx)
			return err
		},
	}))
	defer UnregisterMigration("900")

	db, fkm := migratedTestDB(t)
	require.NoError(t, NewMigrationManager(db, nil, fkm).RunMigrations(ctx))
	assert.Equal(t, 1, calls)

	n, err := db.NewSelect().Model((*testShelf)(nil)).Where("name = ?", "seeded").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRegisterMigration_Rejects(t *testing.T) {
	assert.Error(t, RegisterMigration(MigrationItem{Version: "001", Up: func(context.Context, bun.IDB) error { return nil }}))
	assert.Error(t, RegisterMigration(MigrationItem{Version: "002"}))
}

func TestRunMigrations_InvalidForeignKeyPolicy(t *testing.T) {
	db := openTestDB(t)
	fkm := NewForeignKeyManagerWith(nil, []ForeignKeyConstraint{
		{Table: "test_books", Column: "shelf_id", ReferenceTable: "test_shelves", ReferenceColumn: "id", OnDelete: "EXPLODE"},
	})
	err := NewMigrationManager(db, nil, fkm).RunMigrations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "foreign key constraint validation failed")
}

func TestDeclaredForeignKeyRejectsDanglingInsert(t *testing.T) {
	db, _ := migratedTestDB(t)
	_, err := db.NewInsert().Model(&testBook{ShelfID: 999, Title: "orphan"}).Exec(context.Background())
	require.Error(t, err)
	assert.True(t, IsConstraintViolation(AsConstraintViolation(err)))
}
