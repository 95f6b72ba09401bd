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

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tomoncle/nutrilog/database"
	nschema "github.com/tomoncle/nutrilog/schema"
	"github.com/tomoncle/nutrilog/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/schema"
)

type baseRepositoryImpl[T any] struct {
	db     bun.IDB
	fkm    *database.ForeignKeyManager
	logger database.Logger
}

// NewRepository returns a generic repository over db, which may be a
// *bun.DB or a transaction. Deletes follow database.ActiveForeignKeys.
func NewRepository[T any](db bun.IDB) Repository[T] {
	return &baseRepositoryImpl[T]{db: db, logger: database.GetLogger()}
}

// NewRepositoryWithForeignKeys is NewRepository with an explicit foreign key
// policy for deletes.
func NewRepositoryWithForeignKeys[T any](db bun.IDB, fkm *database.ForeignKeyManager) Repository[T] {
	return &baseRepositoryImpl[T]{db: db, fkm: fkm, logger: database.GetLogger()}
}

func (r *baseRepositoryImpl[T]) Dialect() schema.Dialect { return r.db.Dialect() }

func (r *baseRepositoryImpl[T]) NewSelect() *bun.SelectQuery { return r.db.NewSelect() }

func (r *baseRepositoryImpl[T]) NewInsert() *bun.InsertQuery { return r.db.NewInsert() }

func (r *baseRepositoryImpl[T]) NewUpdate() *bun.UpdateQuery { return r.db.NewUpdate() }

func (r *baseRepositoryImpl[T]) NewDelete() *bun.DeleteQuery { return r.db.NewDelete() }

func (r *baseRepositoryImpl[T]) foreignKeys() *database.ForeignKeyManager {
	if r.fkm != nil {
		return r.fkm
	}
	return database.ActiveForeignKeys()
}

func (r *baseRepositoryImpl[T]) table() *schema.Table {
	return tableOf[T](r.db)
}

func (r *baseRepositoryImpl[T]) tableName() string {
	return database.TableName((*T)(nil))
}

func (r *baseRepositoryImpl[T]) ownerColumn() (string, error) {
	if o, ok := any(new(T)).(Owned); ok && o.OwnerColumn() != "" {
		return o.OwnerColumn(), nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoOwner, r.tableName())
}

func (r *baseRepositoryImpl[T]) withRelations(q *bun.SelectQuery) *bun.SelectQuery {
	if rel, ok := any(new(T)).(Related); ok {
		for _, name := range rel.Relations() {
			q = q.Relation(name)
		}
	}
	return q
}

// inTx runs fn in a new transaction on r.db, rolling back unless fn and the
// commit succeed.
func (r *baseRepositoryImpl[T]) inTx(ctx context.Context, fn func(tx bun.IDB) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	var committed bool
	defer func(tx bun.Tx) {
		if !committed {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				r.logger.Error("Failed to rollback transaction", "table", r.tableName(), "error", rollbackErr)
			}
		}
	}(tx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", database.AsConstraintViolation(err))
	}
	committed = true
	return nil
}

// refresh re-reads entity by primary key with its relations.
func (r *baseRepositoryImpl[T]) refresh(ctx context.Context, db bun.IDB, entity *T) error {
	table := r.table()
	resetRelations(table, entity)
	err := r.withRelations(db.NewSelect().Model(entity).WherePK()).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, r.tableName())
	}
	if err != nil {
		return fmt.Errorf("failed to reload %s: %w", r.tableName(), err)
	}
	emptyCollections(table, entity)
	return nil
}

func (r *baseRepositoryImpl[T]) Create(ctx context.Context, in any) (*T, error) {
	var entity *T
	err := r.inTx(ctx, func(tx bun.IDB) (err error) {
		entity, err = r.create(ctx, tx, in)
		return err
	})
	return entity, err
}

func (r *baseRepositoryImpl[T]) CreateWithTx(ctx context.Context, tx bun.IDB, in any) (*T, error) {
	return r.create(ctx, tx, in)
}

func (r *baseRepositoryImpl[T]) create(ctx context.Context, db bun.IDB, in any) (*T, error) {
	fields, err := nschema.Dump(in, nschema.DumpOptions{})
	if err != nil {
		return nil, err
	}
	return r.insert(ctx, db, fields)
}

func (r *baseRepositoryImpl[T]) CreateWithOwner(ctx context.Context, in any, ownerID int64) (*T, error) {
	var entity *T
	err := r.inTx(ctx, func(tx bun.IDB) (err error) {
		entity, err = r.createWithOwner(ctx, tx, in, ownerID)
		return err
	})
	return entity, err
}

func (r *baseRepositoryImpl[T]) CreateWithOwnerWithTx(ctx context.Context, tx bun.IDB, in any, ownerID int64) (*T, error) {
	return r.createWithOwner(ctx, tx, in, ownerID)
}

func (r *baseRepositoryImpl[T]) createWithOwner(ctx context.Context, db bun.IDB, in any, ownerID int64) (*T, error) {
	col, err := r.ownerColumn()
	if err != nil {
		return nil, err
	}
	fields, err := nschema.Dump(in, nschema.DumpOptions{ExcludeDefaults: true})
	if err != nil {
		return nil, err
	}
	// An owner provided by the input itself is kept.
	if _, ok := fields[col]; !ok {
		fields[col] = ownerID
	}
	return r.insert(ctx, db, fields)
}

func (r *baseRepositoryImpl[T]) insert(ctx context.Context, db bun.IDB, fields map[string]interface{}) (*T, error) {
	table := r.table()
	entity := new(T)
	if err := assignFields(table, entity, fields); err != nil {
		return nil, err
	}
	q := db.NewInsert().Model(entity)
	// Unset columns take the storage default.
	if columns := defaultedColumns(table, fields); len(columns) > 0 {
		q = q.ExcludeColumn(columns...)
	}
	if _, err := q.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to insert %s: %w", r.tableName(), database.AsConstraintViolation(err))
	}
	if err := r.refresh(ctx, db, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T]) Update(ctx context.Context, entity *T, in any) (*T, error) {
	var updated *T
	err := r.inTx(ctx, func(tx bun.IDB) (err error) {
		updated, err = r.update(ctx, tx, entity, in)
		return err
	})
	return updated, err
}

func (r *baseRepositoryImpl[T]) UpdateWithTx(ctx context.Context, tx bun.IDB, entity *T, in any) (*T, error) {
	return r.update(ctx, tx, entity, in)
}

func (r *baseRepositoryImpl[T]) update(ctx context.Context, db bun.IDB, entity *T, in any) (*T, error) {
	if entity == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, r.tableName())
	}
	fields, err := nschema.Dump(in, nschema.DumpOptions{})
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := assignFields(r.table(), entity, fields); err != nil {
			return nil, err
		}
		columns := make([]string, 0, len(fields))
		for col := range fields {
			columns = append(columns, col)
		}
		sort.Strings(columns)
		if _, err := db.NewUpdate().Model(entity).Column(columns...).WherePK().Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to update %s: %w", r.tableName(), database.AsConstraintViolation(err))
		}
	}
	// A missing row surfaces as ErrNotFound from the re-read.
	if err := r.refresh(ctx, db, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T]) Delete(ctx context.Context, entity *T) (*T, error) {
	err := r.inTx(ctx, func(tx bun.IDB) error {
		_, err := r.delete(ctx, tx, entity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T]) DeleteWithTx(ctx context.Context, tx bun.IDB, entity *T) (*T, error) {
	return r.delete(ctx, tx, entity)
}

func (r *baseRepositoryImpl[T]) delete(ctx context.Context, db bun.IDB, entity *T) (*T, error) {
	if entity == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, r.tableName())
	}
	key, ok := columnValue(r.table(), entity, database.KeyColumn)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, r.tableName(), database.KeyColumn)
	}
	if err := r.foreignKeys().DeleteDependents(ctx, db, r.tableName(), []interface{}{key}); err != nil {
		return nil, err
	}
	res, err := db.NewDelete().Model(entity).WherePK().Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to delete %s: %w", r.tableName(), database.AsConstraintViolation(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("%w: %s %v", ErrNotFound, r.tableName(), key)
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T]) GetOne(ctx context.Context, filters ...types.Filter) (*T, error) {
	entity := new(T)
	q := types.ApplyAll(r.db.NewSelect().Model(entity), filters...)
	err := r.withRelations(q).
		OrderExpr("?TableAlias.? ASC", bun.Ident(database.KeyColumn)).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", r.tableName(), err)
	}
	emptyCollections(r.table(), entity)
	return entity, nil
}

func (r *baseRepositoryImpl[T]) GetMany(ctx context.Context, limit int, filters ...types.Filter) ([]*T, error) {
	entities := make([]*T, 0)
	q := types.ApplyAll(r.db.NewSelect().Model(&entities), filters...)
	q = r.withRelations(q).OrderExpr("?TableAlias.? ASC", bun.Ident(database.KeyColumn))
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query %s: %w", r.tableName(), err)
	}
	table := r.table()
	for _, entity := range entities {
		emptyCollections(table, entity)
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T]) GetManyForOwner(ctx context.Context, limit int, ownerID int64, filters ...types.Filter) ([]*T, error) {
	col, err := r.ownerColumn()
	if err != nil {
		return nil, err
	}
	return r.GetMany(ctx, limit, append(filters, types.FilterBy{col: ownerID})...)
}

func (r *baseRepositoryImpl[T]) Upsert(ctx context.Context, fields []string, conflictKeys []string, entity ...*T) error {
	return r.inTx(ctx, func(tx bun.IDB) error {
		return r.multipleUpsert(ctx, tx, fields, conflictKeys, entity...)
	})
}

func (r *baseRepositoryImpl[T]) UpsertWithTx(ctx context.Context, tx bun.IDB, fields []string, conflictKeys []string, entity ...*T) error {
	return r.multipleUpsert(ctx, tx, fields, conflictKeys, entity...)
}

func (r *baseRepositoryImpl[T]) multipleUpsert(ctx context.Context, db bun.IDB, fields []string, conflictKeys []string, entity ...*T) error {
	if len(fields) == 0 {
		return fmt.Errorf("fields cannot be empty")
	}
	if len(entity) == 0 {
		return nil
	}
	if len(conflictKeys) == 0 {
		conflictKeys = []string{database.KeyColumn}
	}
	entities := make([]*T, len(entity))
	copy(entities, entity)

	var err error
	features := db.Dialect().Features()
	switch {
	case features.Has(feature.InsertOnConflict):
		err = upsertOnConflict(ctx, db.NewInsert(), fields, conflictKeys, entities)
	case features.Has(feature.InsertOnDuplicateKey):
		err = upsertOnDuplicateKey(ctx, db.NewInsert(), fields, entities)
	default:
		err = r.upsertFallback(ctx, db, fields, conflictKeys, entities)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", r.tableName(), database.AsConstraintViolation(err))
	}
	return nil
}

func upsertOnDuplicateKey[T any](ctx context.Context, q *bun.InsertQuery, fields []string, entities []*T) error {
	sets := make([]string, 0, len(fields))
	for _, field := range fields {
		sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", field, field))
	}
	_, err := q.Model(&entities).
		On("DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")).
		Exec(ctx)
	return err
}

func upsertOnConflict[T any](ctx context.Context, q *bun.InsertQuery, fields []string, conflictKeys []string, entities []*T) error {
	sets := make([]string, 0, len(fields))
	for _, field := range fields {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", field, field))
	}
	_, err := q.Model(&entities).
		On("CONFLICT (" + strings.Join(conflictKeys, ", ") + ") DO UPDATE").
		Set(strings.Join(sets, ", ")).
		Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) upsertFallback(ctx context.Context, db bun.IDB, fields []string, conflictKeys []string, entities []*T) error {
	table := r.table()
	for _, entity := range entities {
		q := db.NewSelect().Model((*T)(nil))
		for _, key := range conflictKeys {
			value, ok := columnValue(table, entity, key)
			if !ok {
				return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, r.tableName(), key)
			}
			q = q.Where("? = ?", bun.Ident(key), value)
		}
		exists, err := q.Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			if _, err := db.NewInsert().Model(entity).Exec(ctx); err != nil {
				return err
			}
			continue
		}
		uq := db.NewUpdate().Model(entity).Column(fields...)
		for _, key := range conflictKeys {
			value, _ := columnValue(table, entity, key)
			uq = uq.Where("? = ?", bun.Ident(key), value)
		}
		if _, err := uq.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
