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
	"errors"

	"github.com/tomoncle/nutrilog/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrNoOwner is returned by owner scoped operations on an entity type
	// without an owning foreign key.
	ErrNoOwner = errors.New("entity has no owner column")
	// ErrUnknownColumn is returned when an input names a column the entity
	// does not have.
	ErrUnknownColumn = errors.New("unknown column")
)

// Owned is implemented by entities that belong to a parent record through
// a foreign key column.
type Owned interface {
	OwnerColumn() string
}

// Related is implemented by entities whose relations are loaded on every
// read. Names use bun relation syntax, e.g. "DailyLog.User".
type Related interface {
	Relations() []string
}

// CrudRepository defines the CRUD operations of an entity type. Inputs are
// schema structs with pointer fields (nil means not provided) or
// map[string]interface{} keyed by column. Every write runs in its own
// transaction and returns the record as re-read from storage.
type CrudRepository[T any] interface {
	// Create persists a record built from every provided input field.
	Create(ctx context.Context, in any) (*T, error)

	// CreateWithOwner is Create without fields left at their default
	// value, with the owner column set to ownerID unless the input
	// provides it.
	CreateWithOwner(ctx context.Context, in any, ownerID int64) (*T, error)

	// Update applies the provided input fields to entity. An input with no
	// provided fields writes nothing.
	Update(ctx context.Context, entity *T, in any) (*T, error)

	// Delete removes entity after applying the delete action of every
	// foreign key that references it.
	Delete(ctx context.Context, entity *T) (*T, error)

	// GetOne returns the first record matching all filters, or nil when
	// none does.
	GetOne(ctx context.Context, filters ...types.Filter) (*T, error)

	// GetMany returns up to limit matching records; limit <= 0 means all.
	GetMany(ctx context.Context, limit int, filters ...types.Filter) ([]*T, error)

	// GetManyForOwner is GetMany restricted to records of ownerID.
	GetManyForOwner(ctx context.Context, limit int, ownerID int64, filters ...types.Filter) ([]*T, error)

	// Upsert inserts entities, updating fields of rows that collide on
	// conflictKeys.
	Upsert(ctx context.Context, fields []string, conflictKeys []string, entity ...*T) error
}

// TransactionRepository runs the writes inside a caller owned transaction.
type TransactionRepository[T any] interface {
	CreateWithTx(ctx context.Context, tx bun.IDB, in any) (*T, error)
	CreateWithOwnerWithTx(ctx context.Context, tx bun.IDB, in any, ownerID int64) (*T, error)
	UpdateWithTx(ctx context.Context, tx bun.IDB, entity *T, in any) (*T, error)
	DeleteWithTx(ctx context.Context, tx bun.IDB, entity *T) (*T, error)
	UpsertWithTx(ctx context.Context, tx bun.IDB, fields []string, conflictKeys []string, entity ...*T) error
}

// Repository combines CRUD and transactional operations and exposes bun
// query builders for advanced use cases.
type Repository[T any] interface {
	CrudRepository[T]
	TransactionRepository[T]
	Dialect() schema.Dialect
	NewSelect() *bun.SelectQuery
	NewInsert() *bun.InsertQuery
	NewUpdate() *bun.UpdateQuery
	NewDelete() *bun.DeleteQuery
}
