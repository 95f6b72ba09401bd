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

package nutrilog

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomoncle/nutrilog/database"
	"github.com/tomoncle/nutrilog/models"
	"github.com/tomoncle/nutrilog/repository"
	"github.com/tomoncle/nutrilog/schema"
	"github.com/tomoncle/nutrilog/types"
	"github.com/uptrace/bun"
)

type Service[T any] interface {
	// Get returns the entity with the given id, or repository.ErrNotFound.
	Get(ctx context.Context, id int64) (*T, error)

	// Find returns the first entity matching filters, or nil.
	Find(ctx context.Context, filters ...types.Filter) (*T, error)

	// List returns up to limit entities matching filters.
	List(ctx context.Context, limit int, filters ...types.Filter) ([]*T, error)

	// ListForOwner returns up to limit entities owned by ownerID.
	ListForOwner(ctx context.Context, limit int, ownerID int64, filters ...types.Filter) ([]*T, error)

	// Create validates in and persists a new entity.
	Create(ctx context.Context, in any) (*T, error)

	// CreateForOwner validates in and persists a new entity owned by ownerID.
	CreateForOwner(ctx context.Context, in any, ownerID int64) (*T, error)

	// Update validates in and applies it to the entity with the given id.
	Update(ctx context.Context, id int64, in any) (*T, error)

	// Delete removes the entity with the given id and returns it.
	Delete(ctx context.Context, id int64) (*T, error)

	// SaveOrUpdate upserts entities based on fields and conflict keys.
	SaveOrUpdate(ctx context.Context, fields []string, conflictKeys []string, model ...*T) error

	// SaveOrUpdateWithTx upserts entities within a transaction.
	SaveOrUpdateWithTx(ctx context.Context, tx bun.IDB, fields []string, conflictKeys []string, model ...*T) error

	// Repository exposes the underlying repository.
	Repository() repository.Repository[T]
}

type baseServiceImpl[T any] struct {
	db   bun.IDB
	repo repository.Repository[T]
	once sync.Once
}

// NewService returns a default Service implementation using the generic
// repository backed by the global database connection.
func NewService[T any]() Service[T] {
	return &baseServiceImpl[T]{}
}

// NewServiceWithDB returns a Service bound to db instead of the global
// connection.
func NewServiceWithDB[T any](db bun.IDB) Service[T] {
	return &baseServiceImpl[T]{db: db}
}

func (s *baseServiceImpl[T]) baseRepo() repository.Repository[T] {
	s.once.Do(func() {
		if s.db == nil {
			s.db = database.GetDB()
		}
		s.repo = repository.NewRepository[T](s.db)
	})
	return s.repo
}

func (s *baseServiceImpl[T]) Repository() repository.Repository[T] {
	return s.baseRepo()
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, id int64) (*T, error) {
	entity, err := s.baseRepo().GetOne(ctx, types.FilterBy{database.KeyColumn: id})
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, fmt.Errorf("%w: %s %d", repository.ErrNotFound, database.TableName((*T)(nil)), id)
	}
	return entity, nil
}

func (s *baseServiceImpl[T]) Find(ctx context.Context, filters ...types.Filter) (*T, error) {
	return s.baseRepo().GetOne(ctx, filters...)
}

func (s *baseServiceImpl[T]) List(ctx context.Context, limit int, filters ...types.Filter) ([]*T, error) {
	return s.baseRepo().GetMany(ctx, limit, filters...)
}

func (s *baseServiceImpl[T]) ListForOwner(ctx context.Context, limit int, ownerID int64, filters ...types.Filter) ([]*T, error) {
	return s.baseRepo().GetManyForOwner(ctx, limit, ownerID, filters...)
}

func (s *baseServiceImpl[T]) Create(ctx context.Context, in any) (*T, error) {
	if err := schema.Validate(in); err != nil {
		return nil, err
	}
	return s.baseRepo().Create(ctx, in)
}

func (s *baseServiceImpl[T]) CreateForOwner(ctx context.Context, in any, ownerID int64) (*T, error) {
	if err := schema.Validate(in); err != nil {
		return nil, err
	}
	return s.baseRepo().CreateWithOwner(ctx, in, ownerID)
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, id int64, in any) (*T, error) {
	if err := schema.Validate(in); err != nil {
		return nil, err
	}
	entity, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.baseRepo().Update(ctx, entity, in)
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, id int64) (*T, error) {
	entity, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.baseRepo().Delete(ctx, entity)
}

func (s *baseServiceImpl[T]) SaveOrUpdate(ctx context.Context, fields []string, conflictKeys []string, model ...*T) error {
	return s.baseRepo().Upsert(ctx, fields, conflictKeys, model...)
}

func (s *baseServiceImpl[T]) SaveOrUpdateWithTx(ctx context.Context, tx bun.IDB, fields []string, conflictKeys []string, model ...*T) error {
	return s.baseRepo().UpsertWithTx(ctx, tx, fields, conflictKeys, model...)
}

// DailyTotals sums the nutrients of the entries of a daily log, each food's
// values scaled by the entry quantity. A log without entries has zero
// totals.
func DailyTotals(ctx context.Context, db bun.IDB, logID int64) (*models.Totals, error) {
	totals := new(models.Totals)
	err := db.NewSelect().
		TableExpr("? AS fe", bun.Ident("food_entries")).
		Join("JOIN ? AS f ON f.id = fe.food_id", bun.Ident("foods")).
		ColumnExpr("COUNT(fe.id) AS entries").
		ColumnExpr("COALESCE(SUM(f.calories * fe.quantity), 0) AS calories").
		ColumnExpr("COALESCE(SUM(f.protein * fe.quantity), 0) AS protein").
		ColumnExpr("COALESCE(SUM(f.carbs * fe.quantity), 0) AS carbs").
		ColumnExpr("COALESCE(SUM(f.fat * fe.quantity), 0) AS fat").
		Where("fe.daily_log_id = ?", logID).
		Scan(ctx, totals)
	if err != nil {
		return nil, fmt.Errorf("failed to sum daily log %d: %w", logID, err)
	}
	return totals, nil
}
