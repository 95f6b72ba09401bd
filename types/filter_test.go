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

package types

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type snack struct {
	bun.BaseModel `bun:"table:snacks,alias:s"`

	ID       int64   `bun:"id,pk,autoincrement"`
	Name     string  `bun:"name"`
	Calories float64 `bun:"calories"`
}

func newQuery(t *testing.T) *bun.SelectQuery {
	t.Helper()
	sqlDB, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return db.NewSelect().Model((*snack)(nil))
}

func TestFilterBy_SortedAndAliased(t *testing.T) {
	q := FilterBy{"name": "Banana", "calories": 89}.Apply(newQuery(t))
	sql := q.String()
	assert.Contains(t, sql, `WHERE ("s"."calories" = 89) AND ("s"."name" = 'Banana')`)
}

func TestQueryFilter_Apply(t *testing.T) {
	q := NewQueryFilter("?TableAlias.calories > ?", 100).Apply(newQuery(t))
	assert.Contains(t, q.String(), `WHERE ("s".calories > 100)`)

	var nilFilter *QueryFilter
	assert.NotContains(t, nilFilter.Apply(newQuery(t)).String(), "WHERE")
}

func TestApplyAll(t *testing.T) {
	var nilFilter *QueryFilter
	q := ApplyAll(newQuery(t), nil, nilFilter, NewQueryFilter("calories < ?", 50), FilterBy{"id": 3})
	sql := q.String()
	assert.Contains(t, sql, "(calories < 50)")
	assert.Contains(t, sql, `("s"."id" = 3)`)
}
