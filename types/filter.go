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
	"sort"

	"github.com/uptrace/bun"
)

// Filter narrows a select query. Filters passed together are combined with
// AND.
type Filter interface {
	Apply(q *bun.SelectQuery) *bun.SelectQuery
}

// QueryFilter is a positional predicate in bun placeholder syntax, e.g.
//
//	types.NewQueryFilter("?TableAlias.calories > ?", 100)
type QueryFilter struct {
	Schema string
	Args   []interface{}
}

func NewQueryFilter(schema string, args ...interface{}) *QueryFilter {
	return &QueryFilter{Schema: schema, Args: args}
}

func (f *QueryFilter) Apply(q *bun.SelectQuery) *bun.SelectQuery {
	if f == nil || f.Schema == "" {
		return q
	}
	return q.Where(f.Schema, f.Args...)
}

// FilterBy matches columns by exact value. Keys are column names of the
// queried table.
type FilterBy map[string]interface{}

func (f FilterBy) Apply(q *bun.SelectQuery) *bun.SelectQuery {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q = q.Where("?TableAlias.? = ?", bun.Ident(k), f[k])
	}
	return q
}

// ApplyAll applies filters in order, skipping nil entries.
func ApplyAll(q *bun.SelectQuery, filters ...Filter) *bun.SelectQuery {
	for _, f := range filters {
		if f == nil {
			continue
		}
		q = f.Apply(q)
	}
	return q
}
