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
	"fmt"
	"reflect"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// tableOf returns bun's table metadata for T as registered with db's dialect.
func tableOf[T any](db bun.IDB) *schema.Table {
	return db.Dialect().Tables().Get(reflect.TypeOf((*T)(nil)).Elem())
}

// assignFields writes column values into the struct pointed to by entity.
func assignFields(table *schema.Table, entity interface{}, fields map[string]interface{}) error {
	strct := reflect.ValueOf(entity).Elem()
	for col, value := range fields {
		field, ok := table.FieldMap[col]
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table.TypeName, col)
		}
		if err := setValue(field.Value(strct), value); err != nil {
			return fmt.Errorf("failed to set %s: %w", col, err)
		}
	}
	return nil
}

func setValue(dst reflect.Value, value interface{}) error {
	if value == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	src := reflect.ValueOf(value)
	for src.Kind() == reflect.Ptr {
		if src.IsNil() {
			dst.Set(reflect.Zero(dst.Type()))
			return nil
		}
		src = src.Elem()
	}
	if dst.Kind() == reflect.Ptr {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		dst = dst.Elem()
	}
	switch {
	case src.Type().AssignableTo(dst.Type()):
		dst.Set(src)
	case src.Type().ConvertibleTo(dst.Type()) && src.Kind() != reflect.String && dst.Kind() != reflect.String:
		dst.Set(src.Convert(dst.Type()))
	default:
		return fmt.Errorf("cannot assign %s to %s", src.Type(), dst.Type())
	}
	return nil
}

// columnValue returns the value of column col of entity.
func columnValue(table *schema.Table, entity interface{}, col string) (interface{}, bool) {
	field, ok := table.FieldMap[col]
	if !ok {
		return nil, false
	}
	return field.Value(reflect.ValueOf(entity).Elem()).Interface(), true
}

// defaultedColumns lists the non-key columns with a SQL default that fields
// leaves unset.
func defaultedColumns(table *schema.Table, fields map[string]interface{}) []string {
	var columns []string
	for _, field := range table.Fields {
		if field.IsPK || field.SQLDefault == "" {
			continue
		}
		if _, ok := fields[field.Name]; !ok {
			columns = append(columns, field.Name)
		}
	}
	return columns
}

// resetRelations clears loaded relation fields so a re-read starts clean.
func resetRelations(table *schema.Table, entity interface{}) {
	strct := reflect.ValueOf(entity).Elem()
	for _, rel := range table.Relations {
		f := rel.Field.Value(strct)
		f.Set(reflect.Zero(f.Type()))
	}
}

// emptyCollections replaces nil to-many relation slices with empty ones so
// they encode as [] rather than null.
func emptyCollections(table *schema.Table, entity interface{}) {
	strct := reflect.ValueOf(entity).Elem()
	for _, rel := range table.Relations {
		if rel.Type != schema.HasManyRelation && rel.Type != schema.ManyToManyRelation {
			continue
		}
		f := rel.Field.Value(strct)
		if f.Kind() == reflect.Slice && f.IsNil() {
			f.Set(reflect.MakeSlice(f.Type(), 0, 0))
		}
	}
}
