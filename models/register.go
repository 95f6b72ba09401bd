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

// Package models holds the bun table models and registers them, with their
// foreign keys, for migrations.
package models

import "github.com/tomoncle/nutrilog/database"

const (
	priorityRoot = iota * 10
	priorityLog
	priorityEntry
)

func init() {
	database.RegisteredModel(database.NewModelAdapter((*User)(nil), priorityRoot))
	database.RegisteredModel(database.NewModelAdapter((*Food)(nil), priorityRoot))
	database.RegisteredModel(database.NewModelAdapter((*DailyLog)(nil), priorityLog))
	database.RegisteredModel(database.NewModelAdapter((*FoodEntry)(nil), priorityEntry))

	database.RegisterForeignKey(database.ForeignKeyConstraint{
		Table:           "daily_logs",
		Column:          "user_id",
		ReferenceTable:  "users",
		ReferenceColumn: database.KeyColumn,
		OnDelete:        database.ActionCascade,
	})
	database.RegisterForeignKey(database.ForeignKeyConstraint{
		Table:           "food_entries",
		Column:          "daily_log_id",
		ReferenceTable:  "daily_logs",
		ReferenceColumn: database.KeyColumn,
		OnDelete:        database.ActionCascade,
	})
	database.RegisterForeignKey(database.ForeignKeyConstraint{
		Table:           "food_entries",
		Column:          "food_id",
		ReferenceTable:  "foods",
		ReferenceColumn: database.KeyColumn,
		OnDelete:        database.ActionRestrict,
	})
}
