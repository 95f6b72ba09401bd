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

package models

import "github.com/uptrace/bun"

// FoodEntry records Quantity servings of a Food in a DailyLog.
type FoodEntry struct {
	bun.BaseModel `bun:"table:food_entries,alias:fe"`

	ID         int64   `bun:"id,pk,autoincrement" json:"id"`
	DailyLogID int64   `bun:"daily_log_id,notnull" json:"daily_log_id"`
	FoodID     int64   `bun:"food_id,notnull" json:"food_id"`
	Quantity   float64 `bun:"quantity,notnull,default:1" json:"quantity"`

	DailyLog *DailyLog `bun:"rel:belongs-to,join:daily_log_id=id" json:"daily_log,omitempty"`
	Food     *Food     `bun:"rel:belongs-to,join:food_id=id" json:"food,omitempty"`
}

func (FoodEntry) OwnerColumn() string {
	return "daily_log_id"
}

func (FoodEntry) Relations() []string {
	return []string{"Food", "DailyLog", "DailyLog.User"}
}

// Totals is the nutrient sum of a set of entries, each scaled by its
// quantity.
type Totals struct {
	Entries  int     `bun:"entries" json:"entries"`
	Calories float64 `bun:"calories" json:"calories"`
	Protein  float64 `bun:"protein" json:"protein"`
	Carbs    float64 `bun:"carbs" json:"carbs"`
	Fat      float64 `bun:"fat" json:"fat"`
}
