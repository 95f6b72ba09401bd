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

// Food is a catalog item. Nutrient values are per serving of ServingSize
// units. Foods referenced by an entry cannot be deleted.
type Food struct {
	bun.BaseModel `bun:"table:foods,alias:f"`

	ID           int64   `bun:"id,pk,autoincrement" json:"id"`
	Name         string  `bun:"name,notnull,unique" json:"name"`
	Manufacturer string  `bun:"manufacturer,notnull,unique" json:"manufacturer"`
	ServingSize  float64 `bun:"serving_size,notnull,default:1" json:"serving_size"`
	Unit         string  `bun:"unit,notnull" json:"unit"`
	Calories     float64 `bun:"calories,notnull,default:0" json:"calories"`
	Protein      float64 `bun:"protein,notnull,default:0" json:"protein"`
	Carbs        float64 `bun:"carbs,notnull,default:0" json:"carbs"`
	Fat          float64 `bun:"fat,notnull,default:0" json:"fat"`
}
