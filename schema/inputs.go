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

package schema

// Input fields are pointers: nil means "not provided". The json name of a
// field is the column it writes; the default tag is the value a field takes
// when omitted.

type UserCreate struct {
	Username *string `json:"username" validate:"required,min=1"`
	Email    *string `json:"email" validate:"required,email"`
}

type UserUpdate struct {
	Username *string `json:"username,omitempty" validate:"omitnil,min=1"`
	Email    *string `json:"email,omitempty" validate:"omitnil,email"`
}

type FoodCreate struct {
	Name         *string  `json:"name" validate:"required,min=1"`
	Manufacturer *string  `json:"manufacturer" validate:"required,min=1"`
	ServingSize  *float64 `json:"serving_size,omitempty" validate:"omitnil,gt=0" default:"1"`
	Unit         *string  `json:"unit" validate:"required,min=1"`
	Calories     *float64 `json:"calories,omitempty" validate:"omitnil,gte=0" default:"0"`
	Protein      *float64 `json:"protein,omitempty" validate:"omitnil,gte=0" default:"0"`
	Carbs        *float64 `json:"carbs,omitempty" validate:"omitnil,gte=0" default:"0"`
	Fat          *float64 `json:"fat,omitempty" validate:"omitnil,gte=0" default:"0"`
}

type FoodUpdate struct {
	Name         *string  `json:"name,omitempty" validate:"omitnil,min=1"`
	Manufacturer *string  `json:"manufacturer,omitempty" validate:"omitnil,min=1"`
	ServingSize  *float64 `json:"serving_size,omitempty" validate:"omitnil,gt=0"`
	Unit         *string  `json:"unit,omitempty" validate:"omitnil,min=1"`
	Calories     *float64 `json:"calories,omitempty" validate:"omitnil,gte=0"`
	Protein      *float64 `json:"protein,omitempty" validate:"omitnil,gte=0"`
	Carbs        *float64 `json:"carbs,omitempty" validate:"omitnil,gte=0"`
	Fat          *float64 `json:"fat,omitempty" validate:"omitnil,gte=0"`
}

// DailyLogCreate leaves UserID optional so the same shape serves creation
// for an owner, where the owner id comes from the caller.
type DailyLogCreate struct {
	UserID *int64 `json:"user_id,omitempty" validate:"omitnil,gt=0"`
	Date   *Date  `json:"date,omitempty"`
}

// OwnerID is the user named in the body, if any.
func (in *DailyLogCreate) OwnerID() *int64 { return in.UserID }

type DailyLogUpdate struct {
	Date *Date `json:"date,omitempty"`
}

type FoodEntryCreate struct {
	DailyLogID *int64   `json:"daily_log_id,omitempty" validate:"omitnil,gt=0"`
	FoodID     *int64   `json:"food_id" validate:"required,gt=0"`
	Quantity   *float64 `json:"quantity,omitempty" validate:"omitnil,gt=0" default:"1"`
}

func (in *FoodEntryCreate) OwnerID() *int64 { return in.DailyLogID }

type FoodEntryUpdate struct {
	Quantity *float64 `json:"quantity,omitempty" validate:"omitnil,gt=0"`
}

// Ptr returns a pointer to v, for building inputs in code.
func Ptr[V any](v V) *V {
	return &v
}
