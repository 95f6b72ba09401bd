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

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDump_OmitsUnsetFields(t *testing.T) {
	got, err := Dump(&FoodCreate{
		Name:         Ptr("Banana"),
		Manufacturer: Ptr("Chiquita"),
		Unit:         Ptr("g"),
		Calories:     Ptr(105.0),
	}, DumpOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"name":         "Banana",
		"manufacturer": "Chiquita",
		"unit":         "g",
		"calories":     105.0,
	}, got)
}

func TestDump_ExcludeDefaults(t *testing.T) {
	in := FoodEntryCreate{FoodID: Ptr(int64(4)), Quantity: Ptr(1.0)}

	all, err := Dump(in, DumpOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, all["quantity"])

	trimmed, err := Dump(in, DumpOptions{ExcludeDefaults: true})
	require.NoError(t, err)
	assert.NotContains(t, trimmed, "quantity")
	assert.Equal(t, int64(4), trimmed["food_id"])

	in.Quantity = Ptr(2.5)
	trimmed, err = Dump(in, DumpOptions{ExcludeDefaults: true})
	require.NoError(t, err)
	assert.Equal(t, 2.5, trimmed["quantity"])
}

func TestDump_DateAndMaps(t *testing.T) {
	d := NewDate(2024, time.May, 1)
	got, err := Dump(&DailyLogUpdate{Date: &d}, DumpOptions{})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC), got["date"])

	got, err = Dump(map[string]interface{}{"quantity": 2.0, "food_id": nil}, DumpOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"quantity": 2.0}, got)

	empty, err := Dump(&UserUpdate{}, DumpOptions{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDump_RejectsNonStruct(t *testing.T) {
	_, err := Dump(42, DumpOptions{})
	assert.Error(t, err)
	var nilInput *UserCreate
	_, err = Dump(nilInput, DumpOptions{})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(&UserCreate{Username: Ptr("testuser"), Email: Ptr("testuser@example.com")}))
	require.NoError(t, Validate(&UserUpdate{}))
	require.NoError(t, Validate(map[string]interface{}{"anything": 1}))

	err := Validate(&UserCreate{Username: Ptr(""), Email: Ptr("not-an-email")})
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	fields := map[string]string{}
	for _, f := range ve.Fields {
		fields[f.Field] = f.Rule
	}
	assert.Equal(t, map[string]string{"username": "min", "email": "email"}, fields)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "username: min=1")
}

func TestValidate_FoodRanges(t *testing.T) {
	base := func() *FoodCreate {
		return &FoodCreate{Name: Ptr("Oats"), Manufacturer: Ptr("Quaker"), Unit: Ptr("g")}
	}
	require.NoError(t, Validate(base()))

	bad := base()
	bad.ServingSize = Ptr(0.0)
	bad.Fat = Ptr(-1.0)
	err := Validate(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serving_size: gt=0")
	assert.Contains(t, err.Error(), "fat: gte=0")

	missing := &FoodCreate{Name: Ptr("Oats")}
	err = Validate(missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manufacturer: required")
	assert.Contains(t, err.Error(), "unit: required")
}

func TestValidate_EntryQuantity(t *testing.T) {
	assert.Error(t, Validate(&FoodEntryUpdate{Quantity: Ptr(0.0)}))
	assert.NoError(t, Validate(&FoodEntryUpdate{Quantity: Ptr(0.5)}))
	assert.Error(t, Validate(&FoodEntryCreate{}))
	assert.Error(t, Validate(&DailyLogCreate{UserID: Ptr(int64(0))}))
}

func TestDate_JSON(t *testing.T) {
	var in DailyLogCreate
	require.NoError(t, json.Unmarshal([]byte(`{"user_id":1,"date":"2024-02-29"}`), &in))
	require.NotNil(t, in.Date)
	assert.Equal(t, "2024-02-29", in.Date.String())

	require.NoError(t, json.Unmarshal([]byte(`{"date":"2024-02-29T23:30:00+02:00"}`), &in))
	assert.Equal(t, "2024-02-29", in.Date.String())

	assert.Error(t, json.Unmarshal([]byte(`{"date":"29/02/2024"}`), &in))

	b, err := json.Marshal(NewDate(2024, time.March, 1))
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-01"`, string(b))
}
