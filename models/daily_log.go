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

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// DailyLog groups the food entries of one user on one calendar day. A user
// has at most one log per date.
type DailyLog struct {
	bun.BaseModel `bun:"table:daily_logs,alias:dl"`

	ID     int64     `bun:"id,pk,autoincrement" json:"id"`
	Date   time.Time `bun:"date,type:date,notnull,unique:daily_logs_user_date_uc" json:"date"`
	UserID int64     `bun:"user_id,notnull,unique:daily_logs_user_date_uc" json:"user_id"`

	User        *User        `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	FoodEntries []*FoodEntry `bun:"rel:has-many,join:id=daily_log_id" json:"food_entries"`
}

var _ bun.BeforeAppendModelHook = (*DailyLog)(nil)

// BeforeAppendModel defaults Date to today on insert and keeps it at UTC
// midnight so the (user, date) uniqueness compares calendar days.
func (l *DailyLog) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery:
		if l.Date.IsZero() {
			l.Date = Today()
		}
		l.Date = DateOf(l.Date)
	case *bun.UpdateQuery:
		if !l.Date.IsZero() {
			l.Date = DateOf(l.Date)
		}
	}
	return nil
}

func (DailyLog) OwnerColumn() string {
	return "user_id"
}

func (DailyLog) Relations() []string {
	return []string{"User", "FoodEntries", "FoodEntries.Food"}
}

// Today returns the current UTC date at midnight.
func Today() time.Time {
	return DateOf(time.Now())
}

// DateOf truncates t to midnight UTC of its calendar day in t's location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
