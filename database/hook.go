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

package database

import (
	"context"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"
)

var silentMode atomic.Bool

// EnableSilentMode mutes the slow query hook, e.g. while migrations run.
func EnableSilentMode(b bool) {
	silentMode.Store(b)
}

// SlowQueryHook logs queries slower than SlowTime through Logger, with the
// statement colored by operation. Setting the env variable named by FromEnv
// to "0" disables it and "1" enables it regardless of Enabled.
type SlowQueryHook struct {
	FromEnv  string
	Enabled  bool
	SlowTime time.Duration
	Logger   Logger
}

var _ bun.QueryHook = (*SlowQueryHook)(nil)

func NewSlowQueryHook(slowTime time.Duration, logger Logger) *SlowQueryHook {
	return &SlowQueryHook{
		FromEnv:  "BUN_SLOW_QUERY",
		Enabled:  true,
		SlowTime: slowTime,
		Logger:   logger,
	}
}

func (h *SlowQueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *SlowQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if silentMode.Load() || event.Err != nil || h.Logger == nil {
		return
	}
	enabled := h.Enabled
	if env, ok := os.LookupEnv(h.FromEnv); ok && h.FromEnv != "" {
		enabled = strings.TrimSpace(env) == "1"
	}
	if !enabled {
		return
	}

	duration := time.Since(event.StartTime)
	if duration > h.SlowTime {
		h.Logger.Warn(color.YellowString("Database slow query detected"),
			"duration", duration.Round(time.Microsecond),
			"slow_threshold", h.SlowTime,
			"query", operationColor(event.Operation()).Sprint(event.Query),
		)
	}
}

func operationColor(operation string) *color.Color {
	switch operation {
	case "SELECT":
		return color.New(color.FgGreen)
	case "INSERT":
		return color.New(color.FgBlue)
	case "UPDATE":
		return color.New(color.FgYellow)
	case "DELETE":
		return color.New(color.FgMagenta)
	default:
		return color.New(color.FgRed)
	}
}
