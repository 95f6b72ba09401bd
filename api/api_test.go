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

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/nutrilog/database"
	"github.com/tomoncle/nutrilog/models"
	"github.com/tomoncle/nutrilog/utils"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	manager := database.NewDatabaseManager(&database.ConnectionConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, manager.Connect(context.Background()))
	require.NoError(t, manager.RunMigrations(context.Background()))
	database.SetDB(manager.GetDB())
	t.Cleanup(func() {
		database.SetDB(nil)
		_ = manager.Disconnect()
	})

	logger := utils.NewLogger("API_TEST")
	logger.SetOutput(io.Discard)
	return NewServer(manager.GetDB(), Options{Mode: gin.TestMode, Logger: logger}).Router()
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestAPI_UserLifecycle(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/users", map[string]string{"username": "alice", "email": "alice@example.com"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	user := decode[models.User](t, w)

	w = do(t, r, http.MethodGet, fmt.Sprintf("/users/%d", user.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", decode[models.User](t, w).Username)

	w = do(t, r, http.MethodPatch, fmt.Sprintf("/users/%d", user.ID), map[string]string{"email": "a@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a@example.com", decode[models.User](t, w).Email)

	w = do(t, r, http.MethodGet, "/users?username=alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.User](t, w), 1)

	w = do(t, r, http.MethodDelete, fmt.Sprintf("/users/%d", user.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, fmt.Sprintf("/users/%d", user.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_StatusMapping(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/users", map[string]string{"username": "", "email": "nope"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode[ErrorResponse](t, w)
	assert.Len(t, resp.Fields, 2)

	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/users", map[string]string{"username": "bob", "email": "bob@example.com"}).Code)
	w = do(t, r, http.MethodPost, "/users", map[string]string{"username": "bob", "email": "other@example.com"})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "duplicate key", decode[ErrorResponse](t, w).Kind)

	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/users/abc", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/users?limit=x", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/foods/99", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodPost, "/users/99/logs", map[string]string{}).Code)
}

func TestAPI_LogsEntriesAndTotals(t *testing.T) {
	r := newTestRouter(t)

	user := decode[models.User](t, do(t, r, http.MethodPost, "/users", map[string]string{"username": "carol", "email": "carol@example.com"}))
	w := do(t, r, http.MethodPost, "/foods", map[string]interface{}{
		"name": "Banana", "manufacturer": "Chiquita", "unit": "piece", "calories": 105, "protein": 1.3,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	food := decode[models.Food](t, w)
	assert.Equal(t, 1.0, food.ServingSize)

	w = do(t, r, http.MethodPost, fmt.Sprintf("/users/%d/logs", user.ID), map[string]string{"date": "2024-05-01"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	log := decode[models.DailyLog](t, w)
	assert.Equal(t, user.ID, log.UserID)

	w = do(t, r, http.MethodPost, fmt.Sprintf("/users/%d/logs", user.ID), map[string]string{"date": "2024-05-01"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodPost, fmt.Sprintf("/logs/%d/entries", log.ID), map[string]interface{}{"food_id": food.ID, "quantity": 2})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	entry := decode[models.FoodEntry](t, w)
	require.NotNil(t, entry.Food)
	assert.Equal(t, "Banana", entry.Food.Name)

	w = do(t, r, http.MethodGet, fmt.Sprintf("/logs/%d/entries", log.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.FoodEntry](t, w), 1)

	w = do(t, r, http.MethodGet, fmt.Sprintf("/logs/%d/totals", log.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	totals := decode[models.Totals](t, w)
	assert.Equal(t, 1, totals.Entries)
	assert.InDelta(t, 210.0, totals.Calories, 1e-9)

	w = do(t, r, http.MethodDelete, fmt.Sprintf("/foods/%d", food.ID), nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "restrict", decode[ErrorResponse](t, w).Kind)

	w = do(t, r, http.MethodPatch, fmt.Sprintf("/entries/%d", entry.ID), map[string]interface{}{"quantity": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	require.Equal(t, http.StatusOK, do(t, r, http.MethodDelete, fmt.Sprintf("/users/%d", user.ID), nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, fmt.Sprintf("/logs/%d", log.ID), nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, fmt.Sprintf("/entries/%d", entry.ID), nil).Code)
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodDelete, fmt.Sprintf("/foods/%d", food.ID), nil).Code)
}

func TestAPI_Health(t *testing.T) {
	r := newTestRouter(t)
	w := do(t, r, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]map[string]interface{}](t, w)
	assert.Equal(t, true, body["database"]["healthy"])
}

func TestAPI_BodyOwnerMustMatchPath(t *testing.T) {
	r := newTestRouter(t)

	alice := decode[models.User](t, do(t, r, http.MethodPost, "/users", map[string]string{"username": "alice", "email": "alice@example.com"}))
	bob := decode[models.User](t, do(t, r, http.MethodPost, "/users", map[string]string{"username": "bob", "email": "bob@example.com"}))
	food := decode[models.Food](t, do(t, r, http.MethodPost, "/foods", map[string]interface{}{"name": "Rice", "manufacturer": "Paddy", "unit": "g"}))

	w := do(t, r, http.MethodPost, fmt.Sprintf("/users/%d/logs", alice.ID), map[string]interface{}{"user_id": bob.ID, "date": "2024-05-01"})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = do(t, r, http.MethodPost, fmt.Sprintf("/users/%d/logs", alice.ID), map[string]interface{}{"user_id": alice.ID, "date": "2024-05-01"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode[models.DailyLog](t, w)
	second := decode[models.DailyLog](t, do(t, r, http.MethodPost, fmt.Sprintf("/users/%d/logs", bob.ID), map[string]string{"date": "2024-05-01"}))

	w = do(t, r, http.MethodPost, fmt.Sprintf("/logs/%d/entries", first.ID), map[string]interface{}{"daily_log_id": second.ID, "food_id": food.ID})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = do(t, r, http.MethodGet, fmt.Sprintf("/logs/%d/entries", second.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]models.FoodEntry](t, w))
}

func TestAPI_NewUserRendersEmptyLogs(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/users", map[string]string{"username": "dave", "email": "dave@example.com"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode[map[string]interface{}](t, w)
	logs, ok := body["logs"].([]interface{})
	require.True(t, ok, w.Body.String())
	assert.Empty(t, logs)
}
