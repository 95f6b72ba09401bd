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
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tomoncle/nutrilog"
	"github.com/tomoncle/nutrilog/database"
	"github.com/tomoncle/nutrilog/models"
	"github.com/tomoncle/nutrilog/schema"
	"github.com/tomoncle/nutrilog/utils"
	"github.com/uptrace/bun"
)

// DefaultLimit caps list endpoints without a limit parameter.
const DefaultLimit = 100

type Options struct {
	// Mode is the gin mode; empty keeps the current one.
	Mode         string
	DefaultLimit int
	Logger       *logrus.Logger
}

// Server serves the nutrilog resources over HTTP.
type Server struct {
	db           bun.IDB
	defaultLimit int
	logger       *logrus.Logger

	users   nutrilog.Service[models.User]
	foods   nutrilog.Service[models.Food]
	logs    nutrilog.Service[models.DailyLog]
	entries nutrilog.Service[models.FoodEntry]
}

func NewServer(db bun.IDB, opts Options) *Server {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	if opts.DefaultLimit == 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewLogger("API")
	}
	return &Server{
		db:           db,
		defaultLimit: opts.DefaultLimit,
		logger:       opts.Logger,
		users:        nutrilog.NewServiceWithDB[models.User](db),
		foods:        nutrilog.NewServiceWithDB[models.Food](db),
		logs:         nutrilog.NewServiceWithDB[models.DailyLog](db),
		entries:      nutrilog.NewServiceWithDB[models.FoodEntry](db),
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(s.logger))

	r.GET("/healthz", s.health)

	users := r.Group("/users")
	{
		users.POST("", createHandler[models.User, schema.UserCreate](s.users))
		users.GET("", s.listHandler(listAll(s.users, "username", "email")))
		users.GET("/:id", getHandler(s.users))
		users.PATCH("/:id", updateHandler[models.User, schema.UserUpdate](s.users))
		users.DELETE("/:id", deleteHandler(s.users))
		users.POST("/:id/logs", createForOwnerHandler[models.DailyLog, models.User, schema.DailyLogCreate](s.logs, s.users))
		users.GET("/:id/logs", s.listHandler(listForOwner(s.logs, s.users)))
	}

	foods := r.Group("/foods")
	{
		foods.POST("", createHandler[models.Food, schema.FoodCreate](s.foods))
		foods.GET("", s.listHandler(listAll(s.foods, "name", "manufacturer")))
		foods.GET("/:id", getHandler(s.foods))
		foods.PATCH("/:id", updateHandler[models.Food, schema.FoodUpdate](s.foods))
		foods.DELETE("/:id", deleteHandler(s.foods))
	}

	logs := r.Group("/logs")
	{
		logs.GET("/:id", getHandler(s.logs))
		logs.PATCH("/:id", updateHandler[models.DailyLog, schema.DailyLogUpdate](s.logs))
		logs.DELETE("/:id", deleteHandler(s.logs))
		logs.GET("/:id/totals", s.totals)
		logs.POST("/:id/entries", createForOwnerHandler[models.FoodEntry, models.DailyLog, schema.FoodEntryCreate](s.entries, s.logs))
		logs.GET("/:id/entries", s.listHandler(listForOwner(s.entries, s.logs)))
	}

	entries := r.Group("/entries")
	{
		entries.GET("/:id", getHandler(s.entries))
		entries.PATCH("/:id", updateHandler[models.FoodEntry, schema.FoodEntryUpdate](s.entries))
		entries.DELETE("/:id", deleteHandler(s.entries))
	}
	return r
}

func (s *Server) totals(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		abortWithError(c, err)
		return
	}
	if _, err := s.logs.Get(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	totals, err := nutrilog.DailyTotals(c.Request.Context(), s.db, id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, totals)
}

func (s *Server) health(c *gin.Context) {
	status := database.GetHealthStatus(c.Request.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"database": status, "stats": database.GetDatabaseStats()})
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("HTTP server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
