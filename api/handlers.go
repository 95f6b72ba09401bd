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
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tomoncle/nutrilog"
	"github.com/tomoncle/nutrilog/types"
)

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, c.Param(name))
	}
	return id, nil
}

func (s *Server) limit(c *gin.Context) (int, error) {
	raw, ok := c.GetQuery("limit")
	if !ok || raw == "" {
		return s.defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid limit %q", errBadRequest, raw)
	}
	return n, nil
}

func bind[I any](c *gin.Context) (*I, error) {
	in := new(I)
	if err := c.ShouldBindJSON(in); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return in, nil
}

// queryFilters turns the given query parameters into exact-match filters.
func queryFilters(c *gin.Context, columns ...string) []types.Filter {
	by := types.FilterBy{}
	for _, col := range columns {
		if v, ok := c.GetQuery(col); ok {
			by[col] = v
		}
	}
	if len(by) == 0 {
		return nil
	}
	return []types.Filter{by}
}

func createHandler[T, I any](svc nutrilog.Service[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		in, err := bind[I](c)
		if err != nil {
			abortWithError(c, err)
			return
		}
		out, err := svc.Create(c.Request.Context(), in)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, out)
	}
}

// ownedInput is a create input that may name its owner in the body.
type ownedInput interface {
	OwnerID() *int64
}

// createForOwnerHandler creates a T owned by the P addressed by the :id path
// parameter. A body owner other than the path owner is rejected.
func createForOwnerHandler[T, P, I any](svc nutrilog.Service[T], parents nutrilog.Service[P]) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, err := pathID(c, "id")
		if err != nil {
			abortWithError(c, err)
			return
		}
		in, err := bind[I](c)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if owned, ok := any(in).(ownedInput); ok {
			if id := owned.OwnerID(); id != nil && *id != ownerID {
				abortWithError(c, fmt.Errorf("%w: body owner %d does not match path owner %d", errBadRequest, *id, ownerID))
				return
			}
		}
		if _, err := parents.Get(c.Request.Context(), ownerID); err != nil {
			abortWithError(c, err)
			return
		}
		out, err := svc.CreateForOwner(c.Request.Context(), in, ownerID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, out)
	}
}

func getHandler[T any](svc nutrilog.Service[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c, "id")
		if err != nil {
			abortWithError(c, err)
			return
		}
		out, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func (s *Server) listHandler(list func(c *gin.Context, limit int) (any, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := s.limit(c)
		if err != nil {
			abortWithError(c, err)
			return
		}
		out, err := list(c, limit)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func listAll[T any](svc nutrilog.Service[T], columns ...string) func(*gin.Context, int) (any, error) {
	return func(c *gin.Context, limit int) (any, error) {
		return svc.List(c.Request.Context(), limit, queryFilters(c, columns...)...)
	}
}

func listForOwner[T, P any](svc nutrilog.Service[T], parents nutrilog.Service[P]) func(*gin.Context, int) (any, error) {
	return func(c *gin.Context, limit int) (any, error) {
		ownerID, err := pathID(c, "id")
		if err != nil {
			return nil, err
		}
		if _, err := parents.Get(c.Request.Context(), ownerID); err != nil {
			return nil, err
		}
		return svc.ListForOwner(c.Request.Context(), limit, ownerID)
	}
}

func updateHandler[T, I any](svc nutrilog.Service[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c, "id")
		if err != nil {
			abortWithError(c, err)
			return
		}
		in, err := bind[I](c)
		if err != nil {
			abortWithError(c, err)
			return
		}
		out, err := svc.Update(c.Request.Context(), id, in)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func deleteHandler[T any](svc nutrilog.Service[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c, "id")
		if err != nil {
			abortWithError(c, err)
			return
		}
		out, err := svc.Delete(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}
