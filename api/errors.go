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
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tomoncle/nutrilog/database"
	"github.com/tomoncle/nutrilog/repository"
	"github.com/tomoncle/nutrilog/schema"
)

var errBadRequest = errors.New("bad request")

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string              `json:"error"`
	Kind      string              `json:"kind,omitempty"`
	Fields    []schema.FieldError `json:"fields,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
}

func statusOf(err error) int {
	var ve *schema.ValidationError
	var cv *database.ConstraintViolation
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &cv):
		return http.StatusConflict
	case errors.Is(err, errBadRequest), errors.Is(err, repository.ErrUnknownColumn):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := statusOf(err)
	resp := ErrorResponse{Error: err.Error(), RequestID: c.GetString(requestIDKey)}

	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		resp.Fields = ve.Fields
	}
	var cv *database.ConstraintViolation
	if errors.As(err, &cv) {
		resp.Kind = cv.Kind.String()
	}
	if status >= http.StatusInternalServerError {
		resp.Error = http.StatusText(status)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, resp)
}
