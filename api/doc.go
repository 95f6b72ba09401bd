// Package api exposes users, foods, daily logs and food entries as a JSON
// HTTP API on gin.
package api
