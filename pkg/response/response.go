// Package response writes the JSON envelope every HTTP endpoint answers
// with: {"success", "data", "meta", "error"}.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Envelope struct {
	Success bool     `json:"success"`
	Data    any      `json:"data,omitempty"`
	Meta    *Page    `json:"meta,omitempty"`
	Error   *Problem `json:"error,omitempty"`
}

// Page describes one page of a listing.
type Page struct {
	Offset  int  `json:"offset"`
	Limit   int  `json:"limit"`
	Count   int  `json:"count"`
	HasMore bool `json:"has_more"`
}

type Problem struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// Code is the machine readable error code. Each code has one HTTP status.
type Code string

const (
	CodeBadRequest   Code = "BAD_REQUEST"
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeInternal     Code = "INTERNAL_ERROR"
)

var statusOf = map[Code]int{
	CodeBadRequest:   http.StatusBadRequest,
	CodeValidation:   http.StatusBadRequest,
	CodeUnauthorized: http.StatusUnauthorized,
	CodeForbidden:    http.StatusForbidden,
	CodeNotFound:     http.StatusNotFound,
	CodeConflict:     http.StatusConflict,
	CodeInternal:     http.StatusInternalServerError,
}

// Status returns the HTTP status for c; unknown codes are server errors.
func (c Code) Status() int {
	if s, ok := statusOf[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

func Paged(c *gin.Context, data any, page Page) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data, Meta: &page})
}

func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Fail writes an error envelope and aborts the remaining handlers.
func Fail(c *gin.Context, code Code, message string) {
	c.AbortWithStatusJSON(code.Status(), Envelope{Error: &Problem{Code: code, Message: message}})
}
