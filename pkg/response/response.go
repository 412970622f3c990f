// Package response writes the JSON envelopes every API route returns and
// decodes them on the client side.
package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"payquest/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

type SuccessResponse struct {
	Data      any    `json:"data"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// Envelope decodes either shape; Data stays raw until the caller knows the
// payload type.
type Envelope struct {
	Data      json.RawMessage `json:"data"`
	ErrorCode string          `json:"error_code"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
}

// AsError rebuilds the AppError an error envelope carried, filling a missing
// code or message from the status.
func (e Envelope) AsError(httpStatus int) *apperror.AppError {
	code, msg := e.ErrorCode, e.Message
	if code == "" {
		code = apperror.CodeInternal
	}
	if msg == "" {
		msg = http.StatusText(httpStatus)
	}
	return apperror.New(code, msg, httpStatus)
}

func OK(c *gin.Context, data any) { success(c, http.StatusOK, data) }

func Created(c *gin.Context, data any) { success(c, http.StatusCreated, data) }

// Error renders err. AppErrors keep their code and status; anything else is
// attached to the gin context for logging and answered with a generic 500.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		if err != nil {
			_ = c.Error(err)
		}
		appErr = apperror.New(apperror.CodeInternal, "Internal server error", http.StatusInternalServerError)
	}
	id, ts := stamp(c)
	c.JSON(appErr.HTTPStatus, ErrorResponse{
		ErrorCode: appErr.Code,
		Message:   appErr.Message,
		RequestID: id,
		Timestamp: ts,
	})
}

func success(c *gin.Context, status int, data any) {
	id, ts := stamp(c)
	c.JSON(status, SuccessResponse{Data: data, RequestID: id, Timestamp: ts})
}

// stamp returns the request id, minting and storing one when the RequestID
// middleware did not run, and the current UTC time.
func stamp(c *gin.Context) (string, string) {
	id := c.GetString(RequestIDKey)
	if id == "" {
		id = uuid.NewString()
		c.Set(RequestIDKey, id)
	}
	return id, time.Now().UTC().Format(time.RFC3339)
}
