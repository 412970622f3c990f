package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"payquest/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func recorderContext(requestID string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	if requestID != "" {
		c.Set(RequestIDKey, requestID)
	}
	return c, w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestSuccessEnvelopes(t *testing.T) {
	cases := []struct {
		name   string
		write  func(*gin.Context, any)
		status int
	}{
		{"ok", OK, http.StatusOK},
		{"created", Created, http.StatusCreated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, w := recorderContext("req-" + tc.name)
			tc.write(c, map[string]string{"balance": "7500"})

			require.Equal(t, tc.status, w.Code)
			env := decode[Envelope](t, w)
			assert.Equal(t, "req-"+tc.name, env.RequestID)
			assert.JSONEq(t, `{"balance":"7500"}`, string(env.Data))

			raw := decode[SuccessResponse](t, w)
			_, err := time.Parse(time.RFC3339, raw.Timestamp)
			assert.NoError(t, err)
		})
	}
}

func TestError_Mapping(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"app error", apperror.ErrInsufficientFunds(), http.StatusPaymentRequired, "PAY_001", "Insufficient balance in wallet"},
		{"wrapped app error", fmt.Errorf("verify: %w", apperror.ErrOTPExpired()), http.StatusBadRequest, "OTP_002", "Code expired"},
		{"plain error", fmt.Errorf("pool exhausted"), http.StatusInternalServerError, apperror.CodeInternal, "Internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, w := recorderContext("req-err")
			Error(c, tc.err)

			require.Equal(t, tc.status, w.Code)
			body := decode[ErrorResponse](t, w)
			assert.Equal(t, tc.code, body.ErrorCode)
			assert.Equal(t, tc.message, body.Message)
			assert.Equal(t, "req-err", body.RequestID)
		})
	}
}

func TestError_PlainErrorKeptForLogging(t *testing.T) {
	c, _ := recorderContext("")
	Error(c, fmt.Errorf("pool exhausted"))

	require.Len(t, c.Errors, 1)
	assert.EqualError(t, c.Errors[0].Err, "pool exhausted")
}

func TestEnvelope_AsError(t *testing.T) {
	c, w := recorderContext("")
	Error(c, apperror.ErrNotFound("wallet"))

	appErr := decode[Envelope](t, w).AsError(w.Code)
	assert.Equal(t, apperror.CodeNotFound, appErr.Code)
	assert.Equal(t, "wallet not found", appErr.Message)
	assert.Equal(t, http.StatusNotFound, appErr.HTTPStatus)

	blank := Envelope{}.AsError(http.StatusBadGateway)
	assert.Equal(t, apperror.CodeInternal, blank.Code)
	assert.Equal(t, "Bad Gateway", blank.Message)
}

func TestRequestIDMintedOnce(t *testing.T) {
	c, w := recorderContext("")
	OK(c, nil)

	first := decode[SuccessResponse](t, w).RequestID
	require.NotEmpty(t, first)
	assert.Equal(t, first, c.GetString(RequestIDKey))
}
