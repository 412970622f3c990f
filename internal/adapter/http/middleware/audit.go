package middleware

import (
	"net/http"

	"payquest/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// auditActions maps "METHOD route" to the audited action name.
var auditActions = map[string]string{
	"PUT /api/v1/users/:userID/wallet/balance": "wallet.balance.update",
	"PUT /api/v1/users/:userID/wallet/pin":     "wallet.pin.update",
	"POST /api/v1/users/:userID/transactions":  "ledger.append",
	"POST /api/v1/users/:userID/contacts":      "contact.create",
	"POST /api/v1/users/:userID/transfers":     "transfer.create",
	"PUT /api/v1/users/:userID/achievements":   "achievements.update",
	"POST /send-otp":                           "otp.send",
	"POST /verify-otp":                         "otp.verify",
}

// AuditLog writes one audit entry per successful state-changing request.
func AuditLog(log zerolog.Logger) gin.HandlerFunc {
	audit := logger.Component(log, "audit")
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}
		action, ok := auditActions[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}

		event := audit.Info().
			Str("action", action).
			Str("ip_address", c.ClientIP()).
			Int("status", status).
			Str("request_id", c.GetString(CtxRequestID))
		if userID, ok := UserID(c); ok {
			event = event.Str("user_id", userID.String())
		}
		event.Msg("audit")
	}
}
