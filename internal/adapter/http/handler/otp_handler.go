package handler

import (
	"time"

	"payquest/internal/adapter/http/dto"
	"payquest/internal/core/ports"
	"payquest/internal/metrics"
	"payquest/pkg/apperror"
	"payquest/pkg/response"

	"github.com/gin-gonic/gin"
)

// OTPHandler serves phone verification.
type OTPHandler struct {
	otpSvc ports.OTPService
}

// NewOTPHandler creates a new OTPHandler.
func NewOTPHandler(otpSvc ports.OTPService) *OTPHandler {
	return &OTPHandler{otpSvc: otpSvc}
}

// Send handles POST /send-otp.
func (h *OTPHandler) Send(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	issued, err := h.otpSvc.Send(c.Request.Context(), userID, req.Phone)
	metrics.RecordOTP("send", err)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.SendOTPResponse{
		Success:   true,
		ExpiresAt: issued.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Verify handles POST /verify-otp.
func (h *OTPHandler) Verify(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	phone, err := h.otpSvc.Verify(c.Request.Context(), userID, req.Phone, req.Code)
	metrics.RecordOTP("verify", err)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.VerifyOTPResponse{Success: true, Phone: phone})
}
