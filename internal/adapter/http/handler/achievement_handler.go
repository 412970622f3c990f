package handler

import (
	"payquest/internal/adapter/http/dto"
	"payquest/internal/core/ports"
	"payquest/pkg/apperror"
	"payquest/pkg/response"

	"github.com/gin-gonic/gin"
)

// AchievementHandler serves the per-user gamification stats row.
type AchievementHandler struct {
	achievementSvc ports.AchievementService
}

// NewAchievementHandler creates a new AchievementHandler.
func NewAchievementHandler(achievementSvc ports.AchievementService) *AchievementHandler {
	return &AchievementHandler{achievementSvc: achievementSvc}
}

// Get handles GET /api/v1/users/:userID/achievements. The row is created
// zeroed on first access.
func (h *AchievementHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	rec, err := h.achievementSvc.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, rec)
}

// Update handles PUT /api/v1/users/:userID/achievements.
func (h *AchievementHandler) Update(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.AchievementStatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if err := h.achievementSvc.Update(c.Request.Context(), userID, req.Stats, req.Unlocked); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"updated": true})
}
