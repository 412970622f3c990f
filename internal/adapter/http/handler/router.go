package handler

import (
	"payquest/internal/adapter/http/middleware"
	"payquest/internal/core/ports"
	"payquest/internal/metrics"
	"payquest/pkg/apperror"
	"payquest/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	LedgerSvc      ports.LedgerService
	AchievementSvc ports.AchievementService
	OTPSvc         ports.OTPService
	TokenSvc       ports.TokenService
	RateLimiter    middleware.Limiter // nil disables rate limiting
	HealthCheckers []ports.HealthChecker
	MetricsEnabled bool
	MetricsPath    string
	APIDocument    []byte
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.HandleMethodNotAllowed = true

	metricsPath := deps.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit
	if deps.MetricsEnabled {
		r.Use(metrics.GinMiddleware(metricsPath))
	}
	r.Use(middleware.AuditLog(deps.Logger))

	r.NoMethod(func(c *gin.Context) {
		response.Error(c, apperror.ErrMethodNotAllowed())
	})
	r.NoRoute(func(c *gin.Context) {
		response.Error(c, apperror.ErrNotFound("route"))
	})

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.MetricsEnabled {
		r.GET(metricsPath, gin.WrapH(metrics.Handler()))
	}

	docs := NewDocsHandler(deps.APIDocument, "/docs/openapi.yaml")
	r.GET("/docs", docs.Viewer)
	r.GET("/docs/openapi.yaml", docs.Document)

	rules := middleware.DefaultRateLimitRules()

	// rl returns the limiter for group, or a no-op when rate limiting is off.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimiter, group, rule, deps.Logger)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	walletHandler := NewWalletHandler(deps.LedgerSvc)
	ledgerHandler := NewLedgerHandler(deps.LedgerSvc, deps.Logger)
	achievementHandler := NewAchievementHandler(deps.AchievementSvc)
	otpHandler := NewOTPHandler(deps.OTPSvc)

	users := r.Group("/api/v1/users/:userID", jwtAuth, middleware.RequireSelf())
	{
		users.GET("/wallet", rl("ledger"), walletHandler.GetWallet)
		users.PUT("/wallet/balance", rl("ledger"), walletHandler.UpdateBalance)
		users.PUT("/wallet/pin", rl("ledger"), walletHandler.UpdatePIN)
		users.POST("/wallet/reset", rl("ledger"), walletHandler.Reset)

		users.GET("/transactions", rl("ledger"), ledgerHandler.ListTransactions)
		users.POST("/transactions", rl("ledger"), ledgerHandler.AddTransaction)
		users.GET("/contacts", rl("ledger"), ledgerHandler.ListContacts)
		users.POST("/contacts", rl("ledger"), ledgerHandler.AddContact)
		users.POST("/transfers", rl("transfers"), ledgerHandler.Transfer)

		users.GET("/achievements", rl("ledger"), achievementHandler.Get)
		users.PUT("/achievements", rl("ledger"), achievementHandler.Update)
	}

	r.POST("/send-otp", jwtAuth, rl("otp_send"), otpHandler.Send)
	r.POST("/verify-otp", jwtAuth, rl("otp_verify"), otpHandler.Verify)

	return r
}
