package handler

import (
	"crypto-card-service/internal/adapter/http/middleware"
	redisStore "crypto-card-service/internal/adapter/storage/redis"
	"crypto-card-service/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	CardSvc        ports.CardService
	LedgerSvc      ports.LedgerService
	ExchangeSvc    ports.ExchangeService
	RegulatorSvc   ports.RegulatorService
	DedupSvc       ports.DedupService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	// API v1 routes
	v1 := r.Group("/api/v1")

	cardHandler := NewCardHandler(deps.CardSvc, deps.LedgerSvc)
	cards := v1.Group("/cards", jwtAuth)
	{
		cards.POST("", rl("cards"), cardHandler.CreateCard)
		cards.GET("/:id", rl("cards"), cardHandler.GetCard)
		cards.GET("/:id/ledger", rl("cards"), cardHandler.GetLedger)
	}

	exchangeHandler := NewExchangeHandler(deps.ExchangeSvc)
	exchange := v1.Group("/exchange", jwtAuth)
	{
		exchange.POST("/quote", rl("exchange_quote"), exchangeHandler.Quote)
		exchange.POST("/orders", rl("exchange_orders"), exchangeHandler.CreateOrder)
		exchange.GET("/orders/:id", rl("exchange_orders"), exchangeHandler.GetOrder)
		exchange.POST("/orders/:id/payin", rl("exchange_orders"), exchangeHandler.MarkPayin)
		exchange.POST("/orders/:id/settle", rl("exchange_orders"), exchangeHandler.Settle)
	}

	// Regulator routes need the regulator capability on top of a valid token.
	regulatorHandler := NewRegulatorHandler(deps.RegulatorSvc, deps.DedupSvc)
	regulator := v1.Group("/regulator", jwtAuth, middleware.RegulatorOnly())
	{
		regulator.POST("/adjust-balance", rl("regulator"), regulatorHandler.AdjustBalance)
		regulator.POST("/dedup-assets", rl("regulator"), regulatorHandler.DedupAssets)
	}

	return r
}
