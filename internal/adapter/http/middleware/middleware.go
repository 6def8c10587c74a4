package middleware

import (
	"net/http"
	"time"

	"crypto-card-service/internal/core/ports"
	"crypto-card-service/pkg/apperror"
	"crypto-card-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// Context keys
	CtxRequestID = "request_id"
	CtxActorID   = "actor_id"
	CtxRegulator = "regulator"
)

// RequestID attaches a request id to the context and response headers so
// responses and log lines can be correlated.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(CtxRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// JWTAuth creates a middleware that validates bearer tokens and stores the
// actor's identity and regulator capability in the request context.
func JWTAuth(tokenSvc ports.TokenService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			response.Error(c, apperror.ErrUnauthorized())
			c.Abort()
			return
		}

		tokenStr := authHeader[7:]
		claims, err := tokenSvc.Validate(tokenStr)
		if err != nil {
			log.Debug().Err(err).Msg("token validation failed")
			response.Error(c, apperror.ErrUnauthorized())
			c.Abort()
			return
		}

		c.Set(CtxActorID, claims.ActorID)
		c.Set(CtxRegulator, claims.Regulator)
		c.Next()
	}
}

// RegulatorOnly rejects requests whose token lacks the regulator capability.
// Must run after JWTAuth.
func RegulatorOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		regulator, ok := c.Get(CtxRegulator)
		if !ok || regulator != true {
			response.Error(c, apperror.ErrRegulatorRequired())
			c.Abort()
			return
		}
		c.Next()
	}
}

// ActorID extracts the authenticated actor id set by JWTAuth.
func ActorID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(CtxActorID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString(CtxRequestID)).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error_code": "SYS_001",
					"message":    "Internal server error",
				})
			}
		}()
		c.Next()
	}
}

// MaxBodySize limits the request body to n bytes.
func MaxBodySize(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
