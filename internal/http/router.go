package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	authH *AuthHandler,
	semsH *SEMSHandler,
	verifier TokenVerifier,
) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/register", authH.Register)
	r.POST("/verify-email", authH.VerifyEmail)
	r.POST("/login", authH.Login)
	r.POST("/forgot-password", authH.ForgotPassword)
	r.POST("/reset-password", authH.ResetPassword)

	requireAuth := JWTAuthMiddleware(verifier)
	r.GET("/protected", requireAuth, authH.Protected)

	goodwe := r.Group("/api/goodwe", requireAuth)
	goodwe.POST("/sems-login", semsH.Login)
	goodwe.POST("/data", semsH.Data)
	goodwe.GET("/powerstation/:id/status", semsH.StationStatus)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
