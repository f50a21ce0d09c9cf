package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"goodwe-gateway/internal/service"
)

const authClaimsKey = "auth_claims"

// TokenVerifier valida tokens de sesión.
type TokenVerifier interface {
	Verify(token string) (service.Claims, error)
}

// JWTAuthMiddleware valida el bearer token y guarda los claims en el contexto.
// Sin token responde 401; con token inválido o vencido, 403.
func JWTAuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "authentication not configured"})
			return
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "authentication token not provided"})
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "invalid authentication token"})
			return
		}

		c.Set(authClaimsKey, claims)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < len("bearer ") || !strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("bearer "):])
	return token, token != ""
}

// GetAuthClaims obtiene claims de JWT desde el contexto.
func GetAuthClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}
