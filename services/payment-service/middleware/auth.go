package middleware

import (
	"net/http"
	"strings"

	"github.com/PraiaOps/PraiAtiva-sub001/services/common/auth"
	"github.com/gin-gonic/gin"
)

const PrincipalKey = "principal"

// AuthMiddleware resolves the caller from a bearer token. When trustGateway is
// set, the X-User-ID / X-User-Role headers injected by the API gateway are
// accepted as well.
func AuthMiddleware(verifier *auth.TokenVerifier, trustGateway bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			p, err := verifier.Verify(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
				return
			}
			c.Set(PrincipalKey, p)
			c.Next()
			return
		}

		if trustGateway {
			userID := c.GetHeader("X-User-ID")
			role, err := auth.ParseRole(c.GetHeader("X-User-Role"))
			if userID != "" && err == nil {
				c.Set(PrincipalKey, auth.Principal{UserID: userID, Role: role, Email: c.GetHeader("X-User-Email")})
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
}

// RequireRoles rejects principals outside roles. It must run after AuthMiddleware.
func RequireRoles(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok || !p.Is(roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}
		c.Next()
	}
}

func GetPrincipal(c *gin.Context) (auth.Principal, bool) {
	if val, exists := c.Get(PrincipalKey); exists {
		p, ok := val.(auth.Principal)
		return p, ok
	}
	return auth.Principal{}, false
}
