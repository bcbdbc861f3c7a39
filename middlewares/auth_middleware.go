// middlewares/auth_middleware.go
package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/sopt-makers/sopt-push-notification/models"
)

// AuthMiddleware validates the calling service's bearer token. When no
// secret is configured the check is disabled, matching deployments that
// terminate auth in front of the service.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewFailResponse(http.StatusUnauthorized, "Authorization header required"))
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewFailResponse(http.StatusUnauthorized, "invalid token"))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewFailResponse(http.StatusUnauthorized, "invalid claims"))
			return
		}

		// The token must name a known calling service and match the
		// service header it accompanies.
		service, _ := claims["service"].(string)
		if !models.ValidService(service) || service != c.GetHeader("service") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewFailResponse(http.StatusUnauthorized, "service claim mismatch"))
			return
		}

		c.Next()
	}
}
