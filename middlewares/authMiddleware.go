package middlewares

import (
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/supplychain_backend/utils"
	"github.com/gin-gonic/gin"
)

// AuthMiddleware resolves the caller's ledger address from a Bearer token and
// attaches it to the request context. Requests without a token pass through;
// operations that need a caller identity reject them downstream.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")

		if auth == "" {
			c.Next()
			return
		}

		bearer := "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		auth = auth[len(bearer):]

		validate, err := utils.JwtValidate(auth)
		if err != nil || !validate.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		customClaim, ok := validate.Claims.(*utils.JwtCustomClaim)
		if !ok || customClaim.Address == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), auth)
		ctx = utils.SetCallerAddressInContext(ctx, customClaim.Address)
		if customClaim.Name != "" {
			ctx = utils.SetCallerNameInContext(ctx, customClaim.Name)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
