package middleware

import (
	"net/http"

	"github.com/fluentprep/fluentprep/internal/guard"
	"github.com/fluentprep/fluentprep/internal/identity"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Context keys for storing request-scoped values
const (
	ContextKeyRequestID = "request_id"
	ContextKeyIdentity  = "identity"
)

// RequestID adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// CORS applies the secure CORS header set to every response and answers
// preflight requests with headers only
func CORS(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		for name, value := range guard.SecureCORSHeaders(origin, allowedOrigins) {
			c.Header(name, value)
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequireAuth resolves the caller's identity from the Authorization
// header and rejects the request when resolution fails. All guarded
// endpoints respond to auth failure with the same 401 body.
func RequireAuth(resolver *identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := resolver.Verify(c.Request.Context(), c.GetHeader("Authorization"))
		if !ident.IsValid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Authentication required. Please log in first.",
			})
			return
		}

		c.Set(ContextKeyIdentity, ident)
		c.Next()
	}
}

// IdentityFromContext extracts the resolved identity from the gin
// context. The zero Identity is returned when RequireAuth did not run.
func IdentityFromContext(c *gin.Context) identity.Identity {
	value, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return identity.Identity{}
	}
	return value.(identity.Identity)
}

// RequestIDFromContext extracts the request ID from the gin context
func RequestIDFromContext(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}
