package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/swim-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/swim-scheduler-api/pkg/errors"
	"github.com/noah-isme/swim-scheduler-api/pkg/logger"
	"github.com/noah-isme/swim-scheduler-api/pkg/response"
)

// ContextCredentialsKey is the gin context key storing the backend credentials.
const ContextCredentialsKey = "backendCredentials"

// BackendCredentials extracts the tenant header and bearer token that are
// forwarded to the scheduling backend. The token is opaque here; the backend
// decides whether it is valid.
func BackendCredentials() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := strings.TrimSpace(c.GetHeader(logger.TenantHeader))
		if tenant == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "missing "+logger.TenantHeader+" header"))
			c.Abort()
			return
		}

		var token string
		if header := c.GetHeader("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
				c.Abort()
				return
			}
			token = strings.TrimSpace(parts[1])
		}

		c.Set(ContextCredentialsKey, models.BackendCredentials{TenantID: tenant, Token: token})
		c.Next()
	}
}

// CredentialsFromContext returns the credentials stored by BackendCredentials.
func CredentialsFromContext(c *gin.Context) (models.BackendCredentials, bool) {
	value, exists := c.Get(ContextCredentialsKey)
	if !exists {
		return models.BackendCredentials{}, false
	}
	creds, ok := value.(models.BackendCredentials)
	return creds, ok
}
