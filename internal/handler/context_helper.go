package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/swim-scheduler-api/internal/middleware"
	"github.com/noah-isme/swim-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/swim-scheduler-api/pkg/errors"
	"github.com/noah-isme/swim-scheduler-api/pkg/logger"
	"github.com/noah-isme/swim-scheduler-api/pkg/response"
)

// credentialsFromContext falls back to the raw headers when the credentials
// middleware is not mounted, and writes the error response itself.
func credentialsFromContext(c *gin.Context) (models.BackendCredentials, bool) {
	if creds, ok := middleware.CredentialsFromContext(c); ok {
		return creds, true
	}
	tenant := c.GetHeader(logger.TenantHeader)
	if tenant == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "missing "+logger.TenantHeader+" header"))
		return models.BackendCredentials{}, false
	}
	return models.BackendCredentials{TenantID: tenant}, true
}

func sessionKeyParam(c *gin.Context) (models.SessionKey, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "session index must be a non-negative integer"))
		return models.SessionKey{}, false
	}
	return models.SessionKey{ClassID: c.Param("classId"), Index: index}, true
}
