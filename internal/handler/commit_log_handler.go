package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/swim-scheduler-api/internal/dto"
	"github.com/noah-isme/swim-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/swim-scheduler-api/pkg/errors"
	"github.com/noah-isme/swim-scheduler-api/pkg/response"
)

type commitLogLister interface {
	List(ctx context.Context, tenantID string, query dto.CommitLogQuery) ([]models.CommitLog, *models.Pagination, error)
}

// CommitLogHandler exposes the committed wizard history.
type CommitLogHandler struct {
	service commitLogLister
}

// NewCommitLogHandler constructs the handler.
func NewCommitLogHandler(svc commitLogLister) *CommitLogHandler {
	return &CommitLogHandler{service: svc}
}

// List godoc
// @Summary List committed wizards of the tenant
// @Tags Schedule Wizard
// @Produce json
// @Param page query int false "Page"
// @Param pageSize query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope
// @Router /schedule-commits [get]
func (h *CommitLogHandler) List(c *gin.Context) {
	creds, ok := credentialsFromContext(c)
	if !ok {
		return
	}
	var query dto.CommitLogQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid pagination query"))
		return
	}
	logs, pagination, err := h.service.List(c.Request.Context(), creds.TenantID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}
