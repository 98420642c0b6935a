package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/swim-scheduler-api/internal/dto"
	"github.com/noah-isme/swim-scheduler-api/internal/models"
	"github.com/noah-isme/swim-scheduler-api/internal/service"
	appErrors "github.com/noah-isme/swim-scheduler-api/pkg/errors"
	"github.com/noah-isme/swim-scheduler-api/pkg/response"
)

type wizardWorkflow interface {
	Open(ctx context.Context, creds models.BackendCredentials) (*dto.WizardResponse, error)
	Get(ctx context.Context, creds models.BackendCredentials, id string) (*dto.WizardResponse, error)
	Close(ctx context.Context, creds models.BackendCredentials, id string) error
	SelectClass(ctx context.Context, creds models.BackendCredentials, id string, req dto.SelectClassRequest) (*dto.WizardResponse, error)
	DeselectClass(ctx context.Context, creds models.BackendCredentials, id, classID string) (*dto.WizardResponse, error)
	ToggleSlot(ctx context.Context, creds models.BackendCredentials, id, classID, slotID string) (*dto.WizardResponse, error)
	ToggleWeekday(ctx context.Context, creds models.BackendCredentials, id, classID string, day int) (*dto.WizardResponse, error)
	SetStartDate(ctx context.Context, creds models.BackendCredentials, id, classID string, req dto.SetStartDateRequest) (*dto.WizardResponse, error)
	Advance(ctx context.Context, creds models.BackendCredentials, id string) (*dto.WizardResponse, error)
	Retreat(ctx context.Context, creds models.BackendCredentials, id string) (*dto.WizardResponse, error)
	Instructors(ctx context.Context, creds models.BackendCredentials, id string) ([]models.Instructor, error)
	EditSession(ctx context.Context, creds models.BackendCredentials, id string, key models.SessionKey, req dto.EditSessionRequest) (*dto.WizardResponse, error)
	SelectPool(ctx context.Context, creds models.BackendCredentials, id string, key models.SessionKey, req dto.SelectPoolRequest) (*dto.WizardResponse, error)
	Commit(ctx context.Context, creds models.BackendCredentials, id string) (*dto.CommitResponse, error)
}

type previewExporter interface {
	Export(ctx context.Context, creds models.BackendCredentials, id string, query dto.ExportQuery) (*service.ExportResult, error)
}

// WizardHandler exposes the scheduling wizard endpoints.
type WizardHandler struct {
	wizards  wizardWorkflow
	exporter previewExporter
}

// NewWizardHandler constructs the handler.
func NewWizardHandler(wizards wizardWorkflow, exporter previewExporter) *WizardHandler {
	return &WizardHandler{wizards: wizards, exporter: exporter}
}

// Register mounts the wizard routes on the group.
func (h *WizardHandler) Register(rg *gin.RouterGroup) {
	wizards := rg.Group("/schedule-wizards")
	wizards.POST("", h.Open)
	wizards.GET("/:id", h.Get)
	wizards.DELETE("/:id", h.Close)
	wizards.POST("/:id/classes", h.SelectClass)
	wizards.DELETE("/:id/classes/:classId", h.DeselectClass)
	wizards.POST("/:id/classes/:classId/slots/:slotId/toggle", h.ToggleSlot)
	wizards.POST("/:id/classes/:classId/weekdays/:day/toggle", h.ToggleWeekday)
	wizards.PUT("/:id/classes/:classId/start-date", h.SetStartDate)
	wizards.POST("/:id/advance", h.Advance)
	wizards.POST("/:id/retreat", h.Retreat)
	wizards.GET("/:id/instructors", h.Instructors)
	wizards.PUT("/:id/classes/:classId/sessions/:index", h.EditSession)
	wizards.PUT("/:id/classes/:classId/sessions/:index/pool", h.SelectPool)
	wizards.GET("/:id/export", h.Export)
	wizards.POST("/:id/commit", h.Commit)
}

// Open godoc
// @Summary Open a scheduling wizard
// @Description Loads the slot catalog and starts a wizard on the configuration step.
// @Tags Schedule Wizard
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Success 201 {object} response.Envelope
// @Router /schedule-wizards [post]
func (h *WizardHandler) Open(c *gin.Context) {
	creds, ok := credentialsFromContext(c)
	if !ok {
		return
	}
	result, err := h.wizards.Open(c.Request.Context(), creds)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Get godoc
// @Summary Get wizard snapshot
// @Description Includes duplicate session keys and, after preview, the gate status.
// @Tags Schedule Wizard
// @Produce json
// @Param id path string true "Wizard ID"
// @Success 200 {object} response.Envelope
// @Router /schedule-wizards/{id} [get]
func (h *WizardHandler) Get(c *gin.Context) {
	h.respond(c, func(ctx context.Context, creds models.BackendCredentials) (*dto.WizardResponse, error) {
		return h.wizards.Get(ctx, creds, c.Param("id"))
	})
}

// Close godoc
// @Summary Close a wizard and discard its state
// @Tags Schedule Wizard
// @Param id path string true "Wizard ID"
// @Success 204
// @Router /schedule-wizards/{id} [delete]
func (h *WizardHandler) Close(c *gin.Context) {
	creds, ok := credentialsFromContext(c)
	if !ok {
		return
	}
	if err := h.wizards.Close(c.Request.Context(), creds, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SelectClass godoc
// @Summary Add a class to the wizard
// @Tags Schedule Wizard
// @Accept json
// @Produce json
// @Param id path string true "Wizard ID"
// @Param payload body dto.SelectClassRequest true "Class"
// @Success 200 {object} response.Envelope
// @Router /schedule-wizards/{id}/classes [post]
func (h *WizardHandler) SelectClass(c *gin.Context) {
	var req dto.SelectClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid class payload"))
		return
	}
	h.respond(c, func(ctx context.Context, creds models.BackendCredentials) (*dto.WizardResponse, error) {
		return h.wizards.SelectClass(ctx, creds, c.Param("id"), req)
	})
}

// DeselectClass godoc
// @Summary Remove a class from the wizard
// @Tags Schedule Wizard
// @Produce json
// @Param id path string true "Wizard ID"
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /schedule-wizards/{id}/classes/{classId} [delete]
func (h *WizardHandler) DeselectClass(c *gin.Context) {
	h.respond(c, func(ctx context.Context, creds models.BackendCredentials) (*dto.WizardResponse, error) {
		return h.wizards.DeselectClass(ctx, creds, c.Param("id"), c.Param("classId"))
	})
}

// ToggleSlot godoc
// @Summary Toggle a slot for a class
// @Description At most two slots may be selected per class.
// @Tags Schedule Wizard
// @Produce json
// @Param id path string true "Wizard ID"
// @Param classId path string true "Class ID"
// @Param slotId path string true "Slot ID"
// @Success 200 {object} response.Envelope
// @Router /schedule-wizards/{id}/classes/{classId}/slots/{slotId}/toggle [post]
func (h *WizardHandler) ToggleSlot(c *gin.Context) {
	h.respond(c, func(ctx context.Context, creds models.BackendCredentials) (*dto.WizardResponse, error) {
		return h.wizards.ToggleSlot(ctx, creds, c.Param("id"), c.Param("classId"), c.Param("slotId"))
	})
}

// ToggleWeekday godoc
// @Summary Toggle a weekday for a class
// @Tags Schedule Wizard
// @Produce json
// @Param id path string true "Wizard ID"
// @Param classId path string true "Class ID"
// @Param day path int true "Weekday, 0 is Sunday"
// @Success 200 {object} response.Envelope
// @Router /schedule-wizards/{id}/classes/{classId}/weekdays/{day}/toggle [post]
func (h *WizardHandler) ToggleWeekday(c *gin.Context) {
	day, err := strconv.Atoi(c.Param("day"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "weekday must be an integer between 0 and 6"))
		return
	}
	h.respond(c, func(ctx context.Context, creds models.BackendCredentials) (*dto.WizardResponse, error) {
		return h.wizards.ToggleWeekday(ctx, creds, c.Param("id"), c.Param("classId"), day)
	})
}

// SetStartDate godoc
// @Summary Set the first schedulable date of a class
// @Tags Schedule Wizard
// @Accept json
// @Produce json
// @Param id path string true "Wizard ID"
// @Param classId path string true "Class ID"
// @Param payload body dto.SetStartDateRequest true "Start date"
// @Success 200 {object} response.Envelope
// @Router /schedule-wizards/{id}/classes/{classId}/start-date [put]
func (h *WizardHandler) SetStartDate(c *gin.Context) {
	var req dto.SetStartDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid start date payload"))
		return
	}
	h.respond(c, func(ctx context.Context, creds models.BackendCredentials) (*dto.WizardResponse, error) {
		return h.wizards.SetStartDate(ctx, creds, c.Param("id"), c.Param("classId"), req)
	})
}

// Advance godoc
// @Summary Move the wizard to the next step
// @Description Configuration generates the preview and resolves pools; preview requires every session to be clear of warnings.
// @Tags Schedule Wizard
// @Produce json
// @Param id path string true "Wizard ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /schedule-wizards/{id}/advance [post]
func (h *WizardHandler) Advance(c *gin.Context) {
	h.respond(c, func(ctx context.Context, creds models.BackendCredentials) (*dto.WizardResponse, error) {
		return h.wizards.Advance(ctx, creds, c.Param("id"))
	})
}

// Retreat godoc
// @Summary Move the wizard to the previous step
// @Tags Schedule Wizard
// @Produce json
// @Param id path string true "Wizard ID"
// @Success 200 {object} response.Envelope
// @Router /schedule-wizards/{id}/retreat [post]
func (h *WizardHandler) Retreat(c *gin.Context) {
	h.respond(c, func(ctx context.Context, creds models.BackendCredentials) (*dto.WizardResponse, error) {
		return h.wizards.Retreat(ctx, creds, c.Param("id"))
	})
}

// Instructors godoc
// @Summary List instructors available for manual edits
// @Tags Schedule Wizard
// @Produce json
// @Param id path string true "Wizard ID"
// @Success 200 {object} response.Envelope
// @Router /schedule-wizards/{id}/instructors [get]
func (h *WizardHandler) Instructors(c *gin.Context) {
	creds, ok := credentialsFromContext(c)
	if !ok {
		return
	}
	instructors, err := h.wizards.Instructors(c.Request.Context(), creds, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instructors, nil)
}

// EditSession godoc
// @Summary Edit the date, slot or instructor of a generated session
// @Description Pools of the class are re-resolved after the edit.
// @Tags Schedule Wizard
// @Accept json
// @Produce json
// @Param id path string true "Wizard ID"
// @Param classId path string true "Class ID"
// @Param index path int true "Session index"
// @Param payload body dto.EditSessionRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /schedule-wizards/{id}/classes/{classId}/sessions/{index} [put]
func (h *WizardHandler) EditSession(c *gin.Context) {
	key, ok := sessionKeyParam(c)
	if !ok {
		return
	}
	var req dto.EditSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}
	h.respond(c, func(ctx context.Context, creds models.BackendCredentials) (*dto.WizardResponse, error) {
		return h.wizards.EditSession(ctx, creds, c.Param("id"), key, req)
	})
}

// SelectPool godoc
// @Summary Choose a pool for a session manually
// @Tags Schedule Wizard
// @Accept json
// @Produce json
// @Param id path string true "Wizard ID"
// @Param classId path string true "Class ID"
// @Param index path int true "Session index"
// @Param payload body dto.SelectPoolRequest true "Pool"
// @Success 200 {object} response.Envelope
// @Router /schedule-wizards/{id}/classes/{classId}/sessions/{index}/pool [put]
func (h *WizardHandler) SelectPool(c *gin.Context) {
	key, ok := sessionKeyParam(c)
	if !ok {
		return
	}
	var req dto.SelectPoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid pool payload"))
		return
	}
	h.respond(c, func(ctx context.Context, creds models.BackendCredentials) (*dto.WizardResponse, error) {
		return h.wizards.SelectPool(ctx, creds, c.Param("id"), key, req)
	})
}

// Export godoc
// @Summary Download the generated preview
// @Tags Schedule Wizard
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Wizard ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /schedule-wizards/{id}/export [get]
func (h *WizardHandler) Export(c *gin.Context) {
	creds, ok := credentialsFromContext(c)
	if !ok {
		return
	}
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "format must be csv or pdf"))
		return
	}
	result, err := h.exporter.Export(c.Request.Context(), creds, c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Body)
}

// Commit godoc
// @Summary Persist the confirmed sessions
// @Tags Schedule Wizard
// @Produce json
// @Param id path string true "Wizard ID"
// @Success 201 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /schedule-wizards/{id}/commit [post]
func (h *WizardHandler) Commit(c *gin.Context) {
	creds, ok := credentialsFromContext(c)
	if !ok {
		return
	}
	result, err := h.wizards.Commit(c.Request.Context(), creds, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

func (h *WizardHandler) respond(c *gin.Context, call func(ctx context.Context, creds models.BackendCredentials) (*dto.WizardResponse, error)) {
	creds, ok := credentialsFromContext(c)
	if !ok {
		return
	}
	result, err := call(c.Request.Context(), creds)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
