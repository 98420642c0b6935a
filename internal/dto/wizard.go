package dto

import "github.com/noah-isme/swim-scheduler-api/internal/models"

// SelectClassRequest adds a class to the wizard.
type SelectClassRequest struct {
	ClassID string `json:"classId" validate:"required"`
}

// SetStartDateRequest sets the first date a class may be scheduled on.
type SetStartDateRequest struct {
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
}

// EditSessionRequest overrides fields of one previewed session. Omitted fields
// keep their current value.
type EditSessionRequest struct {
	Date         *string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	SlotID       *string `json:"slotId,omitempty" validate:"omitempty,min=1"`
	InstructorID *string `json:"instructorId,omitempty" validate:"omitempty,min=1"`
}

// Empty reports whether the edit changes nothing.
func (r EditSessionRequest) Empty() bool {
	return r.Date == nil && r.SlotID == nil && r.InstructorID == nil
}

// SelectPoolRequest manually picks a pool for a session.
type SelectPoolRequest struct {
	PoolID string `json:"poolId" validate:"required"`
}

// ExportQuery selects the export encoding.
type ExportQuery struct {
	Format string `form:"format" json:"format" validate:"omitempty,oneof=csv pdf"`
}

// GateIssue explains why a session blocks the preview to confirm transition.
type GateIssue struct {
	Key     string   `json:"key"`
	Reasons []string `json:"reasons"`
}

// GateStatus reports whether every session is ready to be committed.
type GateStatus struct {
	Ready  bool        `json:"ready"`
	Issues []GateIssue `json:"issues"`
}

// WizardResponse is the full wizard view returned by every wizard endpoint.
type WizardResponse struct {
	Wizard     models.Wizard `json:"wizard"`
	StepName   string        `json:"stepName"`
	Duplicates []string      `json:"duplicates"`
	Gate       *GateStatus   `json:"gate,omitempty"`
}

// CommitResponse summarises a committed wizard.
type CommitResponse struct {
	WizardID       string   `json:"wizardId"`
	ClassIDs       []string `json:"classIds"`
	Sessions       int      `json:"sessions"`
	AutoSelected   int      `json:"autoSelected"`
	ManualSelected int      `json:"manualSelected"`
}

// CommitLogQuery paginates the commit history.
type CommitLogQuery struct {
	Page     int `form:"page" json:"page" validate:"omitempty,min=1"`
	PageSize int `form:"pageSize" json:"pageSize" validate:"omitempty,min=1,max=100"`
}
