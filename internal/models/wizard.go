package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WizardStep enumerates the scheduling wizard stages.
type WizardStep int

const (
	WizardStepConfigure WizardStep = 0
	WizardStepPreview   WizardStep = 1
	WizardStepConfirm   WizardStep = 2
)

// String renders the step for logs and metrics labels.
func (s WizardStep) String() string {
	switch s {
	case WizardStepConfigure:
		return "configure"
	case WizardStepPreview:
		return "preview"
	case WizardStepConfirm:
		return "confirm"
	default:
		return "unknown"
	}
}

// MaxSlotsPerClass caps concurrently selected slots for one class.
const MaxSlotsPerClass = 2

// ScheduleConfig is the per-class auto-scheduling input. MinTime and MaxTime are
// derived from the selected slots and never set directly.
type ScheduleConfig struct {
	SlotIDs         []string `json:"slotIds"`
	WeekdayMask     []int    `json:"weekdayMask"`
	SessionsPerWeek int      `json:"sessionsPerWeek"`
	MinTime         float64  `json:"minTime"`
	MaxTime         float64  `json:"maxTime"`
	StartDate       string   `json:"startDate,omitempty"`
}

// HasSlot reports whether the slot is selected.
func (c ScheduleConfig) HasSlot(slotID string) bool {
	for _, id := range c.SlotIDs {
		if id == slotID {
			return true
		}
	}
	return false
}

// CandidateSession is one generated occurrence of a class.
type CandidateSession struct {
	Date       string     `json:"date"`
	Slot       Slot       `json:"slot"`
	Instructor Instructor `json:"instructor"`
	ClassID    string     `json:"classId"`
}

// PoolSelection records the pool chosen for a session and how it was chosen.
type PoolSelection struct {
	PoolID string `json:"poolId"`
	Auto   bool   `json:"auto"`
}

// PlannedSession couples a candidate session with its pool evaluation.
type PlannedSession struct {
	CandidateSession
	Pools     []PoolCandidate `json:"pools"`
	Selection *PoolSelection  `json:"selection,omitempty"`
}

// SelectedPool returns the candidate matching the current selection.
func (s PlannedSession) SelectedPool() (PoolCandidate, bool) {
	if s.Selection == nil {
		return PoolCandidate{}, false
	}
	for _, pool := range s.Pools {
		if pool.ID == s.Selection.PoolID {
			return pool, true
		}
	}
	return PoolCandidate{}, false
}

// ClassPlan holds everything the wizard knows about one selected class.
type ClassPlan struct {
	Classroom Classroom        `json:"classroom"`
	Config    ScheduleConfig   `json:"config"`
	Sessions  []PlannedSession `json:"sessions"`
}

// ClearSelections drops every pool evaluation of the class.
func (p *ClassPlan) ClearSelections() {
	for i := range p.Sessions {
		p.Sessions[i].Pools = nil
		p.Sessions[i].Selection = nil
	}
}

// Wizard is one scheduling wizard lifecycle, from open to commit or close.
// The slot catalog and instructor roster are loaded once per wizard.
type Wizard struct {
	ID                string       `json:"id"`
	TenantID          string       `json:"tenantId"`
	Step              WizardStep   `json:"step"`
	Revision          int64        `json:"revision"`
	Committing        bool         `json:"committing"`
	Classes           []ClassPlan  `json:"classes"`
	Slots             []Slot       `json:"slots"`
	Instructors       []Instructor `json:"instructors,omitempty"`
	InstructorsLoaded bool         `json:"instructorsLoaded"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
}

// Class looks up a selected class plan.
func (w *Wizard) Class(classID string) (*ClassPlan, bool) {
	for i := range w.Classes {
		if w.Classes[i].Classroom.ID == classID {
			return &w.Classes[i], true
		}
	}
	return nil, false
}

// SlotByID resolves a slot from the side-loaded catalog.
func (w *Wizard) SlotByID(id string) (Slot, bool) {
	for _, slot := range w.Slots {
		if slot.ID == id {
			return slot, true
		}
	}
	return Slot{}, false
}

// InstructorByID resolves an instructor from the cached roster.
func (w *Wizard) InstructorByID(id string) (Instructor, bool) {
	for _, instructor := range w.Instructors {
		if instructor.ID == id {
			return instructor, true
		}
	}
	return Instructor{}, false
}

// SessionKey addresses one session of one class.
type SessionKey struct {
	ClassID string
	Index   int
}

// String renders the "{classId}-{index}" wire form.
func (k SessionKey) String() string {
	return fmt.Sprintf("%s-%d", k.ClassID, k.Index)
}

// ParseSessionKey reverses String. Class ids may contain dashes.
func ParseSessionKey(raw string) (SessionKey, error) {
	pos := strings.LastIndex(raw, "-")
	if pos <= 0 || pos == len(raw)-1 {
		return SessionKey{}, fmt.Errorf("invalid session key %q", raw)
	}
	index, err := strconv.Atoi(raw[pos+1:])
	if err != nil || index < 0 {
		return SessionKey{}, fmt.Errorf("invalid session key %q", raw)
	}
	return SessionKey{ClassID: raw[:pos], Index: index}, nil
}

// DuplicateConflictSet holds sessions sharing a date, slot and instructor.
type DuplicateConflictSet map[SessionKey]struct{}

// Has reports membership.
func (s DuplicateConflictSet) Has(key SessionKey) bool {
	_, ok := s[key]
	return ok
}

// BackendCredentials are forwarded verbatim to the remote API.
type BackendCredentials struct {
	TenantID string
	Token    string
}

// CommitResult summarises a successful commit.
type CommitResult struct {
	WizardID       string          `json:"wizardId"`
	TenantID       string          `json:"tenantId"`
	ClassIDs       []string        `json:"classIds"`
	Tuples         []ScheduleTuple `json:"tuples"`
	AutoSelected   int             `json:"autoSelected"`
	ManualSelected int             `json:"manualSelected"`
	CommittedAt    time.Time       `json:"committedAt"`
}
