package models

// ExistingSchedule is a schedule entry already persisted by the backend.
type ExistingSchedule struct {
	ID         string    `json:"id"`
	Date       string    `json:"date"`
	Slot       EntityRef `json:"slot"`
	Instructor EntityRef `json:"instructor"`
	Pool       EntityRef `json:"pool"`
	Classroom  EntityRef `json:"classroom"`
}

// AutoScheduleRequest asks the backend to lay out the sessions of one class.
// Days use the backend's relative encoding counted from the start date.
type AutoScheduleRequest struct {
	Classroom       string  `json:"classroom"`
	MinTime         float64 `json:"minTime"`
	MaxTime         float64 `json:"maxTime"`
	SessionsPerWeek int     `json:"sessionsPerWeek"`
	Days            []int   `json:"days"`
	StartDate       string  `json:"startDate"`
}

// RawPreviewSession is a generated session before enrichment.
type RawPreviewSession struct {
	Date       string    `json:"date"`
	Slot       EntityRef `json:"slot"`
	Instructor EntityRef `json:"instructor"`
}

// ScheduleTuple is one row of the schedule creation request.
type ScheduleTuple struct {
	Date       string `json:"date"`
	Slot       string `json:"slot"`
	Classroom  string `json:"classroom"`
	Instructor string `json:"instructor"`
	Pool       string `json:"pool"`
}
