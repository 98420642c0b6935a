package models

// Slot is a named teaching period of the day. End fields use the backend's
// fixed-point convention where minutes are read as hundredths of an hour.
type Slot struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	StartTime   int    `json:"startTime"`
	StartMinute int    `json:"startMinute"`
	EndTime     int    `json:"endTime"`
	EndMinute   int    `json:"endMinute"`
}

// StartValue is the lower bound contributed to a class time window.
func (s Slot) StartValue() float64 {
	return float64(s.StartTime)
}

// EndValue is endTime + endMinute/100, so 8:45 becomes 8.45.
func (s Slot) EndValue() float64 {
	return float64(s.EndTime) + float64(s.EndMinute)/100
}

// Instructor is a staff member able to teach sessions.
type Instructor struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName,omitempty"`
}

// Course carries the enrolment limits shared by its classes.
type Course struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	MaxMember int    `json:"maxMember"`
	AgeType   string `json:"ageType"`
}

// Classroom is a scheduled class instance, not a physical room.
type Classroom struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Course Course `json:"course"`
}

// DisplayName is used in operator-facing messages.
func (c Classroom) DisplayName() string {
	if c.Title != "" {
		return c.Title
	}
	return c.ID
}

// AgeType returns the age group the class is taught to.
func (c Classroom) AgeType() string {
	return c.Course.AgeType
}

// Placeholder title used when a reference cannot be resolved.
const UnresolvedTitle = "N/A"

// UnresolvedSlot is the sentinel used for unknown slot ids.
func UnresolvedSlot(id string) Slot {
	return Slot{ID: id, Title: UnresolvedTitle}
}

// UnresolvedInstructor is the sentinel used for unknown instructor ids.
func UnresolvedInstructor(id string) Instructor {
	return Instructor{ID: id, Username: UnresolvedTitle}
}
