package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/swim-scheduler-api/internal/models"
)

// sessionSignature identifies a teaching occurrence: date, slot and instructor.
// Ids are preferred; slot title+start and instructor username stand in when
// the backend omitted them.
func sessionSignature(session models.CandidateSession) string {
	slotKey := session.Slot.ID
	if slotKey == "" {
		slotKey = fmt.Sprintf("%s@%d", strings.ToLower(session.Slot.Title), session.Slot.StartTime)
	}
	instructorKey := session.Instructor.ID
	if instructorKey == "" {
		instructorKey = strings.ToLower(session.Instructor.Username)
	}
	return session.Date + "::" + slotKey + "::" + instructorKey
}

// detectDuplicates marks every session whose signature is shared with another
// session of any class. It is pure and idempotent.
func detectDuplicates(classes []models.ClassPlan) models.DuplicateConflictSet {
	groups := make(map[string][]models.SessionKey)
	for _, plan := range classes {
		for i, session := range plan.Sessions {
			sig := sessionSignature(session.CandidateSession)
			groups[sig] = append(groups[sig], models.SessionKey{ClassID: plan.Classroom.ID, Index: i})
		}
	}
	duplicates := make(models.DuplicateConflictSet)
	for _, keys := range groups {
		if len(keys) < 2 {
			continue
		}
		for _, key := range keys {
			duplicates[key] = struct{}{}
		}
	}
	return duplicates
}
