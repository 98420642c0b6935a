package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/swim-scheduler-api/internal/models"
)

func plannedSession(date string, slot models.Slot, instructor models.Instructor) models.PlannedSession {
	return models.PlannedSession{CandidateSession: models.CandidateSession{Date: date, Slot: slot, Instructor: instructor}}
}

func TestDetectDuplicatesAcrossClasses(t *testing.T) {
	s1 := models.Slot{ID: "s1"}
	ana := models.Instructor{ID: "i1"}
	classes := []models.ClassPlan{
		{
			Classroom: models.Classroom{ID: "c1"},
			Sessions: []models.PlannedSession{
				plannedSession("2025-01-06", s1, ana),
				plannedSession("2025-01-08", s1, ana),
			},
		},
		{
			Classroom: models.Classroom{ID: "c2"},
			Sessions: []models.PlannedSession{
				plannedSession("2025-01-06", s1, ana),
				plannedSession("2025-01-06", s1, models.Instructor{ID: "i2"}),
			},
		},
	}

	duplicates := detectDuplicates(classes)
	assert.Len(t, duplicates, 2)
	assert.True(t, duplicates.Has(models.SessionKey{ClassID: "c1", Index: 0}))
	assert.True(t, duplicates.Has(models.SessionKey{ClassID: "c2", Index: 0}))
	assert.False(t, duplicates.Has(models.SessionKey{ClassID: "c1", Index: 1}))
	assert.False(t, duplicates.Has(models.SessionKey{ClassID: "c2", Index: 1}))

	assert.Equal(t, duplicates, detectDuplicates(classes))
}

func TestSessionSignatureFallbacks(t *testing.T) {
	withIDs := models.CandidateSession{
		Date:       "2025-01-06",
		Slot:       models.Slot{ID: "s1", Title: "Early", StartTime: 7},
		Instructor: models.Instructor{ID: "i1", Username: "ana"},
	}
	assert.Equal(t, "2025-01-06::s1::i1", sessionSignature(withIDs))

	withoutIDs := models.CandidateSession{
		Date:       "2025-01-06",
		Slot:       models.Slot{Title: "Early", StartTime: 7},
		Instructor: models.Instructor{Username: "Ana"},
	}
	assert.Equal(t, "2025-01-06::early@7::ana", sessionSignature(withoutIDs))
}

func TestDetectDuplicatesUsesFallbackSignature(t *testing.T) {
	slot := models.Slot{Title: "Early", StartTime: 7}
	classes := []models.ClassPlan{{
		Classroom: models.Classroom{ID: "c1"},
		Sessions: []models.PlannedSession{
			plannedSession("2025-01-06", slot, models.Instructor{Username: "ana"}),
			plannedSession("2025-01-06", slot, models.Instructor{Username: "ana"}),
			plannedSession("2025-01-06", models.Slot{Title: "Early", StartTime: 8}, models.Instructor{Username: "ana"}),
		},
	}}
	duplicates := detectDuplicates(classes)
	assert.Len(t, duplicates, 2)
	assert.False(t, duplicates.Has(models.SessionKey{ClassID: "c1", Index: 2}))
}

func TestDetectDuplicatesEmpty(t *testing.T) {
	assert.Empty(t, detectDuplicates(nil))
}
