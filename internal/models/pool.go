package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// AgeTypeMixed marks pools open to every age group.
const AgeTypeMixed = "mixed"

// AgeTypes is the set of age groups a pool accepts. The backend sends either a
// comma separated string or an array.
type AgeTypes []string

// UnmarshalJSON normalises both encodings to lower-case entries.
func (a *AgeTypes) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = nil
		return nil
	}
	var items []string
	if data[0] == '[' {
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
	} else {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		items = strings.Split(raw, ",")
	}
	result := make(AgeTypes, 0, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			result = append(result, item)
		}
	}
	*a = result
	return nil
}

// Mixed reports whether the pool bypasses the age check.
func (a AgeTypes) Mixed() bool {
	return a.Contains(AgeTypeMixed)
}

// Contains performs a case-insensitive membership test.
func (a AgeTypes) Contains(ageType string) bool {
	ageType = strings.ToLower(strings.TrimSpace(ageType))
	for _, item := range a {
		if item == ageType {
			return true
		}
	}
	return false
}

// Pool is a physical swimming pool as returned by the availability query.
type Pool struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Capacity          int      `json:"capacity"`
	RemainingCapacity int      `json:"remainingCapacity"`
	AgeType           AgeTypes `json:"ageType"`
}

// PoolCandidate is a pool evaluated against one session.
type PoolCandidate struct {
	Pool
	HasAgeWarning         bool    `json:"hasAgeWarning"`
	HasInstructorConflict bool    `json:"hasInstructorConflict"`
	HasCapacityWarning    bool    `json:"hasCapacityWarning"`
	Score                 float64 `json:"score"`
}

// Clean reports whether the candidate carries no warning at all.
func (c PoolCandidate) Clean() bool {
	return !c.HasAgeWarning && !c.HasInstructorConflict && !c.HasCapacityWarning
}

// PoolQuery identifies one session in an availability lookup.
type PoolQuery struct {
	Date string `json:"date"`
	Slot string `json:"slot"`
}
