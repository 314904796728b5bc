package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// RecommendationKind tells why a slot was suggested
type RecommendationKind string

const (
	RecommendationSameDoctor         RecommendationKind = "same_doctor"
	RecommendationSameSpecialization RecommendationKind = "same_specialization"
)

// Recommendation is an alternative bookable slot offered after a cancellation
type Recommendation struct {
	Kind           RecommendationKind `json:"kind"`
	DoctorID       uuid.UUID          `json:"doctor_id"`
	DoctorName     string             `json:"doctor_name"`
	Specialization string             `json:"specialization"`
	ScheduleID     int                `json:"schedule_id"`
	Date           string             `json:"date"`       // YYYY-MM-DD
	StartTime      string             `json:"start_time"` // HH:MM
	EndTime        string             `json:"end_time"`   // HH:MM
}

// RecommendationList is stored as a JSONB array on notifications
type RecommendationList []Recommendation

// Value implements driver.Valuer. An empty list is stored as [] rather than NULL.
func (l RecommendationList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner
func (l *RecommendationList) Scan(value interface{}) error {
	if value == nil {
		*l = RecommendationList{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to unmarshal recommendations: unsupported type %T", value)
	}

	result := RecommendationList{}
	if err := json.Unmarshal(bytes, &result); err != nil {
		return err
	}
	*l = result
	return nil
}
