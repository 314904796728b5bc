package entity

import (
	"time"

	"github.com/google/uuid"
)

// ScheduleFilter is a domain-level filter for querying schedules.
// Used by repository layer to avoid coupling with delivery DTOs.
type ScheduleFilter struct {
	DoctorIDs []uuid.UUID
	From      *time.Time // inclusive
	To        *time.Time // inclusive
}
