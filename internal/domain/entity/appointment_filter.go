package entity

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentFilter narrows the admin appointment listing. Zero fields are ignored.
type AppointmentFilter struct {
	DoctorID *uuid.UUID
	From     *time.Time // inclusive
	To       *time.Time // inclusive
	Status   AppointmentStatus
}
