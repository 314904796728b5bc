package converter

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"caqm-backend/internal/domain/entity"

	"github.com/google/uuid"
)

func TestNotificationToResponse_EmptyRecommendationsSerializeAsArray(t *testing.T) {
	resp := NotificationToResponse(&entity.Notification{
		ID:      uuid.New(),
		Type:    entity.NotificationTypeAppointmentCancelled,
		Title:   "Appointment cancelled",
		Message: "No alternative appointments are available in the next 14 days.",
	})

	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"recommendations":[]`) {
		t.Fatalf("expected empty array, got %s", raw)
	}
}

func TestAppointmentToResponse_NormalizesClockAndSkipsUnloadedDoctor(t *testing.T) {
	resp := AppointmentToResponse(&entity.Appointment{
		ID:              uuid.New(),
		AppointmentDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		StartTime:       "09:00:00",
		EndTime:         "09:30:00",
		Status:          entity.AppointmentStatusScheduled,
	})

	if resp.AppointmentDate != "2026-03-02" || resp.StartTime != "09:00" || resp.EndTime != "09:30" {
		t.Fatalf("unexpected formatting: %+v", resp)
	}
	if resp.Doctor != nil {
		t.Fatalf("expected no doctor, got %+v", resp.Doctor)
	}
}
