package validator

import "testing"

type sampleRequest struct {
	Reason     string `json:"reason" validate:"required,max=10"`
	Date       string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	StartTime  string `json:"start_time" validate:"required,datetime=15:04"`
	TotalQuota int    `json:"total_quota" validate:"min=1"`
}

func TestFormatValidationErrors_UsesJSONNames(t *testing.T) {
	v := NewValidator()
	err := v.Validate(&sampleRequest{
		Reason:    "far too long a reason",
		Date:      "02/03/2026",
		StartTime: "9am",
	})
	if err == nil {
		t.Fatal("expected validation error")
	}

	got := v.FormatValidationErrors(err)
	want := map[string]string{
		"reason":      "reason must be at most 10 characters",
		"date":        "date must match the format YYYY-MM-DD",
		"start_time":  "start_time must match the format HH:MM",
		"total_quota": "total_quota must be at least 1",
	}
	for field, msg := range want {
		if got[field] != msg {
			t.Errorf("%s: expected %q, got %q", field, msg, got[field])
		}
	}
}

func TestValidate_AcceptsWellFormedRequest(t *testing.T) {
	v := NewValidator()
	err := v.Validate(&sampleRequest{Reason: "ill", Date: "2026-03-02", StartTime: "09:30", TotalQuota: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
