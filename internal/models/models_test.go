package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"field-review/backend/internal/models"
)

func TestTaskID_UnmarshalNumberAndString(t *testing.T) {
	var tasks []models.Task
	data := `[{"id": 12, "title": "a", "category": "Door To Door"},
		{"id": "t-7", "title": "b", "category": "Door To Door"}]`

	if err := json.Unmarshal([]byte(data), &tasks); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if tasks[0].ID != "12" {
		t.Errorf("Expected id '12', got '%s'", tasks[0].ID)
	}

	if tasks[1].ID != "t-7" {
		t.Errorf("Expected id 't-7', got '%s'", tasks[1].ID)
	}
}

func TestTaskID_RejectsObject(t *testing.T) {
	var task models.Task
	err := json.Unmarshal([]byte(`{"id": {"x": 1}}`), &task)
	if err == nil {
		t.Error("Expected error for object id")
	}
}

func TestTask_CreatedDate(t *testing.T) {
	task := models.Task{ID: "1", CreatedAt: "05-03-2024"}

	got, err := task.CreatedDate()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestTask_HasRemoteImage(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://cdn.example.com/a.jpg", true},
		{"http://cdn.example.com/a.jpg", true},
		{"assets/images/test.jpg", false},
		{"", false},
	}

	for _, tt := range tests {
		task := models.Task{ImageURL: tt.url}
		if got := task.HasRemoteImage(); got != tt.want {
			t.Errorf("HasRemoteImage(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestCategoryAggregate_Percent(t *testing.T) {
	agg := models.CategoryAggregate{Total: 3, Reviewed: 2, Progress: 2.0 / 3.0}

	if agg.Percent() != 67 {
		t.Errorf("Expected 67, got %d", agg.Percent())
	}
}

func TestCredential_IdentityOmitsPassword(t *testing.T) {
	cred := models.Credential{Email: "a@b.com", Password: "secret", Name: "Asha"}

	data, err := json.Marshal(cred.Identity())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if _, ok := fields["password"]; ok {
		t.Error("Identity must not serialize the credential")
	}
	if fields["email"] != "a@b.com" {
		t.Errorf("Expected email 'a@b.com', got %v", fields["email"])
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := models.NormalizeEmail("  Worker@Example.COM "); got != "worker@example.com" {
		t.Errorf("Expected 'worker@example.com', got '%s'", got)
	}
}

func TestAttendanceStatus_Valid(t *testing.T) {
	for _, status := range []models.AttendanceStatus{models.AttendancePresent, models.AttendanceLeave} {
		if !status.Valid() {
			t.Errorf("Expected %s to be valid", status)
		}
	}

	if models.AttendanceStatus("absent").Valid() {
		t.Error("Expected 'absent' to be invalid")
	}
}

func TestNewReviewRecord(t *testing.T) {
	now := time.Now()
	task := models.Task{
		ID:         "42",
		Title:      "Sweep market road",
		Category:   "Mechanical Sweeping",
		ZoneName:   "Zone 3",
		Complete:   true,
		Comment:    "Agreed - 70% rating",
		ReviewedAt: &now,
	}

	rec := models.NewReviewRecord(task, "worker@example.com")

	if rec.TaskID != "42" {
		t.Errorf("Expected task id '42', got '%s'", rec.TaskID)
	}
	if rec.Comment != task.Comment {
		t.Errorf("Expected comment %q, got %q", task.Comment, rec.Comment)
	}
	if !rec.ReviewedAt.Equal(now) {
		t.Errorf("Expected reviewed_at %v, got %v", now, rec.ReviewedAt)
	}
	if rec.ID.IsNil() {
		t.Error("Expected generated record id")
	}
}
