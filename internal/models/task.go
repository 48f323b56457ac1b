package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CatalogDateLayout is the DD-MM-YYYY form tasks carry in the catalog.
const CatalogDateLayout = "02-01-2006"

// TaskID identifies a task. Catalog files carry ids as either JSON numbers
// or strings; both decode to the same textual id.
type TaskID string

func (id *TaskID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = TaskID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("task id must be a string or number: %w", err)
	}
	*id = TaskID(n.String())
	return nil
}

func (id TaskID) String() string {
	return string(id)
}

type Task struct {
	ID         TaskID     `json:"id" validate:"required"`
	Title      string     `json:"title" validate:"required"`
	Category   string     `json:"category" validate:"required"`
	ZoneName   string     `json:"zone_name"`
	CreatedAt  string     `json:"created_at" validate:"omitempty,catalogdate"`
	ImageURL   string     `json:"image_url,omitempty"`
	Complete   bool       `json:"complete"`
	Comment    string     `json:"comment,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
}

// CreatedDate parses the catalog creation date.
func (t Task) CreatedDate() (time.Time, error) {
	return time.Parse(CatalogDateLayout, t.CreatedAt)
}

// HasRemoteImage reports whether the image reference is an http(s) URL the
// client can load directly; anything else falls back to a bundled asset.
func (t Task) HasRemoteImage() bool {
	return strings.HasPrefix(t.ImageURL, "http")
}

// CategoryAggregate is derived on demand and never stored.
type CategoryAggregate struct {
	Category string  `json:"category,omitempty"`
	Total    int     `json:"total"`
	Reviewed int     `json:"reviewed"`
	Pending  int     `json:"pending"`
	Progress float64 `json:"progress"`
}

// Percent rounds Progress to a whole percentage for display.
func (a CategoryAggregate) Percent() int {
	return int(a.Progress*100 + 0.5)
}
