package review

import "fmt"

// ValidationError reports missing or malformed review input. The flow stays
// open so the reviewer can correct it.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
