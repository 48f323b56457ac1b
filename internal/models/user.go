package models

import "strings"

// Credential is one record of the offline credential source.
type Credential struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	Name       string `json:"name,omitempty"`
	EmployeeID string `json:"employee_id,omitempty"`
	Zone       string `json:"zone,omitempty"`
}

// Identity is the authenticated user as exposed to callers and written to
// the persisted session slot. It never carries the credential.
type Identity struct {
	Email      string `json:"email"`
	Name       string `json:"name,omitempty"`
	EmployeeID string `json:"employee_id,omitempty"`
	Zone       string `json:"zone,omitempty"`
}

func (c Credential) Identity() Identity {
	return Identity{
		Email:      c.Email,
		Name:       c.Name,
		EmployeeID: c.EmployeeID,
		Zone:       c.Zone,
	}
}

// NormalizeEmail is the comparison form used for login lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
