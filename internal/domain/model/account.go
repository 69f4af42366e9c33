package model

import "time"

// Account is a user's fun-money holding.
type Account struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Balance     int64     `json:"balance"`
	Rank        int64     `json:"rank"`
	Permissions []string  `json:"permissions,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PermissionAdmin allows proposing match transitions.
const PermissionAdmin = "admin"

// IsAdmin reports whether the account holds the admin permission.
func (a Account) IsAdmin() bool {
	for _, p := range a.Permissions {
		if p == PermissionAdmin {
			return true
		}
	}
	return false
}
