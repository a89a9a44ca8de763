package maccount

// Role is a capability-bearing label attached to an account.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleCoordinator   Role = "coordinator"
	RoleVolunteer     Role = "volunteer"
)

// Account mirrors the identity directory. Accounts are never deleted, only
// disabled.
type Account struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	Skills      string `json:"skills,omitempty"`
	AvatarRef   string `json:"avatar_ref,omitempty"`
	Roles       []Role `json:"roles"`
	Disabled    bool   `json:"disabled"`
}

// HasRole reports whether the account carries the given role label.
func (a Account) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsCoordinator reports whether the account holds coordinator-level
// capabilities (administrators count).
func (a Account) IsCoordinator() bool {
	return a.HasRole(RoleAdministrator) || a.HasRole(RoleCoordinator)
}
