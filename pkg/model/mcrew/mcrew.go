package mcrew

// Member is the derived roster projection of an Account. Exactly one row per
// synced account; written only by the crew synchronizer.
type Member struct {
	ID        int64  `json:"id"` // maps 1:1 to the source account id
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	RoleLabel string `json:"role_label"`
	Skills    string `json:"skills"`
	AvatarRef string `json:"avatar_ref"`
	Disabled  bool   `json:"disabled"`
}

// RosterEntry is a roster row joined with the member's open-task count.
type RosterEntry struct {
	Member
	OpenTasks int64 `json:"open_tasks"`
}
