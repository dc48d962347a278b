package auth

type Role string

const (
	RoleAttorney  Role = "attorney"
	RoleParalegal Role = "paralegal"
	RoleAdmin     Role = "admin"
)

// Viewer is the authenticated user on whose behalf the client acts.
// Predicates receive it by value; the zero Viewer has no privileges.
type Viewer struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the viewer holds the admin role.
func (v Viewer) IsAdmin() bool { return v.Role == RoleAdmin }

// IsAttorney reports whether the viewer holds the attorney role.
func (v Viewer) IsAttorney() bool { return v.Role == RoleAttorney }

// IsParalegal reports whether the viewer holds the paralegal role.
func (v Viewer) IsParalegal() bool { return v.Role == RoleParalegal }
