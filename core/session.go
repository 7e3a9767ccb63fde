package core

// Roles
const (
	RoleAdmin       = "admin"       // platform administrator
	RoleCoordinator = "coordinator" // manages an institution's team
	RoleStaff       = "staff"
)

var AllRoles = []string{RoleAdmin, RoleCoordinator, RoleStaff}

// Session is the acting context every service operation receives explicitly.
type Session struct {
	ActorID       string
	Role          string
	InstitutionID string // the actor's own institution; empty for platform admins without one

	// ViewingInstitutionID is set while an admin oversees another institution. The session is read-only then.
	ViewingInstitutionID string
}

func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

func (s Session) IsAuthenticated() bool {
	return s.ActorID != ""
}

// IsReadOnly reports whether the actor is viewing another institution's data.
func (s Session) IsReadOnly() bool {
	return s.ViewingInstitutionID != "" && s.ViewingInstitutionID != s.InstitutionID
}

// ReadScope is the institution whose data the session currently sees.
func (s Session) ReadScope() string {
	if s.ViewingInstitutionID != "" {
		return s.ViewingInstitutionID
	}
	return s.InstitutionID
}

// CanRead reports whether records owned by institutionID are visible.
func (s Session) CanRead(institutionID string) bool {
	return institutionID != "" && institutionID == s.ReadScope()
}

// CheckWrite enforces the edit capability on records owned by institutionID.
func (s Session) CheckWrite(institutionID string) error {
	if !s.IsAuthenticated() {
		return ErrPermissionDenied
	}
	if s.IsReadOnly() {
		return ErrReadOnly
	}
	if institutionID == "" || institutionID != s.InstitutionID {
		return ErrPermissionDenied
	}
	return nil
}

// CanManageTeam reports whether the actor may invite, edit or remove profiles of institutionID.
func (s Session) CanManageTeam(institutionID string) bool {
	if s.IsReadOnly() {
		return false
	}
	if s.IsAdmin() {
		return true
	}
	return s.Role == RoleCoordinator && institutionID == s.InstitutionID
}

// WithViewing returns a copy of the session overseeing institutionID.
func (s Session) WithViewing(institutionID string) Session {
	s.ViewingInstitutionID = institutionID
	return s
}
