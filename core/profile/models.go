package profile

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/acolher/core"
)

type Profile struct {
	ID            string    `json:"id"`
	InstitutionID string    `json:"institution_id"` // empty for platform admins
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	Position      string    `json:"position"`
	Phone         string    `json:"phone"`
	IsActive      bool      `json:"is_active"`
	PasswordHash  []byte    `json:"-"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
	LastLogin     null.Time `json:"last_login"` // UTC
}

func (p *Profile) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	p.PasswordHash = hash
	return nil
}

func (p *Profile) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(p.PasswordHash, []byte(pwd))
}

func (p Profile) IsAdmin() bool {
	return p.Role == core.RoleAdmin
}

// Session is the acting context of requests made by p.
func (p Profile) Session() core.Session {
	return core.Session{ActorID: p.ID, Role: p.Role, InstitutionID: p.InstitutionID}
}

// Invite is a pending invitation to join an institution's team.
type Invite struct {
	ID            string    `json:"id"`
	InstitutionID string    `json:"institution_id"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	InvitedBy     string    `json:"invited_by"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	AcceptedAt    null.Time `json:"accepted_at"`
}

func (inv Invite) IsAccepted() bool {
	return inv.AcceptedAt.Valid
}

// NewProfile contains information needed to create a Profile directly (admin CLI).
type NewProfile struct {
	InstitutionID   string `json:"institution_id"` // required unless Role is admin
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Role            string `json:"role" validate:"required,allroles"`
	Position        string `json:"position"`
	Phone           string `json:"phone"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (np *NewProfile) Validate(validate *validator.Validate) error {
	np.InstitutionID = core.CleanString(np.InstitutionID)
	np.Name = core.CleanString(np.Name)
	np.Email = core.CleanString(np.Email, true /* lower */)
	np.Role = core.CleanString(np.Role, true /* lower */)
	np.Position = core.CleanString(np.Position)
	np.Phone = core.CleanString(np.Phone)
	return validate.Struct(np)
}

// UpdateProfile defines what information may be provided to modify an existing Profile.
type UpdateProfile struct {
	Name            string `json:"name"`
	Email           string `json:"email" validate:"omitempty,email"`
	Role            string `json:"role" validate:"omitempty,allroles"`
	Position        string `json:"position"`
	Phone           string `json:"phone"`
	IsActive        *bool  `json:"is_active"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (up *UpdateProfile) Validate(orig Profile, validate *validator.Validate) error {
	if name := core.CleanString(up.Name); name != "" {
		up.Name = name
	} else {
		up.Name = orig.Name
	}
	if email := core.CleanString(up.Email, true /* lower */); email != "" {
		up.Email = email
	} else {
		up.Email = orig.Email
	}
	if role := core.CleanString(up.Role, true /* lower */); role != "" {
		up.Role = role
	} else {
		up.Role = orig.Role
	}
	up.Position = core.CleanString(up.Position)
	up.Phone = core.CleanString(up.Phone)
	return validate.Struct(up)
}

type NewInvite struct {
	InstitutionID string `json:"institution_id"` // admins only; defaults to the inviter's institution
	Email         string `json:"email" validate:"required,email"`
	Role          string `json:"role" validate:"required,oneof=coordinator staff"`
}

func (ni *NewInvite) Validate(validate *validator.Validate) error {
	ni.InstitutionID = core.CleanString(ni.InstitutionID)
	ni.Email = core.CleanString(ni.Email, true /* lower */)
	ni.Role = core.CleanString(ni.Role, true /* lower */)
	return validate.Struct(ni)
}

type AcceptInvite struct {
	UID             string `json:"uid" validate:"required"`
	Token           string `json:"token" validate:"required"`
	Name            string `json:"name" validate:"required"`
	Position        string `json:"position"`
	Phone           string `json:"phone"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (ai *AcceptInvite) Validate(validate *validator.Validate) error {
	ai.Name = core.CleanString(ai.Name)
	ai.Position = core.CleanString(ai.Position)
	ai.Phone = core.CleanString(ai.Phone)
	return validate.Struct(ai)
}

type LoginCredentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (lc *LoginCredentials) Validate(validate *validator.Validate) error {
	lc.Email = core.CleanString(lc.Email, true /* lower */)
	return validate.Struct(lc)
}

type QueryFilter struct {
	Search   string   `query:"search"`
	Roles    []string `query:"role"`
	IsActive *bool    `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && len(qf.Roles) == 0 && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Roles = core.CleanStrings(qf.Roles)
}
