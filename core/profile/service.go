package profile

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/acolher/core"
)

var (
	// errors
	ErrNotFound             = core.NewNotFoundError("profile")
	ErrInviteNotFound       = core.NewNotFoundError("invite")
	ErrEmailExists          = errors.New("a profile with this email already exists")
	ErrAuthenticationFailed = errors.New("invalid email or password")
	ErrAccountDeactivated   = errors.New("this account has been deactivated")
	ErrInviteAccepted       = errors.New("this invite has already been accepted")
	errCannotDeleteSelf     = errors.New("you cannot remove your own profile")

	NowFunc = time.Now // mockable
)

type (
	// GetFilter selects a single Profile by ID or by email.
	GetFilter struct {
		ID    string
		Email string
	}

	Repository interface {
		// CheckEmailUniqueness returns ErrEmailExists when another profile than `excluded` owns email.
		CheckEmailUniqueness(ctx context.Context, email string, excluded ...Profile) error
		CreateProfile(ctx context.Context, p Profile, exec ...core.DBExecutor) (Profile, error)
		GetProfile(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Profile, error)
		// QueryProfiles lists the team of an institution; an empty institutionID lists platform admins.
		// QueryFilter.Search does a case-insensitive match on Name or Email.
		QueryProfiles(ctx context.Context, institutionID string, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Profile, error)
		UpdateProfile(ctx context.Context, p Profile, exec ...core.DBExecutor) (Profile, error)
		// UpdateOrCreateProfile upserts on Email.
		UpdateOrCreateProfile(ctx context.Context, p Profile, exec ...core.DBExecutor) (Profile, error)
		DeleteProfile(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateInvite(ctx context.Context, inv Invite, exec ...core.DBExecutor) (Invite, error)
		GetInvite(ctx context.Context, id string, exec ...core.DBExecutor) (Invite, error)
		QueryInvites(ctx context.Context, institutionID string, exec ...core.DBExecutor) ([]Invite, error)
		UpdateInvite(ctx context.Context, inv Invite, exec ...core.DBExecutor) (Invite, error)
	}

	// InviteMailData is rendered by the "invite" email templates.
	InviteMailData struct {
		InviterName     string
		InstitutionName string
		UID             string
		Token           string
	}

	Service struct {
		tx      core.Transactor
		repo    Repository
		mailSvc core.EmailService
		tokens  tokenGenerator
		logger  core.Logger
	}
)

func NewService(
	tx core.Transactor,
	repo Repository,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
) *Service {
	return &Service{
		tx:      tx,
		repo:    repo,
		mailSvc: mailSvc,
		tokens: tokenGenerator{
			secret:  []byte(conf.SecretKey),
			timeout: conf.InviteTimeoutDelta,
			now:     func() time.Time { return NowFunc() },
		},
		logger: logger,
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, email string, excluded ...Profile) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, excluded...); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Create registers a profile directly, bypassing invites.
func (svc *Service) Create(ctx context.Context, sess core.Session, np NewProfile) (Profile, error) {
	if !sess.CanManageTeam(np.InstitutionID) || (np.Role == core.RoleAdmin && !sess.IsAdmin()) {
		return Profile{}, core.ErrPermissionDenied
	}
	if err := svc.checkUniqueness(ctx, np.Email); err != nil {
		return Profile{}, err
	}
	now := NowFunc().UTC()
	p := Profile{
		InstitutionID: np.InstitutionID,
		Name:          np.Name,
		Email:         np.Email,
		Role:          np.Role,
		Position:      np.Position,
		Phone:         np.Phone,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := p.SetPassword(np.Password); err != nil {
		return Profile{}, err
	}
	return svc.repo.CreateProfile(ctx, p)
}

// Authenticate finds the active profile owning the credentials and records the login.
func (svc *Service) Authenticate(ctx context.Context, lc LoginCredentials) (Profile, error) {
	p, err := svc.repo.GetProfile(ctx, GetFilter{Email: lc.Email})
	if err != nil {
		if core.IsNotFound(err) {
			return Profile{}, ErrAuthenticationFailed
		}
		return Profile{}, errors.Wrap(err, "finding profile by email")
	}
	if err = p.CheckPassword(lc.Password); err != nil {
		return Profile{}, ErrAuthenticationFailed
	}
	if !p.IsActive {
		return Profile{}, ErrAccountDeactivated
	}
	p.LastLogin = null.TimeFrom(NowFunc().UTC())
	p, err = svc.repo.UpdateProfile(ctx, p)
	return p, errors.Wrap(err, "setting last login")
}

// GetByID skips scoping: it resolves the actor of an authenticated request.
func (svc *Service) GetByID(ctx context.Context, id string) (Profile, error) {
	return svc.repo.GetProfile(ctx, GetFilter{ID: id})
}

func (svc *Service) Get(ctx context.Context, sess core.Session, id string) (Profile, error) {
	p, err := svc.repo.GetProfile(ctx, GetFilter{ID: id})
	if err != nil {
		return Profile{}, err
	}
	if p.ID != sess.ActorID && !sess.CanRead(p.InstitutionID) && !sess.IsAdmin() {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (svc *Service) Query(ctx context.Context, sess core.Session, filter *QueryFilter, ordering []core.DBOrdering) ([]Profile, error) {
	if !sess.IsAuthenticated() {
		return nil, core.ErrPermissionDenied
	}
	if sess.ReadScope() == "" && !sess.IsAdmin() {
		return []Profile{}, nil
	}
	ordering = core.OrderingAllowed(ordering, "name", "email", "role", "created_at")
	return svc.repo.QueryProfiles(ctx, sess.ReadScope(), filter, ordering)
}

// Update lets a profile edit itself; role and activation changes need the team management capability.
func (svc *Service) Update(ctx context.Context, sess core.Session, orig Profile, up UpdateProfile) (Profile, error) {
	manager := sess.CanManageTeam(orig.InstitutionID)
	if sess.IsReadOnly() {
		return Profile{}, core.ErrReadOnly
	}
	if orig.ID != sess.ActorID && !manager {
		return Profile{}, core.ErrPermissionDenied
	}
	if (up.Role != orig.Role || up.IsActive != nil) && !manager {
		return Profile{}, core.ErrPermissionDenied
	}
	if up.Role == core.RoleAdmin && !sess.IsAdmin() {
		return Profile{}, core.ErrPermissionDenied
	}
	if err := svc.checkUniqueness(ctx, up.Email, orig); err != nil {
		return Profile{}, err
	}

	p := orig
	p.Name = up.Name
	p.Email = up.Email
	p.Role = up.Role
	p.Position = up.Position
	p.Phone = up.Phone
	if up.IsActive != nil {
		p.IsActive = *up.IsActive
	}
	if up.Password != "" {
		if err := p.SetPassword(up.Password); err != nil {
			return Profile{}, err
		}
	}
	p.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateProfile(ctx, p)
}

func (svc *Service) Delete(ctx context.Context, sess core.Session, p Profile) error {
	if sess.IsReadOnly() {
		return core.ErrReadOnly
	}
	if !sess.CanManageTeam(p.InstitutionID) {
		return core.ErrPermissionDenied
	}
	if p.ID == sess.ActorID {
		return core.NewValidationError(errCannotDeleteSelf, core.FieldError{Field: "id", Error: errCannotDeleteSelf.Error()})
	}
	return svc.repo.DeleteProfile(ctx, p.ID)
}

// Invite records an invitation and emails its acceptance link.
func (svc *Service) Invite(ctx context.Context, sess core.Session, inviter Profile, institutionName string, ni NewInvite) (Invite, error) {
	instID := sess.InstitutionID
	if sess.IsAdmin() && ni.InstitutionID != "" {
		instID = ni.InstitutionID
	}
	if instID == "" || !sess.CanManageTeam(instID) {
		if sess.IsReadOnly() {
			return Invite{}, core.ErrReadOnly
		}
		return Invite{}, core.ErrPermissionDenied
	}
	if err := svc.checkUniqueness(ctx, ni.Email); err != nil {
		return Invite{}, err
	}

	inv, err := svc.repo.CreateInvite(ctx, Invite{
		InstitutionID: instID,
		Email:         ni.Email,
		Role:          ni.Role,
		InvitedBy:     sess.ActorID,
		CreatedAt:     NowFunc().UTC(),
	})
	if err != nil {
		return Invite{}, errors.Wrap(err, "creating invite")
	}

	svc.sendInviteMail(inv, inviter, institutionName)
	return inv, nil
}

func (svc *Service) sendInviteMail(inv Invite, inviter Profile, institutionName string) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: inv.Email}},
		Subject:      fmt.Sprintf("%s invited you to join %s", inviter.Name, institutionName),
		TemplateName: core.EmailInvite,
		TemplateData: InviteMailData{
			InviterName:     inviter.Name,
			InstitutionName: institutionName,
			UID:             EncodeUID(inv),
			Token:           svc.tokens.makeToken(inv),
		},
	})
}

func (svc *Service) QueryInvites(ctx context.Context, sess core.Session) ([]Invite, error) {
	if !sess.IsAdmin() && !sess.CanManageTeam(sess.ReadScope()) {
		return nil, core.ErrPermissionDenied
	}
	return svc.repo.QueryInvites(ctx, sess.ReadScope())
}

// AcceptInvite creates the invited profile and marks its invite accepted, atomically.
func (svc *Service) AcceptInvite(ctx context.Context, ai AcceptInvite) (Profile, error) {
	invalid := func(err error) error {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}

	id, err := decodeUID(ai.UID)
	if err != nil {
		return Profile{}, invalid(errInvalidToken)
	}
	inv, err := svc.repo.GetInvite(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return Profile{}, invalid(errInvalidToken)
		}
		return Profile{}, err
	}
	if inv.IsAccepted() {
		return Profile{}, invalid(ErrInviteAccepted)
	}
	if err = svc.tokens.verifyToken(inv, ai.Token); err != nil {
		return Profile{}, invalid(err)
	}
	if err = svc.checkUniqueness(ctx, inv.Email); err != nil {
		return Profile{}, err
	}

	now := NowFunc().UTC()
	p := Profile{
		InstitutionID: inv.InstitutionID,
		Name:          ai.Name,
		Email:         inv.Email,
		Role:          inv.Role,
		Position:      ai.Position,
		Phone:         ai.Phone,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err = p.SetPassword(ai.Password); err != nil {
		return Profile{}, err
	}

	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if p, err = svc.repo.CreateProfile(ctx, p, exec); err != nil {
			return errors.Wrap(err, "creating profile")
		}
		inv.AcceptedAt = null.TimeFrom(now)
		_, err = svc.repo.UpdateInvite(ctx, inv, exec)
		return errors.Wrap(err, "accepting invite")
	})
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}
