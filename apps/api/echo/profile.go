package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/acolher/core/institution"
	"github.com/trezcool/acolher/core/profile"
)

type profileApi struct {
	svc      *profile.Service
	instSvc  *institution.Service
	jwt      jwtConfig
	validate *validator.Validate
}

func registerProfileAPI(
	g *echo.Group,
	authed []echo.MiddlewareFunc,
	jwt jwtConfig,
	svc *profile.Service,
	instSvc *institution.Service,
	validate *validator.Validate,
) {
	api := profileApi{
		svc:      svc,
		instSvc:  instSvc,
		jwt:      jwt,
		validate: validate,
	}

	// un-authed endpoints
	g.POST("/profiles/login", api.login)
	g.POST("/invites/accept", api.acceptInvite)

	// authed endpoints
	pg := g.Group("/profiles", authed...)
	pg.POST("/token-refresh", api.refreshToken)
	pg.GET("/me", api.me)
	pg.GET("", api.query)
	pg.POST("", api.invite)
	pg.GET("/invites", api.queryInvites)

	// detail endpoints
	dg := pg.Group("/:id", objectMiddleware("id", svc.Get))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
}

// Handlers

func (api *profileApi) login(ctx echo.Context) error {
	var data profile.LoginCredentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginCredentials")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Authenticate(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := api.jwt.sign(api.jwt.claims(p))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, Profile: &p})
}

func (api *profileApi) refreshToken(ctx echo.Context) error {
	token, err := api.jwt.refresh(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *profileApi) me(ctx echo.Context) error {
	p, err := getContextProfile(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *profileApi) query(ctx echo.Context) error {
	filter := new(profile.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []profile.Profile{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	profiles, err := api.svc.Query(ctx.Request().Context(), getSession(ctx), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying profiles")
	}
	if profiles == nil {
		profiles = []profile.Profile{}
	}
	return ctx.JSON(http.StatusOK, profiles)
}

// invite sends an invitation to join the inviter's institution (or, for admins, any institution).
func (api *profileApi) invite(ctx echo.Context) error {
	var data profile.NewInvite
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewInvite")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	inviter, err := getContextProfile(ctx)
	if err != nil {
		return err
	}
	sess := getSession(ctx)
	instID := sess.InstitutionID
	if sess.IsAdmin() && data.InstitutionID != "" {
		instID = data.InstitutionID
	}
	var instName string
	if instID != "" {
		inst, err := api.instSvc.Get(ctx.Request().Context(), sess, instID)
		if err != nil {
			return errors.Wrap(err, "finding institution")
		}
		instName = inst.Name
	}

	inv, err := api.svc.Invite(ctx.Request().Context(), sess, inviter, instName, data)
	if err != nil {
		return errors.Wrap(err, "inviting")
	}
	return ctx.JSON(http.StatusCreated, inv)
}

func (api *profileApi) queryInvites(ctx echo.Context) error {
	invites, err := api.svc.QueryInvites(ctx.Request().Context(), getSession(ctx))
	if err != nil {
		return errors.Wrap(err, "querying invites")
	}
	if invites == nil {
		invites = []profile.Invite{}
	}
	return ctx.JSON(http.StatusOK, invites)
}

func (api *profileApi) acceptInvite(ctx echo.Context) error {
	var data profile.AcceptInvite
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AcceptInvite")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.AcceptInvite(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "accepting invite")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *profileApi) retrieve(ctx echo.Context) error {
	p, err := getContextObject[profile.Profile](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *profileApi) update(ctx echo.Context) error {
	p, err := getContextObject[profile.Profile](ctx)
	if err != nil {
		return err
	}

	var data profile.UpdateProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err = data.Validate(p, api.validate); err != nil {
		return err
	}

	p, err = api.svc.Update(ctx.Request().Context(), getSession(ctx), p, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *profileApi) destroy(ctx echo.Context) error {
	p, err := getContextObject[profile.Profile](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), getSession(ctx), p); err != nil {
		return errors.Wrap(err, "deleting profile")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type LoginResponse struct {
	Token   string           `json:"token"`
	Profile *profile.Profile `json:"profile,omitempty"`
}
