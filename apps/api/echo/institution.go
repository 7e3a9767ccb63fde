package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/acolher/core/institution"
)

type institutionApi struct {
	svc      *institution.Service
	validate *validator.Validate
}

func registerInstitutionAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc *institution.Service, validate *validator.Validate) {
	api := institutionApi{svc: svc, validate: validate}

	ig := g.Group("/institutions", authed...)
	ig.GET("", api.query)
	ig.POST("", api.create, adminMiddleware())

	dg := ig.Group("/:id", objectMiddleware("id", svc.Get))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, adminMiddleware())
}

func (api *institutionApi) create(ctx echo.Context) error {
	var data institution.NewInstitution
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewInstitution")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	inst, err := api.svc.Create(ctx.Request().Context(), getSession(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating institution")
	}
	return ctx.JSON(http.StatusCreated, inst)
}

func (api *institutionApi) query(ctx echo.Context) error {
	filter := new(institution.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []institution.Institution{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	insts, err := api.svc.Query(ctx.Request().Context(), getSession(ctx), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying institutions")
	}
	if insts == nil {
		insts = []institution.Institution{}
	}
	return ctx.JSON(http.StatusOK, insts)
}

func (api *institutionApi) retrieve(ctx echo.Context) error {
	inst, err := getContextObject[institution.Institution](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, inst)
}

func (api *institutionApi) update(ctx echo.Context) error {
	inst, err := getContextObject[institution.Institution](ctx)
	if err != nil {
		return err
	}

	var data institution.UpdateInstitution
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateInstitution")
	}
	if err = data.Validate(inst, api.validate); err != nil {
		return err
	}

	inst, err = api.svc.Update(ctx.Request().Context(), getSession(ctx), inst, data)
	if err != nil {
		return errors.Wrap(err, "updating institution")
	}
	return ctx.JSON(http.StatusOK, inst)
}

// destroy deletes the institution with every record it owns; a blocked cascade step answers 409.
func (api *institutionApi) destroy(ctx echo.Context) error {
	inst, err := getContextObject[institution.Institution](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), getSession(ctx), inst.ID); err != nil {
		return errors.Wrap(err, "deleting institution")
	}
	return ctx.NoContent(http.StatusNoContent)
}
