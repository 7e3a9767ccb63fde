package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/acolher/core/casefile"
)

type caseFileApi struct {
	svc      *casefile.Service
	validate *validator.Validate
}

func registerCaseFileAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc *casefile.Service, validate *validator.Validate) {
	api := caseFileApi{svc: svc, validate: validate}

	cg := g.Group("/case-files", authed...)
	cg.GET("", api.query)
	cg.POST("", api.create)
	cg.GET("/overdue", api.overdue)

	dg := cg.Group("/:child_id", objectMiddleware("child_id", svc.Get))
	dg.GET("", api.retrieve)
	dg.PUT("", api.save)
	dg.POST("/toggle", api.toggle)
	dg.GET("/history", api.history)

	g.GET("/case-file-history/:id", api.historyEntry, authed...)
}

func (api *caseFileApi) create(ctx echo.Context) error {
	var data casefile.NewCaseFile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCaseFile")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cf, err := api.svc.Create(ctx.Request().Context(), getSession(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating case file")
	}
	return ctx.JSON(http.StatusCreated, cf)
}

func (api *caseFileApi) query(ctx echo.Context) error {
	filter := new(casefile.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []casefile.CaseFile{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	cfs, err := api.svc.Query(ctx.Request().Context(), getSession(ctx), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying case files")
	}
	if cfs == nil {
		cfs = []casefile.CaseFile{}
	}
	return ctx.JSON(http.StatusOK, cfs)
}

// overdue lists the case files due for their periodic review, oldest review first.
func (api *caseFileApi) overdue(ctx echo.Context) error {
	cfs, err := api.svc.Overdue(ctx.Request().Context(), getSession(ctx), casefile.NowFunc())
	if err != nil {
		return errors.Wrap(err, "listing overdue case files")
	}
	return ctx.JSON(http.StatusOK, cfs)
}

func (api *caseFileApi) retrieve(ctx echo.Context) error {
	cf, err := getContextObject[casefile.CaseFile](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cf)
}

// save persists an edit; `?mode=renewal` archives the current version to the history first.
// The body is merged over the stored case file: omitted fields keep their value, sent ones replace it.
func (api *caseFileApi) save(ctx echo.Context) error {
	cf, err := getContextObject[casefile.CaseFile](ctx)
	if err != nil {
		return err
	}
	mode, err := casefile.ParseMode(ctx.QueryParam("mode"))
	if err != nil {
		return err
	}

	data := casefile.UpdateFrom(cf)
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCaseFile")
	}
	if err = data.Validate(cf, api.validate); err != nil {
		return err
	}

	cf, err = api.svc.Save(ctx.Request().Context(), getSession(ctx), cf.ChildID, data, mode)
	if err != nil {
		return errors.Wrap(err, "saving case file")
	}
	return ctx.JSON(http.StatusOK, cf)
}

func (api *caseFileApi) toggle(ctx echo.Context) error {
	cf, err := getContextObject[casefile.CaseFile](ctx)
	if err != nil {
		return err
	}

	var data casefile.ToggleRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ToggleRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	cf, err = api.svc.Toggle(ctx.Request().Context(), getSession(ctx), cf.ChildID, data)
	if err != nil {
		return errors.Wrap(err, "toggling checkbox")
	}
	return ctx.JSON(http.StatusOK, cf)
}

func (api *caseFileApi) history(ctx echo.Context) error {
	cf, err := getContextObject[casefile.CaseFile](ctx)
	if err != nil {
		return err
	}
	entries, err := api.svc.ListHistory(ctx.Request().Context(), getSession(ctx), cf.ChildID)
	if err != nil {
		return errors.Wrap(err, "listing history")
	}
	if entries == nil {
		entries = []casefile.HistoryEntry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *caseFileApi) historyEntry(ctx echo.Context) error {
	entry, err := api.svc.ViewHistoryEntry(ctx.Request().Context(), getSession(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "viewing history entry")
	}
	return ctx.JSON(http.StatusOK, entry)
}
