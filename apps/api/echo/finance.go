package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/finance"
)

type financeApi struct {
	svc      *finance.Service
	validate *validator.Validate
}

func registerFinanceAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc *finance.Service, validate *validator.Validate) {
	api := financeApi{svc: svc, validate: validate}

	fg := g.Group("/finance", authed...)
	fg.GET("/records", api.query)
	fg.POST("/records", api.create)
	fg.GET("/summary", api.summary)
	fg.GET("/export", api.export)

	dg := fg.Group("/records/:id", objectMiddleware("id", svc.Get))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
}

// bindFilter reads and validates the kind/category/from/to query filter.
func (api *financeApi) bindFilter(ctx echo.Context) (*finance.QueryFilter, error) {
	filter := new(finance.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return nil, errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()
	if err := api.validate.Struct(filter); err != nil {
		return nil, err
	}
	return filter, nil
}

func (api *financeApi) create(ctx echo.Context) error {
	var data finance.NewRecord
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRecord")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rec, err := api.svc.Create(ctx.Request().Context(), getSession(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating record")
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *financeApi) query(ctx echo.Context) error {
	filter, err := api.bindFilter(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	recs, err := api.svc.Query(ctx.Request().Context(), getSession(ctx), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying records")
	}
	if recs == nil {
		recs = []finance.Record{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *financeApi) summary(ctx echo.Context) error {
	filter, err := api.bindFilter(ctx)
	if err != nil {
		return err
	}
	sum, err := api.svc.Summary(ctx.Request().Context(), getSession(ctx), filter)
	if err != nil {
		return errors.Wrap(err, "summarizing records")
	}
	return ctx.JSON(http.StatusOK, sum)
}

// export downloads the filtered records as an xlsx workbook.
func (api *financeApi) export(ctx echo.Context) error {
	filter, err := api.bindFilter(ctx)
	if err != nil {
		return err
	}
	data, err := api.svc.Export(ctx.Request().Context(), getSession(ctx), filter)
	if err != nil {
		return errors.Wrap(err, "exporting records")
	}

	filename := fmt.Sprintf("finance-%s.xlsx", finance.NowFunc().UTC().Format(core.DateLayout))
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, finance.WorkbookContentType, data)
}

func (api *financeApi) retrieve(ctx echo.Context) error {
	rec, err := getContextObject[finance.Record](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *financeApi) update(ctx echo.Context) error {
	rec, err := getContextObject[finance.Record](ctx)
	if err != nil {
		return err
	}

	var data finance.UpdateRecord
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRecord")
	}
	if err = data.Validate(rec, api.validate); err != nil {
		return err
	}

	rec, err = api.svc.Update(ctx.Request().Context(), getSession(ctx), rec, data)
	if err != nil {
		return errors.Wrap(err, "updating record")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *financeApi) destroy(ctx echo.Context) error {
	rec, err := getContextObject[finance.Record](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), getSession(ctx), rec); err != nil {
		return errors.Wrap(err, "deleting record")
	}
	return ctx.NoContent(http.StatusNoContent)
}
