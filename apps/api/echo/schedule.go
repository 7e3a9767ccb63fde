package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/acolher/core/schedule"
)

type scheduleApi struct {
	svc      *schedule.Service
	validate *validator.Validate
}

func registerScheduleAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc *schedule.Service, validate *validator.Validate) {
	api := scheduleApi{svc: svc, validate: validate}

	tg := g.Group("/tasks", authed...)
	tg.GET("", api.query)
	tg.POST("", api.create)

	dg := tg.Group("/:id", objectMiddleware("id", svc.Get))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
}

func (api *scheduleApi) create(ctx echo.Context) error {
	var data schedule.NewTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTask")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	task, err := api.svc.Create(ctx.Request().Context(), getSession(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating task")
	}
	return ctx.JSON(http.StatusCreated, task)
}

// query filters on `from`/`to` (RFC 3339, on starts_at), `done` and `child_id`.
func (api *scheduleApi) query(ctx echo.Context) error {
	filter := new(schedule.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []schedule.Task{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	tasks, err := api.svc.Query(ctx.Request().Context(), getSession(ctx), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying tasks")
	}
	if tasks == nil {
		tasks = []schedule.Task{}
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *scheduleApi) retrieve(ctx echo.Context) error {
	task, err := getContextObject[schedule.Task](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, task)
}

func (api *scheduleApi) update(ctx echo.Context) error {
	task, err := getContextObject[schedule.Task](ctx)
	if err != nil {
		return err
	}

	var data schedule.UpdateTask
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTask")
	}
	if err = data.Validate(task, api.validate); err != nil {
		return err
	}

	task, err = api.svc.Update(ctx.Request().Context(), getSession(ctx), task, data)
	if err != nil {
		return errors.Wrap(err, "updating task")
	}
	return ctx.JSON(http.StatusOK, task)
}

func (api *scheduleApi) destroy(ctx echo.Context) error {
	task, err := getContextObject[schedule.Task](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), getSession(ctx), task); err != nil {
		return errors.Wrap(err, "deleting task")
	}
	return ctx.NoContent(http.StatusNoContent)
}
