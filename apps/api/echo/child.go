package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/acolher/core/child"
)

type childApi struct {
	svc      *child.Service
	validate *validator.Validate
}

func registerChildAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc *child.Service, validate *validator.Validate) {
	api := childApi{svc: svc, validate: validate}

	cg := g.Group("/children", authed...)
	cg.GET("", api.query)
	cg.POST("", api.create)

	dg := cg.Group("/:id", objectMiddleware("id", svc.Get))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)

	dg.GET("/notes", api.queryNotes)
	dg.POST("/notes", api.addNote)
	dg.DELETE("/notes/:note_id", api.deleteNote)

	dg.GET("/photos", api.queryPhotos)
	dg.POST("/photos", api.addPhoto)
	dg.DELETE("/photos/:photo_id", api.deletePhoto)
}

func (api *childApi) create(ctx echo.Context) error {
	var data child.NewChild
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewChild")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	chd, err := api.svc.Create(ctx.Request().Context(), getSession(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating child")
	}
	return ctx.JSON(http.StatusCreated, chd)
}

func (api *childApi) query(ctx echo.Context) error {
	filter := new(child.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []child.Child{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	children, err := api.svc.Query(ctx.Request().Context(), getSession(ctx), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying children")
	}
	if children == nil {
		children = []child.Child{}
	}
	return ctx.JSON(http.StatusOK, children)
}

func (api *childApi) retrieve(ctx echo.Context) error {
	chd, err := getContextObject[child.Child](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, chd)
}

func (api *childApi) update(ctx echo.Context) error {
	chd, err := getContextObject[child.Child](ctx)
	if err != nil {
		return err
	}

	var data child.UpdateChild
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateChild")
	}
	if err = data.Validate(chd, api.validate); err != nil {
		return err
	}

	chd, err = api.svc.Update(ctx.Request().Context(), getSession(ctx), chd, data)
	if err != nil {
		return errors.Wrap(err, "updating child")
	}
	return ctx.JSON(http.StatusOK, chd)
}

func (api *childApi) destroy(ctx echo.Context) error {
	chd, err := getContextObject[child.Child](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), getSession(ctx), chd); err != nil {
		return errors.Wrap(err, "deleting child")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Notes

func (api *childApi) queryNotes(ctx echo.Context) error {
	chd, err := getContextObject[child.Child](ctx)
	if err != nil {
		return err
	}
	notes, err := api.svc.QueryNotes(ctx.Request().Context(), getSession(ctx), chd)
	if err != nil {
		return errors.Wrap(err, "querying notes")
	}
	if notes == nil {
		notes = []child.Note{}
	}
	return ctx.JSON(http.StatusOK, notes)
}

func (api *childApi) addNote(ctx echo.Context) error {
	chd, err := getContextObject[child.Child](ctx)
	if err != nil {
		return err
	}

	var data child.NewNote
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNote")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	note, err := api.svc.AddNote(ctx.Request().Context(), getSession(ctx), chd, data)
	if err != nil {
		return errors.Wrap(err, "adding note")
	}
	return ctx.JSON(http.StatusCreated, note)
}

func (api *childApi) deleteNote(ctx echo.Context) error {
	chd, err := getContextObject[child.Child](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteNote(ctx.Request().Context(), getSession(ctx), chd, ctx.Param("note_id")); err != nil {
		return errors.Wrap(err, "deleting note")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Photos

func (api *childApi) queryPhotos(ctx echo.Context) error {
	chd, err := getContextObject[child.Child](ctx)
	if err != nil {
		return err
	}
	photos, err := api.svc.QueryPhotos(ctx.Request().Context(), getSession(ctx), chd)
	if err != nil {
		return errors.Wrap(err, "querying photos")
	}
	if photos == nil {
		photos = []child.Photo{}
	}
	return ctx.JSON(http.StatusOK, photos)
}

// addPhoto accepts a multipart upload (`file`, optional `caption`).
func (api *childApi) addPhoto(ctx echo.Context) error {
	chd, err := getContextObject[child.Child](ctx)
	if err != nil {
		return err
	}
	data, err := bindPhoto(ctx)
	if err != nil {
		return err
	}

	photo, err := api.svc.AddPhoto(ctx.Request().Context(), getSession(ctx), chd, data)
	if err != nil {
		return errors.Wrap(err, "adding photo")
	}
	return ctx.JSON(http.StatusCreated, photo)
}

func (api *childApi) deletePhoto(ctx echo.Context) error {
	chd, err := getContextObject[child.Child](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeletePhoto(ctx.Request().Context(), getSession(ctx), chd, ctx.Param("photo_id")); err != nil {
		return errors.Wrap(err, "deleting photo")
	}
	return ctx.NoContent(http.StatusNoContent)
}
