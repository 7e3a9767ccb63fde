package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/acolher/core/community"
)

type communityApi struct {
	svc      *community.Service
	validate *validator.Validate
}

func registerCommunityAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc *community.Service, validate *validator.Validate) {
	api := communityApi{svc: svc, validate: validate}

	cg := g.Group("/community", authed...)
	cg.GET("/posts", api.queryPosts)
	cg.POST("/posts", api.createPost)
	cg.DELETE("/comments/:id", api.deleteComment)

	dg := cg.Group("/posts/:id", objectMiddleware("id", svc.GetPost))
	dg.GET("", api.retrievePost)
	dg.PUT("", api.updatePost)
	dg.DELETE("", api.destroyPost)
	dg.POST("/comments", api.addComment)
}

func (api *communityApi) createPost(ctx echo.Context) error {
	var data community.NewPost
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPost")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	post, err := api.svc.CreatePost(ctx.Request().Context(), getSession(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating post")
	}
	return ctx.JSON(http.StatusCreated, post)
}

func (api *communityApi) queryPosts(ctx echo.Context) error {
	filter := new(community.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []community.Post{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	posts, err := api.svc.QueryPosts(ctx.Request().Context(), getSession(ctx), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying posts")
	}
	if posts == nil {
		posts = []community.Post{}
	}
	return ctx.JSON(http.StatusOK, posts)
}

func (api *communityApi) retrievePost(ctx echo.Context) error {
	post, err := getContextObject[community.Post](ctx)
	if err != nil {
		return err
	}
	if post.Comments == nil {
		post.Comments = []community.Comment{}
	}
	return ctx.JSON(http.StatusOK, post)
}

func (api *communityApi) updatePost(ctx echo.Context) error {
	post, err := getContextObject[community.Post](ctx)
	if err != nil {
		return err
	}

	var data community.UpdatePost
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePost")
	}
	if err = data.Validate(post, api.validate); err != nil {
		return err
	}

	post, err = api.svc.UpdatePost(ctx.Request().Context(), getSession(ctx), post, data)
	if err != nil {
		return errors.Wrap(err, "updating post")
	}
	return ctx.JSON(http.StatusOK, post)
}

func (api *communityApi) destroyPost(ctx echo.Context) error {
	post, err := getContextObject[community.Post](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeletePost(ctx.Request().Context(), getSession(ctx), post); err != nil {
		return errors.Wrap(err, "deleting post")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *communityApi) addComment(ctx echo.Context) error {
	post, err := getContextObject[community.Post](ctx)
	if err != nil {
		return err
	}

	var data community.NewComment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewComment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	cmt, err := api.svc.AddComment(ctx.Request().Context(), getSession(ctx), post, data)
	if err != nil {
		return errors.Wrap(err, "adding comment")
	}
	return ctx.JSON(http.StatusCreated, cmt)
}

func (api *communityApi) deleteComment(ctx echo.Context) error {
	if err := api.svc.DeleteComment(ctx.Request().Context(), getSession(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting comment")
	}
	return ctx.NoContent(http.StatusNoContent)
}
