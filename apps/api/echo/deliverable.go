package echoapi

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/scolab/backend/core/deliverable"
)

type deliverableApi struct {
	svc deliverable.ServiceInterface
}

func registerDeliverableAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc deliverable.ServiceInterface) {
	api := deliverableApi{svc: svc}

	dg := g.Group("/deliverables", jwt)
	dg.POST("", api.create, teacherMiddleware())
	dg.GET("", api.query)
	dg.GET("/late", api.late, teacherMiddleware())

	// detail endpoints
	dg.GET("/:id", api.retrieve)
	dg.GET("/:id/evaluations", api.history)
	dg.GET("/:id/file", api.download)
	dg.POST("/:id/submission", api.submit, studentMiddleware())
	dg.PUT("/:id/correction", api.beginCorrection, teacherMiddleware())
	dg.PUT("/:id/evaluation", api.evaluate, teacherMiddleware())
	dg.PUT("/:id/rejection", api.reject, teacherMiddleware())
}

// Handlers

func (api *deliverableApi) create(ctx echo.Context) error {
	var data deliverable.NewDeliverable
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDeliverable")
	}
	view, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating deliverable")
	}
	return ctx.JSON(http.StatusCreated, view)
}

func (api *deliverableApi) query(ctx echo.Context) error {
	filter := new(deliverable.QueryFilter)
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	ordering := new(Ordering)
	if err := ordering.Bind(ctx, deliverable.OrderingFields); err != nil {
		return err
	}

	views, err := api.svc.Query(ctx.Request().Context(), *filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying deliverables")
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *deliverableApi) late(ctx echo.Context) error {
	views, err := api.svc.Late(ctx.Request().Context(), ctx.QueryParam("project"))
	if err != nil {
		return errors.Wrap(err, "listing late deliverables")
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *deliverableApi) retrieve(ctx echo.Context) error {
	view, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting deliverable")
	}
	return ctx.JSON(http.StatusOK, view)
}

// history lists the evaluations newest first; `limit` caps the number of records read.
func (api *deliverableApi) history(ctx echo.Context) error {
	limit := -1
	if v := ctx.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return errInvalidHistory
		}
		limit = n
	}

	seq, err := api.svc.History(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting evaluation history")
	}
	records := make([]deliverable.EvaluationRecord, 0)
	for rec, err := range seq {
		if err != nil {
			return errors.Wrap(err, "reading evaluation history")
		}
		records = append(records, rec)
		if len(records) == limit {
			break
		}
	}
	return ctx.JSON(http.StatusOK, records)
}

// download streams the submitted file as an attachment.
func (api *deliverableApi) download(ctx echo.Context) error {
	file, rc, err := api.svc.OpenFile(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "opening submitted file")
	}
	defer rc.Close()

	contentType := file.MediaType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": file.Filename}))
	return ctx.Stream(http.StatusOK, contentType, rc)
}

func (api *deliverableApi) submit(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		return errFileRequired
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	view, err := api.svc.Submit(ctx.Request().Context(), ctx.Param("id"), deliverable.FileHandle{
		Filename:    fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Content:     f,
	}, claims.Submitter())
	if err != nil {
		return errors.Wrap(err, "submitting deliverable")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *deliverableApi) beginCorrection(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	view, err := api.svc.BeginCorrection(ctx.Request().Context(), ctx.Param("id"), claims.Evaluator())
	if err != nil {
		return errors.Wrap(err, "beginning correction")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *deliverableApi) evaluate(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data deliverable.NewEvaluation
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvaluation")
	}
	view, err := api.svc.Evaluate(ctx.Request().Context(), ctx.Param("id"), data, claims.Evaluator())
	if err != nil {
		return errors.Wrap(err, "evaluating deliverable")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *deliverableApi) reject(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	view, err := api.svc.Reject(ctx.Request().Context(), ctx.Param("id"), claims.Evaluator())
	if err != nil {
		return errors.Wrap(err, "rejecting deliverable")
	}
	return ctx.JSON(http.StatusOK, view)
}
