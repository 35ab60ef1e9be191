package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/taskflow/internal/apperr"
	"github.com/iliyamo/taskflow/internal/model"
)

// requestTimeout bounds the store work of one request.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// ErrorHandler renders errors as {"error": message}.  apperr errors map
// through their Kind, echo errors keep their status and anything else is
// a 500 whose cause is logged but never sent.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	log = log.Named("http")
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		respondError(c, log, err)
	}
}

func respondError(c echo.Context, log *zap.Logger, err error) {
	status, msg := apperr.Status(err), apperr.Message(err)
	var ae *apperr.Error
	var he *echo.HTTPError
	if !errors.As(err, &ae) && errors.As(err, &he) {
		status = he.Code
		msg = http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok {
			msg = s
		}
	}
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("route", c.Path()), zap.Error(err))
	}
	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, echo.Map{"error": msg})
	}
	if werr != nil {
		log.Warn("write error response", zap.Error(werr))
	}
}

// pagination reads ?page and ?limit; junk values fall back to defaults.
func pagination(c echo.Context) model.Pagination {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return model.NewPagination(page, limit)
}

// bind decodes the body, reporting failures as BadRequest.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return apperr.Wrap(err, apperr.KindBadRequest, "invalid body")
	}
	return nil
}
