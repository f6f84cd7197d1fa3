package apierr

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var httpErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "clipper_http_errors_total",
		Help: "Total HTTP errors by taxonomy type",
	},
	[]string{"type"},
)

// Middleware converts handler errors into structured JSON responses,
// recording a per-type counter and logging at a severity appropriate to the
// error's Type.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			structured := AsStructured(err)
			httpErrorsTotal.WithLabelValues(string(structured.Type)).Inc()
			logError(c, structured)

			if werr := c.JSON(structured.HTTPStatus(), structured.ToResponse()); werr != nil {
				return fmt.Errorf("write error response: %w", werr)
			}
			return nil
		}
	}
}

func logError(c echo.Context, err *Error) {
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}
	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	switch err.Type {
	case InvalidRange, InvalidTransition, NotFound:
		slog.Info(string(err.Type), attrs...)
	case Stalled, Cancelled:
		slog.Warn(string(err.Type), attrs...)
	default:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.Error(string(err.Type), attrs...)
	}
}

// HandleError is a helper for handlers to return a structured error directly.
func HandleError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	structured := AsStructured(err)
	httpErrorsTotal.WithLabelValues(string(structured.Type)).Inc()
	logError(c, structured)
	if werr := c.JSON(structured.HTTPStatus(), structured.ToResponse()); werr != nil {
		return fmt.Errorf("write error response: %w", werr)
	}
	return nil
}
