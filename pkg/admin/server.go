package admin

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	errors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/goliatone/go-memocache/pkg/di"
)

// NewServer returns an echo instance serving the admin endpoints with panic
// recovery, request IDs and request logging.
func NewServer(container *di.Container, opts ...Option) *echo.Echo {
	o := applyOptions(opts)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(o.logger)

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			o.logger.Error("panic recovered", "error", err, "stack", string(stack))
			return err
		},
	}))
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(requestLogger(o.logger))

	NewHandler(container, opts...).Register(e.Group(""))
	return e
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogURI:       true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil {
				level = slog.LevelError
			}
			logger.LogAttrs(context.Background(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			)
			return nil
		},
	})
}

// errorHandler renders every error as a go-errors ErrorResponse.
func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var appErr *errors.Error
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) && !errors.As(err, &appErr) {
			appErr = errors.New(fmt.Sprint(httpErr.Message), errors.HTTPStatusToCategory(httpErr.Code)).
				WithCode(httpErr.Code).
				WithTextCode(errors.HTTPStatusToTextCode(httpErr.Code))
		} else {
			appErr = errors.MapToError(err, errors.DefaultErrorMappers())
		}

		status := statusFor(appErr)
		appErr.WithRequestID(c.Response().Header().Get(echo.HeaderXRequestID))

		if status >= http.StatusInternalServerError {
			logger.Error("admin request failed", "error", err, "status", status)
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, appErr.ToErrorResponse(false, nil))
	}
}

func statusFor(e *errors.Error) int {
	if e.Code != 0 {
		return e.Code
	}
	switch e.Category {
	case errors.CategoryValidation, errors.CategoryBadInput:
		return http.StatusBadRequest
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case errors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
