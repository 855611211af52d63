package admin

import (
	"log/slog"
	"net/http"
	"time"

	errors "github.com/goliatone/go-errors"
	"github.com/labstack/echo/v4"

	"github.com/goliatone/go-memocache/cache"
	"github.com/goliatone/go-memocache/pkg/di"
)

// FlushResponse confirms an administrative flush.
type FlushResponse struct {
	Cleared   map[string]int `json:"cleared"`
	Total     int            `json:"total"`
	Timestamp time.Time      `json:"timestamp"`
}

// StatsResponse reports per namespace stats and the whole store.
type StatsResponse struct {
	Namespaces map[string]cache.Stats `json:"namespaces"`
	Store      cache.Stats            `json:"store"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Handler serves the cache admin endpoints.
type Handler struct {
	container *di.Container
	now       func() time.Time
	logger    *slog.Logger
}

// NewHandler returns a Handler over container.
func NewHandler(container *di.Container, opts ...Option) *Handler {
	o := applyOptions(opts)
	return &Handler{container: container, now: o.now, logger: o.logger}
}

// Register mounts the endpoints on g:
//
//	POST /cache/flush[?namespace=search]
//	GET  /cache/stats
func (h *Handler) Register(g *echo.Group) {
	g.POST("/cache/flush", h.Flush)
	g.GET("/cache/stats", h.Stats)
}

// Flush clears the prebuilt caches, or only the one named by the namespace
// query parameter.
func (h *Handler) Flush(c echo.Context) error {
	cleared := map[string]int{}

	if ns := c.QueryParam("namespace"); ns != "" {
		handle := h.lookup(ns)
		if handle == nil {
			return errors.New("unknown cache namespace", errors.CategoryNotFound).
				WithCode(http.StatusNotFound).
				WithTextCode("UNKNOWN_NAMESPACE").
				WithMetadata(map[string]any{"namespace": ns})
		}
		cleared[handle.Namespace()] = handle.Clear()
	} else {
		cleared = h.container.FlushAll()
	}

	total := 0
	for _, n := range cleared {
		total += n
	}

	h.logger.InfoContext(c.Request().Context(), "admin flush",
		"cleared", total,
		"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
	)

	return c.JSON(http.StatusOK, FlushResponse{
		Cleared:   cleared,
		Total:     total,
		Timestamp: h.now().UTC(),
	})
}

// Stats reports entry counts for every prebuilt cache.
func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, StatsResponse{
		Namespaces: h.container.StatsAll(),
		Store:      h.container.Store().Stats(),
		Timestamp:  h.now().UTC(),
	})
}

func (h *Handler) lookup(namespace string) *cache.Handle {
	for _, handle := range h.container.Handles() {
		if handle.Namespace() == namespace {
			return handle
		}
	}
	return nil
}
