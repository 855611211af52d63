package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/goliatone/go-memocache/cache"
	"github.com/goliatone/go-memocache/pkg/admin"
	"github.com/goliatone/go-memocache/pkg/di"
	"github.com/goliatone/go-memocache/upstreamcache"
)

const shutdownTimeout = 5 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(os.Getenv("MEMOCACHE_LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("memocache exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config := di.DefaultConfig()
	if path := os.Getenv("MEMOCACHE_CONFIG"); path != "" {
		loaded, err := di.LoadConfig(path)
		if err != nil {
			return err
		}
		config = loaded
	}
	config.Cache.Logger = logger

	mp, err := newMeterProvider(os.Getenv("MEMOCACHE_METRICS"))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = mp.Shutdown(shutdownCtx)
	}()

	metrics, err := cache.NewOTelMetrics(mp.Meter("memocache"))
	if err != nil {
		return err
	}
	config.Metrics = metrics

	container, err := di.NewContainer(config)
	if err != nil {
		return err
	}
	defer container.Close()

	e := admin.NewServer(container, admin.WithLogger(logger))

	if base := os.Getenv("MEMOCACHE_SEARCH_URL"); base != "" {
		searcher := di.NewCachedSearcher(container, upstreamcache.NewHTTPSearcher(base,
			upstreamcache.WithAPIKey(os.Getenv("MEMOCACHE_SEARCH_API_KEY")),
		))
		e.GET("/search", searchHandler(searcher))
		logger.Info("search proxy enabled", "upstream", base)
	}

	addr := defaultString(os.Getenv("MEMOCACHE_ADDR"), ":8080")
	errCh := make(chan error, 1)
	go func() {
		logger.Info("admin server listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func searchHandler(searcher *upstreamcache.CachedSearcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		q := upstreamcache.SearchQuery{
			Query:    c.QueryParam("q"),
			Language: c.QueryParam("lang"),
			Country:  c.QueryParam("country"),
		}
		if q.Query == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "missing q")
		}
		if n, err := strconv.Atoi(c.QueryParam("num")); err == nil && n > 0 {
			q.MaxResults = n
		}

		res, err := searcher.Lookup(c.Request().Context(), q)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]any{
			"results":   res.Value,
			"fromCache": res.FromCache,
		})
	}
}

func newMeterProvider(exporter string) (*sdkmetric.MeterProvider, error) {
	opts := []sdkmetric.Option{
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", "memocache"))),
	}

	switch strings.ToLower(exporter) {
	case "", "none":
	case "stdout":
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(time.Minute))))
	default:
		return nil, errors.New("unsupported metrics exporter: " + exporter)
	}

	return sdkmetric.NewMeterProvider(opts...), nil
}

func logLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
