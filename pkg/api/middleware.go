package api

import (
	"compress/gzip"
	"log/slog"
	"net/http"
	"strings"
	"time"

	echo "github.com/labstack/echo/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/thalamus-ai/thalamus/pkg/observe"
)

// securityHeaders returns middleware that sets standard security response headers.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			return next(c)
		}
	}
}

// corsAllowAll returns permissive CORS middleware. The server fronts a
// local assistant, so the browser surface is trusted by construction.
func corsAllowAll() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if c.Request().Method == http.MethodOptions {
				c.Response().WriteHeader(http.StatusNoContent)
				return nil
			}
			return next(c)
		}
	}
}

// recoverPanics converts handler panics into 500 responses so one bad
// request cannot take the server down.
func recoverPanics(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					if logger != nil {
						logger.Error("Handler panic",
							"path", c.Request().URL.Path, "panic", r)
					}
					err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
				}
			}()
			return next(c)
		}
	}
}

// requestTiming records per-request latency and logs completed requests.
func requestTiming(metrics *observe.Metrics, logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			start := time.Now()
			err := next(c)
			elapsed := time.Since(start)

			req := c.Request()
			if metrics != nil {
				metrics.HTTPRequestDuration.Record(req.Context(), elapsed.Seconds(),
					metric.WithAttributes(
						attribute.String("method", req.Method),
						attribute.String("path", req.URL.Path),
					))
			}
			if logger != nil {
				logger.Debug("Request handled",
					"method", req.Method,
					"path", req.URL.Path,
					"duration_ms", elapsed.Milliseconds(),
					"failed", err != nil)
			}
			return err
		}
	}
}

// gzipResponses compresses responses at or above minBytes when the client
// accepts gzip. It sits outside the router so WebSocket upgrades bypass it
// via the Upgrade header check.
func gzipResponses(next http.Handler, minBytes int) http.Handler {
	if minBytes <= 0 {
		minBytes = 1024
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Upgrade") != "" ||
			!strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gw := &gzipResponseWriter{ResponseWriter: w, minBytes: minBytes, status: http.StatusOK}
		defer gw.finish()
		next.ServeHTTP(gw, r)
	})
}

// gzipResponseWriter buffers the response body until it either crosses the
// compression threshold or the handler returns, then commits either a gzip
// stream or the plain bytes.
type gzipResponseWriter struct {
	http.ResponseWriter
	minBytes int
	status   int
	buf      []byte
	zw       *gzip.Writer
}

func (g *gzipResponseWriter) WriteHeader(status int) {
	// Deferred until we know whether the body compresses.
	g.status = status
}

func (g *gzipResponseWriter) Write(p []byte) (int, error) {
	if g.zw != nil {
		return g.zw.Write(p)
	}
	g.buf = append(g.buf, p...)
	if len(g.buf) >= g.minBytes {
		if err := g.startGzip(); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (g *gzipResponseWriter) startGzip() error {
	h := g.ResponseWriter.Header()
	h.Del("Content-Length")
	h.Set("Content-Encoding", "gzip")
	g.ResponseWriter.WriteHeader(g.status)

	g.zw = gzip.NewWriter(g.ResponseWriter)
	_, err := g.zw.Write(g.buf)
	g.buf = nil
	return err
}

func (g *gzipResponseWriter) finish() {
	if g.zw != nil {
		_ = g.zw.Close()
		return
	}
	g.ResponseWriter.WriteHeader(g.status)
	if len(g.buf) > 0 {
		_, _ = g.ResponseWriter.Write(g.buf)
	}
}
