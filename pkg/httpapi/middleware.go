package httpapi

import (
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/daviddao/potluck/pkg/apperr"
	"github.com/daviddao/potluck/pkg/identity"
	"github.com/daviddao/potluck/pkg/model"
)

const identityKey = "potluck.identity"

// TokenVerifier resolves a bearer token to a caller.
type TokenVerifier interface {
	Verify(raw string) (model.Identity, error)
}

// Auth resolves the bearer token into an identity. Requests without a
// valid token are rejected with 401.
func Auth(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			abort(c, apperr.New(apperr.CodeUnauthenticated, "missing bearer token"))
			return
		}
		id, err := v.Verify(strings.TrimSpace(raw))
		if err != nil {
			abort(c, apperr.Wrap(apperr.CodeUnauthenticated, "invalid or expired token", err))
			return
		}
		c.Set(identityKey, id)
		c.Request = c.Request.WithContext(identity.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// caller returns the identity set by Auth, or nil.
func caller(c *gin.Context) *model.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, ok := v.(model.Identity)
	if !ok {
		return nil
	}
	return &id
}

// Logging writes one key=value line per request.
func Logging(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		status := c.Writer.Status()
		lvl := "info"
		switch {
		case status >= 500:
			lvl = "error"
		case status >= 400:
			lvl = "warn"
		}
		line := "lvl=" + lvl + " method=" + c.Request.Method + " path=" + c.Request.URL.Path
		if sc := trace.SpanFromContext(c.Request.Context()).SpanContext(); sc.IsValid() {
			line += " trace_id=" + sc.TraceID().String()
		}
		logger.Printf("%s status=%d duration_ms=%d", line, status, time.Since(started).Milliseconds())
	}
}

// Propagation continues the caller's trace from W3C traceparent headers, so
// service spans and request log lines share the inbound trace ID.
func Propagation() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// CORS allows browser clients on other origins to poll the API.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
