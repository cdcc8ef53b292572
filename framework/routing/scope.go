package routing

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/km-arc/go-beans/framework/container"
)

// RequestScope opens a container request-scope context for every request and
// ends it once the handler returns, destroying the request's beans. The
// context id is taken from header when the client sent one, otherwise a new
// UUID; it is echoed back in the same header.
//
//	r := routing.New(routing.RequestScope(c, "X-Request-ID", log))
func RequestScope(c *container.Container, header string, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(header)
			if id == "" {
				id = uuid.NewString()
			}

			ctx, err := c.BeginScope(r.Context(), container.ScopeRequest, id)
			if errors.Is(err, container.ErrScopeAlreadyActive) {
				// client reused an id that is still in flight
				id = uuid.NewString()
				ctx, err = c.BeginScope(r.Context(), container.ScopeRequest, id)
			}
			if err != nil {
				log.Warn("request scope unavailable", zap.Error(err))
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}

			defer func() {
				if err := c.EndScope(ctx, container.ScopeRequest, id); err != nil {
					log.Error("ending request scope", zap.String("request_id", id), zap.Error(err))
				}
			}()

			w.Header().Set(header, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestID returns the id of the request-scope context carried by r.
func RequestID(r *http.Request) string {
	sc, ok := container.ActiveScope(r.Context(), container.ScopeRequest)
	if !ok {
		return ""
	}
	return sc.ID()
}

// AccessLog logs one line per request with status, size and duration.
func AccessLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote", r.RemoteAddr))
		})
	}
}
