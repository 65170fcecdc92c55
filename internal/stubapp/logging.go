package stubapp

import (
	"net/http"
	"strings"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"pkt.systems/pslog"
)

// withRequestLogging binds the server logger to the request and logs one
// line per request once it completes.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		if s.log != nil {
			ctx = pslog.ContextWithLogger(ctx, s.log)
		}
		logger := pslog.Ctx(ctx).With("remote", clientIP(r))
		if id := chiMiddleware.GetReqID(ctx); id != "" {
			logger = logger.With("req", id)
		}

		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(pslog.ContextWithLogger(ctx, logger)))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		target := r.URL.Path
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		logger.Info("request served", "method", r.Method, "target", target, "status", status, "bytes", ww.BytesWritten(), "ms", time.Since(start).Milliseconds())
		if ua := r.UserAgent(); ua != "" {
			logger.Debug("request agent", "ua", ua)
		}
	})
}

// clientIP prefers the first X-Forwarded-For hop over the socket peer.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	return r.RemoteAddr
}
