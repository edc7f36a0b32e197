package server

import (
	"net/http"
	"strconv"
	"time"
)

// Health checks and scrapes are neither logged nor counted.
var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// statusRecorder captures the status and body size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusRecorder) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach Flush and deadlines on the
// underlying writer.
func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusRecorder) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if quietPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)
		status := rec.code()

		s.observer.RecordRequest(r.Method, statusClass(status), elapsed.Seconds())

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", rec.bytes,
			"duration_ms", elapsed.Milliseconds(),
			"remote_addr", r.RemoteAddr,
		}
		if r.Pattern != "" {
			attrs = append(attrs, "route", r.Pattern)
		}
		if r.ContentLength > 0 {
			attrs = append(attrs, "request_bytes", r.ContentLength)
		}

		switch {
		case status >= 500:
			s.log().Error("request complete", attrs...)
		case r.Method == http.MethodGet || r.Method == http.MethodHead:
			s.log().Debug("request complete", attrs...)
		default:
			s.log().Info("request complete", attrs...)
		}
	})
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}
