package log

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPLogEntry describes one served HTTP request
type HTTPLogEntry struct {
	RequestID  string
	Method     string
	Path       string
	Status     int
	Duration   time.Duration
	Size       int
	RemoteAddr string
	UserAgent  string
	Err        error
}

// LogHTTPRequest writes an access log line. Server errors are logged at error level,
// client errors at warn, everything else at info.
func LogHTTPRequest(e HTTPLogEntry) {
	fields := []zap.Field{
		zap.String("request_id", e.RequestID),
		zap.String("method", e.Method),
		zap.String("path", e.Path),
		zap.Int("status", e.Status),
		zap.Int64("duration_ms", e.Duration.Milliseconds()),
		zap.Int("size", e.Size),
		zap.String("remote_addr", e.RemoteAddr),
		zap.String("user_agent", e.UserAgent),
	}
	if e.Err != nil {
		fields = append(fields, zap.Error(e.Err))
	}

	l := GetZapLogger()
	switch {
	case e.Status >= http.StatusInternalServerError:
		l.Error("http request", fields...)
	case e.Status >= http.StatusBadRequest:
		l.Warn("http request", fields...)
	default:
		l.Info("http request", fields...)
	}
}
