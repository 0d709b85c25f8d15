package restserver

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"go.uber.org/zap"

	"github.com/chrissnell/pvestimate/internal/log"
)

const (
	requestIDHeader = "X-Request-Id"
	runIDHeader     = "X-Run-Id"
)

// withRequestID tags the request with a request ID, keeping one supplied by the client,
// and echoes it in the response.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// endpoints bounds the metric label values to the routes we serve.
var endpoints = map[string]bool{
	"healthz":       true,
	"metrics":       true,
	"sites":         true,
	"solarposition": true,
	"clearsky":      true,
	"estimate":      true,
}

func endpointLabel(path string) string {
	first, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if endpoints[first] {
		return "/" + first
	}
	return "other"
}

// logRequest is the gorilla access-log formatter. It writes through zap and records
// request metrics instead of printing a log line.
func (c *Controller) logRequest(_ io.Writer, p handlers.LogFormatterParams) {
	d := time.Since(p.TimeStamp)
	log.LogHTTPRequest(log.HTTPLogEntry{
		RequestID:  p.Request.Header.Get(requestIDHeader),
		Method:     p.Request.Method,
		Path:       p.URL.Path,
		Status:     p.StatusCode,
		Duration:   d,
		Size:       p.Size,
		RemoteAddr: p.Request.RemoteAddr,
		UserAgent:  p.Request.UserAgent(),
	})
	c.metrics.ObserveRequest(endpointLabel(p.URL.Path), p.Request.Method, p.StatusCode, d)
}

// recoveryLogger adapts zap to the Println logger gorilla's recovery handler expects.
type recoveryLogger struct {
	logger *zap.SugaredLogger
}

func (l recoveryLogger) Println(v ...any) {
	l.logger.Error(v...)
}
