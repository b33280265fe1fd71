package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"media-fetch/internal/logging"
)

// responseWriter records the status and body size of a response.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController so write
// deadlines set while streaming downloads reach the connection.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// LoggingConfig holds configuration for the logging middleware
type LoggingConfig struct {
	// SkipPaths are path prefixes that are never logged
	SkipPaths []string
	// LogHealthChecks includes the health probe endpoints in the log
	LogHealthChecks bool
}

// DefaultLoggingConfig returns the default configuration
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:       []string{},
		LogHealthChecks: true,
	}
}

var healthCheckPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

// accessRecord is one completed request.
type accessRecord struct {
	at       time.Time
	req      *http.Request
	rw       *responseWriter
	duration time.Duration
}

// w3cField is one column of the access log.
type w3cField struct {
	name  string
	value func(a *accessRecord) string
}

// w3cFields defines the access log columns in order. Values taken from the
// request are sanitized; empty values are written as "-".
var w3cFields = []w3cField{
	{"date", func(a *accessRecord) string { return a.at.Format("2006-01-02") }},
	{"time", func(a *accessRecord) string { return a.at.Format("15:04:05") }},
	{"c-ip", func(a *accessRecord) string { return sanitizeLogField(getClientIP(a.req)) }},
	{"cs-method", func(a *accessRecord) string { return sanitizeLogField(a.req.Method) }},
	{"cs-uri-stem", func(a *accessRecord) string { return sanitizeLogField(a.req.URL.Path) }},
	{"cs-uri-query", func(a *accessRecord) string { return sanitizeLogField(a.req.URL.RawQuery) }},
	{"sc-status", func(a *accessRecord) string { return strconv.Itoa(a.rw.statusCode) }},
	{"sc-bytes", func(a *accessRecord) string { return strconv.FormatInt(a.rw.bytesWritten, 10) }},
	{"time-taken", func(a *accessRecord) string { return strconv.FormatInt(a.duration.Milliseconds(), 10) }},
	{"sc(Content-Type)", func(a *accessRecord) string { return escapeW3CField(a.rw.Header().Get("Content-Type")) }},
	{"sc(Content-Encoding)", func(a *accessRecord) string { return a.rw.Header().Get("Content-Encoding") }},
	{"cs(User-Agent)", func(a *accessRecord) string { return escapeW3CField(sanitizeLogField(a.req.UserAgent())) }},
	{"cs(Referer)", func(a *accessRecord) string { return escapeW3CField(sanitizeLogField(a.req.Referer())) }},
}

// W3CLogger writes requests in W3C Extended Log Format
type W3CLogger struct {
	config      LoggingConfig
	serviceName string
	headerOnce  sync.Once
}

// NewW3CLogger creates a new W3C format logger
func NewW3CLogger(config LoggingConfig, serviceName string) *W3CLogger {
	return &W3CLogger{
		config:      config,
		serviceName: serviceName,
	}
}

// writeHeader emits the #Software and #Fields directives before the first entry.
func (l *W3CLogger) writeHeader() {
	l.headerOnce.Do(func() {
		names := make([]string, len(w3cFields))
		for i, f := range w3cFields {
			names[i] = f.name
		}
		logging.Println("#Software: " + l.serviceName)
		logging.Println("#Fields: " + strings.Join(names, " "))
	})
}

func (l *W3CLogger) logRequest(a *accessRecord) {
	l.writeHeader()

	values := make([]string, len(w3cFields))
	for i, f := range w3cFields {
		v := f.value(a)
		if v == "" {
			v = "-"
		}
		values[i] = v
	}

	//nolint:gosec // G706: user-controlled fields are passed through sanitizeLogField.
	logging.Println(strings.Join(values, " "))
}

// Logger returns HTTP logging middleware using W3C Extended Log Format
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	logger := NewW3CLogger(config, "MediaFetch/1.0")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkip(r.URL.Path, config) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := newResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			logger.logRequest(&accessRecord{
				at:       time.Now().UTC(),
				req:      r,
				rw:       wrapped,
				duration: time.Since(start),
			})
		})
	}
}

// sanitizeLogField strips control characters that could forge log lines or
// inject terminal escapes. Newlines become spaces; tabs are kept.
func sanitizeLogField(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		default:
			return r
		}
	}, s)
}

func shouldSkip(path string, config LoggingConfig) bool {
	for _, skipPath := range config.SkipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}

	return !config.LogHealthChecks && healthCheckPaths[path]
}

// getClientIP prefers proxy headers over the socket address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// escapeW3CField quotes values containing whitespace or quotes, doubling
// embedded quotes.
func escapeW3CField(s string) string {
	if strings.ContainsAny(s, " \t\"") {
		return "\"" + strings.ReplaceAll(s, "\"", "\"\"") + "\""
	}
	return s
}
