package middleware

import (
	"compress/gzip"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// CompressionConfig holds configuration for the compression middleware
type CompressionConfig struct {
	// MinSize is the minimum response size in bytes before compression is applied
	MinSize int
	// CompressibleTypes is a list of media types that should be compressed
	CompressibleTypes []string
	// SkipPaths are passed through untouched. Media downloads belong here:
	// they are already compressed and must stream without buffering.
	SkipPaths []string
}

// DefaultCompressionConfig compresses JSON API responses such as format
// listings and leaves downloads alone.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize: 1024,
		CompressibleTypes: []string{
			"application/json",
			"text/plain",
		},
		SkipPaths: []string{"/api/download"},
	}
}

// gzipWriterPool reduces allocations by reusing gzip writers
var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.DefaultCompression)
		return w
	},
}

type compressionState int

const (
	// statePending buffers output until MinSize bytes or the end of the response.
	statePending compressionState = iota
	statePassthrough
	stateCompressing
)

// gzipResponseWriter buffers the start of a response to decide whether it is
// worth compressing.
type gzipResponseWriter struct {
	http.ResponseWriter
	config     CompressionConfig
	state      compressionState
	statusCode int
	buffer     []byte
	gz         *gzip.Writer
}

func newGzipResponseWriter(w http.ResponseWriter, config CompressionConfig) *gzipResponseWriter {
	return &gzipResponseWriter{
		ResponseWriter: w,
		config:         config,
		statusCode:     http.StatusOK,
		buffer:         make([]byte, 0, config.MinSize+1),
	}
}

// WriteHeader records the status; it is sent once the decision is made.
func (g *gzipResponseWriter) WriteHeader(statusCode int) {
	if g.state == statePending {
		g.statusCode = statusCode
	}
}

func (g *gzipResponseWriter) Write(data []byte) (int, error) {
	switch g.state {
	case stateCompressing:
		return g.gz.Write(data)
	case statePassthrough:
		return g.ResponseWriter.Write(data)
	}

	g.buffer = append(g.buffer, data...)
	if len(g.buffer) > g.config.MinSize {
		if err := g.decide(); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

// compressible reports whether the response content type is in the
// configured list and the handler has not encoded the body itself.
func (g *gzipResponseWriter) compressible() bool {
	if g.Header().Get("Content-Encoding") != "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(g.Header().Get("Content-Type"))
	if err != nil {
		return false
	}
	return lo.Contains(g.config.CompressibleTypes, mediaType)
}

// decide sends the headers and the buffered output, compressed or not.
func (g *gzipResponseWriter) decide() error {
	if g.state != statePending {
		return nil
	}

	buffered := g.buffer
	g.buffer = nil

	if len(buffered) < g.config.MinSize || !g.compressible() {
		g.state = statePassthrough
		g.ResponseWriter.WriteHeader(g.statusCode)
		if len(buffered) == 0 {
			return nil
		}
		_, err := g.ResponseWriter.Write(buffered)
		return err
	}

	g.state = stateCompressing
	h := g.Header()
	h.Del("Content-Length")
	h.Set("Content-Encoding", "gzip")
	h.Add("Vary", "Accept-Encoding")

	g.gz = gzipWriterPool.Get().(*gzip.Writer)
	g.gz.Reset(g.ResponseWriter)

	g.ResponseWriter.WriteHeader(g.statusCode)
	_, err := g.gz.Write(buffered)
	return err
}

// Close flushes any pending output and returns the gzip writer to the pool.
func (g *gzipResponseWriter) Close() error {
	err := g.decide()

	if g.gz != nil {
		if cerr := g.gz.Close(); err == nil {
			err = cerr
		}
		gzipWriterPool.Put(g.gz)
		g.gz = nil
	}
	return err
}

// Flush implements http.Flusher. It forces the compression decision.
func (g *gzipResponseWriter) Flush() {
	_ = g.decide()

	if g.gz != nil {
		_ = g.gz.Flush()
	}
	if flusher, ok := g.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (g *gzipResponseWriter) Unwrap() http.ResponseWriter {
	return g.ResponseWriter
}

// acceptsGzip reports whether the Accept-Encoding header allows gzip with a
// non-zero quality.
func acceptsGzip(header string) bool {
	for _, part := range strings.Split(header, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		coding = strings.ToLower(strings.TrimSpace(coding))
		if coding != "gzip" && coding != "*" {
			continue
		}

		name, value, found := strings.Cut(strings.TrimSpace(params), "=")
		if !found || strings.TrimSpace(name) != "q" {
			return true
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		return err == nil && q > 0
	}
	return false
}

// Compression returns a middleware that compresses responses using gzip
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !acceptsGzip(r.Header.Get("Accept-Encoding")) {
				next.ServeHTTP(w, r)
				return
			}

			for _, path := range config.SkipPaths {
				if strings.HasPrefix(r.URL.Path, path) {
					next.ServeHTTP(w, r)
					return
				}
			}

			gzw := newGzipResponseWriter(w, config)
			defer func() { _ = gzw.Close() }()

			next.ServeHTTP(gzw, r)
		})
	}
}
