package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// CompressionConfig holds configuration for response compression
type CompressionConfig struct {
	MinSize          int      // Minimum size of the first write to compress (bytes)
	CompressionLevel int      // Gzip compression level (1-9)
	ContentTypes     []string // Content types to compress
	ExcludedPaths    []string // Path prefixes that handle encoding themselves
}

// DefaultCompressionConfig returns the default compression configuration
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:          1024,
		CompressionLevel: gzip.DefaultCompression,
		ContentTypes: []string{
			"application/json",
			"text/plain",
			"text/html",
			"text/css",
			"application/javascript",
		},
		// promhttp negotiates gzip on its own
		ExcludedPaths: []string{"/metrics"},
	}
}

// Compression gzips large responses for clients that accept it
func Compression(config CompressionConfig) gin.HandlerFunc {
	pool := sync.Pool{
		New: func() interface{} {
			gz, err := gzip.NewWriterLevel(io.Discard, config.CompressionLevel)
			if err != nil {
				gz = gzip.NewWriter(io.Discard)
			}
			return gz
		},
	}

	return func(c *gin.Context) {
		if !acceptsGzip(c.Request) || excluded(config.ExcludedPaths, c.Request.URL.Path) {
			c.Next()
			return
		}

		gw := &gzipResponseWriter{
			ResponseWriter: c.Writer,
			config:         &config,
			pool:           &pool,
		}
		c.Writer = gw
		c.Header("Vary", "Accept-Encoding")

		c.Next()

		gw.finish()
		c.Writer = gw.ResponseWriter
	}
}

func acceptsGzip(r *http.Request) bool {
	return r.Method != http.MethodHead && strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

func excluded(prefixes []string, path string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// gzipResponseWriter decides on the first write whether the body is compressed
type gzipResponseWriter struct {
	gin.ResponseWriter
	config  *CompressionConfig
	pool    *sync.Pool
	gz      *gzip.Writer
	decided bool
}

func (w *gzipResponseWriter) decide(firstWrite []byte) {
	w.decided = true

	switch w.Status() {
	case http.StatusNoContent, http.StatusNotModified:
		return
	}
	if len(firstWrite) < w.config.MinSize || !w.compressible(w.Header().Get("Content-Type")) {
		return
	}
	if w.Header().Get("Content-Encoding") != "" {
		return
	}

	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Del("Content-Length")

	w.gz = w.pool.Get().(*gzip.Writer)
	w.gz.Reset(w.ResponseWriter)
}

func (w *gzipResponseWriter) compressible(contentType string) bool {
	for _, ct := range w.config.ContentTypes {
		if strings.Contains(contentType, ct) {
			return true
		}
	}
	return false
}

// Write writes data through the gzip writer once compression was chosen
func (w *gzipResponseWriter) Write(data []byte) (int, error) {
	if !w.decided {
		w.decide(data)
	}
	if w.gz == nil {
		return w.ResponseWriter.Write(data)
	}
	return w.gz.Write(data)
}

// WriteString implements gin.ResponseWriter
func (w *gzipResponseWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Flush flushes buffered compressed data to the client
func (w *gzipResponseWriter) Flush() {
	if w.gz != nil {
		_ = w.gz.Flush()
	}
	w.ResponseWriter.Flush()
}

func (w *gzipResponseWriter) finish() {
	if w.gz == nil {
		return
	}
	_ = w.gz.Close()
	w.gz.Reset(io.Discard)
	w.pool.Put(w.gz)
	w.gz = nil
}
