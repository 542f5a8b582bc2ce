package middleware

import (
	"compress/gzip"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
)

// compressibleTypes are the media types worth gzipping: rendered pages and
// API responses. Converted video is already compressed and passes through.
var compressibleTypes = map[string]bool{
	"text/html":        true,
	"text/plain":       true,
	"application/json": true,
}

// CompressionConfig holds configuration for the compression middleware
type CompressionConfig struct {
	// MinSize is the smallest body in bytes that gets compressed.
	MinSize int
}

// DefaultCompressionConfig returns the compression settings used by the server.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{MinSize: 1024}
}

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		return gzip.NewWriter(io.Discard)
	},
}

func isCompressible(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return compressibleTypes[mediaType]
}

// gzipResponseWriter decides when the header is written whether the body is
// compressed. Other content types go straight to the client; compressible
// bodies are held until MinSize bytes have arrived.
type gzipResponseWriter struct {
	http.ResponseWriter
	minSize    int
	statusCode int

	decided  bool
	compress bool
	started  bool
	buffer   []byte
	gz       *gzip.Writer
}

func newGzipResponseWriter(w http.ResponseWriter, config CompressionConfig) *gzipResponseWriter {
	return &gzipResponseWriter{
		ResponseWriter: w,
		minSize:        config.MinSize,
		statusCode:     http.StatusOK,
	}
}

func (g *gzipResponseWriter) WriteHeader(statusCode int) {
	if g.decided {
		return
	}
	g.decided = true
	g.statusCode = statusCode

	h := g.Header()
	g.compress = h.Get("Content-Encoding") == "" && isCompressible(h.Get("Content-Type"))
	if !g.compress {
		g.ResponseWriter.WriteHeader(statusCode)
	}
}

func (g *gzipResponseWriter) Write(data []byte) (int, error) {
	if !g.decided {
		g.WriteHeader(http.StatusOK)
	}
	if !g.compress {
		return g.ResponseWriter.Write(data)
	}
	if g.started {
		return g.gz.Write(data)
	}

	g.buffer = append(g.buffer, data...)
	if len(g.buffer) >= g.minSize {
		if err := g.startGzip(); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

// startGzip sends the header and the held bytes through a pooled gzip writer.
func (g *gzipResponseWriter) startGzip() error {
	g.started = true

	h := g.Header()
	h.Del("Content-Length")
	h.Set("Content-Encoding", "gzip")
	h.Add("Vary", "Accept-Encoding")
	g.ResponseWriter.WriteHeader(g.statusCode)

	g.gz = gzipWriterPool.Get().(*gzip.Writer)
	g.gz.Reset(g.ResponseWriter)
	_, err := g.gz.Write(g.buffer)
	g.buffer = nil
	return err
}

// Close sends a held body that never reached MinSize uncompressed, or ends
// the gzip stream and returns the writer to the pool.
func (g *gzipResponseWriter) Close() error {
	if !g.decided {
		g.WriteHeader(http.StatusOK)
	}

	if g.compress && !g.started {
		g.compress = false
		g.ResponseWriter.WriteHeader(g.statusCode)
		_, err := g.ResponseWriter.Write(g.buffer)
		g.buffer = nil
		return err
	}

	if g.gz == nil {
		return nil
	}
	err := g.gz.Close()
	gzipWriterPool.Put(g.gz)
	g.gz = nil
	return err
}

// Flush implements http.Flusher. A held compressible body starts its gzip
// stream early.
func (g *gzipResponseWriter) Flush() {
	if !g.decided {
		g.WriteHeader(http.StatusOK)
	}
	if g.compress && !g.started {
		_ = g.startGzip()
	}
	if g.gz != nil {
		_ = g.gz.Flush()
	}
	if flusher, ok := g.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap lets http.ResponseController set deadlines on the connection.
func (g *gzipResponseWriter) Unwrap() http.ResponseWriter {
	return g.ResponseWriter
}

// Compression gzips HTML, text and JSON responses for clients that accept it.
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead || !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
				next.ServeHTTP(w, r)
				return
			}

			gzw := newGzipResponseWriter(w, config)
			defer gzw.Close()

			next.ServeHTTP(gzw, r)
		})
	}
}
