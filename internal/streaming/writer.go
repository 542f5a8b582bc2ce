package streaming

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"mov-converter/internal/logging"
)

var (
	// ErrWriteTimeout means a single chunk could not be written within
	// Config.WriteTimeout.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone means the request context was canceled mid-stream.
	ErrClientGone = errors.New("client disconnected")
)

// Config controls chunking and deadlines.
type Config struct {
	// WriteTimeout bounds each chunk write. Zero disables deadlines.
	WriteTimeout time.Duration
	// ChunkSize is the largest slice handed to the underlying writer.
	// Zero writes each buffer as received.
	ChunkSize int
}

// DefaultConfig returns 30 second deadlines and 64KB chunks.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		ChunkSize:    64 * 1024,
	}
}

// Writer is an io.Writer over an http.ResponseWriter that enforces Config.
type Writer struct {
	w         http.ResponseWriter
	rc        *http.ResponseController
	ctx       context.Context
	config    Config
	deadlines bool
	written   int64
	start     time.Time
}

// NewWriter wraps w. Writes fail with ErrClientGone once ctx is done.
func NewWriter(ctx context.Context, w http.ResponseWriter, config Config) *Writer {
	return &Writer{
		w:         w,
		rc:        http.NewResponseController(w),
		ctx:       ctx,
		config:    config,
		deadlines: config.WriteTimeout > 0,
		start:     time.Now(),
	}
}

// Write sends p in chunks, flushing after each one.
func (sw *Writer) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		if err := sw.ctx.Err(); err != nil {
			return total, ErrClientGone
		}

		size := len(p)
		if sw.config.ChunkSize > 0 && size > sw.config.ChunkSize {
			size = sw.config.ChunkSize
		}

		n, err := sw.writeChunk(p[:size])
		total += n
		sw.written += int64(n)
		if err != nil {
			return total, err
		}
		p = p[size:]
	}
	return total, nil
}

func (sw *Writer) writeChunk(chunk []byte) (int, error) {
	if sw.deadlines {
		if err := sw.rc.SetWriteDeadline(time.Now().Add(sw.config.WriteTimeout)); err != nil {
			// Not supported by this writer; carry on without.
			sw.deadlines = false
		}
	}

	n, err := sw.w.Write(chunk)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return n, ErrWriteTimeout
		}
		if sw.ctx.Err() != nil {
			return n, ErrClientGone
		}
		return n, err
	}

	if ferr := sw.rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
		return n, ferr
	}
	return n, nil
}

// Close clears any pending write deadline.
func (sw *Writer) Close() error {
	if !sw.deadlines {
		return nil
	}
	return sw.rc.SetWriteDeadline(time.Time{})
}

// Stats returns bytes written so far and time since the writer was created.
func (sw *Writer) Stats() (int64, time.Duration) {
	return sw.written, time.Since(sw.start)
}

// Stream copies r to w under config and returns the bytes written.
// Callers set headers before calling Stream.
func Stream(ctx context.Context, w http.ResponseWriter, r io.Reader, config Config) (int64, error) {
	sw := NewWriter(ctx, w, config)
	defer func() {
		if err := sw.Close(); err != nil {
			logging.Debug("Failed to clear write deadline: %v", err)
		}
	}()

	_, err := io.Copy(sw, r)

	written, elapsed := sw.Stats()
	logging.Debug("Stream finished: %d bytes in %v", written, elapsed)

	return written, err
}
