package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"mov-converter/internal/logging"
	"mov-converter/internal/metrics"
)

// FailureKind classifies why a conversion did not succeed.
type FailureKind string

const (
	// FailureNone marks a successful conversion.
	FailureNone FailureKind = ""
	// FailureEngine means the engine ran and exited with an error.
	FailureEngine FailureKind = "engine_error"
	// FailureTimeout means the engine exceeded the configured timeout and was killed.
	FailureTimeout FailureKind = "timeout"
	// FailureUnavailable means the engine could not be started.
	FailureUnavailable FailureKind = "engine_unavailable"
	// FailureCanceled means the caller's context ended before the engine finished.
	FailureCanceled FailureKind = "canceled"
)

// Sentinel errors returned by Result.Err.
var (
	ErrEngine      = errors.New("transcoding engine reported an error")
	ErrTimeout     = errors.New("transcoding timed out")
	ErrUnavailable = errors.New("transcoding engine unavailable")
	ErrCanceled    = errors.New("transcoding canceled")
)

const (
	// processWaitDelay bounds how long Wait blocks on the engine's pipes
	// after the process has been killed.
	processWaitDelay = 5 * time.Second

	// maxDiagnosticsBytes caps the amount of stderr surfaced to users.
	maxDiagnosticsBytes = 64 * 1024

	engineCheckTimeout = 5 * time.Second

	// engineRecheckInterval is how long a failed engine check is trusted
	// before Available runs it again.
	engineRecheckInterval = 30 * time.Second
)

// Result is the outcome of a single Convert call.
type Result struct {
	OK          bool
	Diagnostics string
	Failure     FailureKind
	Elapsed     time.Duration
}

// Err returns nil for a successful result, or the sentinel matching the
// failure kind wrapped with the diagnostics.
func (r Result) Err() error {
	if r.OK {
		return nil
	}

	var sentinel error
	switch r.Failure {
	case FailureTimeout:
		sentinel = ErrTimeout
	case FailureUnavailable:
		sentinel = ErrUnavailable
	case FailureCanceled:
		sentinel = ErrCanceled
	default:
		sentinel = ErrEngine
	}

	if r.Diagnostics == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, r.Diagnostics)
}

// Options configures a Converter.
type Options struct {
	FFmpegPath  string
	FFprobePath string
	// Timeout bounds each engine run. Zero disables the bound.
	Timeout time.Duration
}

// DefaultOptions returns options that resolve the engine from PATH with a
// 30 minute timeout.
func DefaultOptions() Options {
	return Options{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		Timeout:     30 * time.Minute,
	}
}

// Converter invokes the transcoding engine.
type Converter struct {
	ffmpegPath  string
	ffprobePath string
	timeout     time.Duration

	processes map[string]*exec.Cmd
	processMu sync.Mutex

	engineMu        sync.RWMutex
	engineChecked   bool
	engineCheckedAt time.Time
	engineVersion   string
	engineErr       error
	recheckInterval time.Duration
}

// New creates a new Converter. Empty paths fall back to the defaults.
func New(opts Options) *Converter {
	defaults := DefaultOptions()
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = defaults.FFmpegPath
	}
	if opts.FFprobePath == "" {
		opts.FFprobePath = defaults.FFprobePath
	}
	if opts.Timeout < 0 {
		opts.Timeout = 0
	}

	return &Converter{
		ffmpegPath:  opts.FFmpegPath,
		ffprobePath: opts.FFprobePath,
		timeout:     opts.Timeout,
		processes:   make(map[string]*exec.Cmd),

		recheckInterval: engineRecheckInterval,
	}
}

// Timeout returns the per-conversion timeout (0 = unbounded).
func (c *Converter) Timeout() time.Duration {
	return c.timeout
}

// buildArgs returns the engine arguments for a MOV to MP4 conversion.
// -y makes the engine overwrite an existing output instead of failing.
func buildArgs(inputPath, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-y",
		"-i", inputPath,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-movflags", "+faststart",
		"-f", "mp4",
		outputPath,
	}
}

// Convert transcodes inputPath into an MP4 at outputPath and blocks until the
// engine exits, the timeout elapses, or ctx is done. Exactly one engine
// process is spawned per call. Partial output is left for the caller to
// remove.
func (c *Converter) Convert(ctx context.Context, inputPath, outputPath string) Result {
	start := time.Now()
	metrics.ConversionsInProgress.Inc()
	defer metrics.ConversionsInProgress.Dec()

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := buildArgs(inputPath, outputPath)
	cmd := exec.CommandContext(runCtx, c.ffmpegPath, args...)
	cmd.WaitDelay = processWaitDelay

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logging.Debug("Engine command: %s %s", c.ffmpegPath, strings.Join(args, " "))

	if err := cmd.Start(); err != nil {
		if ctx.Err() != nil {
			return c.finish(start, FailureCanceled, ctx.Err().Error())
		}
		return c.finish(start, FailureUnavailable, fmt.Sprintf("failed to start %s: %v", c.ffmpegPath, err))
	}

	c.track(outputPath, cmd)
	defer c.untrack(outputPath)

	err := cmd.Wait()
	if err == nil {
		return c.finish(start, FailureNone, "")
	}

	diagnostics := trimDiagnostics(stderr.String())

	switch {
	case ctx.Err() != nil:
		return c.finish(start, FailureCanceled, joinDiagnostics(ctx.Err().Error(), diagnostics))
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		msg := fmt.Sprintf("conversion did not finish within %v and was stopped", c.timeout)
		return c.finish(start, FailureTimeout, joinDiagnostics(msg, diagnostics))
	default:
		if diagnostics == "" {
			diagnostics = fmt.Sprintf("%s failed: %v", c.ffmpegPath, err)
		}
		return c.finish(start, FailureEngine, diagnostics)
	}
}

func (c *Converter) finish(start time.Time, kind FailureKind, diagnostics string) Result {
	elapsed := time.Since(start)
	result := Result{
		OK:          kind == FailureNone,
		Diagnostics: diagnostics,
		Failure:     kind,
		Elapsed:     elapsed,
	}

	status := "success"
	if !result.OK {
		status = string(kind)
	}
	metrics.ConversionsTotal.WithLabelValues(status).Inc()
	metrics.ConversionDuration.Observe(elapsed.Seconds())

	return result
}

func (c *Converter) track(key string, cmd *exec.Cmd) {
	c.processMu.Lock()
	c.processes[key] = cmd
	c.processMu.Unlock()
}

func (c *Converter) untrack(key string) {
	c.processMu.Lock()
	delete(c.processes, key)
	c.processMu.Unlock()
}

// ActiveCount returns the number of engine processes currently running.
func (c *Converter) ActiveCount() int {
	c.processMu.Lock()
	defer c.processMu.Unlock()
	return len(c.processes)
}

// Cleanup stops all active engine processes.
func (c *Converter) Cleanup() {
	c.processMu.Lock()
	defer c.processMu.Unlock()

	for path, cmd := range c.processes {
		if cmd.Process != nil {
			logging.Info("Killing engine process writing: %s", path)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill engine process for %s: %v", path, err)
			}
		}
	}
}

// CheckEngine verifies the engine binary can be found and executed, and
// returns the first line of its version banner. The outcome is remembered
// for Available.
func (c *Converter) CheckEngine(ctx context.Context) (string, error) {
	version, err := c.checkEngine(ctx)

	c.engineMu.Lock()
	c.engineChecked = true
	c.engineCheckedAt = time.Now()
	c.engineVersion = version
	c.engineErr = err
	c.engineMu.Unlock()

	return version, err
}

func (c *Converter) checkEngine(ctx context.Context) (string, error) {
	path, err := exec.LookPath(c.ffmpegPath)
	if err != nil {
		return "", fmt.Errorf("%s not found: %w", c.ffmpegPath, err)
	}
	logging.Debug("  FFmpeg path: %s", path)

	ctx, cancel := context.WithTimeout(ctx, engineCheckTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get %s version: %w", c.ffmpegPath, err)
	}

	line, _, _ := strings.Cut(string(output), "\n")
	return strings.TrimSpace(line), nil
}

// Available reports whether the engine check succeeded. It returns false
// until CheckEngine has been called. A failed check is repeated once it is
// older than the recheck interval, so an engine installed after startup is
// picked up without a restart.
func (c *Converter) Available() bool {
	c.engineMu.Lock()
	if !c.engineChecked || c.engineErr == nil {
		ok := c.engineChecked
		c.engineMu.Unlock()
		return ok
	}
	if time.Since(c.engineCheckedAt) < c.recheckInterval {
		c.engineMu.Unlock()
		return false
	}
	// Claim the recheck so concurrent callers keep the cached answer.
	c.engineCheckedAt = time.Now()
	c.engineMu.Unlock()

	version, err := c.CheckEngine(context.Background())
	if err != nil {
		logging.Debug("Engine still unavailable: %v", err)
		return false
	}
	logging.Info("Engine became available: %s", version)
	return true
}

// EngineVersion returns the version line recorded by CheckEngine.
func (c *Converter) EngineVersion() string {
	c.engineMu.RLock()
	defer c.engineMu.RUnlock()
	return c.engineVersion
}

func trimDiagnostics(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxDiagnosticsBytes {
		return s
	}
	return "...(truncated)\n" + s[len(s)-maxDiagnosticsBytes:]
}

func joinDiagnostics(head, tail string) string {
	if tail == "" {
		return head
	}
	return head + "\n" + tail
}
