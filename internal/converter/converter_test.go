package converter

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"mov-converter/internal/mediatypes"
)

// writeFakeEngine writes an executable shell script standing in for ffmpeg.
func writeFakeEngine(t *testing.T, body string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake engine scripts require a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("Failed to write fake engine: %v", err)
	}
	return path
}

// fakeEngineWritesOutput copies nothing but writes a marker into the last
// argument, which is the output path.
const fakeEngineWritesOutput = `for last; do :; done
printf 'fake-mp4-output' > "$last"`

func TestNew(t *testing.T) {
	conv := New(Options{})

	if conv == nil {
		t.Fatal("New() returned nil")
	}

	if conv.ffmpegPath != "ffmpeg" {
		t.Errorf("Expected ffmpegPath=ffmpeg, got %s", conv.ffmpegPath)
	}

	if conv.ffprobePath != "ffprobe" {
		t.Errorf("Expected ffprobePath=ffprobe, got %s", conv.ffprobePath)
	}

	if conv.processes == nil {
		t.Error("Expected processes map to be initialized")
	}

	if conv.Available() {
		t.Error("Available() should be false before CheckEngine")
	}
}

func TestNewNegativeTimeout(t *testing.T) {
	conv := New(Options{Timeout: -time.Second})
	if conv.Timeout() != 0 {
		t.Errorf("Expected negative timeout to be treated as unbounded, got %v", conv.Timeout())
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.Timeout != 30*time.Minute {
		t.Errorf("Expected default timeout 30m, got %v", opts.Timeout)
	}
}

func TestBuildArgs(t *testing.T) {
	args := buildArgs("/work/in.mov", "/work/out.mp4")
	joined := strings.Join(args, " ")

	required := []string{
		"-y",
		"-i /work/in.mov",
		"-c:v libx264",
		"-c:a aac",
		"-f mp4",
	}
	for _, want := range required {
		if !strings.Contains(joined, want) {
			t.Errorf("Expected args to contain %q, got: %s", want, joined)
		}
	}

	if args[len(args)-1] != "/work/out.mp4" {
		t.Errorf("Expected output path as last argument, got %s", args[len(args)-1])
	}

	// Overwrite must be requested before the output path is named.
	yIdx, outIdx := -1, len(args)-1
	for i, a := range args {
		if a == "-y" {
			yIdx = i
		}
	}
	if yIdx < 0 || yIdx > outIdx {
		t.Errorf("Expected -y before output path, got index %d", yIdx)
	}
}

func TestConvertSuccess(t *testing.T) {
	engine := writeFakeEngine(t, fakeEngineWritesOutput)
	conv := New(Options{FFmpegPath: engine, Timeout: 10 * time.Second})

	dir := t.TempDir()
	input := filepath.Join(dir, "in.mov")
	output := filepath.Join(dir, "out.mp4")
	if err := os.WriteFile(input, []byte("mov"), 0o644); err != nil {
		t.Fatal(err)
	}

	result := conv.Convert(context.Background(), input, output)
	if !result.OK {
		t.Fatalf("Expected success, got failure %s: %s", result.Failure, result.Diagnostics)
	}
	if result.Failure != FailureNone {
		t.Errorf("Expected FailureNone, got %q", result.Failure)
	}
	if result.Err() != nil {
		t.Errorf("Expected nil Err() for success, got %v", result.Err())
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("Expected output file: %v", err)
	}
	if string(data) != "fake-mp4-output" {
		t.Errorf("Unexpected output content: %q", data)
	}

	if conv.ActiveCount() != 0 {
		t.Errorf("Expected no tracked processes after completion, got %d", conv.ActiveCount())
	}
}

func TestConvertEngineError(t *testing.T) {
	engine := writeFakeEngine(t, `echo "moov atom not found" >&2
exit 1`)
	conv := New(Options{FFmpegPath: engine, Timeout: 10 * time.Second})

	dir := t.TempDir()
	result := conv.Convert(context.Background(), filepath.Join(dir, "in.mov"), filepath.Join(dir, "out.mp4"))

	if result.OK {
		t.Fatal("Expected failure")
	}
	if result.Failure != FailureEngine {
		t.Errorf("Expected FailureEngine, got %q", result.Failure)
	}
	if result.Diagnostics != "moov atom not found" {
		t.Errorf("Expected engine stderr as diagnostics, got %q", result.Diagnostics)
	}
	if !errors.Is(result.Err(), ErrEngine) {
		t.Errorf("Expected ErrEngine, got %v", result.Err())
	}
}

func TestConvertEngineErrorWithoutStderr(t *testing.T) {
	engine := writeFakeEngine(t, "exit 3")
	conv := New(Options{FFmpegPath: engine})

	dir := t.TempDir()
	result := conv.Convert(context.Background(), filepath.Join(dir, "in.mov"), filepath.Join(dir, "out.mp4"))

	if result.OK {
		t.Fatal("Expected failure")
	}
	if result.Diagnostics == "" {
		t.Error("Diagnostics must not be empty on failure")
	}
	if !strings.Contains(result.Diagnostics, "exit status 3") {
		t.Errorf("Expected exit status in diagnostics, got %q", result.Diagnostics)
	}
}

func TestConvertTimeout(t *testing.T) {
	engine := writeFakeEngine(t, "exec sleep 30")
	conv := New(Options{FFmpegPath: engine, Timeout: 200 * time.Millisecond})

	dir := t.TempDir()
	start := time.Now()
	result := conv.Convert(context.Background(), filepath.Join(dir, "in.mov"), filepath.Join(dir, "out.mp4"))
	elapsed := time.Since(start)

	if result.OK {
		t.Fatal("Expected timeout failure")
	}
	if result.Failure != FailureTimeout {
		t.Errorf("Expected FailureTimeout, got %q (%s)", result.Failure, result.Diagnostics)
	}
	if !errors.Is(result.Err(), ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got %v", result.Err())
	}
	if elapsed > 10*time.Second {
		t.Errorf("Timeout not enforced, conversion took %v", elapsed)
	}
}

func TestConvertCanceled(t *testing.T) {
	engine := writeFakeEngine(t, "exec sleep 30")
	conv := New(Options{FFmpegPath: engine, Timeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	dir := t.TempDir()
	result := conv.Convert(ctx, filepath.Join(dir, "in.mov"), filepath.Join(dir, "out.mp4"))

	if result.Failure != FailureCanceled {
		t.Errorf("Expected FailureCanceled, got %q (%s)", result.Failure, result.Diagnostics)
	}
	if !errors.Is(result.Err(), ErrCanceled) {
		t.Errorf("Expected ErrCanceled, got %v", result.Err())
	}
}

func TestConvertAlreadyCanceledContext(t *testing.T) {
	engine := writeFakeEngine(t, fakeEngineWritesOutput)
	conv := New(Options{FFmpegPath: engine})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	result := conv.Convert(ctx, filepath.Join(dir, "in.mov"), filepath.Join(dir, "out.mp4"))

	if result.Failure != FailureCanceled {
		t.Errorf("Expected FailureCanceled, got %q", result.Failure)
	}
}

func TestConvertMissingEngine(t *testing.T) {
	conv := New(Options{FFmpegPath: filepath.Join(t.TempDir(), "no-such-ffmpeg")})

	dir := t.TempDir()
	result := conv.Convert(context.Background(), filepath.Join(dir, "in.mov"), filepath.Join(dir, "out.mp4"))

	if result.OK {
		t.Fatal("Expected failure with missing engine")
	}
	if result.Failure != FailureUnavailable {
		t.Errorf("Expected FailureUnavailable, got %q", result.Failure)
	}
	if !errors.Is(result.Err(), ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", result.Err())
	}
	if result.Diagnostics == "" {
		t.Error("Expected diagnostics for missing engine")
	}
}

func TestResultErr(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   error
	}{
		{"Success", Result{OK: true}, nil},
		{"Engine", Result{Failure: FailureEngine, Diagnostics: "bad"}, ErrEngine},
		{"Timeout", Result{Failure: FailureTimeout}, ErrTimeout},
		{"Unavailable", Result{Failure: FailureUnavailable}, ErrUnavailable},
		{"Canceled", Result{Failure: FailureCanceled}, ErrCanceled},
		{"Unknown kind", Result{Failure: "weird"}, ErrEngine},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Err()
			if tt.want == nil {
				if err != nil {
					t.Errorf("Expected nil, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestResultErrIncludesDiagnostics(t *testing.T) {
	err := Result{Failure: FailureEngine, Diagnostics: "Invalid data found when processing input"}.Err()
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Errorf("Expected diagnostics in error text, got %v", err)
	}
}

func TestTrimDiagnostics(t *testing.T) {
	if got := trimDiagnostics("  error line \n"); got != "error line" {
		t.Errorf("Expected trimmed diagnostics, got %q", got)
	}

	long := strings.Repeat("x", maxDiagnosticsBytes+100)
	got := trimDiagnostics(long)
	if !strings.HasPrefix(got, "...(truncated)") {
		t.Error("Expected truncation marker")
	}
	if len(got) > maxDiagnosticsBytes+len("...(truncated)\n") {
		t.Errorf("Diagnostics not capped: %d bytes", len(got))
	}
}

func TestCheckEngineMissing(t *testing.T) {
	conv := New(Options{FFmpegPath: filepath.Join(t.TempDir(), "missing")})

	if _, err := conv.CheckEngine(context.Background()); err == nil {
		t.Error("Expected error for missing engine")
	}
	if conv.Available() {
		t.Error("Available() should be false after failed check")
	}
}

func TestCheckEngineFake(t *testing.T) {
	engine := writeFakeEngine(t, `echo "ffmpeg version 6.1-fake Copyright"
echo "built with gcc"`)
	conv := New(Options{FFmpegPath: engine})

	version, err := conv.CheckEngine(context.Background())
	if err != nil {
		t.Fatalf("CheckEngine() error: %v", err)
	}
	if version != "ffmpeg version 6.1-fake Copyright" {
		t.Errorf("Unexpected version line: %q", version)
	}
	if !conv.Available() {
		t.Error("Available() should be true after successful check")
	}
	if conv.EngineVersion() != version {
		t.Errorf("EngineVersion() = %q, want %q", conv.EngineVersion(), version)
	}
}

func TestCleanupKillsActiveProcesses(t *testing.T) {
	engine := writeFakeEngine(t, "exec sleep 30")
	conv := New(Options{FFmpegPath: engine, Timeout: time.Minute})

	dir := t.TempDir()
	done := make(chan Result, 1)
	go func() {
		done <- conv.Convert(context.Background(), filepath.Join(dir, "in.mov"), filepath.Join(dir, "out.mp4"))
	}()

	deadline := time.Now().Add(5 * time.Second)
	for conv.ActiveCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Engine process never started")
		}
		time.Sleep(10 * time.Millisecond)
	}

	conv.Cleanup()

	select {
	case result := <-done:
		if result.OK {
			t.Error("Expected killed conversion to fail")
		}
		if result.Failure != FailureEngine {
			t.Errorf("Expected FailureEngine for a killed engine, got %q", result.Failure)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Convert did not return after Cleanup")
	}
}

// =============================================================================
// Real engine tests
// =============================================================================

func requireFFmpeg(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping ffmpeg test in short mode")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available")
	}
}

// createTestMOV renders a short QuickTime clip with video and audio.
func createTestMOV(t *testing.T, dir string, seconds int) string {
	t.Helper()

	path := filepath.Join(dir, "source.mov")
	dur := strconv.Itoa(seconds)

	cmd := exec.CommandContext(context.Background(), "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=duration="+dur+":size=320x240:rate=10",
		"-f", "lavfi", "-i", "sine=frequency=440:duration="+dur,
		"-c:v", "mpeg4",
		"-c:a", "pcm_s16le",
		"-shortest",
		"-f", "mov",
		"-y", path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("ffmpeg cannot generate test media: %v\n%s", err, output)
	}
	return path
}

func TestConvertRealMOV(t *testing.T) {
	requireFFmpeg(t)

	dir := t.TempDir()
	input := createTestMOV(t, dir, 2)
	output := filepath.Join(dir, "out.mp4")

	conv := New(Options{Timeout: 2 * time.Minute})
	result := conv.Convert(context.Background(), input, output)
	if !result.OK {
		if strings.Contains(result.Diagnostics, "libx264") {
			t.Skipf("ffmpeg built without libx264: %s", result.Diagnostics)
		}
		t.Fatalf("Conversion failed (%s): %s", result.Failure, result.Diagnostics)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Output file is empty")
	}
	if !mediatypes.HasMP4Signature(data) {
		t.Error("Output does not start with an MP4 ftyp box")
	}

	if _, err := exec.LookPath("ffprobe"); err == nil {
		info, err := conv.Probe(context.Background(), output)
		if err != nil {
			t.Fatalf("Probe() error: %v", err)
		}
		if info.VideoCodec != "h264" {
			t.Errorf("Expected h264 video, got %s", info.VideoCodec)
		}
		if info.AudioCodec != "aac" {
			t.Errorf("Expected aac audio, got %s", info.AudioCodec)
		}
		if info.Duration < 1.5 || info.Duration > 2.5 {
			t.Errorf("Expected ~2s duration, got %.2f", info.Duration)
		}
	}
}

func TestConvertRealIdempotent(t *testing.T) {
	requireFFmpeg(t)

	dir := t.TempDir()
	input := createTestMOV(t, dir, 1)
	output := filepath.Join(dir, "out.mp4")

	conv := New(Options{Timeout: 2 * time.Minute})
	for i := 0; i < 2; i++ {
		result := conv.Convert(context.Background(), input, output)
		if !result.OK {
			if strings.Contains(result.Diagnostics, "libx264") {
				t.Skipf("ffmpeg built without libx264: %s", result.Diagnostics)
			}
			t.Fatalf("Run %d failed (%s): %s", i+1, result.Failure, result.Diagnostics)
		}
	}

	info, err := os.Stat(output)
	if err != nil {
		t.Fatalf("Output missing after second run: %v", err)
	}
	if info.Size() == 0 {
		t.Error("Output empty after second run")
	}
}

func TestConvertRealGarbageInput(t *testing.T) {
	requireFFmpeg(t)

	dir := t.TempDir()
	input := filepath.Join(dir, "not-a-video.mov")
	if err := os.WriteFile(input, []byte("this is plain text pretending to be a movie"), 0o644); err != nil {
		t.Fatal(err)
	}

	conv := New(Options{Timeout: time.Minute})
	result := conv.Convert(context.Background(), input, filepath.Join(dir, "out.mp4"))

	if result.OK {
		t.Fatal("Expected failure for non-video input")
	}
	if result.Failure != FailureEngine {
		t.Errorf("Expected FailureEngine, got %q", result.Failure)
	}
	if strings.TrimSpace(result.Diagnostics) == "" {
		t.Error("Expected non-empty diagnostics")
	}
}

func TestAvailableRechecksFailedEngine(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake engine scripts require a POSIX shell")
	}

	enginePath := filepath.Join(t.TempDir(), "ffmpeg")
	conv := New(Options{FFmpegPath: enginePath})

	if _, err := conv.CheckEngine(context.Background()); err == nil {
		t.Fatal("Expected error before the engine exists")
	}

	// Installed after startup.
	script := "#!/bin/sh\necho \"ffmpeg version 7.0-late\"\n"
	if err := os.WriteFile(enginePath, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	conv.recheckInterval = time.Hour
	if conv.Available() {
		t.Error("Available() should keep the failed result within the recheck interval")
	}

	conv.recheckInterval = 0
	if !conv.Available() {
		t.Fatal("Available() should recheck and find the installed engine")
	}
	if conv.EngineVersion() != "ffmpeg version 7.0-late" {
		t.Errorf("EngineVersion() = %q", conv.EngineVersion())
	}
}
