package gateway

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mov-converter/internal/converter"
	"mov-converter/internal/mediatypes"
	"mov-converter/internal/workspace"
)

// fakeConverter records the paths it was given and writes a canned output.
type fakeConverter struct {
	output      []byte
	fail        bool
	diagnostics string
	partial     bool

	calls   int
	inputs  []string
	outputs []string
	seen    [][]byte
}

func (f *fakeConverter) Convert(_ context.Context, in, out string) converter.Result {
	f.calls++
	f.inputs = append(f.inputs, in)
	f.outputs = append(f.outputs, out)

	data, err := os.ReadFile(in)
	if err != nil {
		return converter.Result{Failure: converter.FailureEngine, Diagnostics: err.Error()}
	}
	f.seen = append(f.seen, data)

	if f.fail {
		if f.partial {
			_ = os.WriteFile(out, []byte("half"), 0o600)
		}
		return converter.Result{Failure: converter.FailureEngine, Diagnostics: f.diagnostics}
	}
	if err := os.WriteFile(out, f.output, 0o600); err != nil {
		return converter.Result{Failure: converter.FailureEngine, Diagnostics: err.Error()}
	}
	return converter.Result{OK: true}
}

type fakeProber struct {
	info *converter.VideoInfo
	err  error
}

func (f *fakeProber) Probe(context.Context, string) (*converter.VideoInfo, error) {
	return f.info, f.err
}

type fakePreviewer struct {
	poster []byte
	err    error
}

func (f *fakePreviewer) Poster(context.Context, string) ([]byte, error) {
	return f.poster, f.err
}

// mp4Bytes returns a minimal blob that passes the ftyp signature check.
func mp4Bytes() []byte {
	return append([]byte{0, 0, 0, 0x18}, []byte("ftypisom-rest-of-file")...)
}

func assertNoJobFiles(t *testing.T, ws *workspace.Manager) {
	t.Helper()
	entries, err := os.ReadDir(ws.BaseDir())
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected empty work dir, found %v", names)
	}
}

func TestProcessSuccess(t *testing.T) {
	ws := workspace.NewManager(t.TempDir())
	conv := &fakeConverter{output: mp4Bytes()}
	g := New(conv, ws)

	upload := []byte("pretend this is a quicktime movie")
	outcome, err := g.Process(context.Background(), bytes.NewReader(upload))
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if !outcome.Success {
		t.Fatalf("expected success, got failure %q", outcome.ErrorText)
	}
	if !bytes.Equal(outcome.Download, mp4Bytes()) {
		t.Errorf("Download = %q, want engine output", outcome.Download)
	}
	if outcome.Filename != mediatypes.DownloadFilename {
		t.Errorf("Filename = %q, want %q", outcome.Filename, mediatypes.DownloadFilename)
	}
	if outcome.MIMEType != mediatypes.OutputMimeType {
		t.Errorf("MIMEType = %q, want %q", outcome.MIMEType, mediatypes.OutputMimeType)
	}
	if outcome.InputBytes != int64(len(upload)) {
		t.Errorf("InputBytes = %d, want %d", outcome.InputBytes, len(upload))
	}
	if outcome.ErrorText != "" {
		t.Errorf("ErrorText should be empty on success, got %q", outcome.ErrorText)
	}
	if outcome.JobID == "" {
		t.Error("JobID should be set")
	}

	if conv.calls != 1 {
		t.Fatalf("converter called %d times, want 1", conv.calls)
	}
	if !bytes.Equal(conv.seen[0], upload) {
		t.Errorf("converter saw %q, want upload verbatim", conv.seen[0])
	}
	if filepath.Base(conv.inputs[0]) != mediatypes.TempInputName {
		t.Errorf("input path %q should end in %q", conv.inputs[0], mediatypes.TempInputName)
	}
	if filepath.Base(conv.outputs[0]) != mediatypes.TempOutputName {
		t.Errorf("output path %q should end in %q", conv.outputs[0], mediatypes.TempOutputName)
	}

	for _, p := range []string{conv.inputs[0], conv.outputs[0]} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should be removed after Process, stat err = %v", p, err)
		}
	}
	assertNoJobFiles(t, ws)
}

func TestProcessEngineFailure(t *testing.T) {
	ws := workspace.NewManager(t.TempDir())
	conv := &fakeConverter{
		fail:        true,
		partial:     true,
		diagnostics: "temp_input.mov: Invalid data found when processing input",
	}
	g := New(conv, ws)

	outcome, err := g.Process(context.Background(), strings.NewReader("not a movie"))
	if err != nil {
		t.Fatalf("engine failure should not be returned as error: %v", err)
	}

	if outcome.Success {
		t.Fatal("expected failure outcome")
	}
	if outcome.ErrorText != conv.diagnostics {
		t.Errorf("ErrorText = %q, want %q", outcome.ErrorText, conv.diagnostics)
	}
	if outcome.Failure != converter.FailureEngine {
		t.Errorf("Failure = %q, want %q", outcome.Failure, converter.FailureEngine)
	}
	if outcome.Download != nil {
		t.Error("Download should be nil on failure")
	}

	// Partial output must not survive.
	if _, err := os.Stat(conv.outputs[0]); !os.IsNotExist(err) {
		t.Errorf("partial output should be removed, stat err = %v", err)
	}
	assertNoJobFiles(t, ws)
}

func TestProcessSequentialRunsAreIndependent(t *testing.T) {
	ws := workspace.NewManager(t.TempDir())
	conv := &fakeConverter{output: mp4Bytes()}
	g := New(conv, ws)

	first, err := g.Process(context.Background(), strings.NewReader("first upload"))
	if err != nil {
		t.Fatalf("first Process failed: %v", err)
	}
	second, err := g.Process(context.Background(), strings.NewReader("second"))
	if err != nil {
		t.Fatalf("second Process failed: %v", err)
	}

	if !first.Success || !second.Success {
		t.Fatal("both runs should succeed")
	}
	if first.JobID == second.JobID {
		t.Error("each run should get its own job")
	}
	if string(conv.seen[1]) != "second" {
		t.Errorf("second run saw %q; leftover bytes from the first upload leaked", conv.seen[1])
	}
	assertNoJobFiles(t, ws)
}

func TestProcessEmptyUpload(t *testing.T) {
	ws := workspace.NewManager(t.TempDir())
	conv := &fakeConverter{fail: true, diagnostics: "End of file"}
	g := New(conv, ws)

	outcome, err := g.Process(context.Background(), bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if outcome.Success {
		t.Error("empty upload should produce a failure outcome")
	}
	if outcome.InputBytes != 0 {
		t.Errorf("InputBytes = %d, want 0", outcome.InputBytes)
	}
	if conv.calls != 1 {
		t.Errorf("converter should still be invoked, calls = %d", conv.calls)
	}
	assertNoJobFiles(t, ws)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestProcessUploadReadError(t *testing.T) {
	ws := workspace.NewManager(t.TempDir())
	conv := &fakeConverter{output: mp4Bytes()}
	g := New(conv, ws)

	outcome, err := g.Process(context.Background(), failingReader{})
	if err == nil {
		t.Fatal("expected error when upload cannot be read")
	}
	if outcome != nil {
		t.Errorf("outcome should be nil on error, got %+v", outcome)
	}
	if conv.calls != 0 {
		t.Errorf("converter should not run, calls = %d", conv.calls)
	}
	assertNoJobFiles(t, ws)
}

func TestProcessWorkspaceUnavailable(t *testing.T) {
	base := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(base, []byte("x"), 0o600); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	conv := &fakeConverter{output: mp4Bytes()}
	g := New(conv, workspace.NewManager(base))

	if _, err := g.Process(context.Background(), strings.NewReader("data")); err == nil {
		t.Fatal("expected error when work dir is unusable")
	}
	if conv.calls != 0 {
		t.Errorf("converter should not run, calls = %d", conv.calls)
	}
}

func TestProcessWithExtras(t *testing.T) {
	ws := workspace.NewManager(t.TempDir())
	conv := &fakeConverter{output: mp4Bytes()}
	info := &converter.VideoInfo{Width: 640, Height: 480, VideoCodec: "h264", AudioCodec: "aac"}
	poster := []byte{0xff, 0xd8, 0xff}

	g := New(conv, ws,
		WithProber(&fakeProber{info: info}),
		WithPreviewer(&fakePreviewer{poster: poster}),
	)

	outcome, err := g.Process(context.Background(), strings.NewReader("movie"))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if outcome.Info != info {
		t.Errorf("Info = %+v, want %+v", outcome.Info, info)
	}
	if !bytes.Equal(outcome.Preview, poster) {
		t.Errorf("Preview = %v, want %v", outcome.Preview, poster)
	}
}

func TestProcessExtrasFailuresIgnored(t *testing.T) {
	ws := workspace.NewManager(t.TempDir())
	conv := &fakeConverter{output: mp4Bytes()}

	g := New(conv, ws,
		WithProber(&fakeProber{err: errors.New("ffprobe missing")}),
		WithPreviewer(&fakePreviewer{err: errors.New("no frames")}),
	)

	outcome, err := g.Process(context.Background(), strings.NewReader("movie"))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !outcome.Success {
		t.Fatal("extras failing must not fail the conversion")
	}
	if outcome.Info != nil || outcome.Preview != nil {
		t.Error("Info and Preview should be nil when extras fail")
	}
}

func TestProcessExtrasSkippedOnFailure(t *testing.T) {
	ws := workspace.NewManager(t.TempDir())
	conv := &fakeConverter{fail: true, diagnostics: "boom"}
	prober := &fakeProber{info: &converter.VideoInfo{Width: 1}}

	g := New(conv, ws, WithProber(prober))

	outcome, err := g.Process(context.Background(), strings.NewReader("movie"))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if outcome.Info != nil {
		t.Error("probe info should not be attached to a failed conversion")
	}
}

// hangingExtras blocks in Probe and Poster until the context ends.
type hangingExtras struct {
	deadlines int
}

func (h *hangingExtras) wait(ctx context.Context) error {
	if _, ok := ctx.Deadline(); ok {
		h.deadlines++
	}
	<-ctx.Done()
	return ctx.Err()
}

func (h *hangingExtras) Probe(ctx context.Context, _ string) (*converter.VideoInfo, error) {
	return nil, h.wait(ctx)
}

func (h *hangingExtras) Poster(ctx context.Context, _ string) ([]byte, error) {
	return nil, h.wait(ctx)
}

func TestProcessExtrasTimeBounded(t *testing.T) {
	ws := workspace.NewManager(t.TempDir())
	conv := &fakeConverter{output: mp4Bytes()}
	extras := &hangingExtras{}

	g := New(conv, ws,
		WithProber(extras),
		WithPreviewer(extras),
		WithDescribeTimeout(50*time.Millisecond),
	)

	done := make(chan struct{})
	var outcome *Outcome
	var err error
	go func() {
		defer close(done)
		outcome, err = g.Process(context.Background(), strings.NewReader("movie"))
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Process blocked on a hung probe")
	}

	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !outcome.Success {
		t.Error("a hung probe must not fail the conversion")
	}
	if outcome.Info != nil || outcome.Preview != nil {
		t.Error("Info and Preview should be nil after timing out")
	}
	if extras.deadlines != 2 {
		t.Errorf("Expected both steps to run with a deadline, got %d", extras.deadlines)
	}
	assertNoJobFiles(t, ws)
}

func TestWithDescribeTimeoutKeepsDefault(t *testing.T) {
	g := New(&fakeConverter{}, workspace.NewManager(t.TempDir()), WithDescribeTimeout(0))
	if g.describeTimeout != DefaultDescribeTimeout {
		t.Errorf("describeTimeout = %v, want %v", g.describeTimeout, DefaultDescribeTimeout)
	}
}
