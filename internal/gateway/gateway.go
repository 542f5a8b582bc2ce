package gateway

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"mov-converter/internal/converter"
	"mov-converter/internal/logging"
	"mov-converter/internal/mediatypes"
	"mov-converter/internal/metrics"
	"mov-converter/internal/workspace"
)

// Converter runs the transcoding engine.
type Converter interface {
	Convert(ctx context.Context, inputPath, outputPath string) converter.Result
}

// Prober reports details about a media file.
type Prober interface {
	Probe(ctx context.Context, filePath string) (*converter.VideoInfo, error)
}

// Previewer renders a poster frame for a video.
type Previewer interface {
	Poster(ctx context.Context, videoPath string) ([]byte, error)
}

// Outcome is the result of one conversion request.
type Outcome struct {
	JobID   string
	Success bool

	// Set on success.
	Download []byte
	Filename string
	MIMEType string
	Info     *converter.VideoInfo
	Preview  []byte

	// Set on failure.
	ErrorText string
	Failure   converter.FailureKind

	InputBytes int64
	Elapsed    time.Duration
}

// DefaultDescribeTimeout bounds each of the probe and poster steps.
const DefaultDescribeTimeout = 30 * time.Second

// Gateway turns uploads into Outcomes.
type Gateway struct {
	conv            Converter
	workspace       *workspace.Manager
	prober          Prober
	previewer       Previewer
	describeTimeout time.Duration
}

// Option configures optional Gateway collaborators.
type Option func(*Gateway)

// WithProber attaches a Prober used to describe successful outputs.
func WithProber(p Prober) Option {
	return func(g *Gateway) {
		g.prober = p
	}
}

// WithPreviewer attaches a Previewer used to render poster frames.
func WithPreviewer(p Previewer) Option {
	return func(g *Gateway) {
		g.previewer = p
	}
}

// WithDescribeTimeout sets how long the probe and poster steps may each run.
// Non-positive values keep the default.
func WithDescribeTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.describeTimeout = d
		}
	}
}

// New creates a Gateway.
func New(conv Converter, ws *workspace.Manager, opts ...Option) *Gateway {
	g := &Gateway{
		conv:            conv,
		workspace:       ws,
		describeTimeout: DefaultDescribeTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Process runs the full request lifecycle for one uploaded file. Temp files
// are removed before Process returns. A cleanup failure is returned as an
// error even when the conversion itself succeeded.
func (g *Gateway) Process(ctx context.Context, upload io.Reader) (outcome *Outcome, err error) {
	start := time.Now()

	job, err := g.workspace.Create()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := job.Cleanup(); cerr != nil {
			logging.Error("Job %s: cleanup failed: %v", job.ID, cerr)
			if err == nil {
				outcome = nil
				err = fmt.Errorf("failed to remove temp files: %w", cerr)
			}
		}
	}()

	n, err := job.WriteInput(upload)
	if err != nil {
		return nil, err
	}
	metrics.UploadBytes.Observe(float64(n))
	logging.Info("Job %s: received %d bytes, converting", job.ID, n)

	result := g.conv.Convert(ctx, job.InputPath, job.OutputPath)

	outcome = &Outcome{
		JobID:      job.ID,
		InputBytes: n,
		Failure:    result.Failure,
	}

	if !result.OK {
		outcome.ErrorText = result.Diagnostics
		outcome.Elapsed = time.Since(start)
		logging.Warn("Job %s: conversion failed (%s) after %v", job.ID, result.Failure, result.Elapsed)
		return outcome, nil
	}

	data, err := job.ReadOutput()
	if err != nil {
		return nil, err
	}
	if !mediatypes.HasMP4Signature(data) {
		logging.Warn("Job %s: engine reported success but output has no MP4 signature", job.ID)
	}
	metrics.OutputBytes.Observe(float64(len(data)))

	outcome.Success = true
	outcome.Download = data
	outcome.Filename = mediatypes.DownloadFilename
	outcome.MIMEType = mediatypes.MimeType(filepath.Ext(outcome.Filename))

	g.describe(ctx, job, outcome)

	outcome.Elapsed = time.Since(start)
	logging.Info("Job %s: converted %d -> %d bytes in %v", job.ID, n, len(data), result.Elapsed)

	return outcome, nil
}

// describe fills in the optional probe info and poster. Each step runs under
// its own timeout. Failures are logged and otherwise ignored.
func (g *Gateway) describe(ctx context.Context, job *workspace.Job, outcome *Outcome) {
	if g.prober != nil {
		probeCtx, cancel := context.WithTimeout(ctx, g.describeTimeout)
		info, err := g.prober.Probe(probeCtx, job.OutputPath)
		cancel()
		if err != nil {
			logging.Debug("Job %s: probe failed: %v", job.ID, err)
		} else {
			outcome.Info = info
		}
	}

	if g.previewer != nil {
		posterCtx, cancel := context.WithTimeout(ctx, g.describeTimeout)
		poster, err := g.previewer.Poster(posterCtx, job.OutputPath)
		cancel()
		if err != nil {
			logging.Debug("Job %s: poster skipped: %v", job.ID, err)
		} else {
			outcome.Preview = poster
		}
	}
}
