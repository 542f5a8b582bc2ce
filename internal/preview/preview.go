package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os/exec"

	"mov-converter/internal/logging"
	"mov-converter/internal/metrics"

	"github.com/disintegration/imaging"
)

const (
	// PosterWidth and PosterHeight bound the poster; aspect ratio is kept.
	PosterWidth  = 320
	PosterHeight = 180

	jpegQuality = 80
)

// Generator produces poster frames.
type Generator struct {
	ffmpegPath string
	enabled    bool
}

// New creates a Generator. A disabled generator returns ErrDisabled.
func New(ffmpegPath string, enabled bool) *Generator {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Generator{
		ffmpegPath: ffmpegPath,
		enabled:    enabled,
	}
}

// ErrDisabled is returned by Poster when previews are turned off.
var ErrDisabled = errors.New("previews disabled")

// IsEnabled returns whether poster generation is enabled.
func (g *Generator) IsEnabled() bool {
	return g.enabled
}

// Poster returns a JPEG poster frame for videoPath. It tries the frame at one
// second first and falls back to the first frame for very short clips.
func (g *Generator) Poster(ctx context.Context, videoPath string) ([]byte, error) {
	if !g.enabled {
		metrics.PreviewsTotal.WithLabelValues("skipped").Inc()
		return nil, ErrDisabled
	}

	img, err := g.extractFrame(ctx, videoPath, "00:00:01")
	if err != nil {
		logging.Debug("Poster at 1s failed for %s: %v, trying first frame", videoPath, err)
		img, err = g.extractFrame(ctx, videoPath, "")
	}
	if err != nil {
		metrics.PreviewsTotal.WithLabelValues("failure").Inc()
		return nil, err
	}

	data, err := EncodePoster(img)
	if err != nil {
		metrics.PreviewsTotal.WithLabelValues("failure").Inc()
		return nil, err
	}

	metrics.PreviewsTotal.WithLabelValues("success").Inc()
	return data, nil
}

func (g *Generator) extractFrame(ctx context.Context, videoPath, seek string) (image.Image, error) {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if seek != "" {
		args = append(args, "-ss", seek)
	}
	args = append(args,
		"-i", videoPath,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	cmd := exec.CommandContext(ctx, g.ffmpegPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %v, stderr: %s", err, stderr.String())
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frame for %s", videoPath)
	}

	img, err := imaging.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

// EncodePoster fits img into the poster bounds and encodes it as JPEG.
func EncodePoster(img image.Image) ([]byte, error) {
	thumb := imaging.Fit(img, PosterWidth, PosterHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode poster: %w", err)
	}
	return buf.Bytes(), nil
}
