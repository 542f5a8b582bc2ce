// Package converter runs the external transcoding engine (FFmpeg) that turns
// QuickTime MOV files into MP4 files.
//
// It supports:
//   - Re-encoding to H.264 video and AAC audio inside an MP4 container
//   - Timeout-bounded engine invocations with a distinct timeout failure
//   - Capturing the engine's error stream as user-facing diagnostics
//   - Probing media files with ffprobe (duration, resolution, codecs)
//   - Killing in-flight engine processes on shutdown
//
// Conversion never returns a Go error for engine failures. Convert returns a
// Result whose OK flag callers branch on; Result.Err maps the failure kind to
// one of the package's sentinel errors when an error value is needed.
//
// FFmpeg and ffprobe must be installed and available in the system PATH, or
// configured through FFMPEG_PATH and FFPROBE_PATH.
package converter
