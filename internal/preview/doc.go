// Package preview extracts a poster frame from a converted video for display
// on the result page.
//
// A single frame is decoded with FFmpeg, scaled down with
// github.com/disintegration/imaging and encoded as JPEG. Poster generation is
// best-effort: callers log failures and carry on without a preview.
package preview
