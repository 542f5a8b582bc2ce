// Package workspace manages the temporary files used by a single conversion.
//
// Every request gets its own job directory named by a random UUID under the
// configured work directory:
//
//	<WORK_DIR>/job-<job-id>/temp_input.mov
//	<WORK_DIR>/job-<job-id>/output_video.mp4
//
// so concurrent conversions never overwrite each other's files. Cleanup
// removes both files if they exist; a missing file is not an error.
//
// Sweep removes job directories left behind by a previous process. The work
// directory may be shared with other programs (for example /tmp), so Sweep
// only removes old "job-" directories that hold nothing but the two temp
// files.
package workspace
