// Package gateway drives one MOV to MP4 conversion request from uploaded
// bytes to a downloadable result.
//
// Process is the whole request lifecycle expressed as a plain function:
//
//  1. Create a job directory with unique temp paths
//  2. Write the uploaded bytes verbatim to the temp input
//  3. Run the converter on the temp paths
//  4. On success, read the output into memory and gather optional extras
//     (probe info, poster frame), each under its own timeout
//  5. Remove both temp files, whatever happened
//
// The returned Outcome carries everything the presentation layer needs; the
// gateway itself knows nothing about HTTP or HTML. Engine failures are part
// of the Outcome. Only filesystem faults are returned as errors.
package gateway
