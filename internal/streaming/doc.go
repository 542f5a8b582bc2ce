/*
Package streaming writes response bodies to HTTP clients with per-write
deadlines.

A converted MP4 can be hundreds of megabytes. A client that stops reading
would otherwise pin the handler goroutine until the kernel gives up on the
socket. Writer splits the body into chunks, arms a write deadline on the
underlying connection before each chunk, and stops as soon as the request
context is canceled.

	n, err := streaming.Stream(r.Context(), w, bytes.NewReader(data), streaming.DefaultConfig())
	if err != nil && !errors.Is(err, streaming.ErrClientGone) {
		logging.Warn("Download interrupted after %d bytes: %v", n, err)
	}

Deadlines are set through http.ResponseController. Writers that do not
support them (httptest.ResponseRecorder, some middleware wrappers that do
not implement Unwrap) are written to without a deadline.
*/
package streaming
