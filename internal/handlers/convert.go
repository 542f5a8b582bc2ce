package handlers

import (
	"bytes"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"mov-converter/internal/downloads"
	"mov-converter/internal/logging"
	"mov-converter/internal/mediatypes"
	"mov-converter/internal/metrics"
	"mov-converter/internal/streaming"

	"github.com/gorilla/mux"
)

const (
	// uploadField is the multipart field carrying the file.
	uploadField = "file"

	// Parts larger than this spill to disk while the form is parsed.
	maxUploadMemory = 32 << 20
)

// uploadError is a rejected upload and the status to answer with.
type uploadError struct {
	status  int
	message string
}

func (e *uploadError) Error() string {
	return e.message
}

// receiveUpload parses the multipart form and returns the single accepted
// file. Callers must close the file and call RemoveAll on r.MultipartForm.
func receiveUpload(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		logging.Debug("Rejected upload: %v", err)
		return nil, nil, &uploadError{http.StatusBadRequest, "Invalid upload form"}
	}

	files := r.MultipartForm.File[uploadField]
	switch {
	case len(files) == 0:
		return nil, nil, &uploadError{http.StatusBadRequest, "No file uploaded"}
	case len(files) > 1:
		return nil, nil, &uploadError{http.StatusBadRequest, "Upload exactly one file"}
	}

	header := files[0]
	if !mediatypes.IsAcceptedUpload(header.Filename) {
		return nil, nil, &uploadError{
			http.StatusUnsupportedMediaType,
			"Only " + mediatypes.InputExtension + " files are accepted",
		}
	}

	file, err := header.Open()
	if err != nil {
		return nil, nil, err
	}
	return file, header, nil
}

func removeForm(r *http.Request) {
	if r.MultipartForm == nil {
		return
	}
	if err := r.MultipartForm.RemoveAll(); err != nil {
		logging.Warn("Failed to remove multipart temp files: %v", err)
	}
}

func uploadStatus(err error) (int, string) {
	var ue *uploadError
	if errors.As(err, &ue) {
		return ue.status, ue.message
	}
	return http.StatusInternalServerError, "Failed to read upload"
}

// Index renders the upload page.
func (h *Handlers) Index(w http.ResponseWriter, _ *http.Request) {
	h.renderPage(w, http.StatusOK, "index", indexPage{})
}

// Convert handles the upload form and renders the result page.
func (h *Handlers) Convert(w http.ResponseWriter, r *http.Request) {
	defer removeForm(r)

	file, header, err := receiveUpload(r)
	if err != nil {
		status, message := uploadStatus(err)
		h.renderPage(w, status, "index", indexPage{Error: message})
		return
	}
	defer file.Close()

	logging.Info("Converting upload %q (%s)", header.Filename, formatBytes(header.Size))

	outcome, err := h.processor.Process(r.Context(), file)
	if err != nil {
		logging.Error("Conversion of %q failed: %v", header.Filename, err)
		http.Error(w, "Conversion failed due to a server error", http.StatusInternalServerError)
		return
	}

	if !outcome.Success {
		h.renderPage(w, http.StatusUnprocessableEntity, "result", newResultPage(header.Filename, outcome, nil))
		return
	}

	item := h.downloads.Put(outcome.Download, outcome.Filename, outcome.MIMEType)
	h.renderPage(w, http.StatusOK, "result", newResultPage(header.Filename, outcome, item))
}

// Download serves a converted file by token.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	item, err := h.downloads.Get(token)
	if err != nil {
		if errors.Is(err, downloads.ErrNotFound) {
			metrics.DownloadsServedTotal.WithLabelValues("not_found").Inc()
			http.Error(w, "Download not found or expired", http.StatusNotFound)
			return
		}
		metrics.DownloadsServedTotal.WithLabelValues("error").Inc()
		http.Error(w, "Download unavailable", http.StatusInternalServerError)
		return
	}

	h.sendFile(w, r, item.Data, item.Filename, item.MIMEType)
}

// APIConvert accepts a multipart upload and responds with the MP4 itself.
// Errors are JSON.
func (h *Handlers) APIConvert(w http.ResponseWriter, r *http.Request) {
	defer removeForm(r)

	file, header, err := receiveUpload(r)
	if err != nil {
		status, message := uploadStatus(err)
		writeJSONError(w, message, status)
		return
	}
	defer file.Close()

	logging.Info("API conversion of %q (%s)", header.Filename, formatBytes(header.Size))

	outcome, err := h.processor.Process(r.Context(), file)
	if err != nil {
		logging.Error("API conversion of %q failed: %v", header.Filename, err)
		writeJSONError(w, "Conversion failed due to a server error", http.StatusInternalServerError)
		return
	}

	if !outcome.Success {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		writeJSON(w, apiFailure{
			Error:       "Conversion failed",
			Failure:     string(outcome.Failure),
			Diagnostics: outcome.ErrorText,
		})
		return
	}

	w.Header().Set("X-Job-ID", outcome.JobID)
	h.sendFile(w, r, outcome.Download, outcome.Filename, outcome.MIMEType)
}

type apiFailure struct {
	Error       string `json:"error"`
	Failure     string `json:"failure,omitempty"`
	Diagnostics string `json:"diagnostics"`
}

// sendFile writes data as an attachment.
func (h *Handlers) sendFile(w http.ResponseWriter, r *http.Request, data []byte, filename, mimeType string) {
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "no-store")

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		metrics.DownloadsServedTotal.WithLabelValues("ok").Inc()
		return
	}

	n, err := streaming.Stream(r.Context(), w, bytes.NewReader(data), h.streamConfig)
	if err != nil {
		metrics.DownloadsServedTotal.WithLabelValues("error").Inc()
		if errors.Is(err, streaming.ErrClientGone) {
			logging.Debug("Client left after %d of %d bytes of %s", n, len(data), filename)
		} else {
			logging.Warn("Failed to send %s after %d bytes: %v", filename, n, err)
		}
		return
	}
	metrics.DownloadsServedTotal.WithLabelValues("ok").Inc()
}
