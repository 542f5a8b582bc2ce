package handlers

import (
	"bytes"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"mov-converter/internal/converter"
	"mov-converter/internal/downloads"
	"mov-converter/internal/gateway"
	"mov-converter/internal/logging"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"bytes":    formatBytes,
	"duration": formatDuration,
}).ParseFS(templateFS, "templates/*.html"))

type indexPage struct {
	Error string
}

type resultPage struct {
	Source  string
	Success bool

	DownloadURL string
	Filename    string
	Size        int64
	Expires     time.Time
	Info        *converter.VideoInfo
	Poster      template.URL

	ErrorText string
	Failure   string

	Elapsed time.Duration
}

// newResultPage maps a conversion outcome onto the result template. item is
// nil when nothing was stored for download.
func newResultPage(source string, outcome *gateway.Outcome, item *downloads.Item) resultPage {
	page := resultPage{
		Source:  source,
		Success: outcome.Success,
		Elapsed: outcome.Elapsed.Round(time.Millisecond),
	}

	if !outcome.Success {
		page.ErrorText = outcome.ErrorText
		page.Failure = string(outcome.Failure)
		return page
	}

	page.Filename = outcome.Filename
	page.Size = int64(len(outcome.Download))
	page.Info = outcome.Info
	if len(outcome.Preview) > 0 {
		page.Poster = template.URL("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(outcome.Preview))
	}
	if item != nil {
		page.DownloadURL = "/download/" + item.Token
		page.Expires = item.Expires
	}
	return page
}

func formatDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	m := int(d / time.Minute)
	s := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%d:%02d", m, s)
}

// renderPage executes a template into a buffer so that a template error
// still produces a clean 500.
func (h *Handlers) renderPage(w http.ResponseWriter, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		logging.Error("failed to render %s page: %v", name, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		logging.Debug("failed to write %s page: %v", name, err)
	}
}
