package mediatypes

import (
	"bytes"
	"path/filepath"
	"strings"
)

const (
	// InputExtension is the only upload extension accepted.
	InputExtension = ".mov"
	// OutputExtension is the extension of converted files.
	OutputExtension = ".mp4"

	// InputMimeType is the MIME type of accepted uploads.
	InputMimeType = "video/quicktime"
	// OutputMimeType is the MIME type served with converted files.
	OutputMimeType = "video/mp4"

	// DownloadFilename is the user-facing name of every converted file.
	DownloadFilename = "converted_video.mp4"

	// TempInputName is the name of the uploaded file inside a job directory.
	TempInputName = "temp_input.mov"
	// TempOutputName is the name of the engine output inside a job directory.
	TempOutputName = "output_video.mp4"
)

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".mov":  InputMimeType,
	".mp4":  OutputMimeType,
	".m4v":  "video/x-m4v",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// IsAcceptedUpload reports whether filename carries the accepted upload
// extension. The comparison is case-insensitive.
func IsAcceptedUpload(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == InputExtension
}

// MimeType returns the MIME type for a given file extension.
// The extension may be in any case and must include the leading dot.
// Returns "application/octet-stream" if the extension is not recognized.
func MimeType(ext string) string {
	if mime, ok := MimeTypes[strings.ToLower(ext)]; ok {
		return mime
	}
	return "application/octet-stream"
}

var ftypBox = []byte("ftyp")

// HasMP4Signature reports whether b starts with an ISO base media file
// header: a 4-byte box size followed by the "ftyp" box type.
func HasMP4Signature(b []byte) bool {
	if len(b) < 8 {
		return false
	}
	return bytes.Equal(b[4:8], ftypBox)
}
