// Package mediatypes provides the file naming and MIME type constants shared
// by the converter packages.
//
// This package exists as a dependency-free foundation that can be imported by
// other packages without creating import cycles. It contains constants and pure
// utility functions with no external dependencies beyond the standard library.
//
// # Upload Validation
//
// Only QuickTime uploads are accepted. The check is made on the declared
// filename; the content itself is not inspected:
//
//	if !mediatypes.IsAcceptedUpload(header.Filename) {
//	    // reject with 415
//	}
//
// # MIME Types
//
// Use MimeType to get the MIME type for an extension:
//
//	mediatypes.MimeType(".mp4") // "video/mp4"
//
// # Container Signatures
//
// HasMP4Signature reports whether a byte prefix starts with an ISO base media
// "ftyp" box, the signature shared by MP4 and MOV files.
package mediatypes
