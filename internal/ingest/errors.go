package ingest

import "errors"

// Validation and extraction failures, each mapped to its own user-facing
// condition. Zero extractable text is deliberately not in this list: an
// empty text layer is a valid extraction result, not an error.
var (
	ErrMissingFile       = errors.New("no file uploaded")
	ErrInvalidType       = errors.New("invalid file type, expected a PDF")
	ErrFileTooLarge      = errors.New("file size exceeds the upload limit")
	ErrCorruptedPDF      = errors.New("invalid or corrupted PDF file")
	ErrPasswordProtected = errors.New("PDF is password-protected")
)
