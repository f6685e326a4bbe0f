package ingest

import "strings"

// MaxUploadBytes is the default ceiling for uploaded statements: 10 MiB.
const MaxUploadBytes = 10 * 1024 * 1024

// ValidateUpload checks an uploaded file before any parsing happens.
// contentType is the client-declared MIME type, size the declared size in
// bytes. maxBytes <= 0 falls back to MaxUploadBytes.
func ValidateUpload(data []byte, contentType string, size int64, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = MaxUploadBytes
	}
	if len(data) == 0 {
		return ErrMissingFile
	}
	// Declared types can carry parameters ("application/pdf; name=...").
	declared := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if declared != "application/pdf" {
		return ErrInvalidType
	}
	if size > maxBytes || int64(len(data)) > maxBytes {
		return ErrFileTooLarge
	}
	return nil
}
