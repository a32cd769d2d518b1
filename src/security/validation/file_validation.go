package validation

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/username/zynbudget/backend/src/logger"
)

// AllowedClientContentTypes lists the client-declared MIME types accepted for
// bulk CSV uploads.
var AllowedClientContentTypes = map[string]bool{
	"text/csv":                 true,
	"application/csv":          true,
	"application/vnd.ms-excel": true, // older Excel exports CSV under this
	"text/plain":               true,
}

// ValidateClientContentType checks the Content-Type header provided by the client.
func ValidateClientContentType(contentType string) error {
	base := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if !AllowedClientContentTypes[base] {
		logger.L.Warn("disallowed client-declared content type", "contentType", contentType)
		return fmt.Errorf("client-declared file type '%s' is not allowed for CSV upload", contentType)
	}
	return nil
}

// isBinaryContent reports whether a buffer contains binary control
// characters, which means the file is not a valid text-based CSV.
func isBinaryContent(buf []byte) bool {
	if bytes.IndexByte(buf, 0) != -1 {
		return true
	}
	return !utf8.Valid(buf)
}

// ValidateCSVContent sniffs the actual file content and rejects anything
// that is not text. The read pointer is reset so the parser sees the whole
// file afterwards.
func ValidateCSVContent(file io.ReadSeeker) (string, error) {
	if file == nil {
		return "", fmt.Errorf("file is nil")
	}

	buffer := make([]byte, 1024)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read file for content type checking: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to reset file read pointer: %w", err)
	}
	if n == 0 {
		return "", fmt.Errorf("file is empty")
	}

	if isBinaryContent(buffer[:n]) {
		logger.L.Warn("file rejected: binary content detected in text upload")
		return "application/octet-stream", fmt.Errorf("file appears to be binary, not text/CSV")
	}

	detected := http.DetectContentType(buffer[:n])
	detected = strings.ToLower(strings.Split(detected, ";")[0])

	allowedDetected := map[string]bool{
		"text/plain":      true,
		"text/csv":        true,
		"application/csv": true,
	}
	if !allowedDetected[detected] {
		logger.L.Warn("disallowed detected file content type", "detectedContentType", detected)
		return detected, fmt.Errorf("detected file content type '%s' is not allowed", detected)
	}
	return detected, nil
}

// imageSignatures maps magic-byte prefixes to avatar content types.
var imageSignatures = []struct {
	prefix      []byte
	contentType string
}{
	{[]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
	{[]byte{0xFF, 0xD8, 0xFF}, "image/jpeg"},
	{[]byte("GIF87a"), "image/gif"},
	{[]byte("GIF89a"), "image/gif"},
	{[]byte("RIFF"), "image/webp"}, // RIFF container; WEBP marker checked below
}

// ValidateImageContent checks avatar uploads against known image magic bytes
// and returns the detected content type.
func ValidateImageContent(file io.ReadSeeker) (string, error) {
	if file == nil {
		return "", fmt.Errorf("file is nil")
	}

	buffer := make([]byte, 16)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read file for image type checking: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to reset file read pointer: %w", err)
	}
	if n == 0 {
		return "", fmt.Errorf("file is empty")
	}

	for _, sig := range imageSignatures {
		if n >= len(sig.prefix) && bytes.HasPrefix(buffer[:n], sig.prefix) {
			if sig.contentType == "image/webp" {
				if n < 12 || string(buffer[8:12]) != "WEBP" {
					continue
				}
			}
			return sig.contentType, nil
		}
	}
	logger.L.Warn("avatar rejected: unrecognized image signature")
	return "", fmt.Errorf("file is not a supported image format (png, jpeg, gif, webp)")
}
