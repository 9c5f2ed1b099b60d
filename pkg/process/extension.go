package process

import (
	"mime"
	"strings"
)

// DefaultFallbackExtension is used when a content type maps to no known extension
const DefaultFallbackExtension = ".webp"

// acceptedImageTypes are the only content types the image fetcher will save
var acceptedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
	"image/bmp":  {},
}

// NormalizeContentType lower-cases a Content-Type header value and drops any parameters
func NormalizeContentType(raw string) string {
	mediaType, _, _ := strings.Cut(raw, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// IsAcceptedImageType reports whether a normalized content type may be downloaded
func IsAcceptedImageType(contentType string) bool {
	_, ok := acceptedImageTypes[contentType]
	return ok
}

// ResolveExtension maps a content type to a file extension including the leading dot.
// It never fails: unmapped types get DefaultFallbackExtension.
func ResolveExtension(contentType string) string {
	return ExtensionFor(contentType, DefaultFallbackExtension)
}

// ExtensionFor is ResolveExtension with a caller-chosen fallback
func ExtensionFor(contentType, fallback string) string {
	mediaType := NormalizeContentType(contentType)

	// Prefer common extensions; the host MIME table lists several for these and
	// orders them alphabetically, which would give e.g. ".jfif" for JPEG.
	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	case "":
		return fallback
	}

	extensions, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(extensions) == 0 {
		return fallback
	}
	ext := strings.ToLower(extensions[0])
	if ext == ".jpe" {
		ext = ".jpg"
	}
	return ext
}
