package utils

import (
	"mime"
	"strings"
)

func EnsureDataURL(value string) string {
	if strings.HasPrefix(value, "data:") {
		return value
	}
	return "data:image/jpeg;base64," + value
}

func SplitDataURL(value string) (string, string) {
	if !strings.HasPrefix(value, "data:") {
		return "image/jpeg", value
	}

	value = strings.TrimPrefix(value, "data:")
	parts := strings.SplitN(value, ";base64,", 2)
	if len(parts) != 2 {
		return "image/jpeg", ""
	}
	return parts[0], parts[1]
}

// ExtensionFromMime maps common image MIME types to file extensions.
func ExtensionFromMime(mimeType string) string {
	if mimeType == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = parsed
	}

	switch strings.ToLower(mimeType) {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	case "image/bmp":
		return "bmp"
	case "image/svg+xml":
		return "svg"
	default:
		return ""
	}
}
