package storage

import (
	"fmt"
	"mime"
	"path"
	"strings"
	"time"
)

// sanitizePathSegment 只保留小写字母、数字、横线和下划线，其余字符丢弃。
func sanitizePathSegment(value string) string {
	lowered := strings.ToLower(strings.TrimSpace(value))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return -1
		}
	}, lowered)
}

func normalizeExtension(ext string) string {
	trimmed := strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if trimmed == "" {
		return "bin"
	}
	return sanitizePathSegment(trimmed)
}

// buildObjectPath 生成 category/YYYY/MM/DD/name.ext 形式的对象键。
func buildObjectPath(category, baseName, ext string) string {
	now := time.Now().UTC()

	category = sanitizePathSegment(category)
	if category == "" {
		category = "misc"
	}

	base := sanitizeFileBase(baseName)
	if base == "" {
		base = fmt.Sprintf("%d", now.UnixNano())
	}

	filename := base + "." + normalizeExtension(ext)
	return path.Join(category, now.Format("2006/01/02"), filename)
}

func detectContentType(ext string) string {
	if typeName := mime.TypeByExtension("." + normalizeExtension(ext)); typeName != "" {
		return typeName
	}
	return "application/octet-stream"
}

func joinPrefix(prefix, key string) string {
	key = strings.TrimLeft(key, "/")
	if cleanPrefix := trimPrefix(prefix); cleanPrefix != "" {
		return path.Join(cleanPrefix, key)
	}
	return key
}

func trimPrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

func sanitizeFileBase(value string) string {
	replaced := strings.ReplaceAll(strings.TrimSpace(value), " ", "-")
	return strings.Trim(sanitizePathSegment(replaced), "-_")
}

// SanitizeToken lowercases the provided token and keeps alphanumeric, dash, and underscore characters only.
func SanitizeToken(value string) string {
	return sanitizePathSegment(value)
}
