package utils

import (
	"mime"
	"path"
	"strings"
)

// extraTypes covers extensions the platform MIME table often lacks
var extraTypes = map[string]string{
	".md":   "text/markdown",
	".csv":  "text/csv",
	".webp": "image/webp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".flac": "audio/flac",
	".mkv":  "video/x-matroska",
	".gz":   "application/gzip",
	".tgz":  "application/gzip",
	".bz2":  "application/x-bzip2",
	".xz":   "application/x-xz",
	".7z":   "application/x-7z-compressed",
	".tar":  "application/x-tar",
	".zip":  "application/zip",
	".log":  "text/plain",
	".yaml": "text/yaml",
	".yml":  "text/yaml",
	".toml": "text/plain",
}

// DetectContentType guesses a MIME type from the file name alone, falling
// back to application/octet-stream.
func DetectContentType(name string) string {
	ext := strings.ToLower(path.Ext(strings.TrimSuffix(name, "/")))
	if ext == "" {
		return "application/octet-stream"
	}
	if contentType, ok := extraTypes[ext]; ok {
		return contentType
	}
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}

// GetFileCategory returns a general category for the content type
func GetFileCategory(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	case strings.HasPrefix(contentType, "audio/"):
		return "audio"
	case strings.HasPrefix(contentType, "text/"):
		return "text"
	case strings.Contains(contentType, "pdf"):
		return "document"
	case strings.Contains(contentType, "zip") || strings.Contains(contentType, "tar") ||
		strings.Contains(contentType, "gzip") || strings.Contains(contentType, "bzip") ||
		strings.Contains(contentType, "xz") || strings.Contains(contentType, "7z"):
		return "archive"
	default:
		return "other"
	}
}
