package storage

import (
	"mime"
	"path"
	"path/filepath"
	"strings"
)

// joinURL builds "<base>/<key>" without doubling slashes.
func joinURL(base, key string) string {
	key = strings.TrimLeft(path.Clean("/"+key), "/")
	if base == "" {
		return "/" + key
	}
	return strings.TrimRight(base, "/") + "/" + key
}

var videoContentTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
}

// ContentTypeFor guesses the MIME type of an artifact from its extension.
func ContentTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := videoContentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
