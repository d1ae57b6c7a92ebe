package signal

import (
	"path/filepath"
	"strings"
)

// mimeFallback is served for any extension the table does not know.
const mimeFallback = "application/text"

var mimeTypes = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "text/javascript",
	".json": "application/json",
	".txt":  "text/plain",
	".xml":  "text/xml",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".wasm": "application/wasm",
}

// MIMEType looks up the content type for a file path by extension.
// The lookup is case-insensitive.
func MIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mt, ok := mimeTypes[ext]; ok {
		return mt
	}
	return mimeFallback
}
