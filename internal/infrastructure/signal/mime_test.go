package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMIMEType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/index.html", "text/html"},
		{"/INDEX.HTML", "text/html"},
		{"/app.css", "text/css"},
		{"/app.js", "text/javascript"},
		{"/data.json", "application/json"},
		{"/logo.png", "image/png"},
		{"/photo.jpg", "image/jpeg"},
		{"/photo.JPEG", "image/jpeg"},
		{"/icon.svg", "image/svg+xml"},
		{"/file.xyz", "application/text"},
		{"/noext", "application/text"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MIMEType(tt.path), "path %s", tt.path)
	}
}
