package remote

import (
	"mime"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// ContentType guesses the MIME type of a local file from its extension,
// falling back to sniffing the content
func ContentType(path string) string {
	if ext := filepath.Ext(path); ext != "" {
		if contentType := mime.TypeByExtension(ext); contentType != "" {
			return contentType
		}
	}

	m, err := mimetype.DetectFile(path)
	if err != nil {
		return ""
	}
	return m.String()
}
