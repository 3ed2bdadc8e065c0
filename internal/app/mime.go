package app

import (
	"log"
	"mime"
)

// Uploaded setting images are served from the local blob directory; some
// base images lack these entries.
func init() {
	ensureMimeType(".webp", "image/webp")
	ensureMimeType(".ico", "image/x-icon")
}

func ensureMimeType(ext, typ string) {
	if mime.TypeByExtension(ext) != "" {
		return
	}
	if err := mime.AddExtensionType(ext, typ); err != nil {
		log.Printf("app: failed to register MIME type for %s: %v", ext, err)
	}
}
