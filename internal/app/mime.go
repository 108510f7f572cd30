package app

import (
	"log/slog"
	"mime"
)

// Minimal containers ship without /etc/mime.types, which leaves the embedded
// stylesheet served as text/plain and blocked by nosniff.
func init() {
	ensureMimeType(".css", "text/css; charset=utf-8")
	ensureMimeType(".svg", "image/svg+xml")
}

func ensureMimeType(ext, typ string) {
	if mime.TypeByExtension(ext) != "" {
		return
	}
	if err := mime.AddExtensionType(ext, typ); err != nil {
		slog.Default().Warn("register mime type", slog.String("ext", ext), slog.Any("error", err))
	}
}
