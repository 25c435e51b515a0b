package app

import (
	"log/slog"
	"mime"
)

// staticTypes are the asset types served from web/static. Minimal container
// images often ship without /etc/mime.types.
var staticTypes = map[string]string{
	".css":   "text/css; charset=utf-8",
	".js":    "text/javascript; charset=utf-8",
	".svg":   "image/svg+xml",
	".woff2": "font/woff2",
}

func init() {
	for ext, typ := range staticTypes {
		if err := ensureMimeType(ext, typ); err != nil {
			slog.Warn("register mime type", slog.String("ext", ext), slog.Any("error", err))
		}
	}
}

func ensureMimeType(ext, typ string) error {
	if mime.TypeByExtension(ext) != "" {
		return nil
	}
	return mime.AddExtensionType(ext, typ)
}
