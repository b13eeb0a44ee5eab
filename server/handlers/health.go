package handlers

import (
	"io/fs"
	"net/http"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "prompt-to-json-enhancer"

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": ServiceName,
	})
}

// Index serves index.html from fsys.
func Index(fsys fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, fsys, "index.html")
	}
}

// Static serves the files of fsys under prefix.
func Static(prefix string, fsys fs.FS) http.Handler {
	return http.StripPrefix(prefix, http.FileServerFS(fsys))
}
