package handlers

import (
	"net/http"
)

// ClearCache handles POST /cache/clear.
func (a *API) ClearCache(w http.ResponseWriter, r *http.Request) {
	a.processor.ClearCache()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cache cleared successfully"})
}
