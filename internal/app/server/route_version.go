package server

import (
	"net/http"

	"github.com/langerlad/bulk-ip-app/internal/app/version"
)

func getVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}
