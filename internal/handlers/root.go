package handlers

import "net/http"

// BannerResponse identifies the service at GET /.
type BannerResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Docs    string `json:"docs"`
}

// Banner returns a handler answering with a fixed banner.
func Banner(version, docs string) http.HandlerFunc {
	banner := BannerResponse{
		Message: "Welcome to the gradebook class management API",
		Version: version,
		Docs:    docs,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, banner)
	}
}

// Healthz answers liveness probes.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
