package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/esp32-monitor/esp32-monitor-server/internal/realtime"
)

// setupAPIRoutes sets up the /api routes. Paths match what the device
// firmware and the dashboard already speak.
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Device telemetry and status
	r.Route("/esp32", func(r chi.Router) {
		r.Post("/data", s.HandleTelemetry)
		r.Get("/data", s.HandleStatus)
		r.Get("/status", s.HandleStatus)
	})

	// OTA firmware distribution
	r.Route("/ota", func(r chi.Router) {
		r.Post("/check", s.HandleCheckUpdate)
		r.Post("/firmware", s.HandleUploadFirmware)
		r.Get("/firmware", s.HandleListFirmware)
		r.Get("/download/{id}", s.HandleDownloadFirmware)
	})

	// Realtime monitor room
	r.Get("/socket/io", func(w http.ResponseWriter, r *http.Request) {
		realtime.ServeWS(s.hub, w, r)
	})
}
