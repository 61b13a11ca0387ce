package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/esp32-monitor/esp32-monitor-server/internal/models"
)

// HandleTelemetry POST /api/esp32/data
// Ingests one device report, reconciles it into the store and fans the
// resulting snapshot out to every connected monitor.
func (s *RESTServer) HandleTelemetry(w http.ResponseWriter, r *http.Request) {
	var payload models.TelemetryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	snapshot, err := s.reconciler.Reconcile(r.Context(), &payload)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			s.respondError(w, http.StatusBadRequest, verr.Error())
			return
		}
		log.Error().Err(err).Str("chipId", payload.ChipID).Msg("Failed to process telemetry")
		s.respondInternal(w, err)
		return
	}

	log.Debug().
		Str("chipId", snapshot.ChipID).
		Int("pins", len(snapshot.Pins)).
		Msg("Telemetry processed")

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"message":   "Data received successfully",
		"timestamp": time.Now().UTC(),
	})
}

// HandleStatus GET /api/esp32/status
// Returns the snapshot of the most recently seen active device, or the
// placeholder when no device has ever registered.
func (s *RESTServer) HandleStatus(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.reconciler.LatestSnapshot(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to read device status")
		s.respondInternal(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, snapshot)
}
