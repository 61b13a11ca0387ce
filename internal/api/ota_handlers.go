package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/esp32-monitor/esp32-monitor-server/internal/models"
	"github.com/esp32-monitor/esp32-monitor-server/internal/ota"
	"github.com/esp32-monitor/esp32-monitor-server/internal/storage"
)

// Uploads above this size are rejected outright.
const maxFirmwareSize = 16 << 20

type updateCheckRequest struct {
	ChipID         string `json:"chipId"`
	CurrentVersion string `json:"currentVersion"`
}

// HandleCheckUpdate POST /api/ota/check
// Answers a device's update poll. hasUpdate is false when no active
// image exists or the device already runs the offered version.
func (s *RESTServer) HandleCheckUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	check, err := s.ota.CheckForUpdate(r.Context(), req.ChipID, req.CurrentVersion)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			s.respondError(w, http.StatusBadRequest, verr.Error())
			return
		}
		log.Error().Err(err).Str("chipId", req.ChipID).Msg("Update check failed")
		s.respondInternal(w, err)
		return
	}

	if !check.HasUpdate {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"success":   true,
			"hasUpdate": false,
		})
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"hasUpdate":   true,
		"update":      check.Update,
		"firmwareUrl": check.FirmwareURL,
	})
}

// HandleUploadFirmware POST /api/ota/firmware
// Accepts a multipart upload with a "firmware" .bin file plus chipId and
// an optional version label. Images start inactive.
func (s *RESTServer) HandleUploadFirmware(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFirmwareSize); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("firmware")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Field firmware is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxFirmwareSize+1))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Failed to read firmware file")
		return
	}
	if len(data) > maxFirmwareSize {
		s.respondError(w, http.StatusRequestEntityTooLarge, "Firmware file too large")
		return
	}

	chipID := r.FormValue("chipId")
	version := r.FormValue("version")

	fw, err := s.ota.RegisterFirmware(r.Context(), chipID, header.Filename, version, data)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			s.respondError(w, http.StatusBadRequest, verr.Error())
			return
		}
		if errors.Is(err, ota.ErrBadExtension) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("chipId", chipID).Msg("Firmware upload failed")
		s.respondInternal(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"message":   "Firmware uploaded successfully",
		"filename":  fw.Filename,
		"size":      fw.Size,
		"timestamp": fw.UploadedAt,
	})
}

// HandleListFirmware GET /api/ota/firmware
func (s *RESTServer) HandleListFirmware(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	images, err := s.ota.ListFirmware(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list firmware")
		s.respondInternal(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"firmware": images,
	})
}

// HandleDownloadFirmware GET /api/ota/download/{id}
// Streams the raw binary with the exact byte length so the device's OTA
// client can preallocate the flash partition.
func (s *RESTServer) HandleDownloadFirmware(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid firmware ID")
		return
	}

	fw, data, err := s.ota.DownloadFirmware(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "Firmware not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("id", id.String()).Msg("Firmware download failed")
		s.respondInternal(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, fw.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
