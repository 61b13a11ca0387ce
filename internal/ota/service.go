package ota

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/esp32-monitor/esp32-monitor-server/internal/models"
	"github.com/esp32-monitor/esp32-monitor-server/internal/storage"
)

// ErrBadExtension rejects uploads that are not firmware binaries.
var ErrBadExtension = errors.New("only .bin files are allowed")

const (
	defaultListLimit   = 10
	downloadPathPrefix = "/api/ota/download/"
)

// ByteStore is the content store for firmware binaries.
type ByteStore interface {
	Put(name string, data []byte) error
	Get(name string) ([]byte, error)
	Path(name string) string
}

// Service coordinates firmware registration, update checks and downloads.
//
// Note that nothing in this service ever sets IsActive on an image;
// activation happens out of band, and CheckForUpdate only considers
// active images.
type Service struct {
	store storage.Store
	files ByteStore
	now   func() time.Time
}

// NewService creates an OTA coordinator
func NewService(store storage.Store, files ByteStore) *Service {
	return &Service{
		store: store,
		files: files,
		now:   time.Now,
	}
}

// RegisterFirmware stores an uploaded binary and records its metadata.
// Images start inactive. When no version is given, a filesystem-safe
// upload timestamp serves as the version label.
func (s *Service) RegisterFirmware(ctx context.Context, deviceID, filename, version string, data []byte) (*models.FirmwareImage, error) {
	if deviceID == "" {
		return nil, &models.ValidationError{Field: "chipId"}
	}
	if filename == "" || len(data) == 0 {
		return nil, &models.ValidationError{Field: "firmware"}
	}
	if !strings.HasSuffix(filename, ".bin") {
		return nil, ErrBadExtension
	}

	now := s.now()
	if version == "" {
		version = timestampVersion(now)
	}

	name := fmt.Sprintf("%s_%s.bin", deviceID, version)
	if err := s.files.Put(name, data); err != nil {
		return nil, &models.StorageError{Op: "write-firmware", Err: err}
	}

	fw := &models.FirmwareImage{
		ID:         uuid.New(),
		DeviceID:   deviceID,
		Filename:   name,
		Version:    version,
		Filepath:   s.files.Path(name),
		Size:       int64(len(data)),
		UploadedAt: now,
		IsActive:   false,
	}
	if err := s.store.CreateFirmware(ctx, fw); err != nil {
		return nil, &models.StorageError{Op: "create-firmware", Err: err}
	}

	log.Info().
		Str("chipId", deviceID).
		Str("filename", name).
		Int64("size", fw.Size).
		Msg("Firmware uploaded")

	return fw, nil
}

// UpdateInfo describes the firmware offered to a device.
type UpdateInfo struct {
	Version    string    `json:"version"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
	Filename   string    `json:"filename"`
}

// UpdateCheck is the answer to an update poll.
type UpdateCheck struct {
	HasUpdate   bool
	Update      *UpdateInfo
	FirmwareURL string
}

// CheckForUpdate compares the device's reported version against the most
// recently uploaded active image. The comparison is plain string
// inequality, not semantic versioning.
func (s *Service) CheckForUpdate(ctx context.Context, deviceID, currentVersion string) (*UpdateCheck, error) {
	if deviceID == "" {
		return nil, &models.ValidationError{Field: "chipId"}
	}

	fw, err := s.store.GetLatestActiveFirmware(ctx, deviceID)
	if errors.Is(err, storage.ErrNotFound) {
		return &UpdateCheck{HasUpdate: false}, nil
	}
	if err != nil {
		return nil, &models.StorageError{Op: "find-firmware", Err: err}
	}

	if currentVersion == fw.Version {
		return &UpdateCheck{HasUpdate: false}, nil
	}

	return &UpdateCheck{
		HasUpdate: true,
		Update: &UpdateInfo{
			Version:    fw.Version,
			Size:       fw.Size,
			UploadedAt: fw.UploadedAt,
			Filename:   fw.Filename,
		},
		FirmwareURL: downloadPathPrefix + fw.ID.String(),
	}, nil
}

// DownloadFirmware returns an image's metadata and raw bytes.
func (s *Service) DownloadFirmware(ctx context.Context, id uuid.UUID) (*models.FirmwareImage, []byte, error) {
	fw, err := s.store.GetFirmware(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, err
	}
	if err != nil {
		return nil, nil, &models.StorageError{Op: "find-firmware", Err: err}
	}

	data, err := s.files.Get(fw.Filename)
	if err != nil {
		return nil, nil, &models.StorageError{Op: "read-firmware", Err: err}
	}

	return fw, data, nil
}

// ListFirmware lists uploaded images, most recent first.
func (s *Service) ListFirmware(ctx context.Context, limit int) ([]*models.FirmwareImage, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	images, err := s.store.ListFirmware(ctx, limit)
	if err != nil {
		return nil, &models.StorageError{Op: "list-firmware", Err: err}
	}

	return images, nil
}

// timestampVersion renders an upload time as an ISO timestamp with ':'
// and '.' swapped for '-' so it can live inside a filename.
func timestampVersion(t time.Time) string {
	iso := t.UTC().Format("2006-01-02T15:04:05.000Z")
	return strings.NewReplacer(":", "-", ".", "-").Replace(iso)
}
