package models

import (
	"time"

	"github.com/google/uuid"
)

// FirmwareImage is an uploaded firmware binary plus metadata. Records are
// immutable after upload; IsActive marks the image a device should be
// offered and is never flipped by this server (activation is an external
// action).
type FirmwareImage struct {
	ID       uuid.UUID `json:"id" db:"id"`
	DeviceID string    `json:"deviceId" db:"device_id"`
	Filename string    `json:"filename" db:"filename"`
	Version  string    `json:"version" db:"version"`
	// Filepath is where the bytes live on disk, server-side detail only.
	Filepath   string    `json:"-" db:"filepath"`
	Size       int64     `json:"size" db:"size"`
	UploadedAt time.Time `json:"uploadedAt" db:"uploaded_at"`
	IsActive   bool      `json:"isActive" db:"is_active"`
}
