package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/esp32-monitor/esp32-monitor-server/internal/models"
)

// MemoryStore implements Store with in-process maps. It backs the tests
// and the DSN-less standalone mode. All values are copied on the way in
// and out so callers never alias store-owned state.
type MemoryStore struct {
	mu       sync.RWMutex
	devices  map[uuid.UUID]*models.Device
	byChipID map[string]uuid.UUID
	pins     map[uuid.UUID]map[int]*models.PinState
	samples  map[uuid.UUID][]*models.TelemetrySample
	firmware map[uuid.UUID]*models.FirmwareImage
	uploads  []uuid.UUID
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		devices:  make(map[uuid.UUID]*models.Device),
		byChipID: make(map[string]uuid.UUID),
		pins:     make(map[uuid.UUID]map[int]*models.PinState),
		samples:  make(map[uuid.UUID][]*models.TelemetrySample),
		firmware: make(map[uuid.UUID]*models.FirmwareImage),
	}
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

// BeginTx returns the store itself; individual operations are already
// atomic under the mutex and the reconcile retry path tolerates the
// missing rollback.
func (s *MemoryStore) BeginTx(ctx context.Context) (Store, error) {
	return s, nil
}

// Commit is a no-op
func (s *MemoryStore) Commit() error {
	return nil
}

// Rollback is a no-op
func (s *MemoryStore) Rollback() error {
	return nil
}

// GetDeviceByChipID gets a device by its chip ID
func (s *MemoryStore) GetDeviceByChipID(ctx context.Context, chipID string) (*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byChipID[chipID]
	if !ok {
		return nil, ErrNotFound
	}

	cp := *s.devices[id]
	return &cp, nil
}

// CreateDevice creates a new device, enforcing chip ID uniqueness
func (s *MemoryStore) CreateDevice(ctx context.Context, device *models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byChipID[device.ChipID]; exists {
		return ErrDuplicateKey
	}

	if device.ID == uuid.Nil {
		device.ID = uuid.New()
	}

	now := time.Now()
	device.CreatedAt = now
	device.UpdatedAt = now

	cp := *device
	s.devices[device.ID] = &cp
	s.byChipID[device.ChipID] = device.ID
	s.pins[device.ID] = make(map[int]*models.PinState)

	return nil
}

// UpdateDevice updates a device
func (s *MemoryStore) UpdateDevice(ctx context.Context, device *models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[device.ID]; !ok {
		return ErrNotFound
	}

	device.UpdatedAt = time.Now()
	cp := *device
	s.devices[device.ID] = &cp

	return nil
}

// CreatePins bulk inserts pins for a device
func (s *MemoryStore) CreatePins(ctx context.Context, pins []*models.PinState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, pin := range pins {
		if pin.ID == uuid.Nil {
			pin.ID = uuid.New()
		}

		byNumber, ok := s.pins[pin.DeviceID]
		if !ok {
			byNumber = make(map[int]*models.PinState)
			s.pins[pin.DeviceID] = byNumber
		}

		cp := *pin
		byNumber[pin.PinNumber] = &cp
	}

	return nil
}

// UpsertPin creates or overwrites one pin keyed by (device, pin number)
func (s *MemoryStore) UpsertPin(ctx context.Context, pin *models.PinState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byNumber, ok := s.pins[pin.DeviceID]
	if !ok {
		byNumber = make(map[int]*models.PinState)
		s.pins[pin.DeviceID] = byNumber
	}

	if existing, ok := byNumber[pin.PinNumber]; ok {
		existing.Mode = pin.Mode
		existing.Value = pin.Value
		existing.Available = pin.Available
		existing.Timestamp = pin.Timestamp
		return nil
	}

	if pin.ID == uuid.Nil {
		pin.ID = uuid.New()
	}

	cp := *pin
	byNumber[pin.PinNumber] = &cp

	return nil
}

// CreateTelemetrySample appends one sample
func (s *MemoryStore) CreateTelemetrySample(ctx context.Context, sample *models.TelemetrySample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sample.ID == uuid.Nil {
		sample.ID = uuid.New()
	}

	cp := *sample
	s.samples[sample.DeviceID] = append(s.samples[sample.DeviceID], &cp)

	return nil
}

// GetDeviceDetail loads a device with pins and latest sample
func (s *MemoryStore) GetDeviceDetail(ctx context.Context, deviceID uuid.UUID) (*DeviceDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	device, ok := s.devices[deviceID]
	if !ok {
		return nil, ErrNotFound
	}

	return s.detailLocked(device), nil
}

// GetMostRecentActiveDevice loads the detail of the active device with the
// newest last seen timestamp
func (s *MemoryStore) GetMostRecentActiveDevice(ctx context.Context) (*DeviceDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.Device
	for _, device := range s.devices {
		if !device.IsActive {
			continue
		}
		if latest == nil || device.LastSeen.After(latest.LastSeen) {
			latest = device
		}
	}

	if latest == nil {
		return nil, ErrNotFound
	}

	return s.detailLocked(latest), nil
}

// detailLocked assembles a DeviceDetail; callers must hold the lock.
func (s *MemoryStore) detailLocked(device *models.Device) *DeviceDetail {
	cp := *device
	detail := &DeviceDetail{Device: &cp}

	for _, pin := range s.pins[device.ID] {
		pcp := *pin
		detail.Pins = append(detail.Pins, &pcp)
	}
	sort.Slice(detail.Pins, func(i, j int) bool {
		return detail.Pins[i].PinNumber < detail.Pins[j].PinNumber
	})

	// Latest sample by timestamp, insertion order breaking ties.
	samples := s.samples[device.ID]
	for _, sample := range samples {
		if detail.LatestSample == nil || !sample.Timestamp.Before(detail.LatestSample.Timestamp) {
			scp := *sample
			detail.LatestSample = &scp
		}
	}

	return detail
}

// CreateFirmware records an uploaded firmware image
func (s *MemoryStore) CreateFirmware(ctx context.Context, fw *models.FirmwareImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fw.ID == uuid.Nil {
		fw.ID = uuid.New()
	}

	cp := *fw
	s.firmware[fw.ID] = &cp
	s.uploads = append(s.uploads, fw.ID)

	return nil
}

// GetFirmware gets a firmware image by id
func (s *MemoryStore) GetFirmware(ctx context.Context, id uuid.UUID) (*models.FirmwareImage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fw, ok := s.firmware[id]
	if !ok {
		return nil, ErrNotFound
	}

	cp := *fw
	return &cp, nil
}

// GetLatestActiveFirmware gets the most recently uploaded active image for
// a device; later uploads win uploaded-at ties
func (s *MemoryStore) GetLatestActiveFirmware(ctx context.Context, deviceID string) (*models.FirmwareImage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.FirmwareImage
	for _, id := range s.uploads {
		fw := s.firmware[id]
		if fw.DeviceID != deviceID || !fw.IsActive {
			continue
		}
		if latest == nil || !fw.UploadedAt.Before(latest.UploadedAt) {
			latest = fw
		}
	}

	if latest == nil {
		return nil, ErrNotFound
	}

	cp := *latest
	return &cp, nil
}

// ListFirmware lists firmware images, most recent first
func (s *MemoryStore) ListFirmware(ctx context.Context, limit int) ([]*models.FirmwareImage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	images := make([]*models.FirmwareImage, 0, len(s.uploads))
	for i := len(s.uploads) - 1; i >= 0; i-- {
		cp := *s.firmware[s.uploads[i]]
		images = append(images, &cp)
	}

	sort.SliceStable(images, func(i, j int) bool {
		return images[i].UploadedAt.After(images[j].UploadedAt)
	})

	if limit > 0 && len(images) > limit {
		images = images[:limit]
	}

	return images, nil
}
