package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/esp32-monitor/esp32-monitor-server/internal/models"
	"github.com/esp32-monitor/esp32-monitor-server/internal/storage"
)

// Notifier receives every reconciled snapshot for best-effort fan-out.
// Implementations must not block for long; delivery is at-most-once.
type Notifier interface {
	Publish(snapshot *models.DeviceSnapshot)
}

// MultiNotifier fans one publish out to several notifiers.
type MultiNotifier []Notifier

func (m MultiNotifier) Publish(snapshot *models.DeviceSnapshot) {
	for _, n := range m {
		n.Publish(snapshot)
	}
}

// Reconciler merges inbound telemetry reports into persisted device
// state. The notifier is an explicit dependency, never ambient state.
type Reconciler struct {
	store    storage.Store
	notifier Notifier
	now      func() time.Time
}

// NewReconciler creates a reconciler. notifier may be nil when no
// realtime channel exists (tests, batch tools).
func NewReconciler(store storage.Store, notifier Notifier) *Reconciler {
	return &Reconciler{
		store:    store,
		notifier: notifier,
		now:      time.Now,
	}
}

// Reconcile validates a telemetry payload, merges it into the store
// inside a transaction and publishes the resulting snapshot. Two devices
// racing on first-ever registration are resolved by retrying the loser
// once, which lands on the update branch.
func (r *Reconciler) Reconcile(ctx context.Context, payload *models.TelemetryPayload) (*models.DeviceSnapshot, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	snap, err := r.reconcile(ctx, payload)
	if errors.Is(err, storage.ErrDuplicateKey) {
		log.Debug().
			Str("chipId", payload.ChipID).
			Msg("Lost device create race, retrying as update")
		snap, err = r.reconcile(ctx, payload)
	}
	if err != nil {
		return nil, err
	}

	if r.notifier != nil {
		r.notifier.Publish(snap)
	}

	return snap, nil
}

// LatestSnapshot is the pull-side read path: the most recently active
// device projected through the same snapshot rules as the push path, or
// the placeholder when no device has ever registered.
func (r *Reconciler) LatestSnapshot(ctx context.Context) (*models.DeviceSnapshot, error) {
	now := r.now()

	detail, err := r.store.GetMostRecentActiveDevice(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return EmptySnapshot(now), nil
	}
	if err != nil {
		return nil, &models.StorageError{Op: "read-device", Err: err}
	}

	return BuildSnapshot(detail, now), nil
}

func (r *Reconciler) reconcile(ctx context.Context, payload *models.TelemetryPayload) (*models.DeviceSnapshot, error) {
	now := r.now()

	tx, err := r.store.BeginTx(ctx)
	if err != nil {
		return nil, &models.StorageError{Op: "begin-tx", Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	device, err := tx.GetDeviceByChipID(ctx, payload.ChipID)
	switch {
	case err == nil:
		device.MACAddress = payload.MAC
		device.LastSeen = now
		device.IsActive = true
		if err := tx.UpdateDevice(ctx, device); err != nil {
			return nil, &models.StorageError{Op: "update-device", Err: err}
		}

	case errors.Is(err, storage.ErrNotFound):
		name := payload.Name
		if name == "" {
			name = "ESP32-" + payload.ChipID
		}
		device = &models.Device{
			ID:         uuid.New(),
			ChipID:     payload.ChipID,
			MACAddress: payload.MAC,
			Name:       name,
			LastSeen:   now,
			IsActive:   true,
		}
		if err := tx.CreateDevice(ctx, device); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				// Surface the race untouched for the retry path.
				return nil, err
			}
			return nil, &models.StorageError{Op: "create-device", Err: err}
		}
		if err := tx.CreatePins(ctx, DefaultPins(device.ID, now)); err != nil {
			return nil, &models.StorageError{Op: "create-pins", Err: err}
		}
		log.Info().
			Str("chipId", device.ChipID).
			Str("name", device.Name).
			Msg("Registered new device")

	default:
		return nil, &models.StorageError{Op: "find-device", Err: err}
	}

	sample := &models.TelemetrySample{
		ID:          uuid.New(),
		DeviceID:    device.ID,
		IP:          payload.IP,
		FlashSize:   payload.FlashSize,
		FreeHeap:    payload.FreeHeap,
		CPUFreq:     payload.CPUFreq,
		SDKVersion:  payload.SDKVersion,
		CoreVersion: payload.CoreVersion,
		WifiRSSI:    payload.WifiRSSI,
		Uptime:      payload.Uptime,
		Timestamp:   now,
	}
	if err := tx.CreateTelemetrySample(ctx, sample); err != nil {
		return nil, &models.StorageError{Op: "create-sample", Err: err}
	}

	for _, report := range payload.Pins {
		mode := report.Mode
		if mode == "" {
			mode = models.PinModeInput
		}
		available := true
		if report.Available != nil {
			available = *report.Available
		}

		pin := &models.PinState{
			ID:        uuid.New(),
			DeviceID:  device.ID,
			PinNumber: report.Number,
			Mode:      mode,
			Value:     report.Value,
			Available: available,
			Timestamp: now,
		}
		if err := tx.UpsertPin(ctx, pin); err != nil {
			return nil, &models.StorageError{Op: "upsert-pin", Err: err}
		}
	}

	detail, err := tx.GetDeviceDetail(ctx, device.ID)
	if err != nil {
		return nil, &models.StorageError{Op: "read-device", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &models.StorageError{Op: "commit", Err: err}
	}
	committed = true

	return BuildSnapshot(detail, now), nil
}
