package monitor

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/esp32-monitor/esp32-monitor-server/internal/models"
	"github.com/esp32-monitor/esp32-monitor-server/internal/storage"
)

type captureNotifier struct {
	snapshots []*models.DeviceSnapshot
}

func (n *captureNotifier) Publish(snapshot *models.DeviceSnapshot) {
	n.snapshots = append(n.snapshots, snapshot)
}

func fixedTime() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newTestReconciler(store storage.Store, notifier Notifier) *Reconciler {
	r := NewReconciler(store, notifier)
	r.now = fixedTime
	return r
}

func boolPtr(b bool) *bool { return &b }

func TestReconcileRegistersNewDevice(t *testing.T) {
	store := storage.NewMemoryStore()
	notifier := &captureNotifier{}
	r := newTestReconciler(store, notifier)

	payload := &models.TelemetryPayload{
		ChipID:   "abc123",
		MAC:      "AA:BB:CC:DD:EE:FF",
		IP:       "192.168.1.50",
		FreeHeap: 204800,
		WifiRSSI: -61,
	}

	snap, err := r.Reconcile(context.Background(), payload)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if snap.ChipID != "abc123" {
		t.Errorf("chipId = %q, want abc123", snap.ChipID)
	}
	if !snap.Connected {
		t.Error("freshly reported device should be connected")
	}
	if snap.IP != "192.168.1.50" || snap.MAC != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("identity not carried: ip=%q mac=%q", snap.IP, snap.MAC)
	}
	if snap.FreeHeap != 204800 || snap.WifiRSSI != -61 {
		t.Errorf("vitals not carried: heap=%d rssi=%d", snap.FreeHeap, snap.WifiRSSI)
	}
	if snap.FlashSize != 0 || snap.Uptime != 0 {
		t.Errorf("omitted vitals should be zero: flash=%d uptime=%d", snap.FlashSize, snap.Uptime)
	}
	if len(snap.Pins) != 34 {
		t.Errorf("expected 34 default pins, got %d", len(snap.Pins))
	}

	device, err := store.GetDeviceByChipID(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("GetDeviceByChipID: %v", err)
	}
	if device.Name != "ESP32-abc123" {
		t.Errorf("name = %q, want ESP32-abc123", device.Name)
	}
	if !device.IsActive {
		t.Error("registered device should be active")
	}

	if len(notifier.snapshots) != 1 {
		t.Fatalf("expected 1 published snapshot, got %d", len(notifier.snapshots))
	}
	if !reflect.DeepEqual(notifier.snapshots[0], snap) {
		t.Error("published snapshot differs from returned snapshot")
	}
}

func TestReconcileKeepsSuppliedName(t *testing.T) {
	store := storage.NewMemoryStore()
	r := newTestReconciler(store, nil)

	payload := &models.TelemetryPayload{
		ChipID: "abc123",
		MAC:    "AA:BB:CC:DD:EE:FF",
		IP:     "192.168.1.50",
		Name:   "greenhouse",
	}
	if _, err := r.Reconcile(context.Background(), payload); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	device, err := store.GetDeviceByChipID(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("GetDeviceByChipID: %v", err)
	}
	if device.Name != "greenhouse" {
		t.Errorf("name = %q, want greenhouse", device.Name)
	}
}

func TestReconcileRejectsIncompletePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload models.TelemetryPayload
		field   string
	}{
		{"missing chipId", models.TelemetryPayload{MAC: "m", IP: "i"}, "chipId"},
		{"missing mac", models.TelemetryPayload{ChipID: "c", IP: "i"}, "mac"},
		{"missing ip", models.TelemetryPayload{ChipID: "c", MAC: "m"}, "ip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			notifier := &captureNotifier{}
			r := newTestReconciler(store, notifier)

			_, err := r.Reconcile(context.Background(), &tt.payload)

			var verr *models.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}

			// A rejected payload must leave no trace.
			if _, err := store.GetMostRecentActiveDevice(context.Background()); !errors.Is(err, storage.ErrNotFound) {
				t.Errorf("store mutated by invalid payload: %v", err)
			}
			if len(notifier.snapshots) != 0 {
				t.Error("invalid payload must not publish")
			}
		})
	}
}

func TestReconcileUpdatesExistingDevice(t *testing.T) {
	store := storage.NewMemoryStore()
	r := newTestReconciler(store, nil)
	ctx := context.Background()

	first := &models.TelemetryPayload{ChipID: "abc123", MAC: "AA:AA", IP: "10.0.0.1", Uptime: 100}
	if _, err := r.Reconcile(ctx, first); err != nil {
		t.Fatalf("first Reconcile: %v", err)
	}

	later := fixedTime().Add(time.Minute)
	r.now = func() time.Time { return later }

	second := &models.TelemetryPayload{ChipID: "abc123", MAC: "BB:BB", IP: "10.0.0.2", Uptime: 160}
	snap, err := r.Reconcile(ctx, second)
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}

	if snap.MAC != "BB:BB" || snap.IP != "10.0.0.2" || snap.Uptime != 160 {
		t.Errorf("snapshot not refreshed: mac=%q ip=%q uptime=%d", snap.MAC, snap.IP, snap.Uptime)
	}
	if !snap.LastSeen.Equal(later) {
		t.Errorf("lastSeen = %v, want %v", snap.LastSeen, later)
	}

	device, err := store.GetDeviceByChipID(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetDeviceByChipID: %v", err)
	}
	if device.MACAddress != "BB:BB" {
		t.Errorf("stored mac = %q, want BB:BB", device.MACAddress)
	}
}

func TestReconcileUpsertsOnlyReportedPins(t *testing.T) {
	store := storage.NewMemoryStore()
	r := newTestReconciler(store, nil)
	ctx := context.Background()

	base := &models.TelemetryPayload{ChipID: "abc123", MAC: "m", IP: "i"}
	if _, err := r.Reconcile(ctx, base); err != nil {
		t.Fatalf("registration: %v", err)
	}

	report := &models.TelemetryPayload{
		ChipID: "abc123",
		MAC:    "m",
		IP:     "i",
		Pins: []models.PinReport{
			{Number: 5, Mode: "OUTPUT", Value: 1},
			{Number: 2, Available: boolPtr(false)},
		},
	}
	snap, err := r.Reconcile(ctx, report)
	if err != nil {
		t.Fatalf("Reconcile with pins: %v", err)
	}

	if len(snap.Pins) != 34 {
		t.Fatalf("expected 34 pins, got %d", len(snap.Pins))
	}

	byNumber := make(map[int]models.PinSnapshot)
	for _, pin := range snap.Pins {
		byNumber[pin.Number] = pin
	}

	if pin := byNumber[5]; pin.Mode != "OUTPUT" || pin.Value != 1 || !pin.Available {
		t.Errorf("pin 5 = %+v, want OUTPUT/1/available", pin)
	}
	// Omitted mode defaults to INPUT, omitted available to true.
	if pin := byNumber[2]; pin.Mode != "INPUT" || pin.Available {
		t.Errorf("pin 2 = %+v, want INPUT/unavailable", pin)
	}
	// Untouched pins keep their defaults.
	if pin := byNumber[4]; pin.Mode != "INPUT" || pin.Value != 0 || !pin.Available {
		t.Errorf("pin 4 = %+v, want untouched default", pin)
	}
	if pin := byNumber[1]; pin.Available {
		t.Error("reserved pin 1 should stay unavailable")
	}
}

func TestPushAndPullSnapshotsAgree(t *testing.T) {
	store := storage.NewMemoryStore()
	r := newTestReconciler(store, nil)
	ctx := context.Background()

	payload := &models.TelemetryPayload{
		ChipID:   "abc123",
		MAC:      "AA:BB",
		IP:       "10.0.0.1",
		FreeHeap: 1024,
		Pins:     []models.PinReport{{Number: 5, Mode: "OUTPUT", Value: 1}},
	}

	pushed, err := r.Reconcile(ctx, payload)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	pulled, err := r.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}

	if !reflect.DeepEqual(pushed, pulled) {
		t.Errorf("push and pull snapshots differ:\npush: %+v\npull: %+v", pushed, pulled)
	}
}

func TestLatestSnapshotPlaceholder(t *testing.T) {
	r := newTestReconciler(storage.NewMemoryStore(), nil)

	snap, err := r.LatestSnapshot(context.Background())
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}

	if snap.ChipID != PlaceholderChipID {
		t.Errorf("chipId = %q, want %q", snap.ChipID, PlaceholderChipID)
	}
	if snap.Connected {
		t.Error("placeholder must be disconnected")
	}
	if len(snap.Pins) != 0 || snap.Pins == nil {
		t.Errorf("placeholder pins = %v, want empty non-nil slice", snap.Pins)
	}
}

// raceStore simulates losing a first-registration race: the first
// CreateDevice call lets a concurrent winner in and reports a duplicate.
type raceStore struct {
	storage.Store
	raced bool
}

func (s *raceStore) BeginTx(ctx context.Context) (storage.Store, error) {
	return s, nil
}

func (s *raceStore) CreateDevice(ctx context.Context, device *models.Device) error {
	if !s.raced {
		s.raced = true
		winner := &models.Device{
			ID:         uuid.New(),
			ChipID:     device.ChipID,
			MACAddress: "CC:CC",
			Name:       "winner",
			LastSeen:   device.LastSeen,
			IsActive:   true,
		}
		if err := s.Store.CreateDevice(ctx, winner); err != nil {
			return err
		}
		return storage.ErrDuplicateKey
	}
	return s.Store.CreateDevice(ctx, device)
}

func TestReconcileRetriesLostCreateRace(t *testing.T) {
	store := &raceStore{Store: storage.NewMemoryStore()}
	notifier := &captureNotifier{}
	r := newTestReconciler(store, notifier)
	ctx := context.Background()

	payload := &models.TelemetryPayload{ChipID: "abc123", MAC: "AA:AA", IP: "10.0.0.1"}
	snap, err := r.Reconcile(ctx, payload)
	if err != nil {
		t.Fatalf("Reconcile after lost race: %v", err)
	}

	if !store.raced {
		t.Fatal("race was never triggered")
	}
	if snap.MAC != "AA:AA" {
		t.Errorf("retry should land on update branch: mac=%q", snap.MAC)
	}

	// The winner's record survives, only refreshed.
	device, err := store.GetDeviceByChipID(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetDeviceByChipID: %v", err)
	}
	if device.Name != "winner" {
		t.Errorf("name = %q, want winner", device.Name)
	}
	if device.MACAddress != "AA:AA" {
		t.Errorf("mac = %q, want AA:AA", device.MACAddress)
	}

	if len(notifier.snapshots) != 1 {
		t.Errorf("expected exactly 1 publish, got %d", len(notifier.snapshots))
	}
}
