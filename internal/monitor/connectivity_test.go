package monitor

import (
	"testing"
	"time"
)

func TestIsConnected(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		lastSeen time.Time
		want     bool
	}{
		{"just reported", now, true},
		{"one millisecond under threshold", now.Add(-30*time.Second + time.Millisecond), true},
		{"exactly at threshold", now.Add(-30 * time.Second), true},
		{"one millisecond over threshold", now.Add(-30*time.Second - time.Millisecond), false},
		{"long gone", now.Add(-time.Hour), false},
		{"clock skew, seen in the future", now.Add(time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConnected(tt.lastSeen, now); got != tt.want {
				t.Errorf("IsConnected(%v) = %v, want %v", now.Sub(tt.lastSeen), got, tt.want)
			}
		})
	}
}
