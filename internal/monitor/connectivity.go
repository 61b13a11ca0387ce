package monitor

import "time"

// ConnectivityTimeout is how long after its last report a device still
// counts as connected. Fixed system constant.
const ConnectivityTimeout = 30 * time.Second

// IsConnected derives the connectivity flag from the last seen timestamp.
// The boundary is inclusive: exactly 30s ago is still connected.
func IsConnected(lastSeen, now time.Time) bool {
	return now.Sub(lastSeen) <= ConnectivityTimeout
}
