package runstatus

import "strings"

// User-facing runtime status labels for the sync layer.
const (
	Validated        = "Session validated"
	Connected        = "Connected"
	Reconnecting     = "Reconnecting"
	Disconnected     = "Disconnected"
	DisconnectedAuth = "Disconnected (auth)"
	SessionInvalid   = "Session invalid"
)

func Key(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}
