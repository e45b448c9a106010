// Package realtime maintains the single authenticated duplex connection to
// the ERP backend and fans named server-pushed events out to local
// subscribers. The connection outlives any one dashboard: components only
// add and remove listeners.
package realtime

import "encoding/json"

// Business events the backend pushes. Names are the wire-level identifiers.
const (
	EventOrderUpdate      = "order_update"
	EventApprovalRequest  = "approval_request"
	EventApprovalDecision = "approval_decision"
	EventInventoryAlert   = "inventory_alert"
	EventLeaveRequest     = "leave_request"
	EventTourRequest      = "tour_request"
	EventPaymentUpdate    = "payment_update"
	EventDispatchUpdate   = "dispatch_update"
	EventProductionUpdate = "production_update"
	EventGuestUpdate      = "guest_update"
	EventSystemAlert      = "system_alert"
)

// Connection-lifecycle pseudo-events emitted by the manager itself.
const (
	EventConnectionStatus = "connection_status"
	EventConnectionFailed = "connection_failed"
)

const (
	eventPing = "ping"
	eventPong = "pong"
)

// BusinessEvents lists every server-pushed event the manager dispatches, in
// a stable order.
func BusinessEvents() []string {
	return []string{
		EventOrderUpdate,
		EventApprovalRequest,
		EventApprovalDecision,
		EventInventoryAlert,
		EventLeaveRequest,
		EventTourRequest,
		EventPaymentUpdate,
		EventDispatchUpdate,
		EventProductionUpdate,
		EventGuestUpdate,
		EventSystemAlert,
	}
}

var businessEventSet = func() map[string]struct{} {
	set := map[string]struct{}{}
	for _, name := range BusinessEvents() {
		set[name] = struct{}{}
	}
	return set
}()

func isBusinessEvent(name string) bool {
	_, ok := businessEventSet[name]
	return ok
}

// Event is the wire envelope for both directions: a name and a JSON payload.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ConnectionStatus is the payload of connection_status pseudo-events.
type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	Reason    string `json:"reason,omitempty"`
}

// ConnectionFailure is the payload of the terminal connection_failed event.
type ConnectionFailure struct {
	Error string `json:"error"`
}

// DecodePayload unpacks a business event payload into a generic map. A
// missing or malformed payload yields an empty map, never nil.
func DecodePayload(data json.RawMessage) map[string]any {
	payload := map[string]any{}
	if len(data) == 0 {
		return payload
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return map[string]any{}
	}
	return payload
}

// DecodeConnectionStatus unpacks a connection_status payload.
func DecodeConnectionStatus(data json.RawMessage) ConnectionStatus {
	var status ConnectionStatus
	if len(data) == 0 {
		return status
	}
	_ = json.Unmarshal(data, &status)
	return status
}

func rawJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}
