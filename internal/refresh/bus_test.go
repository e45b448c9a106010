package refresh

import (
	"testing"

	"alankar-sync/internal/logging"
)

func TestBus_TriggerDeliversPayloadToEachSubscriberOnce(t *testing.T) {
	bus := NewBus(logging.New(false))

	var first, second []Payload
	bus.Subscribe(TopicStoreOrders, func(data Payload) { first = append(first, data) })
	bus.Subscribe(TopicStoreOrders, func(data Payload) { second = append(second, data) })
	bus.Subscribe(TopicInventory, func(Payload) { t.Fatalf("unrelated topic subscriber invoked") })

	bus.Trigger(TopicStoreOrders, Payload{"orderId": 42})

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("deliveries = %d and %d, want 1 and 1", len(first), len(second))
	}
	if got := first[0]["orderId"]; got != 42 {
		t.Fatalf("payload orderId = %v, want 42", got)
	}
}

func TestBus_NilPayloadDeliversEmptyMap(t *testing.T) {
	bus := NewBus(logging.New(false))

	var received Payload
	bus.Subscribe(TopicHRLeaves, func(data Payload) { received = data })
	bus.Trigger(TopicHRLeaves, nil)

	if received == nil {
		t.Fatalf("payload = nil, want empty map")
	}
	if len(received) != 0 {
		t.Fatalf("payload = %v, want empty", received)
	}
}

func TestBus_UnsubscribeRemovesOnlyOwnSubscription(t *testing.T) {
	bus := NewBus(logging.New(false))

	var calls int
	count := func(Payload) { calls++ }

	unsubA := bus.Subscribe(TopicFinancePayments, count)
	bus.Subscribe(TopicFinancePayments, count)
	if got := bus.ListenerCount(TopicFinancePayments); got != 2 {
		t.Fatalf("ListenerCount = %d, want 2", got)
	}

	unsubA()
	if got := bus.ListenerCount(TopicFinancePayments); got != 1 {
		t.Fatalf("ListenerCount after unsubscribe = %d, want 1", got)
	}

	// Calling the same unsubscribe again must not touch the survivor.
	unsubA()
	if got := bus.ListenerCount(TopicFinancePayments); got != 1 {
		t.Fatalf("ListenerCount after repeat unsubscribe = %d, want 1", got)
	}

	bus.Trigger(TopicFinancePayments, nil)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestBus_LastUnsubscribeRemovesTopicEntry(t *testing.T) {
	bus := NewBus(logging.New(false))

	unsub := bus.Subscribe(TopicProductionOrders, func(Payload) {})
	unsub()

	if got := bus.ListenerCount(TopicProductionOrders); got != 0 {
		t.Fatalf("ListenerCount = %d, want 0", got)
	}
	// A trigger on the emptied topic is a silent no-op.
	bus.Trigger(TopicProductionOrders, nil)
}

func TestBus_PanickingSubscriberDoesNotAbortFanOut(t *testing.T) {
	bus := NewBus(logging.New(false))

	var before, after int
	bus.Subscribe(TopicAdminApprovals, func(Payload) { before++ })
	bus.Subscribe(TopicAdminApprovals, func(Payload) { panic("subscriber boom") })
	bus.Subscribe(TopicAdminApprovals, func(Payload) { after++ })

	bus.Trigger(TopicAdminApprovals, nil)

	if before != 1 {
		t.Fatalf("subscriber before panic ran %d times, want 1", before)
	}
	if after != 1 {
		t.Fatalf("subscriber after panic ran %d times, want 1", after)
	}
}

func TestBus_TriggerMultipleHitsEachTopic(t *testing.T) {
	bus := NewBus(logging.New(false))

	var topics []string
	bus.Subscribe(TopicStoreOrders, func(Payload) { topics = append(topics, TopicStoreOrders) })
	bus.Subscribe(TopicInventory, func(Payload) { topics = append(topics, TopicInventory) })

	bus.TriggerMultiple([]string{TopicStoreOrders, TopicInventory}, Payload{"source": "test"})

	if len(topics) != 2 || topics[0] != TopicStoreOrders || topics[1] != TopicInventory {
		t.Fatalf("delivery order = %v", topics)
	}
}

func TestBus_ClearDropsAllSubscriptions(t *testing.T) {
	bus := NewBus(logging.New(false))

	var calls int
	bus.Subscribe(TopicAll, func(Payload) { calls++ })
	bus.Subscribe(TopicSecurityEntries, func(Payload) { calls++ })

	bus.Clear()
	bus.Trigger(TopicAll, nil)
	bus.Trigger(TopicSecurityEntries, nil)

	if calls != 0 {
		t.Fatalf("calls after Clear = %d, want 0", calls)
	}
}

func TestBus_SameCallbackSubscribedTwiceIsTwoSubscriptions(t *testing.T) {
	bus := NewBus(logging.New(false))

	var calls int
	count := func(Payload) { calls++ }
	bus.Subscribe(TopicHRAttendance, count)
	bus.Subscribe(TopicHRAttendance, count)

	bus.Trigger(TopicHRAttendance, nil)
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}
