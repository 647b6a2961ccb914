package scripting

import (
	"context"
	"testing"
)

func TestStore_GetReturnsInitialValue(t *testing.T) {
	s := NewStore(NumberValue(42))
	if got := s.Get(); got.Number != 42 {
		t.Errorf("Get() = %+v, want 42", got)
	}
}

func TestStore_SetNotifiesEverySubscriber(t *testing.T) {
	s := NewStore(Nil())
	eval := newFakeEvaluator()

	h1 := CallbackHandle{ModuleInstanceID: "a", ExportName: "on_change_1"}
	h2 := CallbackHandle{ModuleInstanceID: "a", ExportName: "on_change_2"}
	s.Subscribe(h1)
	s.Subscribe(h2)

	handles := s.Set(StringValue("new"))
	notifySubscribers(context.Background(), eval, handles, StringValue("new"))

	if len(eval.callsFor("on_change_1")) != 1 {
		t.Error("expected on_change_1 to be called exactly once")
	}
	if len(eval.callsFor("on_change_2")) != 1 {
		t.Error("expected on_change_2 to be called exactly once")
	}
}

// TestStore_SubscribeDuringDispatchDoesNotAffectInProgressBatch verifies the
// snapshot-before-invoke invariant: a subscriber added while Set's returned
// handles are being notified must not receive that same notification.
func TestStore_SubscribeDuringDispatchDoesNotAffectInProgressBatch(t *testing.T) {
	s := NewStore(Nil())
	eval := newFakeEvaluator()

	late := CallbackHandle{ModuleInstanceID: "a", ExportName: "late_subscriber"}
	triggering := CallbackHandle{ModuleInstanceID: "a", ExportName: "triggering"}
	s.Subscribe(triggering)

	handles := s.Set(StringValue("v1"))
	// Simulate "triggering"'s callback body subscribing a new callback —
	// this must not be part of `handles`, the already-taken snapshot.
	s.Subscribe(late)
	notifySubscribers(context.Background(), eval, handles, StringValue("v1"))

	if len(eval.callsFor("late_subscriber")) != 0 {
		t.Error("subscriber added during dispatch must not receive the in-progress notification")
	}
	if len(eval.callsFor("triggering")) != 1 {
		t.Error("expected the pre-existing subscriber to be notified once")
	}

	// A subsequent Set must now reach both subscribers.
	handles2 := s.Set(StringValue("v2"))
	notifySubscribers(context.Background(), eval, handles2, StringValue("v2"))
	if len(eval.callsFor("late_subscriber")) != 1 {
		t.Error("expected late_subscriber to receive the next notification")
	}
}

func TestStore_Unsubscribe(t *testing.T) {
	s := NewStore(Nil())
	eval := newFakeEvaluator()

	h := CallbackHandle{ModuleInstanceID: "a", ExportName: "cb"}
	id := s.Subscribe(h)
	s.Unsubscribe(id)

	handles := s.Set(StringValue("v"))
	notifySubscribers(context.Background(), eval, handles, StringValue("v"))

	if len(eval.callsFor("cb")) != 0 {
		t.Error("expected unsubscribed callback to not be notified")
	}
}
