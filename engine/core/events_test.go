package core

import (
	"testing"
)

func TestEventFireStopsWhenHandled(t *testing.T) {
	EventInitialize()
	defer EventShutdown()

	calls := 0
	first := func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
		calls++
		return data.Data.U32[0] == 42
	}
	second := func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
		calls++
		return true
	}

	a, b := &struct{ n int }{1}, &struct{ n int }{2}
	if !EventRegister(EVENT_CODE_RESIZED, a, first) {
		t.Fatalf("first registration failed")
	}
	if EventRegister(EVENT_CODE_RESIZED, a, first) {
		t.Errorf("duplicate listener must not register twice")
	}
	EventRegister(EVENT_CODE_RESIZED, b, second)

	ctx := EventContext{}
	ctx.Data.U32[0] = 42
	if !EventFire(EVENT_CODE_RESIZED, nil, ctx) {
		t.Errorf("expected event to be handled")
	}
	if calls != 1 {
		t.Errorf("expected 1 callback, got %d", calls)
	}

	calls = 0
	if !EventFire(EVENT_CODE_RESIZED, nil, EventContext{}) {
		t.Errorf("second listener should handle the event")
	}
	if calls != 2 {
		t.Errorf("expected 2 callbacks, got %d", calls)
	}

	if !EventUnregister(EVENT_CODE_RESIZED, b, second) {
		t.Errorf("unregister failed")
	}
	if EventFire(EVENT_CODE_RESIZED, nil, EventContext{}) {
		t.Errorf("no listener should handle the event after unregister")
	}
}
