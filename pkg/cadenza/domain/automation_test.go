package domain

import (
	"testing"
	"time"
)

func TestPolicy_QuietHoursAt(t *testing.T) {
	wrap := Policy{QuietHoursStart: 21, QuietHoursEnd: 8}

	at := func(hour int) time.Time {
		return time.Date(2026, 3, 10, hour, 30, 0, 0, time.UTC)
	}
	if !wrap.QuietHoursAt(at(23)) {
		t.Error("23:30 should fall inside a 21-8 window")
	}
	if !wrap.QuietHoursAt(at(2)) {
		t.Error("02:30 should fall inside a 21-8 window")
	}
	if wrap.QuietHoursAt(at(12)) {
		t.Error("12:30 should fall outside a 21-8 window")
	}
	if wrap.QuietHoursAt(at(8)) {
		t.Error("08:30 is past the end of a 21-8 window")
	}

	plain := Policy{QuietHoursStart: 9, QuietHoursEnd: 17}
	if !plain.QuietHoursAt(at(12)) {
		t.Error("12:30 should fall inside a 9-17 window")
	}
	if plain.QuietHoursAt(at(18)) {
		t.Error("18:30 should fall outside a 9-17 window")
	}

	disabled := Policy{QuietHoursStart: 0, QuietHoursEnd: 0}
	if disabled.QuietHoursAt(at(3)) {
		t.Error("an equal start and end disables the window")
	}
}

func TestPolicy_QuietHoursEndAfter(t *testing.T) {
	p := Policy{QuietHoursStart: 21, QuietHoursEnd: 8}

	late := time.Date(2026, 3, 10, 22, 30, 0, 0, time.UTC)
	if got := p.QuietHoursEndAfter(late); !got.Equal(time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("expected next-day 08:00, got %v", got)
	}

	early := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	if got := p.QuietHoursEndAfter(early); !got.Equal(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("expected same-day 08:00, got %v", got)
	}
}

func TestPolicy_QuietHoursTimezone(t *testing.T) {
	p := Policy{Timezone: "America/New_York", QuietHoursStart: 21, QuietHoursEnd: 8}

	// 03:00 UTC in winter is 22:00 in New York, inside the window.
	if !p.QuietHoursAt(time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC)) {
		t.Error("expected quiet hours in the policy timezone")
	}
	// 17:00 UTC is midday in New York.
	if p.QuietHoursAt(time.Date(2026, 1, 15, 17, 0, 0, 0, time.UTC)) {
		t.Error("expected midday outside quiet hours")
	}
}

func TestAutomation_ConversionRate(t *testing.T) {
	a := &Automation{}
	if got := a.ConversionRate(); got != 0 {
		t.Errorf("expected 0 before any trigger, got %f", got)
	}
	a.Triggered = 200
	a.Completed = 50
	if got := a.ConversionRate(); got != 0.25 {
		t.Errorf("expected 0.25, got %f", got)
	}
}

func TestExecutionStatus_Terminal(t *testing.T) {
	for _, s := range []ExecutionStatus{ExecutionCompleted, ExecutionFailed, ExecutionStopped} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []ExecutionStatus{ExecutionPending, ExecutionRunning} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
