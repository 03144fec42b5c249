package amqp

import (
	"testing"
	"time"
)

func TestNewPaymentRecordedEvent(t *testing.T) {
	ev := NewPaymentRecordedEvent("exp-1", "hh-1", "user-1", "Rent", 10000, "unique")

	if ev.Kind != KindPaymentRecorded {
		t.Errorf("Kind = %v, want %v", ev.Kind, KindPaymentRecorded)
	}
	if ev.ExpenseID != "exp-1" || ev.HouseholdID != "hh-1" || ev.UserID != "user-1" {
		t.Errorf("unexpected identifiers: %+v", ev)
	}
	if ev.AmountCents != 10000 {
		t.Errorf("AmountCents = %v, want 10000", ev.AmountCents)
	}
	if ev.Timestamp.IsZero() || time.Since(ev.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestNewExpenseSettledEvent(t *testing.T) {
	ev := NewExpenseSettledEvent("exp-1", "hh-1", "Rent", 40000, "unique")

	if ev.Kind != KindExpenseSettled {
		t.Errorf("Kind = %v, want %v", ev.Kind, KindExpenseSettled)
	}
	if ev.UserID != "" {
		t.Errorf("settled event should carry no user, got %q", ev.UserID)
	}
	if ev.AmountCents != 40000 {
		t.Errorf("AmountCents = %v, want 40000", ev.AmountCents)
	}
}

func TestExpenseEvent_JSON(t *testing.T) {
	timestamp := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ev := &ExpenseEvent{
		Kind:        KindExpenseSettled,
		ExpenseID:   "exp-1",
		HouseholdID: "hh-1",
		Title:       "Rent",
		AmountCents: 40000,
		ExpenseType: "unique",
		Timestamp:   timestamp,
	}

	jsonBytes, err := ev.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := ExpenseEventFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("ExpenseEventFromJSON() error = %v", err)
	}

	if parsed.Kind != ev.Kind || parsed.ExpenseID != ev.ExpenseID || parsed.AmountCents != ev.AmountCents {
		t.Errorf("round trip changed event: %+v", parsed)
	}
	if !parsed.Timestamp.Equal(ev.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsed.Timestamp, ev.Timestamp)
	}
}

func TestExpenseEvent_InvalidJSON(t *testing.T) {
	invalidJSON := []byte(`{"kind": 42}`)

	if _, err := ExpenseEventFromJSON(invalidJSON); err == nil {
		t.Error("ExpenseEventFromJSON() should fail with invalid JSON")
	}
}
