package tracker

import (
	"errors"
	"testing"
)

func TestHabitEngine_AddValidation(t *testing.T) {
	e := NewHabitEngine()

	if _, err := e.Add(AddParams{Name: "   "}); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for blank name, got %v", err)
	}

	h, err := e.Add(AddParams{Name: "  Meditate  "})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if h.Name != "Meditate" {
		t.Errorf("Expected trimmed name, got %q", h.Name)
	}
	if h.Streak != 0 || h.CompletedToday || h.CurrentValue != 0 {
		t.Errorf("Expected zeroed progress state, got %+v", h)
	}
	if h.Type != HabitPositive {
		t.Errorf("Expected default positive type, got %q", h.Type)
	}
	for i, v := range h.History {
		if v {
			t.Errorf("Expected empty history, slot %d is true", i)
		}
	}
}

func TestHabitEngine_ListNewestFirst(t *testing.T) {
	e := NewHabitEngine()
	e.Add(AddParams{Name: "first"})
	e.Add(AddParams{Name: "second"})

	habits := e.List()
	if len(habits) != 2 {
		t.Fatalf("Expected 2 habits, got %d", len(habits))
	}
	if habits[0].Name != "second" || habits[1].Name != "first" {
		t.Errorf("Expected newest first, got %q then %q", habits[0].Name, habits[1].Name)
	}
}

func TestHabitEngine_BooleanToggleInvolution(t *testing.T) {
	e := NewHabitEngine()
	h, _ := e.Add(AddParams{Name: "Stretch"})

	on, err := e.Toggle(h.ID)
	if err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if !on.CompletedToday || on.Streak != 1 {
		t.Errorf("Expected completed with streak 1, got completed=%v streak=%d", on.CompletedToday, on.Streak)
	}
	if !on.History[0] {
		t.Error("Expected history slot 0 true after completion")
	}

	off, _ := e.Toggle(h.ID)
	if off.CompletedToday || off.Streak != 0 {
		t.Errorf("Expected toggle-off to restore state, got completed=%v streak=%d", off.CompletedToday, off.Streak)
	}
	if off.History[0] {
		t.Error("Expected history slot 0 false after undo")
	}
}

func TestHabitEngine_StreakNeverNegative(t *testing.T) {
	e := NewHabitEngine()
	h, _ := e.Add(AddParams{Name: "Run"})

	// on/off twice from streak 0 must never go below 0
	for i := 0; i < 2; i++ {
		e.Toggle(h.ID)
		got, _ := e.Toggle(h.ID)
		if got.Streak != 0 {
			t.Errorf("Iteration %d: expected streak 0, got %d", i, got.Streak)
		}
	}
}

func TestHabitEngine_NumericTargetToggles(t *testing.T) {
	e := NewHabitEngine()
	h, _ := e.Add(AddParams{Name: "Read 10 pages", TargetValue: 10, Unit: "pages"})

	var got *Habit
	for i := 1; i <= 10; i++ {
		var err error
		got, err = e.Toggle(h.ID)
		if err != nil {
			t.Fatalf("Toggle %d failed: %v", i, err)
		}
		if got.CurrentValue != i {
			t.Fatalf("Toggle %d: expected currentValue %d, got %d", i, i, got.CurrentValue)
		}
		if i < 10 && got.CompletedToday {
			t.Fatalf("Toggle %d: completed before reaching target", i)
		}
	}
	if !got.CompletedToday || got.CurrentValue != 10 || got.Streak != 1 {
		t.Errorf("After 10 toggles: expected completed=true currentValue=10 streak=1, got %+v", got)
	}

	// One more toggle undoes the day
	undone, _ := e.Toggle(h.ID)
	if undone.CompletedToday || undone.CurrentValue != 0 {
		t.Errorf("Expected undo to reset, got completed=%v currentValue=%d", undone.CompletedToday, undone.CurrentValue)
	}
	if undone.Streak != 0 {
		t.Errorf("Expected streak decrement on undo, got %d", undone.Streak)
	}
}

func TestHabitEngine_NumericStreakOnlyOnTransition(t *testing.T) {
	e := NewHabitEngine()
	h, _ := e.Add(AddParams{Name: "Pushups", TargetValue: 3})

	// Increments under the threshold never touch streak
	for i := 0; i < 2; i++ {
		got, _ := e.Toggle(h.ID)
		if got.Streak != 0 {
			t.Fatalf("Streak moved before threshold: %d", got.Streak)
		}
	}
	crossed, _ := e.Toggle(h.ID)
	if crossed.Streak != 1 {
		t.Errorf("Expected streak 1 on threshold crossing, got %d", crossed.Streak)
	}
}

func TestHabitEngine_NegativeAlwaysBoolean(t *testing.T) {
	e := NewHabitEngine()
	// A stray targetValue on a negative habit must not make it numeric
	h, _ := e.Add(AddParams{Name: "No sugar day", Type: HabitNegative, TargetValue: 5})

	got, _ := e.Toggle(h.ID)
	if !got.CompletedToday || got.Streak != 1 {
		t.Errorf("Expected boolean flip, got completed=%v streak=%d", got.CompletedToday, got.Streak)
	}
	if got.CurrentValue != 0 {
		t.Errorf("Expected currentValue untouched, got %d", got.CurrentValue)
	}
}

func TestHabitEngine_ToggleUnknownID(t *testing.T) {
	e := NewHabitEngine()
	if _, err := e.Toggle("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestHabitEngine_Rename(t *testing.T) {
	e := NewHabitEngine()
	h, _ := e.Add(AddParams{Name: "Old"})

	renamed, err := e.Rename(h.ID, "New")
	if err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if renamed.Name != "New" {
		t.Errorf("Expected renamed habit, got %q", renamed.Name)
	}

	if _, err := e.Rename("missing", "X"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown id, got %v", err)
	}
	if _, err := e.Rename(h.ID, " "); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for blank name, got %v", err)
	}
}

func TestHabitEngine_DeleteIdempotent(t *testing.T) {
	e := NewHabitEngine()
	h, _ := e.Add(AddParams{Name: "Gone"})

	if !e.Delete(h.ID) {
		t.Error("Expected first delete to report removal")
	}
	if e.Delete(h.ID) {
		t.Error("Expected second delete to be a no-op")
	}
	if len(e.List()) != 0 {
		t.Error("Expected empty collection")
	}
}

func TestHabitEngine_HistoryLengthInvariant(t *testing.T) {
	e := NewHabitEngine()
	h, _ := e.Add(AddParams{Name: "Water", TargetValue: 8})

	for i := 0; i < 20; i++ {
		got, _ := e.Toggle(h.ID)
		if len(got.History) != HistoryDays {
			t.Fatalf("History length changed to %d", len(got.History))
		}
	}
	e.rollDay()
	for _, got := range e.List() {
		if len(got.History) != HistoryDays {
			t.Fatalf("History length changed to %d after roll", len(got.History))
		}
	}
}
