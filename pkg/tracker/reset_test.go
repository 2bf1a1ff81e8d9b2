package tracker

import (
	"testing"
	"time"
)

func TestCheckAndApplyReset_SameDayOnlyRefreshesTimestamp(t *testing.T) {
	habits := NewHabitEngine()
	plan := NewPlanEngine()
	h, _ := habits.Add(AddParams{Name: "Run"})
	habits.Toggle(h.ID)

	morning := time.Date(2026, 9, 1, 8, 0, 0, 0, time.Local)
	evening := time.Date(2026, 9, 1, 22, 0, 0, 0, time.Local)

	didReset, newLast := checkAndApplyReset(habits, plan, morning, evening)
	if didReset {
		t.Error("Expected no reset on the same calendar day")
	}
	if !newLast.Equal(evening) {
		t.Errorf("Expected timestamp refreshed to %v, got %v", evening, newLast)
	}

	got := habits.List()[0]
	if !got.CompletedToday || got.Streak != 1 {
		t.Errorf("Same-day check mutated state: %+v", got)
	}
}

func TestCheckAndApplyReset_DayBoundaryShiftsHistory(t *testing.T) {
	habits := NewHabitEngine()
	plan := NewPlanEngine()
	h, _ := habits.Add(AddParams{Name: "Read", TargetValue: 2})
	habits.Toggle(h.ID)
	habits.Toggle(h.ID) // completed

	day1 := time.Date(2026, 9, 1, 22, 0, 0, 0, time.Local)
	day2 := time.Date(2026, 9, 2, 7, 0, 0, 0, time.Local)

	didReset, _ := checkAndApplyReset(habits, plan, day1, day2)
	if !didReset {
		t.Fatal("Expected reset across the day boundary")
	}

	got := habits.List()[0]
	want := History{false, true, false, false, false, false, false}
	if got.History != want {
		t.Errorf("Expected history %v, got %v", want, got.History)
	}
	if got.CompletedToday || got.CurrentValue != 0 {
		t.Errorf("Expected fresh day state, got completed=%v currentValue=%d", got.CompletedToday, got.CurrentValue)
	}
	if got.Streak != 1 {
		t.Errorf("Expected streak preserved for a completed day, got %d", got.Streak)
	}
}

func TestCheckAndApplyReset_IncompleteDayBreaksStreak(t *testing.T) {
	habits := NewHabitEngine()
	plan := NewPlanEngine()
	h, _ := habits.Add(AddParams{Name: "Run"})

	// Build a streak, then leave today incomplete
	habits.Toggle(h.ID)
	day1 := time.Date(2026, 9, 1, 12, 0, 0, 0, time.Local)
	day2 := time.Date(2026, 9, 2, 12, 0, 0, 0, time.Local)
	checkAndApplyReset(habits, plan, day1, day2)

	day3 := time.Date(2026, 9, 3, 12, 0, 0, 0, time.Local)
	checkAndApplyReset(habits, plan, day2, day3)

	got := habits.List()[0]
	if got.Streak != 0 {
		t.Errorf("Expected streak broken by an incomplete day, got %d", got.Streak)
	}
}

func TestCheckAndApplyReset_Idempotent(t *testing.T) {
	habits := NewHabitEngine()
	plan := NewPlanEngine()
	h, _ := habits.Add(AddParams{Name: "Run"})
	habits.Toggle(h.ID)

	day1 := time.Date(2026, 9, 1, 12, 0, 0, 0, time.Local)
	day2 := time.Date(2026, 9, 2, 9, 0, 0, 0, time.Local)

	_, last := checkAndApplyReset(habits, plan, day1, day2)
	after := habits.List()[0]

	didReset, _ := checkAndApplyReset(habits, plan, last, day2)
	if didReset {
		t.Error("Expected second call on the same day to be a no-op")
	}
	if habits.List()[0] != after {
		t.Error("Second call mutated habit state")
	}
}

func TestCheckAndApplyReset_PrunesCompletedTasks(t *testing.T) {
	habits := NewHabitEngine()
	plan := NewPlanEngine()
	keep, _ := plan.AddTask("carry over")
	done, _ := plan.AddTask("finished")
	plan.ToggleTask(done.ID)

	day1 := time.Date(2026, 9, 1, 12, 0, 0, 0, time.Local)
	day2 := time.Date(2026, 9, 2, 12, 0, 0, 0, time.Local)
	checkAndApplyReset(habits, plan, day1, day2)

	tasks := plan.Tasks()
	if len(tasks) != 1 || tasks[0].ID != keep.ID {
		t.Errorf("Expected completed task pruned, got %d tasks", len(tasks))
	}
}

func TestCheckAndApplyReset_FirstActivation(t *testing.T) {
	habits := NewHabitEngine()
	plan := NewPlanEngine()
	habits.Add(AddParams{Name: "Run"})

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.Local)
	didReset, last := checkAndApplyReset(habits, plan, time.Time{}, now)
	if didReset {
		t.Error("Expected no reset on first activation")
	}
	if !last.Equal(now) {
		t.Errorf("Expected lastOpen set to now, got %v", last)
	}
}
