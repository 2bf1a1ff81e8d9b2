package tracker

import (
	"errors"
	"testing"
)

func samplePlan() []DailyPlan {
	return []DailyPlan{
		{Day: 1, Focus: "Foundations", Tasks: []string{"Define goal", "Gather resources"}},
		{Day: 2, Focus: "Practice", Tasks: []string{"First step"}},
		{Day: 3, Focus: "Challenge", Tasks: []string{"1 hour focus"}},
	}
}

func TestPlanEngine_TaskCRUD(t *testing.T) {
	e := NewPlanEngine()

	if _, err := e.AddTask("  "); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for blank title, got %v", err)
	}

	task, err := e.AddTask("Write report")
	if err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	if task.Completed {
		t.Error("Expected new task incomplete")
	}

	toggled, err := e.ToggleTask(task.ID)
	if err != nil {
		t.Fatalf("ToggleTask failed: %v", err)
	}
	if !toggled.Completed {
		t.Error("Expected task completed after toggle")
	}

	if _, err := e.ToggleTask("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if !e.DeleteTask(task.ID) {
		t.Error("Expected delete to report removal")
	}
	if e.DeleteTask(task.ID) {
		t.Error("Expected second delete to be a no-op")
	}
}

func TestPlanEngine_SetPlanMaterializesDayOne(t *testing.T) {
	e := NewPlanEngine()
	e.SetPlan(samplePlan())

	tasks := e.Tasks()
	if len(tasks) != 2 {
		t.Fatalf("Expected 2 materialized tasks from day 1, got %d", len(tasks))
	}
	if tasks[0].Title != "Define goal" || tasks[1].Title != "Gather resources" {
		t.Errorf("Unexpected materialized titles: %q, %q", tasks[0].Title, tasks[1].Title)
	}
	for _, task := range tasks {
		if task.Completed {
			t.Error("Expected materialized tasks incomplete")
		}
	}
}

func TestPlanEngine_SetPlanDoesNotClobberTasks(t *testing.T) {
	e := NewPlanEngine()
	e.AddTask("In progress")

	e.SetPlan(samplePlan())

	tasks := e.Tasks()
	if len(tasks) != 1 || tasks[0].Title != "In progress" {
		t.Errorf("Expected existing task list untouched, got %d tasks", len(tasks))
	}
}

func TestPlanEngine_SetPlanEmptyClearsWithoutMaterializing(t *testing.T) {
	e := NewPlanEngine()
	e.SetPlan(samplePlan())
	e.SetPlan(nil)

	if len(e.Plan()) != 0 {
		t.Error("Expected empty plan")
	}
}

func TestPlanEngine_MaterializationIdempotent(t *testing.T) {
	e := NewPlanEngine()
	e.SetPlan(samplePlan())
	before := len(e.Tasks())

	// Re-materializing the same day must not duplicate
	e.materializeDay(0)
	if len(e.Tasks()) != before {
		t.Errorf("Expected %d tasks after re-materialization, got %d", before, len(e.Tasks()))
	}
}

func TestPlanEngine_UpdatePlanTask(t *testing.T) {
	e := NewPlanEngine()
	e.SetPlan(samplePlan())

	e.UpdatePlanTask(1, 0, "Second step")
	if got := e.Plan()[1].Tasks[0]; got != "Second step" {
		t.Errorf("Expected in-place edit, got %q", got)
	}

	// Out-of-range indices are a silent no-op
	e.UpdatePlanTask(9, 0, "x")
	e.UpdatePlanTask(0, 9, "x")
	e.UpdatePlanTask(-1, -1, "x")
	if got := e.Plan()[0].Tasks[0]; got != "Define goal" {
		t.Errorf("Out-of-range edit leaked: %q", got)
	}
}

func TestPlanEngine_ResetPlan(t *testing.T) {
	e := NewPlanEngine()
	e.SetPlan(samplePlan())
	e.AddTask("Extra")

	e.ResetPlan()

	if len(e.Plan()) != 0 || len(e.Tasks()) != 0 {
		t.Error("Expected plan and tasks cleared together")
	}

	// A fresh plan after reset materializes again
	e.SetPlan(samplePlan())
	if len(e.Tasks()) != 2 {
		t.Errorf("Expected re-materialization after reset, got %d tasks", len(e.Tasks()))
	}
}

func TestPlanEngine_PruneCompleted(t *testing.T) {
	e := NewPlanEngine()
	keep, _ := e.AddTask("keep")
	done, _ := e.AddTask("done")
	e.ToggleTask(done.ID)

	e.pruneCompleted()

	tasks := e.Tasks()
	if len(tasks) != 1 || tasks[0].ID != keep.ID {
		t.Errorf("Expected only incomplete task to survive, got %d tasks", len(tasks))
	}
}
