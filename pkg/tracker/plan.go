package tracker

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"
)

// PlanEngine owns the ephemeral daily task list and the generated multi-day
// plan. Like HabitEngine it relies on the Client for serialization.
type PlanEngine struct {
	tasks []*Task
	plan  []DailyPlan

	// materialized records which plan entries have already been copied into
	// the task list, keyed by "day:index", so materialization never
	// duplicates a task.
	materialized map[string]bool
}

// NewPlanEngine creates an empty engine.
func NewPlanEngine() *PlanEngine {
	return &PlanEngine{materialized: make(map[string]bool)}
}

// AddTask appends a new incomplete task.
func (e *PlanEngine) AddTask(title string) (*Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: task title is empty", ErrValidation)
	}
	t := &Task{ID: ulid.Make().String(), Title: title}
	e.tasks = append(e.tasks, t)
	c := *t
	return &c, nil
}

// DeleteTask removes a task. Missing ids are a no-op.
func (e *PlanEngine) DeleteTask(id string) bool {
	for i, t := range e.tasks {
		if t.ID == id {
			e.tasks = append(e.tasks[:i], e.tasks[i+1:]...)
			return true
		}
	}
	return false
}

// ToggleTask flips a task's completion.
func (e *PlanEngine) ToggleTask(id string) (*Task, error) {
	for _, t := range e.tasks {
		if t.ID == id {
			t.Completed = !t.Completed
			c := *t
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: task %s", ErrNotFound, id)
}

// SetPlan replaces the active plan wholesale. When the task list is empty
// and the plan is not, day 1's entries are materialized into tasks to give
// the user an immediate starting point. An in-progress task list is never
// clobbered.
func (e *PlanEngine) SetPlan(days []DailyPlan) {
	e.plan = make([]DailyPlan, len(days))
	copy(e.plan, days)
	e.materialized = make(map[string]bool)

	if len(e.tasks) > 0 || len(e.plan) == 0 {
		return
	}
	e.materializeDay(0)
}

// materializeDay copies one plan day's strings into the task list, skipping
// entries already materialized.
func (e *PlanEngine) materializeDay(dayIndex int) {
	if dayIndex < 0 || dayIndex >= len(e.plan) {
		return
	}
	day := e.plan[dayIndex]
	for i, title := range day.Tasks {
		key := strconv.Itoa(day.Day) + ":" + strconv.Itoa(i)
		if e.materialized[key] {
			continue
		}
		e.materialized[key] = true
		e.tasks = append(e.tasks, &Task{ID: ulid.Make().String(), Title: title})
	}
}

// UpdatePlanTask replaces one task string inside the plan. Out-of-range
// indices are a silent no-op, treated as a benign race with a concurrent
// reset or regeneration.
func (e *PlanEngine) UpdatePlanTask(dayIndex, taskIndex int, text string) {
	if dayIndex < 0 || dayIndex >= len(e.plan) {
		return
	}
	if taskIndex < 0 || taskIndex >= len(e.plan[dayIndex].Tasks) {
		return
	}
	e.plan[dayIndex].Tasks[taskIndex] = text
}

// ResetPlan clears the plan and the task list together.
func (e *PlanEngine) ResetPlan() {
	e.plan = nil
	e.tasks = nil
	e.materialized = make(map[string]bool)
}

// Tasks returns a copy of the task list in creation order.
func (e *PlanEngine) Tasks() []Task {
	out := make([]Task, len(e.tasks))
	for i, t := range e.tasks {
		out[i] = *t
	}
	return out
}

// Plan returns a copy of the active plan.
func (e *PlanEngine) Plan() []DailyPlan {
	out := make([]DailyPlan, len(e.plan))
	copy(out, e.plan)
	return out
}

// ReplaceTasks overwrites the task list wholesale.
func (e *PlanEngine) ReplaceTasks(tasks []Task) {
	e.tasks = make([]*Task, len(tasks))
	for i := range tasks {
		t := tasks[i]
		e.tasks[i] = &t
	}
}

// ReplacePlan overwrites the plan wholesale without materializing.
func (e *PlanEngine) ReplacePlan(plan []DailyPlan) {
	e.plan = make([]DailyPlan, len(plan))
	copy(e.plan, plan)
}

// materializedKeys returns a copy of the day:index keys already copied into
// the task list, for persistence.
func (e *PlanEngine) materializedKeys() map[string]bool {
	out := make(map[string]bool, len(e.materialized))
	for k, v := range e.materialized {
		out[k] = v
	}
	return out
}

// restoreMaterialized reinstates persisted materialization keys.
func (e *PlanEngine) restoreMaterialized(keys map[string]bool) {
	e.materialized = make(map[string]bool, len(keys))
	for k, v := range keys {
		e.materialized[k] = v
	}
}

// pruneCompleted drops every completed task at the day boundary; incomplete
// tasks carry over.
func (e *PlanEngine) pruneCompleted() {
	kept := e.tasks[:0]
	for _, t := range e.tasks {
		if !t.Completed {
			kept = append(kept, t)
		}
	}
	e.tasks = kept
}
