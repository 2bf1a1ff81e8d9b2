package tracker

import (
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
)

// HabitEngine owns the in-memory habit collection. It is not safe for
// concurrent use on its own; the Client serializes all access.
type HabitEngine struct {
	habits []*Habit
}

// NewHabitEngine creates an empty engine.
func NewHabitEngine() *HabitEngine {
	return &HabitEngine{}
}

// AddParams holds the caller-supplied fields for a new habit.
type AddParams struct {
	Name        string
	Type        HabitType
	Icon        string
	Color       string
	TargetValue int
	Unit        string
}

// Add creates a habit with zeroed progress state. Newest habits list first.
func (e *HabitEngine) Add(params AddParams) (*Habit, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: habit name is empty", ErrValidation)
	}
	if params.Type == "" {
		params.Type = HabitPositive
	}

	h := &Habit{
		ID:          ulid.Make().String(),
		Name:        name,
		Type:        params.Type,
		Icon:        params.Icon,
		Color:       params.Color,
		TargetValue: params.TargetValue,
		Unit:        params.Unit,
		version:     1,
	}
	e.habits = append([]*Habit{h}, e.habits...)
	return cloneHabit(h), nil
}

// Rename changes a habit's display name.
func (e *HabitEngine) Rename(id, name string) (*Habit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: habit name is empty", ErrValidation)
	}
	h := e.find(id)
	if h == nil {
		return nil, fmt.Errorf("%w: habit %s", ErrNotFound, id)
	}
	h.Name = name
	h.version++
	return cloneHabit(h), nil
}

// Delete removes a habit. Deleting a missing id is a no-op, tolerating
// optimistic-UI races.
func (e *HabitEngine) Delete(id string) bool {
	for i, h := range e.habits {
		if h.ID == id {
			e.habits = append(e.habits[:i], e.habits[i+1:]...)
			return true
		}
	}
	return false
}

// Toggle applies one completion toggle and returns the updated habit.
//
// Boolean habits flip completedToday, adjusting streak by +1/-1 (clamped at
// zero). Numeric habits increment currentValue until the target is met; a
// toggle while complete undoes the day back to zero. Streak moves only on
// the completion transition, so repeated increments under or over the
// threshold leave it alone. Either way the result lands in history slot 0;
// shifting history is the daily reset's job, never the toggle's.
func (e *HabitEngine) Toggle(id string) (*Habit, error) {
	h := e.find(id)
	if h == nil {
		return nil, fmt.Errorf("%w: habit %s", ErrNotFound, id)
	}

	was := h.CompletedToday
	if h.Numeric() {
		if was {
			h.CurrentValue = 0
			h.CompletedToday = false
		} else {
			h.CurrentValue++
			h.CompletedToday = h.CurrentValue >= h.TargetValue
		}
	} else {
		h.CompletedToday = !h.CompletedToday
	}

	switch {
	case h.CompletedToday && !was:
		h.Streak++
	case !h.CompletedToday && was && h.Streak > 0:
		h.Streak--
	}

	h.History[0] = h.CompletedToday
	h.version++
	return cloneHabit(h), nil
}

// List returns a copy of the collection, most recently added first.
func (e *HabitEngine) List() []Habit {
	out := make([]Habit, len(e.habits))
	for i, h := range e.habits {
		out[i] = *h
	}
	return out
}

// Replace overwrites the collection wholesale. Used by reconcile and by
// loading persisted state.
func (e *HabitEngine) Replace(habits []Habit) {
	e.habits = make([]*Habit, len(habits))
	for i := range habits {
		h := habits[i]
		e.habits[i] = &h
	}
}

// rollDay applies the day-boundary transition to every habit: shift the
// history window right with a fresh leading slot, settle the streak for the
// day that closed, and zero today's progress. A day closing without
// completion breaks the streak outright.
func (e *HabitEngine) rollDay() {
	for _, h := range e.habits {
		var shifted History
		copy(shifted[1:], h.History[:HistoryDays-1])
		h.History = shifted

		if !h.CompletedToday {
			h.Streak = 0
		}
		h.CompletedToday = false
		h.CurrentValue = 0
		h.version++
	}
}

func (e *HabitEngine) find(id string) *Habit {
	for _, h := range e.habits {
		if h.ID == id {
			return h
		}
	}
	return nil
}

func cloneHabit(h *Habit) *Habit {
	c := *h
	return &c
}
