// Package tracker is the client-side habit state engine: optimistic local
// mutation over scoped persistent storage, with server-reconciliation sync
// against a Cadence server. The server always wins on reconcile; local edits
// apply immediately and are pushed best-effort in the background.
package tracker

import (
	"encoding/json"
	"net/http"
	"time"
)

// HistoryDays is the size of the rolling completion window tracked per habit.
// The window is shifted at day boundaries, never resized.
const HistoryDays = 7

// History is the rolling completion window. Index 0 is the most recent day
// (today or the day just closed), index 6 is six days prior.
type History [HistoryDays]bool

// HabitType classifies toggle semantics for a habit.
type HabitType string

const (
	// HabitPositive builds a behavior; completing means "did it today".
	HabitPositive HabitType = "positive"
	// HabitNegative avoids a behavior; completing means "did not relapse today".
	HabitNegative HabitType = "negative"
)

// Habit represents a tracked recurring behavior, boolean or target-based.
type Habit struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Type           HabitType `json:"type"`
	Icon           string    `json:"icon,omitempty"`
	Color          string    `json:"color,omitempty"`
	Streak         int       `json:"streak"`
	CompletedToday bool      `json:"completedToday"`
	TargetValue    int       `json:"targetValue,omitempty"`
	CurrentValue   int       `json:"currentValue"`
	Unit           string    `json:"unit,omitempty"`
	History        History   `json:"history"`

	// version counts local mutations. Outbound pushes are tagged with it so
	// a stale in-flight delivery never supersedes a newer local state.
	version int64
}

// Numeric reports whether the habit tracks progress toward a target.
// Negative habits are always boolean regardless of any stray target value.
func (h *Habit) Numeric() bool {
	return h.TargetValue > 0 && h.Type != HabitNegative
}

// Task is an ephemeral daily to-do, distinct from a habit. Completed tasks
// are pruned at the day boundary; incomplete tasks carry over.
type Task struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// DailyPlan is one day of a generated multi-day plan. Tasks are plain
// description strings until materialized into Task entries.
type DailyPlan struct {
	Day   int      `json:"day"`
	Focus string   `json:"focus"`
	Tasks []string `json:"tasks"`
}

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	RoleUser  ChatRole = "user"
	RoleModel ChatRole = "model"
)

// ChatMessage is one entry in the coach conversation history.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      ChatRole  `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// UserProfile is the durable per-user profile returned by the server.
type UserProfile struct {
	TelegramID          string `json:"telegramId"`
	Name                string `json:"name"`
	Goal                string `json:"goal"`
	Language            string `json:"language"`
	OnboardingCompleted bool   `json:"onboardingCompleted"`
	IsPremium           bool   `json:"isPremium"`
}

// Snapshot is the authoritative server state for one user. Reconciliation
// overwrites local collections with it wholesale.
type Snapshot struct {
	Habits []Habit     `json:"habits"`
	Tasks  []Task      `json:"tasks"`
	Plan   []DailyPlan `json:"dailyPlans"`
}

// initResponse is the wire shape of POST /api/init: profile fields and the
// snapshot collections at the same level.
type initResponse struct {
	UserProfile
	Snapshot
}

// UnmarshalJSON decodes both embedded halves from the flat wire object.
func (r *initResponse) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &r.UserProfile); err != nil {
		return err
	}
	return json.Unmarshal(data, &r.Snapshot)
}

// EventKind identifies an internal notification.
type EventKind string

const (
	// EventDataSynced fires after a server snapshot overwrote local state.
	EventDataSynced EventKind = "data_synced"
	// EventIdentityChanged fires when the active identity differs from the
	// one that wrote the persisted state, after the wipe.
	EventIdentityChanged EventKind = "identity_changed"
	// EventDayRolled fires after a calendar-day boundary reset.
	EventDayRolled EventKind = "day_rolled"
)

// Event is an internal notification delivered to subscribers. Engines never
// call each other directly; cross-cutting reactions hang off these.
type Event struct {
	Kind EventKind
}

// Config holds the tracker client configuration.
type Config struct {
	Resolver        Resolver      // ambient identity source; nil means anonymous
	KV              KV            // durable key-value backend (required)
	ServerURL       string        // Cadence server base URL; empty means offline
	APIKey          string        // bearer token for the server API
	HTTPClient      *http.Client  // optional; defaults to a 30s-timeout client
	FreshnessWindow time.Duration // max ambient auth age (default: 24 hours)
	QueueSize       int           // outbound push queue bound (default: 64)
	Now             func() time.Time
}
