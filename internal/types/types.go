package types

import (
	"encoding/json"
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
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Numeric reports whether the habit tracks progress toward a target.
// Negative habits are always boolean regardless of any stray target value.
func (h *Habit) Numeric() bool {
	return h.TargetValue > 0 && h.Type != HabitNegative
}

// Task is an ephemeral daily to-do, distinct from a habit.
type Task struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
}

// DailyPlan is one day of a generated multi-day plan. Tasks are plain
// description strings until materialized into Task entries.
type DailyPlan struct {
	Day   int      `json:"day"`
	Focus string   `json:"focus"`
	Tasks []string `json:"tasks"`
}

// MarshalJSON ensures a nil task list marshals as [] not null.
func (d DailyPlan) MarshalJSON() ([]byte, error) {
	if d.Tasks == nil {
		d.Tasks = []string{}
	}
	type Alias DailyPlan
	return json.Marshal(Alias(d))
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

// Language is a supported interface language.
type Language string

const (
	LangUzbek   Language = "uz"
	LangRussian Language = "ru"
	LangEnglish Language = "en"
)

// NormalizeLanguage maps an arbitrary language code to a supported Language.
func NormalizeLanguage(code string) Language {
	switch {
	case len(code) >= 2 && code[:2] == "ru":
		return LangRussian
	case len(code) >= 2 && code[:2] == "en":
		return LangEnglish
	default:
		return LangUzbek
	}
}

// PlanIntensity controls how demanding a generated plan is.
type PlanIntensity string

const (
	IntensityEasy   PlanIntensity = "easy"
	IntensityMedium PlanIntensity = "medium"
	IntensityHard   PlanIntensity = "hard"
)

// UserProfile is the durable per-user profile returned by /init.
type UserProfile struct {
	TelegramID          string   `json:"telegramId"`
	Name                string   `json:"name"`
	Goal                string   `json:"goal"`
	Language            Language `json:"language"`
	OnboardingCompleted bool     `json:"onboardingCompleted"`
	IsPremium           bool     `json:"isPremium"`
}

// Snapshot is the authoritative server state for one user. Reconciliation
// overwrites local collections with it wholesale.
type Snapshot struct {
	Habits []Habit     `json:"habits"`
	Tasks  []Task      `json:"tasks"`
	Plan   []DailyPlan `json:"dailyPlans"`
}

// MarshalJSON ensures nil collections in Snapshot marshal as [] not null.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	if s.Habits == nil {
		s.Habits = []Habit{}
	}
	if s.Tasks == nil {
		s.Tasks = []Task{}
	}
	if s.Plan == nil {
		s.Plan = []DailyPlan{}
	}
	type Alias Snapshot
	return json.Marshal(Alias(s))
}

// InitRequest upserts a user identity and requests the full snapshot.
type InitRequest struct {
	TelegramID   string `json:"telegramId"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Username     string `json:"username"`
	LanguageCode string `json:"languageCode"`
}

// InitResponse is the profile plus the full authoritative snapshot.
type InitResponse struct {
	UserProfile
	Snapshot
}

// MarshalJSON applies the Snapshot nil-collection guards to the embedded
// snapshot while keeping profile fields flat.
func (r InitResponse) MarshalJSON() ([]byte, error) {
	profile, err := json.Marshal(r.UserProfile)
	if err != nil {
		return nil, err
	}
	snapshot, err := json.Marshal(r.Snapshot)
	if err != nil {
		return nil, err
	}
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(profile, &merged); err != nil {
		return nil, err
	}
	snapFields := map[string]json.RawMessage{}
	if err := json.Unmarshal(snapshot, &snapFields); err != nil {
		return nil, err
	}
	for k, v := range snapFields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// CreateHabitRequest is the payload for POST /habits.
type CreateHabitRequest struct {
	TelegramID  string    `json:"telegramId"`
	Name        string    `json:"name"`
	Type        HabitType `json:"type"`
	Icon        string    `json:"icon,omitempty"`
	Color       string    `json:"color,omitempty"`
	TargetValue int       `json:"targetValue,omitempty"`
	Unit        string    `json:"unit,omitempty"`
}

// UpdateHabitRequest carries partial habit updates; nil fields are untouched.
type UpdateHabitRequest struct {
	Name           *string  `json:"name,omitempty"`
	Streak         *int     `json:"streak,omitempty"`
	CompletedToday *bool    `json:"completedToday,omitempty"`
	CurrentValue   *int     `json:"currentValue,omitempty"`
	History        *History `json:"history,omitempty"`
}

// CreateTaskRequest is the payload for POST /tasks.
type CreateTaskRequest struct {
	TelegramID string `json:"telegramId"`
	Title      string `json:"title"`
}

// UpdateTaskRequest carries partial task updates; nil fields are untouched.
type UpdateTaskRequest struct {
	Title     *string `json:"title,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// SetPlanRequest replaces a user's multi-day plan wholesale.
type SetPlanRequest struct {
	TelegramID string      `json:"telegramId"`
	Plan       []DailyPlan `json:"dailyPlans"`
}

// SaveMessageRequest appends one message to a user's chat history.
type SaveMessageRequest struct {
	TelegramID string   `json:"telegramId"`
	Role       ChatRole `json:"role"`
	Text       string   `json:"text"`
	Timestamp  int64    `json:"timestamp,omitempty"` // unix millis; zero means now
}

// OnboardingRequest marks onboarding complete for a user.
type OnboardingRequest struct {
	TelegramID          string `json:"telegramId"`
	OnboardingCompleted bool   `json:"onboardingCompleted"`
}

// OnboardingResponse acknowledges an onboarding update.
type OnboardingResponse struct {
	Success             bool `json:"success"`
	OnboardingCompleted bool `json:"onboardingCompleted"`
}

// SuccessResponse acknowledges a delete.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// HealthResponse reports service health.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	UserCount int64  `json:"user_count"`
}

// AdminUser is a row in the admin stats recent-users list.
type AdminUser struct {
	TelegramID  string    `json:"telegramId"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"createdAt"`
	HabitsCount int64     `json:"habitsCount"`
}

// AdminStats aggregates usage counters for the admin endpoint.
type AdminStats struct {
	TotalUsers          int64       `json:"totalUsers"`
	TotalHabits         int64       `json:"totalHabits"`
	ActiveHabitsToday   int64       `json:"activeHabitsToday"`
	TotalTasksCompleted int64       `json:"totalTasksCompleted"`
	Users               []AdminUser `json:"users"`
}

// MarshalJSON ensures a nil user list in AdminStats marshals as [] not null.
func (a AdminStats) MarshalJSON() ([]byte, error) {
	if a.Users == nil {
		a.Users = []AdminUser{}
	}
	type Alias AdminStats
	return json.Marshal(Alias(a))
}

// GeneratePlanRequest asks the coach for a multi-day plan.
type GeneratePlanRequest struct {
	Goal      string        `json:"goal"`
	Language  Language      `json:"language"`
	Days      int           `json:"days"`
	Intensity PlanIntensity `json:"intensity"`
}

// GeneratePlanResponse carries the generated (or fallback) plan.
type GeneratePlanResponse struct {
	Plan []DailyPlan `json:"plan"`
}

// CoachChatRequest asks the coach for a reply given prior history.
type CoachChatRequest struct {
	History  []ChatMessage `json:"history"`
	Message  string        `json:"message"`
	Language Language      `json:"language"`
}

// CoachChatResponse carries the coach's reply text.
type CoachChatResponse struct {
	Reply string `json:"reply"`
}
