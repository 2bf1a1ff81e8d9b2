package store

import (
	"context"

	"github.com/hyperengineering/cadence/internal/types"
)

// Store defines the interface contract for all tracker persistence operations.
type Store interface {
	// InitUser upserts the user identified by the request's telegram id and
	// returns the profile plus the full authoritative snapshot. First contact
	// seeds the default habits.
	InitUser(ctx context.Context, req types.InitRequest) (*types.InitResponse, error)
	SetOnboarding(ctx context.Context, telegramID string, completed bool) (bool, error)

	CreateHabit(ctx context.Context, req types.CreateHabitRequest) (*types.Habit, error)
	UpdateHabit(ctx context.Context, id string, req types.UpdateHabitRequest) (*types.Habit, error)
	// DeleteHabit is idempotent; deleting an unknown id is not an error.
	DeleteHabit(ctx context.Context, id string) error

	CreateTask(ctx context.Context, req types.CreateTaskRequest) (*types.Task, error)
	UpdateTask(ctx context.Context, id string, req types.UpdateTaskRequest) (*types.Task, error)
	DeleteTask(ctx context.Context, id string) error

	// ReplacePlan swaps the user's multi-day plan wholesale.
	ReplacePlan(ctx context.Context, telegramID string, plan []types.DailyPlan) error

	SaveMessage(ctx context.Context, req types.SaveMessageRequest) (*types.ChatMessage, error)
	// ChatHistory returns the most-recent limit messages in ascending order.
	ChatHistory(ctx context.Context, telegramID string, limit int) ([]types.ChatMessage, error)
	// PruneChatHistory deletes messages beyond the newest keep per user and
	// returns the number of rows removed.
	PruneChatHistory(ctx context.Context, keep int) (int64, error)

	CountUsers(ctx context.Context) (int64, error)
	AdminStats(ctx context.Context) (*types.AdminStats, error)

	Close() error
}
