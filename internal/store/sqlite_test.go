package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/hyperengineering/cadence/internal/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func initTestUser(t *testing.T, s *SQLiteStore, telegramID string) *types.InitResponse {
	t.Helper()
	resp, err := s.InitUser(context.Background(), types.InitRequest{
		TelegramID:   telegramID,
		FirstName:    "Test",
		LanguageCode: "en",
	})
	if err != nil {
		t.Fatalf("InitUser failed: %v", err)
	}
	return resp
}

func TestInitUser_SeedsDefaultHabits(t *testing.T) {
	s := newTestStore(t)

	resp := initTestUser(t, s, "100")

	if resp.Name != "Test" || resp.Language != types.LangEnglish {
		t.Errorf("Unexpected profile: %+v", resp.UserProfile)
	}
	if len(resp.Habits) != 2 {
		t.Fatalf("Expected 2 seeded habits, got %d", len(resp.Habits))
	}

	byName := map[string]types.Habit{}
	for _, h := range resp.Habits {
		byName[h.Name] = h
	}
	reading, ok := byName["Read 10 pages"]
	if !ok {
		t.Fatal("Expected seeded reading habit")
	}
	if reading.Type != types.HabitPositive || reading.TargetValue != 10 || reading.Unit != "pages" {
		t.Errorf("Unexpected reading habit: %+v", reading)
	}
	sugar, ok := byName["No sugar day"]
	if !ok {
		t.Fatal("Expected seeded sugar habit")
	}
	if sugar.Type != types.HabitNegative || sugar.TargetValue != 0 {
		t.Errorf("Unexpected sugar habit: %+v", sugar)
	}
}

func TestInitUser_UpsertDoesNotReseed(t *testing.T) {
	s := newTestStore(t)

	initTestUser(t, s, "100")

	resp, err := s.InitUser(context.Background(), types.InitRequest{
		TelegramID:   "100",
		FirstName:    "Renamed",
		LanguageCode: "ru",
	})
	if err != nil {
		t.Fatalf("Second InitUser failed: %v", err)
	}
	if len(resp.Habits) != 2 {
		t.Errorf("Expected no reseeding, got %d habits", len(resp.Habits))
	}
	if resp.Name != "Renamed" || resp.Language != types.LangRussian {
		t.Errorf("Expected refreshed profile, got %+v", resp.UserProfile)
	}

	count, _ := s.CountUsers(context.Background())
	if count != 1 {
		t.Errorf("Expected 1 user, got %d", count)
	}
}

func TestCreateHabit_UnknownUser(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateHabit(context.Background(), types.CreateHabitRequest{
		TelegramID: "missing", Name: "Run",
	})
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestUpdateHabit_PartialUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	initTestUser(t, s, "100")

	habit, err := s.CreateHabit(ctx, types.CreateHabitRequest{
		TelegramID: "100", Name: "Run", Type: types.HabitPositive,
	})
	if err != nil {
		t.Fatalf("CreateHabit failed: %v", err)
	}

	streak := 5
	completed := true
	history := types.History{true}
	updated, err := s.UpdateHabit(ctx, habit.ID, types.UpdateHabitRequest{
		Streak:         &streak,
		CompletedToday: &completed,
		History:        &history,
	})
	if err != nil {
		t.Fatalf("UpdateHabit failed: %v", err)
	}
	if updated.Streak != 5 || !updated.CompletedToday || !updated.History[0] {
		t.Errorf("Partial update not applied: %+v", updated)
	}
	if updated.Name != "Run" {
		t.Errorf("Untouched field changed: %q", updated.Name)
	}
}

func TestUpdateHabit_NotFound(t *testing.T) {
	s := newTestStore(t)
	name := "x"
	_, err := s.UpdateHabit(context.Background(), "missing", types.UpdateHabitRequest{Name: &name})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDeleteHabit_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	resp := initTestUser(t, s, "100")

	id := resp.Habits[0].ID
	if err := s.DeleteHabit(ctx, id); err != nil {
		t.Fatalf("DeleteHabit failed: %v", err)
	}
	if err := s.DeleteHabit(ctx, id); err != nil {
		t.Errorf("Expected repeated delete to succeed, got %v", err)
	}
}

func TestTasks_SnapshotExcludesCompleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	initTestUser(t, s, "100")

	keep, err := s.CreateTask(ctx, types.CreateTaskRequest{TelegramID: "100", Title: "keep"})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	done, _ := s.CreateTask(ctx, types.CreateTaskRequest{TelegramID: "100", Title: "done"})

	completed := true
	if _, err := s.UpdateTask(ctx, done.ID, types.UpdateTaskRequest{Completed: &completed}); err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}

	resp := initTestUser(t, s, "100")
	if len(resp.Tasks) != 1 || resp.Tasks[0].ID != keep.ID {
		t.Errorf("Expected only incomplete task in snapshot, got %v", resp.Tasks)
	}
}

func TestUpdateTask_NotFound(t *testing.T) {
	s := newTestStore(t)
	completed := true
	_, err := s.UpdateTask(context.Background(), "missing", types.UpdateTaskRequest{Completed: &completed})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestReplacePlan_WholesaleSwap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	initTestUser(t, s, "100")

	first := []types.DailyPlan{
		{Day: 1, Focus: "Old", Tasks: []string{"a"}},
		{Day: 2, Focus: "Old 2", Tasks: []string{"b"}},
	}
	if err := s.ReplacePlan(ctx, "100", first); err != nil {
		t.Fatalf("ReplacePlan failed: %v", err)
	}

	second := []types.DailyPlan{{Day: 1, Focus: "New", Tasks: []string{"x", "y"}}}
	if err := s.ReplacePlan(ctx, "100", second); err != nil {
		t.Fatalf("Second ReplacePlan failed: %v", err)
	}

	resp := initTestUser(t, s, "100")
	if len(resp.Plan) != 1 || resp.Plan[0].Focus != "New" || len(resp.Plan[0].Tasks) != 2 {
		t.Errorf("Expected replaced plan, got %v", resp.Plan)
	}
}

func TestChatHistory_LimitAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	initTestUser(t, s, "100")

	base := int64(1_700_000_000_000)
	for i := 0; i < 5; i++ {
		_, err := s.SaveMessage(ctx, types.SaveMessageRequest{
			TelegramID: "100",
			Role:       types.RoleUser,
			Text:       fmt.Sprintf("msg %d", i),
			Timestamp:  base + int64(i*1000),
		})
		if err != nil {
			t.Fatalf("SaveMessage failed: %v", err)
		}
	}

	history, err := s.ChatHistory(ctx, "100", 3)
	if err != nil {
		t.Fatalf("ChatHistory failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(history))
	}
	// Most-recent 3, chronological order
	if history[0].Text != "msg 2" || history[2].Text != "msg 4" {
		t.Errorf("Unexpected order: %q ... %q", history[0].Text, history[2].Text)
	}
}

func TestPruneChatHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	initTestUser(t, s, "100")
	initTestUser(t, s, "200")

	base := int64(1_700_000_000_000)
	for _, id := range []string{"100", "200"} {
		for i := 0; i < 4; i++ {
			s.SaveMessage(ctx, types.SaveMessageRequest{
				TelegramID: id, Role: types.RoleUser,
				Text:      fmt.Sprintf("msg %d", i),
				Timestamp: base + int64(i*1000),
			})
		}
	}

	removed, err := s.PruneChatHistory(ctx, 2)
	if err != nil {
		t.Fatalf("PruneChatHistory failed: %v", err)
	}
	if removed != 4 {
		t.Errorf("Expected 4 rows pruned (2 per user), got %d", removed)
	}

	history, _ := s.ChatHistory(ctx, "100", 50)
	if len(history) != 2 || history[0].Text != "msg 2" {
		t.Errorf("Expected newest 2 kept, got %v", history)
	}
}

func TestSetOnboarding(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	initTestUser(t, s, "100")

	completed, err := s.SetOnboarding(ctx, "100", true)
	if err != nil || !completed {
		t.Fatalf("SetOnboarding failed: completed=%v err=%v", completed, err)
	}

	resp := initTestUser(t, s, "100")
	if !resp.OnboardingCompleted {
		t.Error("Expected onboarding flag persisted")
	}

	if _, err := s.SetOnboarding(ctx, "missing", true); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestAdminStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	initTestUser(t, s, "100")
	initTestUser(t, s, "200")

	task, _ := s.CreateTask(ctx, types.CreateTaskRequest{TelegramID: "100", Title: "t"})
	completed := true
	s.UpdateTask(ctx, task.ID, types.UpdateTaskRequest{Completed: &completed})

	stats, err := s.AdminStats(ctx)
	if err != nil {
		t.Fatalf("AdminStats failed: %v", err)
	}
	if stats.TotalUsers != 2 {
		t.Errorf("Expected 2 users, got %d", stats.TotalUsers)
	}
	if stats.TotalHabits != 4 {
		t.Errorf("Expected 4 seeded habits, got %d", stats.TotalHabits)
	}
	if stats.TotalTasksCompleted != 1 {
		t.Errorf("Expected 1 completed task, got %d", stats.TotalTasksCompleted)
	}
	if len(stats.Users) != 2 {
		t.Errorf("Expected 2 recent users, got %d", len(stats.Users))
	}
	for _, u := range stats.Users {
		if u.HabitsCount != 2 {
			t.Errorf("Expected 2 habits for user %s, got %d", u.TelegramID, u.HabitsCount)
		}
	}
}
