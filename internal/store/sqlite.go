package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperengineering/cadence/internal/types"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// defaultHabits are seeded for every first-time user so the dashboard is
// never empty on first open.
var defaultHabits = []types.CreateHabitRequest{
	{Name: "Read 10 pages", Type: types.HabitPositive, Icon: "📚", Color: "blue", TargetValue: 10, Unit: "pages"},
	{Name: "No sugar day", Type: types.HabitNegative, Icon: "🍬", Color: "red"},
}

// SQLiteStore is the SQLite-backed tracker database.
type SQLiteStore struct {
	db *sql.DB
}

// Compile-time interface check
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InitUser upserts a user by telegram id and returns the full snapshot.
// First contact creates the user and seeds the default habits.
func (s *SQLiteStore) InitUser(ctx context.Context, req types.InitRequest) (*types.InitResponse, error) {
	now := time.Now().UTC()
	name := strings.TrimSpace(strings.Join(nonEmpty(req.FirstName, req.LastName), " "))
	lang := types.NormalizeLanguage(req.LanguageCode)

	userID, profile, err := s.lookupUser(ctx, req.TelegramID)
	switch {
	case err == ErrUserNotFound:
		userID = ulid.Make().String()
		profile = &types.UserProfile{
			TelegramID: req.TelegramID,
			Name:       name,
			Language:   lang,
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO users (id, telegram_id, name, language, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, userID, req.TelegramID, name, string(lang), now.Format(time.RFC3339), now.Format(time.RFC3339))
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}

		for _, h := range defaultHabits {
			if _, err := s.insertHabit(ctx, userID, h, now); err != nil {
				return nil, fmt.Errorf("seed default habit: %w", err)
			}
		}
	case err != nil:
		return nil, err
	default:
		// Existing user: refresh display name and language from the host.
		if name != "" {
			profile.Name = name
		}
		profile.Language = lang
		_, err = s.db.ExecContext(ctx, `
			UPDATE users SET name = ?, language = ?, updated_at = ? WHERE id = ?
		`, profile.Name, string(lang), now.Format(time.RFC3339), userID)
		if err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
	}

	snapshot, err := s.loadSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &types.InitResponse{UserProfile: *profile, Snapshot: *snapshot}, nil
}

// SetOnboarding marks onboarding state for a user.
func (s *SQLiteStore) SetOnboarding(ctx context.Context, telegramID string, completed bool) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET onboarding_completed = ?, updated_at = ? WHERE telegram_id = ?
	`, boolToInt(completed), time.Now().UTC().Format(time.RFC3339), telegramID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, ErrUserNotFound
	}
	return completed, nil
}

// CreateHabit inserts a habit for the user identified by telegram id.
func (s *SQLiteStore) CreateHabit(ctx context.Context, req types.CreateHabitRequest) (*types.Habit, error) {
	userID, _, err := s.lookupUser(ctx, req.TelegramID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	id, err := s.insertHabit(ctx, userID, req, now)
	if err != nil {
		return nil, err
	}
	return s.getHabit(ctx, id)
}

func (s *SQLiteStore) insertHabit(ctx context.Context, userID string, req types.CreateHabitRequest, now time.Time) (string, error) {
	habitType := req.Type
	if habitType == "" {
		habitType = types.HabitPositive
	}
	history, err := json.Marshal(types.History{})
	if err != nil {
		return "", err
	}

	id := ulid.Make().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO habits (id, user_id, name, type, icon, color, streak, completed_today,
			target_value, current_value, unit, history, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?, 0, ?, ?, ?, ?)
	`, id, userID, req.Name, string(habitType), req.Icon, req.Color,
		req.TargetValue, req.Unit, string(history),
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	return id, err
}

// UpdateHabit applies a partial update and returns the updated habit.
func (s *SQLiteStore) UpdateHabit(ctx context.Context, id string, req types.UpdateHabitRequest) (*types.Habit, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().Format(time.RFC3339)}

	if req.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *req.Name)
	}
	if req.Streak != nil {
		sets = append(sets, "streak = ?")
		args = append(args, *req.Streak)
	}
	if req.CompletedToday != nil {
		sets = append(sets, "completed_today = ?")
		args = append(args, boolToInt(*req.CompletedToday))
	}
	if req.CurrentValue != nil {
		sets = append(sets, "current_value = ?")
		args = append(args, *req.CurrentValue)
	}
	if req.History != nil {
		data, err := json.Marshal(*req.History)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "history = ?")
		args = append(args, string(data))
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		"UPDATE habits SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	return s.getHabit(ctx, id)
}

// DeleteHabit removes a habit. Unknown ids are a no-op so optimistic clients
// can retry deletes safely.
func (s *SQLiteStore) DeleteHabit(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM habits WHERE id = ?", id)
	return err
}

// CreateTask inserts a task for the user identified by telegram id.
func (s *SQLiteStore) CreateTask(ctx context.Context, req types.CreateTaskRequest) (*types.Task, error) {
	userID, _, err := s.lookupUser(ctx, req.TelegramID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	task := types.Task{
		ID:        ulid.Make().String(),
		Title:     req.Title,
		CreatedAt: now,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, user_id, title, completed, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)
	`, task.ID, userID, task.Title, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}

	return &task, nil
}

// UpdateTask applies a partial update and returns the updated task.
func (s *SQLiteStore) UpdateTask(ctx context.Context, id string, req types.UpdateTaskRequest) (*types.Task, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().Format(time.RFC3339)}

	if req.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *req.Title)
	}
	if req.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, boolToInt(*req.Completed))
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	var task types.Task
	var completed int
	var createdAt string
	err = s.db.QueryRowContext(ctx, `
		SELECT id, title, completed, created_at FROM tasks WHERE id = ?
	`, id).Scan(&task.ID, &task.Title, &completed, &createdAt)
	if err != nil {
		return nil, err
	}
	task.Completed = completed != 0
	task.CreatedAt = parseTime(createdAt)
	return &task, nil
}

// DeleteTask removes a task. Unknown ids are a no-op.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	return err
}

// ReplacePlan swaps the user's multi-day plan wholesale inside a transaction.
func (s *SQLiteStore) ReplacePlan(ctx context.Context, telegramID string, plan []types.DailyPlan) error {
	userID, _, err := s.lookupUser(ctx, telegramID)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM daily_plans WHERE user_id = ?", userID); err != nil {
		return err
	}

	for _, day := range plan {
		tasks, err := json.Marshal(day.Tasks)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO daily_plans (user_id, day, focus, tasks) VALUES (?, ?, ?, ?)
		`, userID, day.Day, day.Focus, string(tasks))
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SaveMessage appends a chat message to the user's history.
func (s *SQLiteStore) SaveMessage(ctx context.Context, req types.SaveMessageRequest) (*types.ChatMessage, error) {
	userID, _, err := s.lookupUser(ctx, req.TelegramID)
	if err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	if req.Timestamp > 0 {
		ts = time.UnixMilli(req.Timestamp).UTC()
	}

	msg := types.ChatMessage{
		ID:        ulid.Make().String(),
		Role:      req.Role,
		Text:      req.Text,
		Timestamp: ts,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, user_id, role, text, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, userID, string(msg.Role), msg.Text, ts.Format(time.RFC3339Nano))
	if err != nil {
		return nil, err
	}

	return &msg, nil
}

// ChatHistory returns the most-recent limit messages in ascending order.
func (s *SQLiteStore) ChatHistory(ctx context.Context, telegramID string, limit int) ([]types.ChatMessage, error) {
	userID, _, err := s.lookupUser(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, text, timestamp FROM chat_messages
		WHERE user_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []types.ChatMessage
	for rows.Next() {
		var msg types.ChatMessage
		var role, ts string
		if err := rows.Scan(&msg.ID, &role, &msg.Text, &ts); err != nil {
			return nil, err
		}
		msg.Role = types.ChatRole(role)
		msg.Timestamp = parseTime(ts)
		history = append(history, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history, nil
}

// PruneChatHistory deletes messages beyond the newest keep per user.
func (s *SQLiteStore) PruneChatHistory(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM chat_messages WHERE id NOT IN (
			SELECT id FROM chat_messages AS newest
			WHERE newest.user_id = chat_messages.user_id
			ORDER BY newest.timestamp DESC, newest.id DESC
			LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountUsers returns the total registered user count.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

// AdminStats aggregates usage counters and the ten most recent users.
func (s *SQLiteStore) AdminStats(ctx context.Context) (*types.AdminStats, error) {
	stats := &types.AdminStats{}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&stats.TotalUsers); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM habits").Scan(&stats.TotalHabits); err != nil {
		return nil, err
	}

	todayStart := time.Now().UTC().Truncate(24 * time.Hour).Format(time.RFC3339)
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM habits WHERE updated_at >= ?", todayStart).Scan(&stats.ActiveHabitsToday); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tasks WHERE completed = 1").Scan(&stats.TotalTasksCompleted); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT u.telegram_id, u.name, u.created_at,
			(SELECT COUNT(*) FROM habits h WHERE h.user_id = u.id)
		FROM users u
		ORDER BY u.created_at DESC, u.id DESC
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var user types.AdminUser
		var createdAt string
		if err := rows.Scan(&user.TelegramID, &user.Name, &createdAt, &user.HabitsCount); err != nil {
			return nil, err
		}
		user.CreatedAt = parseTime(createdAt)
		stats.Users = append(stats.Users, user)
	}
	return stats, rows.Err()
}

// lookupUser resolves a telegram id to the internal user id and profile.
func (s *SQLiteStore) lookupUser(ctx context.Context, telegramID string) (string, *types.UserProfile, error) {
	var userID string
	var profile types.UserProfile
	var lang string
	var onboarding, isPremium int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, telegram_id, name, goal, language, onboarding_completed, is_premium
		FROM users WHERE telegram_id = ?
	`, telegramID).Scan(&userID, &profile.TelegramID, &profile.Name, &profile.Goal,
		&lang, &onboarding, &isPremium)
	if err == sql.ErrNoRows {
		return "", nil, ErrUserNotFound
	}
	if err != nil {
		return "", nil, err
	}
	profile.Language = types.Language(lang)
	profile.OnboardingCompleted = onboarding != 0
	profile.IsPremium = isPremium != 0
	return userID, &profile, nil
}

// loadSnapshot collects the user's habits (newest first), incomplete tasks
// and plan (day ascending).
func (s *SQLiteStore) loadSnapshot(ctx context.Context, userID string) (*types.Snapshot, error) {
	snapshot := &types.Snapshot{}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, icon, color, streak, completed_today,
			target_value, current_value, unit, history, created_at, updated_at
		FROM habits WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		habit, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		snapshot.Habits = append(snapshot.Habits, *habit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	taskRows, err := s.db.QueryContext(ctx, `
		SELECT id, title, completed, created_at FROM tasks
		WHERE user_id = ? AND completed = 0
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer taskRows.Close()

	for taskRows.Next() {
		var task types.Task
		var completed int
		var createdAt string
		if err := taskRows.Scan(&task.ID, &task.Title, &completed, &createdAt); err != nil {
			return nil, err
		}
		task.Completed = completed != 0
		task.CreatedAt = parseTime(createdAt)
		snapshot.Tasks = append(snapshot.Tasks, task)
	}
	if err := taskRows.Err(); err != nil {
		return nil, err
	}

	planRows, err := s.db.QueryContext(ctx, `
		SELECT day, focus, tasks FROM daily_plans WHERE user_id = ? ORDER BY day ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer planRows.Close()

	for planRows.Next() {
		var day types.DailyPlan
		var tasks string
		if err := planRows.Scan(&day.Day, &day.Focus, &tasks); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tasks), &day.Tasks); err != nil {
			return nil, fmt.Errorf("decode plan tasks for day %d: %w", day.Day, err)
		}
		snapshot.Plan = append(snapshot.Plan, day)
	}
	return snapshot, planRows.Err()
}

func (s *SQLiteStore) getHabit(ctx context.Context, id string) (*types.Habit, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, type, icon, color, streak, completed_today,
			target_value, current_value, unit, history, created_at, updated_at
		FROM habits WHERE id = ?
	`, id)
	habit, err := scanHabit(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return habit, err
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanHabit(row rowScanner) (*types.Habit, error) {
	var habit types.Habit
	var habitType, history string
	var completed int
	var createdAt, updatedAt string
	err := row.Scan(&habit.ID, &habit.Name, &habitType, &habit.Icon, &habit.Color,
		&habit.Streak, &completed, &habit.TargetValue, &habit.CurrentValue,
		&habit.Unit, &history, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	habit.Type = types.HabitType(habitType)
	habit.CompletedToday = completed != 0
	habit.CreatedAt = parseTime(createdAt)
	habit.UpdatedAt = parseTime(updatedAt)
	if err := json.Unmarshal([]byte(history), &habit.History); err != nil {
		return nil, fmt.Errorf("decode habit history: %w", err)
	}
	return &habit, nil
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
