package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// Syncer talks to the Cadence server API. An empty base URL puts the client
// in offline mode: every call is a no-op error that callers swallow.
type Syncer struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewSyncer creates a syncer for the given server.
func NewSyncer(baseURL, apiKey string, client *http.Client) *Syncer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Syncer{baseURL: baseURL, apiKey: apiKey, client: client}
}

// online reports whether a server is configured.
func (s *Syncer) online() bool { return s.baseURL != "" }

// Init upserts the identity server-side and returns the authoritative
// snapshot. First contact seeds the default habits; the host context fields
// keep the server profile's name and language current.
func (s *Syncer) Init(ctx context.Context, id *Identity) (*initResponse, error) {
	body := map[string]string{
		"telegramId":   id.ID,
		"firstName":    id.FirstName,
		"lastName":     id.LastName,
		"username":     id.Username,
		"languageCode": id.LanguageCode,
	}
	var out initResponse
	if err := s.send(ctx, http.MethodPost, "/api/init", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type createHabitRequest struct {
	TelegramID  string    `json:"telegramId"`
	Name        string    `json:"name"`
	Type        HabitType `json:"type"`
	Icon        string    `json:"icon,omitempty"`
	Color       string    `json:"color,omitempty"`
	TargetValue int       `json:"targetValue,omitempty"`
	Unit        string    `json:"unit,omitempty"`
}

type updateHabitRequest struct {
	Name           string  `json:"name"`
	Streak         int     `json:"streak"`
	CompletedToday bool    `json:"completedToday"`
	CurrentValue   int     `json:"currentValue"`
	History        History `json:"history"`
}

// CreateHabit pushes a new habit and returns the server's copy, whose id
// replaces the client's optimistic one.
func (s *Syncer) CreateHabit(ctx context.Context, telegramID string, h *Habit) (*Habit, error) {
	req := createHabitRequest{
		TelegramID:  telegramID,
		Name:        h.Name,
		Type:        h.Type,
		Icon:        h.Icon,
		Color:       h.Color,
		TargetValue: h.TargetValue,
		Unit:        h.Unit,
	}
	var out Habit
	if err := s.send(ctx, http.MethodPost, "/api/habits", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateHabit pushes the habit's full mutable state.
func (s *Syncer) UpdateHabit(ctx context.Context, h *Habit) error {
	req := updateHabitRequest{
		Name:           h.Name,
		Streak:         h.Streak,
		CompletedToday: h.CompletedToday,
		CurrentValue:   h.CurrentValue,
		History:        h.History,
	}
	return s.send(ctx, http.MethodPut, "/api/habits/"+h.ID, req, nil)
}

// DeleteHabit removes a habit server-side.
func (s *Syncer) DeleteHabit(ctx context.Context, id string) error {
	return s.send(ctx, http.MethodDelete, "/api/habits/"+id, nil, nil)
}

// CreateTask pushes a new task and returns the server's copy.
func (s *Syncer) CreateTask(ctx context.Context, telegramID string, t *Task) (*Task, error) {
	req := map[string]string{"telegramId": telegramID, "title": t.Title}
	var out Task
	if err := s.send(ctx, http.MethodPost, "/api/tasks", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTask pushes the task's full mutable state.
func (s *Syncer) UpdateTask(ctx context.Context, t *Task) error {
	req := map[string]any{"title": t.Title, "completed": t.Completed}
	return s.send(ctx, http.MethodPut, "/api/tasks/"+t.ID, req, nil)
}

// DeleteTask removes a task server-side.
func (s *Syncer) DeleteTask(ctx context.Context, id string) error {
	return s.send(ctx, http.MethodDelete, "/api/tasks/"+id, nil, nil)
}

// ReplacePlan pushes the whole plan.
func (s *Syncer) ReplacePlan(ctx context.Context, telegramID string, plan []DailyPlan) error {
	req := map[string]any{"telegramId": telegramID, "dailyPlans": plan}
	return s.send(ctx, http.MethodPost, "/api/plans", req, nil)
}

// SaveMessage appends one chat message server-side.
func (s *Syncer) SaveMessage(ctx context.Context, telegramID string, msg *ChatMessage) error {
	req := map[string]any{
		"telegramId": telegramID,
		"role":       msg.Role,
		"text":       msg.Text,
		"timestamp":  msg.Timestamp.UnixMilli(),
	}
	return s.send(ctx, http.MethodPost, "/api/chat", req, nil)
}

// SetOnboarding marks onboarding state server-side.
func (s *Syncer) SetOnboarding(ctx context.Context, telegramID string, completed bool) error {
	req := map[string]any{"telegramId": telegramID, "onboardingCompleted": completed}
	return s.send(ctx, http.MethodPost, "/api/user/onboarding", req, nil)
}

// send issues one authenticated JSON request. Non-2xx responses become
// errors carrying the status code.
func (s *Syncer) send(ctx context.Context, method, path string, body, out any) error {
	if !s.online() {
		return fmt.Errorf("server URL not configured")
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

type pushKind string

const (
	pushHabitCreate pushKind = "habit_create"
	pushHabitUpdate pushKind = "habit_update"
	pushHabitDelete pushKind = "habit_delete"
	pushTaskCreate  pushKind = "task_create"
	pushTaskUpdate  pushKind = "task_update"
	pushTaskDelete  pushKind = "task_delete"
	pushPlanReplace pushKind = "plan_replace"
	pushChatMessage pushKind = "chat_message"
	pushOnboarding  pushKind = "onboarding"
)

// pushItem is one outbound delivery. It carries the full entity state at
// enqueue time plus the mutation version it reflects; a queued item older
// than the entity's newest enqueued version is skipped, never delivered.
type pushItem struct {
	kind       pushKind
	entityID   string
	version    int64
	telegramID string

	habit      *Habit
	task       *Task
	plan       []DailyPlan
	msg        *ChatMessage
	onboarding bool
}

// entityKey distinguishes version streams per entity.
func (i pushItem) entityKey() string {
	switch i.kind {
	case pushHabitCreate, pushHabitUpdate, pushHabitDelete:
		return "habit:" + i.entityID
	case pushTaskCreate, pushTaskUpdate, pushTaskDelete:
		return "task:" + i.entityID
	default:
		return string(i.kind) + ":" + i.entityID
	}
}

// ack reports a completed create so the client can adopt the server's id.
type ack struct {
	item  pushItem
	habit *Habit
	task  *Task
}

// Pusher delivers outbound mutations in the background over a bounded
// queue. Overflow drops the oldest item with a warning: the full-state
// contract means a later push for the same entity supersedes it anyway.
type Pusher struct {
	syncer *Syncer
	queue  chan pushItem
	acks   func(ack)

	mu     sync.Mutex
	latest map[string]int64
}

// NewPusher creates a pusher with the given queue bound.
func NewPusher(syncer *Syncer, queueSize int, acks func(ack)) *Pusher {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Pusher{
		syncer: syncer,
		queue:  make(chan pushItem, queueSize),
		acks:   acks,
		latest: make(map[string]int64),
	}
}

// Reset clears the per-entity version bookkeeping. Replaced collections
// restart their mutation counts at zero, so marks recorded against the old
// counts must not shadow deliveries enqueued afterwards.
func (p *Pusher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latest = make(map[string]int64)
}

// Enqueue adds one delivery, dropping the oldest queued item on overflow.
func (p *Pusher) Enqueue(item pushItem) {
	p.mu.Lock()
	if item.version > p.latest[item.entityKey()] {
		p.latest[item.entityKey()] = item.version
	}
	p.mu.Unlock()

	for {
		select {
		case p.queue <- item:
			return
		default:
		}
		select {
		case dropped := <-p.queue:
			slog.Warn("push queue full, dropping oldest",
				"component", "tracker",
				"kind", string(dropped.kind),
				"entity", dropped.entityID,
			)
		default:
		}
	}
}

// Run delivers queued items until the context is cancelled. Each delivery
// retries with fibonacci backoff; exhausted retries are logged and dropped,
// the next reconcile restores consistency from the server.
func (p *Pusher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-p.queue:
			if p.isStale(item) {
				continue
			}
			p.deliver(ctx, item)
		}
	}
}

// isStale reports whether a newer version of the same entity has been
// enqueued since this item. Creates are never stale: the server must learn
// the entity exists before any follow-up state can land.
func (p *Pusher) isStale(item pushItem) bool {
	if item.version == 0 {
		return false
	}
	if item.kind == pushHabitCreate || item.kind == pushTaskCreate {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return item.version < p.latest[item.entityKey()]
}

func (p *Pusher) deliver(ctx context.Context, item pushItem) {
	backoff := retry.WithMaxRetries(4, retry.NewFibonacci(500*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		result, err := p.attempt(ctx, item)
		if err != nil {
			return retry.RetryableError(err)
		}
		if result != nil && p.acks != nil {
			p.acks(*result)
		}
		return nil
	})
	if err != nil {
		slog.Warn("push failed, keeping local state",
			"component", "tracker",
			"kind", string(item.kind),
			"entity", item.entityID,
			"error", err,
		)
	}
}

func (p *Pusher) attempt(ctx context.Context, item pushItem) (*ack, error) {
	switch item.kind {
	case pushHabitCreate:
		created, err := p.syncer.CreateHabit(ctx, item.telegramID, item.habit)
		if err != nil {
			return nil, err
		}
		return &ack{item: item, habit: created}, nil
	case pushHabitUpdate:
		return nil, p.syncer.UpdateHabit(ctx, item.habit)
	case pushHabitDelete:
		return nil, p.syncer.DeleteHabit(ctx, item.entityID)
	case pushTaskCreate:
		created, err := p.syncer.CreateTask(ctx, item.telegramID, item.task)
		if err != nil {
			return nil, err
		}
		return &ack{item: item, task: created}, nil
	case pushTaskUpdate:
		return nil, p.syncer.UpdateTask(ctx, item.task)
	case pushTaskDelete:
		return nil, p.syncer.DeleteTask(ctx, item.entityID)
	case pushPlanReplace:
		return nil, p.syncer.ReplacePlan(ctx, item.telegramID, item.plan)
	case pushChatMessage:
		return nil, p.syncer.SaveMessage(ctx, item.telegramID, item.msg)
	case pushOnboarding:
		return nil, p.syncer.SetOnboarding(ctx, item.telegramID, item.onboarding)
	}
	return nil, fmt.Errorf("unknown push kind %q", item.kind)
}
