package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Logical store names. Each holds one JSON blob per identity scope.
const (
	StoreHabits = "habit-storage"
	StoreUser   = "user-storage"
	StoreChat   = "chat-storage"
)

// lastIdentityKey is a bare unscoped key recording which scope wrote the
// persisted state, so the next Open can detect an identity change.
const lastIdentityKey = "last-identity"

// maxChatMessages caps the locally cached conversation, matching the
// server's read limit.
const maxChatMessages = 50

// habitBlob is the durable shape of the habit store.
type habitBlob struct {
	Habits       []Habit         `json:"habits"`
	Tasks        []Task          `json:"tasks"`
	Plan         []DailyPlan     `json:"dailyPlans"`
	Materialized map[string]bool `json:"materialized,omitempty"`
	LastOpen     time.Time       `json:"lastOpen"`
}

// userBlob is the durable shape of the user store. Transient UI flags never
// land here.
type userBlob struct {
	Profile UserProfile `json:"profile"`
}

// chatBlob is the durable shape of the chat store.
type chatBlob struct {
	Messages []ChatMessage `json:"messages"`
}

// Client is the habit tracker kernel: it owns the engines, the scoped
// persistence, and the sync machinery. All state flows through one mutex,
// so an engine mutation and a reconcile overwrite can never interleave.
type Client struct {
	cfg    Config
	kv     KV
	syncer *Syncer
	pusher *Pusher

	mu       sync.Mutex
	closed   bool
	opened   bool
	identity *Identity
	habits   *HabitEngine
	plan     *PlanEngine
	profile  UserProfile
	chat     []ChatMessage
	lastOpen time.Time
	subs     []func(Event)

	pushCancel context.CancelFunc
	pushDone   chan struct{}
}

// New creates a client. The KV backend is required; the client owns it and
// closes it on Close.
func New(cfg Config) (*Client, error) {
	if cfg.KV == nil {
		return nil, fmt.Errorf("%w: KV backend is required", ErrValidation)
	}
	if cfg.FreshnessWindow == 0 {
		cfg.FreshnessWindow = DefaultFreshnessWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Client{
		cfg:    cfg,
		kv:     cfg.KV,
		habits: NewHabitEngine(),
		plan:   NewPlanEngine(),
	}
	c.syncer = NewSyncer(cfg.ServerURL, cfg.APIKey, cfg.HTTPClient)
	c.pusher = NewPusher(c.syncer, cfg.QueueSize, c.onAck)
	return c, nil
}

// Subscribe registers a callback for internal events. Callbacks run after
// the triggering operation releases the state lock; re-entrant client calls
// are safe.
func (c *Client) Subscribe(fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

// Open activates the client: resolves identity, wipes on identity change,
// loads persisted state, reconciles against the server, and applies the
// daily reset. Called once per activation before any user interaction.
func (c *Client) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	now := c.cfg.Now()

	var id *Identity
	if c.cfg.Resolver != nil {
		id = c.cfg.Resolver()
	}
	if stale(id, c.cfg.FreshnessWindow, now) {
		c.mu.Unlock()
		return fmt.Errorf("%w: auth context older than %s", ErrStaleIdentity, c.cfg.FreshnessWindow)
	}

	var events []Event

	prevScope, _, err := c.kv.Get(lastIdentityKey)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("read last identity: %w", err)
	}
	scope := scopeID(id)
	if prevScope != "" && prevScope != scope {
		if err := WipeAll(c.kv, StoreHabits, StoreUser, StoreChat); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("wipe on identity change: %w", err)
		}
		c.habits = NewHabitEngine()
		c.plan = NewPlanEngine()
		c.profile = UserProfile{}
		c.chat = nil
		c.lastOpen = time.Time{}
		events = append(events, Event{Kind: EventIdentityChanged})
	}
	if err := c.kv.Set(lastIdentityKey, scope); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("record identity: %w", err)
	}
	c.identity = id

	if err := c.loadLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	// Persisted habits carry no mutation counts; on a reopen the restored
	// collection restarts from zero, so the pusher's marks restart with it.
	c.pusher.Reset()

	// Server reconcile: offline or failing servers degrade to local state.
	if id != nil && c.syncer.online() {
		resp, err := c.syncer.Init(ctx, id)
		if err != nil {
			slog.Warn("init sync failed, continuing with local state",
				"component", "tracker", "error", err)
		} else {
			c.profile = resp.UserProfile
			c.reconcileLocked(resp.Snapshot)
			events = append(events, Event{Kind: EventDataSynced})
		}
	}

	didReset, newLastOpen := checkAndApplyReset(c.habits, c.plan, c.lastOpen, now)
	c.lastOpen = newLastOpen
	if didReset {
		events = append(events, Event{Kind: EventDayRolled})
	}

	if err := c.persistLocked(); err != nil {
		c.mu.Unlock()
		return err
	}

	if !c.opened {
		c.opened = true
		pushCtx, cancel := context.WithCancel(context.Background())
		c.pushCancel = cancel
		c.pushDone = make(chan struct{})
		go func() {
			defer close(c.pushDone)
			c.pusher.Run(pushCtx)
		}()
	}

	subs := append([]func(Event){}, c.subs...)
	c.mu.Unlock()

	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
	return nil
}

// Close stops the push loop and closes the backing store.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.pushCancel
	done := c.pushDone
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return c.kv.Close()
}

// AddHabit creates a habit and schedules its creation server-side.
func (c *Client) AddHabit(params AddParams) (*Habit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	h, err := c.habits.Add(params)
	if err != nil {
		return nil, err
	}
	if err := c.persistLocked(); err != nil {
		return nil, err
	}
	c.enqueueLocked(pushItem{kind: pushHabitCreate, entityID: h.ID, version: h.version, habit: h})
	return h, nil
}

// RenameHabit changes a habit's display name.
func (c *Client) RenameHabit(id, name string) (*Habit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	h, err := c.habits.Rename(id, name)
	if err != nil {
		return nil, err
	}
	if err := c.persistLocked(); err != nil {
		return nil, err
	}
	c.enqueueLocked(pushItem{kind: pushHabitUpdate, entityID: h.ID, version: h.version, habit: h})
	return h, nil
}

// DeleteHabit removes a habit locally and server-side. Unknown ids are a
// no-op.
func (c *Client) DeleteHabit(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	if !c.habits.Delete(id) {
		return nil
	}
	if err := c.persistLocked(); err != nil {
		return err
	}
	c.enqueueLocked(pushItem{kind: pushHabitDelete, entityID: id})
	return nil
}

// ToggleHabit applies one completion toggle, optimistically and
// synchronously; the resulting full state is pushed in the background.
func (c *Client) ToggleHabit(id string) (*Habit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	h, err := c.habits.Toggle(id)
	if err != nil {
		return nil, err
	}
	if err := c.persistLocked(); err != nil {
		return nil, err
	}
	c.enqueueLocked(pushItem{kind: pushHabitUpdate, entityID: h.ID, version: h.version, habit: h})
	return h, nil
}

// Habits lists the collection, most recently added first.
func (c *Client) Habits() []Habit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.habits.List()
}

// AddTask appends a new incomplete task.
func (c *Client) AddTask(title string) (*Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	t, err := c.plan.AddTask(title)
	if err != nil {
		return nil, err
	}
	if err := c.persistLocked(); err != nil {
		return nil, err
	}
	c.enqueueLocked(pushItem{kind: pushTaskCreate, entityID: t.ID, task: t})
	return t, nil
}

// DeleteTask removes a task. Unknown ids are a no-op.
func (c *Client) DeleteTask(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	if !c.plan.DeleteTask(id) {
		return nil
	}
	if err := c.persistLocked(); err != nil {
		return err
	}
	c.enqueueLocked(pushItem{kind: pushTaskDelete, entityID: id})
	return nil
}

// ToggleTask flips a task's completion.
func (c *Client) ToggleTask(id string) (*Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	t, err := c.plan.ToggleTask(id)
	if err != nil {
		return nil, err
	}
	if err := c.persistLocked(); err != nil {
		return nil, err
	}
	c.enqueueLocked(pushItem{kind: pushTaskUpdate, entityID: t.ID, task: t})
	return t, nil
}

// Tasks returns the task list in creation order.
func (c *Client) Tasks() []Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan.Tasks()
}

// SetPlan replaces the active plan, materializing day 1 into the task list
// when it is empty.
func (c *Client) SetPlan(days []DailyPlan) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	c.plan.SetPlan(days)
	if err := c.persistLocked(); err != nil {
		return err
	}
	c.enqueueLocked(pushItem{kind: pushPlanReplace, plan: c.plan.Plan()})
	return nil
}

// UpdatePlanTask edits one plan string in place. Out-of-range indices are a
// silent no-op.
func (c *Client) UpdatePlanTask(dayIndex, taskIndex int, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	c.plan.UpdatePlanTask(dayIndex, taskIndex, text)
	if err := c.persistLocked(); err != nil {
		return err
	}
	c.enqueueLocked(pushItem{kind: pushPlanReplace, plan: c.plan.Plan()})
	return nil
}

// ResetPlan clears the plan and task list together.
func (c *Client) ResetPlan() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	c.plan.ResetPlan()
	if err := c.persistLocked(); err != nil {
		return err
	}
	c.enqueueLocked(pushItem{kind: pushPlanReplace, plan: nil})
	return nil
}

// Plan returns the active plan.
func (c *Client) Plan() []DailyPlan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan.Plan()
}

// Profile returns the current user profile.
func (c *Client) Profile() UserProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

// SetOnboarding records onboarding completion locally and server-side.
func (c *Client) SetOnboarding(completed bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	c.profile.OnboardingCompleted = completed
	if err := c.persistLocked(); err != nil {
		return err
	}
	c.enqueueLocked(pushItem{kind: pushOnboarding, onboarding: completed})
	return nil
}

// AppendMessage adds one chat message to the local cache, capped at the
// most recent entries, and pushes it server-side.
func (c *Client) AppendMessage(role ChatRole, text string) (*ChatMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	msg := ChatMessage{
		ID:        ulid.Make().String(),
		Role:      role,
		Text:      text,
		Timestamp: c.cfg.Now(),
	}
	c.chat = append(c.chat, msg)
	if len(c.chat) > maxChatMessages {
		c.chat = c.chat[len(c.chat)-maxChatMessages:]
	}
	if err := c.persistLocked(); err != nil {
		return nil, err
	}
	c.enqueueLocked(pushItem{kind: pushChatMessage, entityID: msg.ID, msg: &msg})
	return &msg, nil
}

// ChatHistory returns the cached conversation, oldest first.
func (c *Client) ChatHistory() []ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChatMessage, len(c.chat))
	copy(out, c.chat)
	return out
}

// ClearChat empties the local conversation cache.
func (c *Client) ClearChat() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.chat = nil
	return c.persistLocked()
}

// Sync pulls a fresh snapshot and reconciles, server wins.
func (c *Client) Sync(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	id := c.identity
	if id == nil || !c.syncer.online() {
		c.mu.Unlock()
		return nil
	}

	resp, err := c.syncer.Init(ctx, id)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("sync: %w", err)
	}
	c.profile = resp.UserProfile
	c.reconcileLocked(resp.Snapshot)
	err = c.persistLocked()
	subs := append([]func(Event){}, c.subs...)
	c.mu.Unlock()

	for _, fn := range subs {
		fn(Event{Kind: EventDataSynced})
	}
	return err
}

// ResetData wipes every scoped store and empties the engines. Explicit user
// action; the confirmation lives at the UI layer.
func (c *Client) ResetData() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	if err := WipeAll(c.kv, StoreHabits, StoreUser, StoreChat); err != nil {
		return err
	}
	c.habits = NewHabitEngine()
	c.plan = NewPlanEngine()
	c.profile = UserProfile{}
	c.chat = nil
	c.lastOpen = time.Time{}
	return nil
}

// reconcileLocked overwrites local collections with the server snapshot.
// No field-level merge: the server always wins, discarding any optimistic
// local edits still in flight. The replaced entities restart their mutation
// counts, so the pusher's version marks are cleared with them; otherwise a
// mutation made after the reconcile would be classified stale against a
// pre-reconcile mark and never delivered.
func (c *Client) reconcileLocked(snap Snapshot) {
	c.habits.Replace(snap.Habits)
	c.plan.ReplaceTasks(snap.Tasks)
	c.plan.ReplacePlan(snap.Plan)
	c.pusher.Reset()
}

// enqueueLocked schedules an outbound push. Anonymous sessions never sync;
// their data stays on the device.
func (c *Client) enqueueLocked(item pushItem) {
	if c.identity == nil || !c.syncer.online() {
		return
	}
	item.telegramID = c.identity.ID
	c.pusher.Enqueue(item)
}

// onAck adopts server-assigned ids for optimistic creates. Runs on the push
// goroutine.
func (c *Client) onAck(a ack) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	switch a.item.kind {
	case pushHabitCreate:
		if a.habit == nil {
			return
		}
		for _, h := range c.habits.habits {
			if h.ID == a.item.entityID {
				h.ID = a.habit.ID
				_ = c.persistLocked()
				// Local toggles since creation exist only client-side;
				// re-push the full state under the server's id.
				if h.version > a.item.version {
					c.enqueueLocked(pushItem{kind: pushHabitUpdate, entityID: h.ID, version: h.version, habit: cloneHabit(h)})
				}
				return
			}
		}
	case pushTaskCreate:
		if a.task == nil {
			return
		}
		for _, t := range c.plan.tasks {
			if t.ID == a.item.entityID {
				t.ID = a.task.ID
				_ = c.persistLocked()
				return
			}
		}
	}
}

// loadLocked reads the persisted blobs for the active scope.
func (c *Client) loadLocked() error {
	habitStore := NewScopedStore(c.kv, StoreHabits, c.identity)
	if raw, ok, err := habitStore.Get(); err != nil {
		return fmt.Errorf("load habit store: %w", err)
	} else if ok {
		var blob habitBlob
		if err := json.Unmarshal([]byte(raw), &blob); err != nil {
			slog.Warn("corrupt habit store, starting fresh",
				"component", "tracker", "error", err)
		} else {
			c.habits.Replace(blob.Habits)
			c.plan.ReplaceTasks(blob.Tasks)
			c.plan.ReplacePlan(blob.Plan)
			c.plan.restoreMaterialized(blob.Materialized)
			c.lastOpen = blob.LastOpen
		}
	}

	userStore := NewScopedStore(c.kv, StoreUser, c.identity)
	if raw, ok, err := userStore.Get(); err != nil {
		return fmt.Errorf("load user store: %w", err)
	} else if ok {
		var blob userBlob
		if err := json.Unmarshal([]byte(raw), &blob); err == nil {
			c.profile = blob.Profile
		}
	}

	chatStore := NewScopedStore(c.kv, StoreChat, c.identity)
	if raw, ok, err := chatStore.Get(); err != nil {
		return fmt.Errorf("load chat store: %w", err)
	} else if ok {
		var blob chatBlob
		if err := json.Unmarshal([]byte(raw), &blob); err == nil {
			c.chat = blob.Messages
		}
	}

	return nil
}

// persistLocked writes all three scoped blobs.
func (c *Client) persistLocked() error {
	habits, err := json.Marshal(habitBlob{
		Habits:       c.habits.List(),
		Tasks:        c.plan.Tasks(),
		Plan:         c.plan.Plan(),
		Materialized: c.plan.materializedKeys(),
		LastOpen:     c.lastOpen,
	})
	if err != nil {
		return fmt.Errorf("encode habit store: %w", err)
	}
	if err := NewScopedStore(c.kv, StoreHabits, c.identity).Set(string(habits)); err != nil {
		return fmt.Errorf("write habit store: %w", err)
	}

	user, err := json.Marshal(userBlob{Profile: c.profile})
	if err != nil {
		return fmt.Errorf("encode user store: %w", err)
	}
	if err := NewScopedStore(c.kv, StoreUser, c.identity).Set(string(user)); err != nil {
		return fmt.Errorf("write user store: %w", err)
	}

	chat, err := json.Marshal(chatBlob{Messages: c.chat})
	if err != nil {
		return fmt.Errorf("encode chat store: %w", err)
	}
	if err := NewScopedStore(c.kv, StoreChat, c.identity).Set(string(chat)); err != nil {
		return fmt.Errorf("write chat store: %w", err)
	}

	return nil
}
