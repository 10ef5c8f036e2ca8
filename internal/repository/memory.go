package repository

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mtlprog/taskpulse/internal/domain"
)

// MemoryStore is an in-process implementation of the task, history, notification
// and user repositories. It enforces the same (task, alert type) uniqueness as the
// Postgres schema.
type MemoryStore struct {
	mu            sync.RWMutex
	tasks         map[string]domain.Task
	events        []domain.TaskHistoryEvent
	users         map[string]domain.User
	notifications []domain.Notification
	now           func() time.Time
}

// NewMemoryStore creates an empty MemoryStore. now stamps created records.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		tasks: make(map[string]domain.Task),
		users: make(map[string]domain.User),
		now:   now,
	}
}

// PutTask inserts or replaces a task, assigning an ID when empty.
func (s *MemoryStore) PutTask(t domain.Task) domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	s.tasks[t.ID] = t
	return t
}

// Tasks returns a task lookup over the store. GetByID on MemoryStore itself resolves users.
func (s *MemoryStore) Tasks() *MemoryTasks {
	return &MemoryTasks{store: s}
}

// MemoryTasks resolves tasks held by a MemoryStore.
type MemoryTasks struct {
	store *MemoryStore
}

// GetByID retrieves a task by ID.
func (t *MemoryTasks) GetByID(ctx context.Context, taskID string) (*domain.Task, error) {
	_ = ctx

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	task, ok := t.store.tasks[taskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return &task, nil
}

// PutUser inserts or replaces a user, assigning an ID when empty.
func (s *MemoryStore) PutUser(u domain.User) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.users[u.ID] = u
	return u
}

// AddHistoryEvent appends a history event.
func (s *MemoryStore) AddHistoryEvent(e domain.TaskHistoryEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	s.events = append(s.events, e)
}

// Notifications returns a snapshot of all stored notifications in insertion order.
func (s *MemoryStore) Notifications() []domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.notifications)
}

func (s *MemoryStore) ListActiveWithFutureDueDate(ctx context.Context, now time.Time) ([]*domain.Task, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Task
	for _, t := range s.tasks {
		if t.IsEligible(now) {
			out = append(out, &t)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Task) int {
		return a.DueDate.Compare(*b.DueDate)
	})
	return out, nil
}

func (s *MemoryStore) ListCompletedForUser(
	ctx context.Context,
	userID string,
	limit int,
	requireDueDate bool,
) ([]*domain.Task, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Task
	for _, t := range s.tasks {
		if t.Status != domain.TaskStatusDone || t.AssignedUserID == nil || *t.AssignedUserID != userID {
			continue
		}
		if requireDueDate && t.DueDate == nil {
			continue
		}
		out = append(out, &t)
	}
	slices.SortFunc(out, func(a, b *domain.Task) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListCompletedEventsForUser(ctx context.Context, userID string, limit int) ([]*domain.TaskHistoryEvent, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.TaskHistoryEvent
	for _, e := range s.events {
		if e.UserID != userID || e.Action != domain.HistoryActionCompleted || !e.HasDuration() {
			continue
		}
		out = append(out, &e)
	}
	slices.SortStableFunc(out, func(a, b *domain.TaskHistoryEvent) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Exists(ctx context.Context, taskID string, alertType domain.AlertType) (bool, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.existsLocked(taskID, alertType), nil
}

func (s *MemoryStore) existsLocked(taskID string, alertType domain.AlertType) bool {
	for _, n := range s.notifications {
		if n.TaskID != nil && *n.TaskID == taskID && n.AlertType != nil && *n.AlertType == alertType {
			return true
		}
	}
	return false
}

func (s *MemoryStore) Insert(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	if n.TaskID != nil && n.AlertType != nil && s.existsLocked(*n.TaskID, *n.AlertType) {
		return nil, domain.ErrDuplicateAlert
	}

	n.ID = uuid.NewString()
	n.CreatedAt = s.now()
	if n.Metadata == nil {
		n.Metadata = map[string]any{}
	}

	stored := *n
	stored.Metadata = maps.Clone(n.Metadata)
	s.notifications = append(s.notifications, stored)
	return n, nil
}

func (s *MemoryStore) ListForUser(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Notification
	for i := len(s.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		if s.notifications[i].UserID != userID {
			continue
		}
		n := s.notifications[i]
		n.Metadata = maps.Clone(n.Metadata)
		out = append(out, &n)
	}
	return out, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}
