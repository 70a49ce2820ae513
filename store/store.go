// Package store holds the process-wide application state: the global task
// list, the cart lines and the transient filter state. Mutations are atomic
// from the caller's perspective: the durable write and all subscriber
// notifications complete before the mutation returns.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskcart-api/domain"
)

// Persister is the durable side of the store. Implemented by *storage.Storage.
type Persister interface {
	LoadTasks(ctx context.Context) ([]domain.Task, error)
	SaveTasks(ctx context.Context, tasks []domain.Task) error
	LoadCart(ctx context.Context) ([]domain.CartLine, error)
	SaveCart(ctx context.Context, cart []domain.CartLine) error
}

// PersistError reports a durable write failure. The triggering mutation has
// been rolled back: the in-memory state is exactly what it was before the
// call.
type PersistError struct {
	Slice string
	Err   error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Slice, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// State is a snapshot of everything the store owns. Snapshots returned by
// Get and passed to subscribers are copies; callers may keep or mutate them
// freely.
type State struct {
	Tasks          []domain.Task
	Cart           []domain.CartLine
	ProductFilters domain.ProductFilters
	KanbanFilters  domain.KanbanFilters
}

func (s State) clone() State {
	out := s
	out.Tasks = make([]domain.Task, len(s.Tasks))
	copy(out.Tasks, s.Tasks)
	out.Cart = make([]domain.CartLine, len(s.Cart))
	copy(out.Cart, s.Cart)
	return out
}

// Store is the mutable state container.
type Store struct {
	mu      sync.Mutex
	state   State
	persist Persister
	logger  *log.Logger

	subs    map[int]func(State)
	nextSub int

	lastStamp time.Time
}

// New hydrates a Store from durable storage. Malformed persisted blobs come
// back from the Persister as empty slices; only an unreachable backend is an
// error here.
func New(ctx context.Context, persist Persister, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	tasks, err := persist.LoadTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("hydrate tasks: %w", err)
	}
	cart, err := persist.LoadCart(ctx)
	if err != nil {
		return nil, fmt.Errorf("hydrate cart: %w", err)
	}
	return &Store{
		state: State{
			Tasks:          tasks,
			Cart:           cart,
			KanbanFilters:  domain.KanbanFilters{Status: "all", Priority: "all"},
			ProductFilters: domain.ProductFilters{SortBy: domain.SortByName},
		},
		persist: persist,
		logger:  logger,
		subs:    make(map[int]func(State)),
	}, nil
}

// Get returns a snapshot of the current state.
func (s *Store) Get() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn to run synchronously after every committed
// mutation, with a snapshot of the new state. It returns an unsubscribe
// function. Callbacks run inside the store lock and must not call back into
// the store.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notifyLocked() {
	if len(s.subs) == 0 {
		return
	}
	snapshot := s.state.clone()
	for _, fn := range s.subs {
		fn(snapshot)
	}
}

// now hands out strictly increasing timestamps so two mutations in the same
// nanosecond still get distinct updatedAt stamps. Callers hold s.mu.
func (s *Store) now() time.Time {
	t := time.Now()
	if !t.After(s.lastStamp) {
		t = s.lastStamp.Add(time.Nanosecond)
	}
	s.lastStamp = t
	return t
}

// commitTasks applies the already-updated task slice optimistically,
// attempts the durable write and rolls back on failure.
func (s *Store) commitTasks(ctx context.Context, prev, next []domain.Task) error {
	s.state.Tasks = next
	if err := s.persist.SaveTasks(ctx, next); err != nil {
		s.state.Tasks = prev
		s.logger.WithField("slice", "tasks").Errorf("durable write failed, rolled back: %v", err)
		return &PersistError{Slice: "tasks", Err: err}
	}
	s.notifyLocked()
	return nil
}

func (s *Store) commitCart(ctx context.Context, prev, next []domain.CartLine) error {
	if cartsEqual(prev, next) {
		// Mutations referencing an absent id are no-ops, not errors.
		return nil
	}
	s.state.Cart = next
	if err := s.persist.SaveCart(ctx, next); err != nil {
		s.state.Cart = prev
		s.logger.WithField("slice", "cart").Errorf("durable write failed, rolled back: %v", err)
		return &PersistError{Slice: "cart", Err: err}
	}
	s.notifyLocked()
	return nil
}

func cartsEqual(a, b []domain.CartLine) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// AddTask appends a new task with a generated id and fresh timestamps, and
// returns it as stored.
func (s *Store) AddTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.UpdatedAt = now

	prev := s.state.Tasks
	next := make([]domain.Task, len(prev), len(prev)+1)
	copy(next, prev)
	next = append(next, t)
	if err := s.commitTasks(ctx, prev, next); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// UpdateTask patches the task with the given id and refreshes its updatedAt.
// A missing id is a no-op and reports found=false.
func (s *Store) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state.Tasks
	idx := -1
	for i, t := range prev {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return domain.Task{}, false, nil
	}
	next := make([]domain.Task, len(prev))
	copy(next, prev)
	next[idx] = patch.Apply(next[idx], s.now())
	if err := s.commitTasks(ctx, prev, next); err != nil {
		return domain.Task{}, true, err
	}
	return next[idx], true, nil
}

// DeleteTask removes the task with the given id from the ordered collection.
// A missing id is a no-op.
func (s *Store) DeleteTask(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state.Tasks
	next := make([]domain.Task, 0, len(prev))
	for _, t := range prev {
		if t.ID != id {
			next = append(next, t)
		}
	}
	if len(next) == len(prev) {
		return false, nil
	}
	if err := s.commitTasks(ctx, prev, next); err != nil {
		return true, err
	}
	return true, nil
}

// Drop reconciles a finished drag gesture against the task list. No-op drops
// (self drop, own column, vanished task) report changed=false and leave both
// memory and durable state untouched.
func (s *Store) Drop(ctx context.Context, activeID string, target domain.DropTarget) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state.Tasks
	next, changed := domain.ApplyDrop(prev, activeID, target, s.now())
	if !changed {
		return false, nil
	}
	if err := s.commitTasks(ctx, prev, next); err != nil {
		return true, err
	}
	return true, nil
}

// AddToCart adds one unit of the item, merging into an existing line.
func (s *Store) AddToCart(ctx context.Context, item domain.CartLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitCart(ctx, s.state.Cart, domain.AddLine(s.state.Cart, item))
}

// IncrementCartItem grows the matching line's quantity by one.
func (s *Store) IncrementCartItem(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitCart(ctx, s.state.Cart, domain.IncrementLine(s.state.Cart, id))
}

// DecrementCartItem shrinks the matching line's quantity by one, removing
// the line when it reaches zero.
func (s *Store) DecrementCartItem(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitCart(ctx, s.state.Cart, domain.DecrementLine(s.state.Cart, id))
}

// RemoveCartItem deletes the line regardless of quantity.
func (s *Store) RemoveCartItem(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitCart(ctx, s.state.Cart, domain.RemoveLine(s.state.Cart, id))
}

// ClearCart empties the cart.
func (s *Store) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitCart(ctx, s.state.Cart, []domain.CartLine{})
}

// SetProductFilters replaces the transient catalog filter state. Filters are
// not persisted; subscribers are still notified so derived views refresh.
func (s *Store) SetProductFilters(f domain.ProductFilters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ProductFilters = f
	s.notifyLocked()
}

// SetKanbanFilters replaces the transient board visibility filters.
func (s *Store) SetKanbanFilters(f domain.KanbanFilters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.KanbanFilters = f
	s.notifyLocked()
}
