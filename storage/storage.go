package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskcart-api/domain"
)

// Keys of the durable blobs. Each slice is stored independently so one
// corrupt blob never takes the other down with it.
const (
	cartKey  = "cart"
	tasksKey = "kanban-tasks"
	themeKey = "theme"
)

// Storage persists the board's durable slices as keyed JSON blobs in Redis.
type Storage struct {
	client redis.Cmdable
	logger *log.Logger
}

// New creates a Storage backed by the given Redis client.
func New(client redis.Cmdable, logger *log.Logger) *Storage {
	if client == nil {
		panic("storage.New: redis client is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Storage{client: client, logger: logger}
}

// taskRecord is the wire form of a task. Timestamps travel as ISO-8601
// strings and are rehydrated leniently: a missing or malformed stamp defaults
// to the load time instead of failing the whole blob.
type taskRecord struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	Assignee    string     `json:"assignee,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedAt   string     `json:"createdAt"`
	UpdatedAt   string     `json:"updatedAt"`
}

// LoadTasks hydrates the task list. A missing key or an unparseable blob
// yields an empty list, never an error: losing persisted state must not keep
// the application from starting.
func (s *Storage) LoadTasks(ctx context.Context) ([]domain.Task, error) {
	data, err := s.client.Get(ctx, tasksKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return []domain.Task{}, nil
		}
		return nil, err
	}
	var records []taskRecord
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.WithField("key", tasksKey).Warnf("discarding malformed blob: %v", err)
		return []domain.Task{}, nil
	}
	now := time.Now()
	tasks := make([]domain.Task, 0, len(records))
	for _, r := range records {
		tasks = append(tasks, domain.Task{
			ID:          r.ID,
			Title:       r.Title,
			Description: r.Description,
			Status:      domain.Status(r.Status),
			Priority:    domain.Priority(r.Priority),
			Assignee:    r.Assignee,
			DueDate:     r.DueDate,
			CreatedAt:   parseStamp(r.CreatedAt, now),
			UpdatedAt:   parseStamp(r.UpdatedAt, now),
		})
	}
	return tasks, nil
}

// SaveTasks writes the full task list blob.
func (s *Storage) SaveTasks(ctx context.Context, tasks []domain.Task) error {
	records := make([]taskRecord, 0, len(tasks))
	for _, t := range tasks {
		records = append(records, taskRecord{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Status:      string(t.Status),
			Priority:    string(t.Priority),
			Assignee:    t.Assignee,
			DueDate:     t.DueDate,
			CreatedAt:   t.CreatedAt.Format(time.RFC3339Nano),
			UpdatedAt:   t.UpdatedAt.Format(time.RFC3339Nano),
		})
	}
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, tasksKey, data, 0).Err()
}

// LoadCart hydrates the cart lines with the same lenient semantics as
// LoadTasks.
func (s *Storage) LoadCart(ctx context.Context) ([]domain.CartLine, error) {
	data, err := s.client.Get(ctx, cartKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return []domain.CartLine{}, nil
		}
		return nil, err
	}
	var cart []domain.CartLine
	if err := json.Unmarshal(data, &cart); err != nil {
		s.logger.WithField("key", cartKey).Warnf("discarding malformed blob: %v", err)
		return []domain.CartLine{}, nil
	}
	return cart, nil
}

// SaveCart writes the full cart blob.
func (s *Storage) SaveCart(ctx context.Context, cart []domain.CartLine) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, cartKey, data, 0).Err()
}

// LoadTheme returns the stored theme preference. The second return value is
// false when no explicit preference has been stored.
func (s *Storage) LoadTheme(ctx context.Context) (domain.Theme, bool, error) {
	val, err := s.client.Get(ctx, themeKey).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, err
	}
	theme := domain.Theme(val)
	if !domain.ValidTheme(theme) {
		s.logger.WithField("key", themeKey).Warnf("discarding unknown theme %q", val)
		return "", false, nil
	}
	return theme, true, nil
}

// SaveTheme stores the explicit theme preference.
func (s *Storage) SaveTheme(ctx context.Context, theme domain.Theme) error {
	return s.client.Set(ctx, themeKey, string(theme), 0).Err()
}

// ClearTheme removes the stored preference so the client falls back to the
// operating environment's color scheme.
func (s *Storage) ClearTheme(ctx context.Context) error {
	return s.client.Del(ctx, themeKey).Err()
}

func parseStamp(v string, fallback time.Time) time.Time {
	if v == "" {
		return fallback
	}
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return fallback
	}
	return ts
}
