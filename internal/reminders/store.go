// Package reminders implements the persistent reminder store and the
// scheduler that fires due reminders into the thought buffer.
package reminders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/animus-ai/animus/internal/observability"
	"github.com/animus-ai/animus/pkg/models"
)

// ErrNotFound is returned when cancelling a reminder that does not
// exist.
var ErrNotFound = errors.New("reminder not found")

// storeFile is the on-disk envelope of reminders.json.
type storeFile struct {
	Reminders []models.Reminder `json:"reminders"`
	LastSaved time.Time         `json:"last_saved"`
}

// Store persists reminders to a single JSON file. In-memory state is
// authoritative; failed saves are logged and retried on the next write.
type Store struct {
	mu        sync.Mutex
	path      string
	log       *observability.Logger
	reminders []models.Reminder
	now       func() time.Time
}

// OpenStore loads reminders.json; a missing file starts empty.
func OpenStore(path string, log *observability.Logger) (*Store, error) {
	if log == nil {
		log = observability.NewNopLogger()
	}
	s := &Store{path: path, log: log, now: time.Now}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read reminders: %w", err)
	}
	var file storeFile
	if err := json.Unmarshal(data, &file); err != nil {
		log.Warn(context.Background(), "reminders file corrupt, starting empty", "path", path, "error", err)
		return s, nil
	}
	s.reminders = file.Reminders
	return s, nil
}

// Add creates and persists a reminder, returning it with its assigned
// ID.
func (s *Store) Add(description string, triggerTime time.Time, typ models.ReminderType, repeat time.Duration, urgent bool) models.Reminder {
	r := models.Reminder{
		ID:             uuid.NewString(),
		Description:    description,
		TriggerTime:    triggerTime,
		CreatedAt:      s.now(),
		Type:           typ,
		RepeatInterval: repeat,
		IsUrgent:       urgent,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders = append(s.reminders, r)
	s.save()
	return r
}

// List returns pending reminders sorted by trigger time; includeNotified
// adds already-fired one-shot reminders.
func (s *Store) List(includeNotified bool) []models.Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Reminder
	for _, r := range s.reminders {
		if r.Notified && !includeNotified {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggerTime.Before(out[j].TriggerTime) })
	return out
}

// Cancel removes a reminder by ID.
func (s *Store) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.reminders {
		if r.ID == id {
			s.reminders = append(s.reminders[:i], s.reminders[i+1:]...)
			s.save()
			return nil
		}
	}
	return ErrNotFound
}

// DueReminders returns every reminder whose trigger time has passed and
// marks it fired. Repeating reminders are rescheduled to the next
// occurrence after now instead of being marked notified.
func (s *Store) DueReminders() []models.Reminder {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var due []models.Reminder
	changed := false
	for i := range s.reminders {
		r := &s.reminders[i]
		if r.Notified || r.TriggerTime.After(now) {
			continue
		}
		due = append(due, *r)
		changed = true
		if r.RepeatInterval > 0 {
			next := r.TriggerTime.Add(r.RepeatInterval)
			for !next.After(now) {
				next = next.Add(r.RepeatInterval)
			}
			r.TriggerTime = next
		} else {
			r.Notified = true
		}
	}
	if changed {
		s.save()
	}
	return due
}

// save runs with s.mu held; failures are logged, next write retries.
func (s *Store) save() {
	if s.path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.log.Error(context.Background(), "create reminders dir", "error", err)
		return
	}
	data, err := json.MarshalIndent(storeFile{Reminders: s.reminders, LastSaved: s.now()}, "", "  ")
	if err != nil {
		s.log.Error(context.Background(), "marshal reminders", "error", err)
		return
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.log.Error(context.Background(), "write reminders", "error", err)
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.log.Error(context.Background(), "rename reminders", "error", err)
	}
}
