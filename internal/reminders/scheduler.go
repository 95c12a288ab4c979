package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/animus-ai/animus/internal/observability"
	"github.com/animus-ai/animus/internal/thought"
	"github.com/animus-ai/animus/pkg/models"
)

// Scheduler periodically checks the store and injects fired reminders
// into the thought buffer as reminder events. Urgent reminders also set
// the buffer's urgent flag, which escalates the next tick to a spoken
// response.
type Scheduler struct {
	store    *Store
	buf      *thought.Buffer
	interval time.Duration
	log      *observability.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewScheduler creates a scheduler checking every interval.
func NewScheduler(store *Store, buf *thought.Buffer, interval time.Duration, log *observability.Logger) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = observability.NewNopLogger()
	}
	return &Scheduler{
		store:    store,
		buf:      buf,
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the check loop.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.doneCh)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.CheckDue(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// CheckDue fires every due reminder into the buffer. Exposed so the
// loop and tests can force a check without waiting for the ticker.
func (s *Scheduler) CheckDue(ctx context.Context) {
	for _, r := range s.store.DueReminders() {
		text := fmt.Sprintf("%s: %s", reminderLabel(r.Type), r.Description)
		s.buf.IngestRawData(models.SourceReminder, text)
		if r.IsUrgent {
			s.buf.SetUrgentReminders(true)
		}
		s.log.Info(ctx, "reminder fired", "id", r.ID, "type", string(r.Type), "urgent", r.IsUrgent)
	}
}

func reminderLabel(t models.ReminderType) string {
	switch t {
	case models.ReminderTypeTimer:
		return "Timer finished"
	case models.ReminderTypeEvent:
		return "Scheduled event"
	default:
		return "Reminder"
	}
}
