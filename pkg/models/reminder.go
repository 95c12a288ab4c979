package models

import "time"

// ReminderType distinguishes user reminders, short timers, and scheduled
// events.
type ReminderType string

const (
	ReminderTypeReminder ReminderType = "reminder"
	ReminderTypeTimer    ReminderType = "timer"
	ReminderTypeEvent    ReminderType = "event"
)

// Reminder is a scheduled notification persisted in reminders.json. A
// non-zero RepeatInterval reschedules the reminder after it fires.
type Reminder struct {
	ID             string        `json:"id"`
	Description    string        `json:"description"`
	TriggerTime    time.Time     `json:"trigger_time"`
	CreatedAt      time.Time     `json:"created_at"`
	Type           ReminderType  `json:"reminder_type"`
	RepeatInterval time.Duration `json:"repeat_interval,omitempty"`
	Notified       bool          `json:"notified"`
	IsUrgent       bool          `json:"is_urgent"`
}
