package service

import (
	"context"
	"log/slog"
)

type NotificationLevel string

const (
	NotifySuccess NotificationLevel = "success"
	NotifyError   NotificationLevel = "error"
)

// Notification is a message meant for the shopper.
type Notification struct {
	SessionID string
	AttemptID string
	Level     NotificationLevel
	Message   string
}

type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, note Notification) {
	level := slog.LevelInfo
	if note.Level == NotifyError {
		level = slog.LevelWarn
	}
	n.log.Log(ctx, level, note.Message, "session_id", note.SessionID, "attempt_id", note.AttemptID, "notification", string(note.Level))
}
