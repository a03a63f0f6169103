package actions

import (
	"context"
	"log/slog"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is the local alert shown after an action.
type Notification struct {
	Kind  Kind
	Title string
	Body  string
}

type Notifier interface {
	Notify(n Notification)
}

type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// LogNotifier writes notifications to a logger, for headless use.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(n Notification) {
	level := slog.LevelInfo
	if n.Kind == KindError {
		level = slog.LevelWarn
	}
	l.Logger.Log(context.Background(), level, n.Title, "kind", string(n.Kind), "body", n.Body)
}
