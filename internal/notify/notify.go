// Package notify delivers user-facing notices: the success or failure
// message of an export and side-effect warnings.
package notify

import (
	"log/slog"

	"github.com/starford/vaultbridge/internal/sse"
)

// Notifier shows a message to the user.
type Notifier interface {
	Info(msg string)
	Warn(msg string)
}

// Log writes notices to a structured logger.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Info(msg string) { l.Logger.Info("notice", slog.String("message", msg)) }
func (l Log) Warn(msg string) { l.Logger.Warn("notice", slog.String("message", msg)) }

// Broker publishes notices as SSE events.
type Broker struct {
	B *sse.Broker
}

func (b Broker) Info(msg string) { b.B.PublishNotice("info", msg) }
func (b Broker) Warn(msg string) { b.B.PublishNotice("warn", msg) }

// Multi fans a notice out to several notifiers.
type Multi []Notifier

func (m Multi) Info(msg string) {
	for _, n := range m {
		n.Info(msg)
	}
}

func (m Multi) Warn(msg string) {
	for _, n := range m {
		n.Warn(msg)
	}
}

// Discard drops every notice.
type Discard struct{}

func (Discard) Info(string) {}
func (Discard) Warn(string) {}
