// Package notify defines the outbound notification boundary. Delivery
// internals (SMTP, templating, retries) live behind the interface; the
// core only decides whether to roll back its own state when delivery
// fails.
package notify

import (
	"context"
	"log/slog"

	"github.com/davrell/trekbackend/models"
)

type Notifier interface {
	SendWelcome(ctx context.Context, user models.User, loginURL string) error
	SendPasswordReset(ctx context.Context, user models.User, resetURL string) error
}

// LogNotifier writes notifications to the structured log instead of
// delivering them. Used in development and as the default wiring.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendWelcome(ctx context.Context, user models.User, loginURL string) error {
	n.log.InfoContext(ctx, "welcome notification", "email", user.Email, "url", loginURL)
	return nil
}

func (n *LogNotifier) SendPasswordReset(ctx context.Context, user models.User, resetURL string) error {
	n.log.InfoContext(ctx, "password reset notification", "email", user.Email, "url", resetURL)
	return nil
}
