package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes events to the structured log. It is the default sink
// when no message broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Publish(ctx context.Context, e Event) {
	attrs := []any{
		slog.String("kind", e.Kind),
		slog.String("message", e.Message),
	}
	if e.IdentityID != "" {
		attrs = append(attrs, slog.String("identity_id", e.IdentityID))
	}
	for k, v := range e.Metadata {
		attrs = append(attrs, slog.String(k, v))
	}
	n.logger.InfoContext(ctx, "account event", attrs...)
}

func (n *LogNotifier) Close() error { return nil }
