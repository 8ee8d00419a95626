package logger

import (
	"context"
	"log/slog"
)

// AuditEvent is one security relevant action taken through the API
type AuditEvent struct {
	Action    string
	Resource  string
	UserID    string
	IPAddress string
	Success   bool
	Message   string
	Metadata  map[string]string
}

// AuditLogger writes audit events to the structured log
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

// Log records event at info level, or warn when it failed
func (al *AuditLogger) Log(ctx context.Context, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", event.Resource),
		slog.String("event_type", event.Action),
		slog.Bool("success", event.Success),
	}
	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.Message != "" {
		attrs = append(attrs, slog.String("message", event.Message))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}
