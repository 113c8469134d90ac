package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
type LogFields struct {
	MemberID  *int64  // Platform member the operation acts on
	GuildID   *int64  // Guild (server) the event came from
	ChannelID *int64  // Channel the event came from
	EventID   *string // Redis stream event ID
	Command   *string // Chat command name (e.g., "pay")
	Component string  // Component name (e.g., "coins.accrual.job")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.MemberID != nil {
		result.MemberID = new.MemberID
	}
	if new.GuildID != nil {
		result.GuildID = new.GuildID
	}
	if new.ChannelID != nil {
		result.ChannelID = new.ChannelID
	}
	if new.EventID != nil {
		result.EventID = new.EventID
	}
	if new.Command != nil {
		result.Command = new.Command
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
func Ptr[T any](v T) *T {
	return &v
}
