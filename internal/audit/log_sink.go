package audit

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSink mirrors entries into the service log.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "audit").Logger()}
}

func (s *LogSink) Append(_ context.Context, e Entry) error {
	ev := s.logger.Info()
	if e.Status == StatusFailure {
		ev = s.logger.Warn().Str("error", e.Error)
	}
	ev.Str("user_id", e.UserID).
		Str("action", e.Action).
		Str("resource", e.Resource).
		Str("status", string(e.Status)).
		Fields(e.Details).
		Msg("audit")
	return nil
}
