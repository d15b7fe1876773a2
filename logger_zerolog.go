package gentlify

import (
	"github.com/rs/zerolog"
)

// NewZerologAdapter returns a Logger that forwards
// to the given zerolog.Logger.
//
// The Warning level maps to zerolog's Warn level.
func NewZerologAdapter(logger zerolog.Logger) Logger {
	return &zerologAdapter{
		logger: logger,
	}
}

type zerologAdapter struct {
	logger zerolog.Logger
}

func (l *zerologAdapter) Debug(text string) {
	l.logger.Debug().Msg(text)
}
func (l *zerologAdapter) Info(text string) {
	l.logger.Info().Msg(text)
}
func (l *zerologAdapter) Warning(text string) {
	l.logger.Warn().Msg(text)
}
func (l *zerologAdapter) Error(text string) {
	l.logger.Error().Msg(text)
}
