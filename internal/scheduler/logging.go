package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// CronLogger adapts zerolog to cron.Logger.
type CronLogger struct {
	logger zerolog.Logger
}

func NewCronLogger(logger zerolog.Logger) cron.Logger {
	return &CronLogger{logger: logger.With().Str("component", "cron").Logger()}
}

func (a *CronLogger) withKeyvals(event *zerolog.Event, keyvals ...interface{}) *zerolog.Event {
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals, "MISSING_VALUE")
	}
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = "INVALID_KEY"
		}
		event = event.Interface(key, keyvals[i+1])
	}
	return event
}

// Info is used by cron for routine scheduling chatter, so it logs at debug.
func (a *CronLogger) Info(msg string, keyvals ...interface{}) {
	a.withKeyvals(a.logger.Debug(), keyvals...).Msg(msg)
}

func (a *CronLogger) Error(err error, msg string, keyvals ...interface{}) {
	a.withKeyvals(a.logger.Error().Err(err), keyvals...).Msg(msg)
}
