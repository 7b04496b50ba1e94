package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// ZerologAdapter implements Logger on top of github.com/rs/zerolog, giving
// pulseguard a leveled, structured backend with timestamp and caller
// annotation, following the zerolog.New(writer).With().Timestamp().Logger()
// construction used for request and component logging.
type ZerologAdapter struct {
	log    zerolog.Logger
	fields map[string]interface{}
}

// NewZerologAdapter creates a ZerologAdapter writing to w at the given level
// ("debug", "info", "warn", "error").
func NewZerologAdapter(w *os.File, level string) *ZerologAdapter {
	if w == nil {
		w = os.Stdout
	}
	zl := zerolog.New(w).With().Timestamp().Caller().Logger().Level(parseZerologLevel(level))
	return &ZerologAdapter{log: zl, fields: map[string]interface{}{}}
}

func parseZerologLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (z *ZerologAdapter) event(e *zerolog.Event, msg string, args []interface{}) {
	for k, v := range z.fields {
		e = e.Interface(k, v)
	}
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			if key, ok := args[i].(string); ok {
				e = e.Interface(key, args[i+1])
			}
		}
	}
	e.Msg(msg)
}

func (z *ZerologAdapter) Debug(msg string, fields ...interface{}) {
	z.event(z.log.Debug(), msg, fields)
}

func (z *ZerologAdapter) Info(msg string, fields ...interface{}) {
	z.event(z.log.Info(), msg, fields)
}

func (z *ZerologAdapter) Warn(msg string, fields ...interface{}) {
	z.event(z.log.Warn(), msg, fields)
}

func (z *ZerologAdapter) Error(msg string, fields ...interface{}) {
	z.event(z.log.Error(), msg, fields)
}

func (z *ZerologAdapter) SetLevel(level string) {
	z.log = z.log.Level(parseZerologLevel(level))
}

func (z *ZerologAdapter) WithField(key string, value interface{}) Logger {
	return z.With(Field{Key: key, Value: value})
}

func (z *ZerologAdapter) WithFields(fields map[string]interface{}) Logger {
	newFields := make(map[string]interface{}, len(z.fields)+len(fields))
	for k, v := range z.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}
	return &ZerologAdapter{log: z.log, fields: newFields}
}

func (z *ZerologAdapter) With(fields ...Field) Logger {
	newFields := make(map[string]interface{}, len(z.fields)+len(fields))
	for k, v := range z.fields {
		newFields[k] = v
	}
	for _, f := range fields {
		newFields[f.Key] = f.Value
	}
	return &ZerologAdapter{log: z.log, fields: newFields}
}
