package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is the structured leveled logger used across the application.
// Key/value pairs follow the message: log.Info("room ended", "room_id", id).
type Logger interface {
	Debug(msg string, kv ...interface{})
	Info(msg string, kv ...interface{})
	Warn(msg string, kv ...interface{})
	Error(msg string, kv ...interface{})
	Fatal(msg string, kv ...interface{})
}

type zeroLogger struct {
	log zerolog.Logger
}

func New(level string) Logger {
	var l zerolog.Level

	switch strings.ToLower(level) {
	case "debug":
		l = zerolog.DebugLevel
	case "info":
		l = zerolog.InfoLevel
	case "warn":
		l = zerolog.WarnLevel
	case "error":
		l = zerolog.ErrorLevel
	default:
		l = zerolog.InfoLevel
	}

	zl := zerolog.New(os.Stdout).Level(l).With().Timestamp().Logger()
	return &zeroLogger{log: zl}
}

func (z *zeroLogger) Debug(msg string, kv ...interface{}) { z.emit(z.log.Debug(), msg, kv) }
func (z *zeroLogger) Info(msg string, kv ...interface{})  { z.emit(z.log.Info(), msg, kv) }
func (z *zeroLogger) Warn(msg string, kv ...interface{})  { z.emit(z.log.Warn(), msg, kv) }
func (z *zeroLogger) Error(msg string, kv ...interface{}) { z.emit(z.log.Error(), msg, kv) }
func (z *zeroLogger) Fatal(msg string, kv ...interface{}) { z.emit(z.log.Fatal(), msg, kv) }

func (z *zeroLogger) emit(ev *zerolog.Event, msg string, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		switch v := kv[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}
