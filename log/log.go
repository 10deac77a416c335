// Package log is a thin structured-logging wrapper around logrus, matching
// the call shape used throughout the teacher codebase:
// log.Info(ctx, "message", "key", value, err).
package log

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var base = logrus.New()

func init() {
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	base.SetLevel(logrus.InfoLevel)
}

// SetLevel parses one of DEBUG/INFO/WARNING/ERROR (case-insensitive, per
// §6.4 LOG_LEVEL) and sets the package-wide log level. Unknown values fall
// back to INFO.
func SetLevel(level string) {
	switch level {
	case "DEBUG", "debug":
		base.SetLevel(logrus.DebugLevel)
	case "WARNING", "warning", "WARN", "warn":
		base.SetLevel(logrus.WarnLevel)
	case "ERROR", "error":
		base.SetLevel(logrus.ErrorLevel)
	default:
		base.SetLevel(logrus.InfoLevel)
	}
}

// SetOutput redirects log output; stdio transports must keep this off
// stdout, since stdout is the response channel (§6.1).
func SetOutput(w io.Writer) { base.SetOutput(w) }

type ctxKey struct{}

// NewContext returns a copy of ctx carrying requestID, which is attached to
// every log line logged with that ctx so a transport request's whole
// processing trail can be grepped by ID.
func NewContext(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

func fieldsFor(ctx context.Context, kv []any) logrus.Fields {
	f := logrus.Fields{}
	if ctx != nil {
		if rid, ok := ctx.Value(ctxKey{}).(string); ok && rid != "" {
			f["request_id"] = rid
		}
	}
	var err error
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		f[key] = kv[i+1]
	}
	if len(kv)%2 == 1 {
		if e, ok := kv[len(kv)-1].(error); ok {
			err = e
		}
	}
	if err != nil {
		f["error"] = err
	}
	return f
}

func Debug(ctx context.Context, msg string, kv ...any) {
	base.WithFields(fieldsFor(ctx, kv)).Debug(msg)
}

func Info(ctx context.Context, msg string, kv ...any) {
	base.WithFields(fieldsFor(ctx, kv)).Info(msg)
}

func Warn(ctx context.Context, msg string, kv ...any) {
	base.WithFields(fieldsFor(ctx, kv)).Warn(msg)
}

func Error(args ...any) {
	if len(args) == 0 {
		return
	}
	if ctx, ok := args[0].(context.Context); ok {
		msg, _ := args[1].(string)
		base.WithFields(fieldsFor(ctx, args[2:])).Error(msg)
		return
	}
	msg, _ := args[0].(string)
	base.WithFields(fieldsFor(nil, args[1:])).Error(msg)
}
