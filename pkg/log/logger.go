package log

import (
	"encoding/json"
	"time"
)

// Logger is the leveled, structured logger every relay component receives.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is one key/value pair attached to a message.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field          { return Field{Key: key, Value: value} }
func Int(key string, value int) Field         { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field     { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field       { return Field{Key: key, Value: value} }
func Any(key string, value any) Field         { return Field{Key: key, Value: value} }

// Duration is encoded in milliseconds by the zerolog adapter.
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }

// RawJSON embeds an already encoded document, such as an OBS reply, as is.
func RawJSON(key string, value json.RawMessage) Field { return Field{Key: key, Value: value} }

// Err attaches err under the "error" key.
func Err(err error) Field { return Field{Key: "error", Value: err} }

// ComponentKey names the field set by Named.
const ComponentKey = "component"

// Named scopes l to one relay component.
func Named(l Logger, component string) Logger {
	return With(l, String(ComponentKey, component))
}

// With returns a Logger that adds fields to every message.
func With(l Logger, fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	switch base := l.(type) {
	case *ZerologAdapter:
		return base.With(fields...)
	case *NoopLogger:
		return base
	case *withLogger:
		return &withLogger{next: base.next, fields: base.merge(fields)}
	}
	return &withLogger{next: l, fields: fields}
}

type withLogger struct {
	next   Logger
	fields []Field
}

func (w *withLogger) merge(fields []Field) []Field {
	out := make([]Field, 0, len(w.fields)+len(fields))
	out = append(out, w.fields...)
	return append(out, fields...)
}

func (w *withLogger) Debug(msg string, fields ...Field) { w.next.Debug(msg, w.merge(fields)...) }
func (w *withLogger) Info(msg string, fields ...Field)  { w.next.Info(msg, w.merge(fields)...) }
func (w *withLogger) Warn(msg string, fields ...Field)  { w.next.Warn(msg, w.merge(fields)...) }
func (w *withLogger) Error(msg string, fields ...Field) { w.next.Error(msg, w.merge(fields)...) }

// NoopLogger drops every message. It is the default of library callers that
// pass no logger.
type NoopLogger struct{}

func NewNoopLogger() *NoopLogger { return &NoopLogger{} }

func (*NoopLogger) Debug(string, ...Field) {}
func (*NoopLogger) Info(string, ...Field)  {}
func (*NoopLogger) Warn(string, ...Field)  {}
func (*NoopLogger) Error(string, ...Field) {}
