package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestZerologAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer
	z := NewZerologAdapterWithLogger(zerolog.New(&buf))

	z.Info("dispatch",
		String("operation", "getVersion"),
		Int("args", 2),
		Bool("ok", true),
		Duration("took", 1500*time.Millisecond),
		Err(errors.New("boom")),
	)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v (%s)", err, buf.String())
	}
	if entry["message"] != "dispatch" {
		t.Errorf("message = %v, want dispatch", entry["message"])
	}
	if entry["operation"] != "getVersion" {
		t.Errorf("operation = %v", entry["operation"])
	}
	if entry["args"] != float64(2) {
		t.Errorf("args = %v", entry["args"])
	}
	if entry["error"] != "boom" {
		t.Errorf("error = %v", entry["error"])
	}
}

func TestWith_PrependsFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewZerologAdapterWithLogger(zerolog.New(&buf))

	l := With(With(base, String("component", "session")), String("host", "127.0.0.1"))
	l.Warn("lost", String("reason", "ExitStarted"))

	line := buf.String()
	for _, want := range []string{`"component":"session"`, `"host":"127.0.0.1"`, `"reason":"ExitStarted"`} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %s missing %s", line, want)
		}
	}
}

func TestWith_NoFieldsReturnsSame(t *testing.T) {
	base := NewNoopLogger()
	if got := With(base); got != Logger(base) {
		t.Errorf("With without fields should return the input logger")
	}
}

func TestZerologAdapter_RawJSONField(t *testing.T) {
	var buf bytes.Buffer
	z := NewZerologAdapterWithLogger(zerolog.New(&buf))

	z.Debug("reply", RawJSON("result", json.RawMessage(`{"sceneName":"Live"}`)), RawJSON("bad", json.RawMessage(`{`)))

	var entry struct {
		Result map[string]string `json:"result"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v (%s)", err, buf.String())
	}
	if entry.Result["sceneName"] != "Live" {
		t.Errorf("result = %v, want embedded object", entry.Result)
	}
}

type recorder struct {
	fields []Field
}

func (r *recorder) Debug(msg string, fields ...Field) { r.fields = append(r.fields, fields...) }
func (r *recorder) Info(msg string, fields ...Field)  { r.fields = append(r.fields, fields...) }
func (r *recorder) Warn(msg string, fields ...Field)  { r.fields = append(r.fields, fields...) }
func (r *recorder) Error(msg string, fields ...Field) { r.fields = append(r.fields, fields...) }

func TestWith_WrapsOtherLoggers(t *testing.T) {
	rec := &recorder{}
	l := With(With(rec, String("component", "bot")), String("username", "relay"))
	l.Info("online", Int("attempt", 1))

	var keys []string
	for _, f := range rec.fields {
		keys = append(keys, f.Key)
	}
	if got := strings.Join(keys, ","); got != "component,username,attempt" {
		t.Errorf("fields = %s, want component,username,attempt", got)
	}
}

func TestNamed_SetsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := Named(NewZerologAdapterWithLogger(zerolog.New(&buf)), "dispatch")
	l.Info("call")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v (%s)", err, buf.String())
	}
	if entry[ComponentKey] != "dispatch" {
		t.Errorf("%s = %v, want dispatch", ComponentKey, entry[ComponentKey])
	}
}

func TestWith_NoopStaysNoop(t *testing.T) {
	base := NewNoopLogger()
	if got := Named(base, "ws"); got != Logger(base) {
		t.Errorf("Named(noop) = %T, want the noop logger itself", got)
	}
}

func TestSetLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prev)

	SetLevel(" WARN ")
	if zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Errorf("level = %v, want warn", zerolog.GlobalLevel())
	}
	SetLevel("nonsense")
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("level = %v, want info", zerolog.GlobalLevel())
	}
}
