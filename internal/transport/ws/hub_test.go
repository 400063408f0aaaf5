package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bft-labs/obsrelay/internal/app"
	"github.com/bft-labs/obsrelay/internal/domain"
	"github.com/bft-labs/obsrelay/internal/obs"
	"github.com/bft-labs/obsrelay/internal/ports"
)

type mockLogger struct{}

func (mockLogger) Debug(msg string, fields ...ports.Field) {}
func (mockLogger) Info(msg string, fields ...ports.Field)  {}
func (mockLogger) Warn(msg string, fields ...ports.Field)  {}
func (mockLogger) Error(msg string, fields ...ports.Field) {}

type fakeEncoder struct{}

func (fakeEncoder) Encode(url string) (ports.OnboardingArtifact, error) {
	return ports.OnboardingArtifact{Image: "data:image/png;base64,AAAA", URL: url}, nil
}

type fakeSwitcher struct {
	mu  sync.Mutex
	got []domain.ConnectionParams
}

func (f *fakeSwitcher) Switch(ctx context.Context, p domain.ConnectionParams) (domain.ConnectionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, p)
	if p.Password == "bad" {
		return domain.ConnectionInfo{}, domain.ErrAuthFailed
	}
	return domain.ConnectionInfo{RPCVersion: 1, Host: p.Host, Port: p.Port}, nil
}

type fakeVolume struct{}

func (fakeVolume) ChangeInputVolume(ctx context.Context, name string, db float64) (obs.InputVolume, error) {
	return obs.InputVolume{InputName: name, Volume: obs.Volume{DB: db}}, nil
}

// reply mirrors Outbound with a typed result.
type reply struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type result struct {
	CallID    string               `json:"callId"`
	Operation string               `json:"operation"`
	Result    json.RawMessage      `json:"result"`
	Error     *domain.ErrorPayload `json:"error"`
}

func newTestHub(t *testing.T, opts ...Option) (*Hub, string) {
	t.Helper()
	catalog := app.NewCatalog()
	catalog.MustRegister(
		app.Operation{Name: "getVersion", Invoke: func(ctx context.Context, _ app.Args) (any, error) {
			return map[string]string{"obsVersion": "30.1.2"}, nil
		}},
		app.Operation{Name: "setCurrentScene", RequiredParams: []string{"sceneName"}, Invoke: func(ctx context.Context, args app.Args) (any, error) {
			return args.String(0)
		}},
		app.Operation{Name: "slow", Invoke: func(ctx context.Context, _ app.Args) (any, error) {
			time.Sleep(100 * time.Millisecond)
			return "slow", nil
		}},
	)
	catalog.Seal()

	hub := NewHub(context.Background(), app.NewDispatcher(catalog, mockLogger{}), mockLogger{}, opts...)
	hub.Handle(EventConnect, ConnectHandler(&fakeSwitcher{}))
	hub.Handle(EventChangeVolume, VolumeHandler(fakeVolume{}))
	hub.Handle(EventCatalog, CatalogHandler(catalog))

	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		_ = hub.Close(time.Second)
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func read(t *testing.T, c *websocket.Conn) reply {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var r reply
	if err := c.ReadJSON(&r); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return r
}

func readResult(t *testing.T, c *websocket.Conn) result {
	t.Helper()
	r := read(t, c)
	if r.Event != EventReply {
		t.Fatalf("event = %q, want %q", r.Event, EventReply)
	}
	var res result
	if err := json.Unmarshal(r.Data, &res); err != nil {
		t.Fatal(err)
	}
	return res
}

func TestHub_OnboardingOnConnect(t *testing.T) {
	_, url := newTestHub(t, WithOnboarding(fakeEncoder{}, "http://10.0.0.2:8090", "https://10.0.0.2:8443"))
	c := dial(t, url)

	for _, want := range []string{"http://10.0.0.2:8090", "https://10.0.0.2:8443"} {
		r := read(t, c)
		if r.Event != EventOnboarding {
			t.Fatalf("event = %q, want %q", r.Event, EventOnboarding)
		}
		var art ports.OnboardingArtifact
		_ = json.Unmarshal(r.Data, &art)
		if art.URL != want || art.Image == "" {
			t.Errorf("artifact = %+v, want url %s", art, want)
		}
	}
}

func TestHub_DispatchEchoesCallID(t *testing.T) {
	_, url := newTestHub(t)
	c := dial(t, url)

	_ = c.WriteJSON(Inbound{Event: "setCurrentScene", CallID: "call-7", Args: []json.RawMessage{json.RawMessage(`"Gaming"`)}})
	res := readResult(t, c)
	if res.CallID != "call-7" || res.Operation != "setCurrentScene" || res.Error != nil {
		t.Fatalf("result = %+v", res)
	}
	if string(res.Result) != `"Gaming"` {
		t.Errorf("result value = %s", res.Result)
	}
}

func TestHub_GeneratesCallID(t *testing.T) {
	_, url := newTestHub(t)
	c := dial(t, url)

	_ = c.WriteJSON(Inbound{Event: "getVersion"})
	res := readResult(t, c)
	if len(res.CallID) != 26 {
		t.Errorf("generated call id %q is not a ULID", res.CallID)
	}
}

func TestHub_ErrorsAreReplies(t *testing.T) {
	_, url := newTestHub(t)
	c := dial(t, url)

	tests := []struct {
		in   Inbound
		code string
	}{
		{Inbound{Event: "noSuchThing", CallID: "a"}, domain.CodeNotFound},
		{Inbound{Event: "setCurrentScene", CallID: "b"}, domain.CodeMissingParams},
		{Inbound{CallID: "c"}, domain.CodeInvalidArgument},
	}
	for _, tt := range tests {
		_ = c.WriteJSON(tt.in)
		res := readResult(t, c)
		if res.Error == nil || res.Error.Code != tt.code {
			t.Errorf("%s: error = %+v, want code %s", tt.in.CallID, res.Error, tt.code)
		}
	}

	// The channel survives bad input.
	_ = c.WriteMessage(websocket.TextMessage, []byte("{not json"))
	_ = c.WriteJSON(Inbound{Event: "getVersion", CallID: "d"})
	if res := readResult(t, c); res.CallID != "d" || res.Error != nil {
		t.Errorf("after bad frame: %+v", res)
	}
}

func TestHub_RepliesMayInterleave(t *testing.T) {
	_, url := newTestHub(t)
	c := dial(t, url)

	_ = c.WriteJSON(Inbound{Event: "slow", CallID: "slow"})
	_ = c.WriteJSON(Inbound{Event: "getVersion", CallID: "fast"})

	first := readResult(t, c)
	second := readResult(t, c)
	if first.CallID != "fast" || second.CallID != "slow" {
		t.Errorf("order = %s, %s; want fast before slow", first.CallID, second.CallID)
	}
}

func TestHub_Composites(t *testing.T) {
	_, url := newTestHub(t)
	c := dial(t, url)

	_ = c.WriteJSON(Inbound{Event: EventConnect, CallID: "obj", Payload: json.RawMessage(`{"host":"10.0.0.9","port":"4456","password":"pw"}`)})
	res := readResult(t, c)
	var info domain.ConnectionInfo
	_ = json.Unmarshal(res.Result, &info)
	if res.Error != nil || info.Host != "10.0.0.9" || info.Port != 4456 {
		t.Errorf("connectobs object = %+v (%+v)", res, info)
	}

	_ = c.WriteJSON(Inbound{Event: EventConnect, CallID: "pos", Args: []json.RawMessage{
		json.RawMessage(`"10.0.0.9"`), json.RawMessage(`4455`), json.RawMessage(`"bad"`),
	}})
	if res := readResult(t, c); res.Error == nil || res.Error.Code != domain.CodeAuthFailed {
		t.Errorf("connectobs positional = %+v, want auth_failed", res)
	}

	_ = c.WriteJSON(Inbound{Event: EventChangeVolume, CallID: "vol", Payload: json.RawMessage(`{"inputName":"Mic","db":-12.5}`)})
	res = readResult(t, c)
	var vol obs.InputVolume
	_ = json.Unmarshal(res.Result, &vol)
	if vol.InputName != "Mic" || vol.Volume.DB != -12.5 {
		t.Errorf("changeInputVolume = %+v", vol)
	}

	_ = c.WriteJSON(Inbound{Event: EventCatalog, CallID: "cat"})
	res = readResult(t, c)
	var infos []domain.OperationInfo
	_ = json.Unmarshal(res.Result, &infos)
	if len(infos) != 3 || infos[1].Name != "setCurrentScene" {
		t.Errorf("catalog = %+v", infos)
	}
}

func TestHub_BroadcastAndCount(t *testing.T) {
	hub, url := newTestHub(t)
	a := dial(t, url)
	b := dial(t, url)

	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("Count() = %d, want 2", hub.Count())
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Broadcast("botStatus", map[string]string{"state": "online"})
	for _, c := range []*websocket.Conn{a, b} {
		if r := read(t, c); r.Event != "botStatus" {
			t.Errorf("event = %q", r.Event)
		}
	}

	a.Close()
	deadline = time.Now().Add(2 * time.Second)
	for hub.Count() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("Count() after disconnect = %d, want 1", hub.Count())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_CloseRejectsNewChannels(t *testing.T) {
	hub, url := newTestHub(t)
	if err := hub.Close(time.Second); err != nil {
		t.Fatal(err)
	}
	c := dial(t, url)
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := c.ReadMessage(); err == nil {
		t.Error("channel opened after Close should be dropped")
	}
	if hub.Count() != 0 {
		t.Errorf("Count() = %d", hub.Count())
	}
}

func TestHub_CloseWaitsForDispatchesAndStopsTracking(t *testing.T) {
	hub, url := newTestHub(t)
	c := dial(t, url)
	if err := c.WriteJSON(map[string]any{"event": "slow", "callId": "s1"}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("channel never registered")
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(30 * time.Millisecond)

	start := time.Now()
	if err := hub.Close(time.Second); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if waited := time.Since(start); waited < 40*time.Millisecond {
		t.Errorf("Close() returned after %v, before the slow dispatch finished", waited)
	}
	if hub.track() {
		t.Error("track() accepted a dispatch after Close")
	}
}

func TestInbound_PositionalArgs(t *testing.T) {
	in := Inbound{Payload: json.RawMessage(` ["a", 1] `)}
	if args := in.PositionalArgs(); len(args) != 2 {
		t.Errorf("payload array args = %v", args)
	}
	in = Inbound{Payload: json.RawMessage(`{"a":1}`)}
	if args := in.PositionalArgs(); args != nil {
		t.Errorf("object payload should give no args, got %v", args)
	}
}
