package obsws

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bft-labs/obsrelay/internal/domain"
	"github.com/bft-labs/obsrelay/internal/ports"
)

type mockLogger struct{}

func (mockLogger) Debug(msg string, fields ...ports.Field) {}
func (mockLogger) Info(msg string, fields ...ports.Field)  {}
func (mockLogger) Warn(msg string, fields ...ports.Field)  {}
func (mockLogger) Error(msg string, fields ...ports.Field) {}

// fakeOBS is a minimal obs-websocket server.
type fakeOBS struct {
	password string
	// after Identified, events pushes one event per entry.
	events []string
	// closeAfter closes the socket after this many requests when non-zero.
	closeAfter int
}

const (
	testSalt      = "lM1GncleQOaCu9lT1yeUZhFYnqhsLLP1G5lAGo3ixaI="
	testChallenge = "+IxH4CnCiqpX1rM9scsNynZzbOe4KhDeYcTNS3PDaeY="
)

func (f *fakeOBS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{Subprotocols: []string{subprotocol}}
	ws, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	hello := map[string]any{"obsWebSocketVersion": "5.4.2", "rpcVersion": 1}
	if f.password != "" {
		hello["authentication"] = map[string]string{"challenge": testChallenge, "salt": testSalt}
	}
	send(ws, opHello, hello)

	var ident identifyData
	if readEnvelope(ws, &ident) != opIdentify {
		return
	}
	if f.password != "" && ident.Authentication != authResponse(f.password, testSalt, testChallenge) {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeAuthFailed, "Authentication failed."),
			time.Now().Add(time.Second))
		return
	}
	send(ws, opIdentified, identifiedData{NegotiatedRPCVersion: 1})

	for _, ev := range f.events {
		send(ws, opEvent, eventData{EventType: ev, EventIntent: 1, EventData: json.RawMessage(`{"sceneName":"Live"}`)})
	}

	served := 0
	for {
		var req requestData
		if readEnvelope(ws, &req) != opRequest {
			return
		}
		resp := responseData{RequestType: req.RequestType, RequestID: req.RequestID}
		switch req.RequestType {
		case "GetVersion":
			resp.RequestStatus = requestStatus{Result: true, Code: 100}
			resp.ResponseData = json.RawMessage(`{"obsVersion":"30.1.2"}`)
		default:
			resp.RequestStatus = requestStatus{Result: false, Code: 204, Comment: "Your request type is not valid."}
		}
		send(ws, opRequestResponse, resp)
		served++
		if f.closeAfter > 0 && served >= f.closeAfter {
			return
		}
	}
}

func send(ws *websocket.Conn, op int, d any) {
	msg, _ := marshalEnvelope(op, d)
	_ = ws.WriteMessage(websocket.TextMessage, msg)
}

func readEnvelope(ws *websocket.Conn, out any) int {
	_, data, err := ws.ReadMessage()
	if err != nil {
		return -1
	}
	var env envelope
	if json.Unmarshal(data, &env) != nil {
		return -1
	}
	if json.Unmarshal(env.D, out) != nil {
		return -1
	}
	return env.Op
}

func startFake(t *testing.T, f *fakeOBS) domain.ConnectionParams {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)
	return domain.ConnectionParams{Host: host, Port: port, Password: f.password}
}

func TestAuthResponse(t *testing.T) {
	a := authResponse("supersecretpassword", testSalt, testChallenge)
	b := authResponse("supersecretpassword", testSalt, testChallenge)
	if a != b || a == "" {
		t.Fatalf("authResponse not deterministic: %q %q", a, b)
	}
	if authResponse("other", testSalt, testChallenge) == a {
		t.Error("different passwords produced the same response")
	}
}

func TestDial_WithPasswordAndCall(t *testing.T) {
	params := startFake(t, &fakeOBS{password: "supersecretpassword"})

	conn, info, err := NewDialer(mockLogger{}).Dial(context.Background(), params)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if info.ServerVersion != "5.4.2" || info.RPCVersion != 1 || info.Port != params.Port {
		t.Errorf("info = %+v", info)
	}

	raw, err := conn.Call(context.Background(), "GetVersion", nil)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if string(raw) != `{"obsVersion":"30.1.2"}` {
		t.Errorf("Call() = %s", raw)
	}

	_, err = conn.Call(context.Background(), "Bogus", map[string]any{"x": 1})
	var remote *domain.RemoteError
	if !errors.As(err, &remote) || remote.Code != 204 {
		t.Fatalf("Call(Bogus) error = %v, want RemoteError 204", err)
	}
	if !errors.Is(err, domain.ErrRemote) {
		t.Errorf("RemoteError should unwrap to ErrRemote")
	}
}

func TestDial_WrongPassword(t *testing.T) {
	params := startFake(t, &fakeOBS{password: "right"})
	params.Password = "wrong"

	_, _, err := NewDialer(mockLogger{}).Dial(context.Background(), params)
	if !errors.Is(err, domain.ErrAuthFailed) {
		t.Fatalf("Dial() error = %v, want ErrAuthFailed", err)
	}
}

func TestDial_MissingPassword(t *testing.T) {
	params := startFake(t, &fakeOBS{password: "right"})
	params.Password = ""

	_, _, err := NewDialer(mockLogger{}).Dial(context.Background(), params)
	if !errors.Is(err, domain.ErrAuthFailed) {
		t.Fatalf("Dial() error = %v, want ErrAuthFailed", err)
	}
}

func TestDial_Refused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err = NewDialer(mockLogger{}).Dial(ctx, domain.ConnectionParams{Host: "127.0.0.1", Port: port})
	if !errors.Is(err, domain.ErrConnect) || errors.Is(err, domain.ErrAuthFailed) {
		t.Fatalf("Dial() error = %v, want ErrConnect", err)
	}
}

func TestConn_EventsAndDrop(t *testing.T) {
	params := startFake(t, &fakeOBS{events: []string{"CurrentProgramSceneChanged"}, closeAfter: 1})

	conn, _, err := NewDialer(mockLogger{}).Dial(context.Background(), params)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	select {
	case ev := <-conn.Events():
		if ev.Type != "CurrentProgramSceneChanged" || !strings.Contains(string(ev.Data), "Live") {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
	}

	if _, err := conn.Call(context.Background(), "GetVersion", nil); err != nil {
		t.Fatal(err)
	}
	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("drop not detected")
	}
	if conn.Err() == nil {
		t.Error("Err() should explain the drop")
	}
	if _, err := conn.Call(context.Background(), "GetVersion", nil); !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("Call() after drop = %v, want ErrNotConnected", err)
	}
}

func TestConn_CloseIsIdempotent(t *testing.T) {
	params := startFake(t, &fakeOBS{})
	conn, _, err := NewDialer(mockLogger{}).Dial(context.Background(), params)
	if err != nil {
		t.Fatal(err)
	}
	_ = conn.Close()
	_ = conn.Close()
	select {
	case <-conn.Done():
	default:
		t.Fatal("Done not closed")
	}
	if conn.Err() != nil {
		t.Errorf("Err() after Close = %v, want nil", conn.Err())
	}
}
