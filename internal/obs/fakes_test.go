package obs

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/bft-labs/obsrelay/internal/domain"
	"github.com/bft-labs/obsrelay/internal/ports"
)

type mockLogger struct{}

func (mockLogger) Debug(msg string, fields ...ports.Field) {}
func (mockLogger) Info(msg string, fields ...ports.Field)  {}
func (mockLogger) Warn(msg string, fields ...ports.Field)  {}
func (mockLogger) Error(msg string, fields ...ports.Field) {}

type sentRequest struct {
	Type string
	Data map[string]any
}

// fakeRemote answers requests from handlers keyed by request type. Types
// without a handler answer with an empty object.
type fakeRemote struct {
	mu       sync.Mutex
	state    domain.SessionState
	requests []sentRequest
	handlers map[string]func(data map[string]any) (any, error)
	switched []domain.ConnectionParams
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		state:    domain.StateConnected,
		handlers: make(map[string]func(map[string]any) (any, error)),
	}
}

func (f *fakeRemote) State() domain.SessionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeRemote) on(requestType string, fn func(data map[string]any) (any, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[requestType] = fn
}

func (f *fakeRemote) Call(ctx context.Context, requestType string, data any) (json.RawMessage, error) {
	var fields map[string]any
	if data != nil {
		b, _ := json.Marshal(data)
		_ = json.Unmarshal(b, &fields)
	}

	f.mu.Lock()
	if f.state != domain.StateConnected {
		f.mu.Unlock()
		return nil, domain.ErrNotConnected
	}
	f.requests = append(f.requests, sentRequest{Type: requestType, Data: fields})
	h := f.handlers[requestType]
	f.mu.Unlock()

	if h == nil {
		return json.RawMessage(`{}`), nil
	}
	v, err := h(fields)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(v)
	return b, err
}

func (f *fakeRemote) Switch(ctx context.Context, params domain.ConnectionParams) (domain.ConnectionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switched = append(f.switched, params)
	return domain.ConnectionInfo{RPCVersion: 1, Host: params.Host, Port: params.Port}, nil
}

func (f *fakeRemote) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.Type
	}
	return out
}

func (f *fakeRemote) byType(requestType string) []sentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentRequest
	for _, r := range f.requests {
		if r.Type == requestType {
			out = append(out, r)
		}
	}
	return out
}

// stateGuard passes when the remote is connected.
type stateGuard struct {
	remote *fakeRemote
	calls  int
	mu     sync.Mutex
}

func (g *stateGuard) EnsureConnected(ctx context.Context) error {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.remote.State() != domain.StateConnected {
		return domain.ErrConnectionUnavailable
	}
	return nil
}
