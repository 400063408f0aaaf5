package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bft-labs/obsrelay/internal/domain"
	"github.com/bft-labs/obsrelay/internal/ports"
)

// fakeConn is an in-memory ports.ControlConn.
type fakeConn struct {
	mu       sync.Mutex
	handlers map[string]func(data any) (json.RawMessage, error)
	calls    []string
	events   chan domain.RemoteEvent
	done     chan struct{}
	err      error
	closed   bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		handlers: make(map[string]func(any) (json.RawMessage, error)),
		events:   make(chan domain.RemoteEvent, 8),
		done:     make(chan struct{}),
	}
}

func (c *fakeConn) handle(requestType string, fn func(data any) (json.RawMessage, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[requestType] = fn
}

func (c *fakeConn) Call(ctx context.Context, requestType string, data any) (json.RawMessage, error) {
	c.mu.Lock()
	c.calls = append(c.calls, requestType)
	fn := c.handlers[requestType]
	c.mu.Unlock()
	if fn == nil {
		return json.RawMessage(`{}`), nil
	}
	return fn(data)
}

func (c *fakeConn) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *fakeConn) Events() <-chan domain.RemoteEvent { return c.events }
func (c *fakeConn) Done() <-chan struct{}             { return c.done }

func (c *fakeConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *fakeConn) Close() error {
	c.drop(nil)
	return nil
}

// drop ends the connection as if the remote went away.
func (c *fakeConn) drop(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.err = err
	close(c.done)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeDialer hands out fakeConns. gate, when set, blocks Dial until closed.
type fakeDialer struct {
	mu     sync.Mutex
	dials  atomic.Int32
	params []domain.ConnectionParams
	conns  []*fakeConn
	gate   chan struct{}
	err    error
	setup  func(*fakeConn)
}

func (d *fakeDialer) Dial(ctx context.Context, params domain.ConnectionParams) (ports.ControlConn, domain.ConnectionInfo, error) {
	d.dials.Add(1)
	d.mu.Lock()
	d.params = append(d.params, params)
	gate, err := d.gate, d.err
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, domain.ConnectionInfo{}, ctx.Err()
		}
	}
	if err != nil {
		return nil, domain.ConnectionInfo{}, err
	}
	conn := newFakeConn()
	if d.setup != nil {
		d.setup(conn)
	}
	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.mu.Unlock()
	return conn, domain.ConnectionInfo{ServerVersion: "5.0.0", RPCVersion: 1}, nil
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) dialedParams() []domain.ConnectionParams {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.ConnectionParams(nil), d.params...)
}

// memRepo is an in-memory ports.ParamsRepository.
type memRepo struct {
	mu     sync.Mutex
	params domain.ConnectionParams
	ok     bool
	saves  int
}

func (r *memRepo) Load(ctx context.Context) (domain.ConnectionParams, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.params, r.ok, nil
}

func (r *memRepo) Save(ctx context.Context, params domain.ConnectionParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.params, r.ok = params, true
	r.saves++
	return nil
}

func (r *memRepo) saved() (domain.ConnectionParams, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.params, r.saves
}

var errRefused = errors.New("connection refused")

func jsonResponse(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal fake response: %w", err)
	}
	return b, nil
}
