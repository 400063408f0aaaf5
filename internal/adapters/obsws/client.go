package obsws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/bft-labs/obsrelay/internal/domain"
	"github.com/bft-labs/obsrelay/internal/ports"
)

// DefaultHandshakeTimeout bounds Dial when ctx carries no deadline.
const DefaultHandshakeTimeout = 10 * time.Second

// Dialer connects to obs-websocket.
type Dialer struct {
	HandshakeTimeout time.Duration
	EventBuffer      int

	ws     *websocket.Dialer
	logger ports.Logger
}

// NewDialer creates a Dialer.
func NewDialer(logger ports.Logger) *Dialer {
	return &Dialer{
		HandshakeTimeout: DefaultHandshakeTimeout,
		EventBuffer:      64,
		ws: &websocket.Dialer{
			Subprotocols:     []string{subprotocol},
			HandshakeTimeout: DefaultHandshakeTimeout,
		},
		logger: logger,
	}
}

// Dial opens the socket and runs Hello / Identify / Identified.
func (d *Dialer) Dial(ctx context.Context, params domain.ConnectionParams) (ports.ControlConn, domain.ConnectionInfo, error) {
	params = params.WithDefaults()
	if _, ok := ctx.Deadline(); !ok && d.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.HandshakeTimeout)
		defer cancel()
	}

	ws, _, err := d.ws.DialContext(ctx, params.URL(), nil)
	if err != nil {
		return nil, domain.ConnectionInfo{}, fmt.Errorf("%w: dial %s: %w", domain.ErrConnect, params.Address(), err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = ws.SetReadDeadline(deadline)
		_ = ws.SetWriteDeadline(deadline)
	}

	info, err := d.handshake(ws, params)
	if err != nil {
		_ = ws.Close()
		return nil, domain.ConnectionInfo{}, err
	}
	_ = ws.SetReadDeadline(time.Time{})
	_ = ws.SetWriteDeadline(time.Time{})

	c := newConn(ws, d.EventBuffer, d.logger)
	go c.readLoop()

	d.logger.Info("obs-websocket identified",
		ports.String("address", params.Address()),
		ports.String("server_version", info.ServerVersion),
		ports.Int("rpc_version", info.RPCVersion),
	)
	return c, info, nil
}

func (d *Dialer) handshake(ws *websocket.Conn, params domain.ConnectionParams) (domain.ConnectionInfo, error) {
	var hello helloData
	if err := readOp(ws, opHello, &hello); err != nil {
		return domain.ConnectionInfo{}, fmt.Errorf("%w: hello: %w", domain.ErrConnect, err)
	}

	ident := identifyData{RPCVersion: rpcVersion, EventSubscriptions: subscribeAll}
	if hello.Authentication != nil {
		if !params.HasPassword() {
			return domain.ConnectionInfo{}, fmt.Errorf("%w: server requires a password", domain.ErrAuthFailed)
		}
		ident.Authentication = authResponse(params.Password, hello.Authentication.Salt, hello.Authentication.Challenge)
	}
	msg, err := marshalEnvelope(opIdentify, ident)
	if err != nil {
		return domain.ConnectionInfo{}, fmt.Errorf("%w: %w", domain.ErrConnect, err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
		return domain.ConnectionInfo{}, fmt.Errorf("%w: identify: %w", domain.ErrConnect, err)
	}

	var identified identifiedData
	if err := readOp(ws, opIdentified, &identified); err != nil {
		if websocket.IsCloseError(err, closeAuthFailed) {
			return domain.ConnectionInfo{}, fmt.Errorf("%w: %w", domain.ErrAuthFailed, err)
		}
		return domain.ConnectionInfo{}, fmt.Errorf("%w: identify: %w", domain.ErrConnect, err)
	}

	return domain.ConnectionInfo{
		ServerVersion: hello.ObsWebSocketVersion,
		RPCVersion:    identified.NegotiatedRPCVersion,
		Host:          params.Host,
		Port:          params.Port,
	}, nil
}

// readOp reads one message and requires it to carry op.
func readOp(ws *websocket.Conn, op int, out any) error {
	_, data, err := ws.ReadMessage()
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if env.Op != op {
		return fmt.Errorf("unexpected op %d, want %d", env.Op, op)
	}
	return json.Unmarshal(env.D, out)
}

// conn is one identified connection.
type conn struct {
	ws     *websocket.Conn
	logger ports.Logger
	events chan domain.RemoteEvent
	done   chan struct{}

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan responseData
	err     error
	closing bool
	closed  bool
}

func newConn(ws *websocket.Conn, buffer int, logger ports.Logger) *conn {
	return &conn{
		ws:      ws,
		logger:  logger,
		events:  make(chan domain.RemoteEvent, buffer),
		done:    make(chan struct{}),
		pending: make(map[string]chan responseData),
	}
}

func (c *conn) Events() <-chan domain.RemoteEvent { return c.events }
func (c *conn) Done() <-chan struct{}             { return c.done }

func (c *conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Call sends one request and waits for its response.
func (c *conn) Call(ctx context.Context, requestType string, data any) (json.RawMessage, error) {
	id := ulid.Make().String()
	ch := make(chan responseData, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", requestType, domain.ErrNotConnected)
	}
	c.pending[id] = ch
	c.mu.Unlock()
	defer c.forget(id)

	msg, err := marshalEnvelope(opRequest, requestData{RequestType: requestType, RequestID: id, RequestData: data})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", requestType, err)
	}
	if err := c.write(ctx, msg); err != nil {
		return nil, fmt.Errorf("send %s: %w", requestType, err)
	}

	select {
	case resp := <-ch:
		if !resp.RequestStatus.Result {
			return nil, &domain.RemoteError{
				RequestType: requestType,
				Code:        resp.RequestStatus.Code,
				Comment:     resp.RequestStatus.Comment,
			}
		}
		return resp.ResponseData, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", requestType, ctx.Err())
	case <-c.done:
		return nil, fmt.Errorf("%s: %w: connection closed", requestType, domain.ErrNotConnected)
	}
}

// Close sends a normal closure and tears the socket down.
func (c *conn) Close() error {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	c.shutdown(nil)
	return nil
}

func (c *conn) write(ctx context.Context, msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultHandshakeTimeout)
	}
	_ = c.ws.SetWriteDeadline(deadline)
	return c.ws.WriteMessage(websocket.TextMessage, msg)
}

func (c *conn) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *conn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = fmt.Errorf("remote closed: %w", err)
			}
			c.shutdown(err)
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("undecodable obs message", ports.Err(err))
			continue
		}
		switch env.Op {
		case opRequestResponse:
			var resp responseData
			if err := json.Unmarshal(env.D, &resp); err != nil {
				c.logger.Warn("undecodable request response", ports.Err(err))
				continue
			}
			c.mu.Lock()
			ch := c.pending[resp.RequestID]
			c.mu.Unlock()
			if ch != nil {
				ch <- resp
			}
		case opEvent:
			var ev eventData
			if err := json.Unmarshal(env.D, &ev); err != nil {
				c.logger.Warn("undecodable event", ports.Err(err))
				continue
			}
			select {
			case c.events <- domain.RemoteEvent{Type: ev.EventType, Data: ev.EventData}:
			case <-c.done:
				return
			}
		default:
			c.logger.Debug("ignored obs message", ports.Int("op", env.Op))
		}
	}
}

// shutdown records why the connection ended and closes done once.
func (c *conn) shutdown(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if err != nil && !c.closing && !errors.Is(err, websocket.ErrCloseSent) {
		c.err = err
	}
	c.mu.Unlock()

	close(c.done)
	_ = c.ws.Close()
}
