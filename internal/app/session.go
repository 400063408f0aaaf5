package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/bft-labs/obsrelay/internal/domain"
	"github.com/bft-labs/obsrelay/internal/ports"
)

// Remote events the session reacts to.
const (
	EventExitStarted         = "ExitStarted"
	EventProgramSceneChanged = "CurrentProgramSceneChanged"
)

// LifecycleListener is notified about session lifecycle changes.
// Callbacks run on the session's goroutines and must return quickly.
type LifecycleListener interface {
	OnConnected(info domain.ConnectionInfo)
	OnLost(reason string)
}

// ListenerFuncs adapts plain functions to LifecycleListener. Nil fields are skipped.
type ListenerFuncs struct {
	Connected func(info domain.ConnectionInfo)
	Lost      func(reason string)
}

func (f ListenerFuncs) OnConnected(info domain.ConnectionInfo) {
	if f.Connected != nil {
		f.Connected(info)
	}
}

func (f ListenerFuncs) OnLost(reason string) {
	if f.Lost != nil {
		f.Lost(reason)
	}
}

// Session owns the single logical connection to the remote control endpoint.
type Session struct {
	dialer   ports.ControlDialer
	repo     ports.ParamsRepository
	logger   ports.Logger
	defaults domain.ConnectionParams

	mu        sync.Mutex
	state     domain.SessionState
	params    domain.ConnectionParams
	info      domain.ConnectionInfo
	conn      ports.ControlConn
	gen       uint64
	inflight  *connectCall
	stopWatch chan struct{}
	listeners []LifecycleListener
}

// connectCall is the single in-flight handshake shared by concurrent Connect callers.
type connectCall struct {
	params domain.ConnectionParams
	done   chan struct{}
	info   domain.ConnectionInfo
	err    error
}

// NewSession creates a disconnected session. defaults are used by ConnectLast
// when the repository holds nothing yet.
func NewSession(dialer ports.ControlDialer, repo ports.ParamsRepository, defaults domain.ConnectionParams, logger ports.Logger) *Session {
	return &Session{
		dialer:   dialer,
		repo:     repo,
		logger:   logger,
		defaults: defaults.WithDefaults(),
		params:   defaults.WithDefaults(),
		state:    domain.StateDisconnected,
	}
}

// Subscribe registers a lifecycle listener.
func (s *Session) Subscribe(l LifecycleListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// State returns the current session state.
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Params returns the parameters of the current or most recent connection.
func (s *Session) Params() domain.ConnectionParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.StateConnecting && s.inflight != nil {
		return s.inflight.params
	}
	return s.params
}

// Info returns the handshake info of the established connection.
func (s *Session) Info() (domain.ConnectionInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info, s.state == domain.StateConnected
}

// Connect establishes the connection with params. A call made while another
// handshake is in flight waits for that handshake and returns its outcome; a
// call made while connected returns the established connection unchanged.
func (s *Session) Connect(ctx context.Context, params domain.ConnectionParams) (domain.ConnectionInfo, error) {
	s.mu.Lock()
	switch s.state {
	case domain.StateConnected:
		info := s.info
		s.mu.Unlock()
		return info, nil
	case domain.StateConnecting:
		c := s.inflight
		s.mu.Unlock()
		s.logger.Debug("connect already in flight", ports.String("address", c.params.Address()))
		return c.wait(ctx)
	}

	params = params.WithDefaults()
	c := &connectCall{params: params, done: make(chan struct{})}
	s.inflight = c
	s.state = domain.StateConnecting
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	s.logger.Info("connecting",
		ports.String("address", params.Address()),
		ports.Bool("auth", params.HasPassword()),
	)

	conn, info, err := s.dialer.Dial(ctx, params)
	if err == nil {
		info.Host, info.Port = params.Host, params.Port
	}

	s.mu.Lock()
	if gen != s.gen {
		// Disconnect ran during the handshake.
		s.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		c.finish(domain.ConnectionInfo{}, fmt.Errorf("%w: disconnected during handshake", domain.ErrConnect))
		return c.info, c.err
	}
	s.inflight = nil
	if err != nil {
		s.state = domain.StateDisconnected
		s.mu.Unlock()

		err = classifyConnectError(err)
		s.logger.Error("connect failed", ports.String("address", params.Address()), ports.Err(err))
		c.finish(domain.ConnectionInfo{}, err)
		return domain.ConnectionInfo{}, err
	}
	stop := make(chan struct{})
	s.state = domain.StateConnected
	s.conn = conn
	s.params = params
	s.info = info
	s.stopWatch = stop
	listeners := append([]LifecycleListener(nil), s.listeners...)
	s.mu.Unlock()

	c.finish(info, nil)
	s.logger.Info("connected",
		ports.String("address", params.Address()),
		ports.String("server_version", info.ServerVersion),
		ports.Int("rpc_version", info.RPCVersion),
	)

	if s.repo != nil {
		if err := s.repo.Save(ctx, params); err != nil {
			s.logger.Warn("failed to persist connection params", ports.Err(err))
		}
	}

	go s.watch(gen, conn, stop)

	for _, l := range listeners {
		l.OnConnected(info)
	}
	return info, nil
}

// ConnectLast connects with the last persisted parameters, falling back to
// the configured defaults when nothing was persisted.
func (s *Session) ConnectLast(ctx context.Context) (domain.ConnectionInfo, error) {
	return s.Connect(ctx, s.LastKnown(ctx))
}

// LastKnown returns the persisted parameters or the defaults.
func (s *Session) LastKnown(ctx context.Context) domain.ConnectionParams {
	if s.repo == nil {
		return s.defaults
	}
	params, ok, err := s.repo.Load(ctx)
	if err != nil {
		s.logger.Warn("failed to load connection params", ports.Err(err))
		return s.defaults
	}
	if !ok {
		return s.defaults
	}
	return params.WithDefaults()
}

// Switch connects with params, dropping the current connection first when it
// is bound to different parameters. A handshake already in flight is joined
// whatever its parameters: only one handshake runs at a time.
func (s *Session) Switch(ctx context.Context, params domain.ConnectionParams) (domain.ConnectionInfo, error) {
	params = params.WithDefaults()

	s.mu.Lock()
	switch s.state {
	case domain.StateConnecting:
		c := s.inflight
		s.mu.Unlock()
		if c.params != params {
			s.logger.Debug("switch joins handshake in flight",
				ports.String("address", c.params.Address()),
				ports.String("requested", params.Address()))
		}
		return c.wait(ctx)
	case domain.StateConnected:
		differs := s.params != params
		s.mu.Unlock()
		if differs {
			s.logger.Info("switching endpoint", ports.String("address", params.Address()))
			s.Disconnect()
		}
	default:
		s.mu.Unlock()
	}
	return s.Connect(ctx, params)
}

// Disconnect drops the connection. It is idempotent and never fails.
// Listeners are not notified: an explicit disconnect is not a loss.
func (s *Session) Disconnect() {
	s.mu.Lock()
	prev := s.state
	conn := s.conn
	s.gen++
	s.conn = nil
	s.inflight = nil
	s.info = domain.ConnectionInfo{}
	if s.stopWatch != nil {
		close(s.stopWatch)
		s.stopWatch = nil
	}
	s.state = domain.StateDisconnected
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if prev != domain.StateDisconnected {
		s.logger.Info("disconnected", ports.String("previous", prev.String()))
	}
}

// Call performs exactly one remote request. It fails fast with
// ErrNotConnected outside the Connected state.
func (s *Session) Call(ctx context.Context, requestType string, data any) (json.RawMessage, error) {
	s.mu.Lock()
	conn := s.conn
	state := s.state
	s.mu.Unlock()

	if state != domain.StateConnected || conn == nil {
		return nil, fmt.Errorf("%s: %w", requestType, domain.ErrNotConnected)
	}
	return conn.Call(ctx, requestType, data)
}

// CallInto performs Call and decodes the response into out when out is non-nil.
func (s *Session) CallInto(ctx context.Context, requestType string, data any, out any) error {
	raw, err := s.Call(ctx, requestType, data)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", requestType, err)
	}
	return nil
}

// watch follows one connection until it ends or the session drops it.
func (s *Session) watch(gen uint64, conn ports.ControlConn, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-conn.Done():
			s.lost(gen, lostReason(conn.Err(), "connection closed"))
			return
		case ev, ok := <-conn.Events():
			if !ok {
				s.lost(gen, lostReason(conn.Err(), "event stream closed"))
				return
			}
			switch ev.Type {
			case EventExitStarted:
				s.lost(gen, "remote shutdown")
				return
			case EventProgramSceneChanged:
				var data struct {
					SceneName string `json:"sceneName"`
				}
				_ = json.Unmarshal(ev.Data, &data)
				s.logger.Info("program scene changed", ports.String("scene", data.SceneName))
			default:
				s.logger.Debug("remote event", ports.String("type", ev.Type))
			}
		}
	}
}

func (s *Session) lost(gen uint64, reason string) {
	s.mu.Lock()
	if gen != s.gen || s.state != domain.StateConnected {
		s.mu.Unlock()
		return
	}
	conn := s.conn
	s.conn = nil
	s.stopWatch = nil
	s.info = domain.ConnectionInfo{}
	s.state = domain.StateDisconnected
	listeners := append([]LifecycleListener(nil), s.listeners...)
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	s.logger.Warn("connection lost", ports.String("reason", reason))
	for _, l := range listeners {
		l.OnLost(reason)
	}
}

func (c *connectCall) finish(info domain.ConnectionInfo, err error) {
	c.info, c.err = info, err
	close(c.done)
}

func (c *connectCall) wait(ctx context.Context) (domain.ConnectionInfo, error) {
	select {
	case <-c.done:
		return c.info, c.err
	case <-ctx.Done():
		return domain.ConnectionInfo{}, fmt.Errorf("%w: %w", domain.ErrConnect, ctx.Err())
	}
}

func classifyConnectError(err error) error {
	if errors.Is(err, domain.ErrAuthFailed) || errors.Is(err, domain.ErrConnect) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrConnect, err)
}

func lostReason(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
