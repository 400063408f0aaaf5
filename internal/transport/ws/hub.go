package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/bft-labs/obsrelay/internal/domain"
	"github.com/bft-labs/obsrelay/internal/ports"
)

// Dispatcher runs a named call.
type Dispatcher interface {
	Dispatch(ctx context.Context, call domain.Call) domain.Result
}

// CompositeFunc handles an event outside the catalog.
type CompositeFunc func(ctx context.Context, in Inbound) (any, error)

// Option configures a Hub.
type Option func(*Hub)

// WithOnboarding pushes one QR artifact per url to every new channel.
func WithOnboarding(encoder ports.OnboardingEncoder, urls ...string) Option {
	return func(h *Hub) {
		for _, url := range urls {
			if url == "" {
				continue
			}
			art, err := encoder.Encode(url)
			if err != nil {
				h.logger.Warn("onboarding artifact failed", ports.String("url", url), ports.Err(err))
				continue
			}
			h.onboarding = append(h.onboarding, art)
		}
	}
}

// WithCheckOrigin replaces the default same-origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Hub) { h.upgrader.CheckOrigin = fn }
}

// Hub owns every connected channel.
type Hub struct {
	ctx        context.Context
	dispatcher Dispatcher
	logger     ports.Logger
	upgrader   websocket.Upgrader
	onboarding []ports.OnboardingArtifact

	mu         sync.RWMutex
	composites map[string]CompositeFunc
	channels   map[string]*channel
	closed     bool

	wg sync.WaitGroup
}

// NewHub creates a hub. Dispatches run on ctx, not on the channel that asked,
// so they complete even when the client leaves.
func NewHub(ctx context.Context, dispatcher Dispatcher, logger ports.Logger, opts ...Option) *Hub {
	h := &Hub{
		ctx:        ctx,
		dispatcher: dispatcher,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		composites: make(map[string]CompositeFunc),
		channels:   make(map[string]*channel),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle registers a composite handler. It takes precedence over a catalog
// operation of the same name.
func (h *Hub) Handle(event string, fn CompositeFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.composites[event] = fn
}

// ServeHTTP upgrades the request and serves the channel until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", ports.Err(err))
		return
	}

	c := newChannel(ulid.Make().String(), ws, h.logger)
	if !h.register(c) {
		_ = ws.Close()
		return
	}
	defer h.unregister(c)

	h.logger.Info("channel connected",
		ports.String("channel", c.id),
		ports.String("remote", r.RemoteAddr),
	)
	go c.writeLoop()
	for _, art := range h.onboarding {
		c.send(Outbound{Event: EventOnboarding, Data: art})
	}
	c.readLoop(func(in Inbound) {
		if !h.track() {
			h.logger.Debug("hub closed, frame dropped",
				ports.String("channel", c.id),
				ports.String("event", in.Event))
			return
		}
		go func() {
			defer h.wg.Done()
			h.handle(c, in)
		}()
	})
	c.close()
	h.logger.Info("channel disconnected", ports.String("channel", c.id))
}

// Broadcast sends an event to every channel.
func (h *Hub) Broadcast(event string, data any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.channels {
		c.send(Outbound{Event: event, Data: data})
	}
}

// Count returns the number of connected channels.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels)
}

// Close disconnects every channel and waits for in-flight dispatches up to
// timeout.
func (h *Hub) Close(timeout time.Duration) error {
	h.mu.Lock()
	h.closed = true
	channels := make([]*channel, 0, len(h.channels))
	for _, c := range h.channels {
		channels = append(channels, c)
	}
	h.mu.Unlock()

	for _, c := range channels {
		c.close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return domain.ErrShutdownTimeout
	}
}

func (h *Hub) register(c *channel) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.channels[c.id] = c
	return true
}

// track counts one more in-flight dispatch. Add and Close's Wait never
// overlap: both are ordered by h.mu and the closed flag.
func (h *Hub) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.wg.Add(1)
	return true
}

func (h *Hub) unregister(c *channel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.channels, c.id)
}

func (h *Hub) handle(c *channel, in Inbound) {
	callID := in.CallID
	if callID == "" {
		callID = ulid.Make().String()
	}

	if in.Event == "" {
		c.send(Outbound{Event: EventReply, Data: domain.Result{
			CallID: callID,
			Error:  domain.NewErrorPayload(fmt.Errorf("%w: event name is required", domain.ErrInvalidArgument)),
		}})
		return
	}

	h.mu.RLock()
	composite := h.composites[in.Event]
	h.mu.RUnlock()

	var res domain.Result
	if composite != nil {
		res = h.runComposite(composite, callID, in)
	} else {
		res = h.dispatcher.Dispatch(h.ctx, domain.Call{
			CallID:    callID,
			Operation: in.Event,
			Args:      in.PositionalArgs(),
			Channel:   c.id,
		})
	}
	c.send(Outbound{Event: EventReply, Data: res})
}

func (h *Hub) runComposite(fn CompositeFunc, callID string, in Inbound) (res domain.Result) {
	res = domain.Result{CallID: callID, Operation: in.Event}
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("composite handler panicked", ports.String("event", in.Event), ports.Any("panic", r))
			res.Value = nil
			res.Error = &domain.ErrorPayload{Code: domain.CodeInternal, Message: fmt.Sprintf("%s: internal error", in.Event)}
		}
	}()

	v, err := fn(h.ctx, in)
	if err != nil {
		h.logger.Warn("composite failed", ports.String("event", in.Event), ports.String("call_id", callID), ports.Err(err))
		res.Error = domain.NewErrorPayload(err)
		return res
	}
	res.Value = v
	return res
}

// decodeInbound parses one client frame.
func decodeInbound(data []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Inbound{}, fmt.Errorf("%w: %w", domain.ErrInvalidArgument, err)
	}
	return in, nil
}
