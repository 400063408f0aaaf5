package obsrelay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/obsrelay/internal/adapters/botproc"
	"github.com/bft-labs/obsrelay/internal/adapters/fs"
	"github.com/bft-labs/obsrelay/internal/adapters/obsws"
	"github.com/bft-labs/obsrelay/internal/adapters/osc"
	"github.com/bft-labs/obsrelay/internal/adapters/qr"
	"github.com/bft-labs/obsrelay/internal/app"
	"github.com/bft-labs/obsrelay/internal/domain"
	"github.com/bft-labs/obsrelay/internal/obs"
	"github.com/bft-labs/obsrelay/internal/ports"
	"github.com/bft-labs/obsrelay/internal/transport/httpapi"
	"github.com/bft-labs/obsrelay/internal/transport/ws"
	"github.com/bft-labs/obsrelay/pkg/log"
)

// closeTimeout bounds each teardown step during Stop.
const closeTimeout = 5 * time.Second

// Relay serves the OBS control surface to WebSocket and HTTP clients.
// Use New() to create an instance, then Start() to begin serving.
type Relay struct {
	config    Config
	opts      options
	lifecycle *app.Lifecycle
	logger    ports.Logger
	emitter   *eventEmitterWrapper

	session  *app.Session
	guard    *app.Guard
	store    *fs.StateFileStore
	launcher ports.BotLauncher
	chat     ports.ChatSender
	encoder  ports.OnboardingEncoder

	mu       sync.RWMutex
	services *services
}

// services are the components bound to one Start/Stop cycle.
type services struct {
	controller *obs.Controller
	catalog    *app.Catalog
	bot        *app.BotSupervisor
	commands   *app.CommandRelay
	reconnect  *app.Reconnector
	hub        *ws.Hub
	server     *httpapi.Server
	listener   *osc.Listener
	plugins    []Plugin
}

// New creates a Relay in StateStopped. Returns an error if configuration is
// invalid or an adapter cannot be built from it.
func New(cfg Config, opts ...Option) (*Relay, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger

	dialer := o.dialer
	if dialer == nil {
		dialer = obsws.NewDialer(component(logger, "obsws"))
	}

	launcher := o.launcher
	if launcher == nil && cfg.BotCommand != "" {
		l, err := botproc.NewLauncher(cfg.BotCommand, component(logger, "bot"))
		if err != nil {
			return nil, fmt.Errorf("%w: bot command: %v", domain.ErrInvalidConfig, err)
		}
		launcher = l
	}

	chat := o.chat
	if chat == nil && cfg.OSCTarget != "" {
		c, err := osc.NewChatClient(cfg.OSCTarget, component(logger, "osc"))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
		}
		chat = c
	}

	var encoder ports.OnboardingEncoder
	if !o.noOnboarding && len(cfg.OnboardingURLs) > 0 {
		encoder = qr.NewEncoder()
	}

	emitter := &eventEmitterWrapper{handler: o.eventHandler}
	session := app.NewSession(dialer, fs.NewParamsFileRepository(cfg.StateDir), cfg.OBS(), component(logger, "session"))

	r := &Relay{
		config:    cfg,
		opts:      o,
		lifecycle: app.NewLifecycle(logger, emitter),
		logger:    logger,
		emitter:   emitter,
		session:   session,
		guard:     app.NewGuard(session, cfg.guard(), component(logger, "guard")),
		store:     fs.NewStateFileStore(cfg.StateDir),
		launcher:  launcher,
		chat:      chat,
		encoder:   encoder,
	}
	session.Subscribe(app.ListenerFuncs{Connected: r.onConnected, Lost: r.onLost})
	return r, nil
}

// Start binds the listeners and begins connecting to OBS in the background.
// Returns an error if already running or if a listener cannot be bound.
// The provided context bounds the lifetime of the relay.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := r.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.lifecycle.SetCancel(cancel)

	svc, err := r.build(runCtx)
	if err != nil {
		cancel()
		if svc != nil {
			r.teardown(svc)
		}
		_ = r.lifecycle.TransitionTo(app.StateCrashed, err.Error())
		return err
	}
	r.services = svc

	if err := r.lifecycle.TransitionTo(app.StateRunning, "listeners ready"); err != nil {
		return err
	}

	r.lifecycle.Go(func() {
		if _, err := r.session.ConnectLast(runCtx); err != nil {
			r.logger.Warn("initial obs connection failed", ports.Err(err))
			if svc.reconnect != nil && runCtx.Err() == nil {
				svc.reconnect.Failed(err)
			}
		}
	})
	return nil
}

// build wires every component of one run. On error the partially built
// services are returned for teardown.
func (r *Relay) build(ctx context.Context) (*services, error) {
	cfg := r.config
	logger := r.logger
	svc := &services{}

	svc.controller = obs.NewController(ctx, r.session, r.guard, obs.DefaultConfig(), component(logger, "obs"))

	var botControl obs.BotControl
	if r.launcher != nil {
		svc.bot = app.NewBotSupervisor(ctx, r.launcher, cfg.policy(), component(logger, "bot"))
		svc.commands = app.NewCommandRelay(svc.bot, svc.bot.Online, cfg.relay(), component(logger, "relay"))
		botControl = svc.bot
	}

	svc.catalog = app.NewCatalog()
	if err := obs.Register(svc.catalog, svc.controller, botControl); err != nil {
		return svc, err
	}
	svc.catalog.Seal()
	dispatcher := app.NewDispatcher(svc.catalog, component(logger, "dispatch"))

	var hubOpts []ws.Option
	if r.encoder != nil {
		hubOpts = append(hubOpts, ws.WithOnboarding(r.encoder, cfg.OnboardingURLs...))
	}
	svc.hub = ws.NewHub(ctx, dispatcher, component(logger, "ws"), hubOpts...)
	svc.hub.Handle(ws.EventConnect, ws.ConnectHandler(r.session))
	svc.hub.Handle(ws.EventChangeVolume, ws.VolumeHandler(svc.controller))
	svc.hub.Handle(ws.EventCatalog, ws.CatalogHandler(svc.catalog))

	deps := httpapi.Deps{
		State:   r.store,
		Catalog: svc.catalog,
		Session: r.session,
		Logger:  component(logger, "http"),
	}
	if svc.bot != nil {
		deps.Bot = svc.bot
		deps.Relay = svc.commands
	}
	if r.chat != nil {
		deps.Events = app.NewEventRelay(r.chat, cfg.EventDelay, component(logger, "events"))
	}
	api := httpapi.New(deps)
	api.Mount("/ws", svc.hub)

	if cfg.AutoReconnect {
		svc.reconnect = app.NewReconnector(ctx, "obs", cfg.policy(), func(ctx context.Context) error {
			_, err := r.session.ConnectLast(ctx)
			return err
		}, component(logger, "reconnect"))
	}

	if cfg.OSCListen != "" {
		svc.listener = osc.NewListener(cfg.OSCListen, r.oscHandler(svc.hub), component(logger, "osc"))
		if _, err := svc.listener.Listen(); err != nil {
			return svc, err
		}
		listener := svc.listener
		r.lifecycle.Go(func() {
			if err := listener.Serve(); err != nil {
				r.logger.Error("osc listener stopped", ports.Err(err))
			}
		})
	}

	svc.server = httpapi.NewServer(api, cfg.HTTPAddr, cfg.HTTPSAddr, cfg.TLSCertFile, cfg.TLSKeyFile, component(logger, "http"))
	errs := make(chan error, 2)
	if err := svc.server.Start(errs); err != nil {
		svc.server = nil
		return svc, err
	}
	r.lifecycle.Go(func() { r.watchServer(ctx, errs) })

	pluginCfg := PluginConfig{
		ConfigPath: cfg.ConfigPath,
		StateDir:   cfg.StateDir,
		Logger:     logger,
		OBS:        r,
	}
	for _, p := range r.opts.plugins {
		if err := p.Initialize(ctx, pluginCfg); err != nil {
			r.logger.Error("plugin initialization failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
			return svc, fmt.Errorf("plugin %s: %w", p.Name(), err)
		}
		svc.plugins = append(svc.plugins, p)
		r.logger.Info("plugin initialized", ports.String("plugin", p.Name()))
	}
	return svc, nil
}

// watchServer crashes the relay when a listener fails while running.
func (r *Relay) watchServer(ctx context.Context, errs <-chan error) {
	select {
	case <-ctx.Done():
	case err := <-errs:
		r.logger.Error("http listener failed", ports.Err(err))
		r.mu.Lock()
		if r.lifecycle.TransitionTo(app.StateCrashed, err.Error()) != nil {
			r.mu.Unlock()
			return
		}
		svc := r.services
		r.services = nil
		r.mu.Unlock()

		r.lifecycle.Cancel()
		if svc != nil {
			r.teardown(svc)
		}
		r.session.Disconnect()
	}
}

// Stop shuts down listeners, the bot and the OBS session.
// Returns nil on graceful shutdown, ErrShutdownTimeout if forced.
func (r *Relay) Stop() error {
	r.mu.Lock()
	if !r.lifecycle.CanStop() {
		r.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := r.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		r.mu.Unlock()
		return err
	}
	svc := r.services
	r.services = nil
	r.mu.Unlock()

	r.lifecycle.Cancel()
	if svc != nil {
		r.teardown(svc)
	}
	r.session.Disconnect()

	err := r.lifecycle.WaitWithTimeout(app.ShutdownTimeout)
	if err != nil {
		_ = r.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = r.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

func (r *Relay) teardown(svc *services) {
	if svc.reconnect != nil {
		svc.reconnect.Stop()
	}
	if svc.commands != nil {
		svc.commands.Close()
	}
	if svc.bot != nil {
		if err := svc.bot.Stop(); err != nil && !errors.Is(err, domain.ErrBotNotRunning) {
			r.logger.Warn("bot stop failed", ports.Err(err))
		}
	}
	if svc.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		if err := svc.server.Shutdown(ctx); err != nil {
			r.logger.Warn("http shutdown failed", ports.Err(err))
		}
		cancel()
	}
	if svc.hub != nil {
		if err := svc.hub.Close(closeTimeout); err != nil {
			r.logger.Warn("websocket hub did not drain", ports.Err(err))
		}
	}
	if svc.listener != nil {
		if err := svc.listener.Close(); err != nil {
			r.logger.Warn("osc listener close failed", ports.Err(err))
		}
	}
	if svc.controller != nil {
		svc.controller.Close()
	}

	ctx := context.Background()
	for i := len(svc.plugins) - 1; i >= 0; i-- {
		p := svc.plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			r.logger.Error("plugin shutdown failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
		} else {
			r.logger.Info("plugin shutdown complete", ports.String("plugin", p.Name()))
		}
	}
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (r *Relay) Status() State {
	return r.lifecycle.State()
}

// Addrs returns the bound HTTP listener addresses while running.
func (r *Relay) Addrs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.services == nil || r.services.server == nil {
		return nil
	}
	return r.services.server.Addrs()
}

// Connected reports whether the OBS session is established.
func (r *Relay) Connected() bool {
	return r.session.State() == domain.StateConnected
}

// SwitchOBS rebinds the session to params and persists them on success.
func (r *Relay) SwitchOBS(ctx context.Context, params OBSParams) error {
	_, err := r.session.Switch(ctx, params)
	return err
}

// CurrentOBS returns the parameters of the current or last known session.
func (r *Relay) CurrentOBS() OBSParams {
	if p := r.session.Params(); p.Host != "" {
		return p
	}
	return r.session.LastKnown(context.Background())
}

// ResumeReconnect restarts OBS reconnection after the attempt ceiling was
// reached. It is a no-op when AutoReconnect is off.
func (r *Relay) ResumeReconnect() {
	r.mu.RLock()
	svc := r.services
	r.mu.RUnlock()
	if svc != nil && svc.reconnect != nil {
		svc.reconnect.Resume()
	}
}

func (r *Relay) current() *services {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.services
}

func (r *Relay) onConnected(info domain.ConnectionInfo) {
	if svc := r.current(); svc != nil {
		if svc.reconnect != nil {
			svc.reconnect.Succeeded()
		}
		svc.hub.Broadcast(ws.EventSessionStatus, map[string]any{"connected": true, "info": info})
	}
	r.emitter.onSession(SessionEvent{
		Connected: true,
		Address:   OBSParams{Host: info.Host, Port: info.Port}.Address(),
		Version:   info.ServerVersion,
	})
}

func (r *Relay) onLost(reason string) {
	if svc := r.current(); svc != nil {
		if svc.reconnect != nil {
			svc.reconnect.Lost(reason)
		}
		svc.hub.Broadcast(ws.EventSessionStatus, map[string]any{"connected": false, "reason": reason})
	}
	r.emitter.onSession(SessionEvent{Reason: reason})
}

func component(l ports.Logger, name string) ports.Logger {
	return log.Named(l, name)
}

// oscHandler logs inbound OSC messages and forwards them to every client.
func (r *Relay) oscHandler(hub *ws.Hub) osc.Handler {
	return func(address string, args []any) {
		r.logger.Info("osc message", ports.String("address", address), ports.Any("args", args))
		hub.Broadcast(ws.EventOSCMessage, map[string]any{"address": address, "args": args})
	}
}
