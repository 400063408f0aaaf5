package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/bft-labs/obsrelay/internal/domain"
	"github.com/bft-labs/obsrelay/internal/ports"
)

// BotState is the externally visible state of the bot.
type BotState string

const (
	BotIdle         BotState = "idle"
	BotStarting     BotState = "starting"
	BotOnline       BotState = "online"
	BotReconnecting BotState = "reconnecting"
	BotHalted       BotState = "halted"
)

// BotStatus is a snapshot of the supervisor.
type BotStatus struct {
	State     BotState        `json:"state"`
	Username  string          `json:"username,omitempty"`
	Server    string          `json:"server,omitempty"`
	Reconnect ReconnectStatus `json:"reconnect"`
}

// BotSupervisor keeps one game bot alive. Every reconnect tears the old bot
// down and launches a new one.
type BotSupervisor struct {
	launcher  ports.BotLauncher
	logger    ports.Logger
	ctx       context.Context
	reconnect *Reconnector

	mu     sync.Mutex
	opts   ports.BotOptions
	conn   ports.BotConn
	online bool
	active bool
	gen    uint64
}

// NewBotSupervisor creates an idle supervisor. ctx bounds every launch.
func NewBotSupervisor(ctx context.Context, launcher ports.BotLauncher, policy ReconnectPolicy, logger ports.Logger) *BotSupervisor {
	s := &BotSupervisor{
		launcher: launcher,
		logger:   logger,
		ctx:      ctx,
	}
	s.reconnect = NewReconnector(ctx, "bot", policy, s.relaunch, logger)
	return s
}

// Start launches the bot unless one is already running. A failed first launch
// is returned and retried in the background like any other failure.
func (s *BotSupervisor) Start(opts ports.BotOptions) error {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		s.logger.Info("bot already running", ports.String("username", s.opts.Username))
		return nil
	}
	s.opts = opts
	s.active = true
	s.mu.Unlock()

	s.reconnect.Arm()
	if err := s.launch(s.ctx); err != nil {
		s.reconnect.Failed(err)
		return err
	}
	return nil
}

// Stop quits the bot. No reconnect follows an operator stop.
func (s *BotSupervisor) Stop() error {
	s.mu.Lock()
	wasActive := s.active
	conn := s.conn
	s.active = false
	s.conn = nil
	s.online = false
	s.gen++
	s.mu.Unlock()

	s.reconnect.Stop()
	if conn != nil {
		if err := conn.Quit(); err != nil {
			s.logger.Warn("bot quit failed", ports.Err(err))
		}
	}
	if !wasActive {
		return domain.ErrBotNotRunning
	}
	s.logger.Info("bot stopped")
	return nil
}

// Resume restarts reconnection after the ceiling was reached.
func (s *BotSupervisor) Resume() error {
	s.mu.Lock()
	if s.opts.Host == "" {
		s.mu.Unlock()
		return domain.ErrBotNotRunning
	}
	s.active = true
	s.mu.Unlock()

	s.reconnect.Resume()
	return nil
}

// Chat sends text through the bot.
func (s *BotSupervisor) Chat(text string) error {
	s.mu.Lock()
	conn, online := s.conn, s.online
	s.mu.Unlock()

	if conn == nil || !online {
		return domain.ErrBotNotRunning
	}
	return conn.Chat(text)
}

// Online reports whether the bot is logged in.
func (s *BotSupervisor) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && s.online
}

// Status returns a snapshot.
func (s *BotSupervisor) Status() BotStatus {
	rs := s.reconnect.Status()

	s.mu.Lock()
	defer s.mu.Unlock()
	st := BotStatus{Username: s.opts.Username, Reconnect: rs}
	if s.opts.Host != "" {
		st.Server = fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	}
	switch {
	case rs.Halted:
		st.State = BotHalted
	case !s.active:
		st.State = BotIdle
	case s.conn != nil && s.online:
		st.State = BotOnline
	case s.conn != nil:
		st.State = BotStarting
	default:
		st.State = BotReconnecting
	}
	return st
}

func (s *BotSupervisor) relaunch(ctx context.Context) error {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if !active {
		return nil
	}
	return s.launch(ctx)
}

func (s *BotSupervisor) launch(ctx context.Context) error {
	s.mu.Lock()
	opts := s.opts
	s.mu.Unlock()

	s.logger.Info("launching bot",
		ports.String("username", opts.Username),
		ports.String("host", opts.Host),
		ports.Int("port", opts.Port),
	)
	conn, err := s.launcher.Launch(ctx, opts)
	if err != nil {
		return fmt.Errorf("launch bot: %w", err)
	}

	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		_ = conn.Quit()
		return nil
	}
	s.gen++
	gen := s.gen
	s.conn = conn
	s.online = false
	s.mu.Unlock()

	go s.watch(gen, conn, opts)
	return nil
}

func (s *BotSupervisor) watch(gen uint64, conn ports.BotConn, opts ports.BotOptions) {
	ready := false
	select {
	case <-conn.Ready():
		ready = true
		if !s.markOnline(gen) {
			return
		}
		s.reconnect.Succeeded()
		s.logger.Info("bot online", ports.String("username", opts.Username))
		if opts.InitCommand != "" {
			if err := conn.Chat(opts.InitCommand); err != nil {
				s.logger.Warn("init command failed", ports.Err(err))
			}
		}
		<-conn.Done()
	case <-conn.Done():
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.online = false
	active := s.active
	s.mu.Unlock()

	if !active {
		return
	}
	reason := lostReason(conn.Err(), "bot ended")
	s.logger.Warn("bot disconnected", ports.String("reason", reason), ports.Bool("was_online", ready))
	if ready {
		s.reconnect.Lost(reason)
		return
	}
	s.reconnect.Failed(fmt.Errorf("bot ended before login: %s", reason))
}

func (s *BotSupervisor) markOnline(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	s.online = true
	return true
}
