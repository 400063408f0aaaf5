// Package configwatcher provides config file monitoring for obsrelay.
// When enabled, it watches the relay's TOML file and switches the OBS
// session when the [obs] section changes.
package configwatcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/obsrelay/internal/cliconfig"
	"github.com/bft-labs/obsrelay/pkg/log"
	"github.com/bft-labs/obsrelay/pkg/obsrelay"
)

// Plugin implements config watching functionality.
type Plugin struct {
	mu sync.RWMutex

	// Configuration
	retryInterval time.Duration
	debounceDelay time.Duration
	maxRetries    int

	// Runtime state
	path     string
	obs      obsrelay.OBSSwitcher
	logger   obsrelay.Logger
	applied  obsrelay.OBSParams
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
}

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// RetryInterval is the delay between switch attempts on failure.
	// Default: 5 seconds
	RetryInterval time.Duration

	// DebounceDelay is the delay to wait after a file change before applying it.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// MaxRetries bounds switch attempts for one change.
	// Default: 3
	MaxRetries int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RetryInterval: 5 * time.Second,
		DebounceDelay: 100 * time.Millisecond,
		MaxRetries:    3,
	}
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	d := DefaultConfig()
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = d.RetryInterval
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = d.DebounceDelay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = d.MaxRetries
	}

	return &Plugin{
		retryInterval: cfg.RetryInterval,
		debounceDelay: cfg.DebounceDelay,
		maxRetries:    cfg.MaxRetries,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize records the current endpoint and starts the watcher.
func (p *Plugin) Initialize(ctx context.Context, cfg obsrelay.PluginConfig) error {
	p.mu.Lock()
	p.path = cfg.ConfigPath
	p.obs = cfg.OBS
	p.logger = cfg.Logger
	if p.logger == nil {
		p.logger = log.NewNoopLogger()
	}
	p.mu.Unlock()

	if p.path == "" || p.obs == nil {
		p.logger.Warn("config watcher disabled: no config file")
		return nil
	}
	p.applied = p.obs.CurrentOBS()

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cancel()
		return err
	}
	// The directory is watched so editors that replace the file are seen.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		cancel()
		watcher.Close()
		return err
	}

	p.logger.Info("config watcher plugin initialized", log.String("path", p.path))

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)
	return nil
}

// Shutdown stops the config watcher.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Lock()
	if p.debounce != nil && p.debounce.Stop() {
		p.wg.Done()
	}
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}

// watchLoop watches for config file changes.
func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			p.debounceApply(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceApply(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// A stopped timer never runs its func, so it releases its wg slot here.
	if p.debounce != nil && p.debounce.Stop() {
		p.wg.Done()
	}
	p.wg.Add(1)
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		defer p.wg.Done()
		p.apply(ctx)
	})
}

// apply reads the file and switches the session when the endpoint changed.
func (p *Plugin) apply(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	fc, err := cliconfig.LoadFileConfig(p.path)
	if err != nil {
		p.logger.Warn("config watcher: cannot read config", log.Err(err))
		return
	}

	p.mu.Lock()
	next := p.applied
	p.mu.Unlock()
	if fc.OBS.Host != "" {
		next.Host = fc.OBS.Host
	}
	if fc.OBS.Port > 0 {
		next.Port = fc.OBS.Port
	}
	if fc.OBS.Password != "" {
		next.Password = fc.OBS.Password
	}
	next = next.WithDefaults()

	p.mu.Lock()
	unchanged := next == p.applied
	p.mu.Unlock()
	if unchanged {
		return
	}

	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		err = p.obs.SwitchOBS(ctx, next)
		if err == nil {
			p.mu.Lock()
			p.applied = next
			p.mu.Unlock()
			p.logger.Info("config watcher: obs endpoint switched", log.String("address", next.Address()))
			return
		}
		p.logger.Warn("config watcher: switch failed",
			log.String("address", next.Address()),
			log.Int("attempt", attempt),
			log.Err(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.retryInterval):
		}
	}
}

// Ensure Plugin implements obsrelay.Plugin.
var _ obsrelay.Plugin = (*Plugin)(nil)
