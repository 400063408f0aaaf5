package configwatcher

import "github.com/bft-labs/obsrelay/pkg/obsrelay"

// WithConfigWatcher returns an obsrelay Option that enables config file
// watching. The relay's ConfigPath must be set.
//
// Usage:
//
//	r, err := obsrelay.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        DebounceDelay: 100 * time.Millisecond,
//	    }),
//	)
func WithConfigWatcher(cfg Config) obsrelay.Option {
	return obsrelay.WithPlugin(New(cfg))
}

// WithDefaultConfigWatcher enables config watching with default settings.
func WithDefaultConfigWatcher() obsrelay.Option {
	return WithConfigWatcher(DefaultConfig())
}
