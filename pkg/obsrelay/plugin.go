package obsrelay

import "context"

// Plugin extends a Relay. Plugins are initialized in registration order
// during Start and shut down in reverse order during Stop.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}

// OBSSwitcher rebinds the OBS session. *Relay satisfies it.
type OBSSwitcher interface {
	SwitchOBS(ctx context.Context, params OBSParams) error
	CurrentOBS() OBSParams
}

// PluginConfig is handed to every plugin on Initialize.
type PluginConfig struct {
	ConfigPath string
	StateDir   string
	Logger     Logger
	OBS        OBSSwitcher
}
