// Package obsrelay provides an embeddable OBS control relay.
//
// A Relay keeps one obs-websocket session open and exposes a catalog of
// named OBS operations to WebSocket clients on /ws, next to a small HTTP API
// for a game chat bot, stream event forwarding to an OSC chatbox, and
// persisted control-panel state.
//
// # Basic Usage
//
//	r, err := obsrelay.New(obsrelay.Config{
//	    OBSHost:  "127.0.0.1",
//	    OBSPort:  4455,
//	    StateDir: "/var/lib/obsrelay",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := r.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Stop()
//
// # Wire format
//
// Clients send {"event": name, "callId": id, "args": [...]} and receive
// {"event": "responseobs", "data": {"callId", "operation", "result", "error"}}.
// Replies to concurrent calls may arrive in any order; match them by callId.
//
// # Lifecycle States
//
// A Relay can be in one of five states: [StateStopped], [StateStarting],
// [StateRunning], [StateStopping], or [StateCrashed]. Use [Relay.Status] to
// query the current state.
//
// # Plugins
//
// Plugins receive a [PluginConfig] on Start and can rebind the OBS session
// through [OBSSwitcher]:
//
//	import "github.com/bft-labs/obsrelay/plugins/configwatcher"
//
//	r, err := obsrelay.New(cfg, configwatcher.WithConfigWatcher(configwatcher.DefaultConfig()))
package obsrelay
