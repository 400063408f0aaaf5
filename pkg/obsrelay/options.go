package obsrelay

import (
	"github.com/bft-labs/obsrelay/internal/ports"
	"github.com/bft-labs/obsrelay/pkg/log"
)

// Logger is the interface for structured logging.
type Logger = log.Logger

// LogField represents a structured log field.
type LogField = log.Field

// ControlDialer opens obs-websocket sessions.
type ControlDialer = ports.ControlDialer

// BotLauncher starts game bot connections.
type BotLauncher = ports.BotLauncher

// ChatSender delivers chatbox lines.
type ChatSender = ports.ChatSender

// Option configures optional behavior of a Relay.
type Option func(*options)

type options struct {
	logger       Logger
	eventHandler EventHandler
	plugins      []Plugin
	dialer       ControlDialer
	launcher     BotLauncher
	chat         ChatSender
	noOnboarding bool
}

func defaultOptions() options {
	return options{logger: log.NewNoopLogger()}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for relay events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when the Relay starts.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithDialer replaces the obs-websocket dialer.
func WithDialer(dialer ControlDialer) Option {
	return func(o *options) {
		o.dialer = dialer
	}
}

// WithBotLauncher replaces the process launcher built from BotCommand.
func WithBotLauncher(launcher BotLauncher) Option {
	return func(o *options) {
		o.launcher = launcher
	}
}

// WithChatSender replaces the OSC chat client built from OSCTarget.
func WithChatSender(chat ChatSender) Option {
	return func(o *options) {
		o.chat = chat
	}
}

// WithoutOnboarding disables the QR codes pushed to new clients.
func WithoutOnboarding() Option {
	return func(o *options) {
		o.noOnboarding = true
	}
}
