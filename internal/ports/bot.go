package ports

import "context"

// BotOptions describes the game server and identity of the bot.
type BotOptions struct {
	Username    string
	Host        string
	Port        int
	InitCommand string
}

// BotLauncher creates a fresh bot connection. Every reconnect launches a new one.
type BotLauncher interface {
	Launch(ctx context.Context, opts BotOptions) (BotConn, error)
}

// BotConn is one live bot.
type BotConn interface {
	// Chat sends a chat line through the bot.
	Chat(text string) error

	// Ready is closed once the bot logged in to the game server.
	Ready() <-chan struct{}

	// Done is closed when the bot ended (kicked, error, or quit).
	Done() <-chan struct{}

	// Err returns why the bot ended. nil after a clean Quit.
	Err() error

	// Quit disconnects the bot.
	Quit() error
}
