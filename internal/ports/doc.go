// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// In Clean Architecture / Hexagonal Architecture, ports are the boundaries
// between the application core and the outside world. They define what the
// application needs from external systems without specifying how those needs
// are fulfilled.
//
// # Port Interfaces
//
//   - [ControlDialer], [ControlConn]: The remote control endpoint (obs-websocket)
//   - [ParamsRepository]: Last-known-good connection parameters
//   - [StateStore]: Opaque UI state persisted for the control panel
//   - [BotLauncher], [BotConn]: The game-bot process
//   - [ChatSender]: Outbound chat messages (OSC)
//   - [OnboardingEncoder]: Connectivity artifacts pushed to new channels
//   - [Logger]: Structured logging abstraction
//
// # Usage
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement these interfaces
// with concrete implementations (gorilla/websocket, JSON files, OSC, etc.).
package ports
