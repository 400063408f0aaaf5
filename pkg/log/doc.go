// Package log provides a logging abstraction for obsrelay components.
//
// This package defines a Logger interface that can be implemented by
// any logging library. Default implementations are provided for zerolog
// and a no-op logger for testing.
//
// # Usage
//
// Use the provided zerolog adapter:
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//
// Or use the no-op logger for testing:
//
//	logger := log.NewNoopLogger()
//
// Components are scoped with Named, extra context is attached with With:
//
//	logger = log.Named(logger, "session")
//	logger = log.With(logger, log.String("host", "127.0.0.1"))
package log
