// Package obs implements the OBS operations published through the catalog.
//
// Every operation first waits on the connection guard and then issues one or
// more obs-websocket requests through the session. Operations that need
// follow-up work (clips, replay buffers, volume ramps) run it on the
// controller's lifetime context.
package obs
