// Package domain contains the core domain entities and value objects for obsrelay.
//
// This package represents the innermost layer of the Clean Architecture. It has
// no dependencies on infrastructure concerns (WebSockets, file system, logging)
// and contains only plain values and error definitions.
//
// # Entities
//
//   - [ConnectionParams]: Address and credential of the remote control endpoint
//   - [SessionState]: Connection state of the single remote session
//   - [OperationInfo]: Published name and parameter contract of a catalog operation
//   - [Call]: One pending dispatch (operation, arguments, originating channel)
//   - [Result]: The uniform reply envelope returned for every call
//
// # Design Principles
//
// Domain values are:
//   - Immutable after construction (where practical)
//   - Free of infrastructure dependencies
//   - Serializable as JSON for the channel and persistence boundaries
package domain
