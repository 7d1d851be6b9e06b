// Package server implements the relay's HTTP and WebSocket front end and the
// Hub that pairs players and forwards game events between them.
//
// The implementation is organized into specialized files for configuration,
// the hub and its event router, clients, routing, and HTTP handlers.
package server
