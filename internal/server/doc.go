// Package server is the network edge of the chat service. It upgrades
// browser connections to WebSockets, decodes their events into room
// directory calls, and serves the small HTTP API for creating rooms.
//
// Each connection has a read pump that handles its events one at a time and
// a write pump that drains the frames the broadcast engine queued for it.
package server
