// Package gqlws implements the server-side core of the graphql-transport-ws
// subscription protocol: subprotocol negotiation, the connection_init
// handshake, keep-alive ping/pong, and per-operation subscribe/next/error/
// complete lifecycle management over a single duplex socket.
//
// The package does not know how to speak WebSocket itself (see the server
// subpackage for a github.com/coder/websocket-based adapter) and does not
// interpret subscribe payloads (see SubscriptionFactory) — it multiplexes
// whatever a caller-supplied producer emits, identified by client-chosen
// operation ids.
package gqlws
