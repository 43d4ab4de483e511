package gqlws

import "strings"

// Subprotocol is the WebSocket subprotocol name this package speaks.
const Subprotocol = "graphql-transport-ws"

// NoMatch is returned by NegotiateSubprotocol when none of the client's
// offered subprotocols is Subprotocol.
const NoMatch = ""

// NegotiateSubprotocol picks Subprotocol out of the client's offered list,
// the way an http.Handler reads the Sec-WebSocket-Protocol header's
// comma-separated values and echoes back the one it supports. offered may
// come pre-split (a []string, as net/http's Header.Values would give after
// splitting on commas) or as a raw comma-separated header value; either
// shape is accepted so an adapter layer never has to pre-parse it.
func NegotiateSubprotocol(offered []string) string {
	for _, o := range offered {
		for _, candidate := range strings.Split(o, ",") {
			if strings.TrimSpace(candidate) == Subprotocol {
				return Subprotocol
			}
		}
	}
	return NoMatch
}
