package appliance

import "errors"

var (
	// ErrDiscoveryTimeout is returned when no appliance announcement was seen.
	ErrDiscoveryTimeout = errors.New("appliance discovery timed out")
	// ErrNotConnected is returned by status and send operations without a live session.
	ErrNotConnected = errors.New("not connected to appliance")
	// ErrHandshakeRejected is returned when the first inbound payload is not the handshake token.
	ErrHandshakeRejected = errors.New("appliance handshake rejected")
	// ErrMalformedFrame is returned when a status frame cannot be decoded.
	ErrMalformedFrame = errors.New("malformed status frame")
	// ErrNoEndpoint is returned when no address is configured and discovery is disabled.
	ErrNoEndpoint = errors.New("no appliance endpoint configured")
)
