package appliance

import "time"

// Session defaults.
const (
	DefaultIdleTimeout       = 5 * time.Second
	DefaultSettleDelay       = 5 * time.Second
	DefaultDialTimeout       = 5 * time.Second
	DefaultKeepaliveInterval = 60 * time.Second
	DefaultKeepalivePayload  = "{}"
	DefaultMaxAttempts       = 3
)

// Options configures a Session.
type Options struct {
	// Host and Port pin the appliance address. When empty, discovery is used.
	Host string
	Port int

	AutoReconnect     bool
	Keepalive         bool
	KeepaliveInterval time.Duration
	KeepalivePayload  string
	IdleTimeout       time.Duration
	SettleDelay       time.Duration
	DialTimeout       time.Duration
	// MaxAttempts is the number of consecutive failures after which a
	// connection-error notification is raised.
	MaxAttempts int
}

// DefaultOptions returns options with reconnect and keepalive enabled.
func DefaultOptions() Options {
	return Options{
		AutoReconnect:     true,
		Keepalive:         true,
		KeepaliveInterval: DefaultKeepaliveInterval,
		KeepalivePayload:  DefaultKeepalivePayload,
		IdleTimeout:       DefaultIdleTimeout,
		SettleDelay:       DefaultSettleDelay,
		DialTimeout:       DefaultDialTimeout,
		MaxAttempts:       DefaultMaxAttempts,
	}
}

func (o Options) withDefaults() Options {
	if o.KeepaliveInterval <= 0 {
		o.KeepaliveInterval = DefaultKeepaliveInterval
	}
	if o.KeepalivePayload == "" {
		o.KeepalivePayload = DefaultKeepalivePayload
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	return o
}

// endpoint returns the pinned endpoint, if any.
func (o Options) endpoint() (Endpoint, bool) {
	ep := Endpoint{Host: o.Host, Port: o.Port}
	return ep, ep.Valid()
}
