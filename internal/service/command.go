package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rinnai_gateway/internal/appliance"
	"rinnai_gateway/internal/logger"
	"rinnai_gateway/internal/schema"
)

// Command validation errors.
var (
	ErrServiceUnavailable = errors.New("service unavailable or not valid")
	ErrInvalidCommand     = errors.New("command not valid")
	ErrInvalidValue       = errors.New("value not valid")
)

// Confirmation polling defaults.
const (
	DefaultConfirmInterval = time.Second
	DefaultConfirmTimeout  = 5 * time.Second
)

// Link is the part of the appliance session the executor drives.
type Link interface {
	Status() (*appliance.Snapshot, error)
	Send(payload string) error
}

// Executor validates, encodes, sends and confirms commands.
type Executor struct {
	registry *schema.Registry
	link     Link
	log      *logger.Logger

	interval time.Duration
	timeout  time.Duration
}

// NewExecutor builds an executor. Non-positive durations take the defaults.
func NewExecutor(reg *schema.Registry, link Link, interval, timeout time.Duration, log *logger.Logger) *Executor {
	if interval <= 0 {
		interval = DefaultConfirmInterval
	}
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	return &Executor{registry: reg, link: link, log: logger.OrNop(log), interval: interval, timeout: timeout}
}

// Config translates the current snapshot.
func (e *Executor) Config() (Config, error) {
	snap, err := e.link.Status()
	if err != nil {
		return nil, err
	}
	return Translate(e.registry, snap.Tree), nil
}

// Encode validates req against the registry and the installed services and
// returns the payload to send.
func (e *Executor) Encode(req CommandRequest) (string, error) {
	cfg, err := e.Config()
	if err != nil {
		return "", err
	}

	var table *schema.Table
	if req.Service == schema.System {
		table = e.registry.System()
	} else {
		svc, ok := e.registry.Service(req.Service)
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrServiceUnavailable, req.Service)
		}
		if installed, _ := cfg[schema.System][svc.InstalledField].(bool); !installed {
			return "", fmt.Errorf("%w: %q is not installed", ErrServiceUnavailable, req.Service)
		}
		table = svc.Fields
	}

	field, ok := table.Lookup(req.Field)
	if !ok || !field.Writable || (req.Service != schema.System && !field.AppliesTo(req.Service)) {
		return "", fmt.Errorf("%w: %s.%s", ErrInvalidCommand, req.Service, req.Field)
	}

	code := req.Value
	if field.Codes != nil {
		if code, ok = field.Codes.Encode(req.Value); !ok {
			return "", fmt.Errorf("%w: %q for %s.%s (allowed: %v)", ErrInvalidValue, req.Value, req.Service, req.Field, field.Codes.Values())
		}
	}

	b, err := json.Marshal(field.Path.Nest(code))
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", req, err)
	}
	return string(b), nil
}

// Execute sends req and polls until the configuration reports the requested
// value. It returns false, without error, when confirmation times out.
func (e *Executor) Execute(ctx context.Context, req CommandRequest) (bool, error) {
	payload, err := e.Encode(req)
	if err != nil {
		return false, err
	}
	if err := e.link.Send(payload); err != nil {
		return false, err
	}
	e.log.Infow("command_sent", "service", req.Service, "field", req.Field, "value", req.Value, "payload", payload)

	deadline := time.Now().Add(e.timeout)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
		if e.confirmed(req) {
			e.log.Infow("command_confirmed", "service", req.Service, "field", req.Field, "value", req.Value)
			return true, nil
		}
		if !time.Now().Before(deadline) {
			e.log.Warnw("command_unconfirmed", "service", req.Service, "field", req.Field, "value", req.Value, "timeout", e.timeout.String())
			return false, nil
		}
	}
}

func (e *Executor) confirmed(req CommandRequest) bool {
	cfg, err := e.Config()
	if err != nil {
		return false
	}
	v, ok := cfg[req.Service][req.Field]
	return ok && schema.FormatValue(v) == req.Value
}
