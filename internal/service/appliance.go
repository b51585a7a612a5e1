package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"rinnai_gateway/internal/appliance"
	"rinnai_gateway/internal/logger"
	"rinnai_gateway/internal/models"
	"rinnai_gateway/internal/repository"
	"rinnai_gateway/internal/schema"
)

// Session is the connection manager surface used by the service layer.
// *appliance.Session implements it.
type Session interface {
	Link
	Connect(ctx context.Context) error
	Disconnect()
	State() appliance.State
	Endpoint() (appliance.Endpoint, bool)
	SetEndpoint(ep appliance.Endpoint)
	OnStatusChanged(fn func(*appliance.Snapshot)) func()
	OnConnected(fn func(appliance.Endpoint)) func()
	OnConnectionError(fn func(error, int)) func()
	OnDisconnected(fn func(error)) func()
	OnDiscovered(fn func(appliance.Endpoint)) func()
}

var _ Session = (*appliance.Session)(nil)

// ErrEmptyPayload rejects a blank raw command.
var ErrEmptyPayload = errors.New("raw command payload is empty")

// eventWriteTimeout bounds audit writes made on behalf of a request.
const eventWriteTimeout = 2 * time.Second

// ApplianceService exposes configuration, status and commands of the
// connected appliance.
type ApplianceService struct {
	session  Session
	registry *schema.Registry
	exec     *Executor
	observer CommandObserver
	events   repository.EventRepo
	log      *logger.Logger
}

// CommandObserver is told the outcome of every validated command.
type CommandObserver interface {
	CommandCompleted(req CommandRequest, confirmed bool, err error)
}

type nopCommandObserver struct{}

func (nopCommandObserver) CommandCompleted(CommandRequest, bool, error) {}

// ApplianceOptions tunes command confirmation.
type ApplianceOptions struct {
	ConfirmInterval time.Duration
	ConfirmTimeout  time.Duration
	// Observer may be nil.
	Observer CommandObserver
}

// NewApplianceService wires the executor over sess. events may be nil.
func NewApplianceService(sess Session, reg *schema.Registry, opts ApplianceOptions, events repository.EventRepo, log *logger.Logger) *ApplianceService {
	log = logger.OrNop(log)
	observer := opts.Observer
	if observer == nil {
		observer = nopCommandObserver{}
	}
	return &ApplianceService{
		session:  sess,
		registry: reg,
		exec:     NewExecutor(reg, sess, opts.ConfirmInterval, opts.ConfirmTimeout, log),
		observer: observer,
		events:   events,
		log:      log,
	}
}

// Registry returns the schema the service translates with.
func (s *ApplianceService) Registry() *schema.Registry { return s.registry }

// Config returns the translated configuration.
func (s *ApplianceService) Config() (Config, error) {
	return s.exec.Config()
}

// Status returns the latest raw snapshot.
func (s *ApplianceService) Status() (*appliance.Snapshot, error) {
	return s.session.Status()
}

// Command sets a field and waits for the appliance to confirm it.
func (s *ApplianceService) Command(ctx context.Context, req CommandRequest) (bool, error) {
	s.log.Infow("command_requested", "service", req.Service, "field", req.Field, "value", req.Value)
	ok, err := s.exec.Execute(ctx, req)
	if !errors.Is(err, ErrInvalidCommand) && !errors.Is(err, ErrInvalidValue) && !errors.Is(err, ErrServiceUnavailable) {
		s.observer.CommandCompleted(req, ok, err)
	}
	if err != nil {
		s.log.Warnw("command_failed", "service", req.Service, "field", req.Field, "value", req.Value, "error", err)
		return false, err
	}
	s.record(ctx, models.GatewayEvent{
		Type:        models.EventCommand,
		Description: req.String(),
		Metadata: map[string]any{
			"service":   req.Service,
			"field":     req.Field,
			"value":     req.Value,
			"confirmed": ok,
		},
	})
	return ok, nil
}

// SendRaw sends payload without validation or confirmation.
func (s *ApplianceService) SendRaw(ctx context.Context, payload string) error {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return ErrEmptyPayload
	}
	if err := s.session.Send(payload); err != nil {
		return err
	}
	s.log.Infow("raw_command_sent", "payload", payload)
	s.record(ctx, models.GatewayEvent{
		Type:        models.EventRawCommand,
		Description: payload,
	})
	return nil
}

// GasHeating issues a gas heating command.
func (s *ApplianceService) GasHeating(ctx context.Context, field, value string) (bool, error) {
	return s.Command(ctx, CommandRequest{Service: schema.GasHeating, Field: field, Value: value})
}

// EvapCooling issues an evaporative cooling command.
func (s *ApplianceService) EvapCooling(ctx context.Context, field, value string) (bool, error) {
	return s.Command(ctx, CommandRequest{Service: schema.EvapCooling, Field: field, Value: value})
}

// AddonCooling issues an add-on cooling command.
func (s *ApplianceService) AddonCooling(ctx context.Context, field, value string) (bool, error) {
	return s.Command(ctx, CommandRequest{Service: schema.AddonCooling, Field: field, Value: value})
}

// ReverseCycle issues a reverse-cycle command.
func (s *ApplianceService) ReverseCycle(ctx context.Context, field, value string) (bool, error) {
	return s.Command(ctx, CommandRequest{Service: schema.ReverseCycle, Field: field, Value: value})
}

func (s *ApplianceService) Connect(ctx context.Context) error { return s.session.Connect(ctx) }
func (s *ApplianceService) Disconnect()                       { s.session.Disconnect() }
func (s *ApplianceService) State() appliance.State            { return s.session.State() }

func (s *ApplianceService) OnStatusChanged(fn func(*appliance.Snapshot)) func() {
	return s.session.OnStatusChanged(fn)
}

func (s *ApplianceService) OnConnected(fn func(appliance.Endpoint)) func() {
	return s.session.OnConnected(fn)
}

func (s *ApplianceService) OnDisconnected(fn func(error)) func() {
	return s.session.OnDisconnected(fn)
}

func (s *ApplianceService) record(ctx context.Context, e models.GatewayEvent) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventWriteTimeout)
	defer cancel()
	if err := s.events.Append(ctx, e); err != nil {
		s.log.Errorw("event_append_failed", "type", e.Type, "error", err)
	}
}
