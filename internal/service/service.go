package service

import (
	"context"

	"rinnai_gateway/internal/appliance"
	"rinnai_gateway/internal/models"
	"rinnai_gateway/internal/repository"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Appliance exposes the connected appliance to the HTTP API and the bridge.
type Appliance interface {
	Config() (Config, error)
	Status() (*appliance.Snapshot, error)
	Command(ctx context.Context, req CommandRequest) (bool, error)
	SendRaw(ctx context.Context, payload string) error
	Connect(ctx context.Context) error
	Disconnect()
	State() appliance.State
	OnStatusChanged(fn func(*appliance.Snapshot)) func()
	OnConnected(fn func(appliance.Endpoint)) func()
	OnDisconnected(fn func(error)) func()
}

// EventLog exposes the gateway audit log.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.GatewayEvent, error)
}

// Service aggregates the sub-services used by the handlers.
type Service struct {
	Appliance
	EventLog
	Authorization
}

var _ Appliance = (*ApplianceService)(nil)

// NewService wires the repositories and the appliance service together.
func NewService(repos *repository.Repository, app Appliance, auth AuthOptions) *Service {
	return &Service{
		Appliance:     app,
		EventLog:      NewEventLogService(repos.EventRepo),
		Authorization: NewAuthService(repos.Auth, auth),
	}
}
