package repository

import (
	"context"
	"database/sql"
	"time"

	"rinnai_gateway/internal/models"
)

type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// EndpointRepo caches the last discovered appliance address.
type EndpointRepo interface {
	Save(ctx context.Context, e models.Endpoint) error
	Load(ctx context.Context) (models.Endpoint, bool, error)
	Clear(ctx context.Context) error
}

type EventRepo interface {
	Append(ctx context.Context, e models.GatewayEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.GatewayEvent, error)
}

type Repository struct {
	EndpointRepo EndpointRepo
	EventRepo    EventRepo
	Auth         Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EndpointRepo: NewEndpointSQLite(db),
		EventRepo:    NewEventSQLite(db),
		Auth:         NewUserSQLite(db),
	}
}
