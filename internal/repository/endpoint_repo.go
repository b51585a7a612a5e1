package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"rinnai_gateway/internal/models"
)

type EndpointSQLite struct {
	db *sql.DB
}

func NewEndpointSQLite(db *sql.DB) *EndpointSQLite {
	return &EndpointSQLite{db: db}
}

var errInvalidEndpoint = errors.New("invalid endpoint: host and port 1-65535 required")

const (
	endpointRowID = 1

	upsertEndpointSQL = `
		INSERT INTO appliance_endpoint (id, host, port, discovered_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			host=excluded.host,
			port=excluded.port,
			discovered_at=excluded.discovered_at
	`

	selectEndpointSQL = `SELECT host, port, discovered_at FROM appliance_endpoint WHERE id=?`

	deleteEndpointSQL = `DELETE FROM appliance_endpoint WHERE id=?`
)

// Save replaces the cached endpoint. DiscoveredAt defaults to now, stored as UTC.
func (r *EndpointSQLite) Save(ctx context.Context, e models.Endpoint) error {
	host := strings.TrimSpace(e.Host)
	if host == "" || e.Port <= 0 || e.Port > 65535 {
		return errInvalidEndpoint
	}

	ts := e.DiscoveredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	if _, err := r.db.ExecContext(ctx, upsertEndpointSQL, endpointRowID, host, e.Port, ts); err != nil {
		return fmt.Errorf("save endpoint %s:%d: %w", host, e.Port, err)
	}
	return nil
}

// Load returns the cached endpoint; ok is false when nothing is cached.
func (r *EndpointSQLite) Load(ctx context.Context) (models.Endpoint, bool, error) {
	var e models.Endpoint
	err := r.db.QueryRowContext(ctx, selectEndpointSQL, endpointRowID).Scan(&e.Host, &e.Port, &e.DiscoveredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Endpoint{}, false, nil
		}
		return models.Endpoint{}, false, fmt.Errorf("load endpoint: %w", err)
	}
	e.DiscoveredAt = e.DiscoveredAt.UTC()
	return e, true, nil
}

// Clear drops the cached endpoint.
func (r *EndpointSQLite) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, deleteEndpointSQL, endpointRowID); err != nil {
		return fmt.Errorf("clear endpoint: %w", err)
	}
	return nil
}
