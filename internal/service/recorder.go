package service

import (
	"context"
	"time"

	"rinnai_gateway/internal/appliance"
	"rinnai_gateway/internal/logger"
	"rinnai_gateway/internal/models"
	"rinnai_gateway/internal/repository"
)

// Recorder writes session lifecycle notifications to the event log and keeps
// the endpoint cache in step with discovery.
type Recorder struct {
	events    repository.EventRepo
	endpoints repository.EndpointRepo
	log       *logger.Logger
}

func NewRecorder(events repository.EventRepo, endpoints repository.EndpointRepo, log *logger.Logger) *Recorder {
	return &Recorder{events: events, endpoints: endpoints, log: logger.OrNop(log)}
}

// Restore seeds sess with the cached endpoint, if any.
func (r *Recorder) Restore(ctx context.Context, sess Session) error {
	e, ok, err := r.endpoints.Load(ctx)
	if err != nil || !ok {
		return err
	}
	sess.SetEndpoint(appliance.Endpoint{Host: e.Host, Port: e.Port})
	r.log.Infow("endpoint_restored", "host", e.Host, "port", e.Port, "discovered_at", e.DiscoveredAt)
	return nil
}

// Attach subscribes to sess. The returned func detaches.
func (r *Recorder) Attach(sess Session) func() {
	unsubs := []func(){
		sess.OnConnected(r.connected),
		sess.OnConnectionError(r.connectionError),
		sess.OnDisconnected(r.disconnected),
		sess.OnDiscovered(r.discovered),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (r *Recorder) connected(ep appliance.Endpoint) {
	r.append(models.GatewayEvent{
		Type:        models.EventConnected,
		Description: "connected to " + ep.Address(),
		Metadata:    map[string]any{"host": ep.Host, "port": ep.Port},
	})
}

func (r *Recorder) connectionError(err error, attempts int) {
	r.append(models.GatewayEvent{
		Type:        models.EventConnectionError,
		Description: err.Error(),
		Metadata:    map[string]any{"attempts": attempts},
	})
	ctx, cancel := r.ctx()
	defer cancel()
	if err := r.endpoints.Clear(ctx); err != nil {
		r.log.Errorw("endpoint_clear_failed", "error", err)
	}
}

func (r *Recorder) disconnected(err error) {
	e := models.GatewayEvent{Type: models.EventDisconnected, Description: "disconnected"}
	if err != nil {
		e.Description = "disconnected: " + err.Error()
	}
	r.append(e)
}

func (r *Recorder) discovered(ep appliance.Endpoint) {
	r.append(models.GatewayEvent{
		Type:        models.EventDiscovered,
		Description: "appliance discovered at " + ep.Address(),
		Metadata:    map[string]any{"host": ep.Host, "port": ep.Port},
	})
	ctx, cancel := r.ctx()
	defer cancel()
	if err := r.endpoints.Save(ctx, models.Endpoint{Host: ep.Host, Port: ep.Port, DiscoveredAt: time.Now().UTC()}); err != nil {
		r.log.Errorw("endpoint_save_failed", "error", err)
	}
}

func (r *Recorder) append(e models.GatewayEvent) {
	ctx, cancel := r.ctx()
	defer cancel()
	if err := r.events.Append(ctx, e); err != nil {
		r.log.Errorw("event_append_failed", "type", e.Type, "error", err)
	}
}

func (r *Recorder) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), eventWriteTimeout)
}
