// Package bridge mirrors the appliance onto MQTT: retained state and config
// topics, command subscriptions and Home Assistant discovery.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"rinnai_gateway/internal/appliance"
	"rinnai_gateway/internal/logger"
	"rinnai_gateway/internal/schema"
	"rinnai_gateway/internal/service"
)

// DefaultRepublishInterval refreshes retained topics for late subscribers.
const DefaultRepublishInterval = 60 * time.Second

var errCommandFormat = errors.New(`command must be ["service","field","value"]`)

// Appliance is the gateway surface the bridge drives.
type Appliance interface {
	Config() (service.Config, error)
	Status() (*appliance.Snapshot, error)
	Command(ctx context.Context, req service.CommandRequest) (bool, error)
	SendRaw(ctx context.Context, payload string) error
	OnStatusChanged(fn func(*appliance.Snapshot)) func()
}

type Options struct {
	RootTopic         string
	DiscoveryPrefix   string
	RepublishInterval time.Duration
}

type Bridge struct {
	client   Client
	app      Appliance
	topics   Topics
	interval time.Duration
	log      *logger.Logger

	// serializes full publishes so retained topics are never interleaved
	publishMu sync.Mutex

	mu  sync.Mutex
	ctx context.Context
}

func New(client Client, app Appliance, opts Options, log *logger.Logger) *Bridge {
	if opts.RepublishInterval <= 0 {
		opts.RepublishInterval = DefaultRepublishInterval
	}
	return &Bridge{
		client:   client,
		app:      app,
		topics:   NewTopics(opts.RootTopic, opts.DiscoveryPrefix),
		interval: opts.RepublishInterval,
		log:      logger.OrNop(log),
		ctx:      context.Background(),
	}
}

func (b *Bridge) Topics() Topics { return b.topics }

// HandleConnect runs after every broker (re)connect: it announces the
// gateway, subscribes to the command topics and publishes the state.
func (b *Bridge) HandleConnect() {
	if err := b.client.Publish(b.topics.Online(), true, payloadOnline); err != nil {
		b.log.Errorw("mqtt_publish_failed", "topic", b.topics.Online(), "error", err)
	}
	if err := b.client.Subscribe(b.topics.Command(), b.onCommand); err != nil {
		b.log.Errorw("mqtt_subscribe_failed", "topic", b.topics.Command(), "error", err)
	}
	if err := b.client.Subscribe(b.topics.RawCommand(), b.onRawCommand); err != nil {
		b.log.Errorw("mqtt_subscribe_failed", "topic", b.topics.RawCommand(), "error", err)
	}
	b.PublishState()
	b.PublishDiscovery()
}

// Run republishes on every status change and every interval until ctx ends,
// then marks the gateway offline.
func (b *Bridge) Run(ctx context.Context) {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	changed := make(chan struct{}, 1)
	unsub := b.app.OnStatusChanged(func(*appliance.Snapshot) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsub()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := b.client.Publish(b.topics.Online(), true, payloadOffline); err != nil {
				b.log.Warnw("mqtt_publish_failed", "topic", b.topics.Online(), "error", err)
			}
			return
		case <-changed:
		case <-ticker.C:
		}
		b.PublishState()
	}
}

// PublishState publishes the raw state tree, the translated configuration
// and one retained topic per configuration field. Nothing is published while
// the appliance is not connected.
func (b *Bridge) PublishState() {
	snap, err := b.app.Status()
	if err != nil {
		b.log.Debugw("mqtt_state_skipped", "error", err)
		return
	}
	cfg, err := b.app.Config()
	if err != nil {
		b.log.Debugw("mqtt_state_skipped", "error", err)
		return
	}

	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.publishJSON(b.topics.Status(), snap.Tree)
	b.publishJSON(b.topics.Config(), cfg)

	services := make([]string, 0, len(cfg))
	for svc := range cfg {
		services = append(services, svc)
	}
	sort.Strings(services)
	for _, svc := range services {
		fields := make([]string, 0, len(cfg[svc]))
		for f := range cfg[svc] {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			b.publish(b.topics.Field(svc, f), schema.FormatValue(cfg[svc][f]))
		}
	}
}

// PublishDiscovery announces the Home Assistant entities.
func (b *Bridge) PublishDiscovery() {
	for _, e := range discoveryEntities(b.topics) {
		topic := b.topics.Discovery(e.Component, e.UniqueID)
		b.log.Infow("mqtt_discovery_published", "component", e.Component, "unique_id", e.UniqueID)
		b.publishJSON(topic, withDevice(b.topics, e))
	}
}

func (b *Bridge) publishJSON(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.log.Errorw("mqtt_encode_failed", "topic", topic, "error", err)
		return
	}
	b.publish(topic, string(payload))
}

func (b *Bridge) publish(topic, payload string) {
	if err := b.client.Publish(topic, true, payload); err != nil {
		b.log.Errorw("mqtt_publish_failed", "topic", topic, "error", err)
	}
}

func (b *Bridge) runContext() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctx
}

// onCommand executes a ["service","field","value"] command and reports the
// outcome on the command/success topic.
func (b *Bridge) onCommand(topic string, payload []byte) {
	b.log.Infow("mqtt_command_received", "topic", topic, "payload", string(payload))

	ok := false
	req, err := parseCommand(payload)
	if err == nil {
		ok, err = b.app.Command(b.runContext(), req)
	}
	switch {
	case err != nil:
		b.log.Errorw("mqtt_command_failed", "payload", string(payload), "error", err)
	case ok:
		b.log.Infow("mqtt_command_confirmed", "command", req.String())
	default:
		b.log.Warnw("mqtt_command_unconfirmed", "command", req.String())
	}

	if err := b.client.Publish(b.topics.CommandSuccess(), false, strconv.FormatBool(ok)); err != nil {
		b.log.Errorw("mqtt_publish_failed", "topic", b.topics.CommandSuccess(), "error", err)
	}
	if err == nil {
		b.PublishState()
	}
}

func (b *Bridge) onRawCommand(topic string, payload []byte) {
	b.log.Infow("mqtt_raw_command_received", "topic", topic, "payload", string(payload))
	if err := b.app.SendRaw(b.runContext(), string(payload)); err != nil {
		b.log.Errorw("mqtt_raw_command_failed", "error", err)
	}
}

// parseCommand accepts a three-element JSON array; scalar elements are taken
// in their text form so ["gasHeating","setTemp",22] works too.
func parseCommand(payload []byte) (service.CommandRequest, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var parts []any
	if err := dec.Decode(&parts); err != nil {
		return service.CommandRequest{}, fmt.Errorf("%w: %v", errCommandFormat, err)
	}
	if len(parts) != 3 {
		return service.CommandRequest{}, errCommandFormat
	}
	out := make([]string, 3)
	for i, p := range parts {
		switch p.(type) {
		case string, json.Number, bool:
			out[i] = schema.FormatValue(p)
		default:
			return service.CommandRequest{}, errCommandFormat
		}
	}
	return service.CommandRequest{Service: out[0], Field: out[1], Value: out[2]}, nil
}
