// Package metrics exposes session and appliance gauges in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rinnai_gateway/internal/appliance"
	"rinnai_gateway/internal/schema"
	"rinnai_gateway/internal/service"
)

const namespace = "rinnai"

// unavailableReading marks a sensor or set point that is not fitted.
const unavailableReading = "999"

var sessionStates = []appliance.State{
	appliance.Disconnected,
	appliance.Discovering,
	appliance.Connecting,
	appliance.AwaitingHandshake,
	appliance.Connected,
	appliance.Closing,
	appliance.Reconnecting,
}

// Collector records session activity and temperatures on a private registry.
// It implements appliance.Observer and service.CommandObserver.
type Collector struct {
	registry *prometheus.Registry

	sessionState    *prometheus.GaugeVec
	stateChanges    prometheus.Counter
	framesReceived  *prometheus.CounterVec
	framesSent      prometheus.Counter
	attemptFailures prometheus.Counter
	commands        *prometheus.CounterVec
	temperature     *prometheus.GaugeVec
	lastStatus      prometheus.Gauge
}

var (
	_ appliance.Observer      = (*Collector)(nil)
	_ service.CommandObserver = (*Collector)(nil)
)

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		sessionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "Current appliance session state (1 for the active state)",
		}, []string{"state"}),
		stateChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_state_changes_total",
			Help:      "Session state transitions",
		}),
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Status frames received from the appliance",
		}, []string{"result"}),
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Frames written to the appliance, keepalives included",
		}),
		attemptFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_attempt_failures_total",
			Help:      "Failed discovery, dial or handshake attempts",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Validated commands by outcome",
		}, []string{"service", "result"}),
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_celsius",
			Help:      "Current and set temperatures reported by installed services",
		}, []string{"service", "field"}),
		lastStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_status_timestamp_seconds",
			Help:      "Unix time of the last status change",
		}),
	}
	c.registry.MustRegister(
		c.sessionState,
		c.stateChanges,
		c.framesReceived,
		c.framesSent,
		c.attemptFailures,
		c.commands,
		c.temperature,
		c.lastStatus,
	)
	c.setState(appliance.Disconnected)
	return c
}

// Registry returns the registry the collector publishes to.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) StateChanged(_, to appliance.State) {
	c.stateChanges.Inc()
	c.setState(to)
}

func (c *Collector) setState(active appliance.State) {
	for _, s := range sessionStates {
		v := 0.0
		if s == active {
			v = 1
		}
		c.sessionState.WithLabelValues(s.String()).Set(v)
	}
}

func (c *Collector) FrameReceived(changed bool) {
	if changed {
		c.framesReceived.WithLabelValues("changed").Inc()
		return
	}
	c.framesReceived.WithLabelValues("unchanged").Inc()
}

func (c *Collector) FrameMalformed() { c.framesReceived.WithLabelValues("malformed").Inc() }
func (c *Collector) FrameSent()      { c.framesSent.Inc() }
func (c *Collector) AttemptFailed()  { c.attemptFailures.Inc() }

func (c *Collector) CommandCompleted(req service.CommandRequest, confirmed bool, err error) {
	result := "unconfirmed"
	switch {
	case err != nil:
		result = "failed"
	case confirmed:
		result = "confirmed"
	}
	c.commands.WithLabelValues(req.Service, result).Inc()
}

// ObserveConfig refreshes the temperature gauges from cfg. Readings of 999
// and services no longer installed are removed.
func (c *Collector) ObserveConfig(cfg service.Config, observedAt float64) {
	c.temperature.Reset()
	for svc, values := range cfg {
		if svc == schema.System {
			continue
		}
		for field, v := range values {
			if !strings.HasPrefix(field, "currentTemp") && !strings.HasPrefix(field, "setTemp") {
				continue
			}
			s := schema.FormatValue(v)
			if s == unavailableReading {
				continue
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				continue
			}
			c.temperature.WithLabelValues(svc, field).Set(f)
		}
	}
	c.lastStatus.Set(observedAt)
}
