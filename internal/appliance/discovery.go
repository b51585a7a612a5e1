package appliance

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"rinnai_gateway/internal/logger"
)

// Discovery constants of the appliance UDP announcement.
const (
	DiscoveryPort    = 50000
	AnnouncementTag  = "Rinnai_NBW2_Module"
	announcePortByte = 32

	DefaultDiscoveryTimeout = 10 * time.Second
)

// Endpoint is the TCP address of the appliance.
type Endpoint struct {
	Host string
	Port int
}

// Address returns host:port.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Valid reports whether both host and port are set.
func (e Endpoint) Valid() bool {
	return e.Host != "" && e.Port > 0 && e.Port <= 65535
}

// Discoverer locates the appliance on the local network.
type Discoverer interface {
	Discover(ctx context.Context) (Endpoint, error)
}

// UDPDiscoverer listens for the appliance's broadcast announcement.
type UDPDiscoverer struct {
	ListenAddr string
	Timeout    time.Duration
	log        *logger.Logger
}

// NewUDPDiscoverer returns a discoverer listening on all interfaces on the
// announcement port.
func NewUDPDiscoverer(timeout time.Duration, log *logger.Logger) *UDPDiscoverer {
	if timeout <= 0 {
		timeout = DefaultDiscoveryTimeout
	}
	return &UDPDiscoverer{
		ListenAddr: fmt.Sprintf(":%d", DiscoveryPort),
		Timeout:    timeout,
		log:        logger.OrNop(log),
	}
}

// Discover binds the announcement port and returns the first appliance seen.
func (d *UDPDiscoverer) Discover(ctx context.Context) (Endpoint, error) {
	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp4", d.ListenAddr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("listen for announcements: %w", err)
	}
	defer pc.Close()

	d.log.Infow("discovery_started", "addr", pc.LocalAddr().String())
	return d.discoverOn(ctx, pc)
}

func (d *UDPDiscoverer) discoverOn(ctx context.Context, pc net.PacketConn) (Endpoint, error) {
	log := logger.OrNop(d.log)
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDiscoveryTimeout
	}
	deadline := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := pc.SetReadDeadline(deadline); err != nil {
		return Endpoint{}, fmt.Errorf("set read deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = pc.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, 512)
	for {
		n, addr, err := pc.ReadFrom(buf)
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return Endpoint{}, ctx.Err()
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return Endpoint{}, ErrDiscoveryTimeout
			}
			return Endpoint{}, fmt.Errorf("read announcement: %w", err)
		}
		ep, ok := parseAnnouncement(buf[:n], addr)
		if !ok {
			log.Debugw("discovery_datagram_ignored", "from", addr.String(), "bytes", n)
			continue
		}
		log.Infow("appliance_discovered", "host", ep.Host, "port", ep.Port)
		return ep, nil
	}
}

// parseAnnouncement extracts the endpoint from an announcement datagram.
func parseAnnouncement(msg []byte, from net.Addr) (Endpoint, bool) {
	if len(msg) < announcePortByte+2 || !bytes.HasPrefix(msg, []byte(AnnouncementTag)) {
		return Endpoint{}, false
	}
	var host string
	switch a := from.(type) {
	case *net.UDPAddr:
		host = a.IP.String()
	default:
		h, _, err := net.SplitHostPort(from.String())
		if err != nil {
			return Endpoint{}, false
		}
		host = h
	}
	ep := Endpoint{
		Host: host,
		Port: int(binary.BigEndian.Uint16(msg[announcePortByte : announcePortByte+2])),
	}
	return ep, ep.Valid()
}
