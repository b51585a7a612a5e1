package emulator

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"rinnai_gateway/internal/appliance"
)

// Announcement builds the discovery datagram advertising tcpPort.
func Announcement(tcpPort int) []byte {
	msg := make([]byte, 40)
	copy(msg, appliance.AnnouncementTag)
	binary.BigEndian.PutUint16(msg[32:34], uint16(tcpPort))
	return msg
}

// Announce broadcasts the discovery datagram to target every interval until
// ctx ends. target defaults to the limited broadcast address.
func (e *Emulator) Announce(ctx context.Context, target string, interval time.Duration) error {
	if target == "" {
		target = fmt.Sprintf("255.255.255.255:%d", appliance.DiscoveryPort)
	}
	if interval <= 0 {
		interval = announceInterval
	}
	addr, err := net.ResolveUDPAddr("udp4", target)
	if err != nil {
		return fmt.Errorf("resolve announce target %q: %w", target, err)
	}
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return fmt.Errorf("dial announce target %q: %w", target, err)
	}
	defer conn.Close()

	msg := Announcement(e.Endpoint().Port)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := conn.Write(msg); err != nil {
			e.log.Warnw("emulator_announce_failed", "target", target, "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}
