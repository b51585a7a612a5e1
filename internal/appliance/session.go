package appliance

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"rinnai_gateway/internal/logger"
)

// Observer receives session events for instrumentation. Methods must not block.
type Observer interface {
	StateChanged(from, to State)
	FrameReceived(changed bool)
	FrameMalformed()
	FrameSent()
	AttemptFailed()
}

type nopObserver struct{}

func (nopObserver) StateChanged(State, State) {}
func (nopObserver) FrameReceived(bool)        {}
func (nopObserver) FrameMalformed()           {}
func (nopObserver) FrameSent()                {}
func (nopObserver) AttemptFailed()            {}

// gate releases Connect callers once the session is usable or has failed.
type gate struct {
	done   chan struct{}
	err    error
	opened bool
}

func newGate() *gate {
	return &gate{done: make(chan struct{})}
}

func (g *gate) open(err error) {
	if g.opened {
		return
	}
	g.opened = true
	g.err = err
	close(g.done)
}

// Session owns the single TCP session with the appliance: discovery, dial,
// handshake, frame decoding, keepalive and reconnection.
type Session struct {
	opts       Options
	discoverer Discoverer
	log        *logger.Logger
	observer   Observer
	notifier   *Notifier
	store      Store

	writeMu sync.Mutex

	mu            sync.Mutex
	state         State
	conn          net.Conn
	endpoint      Endpoint
	endpointKnown bool
	pinned        bool
	autoReconnect bool
	attempts      int
	failures      int
	gate          *gate
	cancel        context.CancelFunc
	loopDone      chan struct{}
}

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithObserver attaches an instrumentation observer.
func WithObserver(o Observer) SessionOption {
	return func(s *Session) {
		if o != nil {
			s.observer = o
		}
	}
}

// NewSession builds a disconnected session. discoverer may be nil when
// opts pins the endpoint.
func NewSession(opts Options, discoverer Discoverer, log *logger.Logger, sessOpts ...SessionOption) *Session {
	log = logger.OrNop(log)
	s := &Session{
		opts:       opts.withDefaults(),
		discoverer: discoverer,
		log:        log,
		observer:   nopObserver{},
		notifier:   NewNotifier(log),
		state:      Disconnected,
		attempts:   1,
		gate:       newGate(),
	}
	if ep, ok := s.opts.endpoint(); ok {
		s.endpoint, s.endpointKnown, s.pinned = ep, true, true
	}
	for _, o := range sessOpts {
		o(s)
	}
	return s
}

// OnStatusChanged registers fn for status changes. See Notifier.
func (s *Session) OnStatusChanged(fn func(*Snapshot)) func() { return s.notifier.OnStatusChanged(fn) }

// OnConnected registers fn for successful handshakes.
func (s *Session) OnConnected(fn func(Endpoint)) func() { return s.notifier.OnConnected(fn) }

// OnConnectionError registers fn for repeated connection failures.
func (s *Session) OnConnectionError(fn func(error, int)) func() {
	return s.notifier.OnConnectionError(fn)
}

// OnDisconnected registers fn for session closes.
func (s *Session) OnDisconnected(fn func(error)) func() { return s.notifier.OnDisconnected(fn) }

// OnDiscovered registers fn for discovered endpoints.
func (s *Session) OnDiscovered(fn func(Endpoint)) func() { return s.notifier.OnDiscovered(fn) }

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attempts returns the current connection attempt counter.
func (s *Session) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Endpoint returns the known appliance endpoint.
func (s *Session) Endpoint() (Endpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint, s.endpointKnown
}

// SetEndpoint seeds the endpoint from a previous discovery. It is ignored
// when the endpoint is pinned by options.
func (s *Session) SetEndpoint(ep Endpoint) {
	if !ep.Valid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pinned {
		return
	}
	s.endpoint, s.endpointKnown = ep, true
}

// Status returns the latest snapshot. It fails with ErrNotConnected unless
// the session is connected and a status frame has been received.
func (s *Session) Status() (*Snapshot, error) {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()
	snap := s.store.Current()
	if st != Connected || snap == nil {
		return nil, ErrNotConnected
	}
	return snap, nil
}

// Connect starts the session loop, or joins a running one, and blocks until
// the session is connected with a first snapshot stored, the loop gives up,
// or ctx ends.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Connected && s.store.Current() != nil {
		s.mu.Unlock()
		return nil
	}
	s.autoReconnect = s.opts.AutoReconnect
	if s.gate.opened {
		s.gate = newGate()
	}
	if s.loopDone == nil {
		s.attempts, s.failures = 1, 0
		loopCtx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		s.cancel, s.loopDone = cancel, done
		go s.run(loopCtx, cancel, done)
	}
	g := s.gate
	s.mu.Unlock()

	select {
	case <-g.done:
		return g.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect closes the session and suppresses any pending reconnect.
// It is safe to call repeatedly.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.autoReconnect = false
	if s.cancel != nil {
		s.cancel()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	done := s.loopDone
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Close disconnects and stops notification delivery.
func (s *Session) Close() {
	s.Disconnect()
	s.notifier.Close()
}

// Send frames payload with the next sequence number and writes it.
// Writes are serialised on writeMu; mu is held only to read conn and state.
func (s *Session) Send(payload string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	conn, state := s.conn, s.state
	s.mu.Unlock()
	if state != Connected || conn == nil {
		return ErrNotConnected
	}

	last := -1
	if snap := s.store.Current(); snap != nil {
		last = snap.Sequence
	}
	seq := nextSequence(last)
	frame := EncodeFrame(seq, payload)
	_ = conn.SetWriteDeadline(time.Now().Add(s.opts.IdleTimeout))
	if _, err := conn.Write(frame); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return ErrNotConnected
		}
		return fmt.Errorf("send frame: %w", err)
	}
	s.log.Debugw("frame_sent", "sequence", seq, "payload", payload)
	s.observer.FrameSent()
	return nil
}

func (s *Session) setState(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()
	s.observeState(from, to)
}

func (s *Session) observeState(from, to State) {
	if from == to {
		return
	}
	s.log.Debugw("session_state_changed", "from", from.String(), "to", to.String())
	s.observer.StateChanged(from, to)
}

func (s *Session) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)
	defer cancel()

	for {
		conn, frames, ep, err := s.establish(ctx)
		if err == nil {
			err = s.serve(ctx, conn, frames, ep)
		} else if ctx.Err() == nil {
			s.attemptFailed(err)
		}

		if ctx.Err() != nil || !s.reconnectEnabled() {
			if err == nil {
				err = ErrNotConnected
			}
			s.finish(err)
			return
		}

		s.mu.Lock()
		s.attempts++
		attempts := s.attempts
		s.mu.Unlock()
		s.setState(Reconnecting)
		s.log.Infow("reconnect_scheduled", "attempt", attempts, "delay", s.opts.SettleDelay.String())

		select {
		case <-time.After(s.opts.SettleDelay):
		case <-ctx.Done():
			s.finish(ctx.Err())
			return
		}
	}
}

func (s *Session) reconnectEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoReconnect
}

func (s *Session) finish(err error) {
	s.mu.Lock()
	from := s.state
	s.state = Disconnected
	s.cancel, s.loopDone = nil, nil
	s.gate.open(err)
	s.mu.Unlock()
	s.observeState(from, Disconnected)
}

func (s *Session) attemptFailed(err error) {
	s.mu.Lock()
	s.failures++
	failures, attempts := s.failures, s.attempts
	s.mu.Unlock()

	s.observer.AttemptFailed()
	s.log.Warnw("connection_attempt_failed", "attempt", attempts, "error", err)
	if failures == s.opts.MaxAttempts {
		s.notifier.emitConnectionError(err, attempts)
	}
}

// resolveEndpoint returns the known endpoint or runs discovery.
func (s *Session) resolveEndpoint(ctx context.Context) (Endpoint, error) {
	s.mu.Lock()
	ep, known := s.endpoint, s.endpointKnown
	s.mu.Unlock()
	if known {
		return ep, nil
	}
	if s.discoverer == nil {
		return Endpoint{}, ErrNoEndpoint
	}

	s.setState(Discovering)
	ep, err := s.discoverer.Discover(ctx)
	if err != nil {
		return Endpoint{}, fmt.Errorf("discover appliance: %w", err)
	}
	s.mu.Lock()
	s.endpoint, s.endpointKnown = ep, true
	s.mu.Unlock()
	s.notifier.emitDiscovered(ep)
	return ep, nil
}

// establish dials the appliance and completes the handshake.
func (s *Session) establish(ctx context.Context) (net.Conn, *bufio.Scanner, Endpoint, error) {
	ep, err := s.resolveEndpoint(ctx)
	if err != nil {
		return nil, nil, Endpoint{}, err
	}

	s.setState(Connecting)
	dialer := net.Dialer{Timeout: s.opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", ep.Address())
	if err != nil {
		s.mu.Lock()
		if !s.pinned {
			s.endpointKnown = false
		}
		s.mu.Unlock()
		return nil, nil, ep, fmt.Errorf("dial %s: %w", ep.Address(), err)
	}
	s.log.Infow("connection_established", "addr", ep.Address())

	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		_ = conn.Close()
		return nil, nil, ep, ctx.Err()
	}
	s.conn = conn
	from := s.state
	s.state = AwaitingHandshake
	s.mu.Unlock()
	s.observeState(from, AwaitingHandshake)

	frames := newFrameScanner(conn, s.opts.IdleTimeout)
	if !frames.Scan() {
		err := frames.Err()
		if err == nil {
			err = io.EOF
		}
		s.dropConn(conn)
		return nil, nil, ep, fmt.Errorf("read handshake: %w", err)
	}
	if tok := frames.Bytes(); !bytes.Equal(tok, handshake) {
		s.dropConn(conn)
		return nil, nil, ep, fmt.Errorf("%w by %s: got %q", ErrHandshakeRejected, ep.Address(), truncate(tok, 32))
	}
	return conn, frames, ep, nil
}

func (s *Session) dropConn(conn net.Conn) {
	_ = conn.Close()
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
}

// serve runs the connected phase until the socket closes.
func (s *Session) serve(ctx context.Context, conn net.Conn, frames *bufio.Scanner, ep Endpoint) error {
	s.mu.Lock()
	from := s.state
	s.state = Connected
	s.attempts = 1
	s.failures = 0
	s.mu.Unlock()
	s.observeState(from, Connected)
	s.log.Infow("appliance_connected", "addr", ep.Address())
	s.notifier.emitConnected(ep)

	kaCtx, stopKeepalive := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if s.opts.Keepalive {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.keepalive(kaCtx)
		}()
	}

	first := true
	for frames.Scan() {
		tok := frames.Bytes()
		if bytes.Equal(tok, handshake) {
			continue
		}
		snap, err := decodeStatus(tok, time.Now())
		if err != nil {
			s.log.Warnw("status_frame_malformed", "error", err, "frame", string(truncate(tok, 64)))
			s.observer.FrameMalformed()
			continue
		}
		changed := s.store.Publish(snap)
		s.observer.FrameReceived(changed)
		if first {
			first = false
			s.mu.Lock()
			s.gate.open(nil)
			s.mu.Unlock()
		}
		if changed {
			s.log.Debugw("status_changed", "sequence", snap.Sequence)
			s.notifier.emitStatusChanged(snap)
		}
	}
	readErr := frames.Err()
	var ne net.Error
	switch {
	case errors.As(readErr, &ne) && ne.Timeout():
		s.log.Warnw("connection_idle_timeout", "addr", ep.Address(), "timeout", s.opts.IdleTimeout.String())
	case readErr != nil && ctx.Err() == nil:
		s.log.Errorw("connection_lost", "addr", ep.Address(), "error", readErr)
	default:
		s.log.Infow("connection_closed", "addr", ep.Address())
	}

	s.setState(Closing)
	stopKeepalive()
	wg.Wait()
	s.dropConn(conn)
	s.store.Clear()

	s.mu.Lock()
	if s.gate.opened {
		s.gate = newGate()
	}
	s.mu.Unlock()
	s.notifier.emitDisconnected(readErr)
	s.setState(Disconnected)
	return readErr
}

func (s *Session) keepalive(ctx context.Context) {
	ticker := time.NewTicker(s.opts.KeepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Send(s.opts.KeepalivePayload); err != nil {
				s.log.Warnw("keepalive_failed", "error", err)
			}
		}
	}
}

// idleReader arms the read deadline before every read.
type idleReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (r idleReader) Read(p []byte) (int, error) {
	if r.timeout > 0 {
		if err := r.conn.SetReadDeadline(time.Now().Add(r.timeout)); err != nil {
			return 0, err
		}
	}
	return r.conn.Read(p)
}

func newFrameScanner(conn net.Conn, idle time.Duration) *bufio.Scanner {
	sc := bufio.NewScanner(idleReader{conn: conn, timeout: idle})
	sc.Buffer(make([]byte, 0, 4096), maxFrameSize)
	sc.Split(SplitFrames)
	return sc
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
