package emulator

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"sync"
	"time"

	"rinnai_gateway/internal/appliance"
	"rinnai_gateway/internal/logger"
	"rinnai_gateway/internal/schema"
)

// Simulation constants.
const (
	Unavailable  = 999 // reading/set point not fitted
	DegreesPerS  = 0.5 // zone temperature change per second toward set point
	AmbientTempC = 16  // zones drift here when the service is off

	DefaultListenAddr   = ":27847"
	DefaultPushInterval = time.Second
	announceInterval    = time.Second
)

// Options configures an Emulator.
type Options struct {
	ListenAddr   string
	PushInterval time.Duration
	// IgnoreCommands records inbound commands without applying them.
	IgnoreCommands bool
	State          appliance.StateTree
}

type client struct {
	conn net.Conn
	wake chan struct{}
}

// Emulator is a fake Rinnai Touch module: it greets TCP clients with the
// handshake token, pushes status frames and applies inbound commands.
type Emulator struct {
	opts Options
	log  *logger.Logger

	mu       sync.Mutex
	tree     appliance.StateTree
	seq      int
	commands []string
	clients  map[*client]struct{}
	ln       net.Listener
	temps    map[string]float64
}

// New builds an emulator; Listen starts it.
func New(opts Options, log *logger.Logger) *Emulator {
	if opts.ListenAddr == "" {
		opts.ListenAddr = DefaultListenAddr
	}
	if opts.PushInterval <= 0 {
		opts.PushInterval = DefaultPushInterval
	}
	tree := opts.State
	if tree == nil {
		tree = DefaultState()
	}
	return &Emulator{
		opts:    opts,
		log:     logger.OrNop(log),
		tree:    tree,
		clients: make(map[*client]struct{}),
		temps:   make(map[string]float64),
	}
}

// Listen binds the TCP listener.
func (e *Emulator) Listen() error {
	ln, err := net.Listen("tcp", e.opts.ListenAddr)
	if err != nil {
		return fmt.Errorf("emulator listen %s: %w", e.opts.ListenAddr, err)
	}
	e.mu.Lock()
	e.ln = ln
	e.mu.Unlock()
	e.log.Infow("emulator_listening", "addr", ln.Addr().String())
	return nil
}

// Endpoint returns the loopback endpoint of the bound listener.
func (e *Emulator) Endpoint() appliance.Endpoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ln == nil {
		return appliance.Endpoint{}
	}
	addr := e.ln.Addr().(*net.TCPAddr)
	return appliance.Endpoint{Host: "127.0.0.1", Port: addr.Port}
}

// Serve accepts sessions until ctx ends. Listen must have been called.
func (e *Emulator) Serve(ctx context.Context) error {
	e.mu.Lock()
	ln := e.ln
	e.mu.Unlock()
	if ln == nil {
		return errors.New("emulator: Serve called before Listen")
	}
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()
	defer e.DropClients()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("emulator accept: %w", err)
		}
		c := &client{conn: conn, wake: make(chan struct{}, 1)}
		e.mu.Lock()
		e.clients[c] = struct{}{}
		e.mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			e.handle(ctx, c)
		}()
	}
}

func (e *Emulator) handle(ctx context.Context, c *client) {
	defer func() {
		_ = c.conn.Close()
		e.mu.Lock()
		delete(e.clients, c)
		e.mu.Unlock()
	}()
	e.log.Infow("emulator_client_connected", "remote", c.conn.RemoteAddr().String())

	if _, err := c.conn.Write([]byte(appliance.HandshakeToken)); err != nil {
		return
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		e.readCommands(c)
	}()

	ticker := time.NewTicker(e.opts.PushInterval)
	defer ticker.Stop()
	for {
		if _, err := c.conn.Write(e.statusFrame()); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-readDone:
			return
		case <-ticker.C:
		case <-c.wake:
		}
	}
}

func (e *Emulator) readCommands(c *client) {
	sc := bufio.NewScanner(c.conn)
	sc.Split(appliance.SplitFrames)
	for sc.Scan() {
		tok := sc.Bytes()
		if len(tok) < 7 || tok[0] != appliance.FrameMarker {
			e.log.Warnw("emulator_unexpected_bytes", "data", string(tok))
			continue
		}
		seq, err := strconv.Atoi(string(tok[1:7]))
		if err != nil {
			e.log.Warnw("emulator_bad_sequence", "frame", string(tok))
			continue
		}
		e.apply(seq, tok[7:])
	}
}

func (e *Emulator) apply(seq int, payload []byte) {
	update, err := appliance.DecodeTree(payload)
	if err != nil {
		e.log.Warnw("emulator_bad_command", "error", err)
		return
	}

	e.mu.Lock()
	e.commands = append(e.commands, string(payload))
	if !e.opts.IgnoreCommands {
		e.tree.Merge(update)
		e.seq = seq
	}
	e.mu.Unlock()

	e.log.Debugw("emulator_command", "sequence", seq, "payload", string(payload))
	if !e.opts.IgnoreCommands {
		e.wakeAll()
	}
}

func (e *Emulator) wakeAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for c := range e.clients {
		select {
		case c.wake <- struct{}{}:
		default:
		}
	}
}

// statusFrame renders the state as an array of single-group objects,
// groups in sorted order.
func (e *Emulator) statusFrame() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	groups := make([]string, 0, len(e.tree))
	for g := range e.tree {
		groups = append(groups, g)
	}
	slices.Sort(groups)

	payload := make([]map[string]map[string]map[string]any, 0, len(groups))
	for _, g := range groups {
		payload = append(payload, map[string]map[string]map[string]any{g: e.tree[g]})
	}
	b, err := json.Marshal(payload)
	if err != nil {
		b = []byte("[]")
	}
	return appliance.EncodeFrame(e.seq, string(b))
}

// Set overwrites one leaf and pushes the new state.
func (e *Emulator) Set(path string, value any) error {
	p, err := schema.ParsePath(path)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.tree.Merge(appliance.StateTree(p.Nest(value)))
	e.mu.Unlock()
	e.wakeAll()
	return nil
}

// Get returns one leaf of the current state.
func (e *Emulator) Get(path string) (any, bool) {
	p, err := schema.ParsePath(path)
	if err != nil {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tree.Lookup(p)
}

// Commands returns the payloads received so far.
func (e *Emulator) Commands() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.commands)
}

// DropClients closes every open session.
func (e *Emulator) DropClients() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for c := range e.clients {
		_ = c.conn.Close()
	}
}
