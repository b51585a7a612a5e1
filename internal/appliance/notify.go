package appliance

import (
	"sync"

	"rinnai_gateway/internal/logger"
)

const notifyQueueSize = 64

type subscribers[F any] struct {
	next int
	fns  map[int]F
}

func (s *subscribers[F]) add(fn F) int {
	if s.fns == nil {
		s.fns = make(map[int]F)
	}
	s.next++
	s.fns[s.next] = fn
	return s.next
}

func (s *subscribers[F]) list() []F {
	out := make([]F, 0, len(s.fns))
	for _, fn := range s.fns {
		out = append(out, fn)
	}
	return out
}

// Notifier fans session lifecycle events out to registered callbacks.
// Callbacks run on a single dispatcher goroutine, in emission order, so a
// slow subscriber never blocks the receive path. Events are dropped with a
// warning when the queue is full.
type Notifier struct {
	log *logger.Logger

	mu            sync.Mutex
	closed        bool
	statusChanged subscribers[func(*Snapshot)]
	connected     subscribers[func(Endpoint)]
	connErr       subscribers[func(error, int)]
	disconnected  subscribers[func(error)]
	discovered    subscribers[func(Endpoint)]

	queue chan func()
	done  chan struct{}
}

// NewNotifier starts the dispatcher goroutine. Call Close to stop it.
func NewNotifier(log *logger.Logger) *Notifier {
	n := &Notifier{
		log:   logger.OrNop(log),
		queue: make(chan func(), notifyQueueSize),
		done:  make(chan struct{}),
	}
	go n.dispatch()
	return n
}

func (n *Notifier) dispatch() {
	defer close(n.done)
	for fn := range n.queue {
		n.call(fn)
	}
}

func (n *Notifier) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Errorw("notification_subscriber_panic", "panic", r)
		}
	}()
	fn()
}

// Close stops accepting events, delivers the ones already queued and waits
// for the dispatcher to exit.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		<-n.done
		return
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()
	<-n.done
}

// OnStatusChanged registers fn for snapshots whose fingerprint differs from
// the previous one. The returned func unsubscribes.
func (n *Notifier) OnStatusChanged(fn func(*Snapshot)) func() {
	n.mu.Lock()
	id := n.statusChanged.add(fn)
	n.mu.Unlock()
	return n.remover(func() { delete(n.statusChanged.fns, id) })
}

// OnConnected registers fn for successful handshakes.
func (n *Notifier) OnConnected(fn func(Endpoint)) func() {
	n.mu.Lock()
	id := n.connected.add(fn)
	n.mu.Unlock()
	return n.remover(func() { delete(n.connected.fns, id) })
}

// OnConnectionError registers fn for repeated connection failures. attempts
// is the attempt counter at the time of the failure.
func (n *Notifier) OnConnectionError(fn func(err error, attempts int)) func() {
	n.mu.Lock()
	id := n.connErr.add(fn)
	n.mu.Unlock()
	return n.remover(func() { delete(n.connErr.fns, id) })
}

// OnDisconnected registers fn for session closes. err is nil on a clean close.
func (n *Notifier) OnDisconnected(fn func(error)) func() {
	n.mu.Lock()
	id := n.disconnected.add(fn)
	n.mu.Unlock()
	return n.remover(func() { delete(n.disconnected.fns, id) })
}

// OnDiscovered registers fn for endpoints found by discovery.
func (n *Notifier) OnDiscovered(fn func(Endpoint)) func() {
	n.mu.Lock()
	id := n.discovered.add(fn)
	n.mu.Unlock()
	return n.remover(func() { delete(n.discovered.fns, id) })
}

func (n *Notifier) remover(del func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			del()
			n.mu.Unlock()
		})
	}
}

func (n *Notifier) emitStatusChanged(snap *Snapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fns := n.statusChanged.list()
	n.enqueueLocked("status_changed", func() {
		for _, fn := range fns {
			fn(snap)
		}
	})
}

func (n *Notifier) emitConnected(ep Endpoint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fns := n.connected.list()
	n.enqueueLocked("connected", func() {
		for _, fn := range fns {
			fn(ep)
		}
	})
}

func (n *Notifier) emitConnectionError(err error, attempts int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fns := n.connErr.list()
	n.enqueueLocked("connection_error", func() {
		for _, fn := range fns {
			fn(err, attempts)
		}
	})
}

func (n *Notifier) emitDisconnected(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fns := n.disconnected.list()
	n.enqueueLocked("disconnected", func() {
		for _, fn := range fns {
			fn(err)
		}
	})
}

func (n *Notifier) emitDiscovered(ep Endpoint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fns := n.discovered.list()
	n.enqueueLocked("discovered", func() {
		for _, fn := range fns {
			fn(ep)
		}
	})
}

func (n *Notifier) enqueueLocked(event string, fn func()) {
	if n.closed {
		return
	}
	select {
	case n.queue <- fn:
	default:
		n.log.Warnw("notification_dropped", "event", event)
	}
}
