package service

import (
	"context"
	"sync"
	"testing"

	"rinnai_gateway/internal/appliance"
)

func mustTree(t *testing.T, payload string) appliance.StateTree {
	t.Helper()
	tree, err := appliance.DecodeTree([]byte(payload))
	if err != nil {
		t.Fatalf("DecodeTree(%s): %v", payload, err)
	}
	return tree
}

const gasHeatingOnly = `[
	{"SYST":{"CFG":{"TU":"C","CF":"2","NC":"N"},"AVM":{"HG":"Y","EC":"N","CG":"N","RA":"N"},"OSS":{"MD":"H","ST":"N"}}},
	{"HGOM":{"CFG":{"ZAIS":"Y","ZBIS":"N"},"OOP":{"ST":"N","FL":"16"},"GSO":{"SP":"22","AM":"H"},"ZUS":{"MT":999},"ZAO":{"SP":"21"}}}
]`

// fakeLink serves a fixed snapshot and records sent payloads. With apply
// set, sent payloads are merged into a new snapshot.
type fakeLink struct {
	mu        sync.Mutex
	snap      *appliance.Snapshot
	statusErr error
	sendErr   error
	apply     bool
	sent      []string
}

func newFakeLink(t *testing.T, payload string, apply bool) *fakeLink {
	t.Helper()
	return &fakeLink{snap: &appliance.Snapshot{Sequence: 1, Tree: mustTree(t, payload)}, apply: apply}
}

func (f *fakeLink) Status() (*appliance.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if f.snap == nil {
		return nil, appliance.ErrNotConnected
	}
	return f.snap, nil
}

func (f *fakeLink) Send(payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, payload)
	if !f.apply {
		return nil
	}
	update, err := appliance.DecodeTree([]byte(payload))
	if err != nil {
		return err
	}
	next := appliance.StateTree{}
	next.Merge(f.snap.Tree)
	next.Merge(update)
	f.snap = &appliance.Snapshot{Sequence: f.snap.Sequence + 1, Tree: next}
	return nil
}

func (f *fakeLink) sentPayloads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// fakeSession is a Session whose notifications are fired by the test.
type fakeSession struct {
	*fakeLink

	mu           sync.Mutex
	endpoint     appliance.Endpoint
	connected    []func(appliance.Endpoint)
	connErr      []func(error, int)
	disconnected []func(error)
	discovered   []func(appliance.Endpoint)
	changed      []func(*appliance.Snapshot)
}

func (s *fakeSession) Connect(context.Context) error { return nil }
func (s *fakeSession) Disconnect()                   {}
func (s *fakeSession) State() appliance.State        { return appliance.Connected }

func (s *fakeSession) Endpoint() (appliance.Endpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint, s.endpoint.Valid()
}

func (s *fakeSession) SetEndpoint(ep appliance.Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoint = ep
}

func (s *fakeSession) OnStatusChanged(fn func(*appliance.Snapshot)) func() {
	s.changed = append(s.changed, fn)
	return func() { s.changed = nil }
}

func (s *fakeSession) OnConnected(fn func(appliance.Endpoint)) func() {
	s.connected = append(s.connected, fn)
	return func() { s.connected = nil }
}

func (s *fakeSession) OnConnectionError(fn func(error, int)) func() {
	s.connErr = append(s.connErr, fn)
	return func() { s.connErr = nil }
}

func (s *fakeSession) OnDisconnected(fn func(error)) func() {
	s.disconnected = append(s.disconnected, fn)
	return func() { s.disconnected = nil }
}

func (s *fakeSession) OnDiscovered(fn func(appliance.Endpoint)) func() {
	s.discovered = append(s.discovered, fn)
	return func() { s.discovered = nil }
}
