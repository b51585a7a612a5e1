package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"rinnai_gateway/internal/appliance"
	"rinnai_gateway/internal/emulator"
	"rinnai_gateway/internal/models"
	"rinnai_gateway/internal/schema"
)

// startApplianceService connects a real session to an in-process emulator.
func startApplianceService(t *testing.T, emu emulator.Options) (*ApplianceService, *emulator.Emulator, *fakeEventRepo) {
	t.Helper()

	emu.ListenAddr = "127.0.0.1:0"
	if emu.PushInterval == 0 {
		emu.PushInterval = 100 * time.Millisecond
	}
	e := emulator.New(emu, nil)
	if err := e.Listen(); err != nil {
		t.Fatalf("emulator Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Serve(ctx)
	}()

	ep := e.Endpoint()
	opts := appliance.DefaultOptions()
	opts.Host, opts.Port = ep.Host, ep.Port
	opts.Keepalive = false
	sess := appliance.NewSession(opts, nil, nil)

	t.Cleanup(func() {
		sess.Close()
		cancel()
		<-done
	})

	events := &fakeEventRepo{}
	svc := NewApplianceService(sess, schema.Default(), ApplianceOptions{
		ConfirmInterval: 20 * time.Millisecond,
		ConfirmTimeout:  time.Second,
	}, events, nil)

	cctx, ccancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer ccancel()
	if err := svc.Connect(cctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return svc, e, events
}

func TestApplianceService_ConfigFromEmulator(t *testing.T) {
	svc, _, _ := startApplianceService(t, emulator.Options{})

	cfg, err := svc.Config()
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if got := cfg[schema.System]["operatingMode"]; got != "heating" {
		t.Fatalf("operatingMode = %v, want heating", got)
	}
	if _, ok := cfg[schema.GasHeating]; !ok {
		t.Fatalf("gasHeating missing from %v", cfg)
	}
	if _, ok := cfg[schema.EvapCooling]; ok {
		t.Fatalf("evapCooling is not installed but present")
	}
	if svc.State() != appliance.Connected {
		t.Fatalf("state = %v, want Connected", svc.State())
	}
}

func TestApplianceService_CommandConfirmed(t *testing.T) {
	svc, emu, events := startApplianceService(t, emulator.Options{})

	ok, err := svc.Command(context.Background(), CommandRequest{Service: schema.System, Field: "operatingMode", Value: "none"})
	if err != nil {
		t.Fatalf("Command: %v", err)
	}
	if !ok {
		t.Fatalf("Command not confirmed")
	}
	if got, _ := emu.Get("SYST.OSS.MD"); got != "N" {
		t.Fatalf("emulator MD = %v, want N", got)
	}

	ok, err = svc.GasHeating(context.Background(), "setTemp", "24")
	if err != nil || !ok {
		t.Fatalf("GasHeating setTemp = (%v, %v), want (true, nil)", ok, err)
	}
	cmds := emu.Commands()
	if !slices.Contains(cmds, `{"HGOM":{"GSO":{"SP":"24"}}}`) {
		t.Fatalf("emulator commands = %v", cmds)
	}

	if got := events.appendedTypes(); !slices.Equal(got, []string{models.EventCommand, models.EventCommand}) {
		t.Fatalf("recorded events = %v", got)
	}
	events.mu.Lock()
	confirmed := events.appended[0].Metadata.(map[string]any)["confirmed"]
	events.mu.Unlock()
	if confirmed != true {
		t.Fatalf("confirmed metadata = %v, want true", confirmed)
	}
}

func TestApplianceService_CommandUnconfirmed(t *testing.T) {
	svc, emu, events := startApplianceService(t, emulator.Options{IgnoreCommands: true})

	ok, err := svc.Command(context.Background(), CommandRequest{Service: schema.System, Field: "operatingMode", Value: "none"})
	if err != nil {
		t.Fatalf("Command: %v", err)
	}
	if ok {
		t.Fatalf("Command confirmed although the appliance ignored it")
	}
	if svc.State() != appliance.Connected {
		t.Fatalf("state = %v, want Connected after unconfirmed command", svc.State())
	}
	if len(emu.Commands()) != 1 {
		t.Fatalf("emulator received %d commands, want 1", len(emu.Commands()))
	}
	if got := events.appendedTypes(); !slices.Equal(got, []string{models.EventCommand}) {
		t.Fatalf("recorded events = %v", got)
	}
}

func TestApplianceService_InvalidCommandNotSentOrRecorded(t *testing.T) {
	svc, emu, events := startApplianceService(t, emulator.Options{})

	_, err := svc.EvapCooling(context.Background(), "operatingState", "on")
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("err = %v, want ErrServiceUnavailable", err)
	}
	if len(emu.Commands()) != 0 {
		t.Fatalf("invalid command reached the appliance: %v", emu.Commands())
	}
	if len(events.appendedTypes()) != 0 {
		t.Fatalf("invalid command was recorded")
	}
}

func TestApplianceService_SendRaw(t *testing.T) {
	svc, emu, events := startApplianceService(t, emulator.Options{})

	if err := svc.SendRaw(context.Background(), "   "); !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("empty payload err = %v", err)
	}

	payload := `{"HGOM":{"OOP":{"FL":"05"}}}`
	if err := svc.SendRaw(context.Background(), " "+payload+"\n"); err != nil {
		t.Fatalf("SendRaw: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if v, _ := emu.Get("HGOM.OOP.FL"); v == "05" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("raw command never applied; commands = %v", emu.Commands())
		}
		time.Sleep(10 * time.Millisecond)
	}

	if got := events.appendedTypes(); !slices.Equal(got, []string{models.EventRawCommand}) {
		t.Fatalf("recorded events = %v", got)
	}
	events.mu.Lock()
	desc := events.appended[0].Description
	events.mu.Unlock()
	if strings.TrimSpace(desc) != payload {
		t.Fatalf("description = %q, want %q", desc, payload)
	}
}

func TestApplianceService_StatusChangedNotified(t *testing.T) {
	svc, emu, _ := startApplianceService(t, emulator.Options{PushInterval: time.Hour})

	changed := make(chan *appliance.Snapshot, 4)
	unsub := svc.OnStatusChanged(func(s *appliance.Snapshot) {
		select {
		case changed <- s:
		default:
		}
	})
	defer unsub()

	if err := emu.Set("HGOM.ZAS.MT", "21"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	select {
	case snap := <-changed:
		if v, _ := snap.Tree.Lookup(schema.MustParsePath("HGOM.ZAS.MT")); v != "21" {
			t.Fatalf("ZAS.MT = %v, want 21", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no status change notification")
	}
}
