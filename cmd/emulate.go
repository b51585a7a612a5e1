package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"rinnai_gateway/internal/emulator"
)

var (
	emulateListen    string
	emulatePush      time.Duration
	emulateTick      time.Duration
	emulateAnnounce  bool
	emulateTarget    string
	emulateIgnoreCmd bool
)

var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Run a simulated Rinnai Touch module for local testing",
	RunE:  runEmulate,
}

func init() {
	f := emulateCmd.Flags()
	f.StringVarP(&emulateListen, "listen", "l", emulator.DefaultListenAddr, "TCP listen address")
	f.DurationVar(&emulatePush, "push-interval", emulator.DefaultPushInterval, "status push interval")
	f.DurationVar(&emulateTick, "tick", time.Second, "temperature simulation step")
	f.BoolVar(&emulateAnnounce, "announce", false, "broadcast UDP discovery announcements")
	f.StringVar(&emulateTarget, "announce-target", "", "announcement destination (default: 255.255.255.255:50000)")
	f.BoolVar(&emulateIgnoreCmd, "ignore-commands", false, "accept commands without applying them")
	rootCmd.AddCommand(emulateCmd)
}

func runEmulate(cmd *cobra.Command, _ []string) error {
	_, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	emu := emulator.New(emulator.Options{
		ListenAddr:     emulateListen,
		PushInterval:   emulatePush,
		IgnoreCommands: emulateIgnoreCmd,
	}, log.Named("emulator"))
	if err := emu.Listen(); err != nil {
		return err
	}
	log.Infow("emulator listening", "addr", emu.Endpoint().Address())

	go emu.Simulate(ctx, emulateTick)
	if emulateAnnounce {
		go func() {
			if err := emu.Announce(ctx, emulateTarget, 0); err != nil && ctx.Err() == nil {
				log.Errorw("announce failed", "err", err)
			}
		}()
	}

	return emu.Serve(ctx)
}
