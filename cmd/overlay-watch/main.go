package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/overlay-relay/internal/client"
	"github.com/overlay-relay/internal/config"
	"github.com/overlay-relay/internal/domain"
	"github.com/overlay-relay/internal/render"
	"github.com/overlay-relay/internal/worker"
)

func main() {
	defaults := config.DefaultConfig()

	// Parse command line flags
	serverURL := flag.String("server", "http://localhost:8080", "Overlay relay base URL")
	slotFlag := flag.String("slot", string(domain.DefaultSlot), "Slot to display (player1 or player2)")
	sideFlag := flag.String("side", string(render.SideLeft), "Anchor side (left or right)")
	interval := flag.Duration("interval", defaults.Overlay.PollInterval, "Poll interval")
	logLevel := flag.String("log-level", defaults.Log.Level, "Log level")
	flag.Parse()

	// Frames go to stdout, logs to stderr
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.LogConfig{Level: *logLevel}.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if !domain.IsKnownSlot(*slotFlag) {
		logger.Warn("unknown slot, using default", "slot", *slotFlag, "default", domain.DefaultSlot)
	}
	slot := domain.ParseSlot(*slotFlag)

	relay := client.NewRelayClient(*serverURL, 5*time.Second)
	lowerThird := render.NewLowerThird(render.ParseSide(*sideFlag))
	poller := worker.NewPoller(relay, slot, *interval, clockwork.NewRealClock(), logger)

	var (
		lastFrame render.Frame
		lastErr   string
		drawn     bool
	)
	poller.OnUpdate(func(s worker.Snapshot) {
		if s.ConnectionError != lastErr {
			if s.ConnectionError != "" {
				logger.Warn("display disconnected", "message", s.ConnectionError)
			} else {
				logger.Info("display reconnected")
			}
			lastErr = s.ConnectionError
		}

		frame := lowerThird.Update(s.State)
		if drawn && frame == lastFrame {
			return
		}
		drawn = true
		lastFrame = frame
		logger.Debug("frame changed", "phase", frame.Phase, "render", frame.Render, "name", frame.Name)
		fmt.Fprintln(os.Stdout, frame.String())
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := poller.Start(ctx); err != nil {
		logger.Error("failed to start poller", "error", err)
		os.Exit(1)
	}
	logger.Info("watching overlay", "server", *serverURL, "slot", slot, "interval", *interval)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	poller.Stop()
	logger.Info("overlay watch stopped")
}
