package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/overlay-relay/internal/client"
	"github.com/overlay-relay/internal/config"
	"github.com/overlay-relay/internal/controller"
	"github.com/overlay-relay/internal/domain"
	"github.com/overlay-relay/internal/render"
)

const usage = `commands:
  lookup <slot> <id>   look up a player for a slot
  publish <slot>       show the looked-up player
  clear <slot>         hide the slot's graphic
  status               show both slots
  quit                 exit`

type operator struct {
	controllers map[domain.Slot]*controller.SlotController
	labels      *render.LowerThird
	timeout     time.Duration
	out         io.Writer
}

func main() {
	defaults := config.DefaultConfig()

	// Parse command line flags
	serverURL := flag.String("server", "http://localhost:8080", "Overlay relay base URL")
	timeout := flag.Duration("timeout", 10*time.Second, "Per-command timeout")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.LogConfig{Level: *logLevel}.SlogLevel(),
	}))
	slog.SetDefault(logger)

	relay := client.NewRelayClient(*serverURL, *timeout)
	clock := clockwork.NewRealClock()

	op := &operator{
		controllers: make(map[domain.Slot]*controller.SlotController),
		labels:      render.NewLowerThird(render.SideLeft),
		timeout:     *timeout,
		out:         os.Stdout,
	}
	for _, slot := range domain.Slots() {
		c := controller.NewSlotController(slot, relay, &defaults.Overlay, clock, logger)
		defer c.Close()
		op.controllers[slot] = c
	}

	fmt.Fprintln(op.out, usage)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(op.out, "> ")
		if !scanner.Scan() {
			break
		}
		if !op.handle(scanner.Text()) {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Error("reading commands", "error", err)
	}
}

// handle runs one command line and reports whether to keep reading
func (o *operator) handle(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	switch cmd := strings.ToLower(fields[0]); cmd {
	case "quit", "exit":
		return false
	case "status":
		for _, slot := range domain.Slots() {
			o.printStatus(o.controllers[slot].Snapshot())
		}
	case "lookup", "publish", "clear":
		if len(fields) < 2 || !domain.IsKnownSlot(fields[1]) {
			fmt.Fprintf(o.out, "%s: expected a slot (player1 or player2)\n", cmd)
			return true
		}
		c := o.controllers[domain.Slot(fields[1])]
		o.run(ctx, c, cmd, fields[2:])
	case "help":
		fmt.Fprintln(o.out, usage)
	default:
		fmt.Fprintf(o.out, "unknown command %q\n", cmd)
	}
	return true
}

func (o *operator) run(ctx context.Context, c *controller.SlotController, cmd string, args []string) {
	switch cmd {
	case "lookup":
		id := strings.Join(args, " ")
		c.SetInput(id)
		if _, err := c.Submit(ctx, id); err != nil {
			o.printFailure(c, cmd, err, c.Snapshot().Lookup)
			return
		}
		v := c.Snapshot()
		fmt.Fprintf(o.out, "%s: found %s\n", c.Slot(), o.describe(v.LookedUp))
	case "publish":
		if err := c.Publish(ctx); err != nil {
			o.printFailure(c, cmd, err, c.Snapshot().Publish)
			return
		}
		fmt.Fprintf(o.out, "%s: live %s\n", c.Slot(), o.describe(c.Snapshot().Live))
	case "clear":
		if err := c.Clear(ctx); err != nil {
			o.printFailure(c, cmd, err, c.Snapshot().Clear)
			return
		}
		fmt.Fprintf(o.out, "%s: cleared\n", c.Slot())
	}
}

func (o *operator) printFailure(c *controller.SlotController, cmd string, err error, status controller.ActionStatus) {
	message := status.Error
	switch {
	case status.State == controller.ActionFailed && message != "":
	case errors.Is(err, domain.ErrActionNotAllowed) && cmd == "publish":
		message = "look up a player first"
	case errors.Is(err, domain.ErrActionNotAllowed) && cmd == "clear":
		message = "nothing is live"
	default:
		message = err.Error()
	}
	fmt.Fprintf(o.out, "%s: %s failed: %s\n", c.Slot(), cmd, message)
}

func (o *operator) printStatus(v controller.View) {
	live := "off air"
	switch {
	case v.Visible && v.Live != nil:
		live = "live " + o.describe(v.Live)
	case v.Live != nil:
		live = "fading " + o.describe(v.Live)
	}
	fmt.Fprintf(o.out, "%s: %s | lookup %s | publish %s | clear %s\n",
		v.Slot, live, v.Lookup.State, v.Publish.State, v.Clear.State)
	if v.LookedUp != nil {
		fmt.Fprintf(o.out, "  looked up: %s\n", o.describe(v.LookedUp))
	}
	for _, status := range []controller.ActionStatus{v.Lookup, v.Publish, v.Clear} {
		if status.Error != "" {
			fmt.Fprintf(o.out, "  error: %s\n", status.Error)
		}
	}
	if v.ShowSuccess {
		fmt.Fprintln(o.out, "  sent to overlay")
	}
}

func (o *operator) describe(p *domain.PlayerRecord) string {
	if p == nil {
		return "-"
	}
	parts := []string{p.Name, o.labels.RatingLabel(p)}
	if rank := o.labels.RankLabel(p); rank != "" {
		parts = append(parts, rank)
	}
	if p.CountryCode != "" {
		parts = append(parts, strings.ToUpper(p.CountryCode))
	}
	return strings.Join(parts, " · ")
}
