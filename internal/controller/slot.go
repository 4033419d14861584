package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/overlay-relay/internal/client"
	"github.com/overlay-relay/internal/config"
	"github.com/overlay-relay/internal/domain"
)

// Action-scoped messages shown when the relay cannot be reached
const (
	LookupNetworkMessage  = "Network error: could not reach the server. Try again."
	PublishNetworkMessage = "Network error: could not update the overlay. Try again."
	ClearNetworkMessage   = "Network error: could not clear the overlay. Try again."
)

// ActionState is the lifecycle of one operator action
type ActionState int

const (
	ActionIdle ActionState = iota
	ActionRunning
	ActionSucceeded
	ActionFailed
)

func (s ActionState) String() string {
	switch s {
	case ActionRunning:
		return "running"
	case ActionSucceeded:
		return "succeeded"
	case ActionFailed:
		return "failed"
	default:
		return "idle"
	}
}

// ActionStatus pairs an action state with its last error message
type ActionStatus struct {
	State ActionState
	Error string
}

// Relay is the part of the relay surface a controller drives
type Relay interface {
	LookupPlayer(ctx context.Context, id string) (*domain.PlayerRecord, error)
	WriteState(ctx context.Context, slot domain.Slot, state domain.OverlayState) (domain.OverlayState, error)
}

// View is a point-in-time copy of a controller's state
type View struct {
	Slot        domain.Slot
	Input       string
	LookedUp    *domain.PlayerRecord
	Live        *domain.PlayerRecord
	Visible     bool
	Lookup      ActionStatus
	Publish     ActionStatus
	Clear       ActionStatus
	ShowSuccess bool
}

// Sending reports whether a publish or clear is outstanding
func (v View) Sending() bool {
	return v.Publish.State == ActionRunning || v.Clear.State == ActionRunning
}

// SlotController drives lookup, publish and clear for a single slot.
// Controllers for different slots share nothing.
type SlotController struct {
	slot   domain.Slot
	relay  Relay
	config *config.OverlayConfig
	clock  clockwork.Clock
	logger *slog.Logger

	mu           sync.Mutex
	view         View
	closed       bool
	successTimer clockwork.Timer
	successSeq   uint64
	fadeTimer    clockwork.Timer
	fadeSeq      uint64
}

// NewSlotController creates a controller for slot
func NewSlotController(slot domain.Slot, relay Relay, cfg *config.OverlayConfig, clock clockwork.Clock, logger *slog.Logger) *SlotController {
	return &SlotController{
		slot:   slot,
		relay:  relay,
		config: cfg,
		clock:  clock,
		logger: logger.With("slot", string(slot)),
		view:   View{Slot: slot},
	}
}

// Slot returns the slot this controller drives
func (c *SlotController) Slot() domain.Slot {
	return c.slot
}

// SetInput records the id the operator has typed
func (c *SlotController) SetInput(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.Input = id
}

// Submit looks up id through the relay. The previous lookup result is dropped
// when the lookup starts.
func (c *SlotController) Submit(ctx context.Context, id string) (*domain.PlayerRecord, error) {
	id = domain.NormalizePlayerID(id)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, domain.ErrControllerClosed
	}
	if id == "" {
		c.mu.Unlock()
		return nil, domain.ErrPlayerIDRequired
	}
	if c.view.Lookup.State == ActionRunning {
		c.mu.Unlock()
		return nil, domain.ErrActionInFlight
	}
	c.view.Input = id
	c.view.LookedUp = nil
	c.view.Lookup = ActionStatus{State: ActionRunning}
	c.mu.Unlock()

	player, err := c.relay.LookupPlayer(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, domain.ErrControllerClosed
	}
	if err != nil {
		c.view.Lookup = ActionStatus{State: ActionFailed, Error: actionMessage(err, LookupNetworkMessage)}
		c.logger.Warn("player lookup failed", "player_id", id, "error", err)
		return nil, err
	}

	c.view.LookedUp = clonePlayer(player)
	c.view.Lookup = ActionStatus{State: ActionSucceeded}
	c.logger.Info("player looked up", "player_id", player.ID, "name", player.Name)
	return clonePlayer(player), nil
}

// Publish sends the looked-up record to the overlay as visible
func (c *SlotController) Publish(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrControllerClosed
	}
	if c.view.Sending() {
		c.mu.Unlock()
		return domain.ErrActionInFlight
	}
	if c.view.LookedUp == nil {
		c.mu.Unlock()
		return domain.ErrActionNotAllowed
	}
	player := clonePlayer(c.view.LookedUp)
	c.view.Publish = ActionStatus{State: ActionRunning}
	c.view.ShowSuccess = false
	c.mu.Unlock()

	_, err := c.relay.WriteState(ctx, c.slot, domain.OverlayState{Player: player, Visible: true})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrControllerClosed
	}
	if err != nil {
		c.view.Publish = ActionStatus{State: ActionFailed, Error: actionMessage(err, PublishNetworkMessage)}
		c.logger.Warn("publish failed", "error", err)
		return err
	}

	c.cancelFadeLocked()
	c.view.Live = player
	c.view.Visible = true
	c.view.Publish = ActionStatus{State: ActionSucceeded}
	c.view.Clear = ActionStatus{}
	c.showSuccessLocked()
	c.logger.Info("overlay published", "player_id", player.ID)
	return nil
}

// Clear hides the overlay. The live record is kept for the fade-out and
// dropped once the fade delay has elapsed.
func (c *SlotController) Clear(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrControllerClosed
	}
	if c.view.Sending() {
		c.mu.Unlock()
		return domain.ErrActionInFlight
	}
	if !c.view.Visible {
		c.mu.Unlock()
		return domain.ErrActionNotAllowed
	}
	player := clonePlayer(c.view.Live)
	c.view.Clear = ActionStatus{State: ActionRunning}
	c.mu.Unlock()

	_, err := c.relay.WriteState(ctx, c.slot, domain.OverlayState{Player: player, Visible: false})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrControllerClosed
	}
	if err != nil {
		c.view.Clear = ActionStatus{State: ActionFailed, Error: actionMessage(err, ClearNetworkMessage)}
		c.logger.Warn("clear failed", "error", err)
		return err
	}

	c.view.Visible = false
	c.view.Clear = ActionStatus{State: ActionSucceeded}
	c.scheduleFadeLocked()
	c.logger.Info("overlay cleared")
	return nil
}

// Snapshot returns a copy of the current view
func (c *SlotController) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.view
	v.LookedUp = clonePlayer(c.view.LookedUp)
	v.Live = clonePlayer(c.view.Live)
	return v
}

// Close stops pending timers. Calls still in flight return
// domain.ErrControllerClosed and leave the view untouched.
func (c *SlotController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.successTimer != nil {
		c.successTimer.Stop()
	}
	c.cancelFadeLocked()
}

func (c *SlotController) showSuccessLocked() {
	if c.successTimer != nil {
		c.successTimer.Stop()
	}
	c.successSeq++
	seq := c.successSeq
	c.view.ShowSuccess = true
	c.successTimer = c.clock.AfterFunc(c.config.SuccessIndicator, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if seq == c.successSeq {
			c.view.ShowSuccess = false
		}
	})
}

func (c *SlotController) scheduleFadeLocked() {
	c.cancelFadeLocked()
	seq := c.fadeSeq
	c.fadeTimer = c.clock.AfterFunc(c.config.FadeDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if seq == c.fadeSeq && !c.view.Visible {
			c.view.Live = nil
		}
	})
}

// cancelFadeLocked also invalidates a fade callback that already fired but
// has not taken the lock yet.
func (c *SlotController) cancelFadeLocked() {
	c.fadeSeq++
	if c.fadeTimer != nil {
		c.fadeTimer.Stop()
		c.fadeTimer = nil
	}
}

// actionMessage turns err into the text shown next to the failed action
func actionMessage(err error, networkMessage string) string {
	if client.IsNetworkError(err) {
		return networkMessage
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

func clonePlayer(p *domain.PlayerRecord) *domain.PlayerRecord {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Rating != nil {
		rating := *p.Rating
		cp.Rating = &rating
	}
	if p.Rank != nil {
		rank := *p.Rank
		cp.Rank = &rank
	}
	return &cp
}
