package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// Slot identifies an independent overlay channel
type Slot string

const (
	SlotPlayer1 Slot = "player1"
	SlotPlayer2 Slot = "player2"

	// DefaultSlot is used for callers that omit or misspell the slot
	DefaultSlot = SlotPlayer1
)

// Slots returns every known slot in display order
func Slots() []Slot {
	return []Slot{SlotPlayer1, SlotPlayer2}
}

// ParseSlot maps a raw identifier to a slot. Unrecognized values fall back to
// DefaultSlot and never fail.
func ParseSlot(raw string) Slot {
	switch Slot(raw) {
	case SlotPlayer1, SlotPlayer2:
		return Slot(raw)
	default:
		return DefaultSlot
	}
}

// IsKnownSlot reports whether raw names a slot exactly
func IsKnownSlot(raw string) bool {
	for _, s := range Slots() {
		if string(s) == raw {
			return true
		}
	}
	return false
}

// OverlayState is the published state of one slot. Visible=false with a
// non-nil Player is the fade-out state.
type OverlayState struct {
	Player  *PlayerRecord `json:"player"`
	Visible bool          `json:"visible"`
}

// EmptyOverlayState returns the state of a slot that was never written
func EmptyOverlayState() OverlayState {
	return OverlayState{Player: nil, Visible: false}
}

// EmptyOverlayStateJSON is the wire form of EmptyOverlayState
var EmptyOverlayStateJSON = json.RawMessage(`{"player":null,"visible":false}`)

// IsJSONObject reports whether data is a well-formed JSON object
func IsJSONObject(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var obj map[string]json.RawMessage
	return json.Unmarshal(trimmed, &obj) == nil
}

// DecodeOverlayState parses a stored payload leniently. Payloads that do not
// have the OverlayState shape decode to the empty state.
func DecodeOverlayState(data []byte) OverlayState {
	var state OverlayState
	if err := json.Unmarshal(data, &state); err != nil {
		return EmptyOverlayState()
	}
	return state
}

// OverlayEvent records one accepted relay write
type OverlayEvent struct {
	ID         string          `json:"id"`
	Slot       Slot            `json:"slot"`
	Visible    bool            `json:"visible"`
	PlayerID   string          `json:"player_id,omitempty"`
	PlayerName string          `json:"player_name,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
}
