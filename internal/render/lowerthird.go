package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/overlay-relay/internal/domain"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Side anchors the graphic to one edge of the frame
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// ParseSide maps a flag value to a Side, defaulting to left
func ParseSide(raw string) Side {
	if strings.EqualFold(strings.TrimSpace(raw), string(SideRight)) {
		return SideRight
	}
	return SideLeft
}

// Phase is where the graphic sits in its enter/exit transition
type Phase string

const (
	PhaseHidden   Phase = "hidden"
	PhaseEntering Phase = "entering"
	PhaseShown    Phase = "shown"
	PhaseExiting  Phase = "exiting"
)

// Frame is what the lower third should display for one state
type Frame struct {
	Side    Side
	Phase   Phase
	Render  bool
	Name    string
	Rating  string
	Rank    string
	Country string
}

// Width of the text canvas used by Frame.String
const Width = 64

// String draws the frame as a single text line anchored to its side.
// A frame that does not render draws as an empty string.
func (f Frame) String() string {
	if !f.Render {
		return ""
	}
	parts := []string{f.Name, f.Rating}
	if f.Rank != "" {
		parts = append(parts, f.Rank)
	}
	if f.Country != "" {
		parts = append(parts, f.Country)
	}
	line := fmt.Sprintf("[%s] %s", f.Phase, strings.Join(parts, " · "))
	if f.Side == SideRight {
		return fmt.Sprintf("%*s", Width, line)
	}
	return line
}

// LowerThird turns successive overlay states into frames, remembering the
// previous visibility so it can report transitions.
type LowerThird struct {
	side    Side
	printer *message.Printer
	visible bool
}

// NewLowerThird creates a renderer anchored to side
func NewLowerThird(side Side) *LowerThird {
	return &LowerThird{
		side:    side,
		printer: message.NewPrinter(language.English),
	}
}

// Update computes the frame for state
func (l *LowerThird) Update(state domain.OverlayState) Frame {
	wasVisible := l.visible
	l.visible = state.Visible

	frame := Frame{Side: l.side}
	if state.Player == nil && !state.Visible {
		frame.Phase = PhaseHidden
		return frame
	}

	switch {
	case state.Visible && !wasVisible:
		frame.Phase = PhaseEntering
	case state.Visible:
		frame.Phase = PhaseShown
	case wasVisible:
		frame.Phase = PhaseExiting
	default:
		frame.Phase = PhaseHidden
	}

	frame.Render = true
	if p := state.Player; p != nil {
		frame.Name = strings.ToUpper(p.Name)
		frame.Rating = l.RatingLabel(p)
		frame.Rank = l.RankLabel(p)
		frame.Country = strings.ToUpper(p.CountryCode)
	}
	return frame
}

// RatingLabel formats the rating as "ELO 1,970", or "Unrated" when absent
func (l *LowerThird) RatingLabel(p *domain.PlayerRecord) string {
	if !p.IsRated() {
		return "Unrated"
	}
	return l.printer.Sprintf("ELO %d", int64(math.Round(*p.Rating)))
}

// RankLabel formats the rank as "RANK #142", or "" when absent
func (l *LowerThird) RankLabel(p *domain.PlayerRecord) string {
	if p == nil || p.Rank == nil {
		return ""
	}
	return l.printer.Sprintf("RANK #%d", *p.Rank)
}
