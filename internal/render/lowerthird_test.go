package render

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/overlay-relay/internal/domain"
)

func player(rating *float64, rank *int) *domain.PlayerRecord {
	return &domain.PlayerRecord{ID: "78449312", Name: "Jane Doe", Rating: rating, Rank: rank, CountryCode: "us"}
}

func ptrFloat(v float64) *float64 { return &v }
func ptrInt(v int) *int           { return &v }

func TestEmptyStateRendersNothing(t *testing.T) {
	l := NewLowerThird(SideLeft)

	frame := l.Update(domain.EmptyOverlayState())
	if frame.Render {
		t.Error("empty state rendered")
	}
	if frame.Phase != PhaseHidden {
		t.Errorf("phase = %s", frame.Phase)
	}
	if frame.String() != "" {
		t.Errorf("String() = %q, want empty", frame.String())
	}
}

func TestTransitions(t *testing.T) {
	p := player(ptrFloat(1970), ptrInt(142))
	steps := []struct {
		state  domain.OverlayState
		phase  Phase
		render bool
	}{
		{domain.OverlayState{}, PhaseHidden, false},
		{domain.OverlayState{Player: p, Visible: true}, PhaseEntering, true},
		{domain.OverlayState{Player: p, Visible: true}, PhaseShown, true},
		{domain.OverlayState{Player: p, Visible: false}, PhaseExiting, true},
		{domain.OverlayState{Player: p, Visible: false}, PhaseHidden, true},
		{domain.OverlayState{}, PhaseHidden, false},
		{domain.OverlayState{Player: p, Visible: true}, PhaseEntering, true},
	}

	l := NewLowerThird(SideLeft)
	for i, step := range steps {
		frame := l.Update(step.state)
		if frame.Phase != step.phase || frame.Render != step.render {
			t.Errorf("step %d: phase=%s render=%v, want %s %v", i, frame.Phase, frame.Render, step.phase, step.render)
		}
	}
}

func TestExitKeepsPlayerData(t *testing.T) {
	l := NewLowerThird(SideLeft)
	p := player(ptrFloat(1970), ptrInt(142))
	l.Update(domain.OverlayState{Player: p, Visible: true})

	frame := l.Update(domain.OverlayState{Player: p, Visible: false})
	if frame.Name != "JANE DOE" {
		t.Errorf("name = %q during exit", frame.Name)
	}
}

func TestLabels(t *testing.T) {
	tests := []struct {
		name    string
		player  *domain.PlayerRecord
		rating  string
		rank    string
		country string
	}{
		{"rated", player(ptrFloat(1970), ptrInt(142)), "ELO 1,970", "RANK #142", "US"},
		{"large rank", player(ptrFloat(1432.6), ptrInt(12045)), "ELO 1,433", "RANK #12,045", "US"},
		{"unrated", player(nil, nil), "Unrated", "", "US"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := NewLowerThird(SideLeft).Update(domain.OverlayState{Player: tt.player, Visible: true})
			if frame.Rating != tt.rating {
				t.Errorf("rating = %q, want %q", frame.Rating, tt.rating)
			}
			if frame.Rank != tt.rank {
				t.Errorf("rank = %q, want %q", frame.Rank, tt.rank)
			}
			if frame.Country != tt.country {
				t.Errorf("country = %q, want %q", frame.Country, tt.country)
			}
		})
	}
}

func TestSideAnchoring(t *testing.T) {
	state := domain.OverlayState{Player: player(nil, nil), Visible: true}

	left := NewLowerThird(SideLeft).Update(state).String()
	right := NewLowerThird(SideRight).Update(state).String()

	if strings.HasPrefix(left, " ") {
		t.Errorf("left frame is padded: %q", left)
	}
	if !strings.HasPrefix(right, " ") || utf8.RuneCountInString(right) != Width {
		t.Errorf("right frame not anchored: %q", right)
	}
	if strings.TrimSpace(left) != strings.TrimSpace(right) {
		t.Errorf("side changed content: %q vs %q", left, right)
	}
}

func TestParseSide(t *testing.T) {
	if ParseSide("RIGHT") != SideRight {
		t.Error("RIGHT not parsed")
	}
	if ParseSide("") != SideLeft || ParseSide("bogus") != SideLeft {
		t.Error("default side is not left")
	}
}
