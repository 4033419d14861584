package domain

import "strings"

// PlayerRecord is a competitor as returned by a leaderboard lookup.
// Rank is expected to be nil exactly when Rating is nil; this is source
// convention and is not enforced.
type PlayerRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Rating      *float64 `json:"rating"`
	Rank        *int     `json:"rank"`
	CountryCode string   `json:"countryCode,omitempty"`
}

// NormalizePlayerID trims surrounding whitespace from a lookup id
func NormalizePlayerID(id string) string {
	return strings.TrimSpace(id)
}

// IsRated reports whether the player has a rating
func (p *PlayerRecord) IsRated() bool {
	return p != nil && p.Rating != nil
}
