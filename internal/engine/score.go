// internal/engine/score.go
package engine

import "github.com/google/uuid"

// MeldPoints sums the point value of every card in every meld owned by the
// player. Read-only; used to gate discard-pile draws.
func (g *Game) MeldPoints(playerID uuid.UUID) int {
	total := 0
	for _, m := range g.Melds {
		if m.OwnerID != playerID {
			continue
		}
		for _, c := range m.Cards {
			total += c.Rank.Points()
		}
	}
	return total
}

// MeldCount counts the melds owned by the player.
func (g *Game) MeldCount(playerID uuid.UUID) int {
	n := 0
	for _, m := range g.Melds {
		if m.OwnerID == playerID {
			n++
		}
	}
	return n
}
