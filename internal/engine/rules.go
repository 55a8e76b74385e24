// internal/engine/rules.go
package engine

import (
	"sort"

	"github.com/conquianhq/conquian/internal/deck"
)

// MeldMinimum is the smallest legal meld.
const MeldMinimum = 3

// LayoffMeldSize is the only meld size that accepts layoffs. A meld locks its
// minimal three-card shape before exactly one layoff round is allowed.
const LayoffMeldSize = 3

// IsValidSet reports whether cards form a valid set: at least three cards,
// every real card sharing one rank, wildcards standing in for the rest.
// Wildcards cannot form a set on their own.
func IsValidSet(cards []deck.Card) bool {
	if len(cards) < MeldMinimum {
		return false
	}
	reals, _ := deck.Split(cards)
	if len(reals) == 0 {
		return false
	}
	rank := reals[0].Rank
	for _, c := range reals[1:] {
		if c.Rank != rank {
			return false
		}
	}
	return true
}

// sortedReals returns the real cards of a candidate run in ascending rank
// order, plus the wildcard count.
func sortedReals(cards []deck.Card) ([]deck.Card, int) {
	reals, wilds := deck.Split(cards)
	sort.Slice(reals, func(i, j int) bool {
		return reals[i].Rank.Order() < reals[j].Rank.Order()
	})
	return reals, len(wilds)
}

// IsValidRun reports whether cards form a valid run: at least three cards, at
// least two of them real, all real cards in one suit with distinct ranks, and
// every internal rank gap between consecutive real cards filled by wildcards.
// Wildcards left over after gap filling extend the run at either end. Rank
// order never wraps; king-to-ace is not consecutive.
func IsValidRun(cards []deck.Card) bool {
	if len(cards) < MeldMinimum {
		return false
	}
	reals, wilds := sortedReals(cards)
	if len(reals) < 2 {
		return false
	}
	suit := reals[0].Suit
	for i := 1; i < len(reals); i++ {
		if reals[i].Suit != suit {
			return false
		}
		gap := reals[i].Rank.Order() - reals[i-1].Rank.Order()
		if gap == 0 {
			// Two real cards of the same rank can never share a run.
			return false
		}
		wilds -= gap - 1
		if wilds < 0 {
			return false
		}
	}
	return true
}

// realSpan returns the lowest and highest real-card rank order in cards.
// Callers must ensure at least one real card is present.
func realSpan(cards []deck.Card) (low, high int) {
	low, high = 0, 0
	for _, c := range cards {
		if c.IsWild() {
			continue
		}
		o := c.Rank.Order()
		if low == 0 || o < low {
			low = o
		}
		if o > high {
			high = o
		}
	}
	return low, high
}

// CanLayoff reports whether newCards may be appended to an existing meld.
//
// For a set, every new card must match the meld's established rank or be a
// wildcard. For a run, the combined collection must itself be a valid run and
// the new cards must only extend the run at its low or high end: a real card
// landing strictly inside the existing run's span is an interior insertion
// and is rejected even when the combined collection would validate.
func CanLayoff(m *Meld, newCards []deck.Card) bool {
	if len(newCards) == 0 {
		return false
	}
	switch m.Kind {
	case MeldSet:
		reals, _ := deck.Split(m.Cards)
		if len(reals) == 0 {
			return false
		}
		rank := reals[0].Rank
		for _, c := range newCards {
			if !c.IsWild() && c.Rank != rank {
				return false
			}
		}
		return true

	case MeldRun:
		combined := make([]deck.Card, 0, len(m.Cards)+len(newCards))
		combined = append(combined, m.Cards...)
		combined = append(combined, newCards...)
		if !IsValidRun(combined) {
			return false
		}
		low, high := realSpan(m.Cards)
		for _, c := range newCards {
			if c.IsWild() {
				continue
			}
			if o := c.Rank.Order(); o > low && o < high {
				return false
			}
		}
		return true
	}
	return false
}
