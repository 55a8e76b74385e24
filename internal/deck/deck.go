// internal/deck/deck.go
package deck

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"

	"github.com/google/uuid"
)

// Suit is a closed enumeration of card suits. WildSuit marks wildcard cards,
// which carry no fixed suit.
type Suit int

const (
	Hearts Suit = iota
	Diamonds
	Clubs
	Spades
	WildSuit
)

var suitNames = map[Suit]string{
	Hearts:   "hearts",
	Diamonds: "diamonds",
	Clubs:    "clubs",
	Spades:   "spades",
	WildSuit: "wild",
}

func (s Suit) String() string {
	if name, ok := suitNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Suit(%d)", int(s))
}

// MarshalJSON emits the suit as its wire name ("hearts", "wild", ...).
func (s Suit) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Rank is a closed enumeration of the shortened Spanish-deck ranks used by
// this variant: ace through seven, then jack, queen, king. Eights through
// tens do not exist in the deck. WildRank marks wildcard cards.
//
// The underlying integer is the rank's position in run order. The order is a
// strict total order with no wraparound: king and ace are never consecutive.
type Rank int

const (
	WildRank Rank = iota
	Ace
	Two
	Three
	Four
	Five
	Six
	Seven
	Jack
	Queen
	King
)

var rankNames = map[Rank]string{
	WildRank: "W",
	Ace:      "A",
	Two:      "2",
	Three:    "3",
	Four:     "4",
	Five:     "5",
	Six:      "6",
	Seven:    "7",
	Jack:     "J",
	Queen:    "Q",
	King:     "K",
}

func (r Rank) String() string {
	if name, ok := rankNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Rank(%d)", int(r))
}

// MarshalJSON emits the rank as its wire name ("A", "7", "K", "W", ...).
func (r Rank) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// Order returns the rank's position in run order (ace low, king high).
func (r Rank) Order() int {
	return int(r)
}

// Points returns the rank's meld point value: pip cards count their pip
// value, face cards are capped at 10, the ace is weighted high at 10, and a
// wildcard is worth 20.
func (r Rank) Points() int {
	switch r {
	case WildRank:
		return 20
	case Ace, Jack, Queen, King:
		return 10
	default:
		return int(r)
	}
}

// Card is a single physical card. Identity is the UUID; rank and suit never
// change once the card is created. Ownership moves between containers (deck,
// hand, discard pile, meld) but a card is never duplicated.
type Card struct {
	ID   uuid.UUID `json:"id"`
	Rank Rank      `json:"rank"`
	Suit Suit      `json:"suit"`
}

// IsWild reports whether the card is a wildcard.
func (c Card) IsWild() bool {
	return c.Rank == WildRank
}

func (c Card) String() string {
	if c.IsWild() {
		return "wildcard"
	}
	return fmt.Sprintf("%s of %s", c.Rank, c.Suit)
}

// WildcardCount is the number of wildcard cards added on top of the 40
// rank-by-suit cards.
const WildcardCount = 2

// Size is the total number of cards in a fresh deck.
const Size = 40 + WildcardCount

// New builds the full deck for a match: every rank-suit combination of the
// shortened deck plus WildcardCount wildcards, each with a fresh identity.
func New() []Card {
	suits := []Suit{Hearts, Diamonds, Clubs, Spades}
	ranks := []Rank{Ace, Two, Three, Four, Five, Six, Seven, Jack, Queen, King}

	cards := make([]Card, 0, Size)
	for _, suit := range suits {
		for _, rank := range ranks {
			cards = append(cards, Card{ID: uuid.New(), Rank: rank, Suit: suit})
		}
	}
	for i := 0; i < WildcardCount; i++ {
		cards = append(cards, Card{ID: uuid.New(), Rank: WildRank, Suit: WildSuit})
	}
	return cards
}

// Shuffle returns a uniformly random permutation of cards. The input slice is
// left untouched; the result holds the same card identities, no card is
// created or destroyed.
func Shuffle(cards []Card) []Card {
	shuffled := make([]Card, len(cards))
	copy(shuffled, cards)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}

// Split separates a group of cards into its real cards and its wildcards,
// preserving relative order.
func Split(cards []Card) (reals, wilds []Card) {
	for _, c := range cards {
		if c.IsWild() {
			wilds = append(wilds, c)
		} else {
			reals = append(reals, c)
		}
	}
	return reals, wilds
}

// SortRun orders a run's cards for storage and display: real cards ascending
// by rank, wildcards slotted into the internal gaps they fill, and any
// leftover wildcards appended at the high end.
func SortRun(cards []Card) []Card {
	reals, wilds := Split(cards)
	sort.Slice(reals, func(i, j int) bool {
		return reals[i].Rank.Order() < reals[j].Rank.Order()
	})

	ordered := make([]Card, 0, len(cards))
	for i, c := range reals {
		if i > 0 {
			gap := c.Rank.Order() - reals[i-1].Rank.Order() - 1
			for ; gap > 0 && len(wilds) > 0; gap-- {
				ordered = append(ordered, wilds[0])
				wilds = wilds[1:]
			}
		}
		ordered = append(ordered, c)
	}
	return append(ordered, wilds...)
}
