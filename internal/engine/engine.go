// internal/engine/engine.go
package engine

import (
	"github.com/google/uuid"

	"github.com/conquianhq/conquian/internal/deck"
)

// Status is the top-level game state.
type Status string

const (
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Phase is the per-turn sub-state: the current player either still owes a
// draw or has drawn and may act.
type Phase string

const (
	PhaseDraw   Phase = "draw"
	PhaseAction Phase = "action"
)

// DrawSource selects which pile a draw takes from.
type DrawSource string

const (
	DrawStock   DrawSource = "stock"
	DrawDiscard DrawSource = "discard"
)

// MeldKind distinguishes the two meld shapes.
type MeldKind string

const (
	MeldSet MeldKind = "set"
	MeldRun MeldKind = "run"
)

// Deal sizes. The host is dealt one extra card because they open the game by
// discarding without drawing.
const (
	DealCount     = 13
	HostDealCount = 14
)

// Discard-pile draw eligibility: a player may scavenge the discard pile only
// once their melds are worth DiscardDrawPointThreshold points or they have
// laid DiscardDrawMeldMinimum melds.
const (
	DiscardDrawPointThreshold = 41
	DiscardDrawMeldMinimum    = 3
)

// Seat is what the room layer hands the engine to start a match: an identity,
// a display name, and the host flag.
type Seat struct {
	ID       uuid.UUID `json:"id"`
	Nickname string    `json:"nickname"`
	IsHost   bool      `json:"isHost"`
}

// Player is a seated player and their hand. Hand order is insignificant to
// the rules but kept stable for display.
type Player struct {
	ID       uuid.UUID   `json:"id"`
	Nickname string      `json:"nickname"`
	IsHost   bool        `json:"isHost"`
	Hand     []deck.Card `json:"hand"`
}

func (p *Player) hasCard(id uuid.UUID) bool {
	for _, c := range p.Hand {
		if c.ID == id {
			return true
		}
	}
	return false
}

// cardsByID resolves ids against the hand without mutating it. Returns a
// CARD_NOT_IN_HAND rejection if any id is absent or repeated.
func (p *Player) cardsByID(ids []uuid.UUID) ([]deck.Card, error) {
	byID := make(map[uuid.UUID]deck.Card, len(p.Hand))
	for _, c := range p.Hand {
		byID[c.ID] = c
	}
	picked := make([]deck.Card, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, newError(CodeCardNotInHand, "card %s is not in %s's hand", id, p.ID)
		}
		delete(byID, id)
		picked = append(picked, c)
	}
	return picked, nil
}

// removeCards drops the given ids from the hand, preserving the order of the
// remaining cards. Callers must have resolved the ids with cardsByID first.
func (p *Player) removeCards(ids []uuid.UUID) {
	drop := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := p.Hand[:0]
	for _, c := range p.Hand {
		if !drop[c.ID] {
			kept = append(kept, c)
		}
	}
	p.Hand = kept
}

// Meld is a laid set or run. Ownership never transfers and a meld only ever
// grows; cards placed in a meld never return to a hand.
type Meld struct {
	ID      uuid.UUID   `json:"id"`
	Kind    MeldKind    `json:"kind"`
	OwnerID uuid.UUID   `json:"ownerId"`
	Cards   []deck.Card `json:"cards"`
}

// Game is the authoritative state of one match. It is a plain in-memory
// aggregate with no locking of its own: the caller must serialize operations
// per game (the room layer holds a mutex around every call).
type Game struct {
	ID                 uuid.UUID   `json:"id"`
	Status             Status      `json:"status"`
	Players            []*Player   `json:"players"`
	Deck               []deck.Card `json:"-"`
	StockSize          int         `json:"stockSize"`
	DiscardPile        []deck.Card `json:"discardPile"`
	Melds              []*Meld     `json:"melds"`
	CurrentPlayerIndex int         `json:"currentPlayerIndex"`
	Phase              Phase       `json:"phase"`
	DrawnFromDiscardID uuid.UUID   `json:"drawnFromDiscardCardId,omitempty"`
	WinnerID           uuid.UUID   `json:"winnerId,omitempty"`
}

// Start seats the players and deals a fresh match. The host is seated first,
// dealt one extra card, and opens in the action phase since they owe a
// discard rather than a draw. Remaining players keep their given order.
func Start(seats []Seat) (*Game, error) {
	if len(seats) < 2 {
		return nil, newError(CodeNeedTwoPlayers, "need at least 2 players, got %d", len(seats))
	}
	hostIdx := -1
	for i, s := range seats {
		if !s.IsHost {
			continue
		}
		if hostIdx >= 0 {
			return nil, newError(CodeNoHost, "more than one seat is marked host")
		}
		hostIdx = i
	}
	if hostIdx < 0 {
		return nil, newError(CodeNoHost, "no seat is marked host")
	}

	ordered := make([]Seat, 0, len(seats))
	ordered = append(ordered, seats[hostIdx])
	for i, s := range seats {
		if i != hostIdx {
			ordered = append(ordered, s)
		}
	}

	g := &Game{
		ID:     uuid.New(),
		Status: StatusPlaying,
		Deck:   deck.Shuffle(deck.New()),
		Phase:  PhaseAction,
	}
	for _, s := range ordered {
		g.Players = append(g.Players, &Player{ID: s.ID, Nickname: s.Nickname, IsHost: s.IsHost})
	}

	for i, p := range g.Players {
		n := DealCount
		if i == 0 {
			n = HostDealCount
		}
		for j := 0; j < n; j++ {
			p.Hand = append(p.Hand, g.popStock())
		}
	}
	g.StockSize = len(g.Deck)
	return g, nil
}

// popStock removes and returns the top stock card. The stock is consumed from
// the end of the slice only, so the most recently shuffled cards stay on top.
func (g *Game) popStock() deck.Card {
	c := g.Deck[len(g.Deck)-1]
	g.Deck = g.Deck[:len(g.Deck)-1]
	return c
}

// CurrentPlayer returns the player whose turn it is.
func (g *Game) CurrentPlayer() *Player {
	return g.Players[g.CurrentPlayerIndex]
}

// PlayerByID returns the seated player with the given id, or nil.
func (g *Game) PlayerByID(id uuid.UUID) *Player {
	for _, p := range g.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// MeldByID returns the meld with the given id, or nil.
func (g *Game) MeldByID(id uuid.UUID) *Meld {
	for _, m := range g.Melds {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// turnCheck verifies the game is still running and that playerID is the
// current player. Every mutating operation starts here.
func (g *Game) turnCheck(playerID uuid.UUID) (*Player, error) {
	if g.Status == StatusFinished {
		return nil, newError(CodeGameFinished, "game %s is finished", g.ID)
	}
	p := g.CurrentPlayer()
	if p.ID != playerID {
		return nil, newError(CodeNotYourTurn, "it is %s's turn, not %s's", p.ID, playerID)
	}
	return p, nil
}

// Draw moves one card into the acting player's hand, from the stock or from
// the top of the discard pile. Discard-pile draws are gated on meld points or
// meld count, and the taken card is remembered: it must leave the hand via a
// meld or layoff before the turn may end.
func (g *Game) Draw(playerID uuid.UUID, source DrawSource) error {
	p, err := g.turnCheck(playerID)
	if err != nil {
		return err
	}
	if g.Phase != PhaseDraw {
		return newError(CodeInvalidPhase, "player %s already drew this turn", playerID)
	}

	switch source {
	case DrawStock:
		if len(g.Deck) == 0 {
			return newError(CodeDeckEmpty, "the stock is empty")
		}
		p.Hand = append(p.Hand, g.popStock())
		g.StockSize = len(g.Deck)

	case DrawDiscard:
		if g.MeldPoints(playerID) < DiscardDrawPointThreshold && g.MeldCount(playerID) < DiscardDrawMeldMinimum {
			return newError(CodeNeedPointsOrMelds,
				"need %d meld points or %d melds to draw from the discard pile",
				DiscardDrawPointThreshold, DiscardDrawMeldMinimum)
		}
		if len(g.DiscardPile) == 0 {
			return newError(CodeDiscardEmpty, "the discard pile is empty")
		}
		c := g.DiscardPile[0]
		g.DiscardPile = g.DiscardPile[1:]
		p.Hand = append(p.Hand, c)
		g.DrawnFromDiscardID = c.ID

	default:
		return newError(CodeInvalidDrawSource, "unknown draw source %q", source)
	}

	g.Phase = PhaseAction
	return nil
}

// Meld lays a new set or run from the acting player's hand. Validation runs
// before any card leaves the hand, so a rejection leaves the hand untouched.
func (g *Game) Meld(playerID uuid.UUID, kind MeldKind, cardIDs []uuid.UUID) error {
	p, err := g.turnCheck(playerID)
	if err != nil {
		return err
	}
	if g.Phase == PhaseDraw {
		return newError(CodeMustDrawFirst, "player %s must draw before melding", playerID)
	}
	picked, err := p.cardsByID(cardIDs)
	if err != nil {
		return err
	}

	switch kind {
	case MeldSet:
		if !IsValidSet(picked) {
			return newError(CodeInvalidSet, "cards do not form a valid set")
		}
	case MeldRun:
		if !IsValidRun(picked) {
			return newError(CodeInvalidRun, "cards do not form a valid run")
		}
		picked = deck.SortRun(picked)
	default:
		return newError(CodeInvalidSet, "unknown meld kind %q", kind)
	}

	p.removeCards(cardIDs)
	g.Melds = append(g.Melds, &Meld{ID: uuid.New(), Kind: kind, OwnerID: playerID, Cards: picked})
	g.checkWin(p)
	return nil
}

// Layoff appends cards from the acting player's hand onto an existing meld.
// House rule: a meld accepts layoffs only while it holds exactly three cards.
func (g *Game) Layoff(playerID, meldID uuid.UUID, cardIDs []uuid.UUID) error {
	p, err := g.turnCheck(playerID)
	if err != nil {
		return err
	}
	if g.Phase == PhaseDraw {
		return newError(CodeMustDrawFirst, "player %s must draw before laying off", playerID)
	}
	m := g.MeldByID(meldID)
	if m == nil {
		return newError(CodeMeldNotFound, "no meld %s", meldID)
	}
	if len(m.Cards) != LayoffMeldSize {
		return newError(CodeLayoffOnlyOnThree,
			"meld %s holds %d cards; layoffs are allowed only on %d-card melds",
			meldID, len(m.Cards), LayoffMeldSize)
	}
	picked, err := p.cardsByID(cardIDs)
	if err != nil {
		return err
	}
	if !CanLayoff(m, picked) {
		return newError(CodeInvalidLayoff, "cards cannot extend meld %s", meldID)
	}

	p.removeCards(cardIDs)
	m.Cards = append(m.Cards, picked...)
	if m.Kind == MeldRun {
		m.Cards = deck.SortRun(m.Cards)
	}
	g.checkWin(p)
	return nil
}

// Discard ends the acting player's turn by moving one hand card to the front
// of the discard pile. If the player took the discard pile's top card this
// turn, that card must already have been melded or laid off; holding it is
// checked by presence in the hand, not by a flag.
func (g *Game) Discard(playerID, cardID uuid.UUID) error {
	p, err := g.turnCheck(playerID)
	if err != nil {
		return err
	}
	if g.Phase == PhaseDraw {
		return newError(CodeMustDrawFirst, "player %s must draw before discarding", playerID)
	}
	if g.DrawnFromDiscardID != uuid.Nil && p.hasCard(g.DrawnFromDiscardID) {
		return newError(CodeMustUseDrawnDiscard,
			"the card taken from the discard pile must be melded or laid off this turn")
	}
	picked, err := p.cardsByID([]uuid.UUID{cardID})
	if err != nil {
		return err
	}

	p.removeCards([]uuid.UUID{cardID})
	g.DiscardPile = append([]deck.Card{picked[0]}, g.DiscardPile...)

	if len(p.Hand) == 0 {
		g.finish(p.ID)
		return nil
	}
	g.advanceTurn()
	return nil
}

// Forfeit ends the match immediately in favor of the next seated opponent.
func (g *Game) Forfeit(playerID uuid.UUID) error {
	if g.Status == StatusFinished {
		return newError(CodeGameFinished, "game %s is finished", g.ID)
	}
	leaver := g.PlayerByID(playerID)
	if leaver == nil {
		return newError(CodeNotYourTurn, "player %s is not seated in game %s", playerID, g.ID)
	}
	for _, p := range g.Players {
		if p.ID != playerID {
			g.finish(p.ID)
			return nil
		}
	}
	return newError(CodeNeedTwoPlayers, "no opponent to award the win to")
}

func (g *Game) advanceTurn() {
	g.CurrentPlayerIndex = (g.CurrentPlayerIndex + 1) % len(g.Players)
	g.Phase = PhaseDraw
	g.DrawnFromDiscardID = uuid.Nil
}

// checkWin finishes the game when a meld or layoff empties the hand.
func (g *Game) checkWin(p *Player) {
	if len(p.Hand) == 0 {
		g.finish(p.ID)
	}
}

func (g *Game) finish(winnerID uuid.UUID) {
	g.Status = StatusFinished
	g.WinnerID = winnerID
	g.DrawnFromDiscardID = uuid.Nil
}
