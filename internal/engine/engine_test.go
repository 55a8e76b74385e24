package engine

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conquianhq/conquian/internal/deck"
)

// testGame builds a running game with fixed hands, bypassing the shuffled
// deal, so scenarios can stage exact card layouts. The first hand belongs to
// the host, whose turn it is, in the action phase.
func testGame(hands ...[]deck.Card) *Game {
	g := &Game{ID: uuid.New(), Status: StatusPlaying, Phase: PhaseAction}
	for i, h := range hands {
		g.Players = append(g.Players, &Player{
			ID:       uuid.New(),
			Nickname: fmt.Sprintf("player-%d", i+1),
			IsHost:   i == 0,
			Hand:     h,
		})
	}
	return g
}

func ids(cards ...deck.Card) []uuid.UUID {
	out := make([]uuid.UUID, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

func handIDs(p *Player) []uuid.UUID {
	return ids(p.Hand...)
}

func TestStartDealsAndSeatsHostFirst(t *testing.T) {
	seats := []Seat{
		{ID: uuid.New(), Nickname: "beatriz"},
		{ID: uuid.New(), Nickname: "omar", IsHost: true},
	}
	g, err := Start(seats)
	require.NoError(t, err)

	require.Len(t, g.Players, 2)
	assert.Equal(t, seats[1].ID, g.Players[0].ID, "host is seated first")
	assert.Equal(t, seats[0].ID, g.Players[1].ID)

	assert.Len(t, g.Players[0].Hand, HostDealCount, "host is dealt one extra card")
	assert.Len(t, g.Players[1].Hand, DealCount)
	assert.Len(t, g.Deck, deck.Size-HostDealCount-DealCount)
	assert.Equal(t, len(g.Deck), g.StockSize)

	assert.Equal(t, StatusPlaying, g.Status)
	assert.Equal(t, seats[1].ID, g.CurrentPlayer().ID)
	assert.Equal(t, PhaseAction, g.Phase, "host opens by discarding, not drawing")
	assert.Empty(t, g.DiscardPile)
	assert.Empty(t, g.Melds)
}

func TestStartRejections(t *testing.T) {
	host := Seat{ID: uuid.New(), Nickname: "omar", IsHost: true}
	guest := Seat{ID: uuid.New(), Nickname: "beatriz"}

	_, err := Start([]Seat{host})
	assert.Equal(t, CodeNeedTwoPlayers, CodeOf(err))

	_, err = Start([]Seat{guest, {ID: uuid.New(), Nickname: "lin"}})
	assert.Equal(t, CodeNoHost, CodeOf(err))

	_, err = Start([]Seat{host, {ID: uuid.New(), Nickname: "lin", IsHost: true}})
	assert.Equal(t, CodeNoHost, CodeOf(err), "more than one host is rejected")
}

func TestDrawFromStock(t *testing.T) {
	g := testGame(
		[]deck.Card{card(deck.Ace, deck.Hearts)},
		[]deck.Card{card(deck.Two, deck.Hearts)},
	)
	g.Phase = PhaseDraw
	top := card(deck.King, deck.Spades)
	g.Deck = []deck.Card{card(deck.Queen, deck.Spades), top}
	g.StockSize = 2
	p := g.Players[0]

	require.NoError(t, g.Draw(p.ID, DrawStock))
	assert.Equal(t, PhaseAction, g.Phase)
	assert.Len(t, g.Deck, 1)
	assert.Equal(t, 1, g.StockSize)
	assert.Equal(t, top.ID, p.Hand[len(p.Hand)-1].ID, "stock is consumed from the top")

	err := g.Draw(p.ID, DrawStock)
	assert.Equal(t, CodeInvalidPhase, CodeOf(err), "only one draw per turn")
}

func TestDrawFromEmptyStock(t *testing.T) {
	g := testGame(
		[]deck.Card{card(deck.Ace, deck.Hearts)},
		[]deck.Card{card(deck.Two, deck.Hearts)},
	)
	g.Phase = PhaseDraw

	err := g.Draw(g.Players[0].ID, DrawStock)
	assert.Equal(t, CodeDeckEmpty, CodeOf(err))
}

func TestDrawFromDiscardRequiresEligibility(t *testing.T) {
	g := testGame(
		[]deck.Card{card(deck.Ace, deck.Hearts)},
		[]deck.Card{card(deck.Two, deck.Hearts)},
	)
	g.Phase = PhaseDraw
	g.DiscardPile = []deck.Card{card(deck.Seven, deck.Clubs)}
	p := g.Players[0]

	err := g.Draw(p.ID, DrawDiscard)
	assert.Equal(t, CodeNeedPointsOrMelds, CodeOf(err))
	assert.Len(t, g.DiscardPile, 1, "rejected draw leaves the pile untouched")

	// Two melds worth 42 points clear the point threshold.
	g.Melds = []*Meld{
		{ID: uuid.New(), Kind: MeldSet, OwnerID: p.ID, Cards: []deck.Card{
			card(deck.Ace, deck.Clubs), card(deck.Ace, deck.Spades), card(deck.Ace, deck.Diamonds),
		}},
		{ID: uuid.New(), Kind: MeldSet, OwnerID: p.ID, Cards: []deck.Card{
			card(deck.Four, deck.Clubs), card(deck.Four, deck.Spades), card(deck.Four, deck.Diamonds),
		}},
	}
	require.GreaterOrEqual(t, g.MeldPoints(p.ID), DiscardDrawPointThreshold)

	top := g.DiscardPile[0]
	require.NoError(t, g.Draw(p.ID, DrawDiscard))
	assert.Equal(t, top.ID, g.DrawnFromDiscardID, "the taken card is remembered for the turn")
	assert.Equal(t, PhaseAction, g.Phase)
	assert.Empty(t, g.DiscardPile)
	assert.True(t, p.hasCard(top.ID))
}

func TestDrawFromDiscardMeldCountGate(t *testing.T) {
	g := testGame(
		[]deck.Card{card(deck.Ace, deck.Hearts)},
		[]deck.Card{card(deck.Two, deck.Hearts)},
	)
	g.Phase = PhaseDraw
	g.DiscardPile = []deck.Card{card(deck.Seven, deck.Clubs)}
	p := g.Players[0]

	// Three cheap melds are worth only 27 points but satisfy the meld-count
	// alternative.
	for i := 0; i < DiscardDrawMeldMinimum; i++ {
		g.Melds = append(g.Melds, &Meld{ID: uuid.New(), Kind: MeldSet, OwnerID: p.ID, Cards: []deck.Card{
			card(deck.Three, deck.Clubs), card(deck.Three, deck.Spades), card(deck.Three, deck.Diamonds),
		}})
	}
	require.Less(t, g.MeldPoints(p.ID), DiscardDrawPointThreshold)

	assert.NoError(t, g.Draw(p.ID, DrawDiscard))
}

func TestDrawFromEmptyDiscard(t *testing.T) {
	g := testGame(
		[]deck.Card{card(deck.Ace, deck.Hearts)},
		[]deck.Card{card(deck.Two, deck.Hearts)},
	)
	g.Phase = PhaseDraw
	p := g.Players[0]
	g.Melds = []*Meld{
		{ID: uuid.New(), Kind: MeldSet, OwnerID: p.ID, Cards: []deck.Card{
			card(deck.Ace, deck.Clubs), card(deck.Ace, deck.Spades), card(deck.Ace, deck.Diamonds), wildcard(),
		}},
	}
	require.GreaterOrEqual(t, g.MeldPoints(p.ID), DiscardDrawPointThreshold)

	err := g.Draw(p.ID, DrawDiscard)
	assert.Equal(t, CodeDiscardEmpty, CodeOf(err))
}

func TestDrawUnknownSource(t *testing.T) {
	g := testGame(
		[]deck.Card{card(deck.Ace, deck.Hearts)},
		[]deck.Card{card(deck.Two, deck.Hearts)},
	)
	g.Phase = PhaseDraw
	err := g.Draw(g.Players[0].ID, DrawSource("sleeve"))
	assert.Equal(t, CodeInvalidDrawSource, CodeOf(err))
}

func TestMeldSet(t *testing.T) {
	sevens := []deck.Card{
		card(deck.Seven, deck.Hearts),
		card(deck.Seven, deck.Clubs),
		card(deck.Seven, deck.Spades),
	}
	hand := append([]deck.Card{card(deck.Ace, deck.Hearts)}, sevens...)
	g := testGame(hand, []deck.Card{card(deck.Two, deck.Hearts)})
	p := g.Players[0]

	require.NoError(t, g.Meld(p.ID, MeldSet, ids(sevens...)))
	require.Len(t, g.Melds, 1)
	m := g.Melds[0]
	assert.Equal(t, MeldSet, m.Kind)
	assert.Equal(t, p.ID, m.OwnerID)
	assert.Len(t, m.Cards, 3)
	assert.Len(t, p.Hand, 1)
	assert.Equal(t, StatusPlaying, g.Status)
}

func TestMeldRunIsStoredRankOrdered(t *testing.T) {
	five := card(deck.Five, deck.Diamonds)
	three := card(deck.Three, deck.Diamonds)
	four := card(deck.Four, deck.Diamonds)
	hand := []deck.Card{card(deck.King, deck.Hearts), five, three, four}
	g := testGame(hand, []deck.Card{card(deck.Two, deck.Hearts)})
	p := g.Players[0]

	require.NoError(t, g.Meld(p.ID, MeldRun, []uuid.UUID{five.ID, three.ID, four.ID}))
	require.Len(t, g.Melds, 1)
	got := ids(g.Melds[0].Cards...)
	assert.Equal(t, []uuid.UUID{three.ID, four.ID, five.ID}, got)
}

func TestMeldRequiresDrawPhaseComplete(t *testing.T) {
	g := testGame(
		[]deck.Card{
			card(deck.Seven, deck.Hearts),
			card(deck.Seven, deck.Clubs),
			card(deck.Seven, deck.Spades),
		},
		[]deck.Card{card(deck.Two, deck.Hearts)},
	)
	g.Phase = PhaseDraw
	p := g.Players[0]

	err := g.Meld(p.ID, MeldSet, handIDs(p))
	assert.Equal(t, CodeMustDrawFirst, CodeOf(err))
	assert.Empty(t, g.Melds)
}

func TestMeldRejectionLeavesHandUntouched(t *testing.T) {
	hand := []deck.Card{
		card(deck.Seven, deck.Hearts),
		card(deck.Four, deck.Clubs),
		card(deck.King, deck.Spades),
	}
	g := testGame(hand, []deck.Card{card(deck.Two, deck.Hearts)})
	p := g.Players[0]
	before := handIDs(p)

	err := g.Meld(p.ID, MeldSet, before)
	assert.Equal(t, CodeInvalidSet, CodeOf(err))
	assert.Equal(t, before, handIDs(p), "hand order and contents survive a rejected meld")

	err = g.Meld(p.ID, MeldRun, before)
	assert.Equal(t, CodeInvalidRun, CodeOf(err))
	assert.Equal(t, before, handIDs(p))

	err = g.Meld(p.ID, MeldSet, []uuid.UUID{before[0], uuid.New(), before[2]})
	assert.Equal(t, CodeCardNotInHand, CodeOf(err))
	assert.Equal(t, before, handIDs(p))
}

func TestLayoff(t *testing.T) {
	two := card(deck.Two, deck.Clubs)
	six := card(deck.Six, deck.Clubs)
	g := testGame(
		[]deck.Card{card(deck.King, deck.Hearts), two, six},
		[]deck.Card{card(deck.Two, deck.Hearts)},
	)
	p := g.Players[0]
	run := &Meld{ID: uuid.New(), Kind: MeldRun, OwnerID: g.Players[1].ID, Cards: deck.SortRun([]deck.Card{
		card(deck.Three, deck.Clubs), card(deck.Four, deck.Clubs), card(deck.Five, deck.Clubs),
	})}
	g.Melds = append(g.Melds, run)

	err := g.Layoff(p.ID, uuid.New(), []uuid.UUID{two.ID})
	assert.Equal(t, CodeMeldNotFound, CodeOf(err))

	require.NoError(t, g.Layoff(p.ID, run.ID, []uuid.UUID{two.ID}))
	assert.Len(t, run.Cards, 4)
	assert.Equal(t, two.ID, run.Cards[0].ID, "run stays rank ordered after layoff")
	assert.False(t, p.hasCard(two.ID))

	// The meld has outgrown its three-card shape; no further layoffs.
	err = g.Layoff(p.ID, run.ID, []uuid.UUID{six.ID})
	assert.Equal(t, CodeLayoffOnlyOnThree, CodeOf(err))
	assert.True(t, p.hasCard(six.ID))
}

func TestLayoffRejectionLeavesHandUntouched(t *testing.T) {
	seven := card(deck.Seven, deck.Hearts)
	g := testGame(
		[]deck.Card{card(deck.King, deck.Hearts), seven},
		[]deck.Card{card(deck.Two, deck.Hearts)},
	)
	p := g.Players[0]
	before := handIDs(p)
	run := &Meld{ID: uuid.New(), Kind: MeldRun, OwnerID: p.ID, Cards: deck.SortRun([]deck.Card{
		card(deck.Three, deck.Clubs), card(deck.Four, deck.Clubs), card(deck.Five, deck.Clubs),
	})}
	g.Melds = append(g.Melds, run)

	err := g.Layoff(p.ID, run.ID, []uuid.UUID{seven.ID})
	assert.Equal(t, CodeInvalidLayoff, CodeOf(err))
	assert.Equal(t, before, handIDs(p))
	assert.Len(t, run.Cards, 3)
}

func TestDiscardAdvancesTurnCyclically(t *testing.T) {
	g := testGame(
		[]deck.Card{card(deck.Ace, deck.Hearts), card(deck.Two, deck.Hearts)},
		[]deck.Card{card(deck.Ace, deck.Clubs), card(deck.Two, deck.Clubs)},
		[]deck.Card{card(deck.Ace, deck.Spades), card(deck.Two, deck.Spades)},
	)

	for round := 0; round < 2; round++ {
		for i := range g.Players {
			p := g.Players[i]
			require.Equal(t, p.ID, g.CurrentPlayer().ID)
			if g.Phase == PhaseDraw {
				g.Deck = append(g.Deck, card(deck.King, deck.Diamonds))
				require.NoError(t, g.Draw(p.ID, DrawStock))
			}
			require.NoError(t, g.Discard(p.ID, p.Hand[0].ID))
			assert.Equal(t, PhaseDraw, g.Phase)
			assert.Equal(t, uuid.Nil, g.DrawnFromDiscardID)
		}
	}
	assert.Equal(t, g.Players[0].ID, g.CurrentPlayer().ID, "turn order wraps after the last seat")
}

func TestDiscardRequiresDraw(t *testing.T) {
	g := testGame(
		[]deck.Card{card(deck.Ace, deck.Hearts)},
		[]deck.Card{card(deck.Two, deck.Hearts)},
	)
	g.Phase = PhaseDraw
	p := g.Players[0]

	err := g.Discard(p.ID, p.Hand[0].ID)
	assert.Equal(t, CodeMustDrawFirst, CodeOf(err))
}

func TestMustUseDrawnDiscardCard(t *testing.T) {
	ace := card(deck.Ace, deck.Hearts)
	two := card(deck.Two, deck.Hearts)
	taken := card(deck.Seven, deck.Hearts)
	pair := []deck.Card{card(deck.Seven, deck.Clubs), card(deck.Seven, deck.Spades)}

	g := testGame(
		append([]deck.Card{ace, two}, pair...),
		[]deck.Card{card(deck.Three, deck.Clubs)},
	)
	g.Phase = PhaseDraw
	g.DiscardPile = []deck.Card{taken}
	p := g.Players[0]
	g.Melds = []*Meld{ // eligibility for the discard draw
		{ID: uuid.New(), Kind: MeldSet, OwnerID: p.ID, Cards: []deck.Card{
			card(deck.Ace, deck.Clubs), card(deck.Ace, deck.Spades), card(deck.Ace, deck.Diamonds), wildcard(),
		}},
	}

	require.NoError(t, g.Draw(p.ID, DrawDiscard))

	err := g.Discard(p.ID, ace.ID)
	assert.Equal(t, CodeMustUseDrawnDiscard, CodeOf(err))
	assert.True(t, p.hasCard(ace.ID), "rejected discard leaves the hand untouched")

	// Melding the taken card away satisfies the rule.
	require.NoError(t, g.Meld(p.ID, MeldSet, []uuid.UUID{taken.ID, pair[0].ID, pair[1].ID}))
	require.NoError(t, g.Discard(p.ID, ace.ID))
	assert.Equal(t, ace.ID, g.DiscardPile[0].ID, "most recent discard sits at the front")
}

func TestWinByDiscard(t *testing.T) {
	last := card(deck.Ace, deck.Hearts)
	g := testGame(
		[]deck.Card{last},
		[]deck.Card{card(deck.Two, deck.Hearts)},
	)
	p := g.Players[0]

	require.NoError(t, g.Discard(p.ID, last.ID))
	assert.Equal(t, StatusFinished, g.Status)
	assert.Equal(t, p.ID, g.WinnerID)

	// Finished state is terminal: every operation is rejected.
	other := g.Players[1]
	assert.Equal(t, CodeGameFinished, CodeOf(g.Draw(other.ID, DrawStock)))
	assert.Equal(t, CodeGameFinished, CodeOf(g.Meld(other.ID, MeldSet, nil)))
	assert.Equal(t, CodeGameFinished, CodeOf(g.Layoff(other.ID, uuid.New(), nil)))
	assert.Equal(t, CodeGameFinished, CodeOf(g.Discard(other.ID, uuid.New())))
}

func TestWinByMeld(t *testing.T) {
	run := []deck.Card{
		card(deck.Ace, deck.Spades),
		card(deck.Two, deck.Spades),
		card(deck.Three, deck.Spades),
	}
	g := testGame(run, []deck.Card{card(deck.Two, deck.Hearts)})
	p := g.Players[0]

	require.NoError(t, g.Meld(p.ID, MeldRun, ids(run...)))
	assert.Equal(t, StatusFinished, g.Status)
	assert.Equal(t, p.ID, g.WinnerID)
}

func TestWinByLayoff(t *testing.T) {
	six := card(deck.Six, deck.Clubs)
	g := testGame(
		[]deck.Card{six},
		[]deck.Card{card(deck.Two, deck.Hearts)},
	)
	p := g.Players[0]
	run := &Meld{ID: uuid.New(), Kind: MeldRun, OwnerID: p.ID, Cards: deck.SortRun([]deck.Card{
		card(deck.Three, deck.Clubs), card(deck.Four, deck.Clubs), card(deck.Five, deck.Clubs),
	})}
	g.Melds = append(g.Melds, run)

	require.NoError(t, g.Layoff(p.ID, run.ID, []uuid.UUID{six.ID}))
	assert.Equal(t, StatusFinished, g.Status)
	assert.Equal(t, p.ID, g.WinnerID)
}

func TestNotYourTurn(t *testing.T) {
	g := testGame(
		[]deck.Card{card(deck.Ace, deck.Hearts)},
		[]deck.Card{card(deck.Two, deck.Hearts)},
	)
	other := g.Players[1]

	assert.Equal(t, CodeNotYourTurn, CodeOf(g.Draw(other.ID, DrawStock)))
	assert.Equal(t, CodeNotYourTurn, CodeOf(g.Meld(other.ID, MeldSet, handIDs(other))))
	assert.Equal(t, CodeNotYourTurn, CodeOf(g.Discard(other.ID, other.Hand[0].ID)))
}

func TestForfeitAwardsOpponent(t *testing.T) {
	g := testGame(
		[]deck.Card{card(deck.Ace, deck.Hearts)},
		[]deck.Card{card(deck.Two, deck.Hearts)},
	)

	require.NoError(t, g.Forfeit(g.Players[0].ID))
	assert.Equal(t, StatusFinished, g.Status)
	assert.Equal(t, g.Players[1].ID, g.WinnerID)

	assert.Equal(t, CodeGameFinished, CodeOf(g.Forfeit(g.Players[1].ID)))
}

func TestMeldPointsAndCount(t *testing.T) {
	g := testGame(
		[]deck.Card{card(deck.Ace, deck.Hearts)},
		[]deck.Card{card(deck.Two, deck.Hearts)},
	)
	p := g.Players[0]
	other := g.Players[1]

	g.Melds = []*Meld{
		{ID: uuid.New(), Kind: MeldSet, OwnerID: p.ID, Cards: []deck.Card{
			card(deck.King, deck.Hearts), card(deck.King, deck.Clubs), wildcard(),
		}},
		{ID: uuid.New(), Kind: MeldRun, OwnerID: p.ID, Cards: []deck.Card{
			card(deck.Two, deck.Clubs), card(deck.Three, deck.Clubs), card(deck.Four, deck.Clubs),
		}},
		{ID: uuid.New(), Kind: MeldSet, OwnerID: other.ID, Cards: []deck.Card{
			card(deck.Five, deck.Hearts), card(deck.Five, deck.Clubs), card(deck.Five, deck.Spades),
		}},
	}

	assert.Equal(t, 10+10+20+2+3+4, g.MeldPoints(p.ID))
	assert.Equal(t, 2, g.MeldCount(p.ID))
	assert.Equal(t, 15, g.MeldPoints(other.ID))
	assert.Equal(t, 1, g.MeldCount(other.ID))
	assert.Zero(t, g.MeldPoints(uuid.New()))
}

// collectIDs gathers every card identity across hands, stock, discard pile
// and melds.
func collectIDs(g *Game) map[uuid.UUID]int {
	seen := make(map[uuid.UUID]int)
	for _, p := range g.Players {
		for _, c := range p.Hand {
			seen[c.ID]++
		}
	}
	for _, c := range g.Deck {
		seen[c.ID]++
	}
	for _, c := range g.DiscardPile {
		seen[c.ID]++
	}
	for _, m := range g.Melds {
		for _, c := range m.Cards {
			seen[c.ID]++
		}
	}
	return seen
}

func TestCardConservation(t *testing.T) {
	seats := []Seat{
		{ID: uuid.New(), Nickname: "omar", IsHost: true},
		{ID: uuid.New(), Nickname: "beatriz"},
	}
	g, err := Start(seats)
	require.NoError(t, err)

	assertConserved := func() {
		t.Helper()
		seen := collectIDs(g)
		require.Len(t, seen, deck.Size)
		for id, n := range seen {
			require.Equal(t, 1, n, "card %s appears %d times", id, n)
		}
	}
	assertConserved()

	// Play rounds of draw-then-discard until the stock runs dry; the card
	// multiset must stay constant after every transition.
	for g.Status == StatusPlaying && len(g.Deck) > 0 {
		p := g.CurrentPlayer()
		if g.Phase == PhaseDraw {
			require.NoError(t, g.Draw(p.ID, DrawStock))
			assertConserved()
		}
		require.NoError(t, g.Discard(p.ID, p.Hand[0].ID))
		assertConserved()
	}
}
