// internal/room/room.go
package room

import (
	"errors"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/conquianhq/conquian/internal/engine"
)

// Status is the room lifecycle state. A room starts in the lobby, moves to
// playing when the host deals, and returns to the lobby after a finished
// match if the players want a rematch.
type Status string

const (
	StatusLobby    Status = "lobby"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// MaxSeats is the number of playing seats; later joiners become spectators.
const MaxSeats = 2

var (
	ErrRoomFull   = errors.New("room is full")
	ErrNotInLobby = errors.New("room is not in the lobby")
	ErrNoSuchSeat = errors.New("no such seat in this room")
)

// Seat is one player's place in a room: identity, display name, host flag,
// and the live connection. Connected is presence bookkeeping owned by the
// transport layer; the engine never reads it.
type Seat struct {
	ID        uuid.UUID       `json:"id"`
	Nickname  string          `json:"nickname"`
	IsHost    bool            `json:"isHost"`
	Connected bool            `json:"connected"`
	Conn      *websocket.Conn `json:"-"`
}

// Room owns the mutable state for one table: the seats, any spectator
// connections, and the running game. Mu serializes every mutation, which is
// what gives the engine its single-writer guarantee.
type Room struct {
	ID uuid.UUID
	Mu sync.Mutex

	Status Status
	Seats  []*Seat
	Game   *engine.Game

	// ActionIndex increments once per successful game action, for the
	// history queue.
	ActionIndex int

	spectators map[*websocket.Conn]bool
}

// New creates an empty lobby room.
func New() *Room {
	return &Room{
		ID:         uuid.New(),
		Status:     StatusLobby,
		spectators: make(map[*websocket.Conn]bool),
	}
}

// Join seats a new player. The first seat taken becomes the host. Callers
// must hold Mu. Returns ErrRoomFull once every seat is taken; the caller may
// then attach the connection as a spectator instead.
func (r *Room) Join(nickname string, conn *websocket.Conn) (*Seat, error) {
	if len(r.Seats) >= MaxSeats {
		return nil, ErrRoomFull
	}
	seat := &Seat{
		ID:        uuid.New(),
		Nickname:  nickname,
		IsHost:    len(r.Seats) == 0,
		Connected: true,
		Conn:      conn,
	}
	r.Seats = append(r.Seats, seat)
	return seat, nil
}

// Resume reattaches a returning player to their seat. Callers must hold Mu.
func (r *Room) Resume(playerID uuid.UUID, conn *websocket.Conn) (*Seat, error) {
	seat := r.SeatByID(playerID)
	if seat == nil {
		return nil, ErrNoSuchSeat
	}
	seat.Conn = conn
	seat.Connected = true
	return seat, nil
}

// Disconnect marks a seat as away and drops its connection, but only when
// conn is still the seat's active connection. A handler cleaning up after a
// half-dead socket must not knock out a connection the player already
// resumed on. Callers must hold Mu.
func (r *Room) Disconnect(playerID uuid.UUID, conn *websocket.Conn) {
	if seat := r.SeatByID(playerID); seat != nil && seat.Conn == conn {
		seat.Conn = nil
		seat.Connected = false
	}
}

// SeatByID returns the seat with the given player id, or nil.
func (r *Room) SeatByID(playerID uuid.UUID) *Seat {
	for _, s := range r.Seats {
		if s.ID == playerID {
			return s
		}
	}
	return nil
}

// HostID returns the host seat's player id, or uuid.Nil if the room is empty.
func (r *Room) HostID() uuid.UUID {
	for _, s := range r.Seats {
		if s.IsHost {
			return s.ID
		}
	}
	return uuid.Nil
}

// AddSpectator registers an extra connection that receives broadcasts but
// holds no seat. Callers must hold Mu.
func (r *Room) AddSpectator(conn *websocket.Conn) {
	r.spectators[conn] = true
}

// RemoveSpectator drops a spectator connection. Callers must hold Mu.
func (r *Room) RemoveSpectator(conn *websocket.Conn) {
	delete(r.spectators, conn)
}

// Connections returns every live connection in the room: seated players
// first, then spectators. Callers must hold Mu; the returned slice is a
// snapshot the caller may use after releasing it.
func (r *Room) Connections() []*websocket.Conn {
	conns := make([]*websocket.Conn, 0, len(r.Seats)+len(r.spectators))
	for _, s := range r.Seats {
		if s.Connected && s.Conn != nil {
			conns = append(conns, s.Conn)
		}
	}
	for c := range r.spectators {
		conns = append(conns, c)
	}
	return conns
}

// StartGame deals a fresh match from the current seats. Callers must hold
// Mu. Engine rejections (too few seats) pass through untouched.
func (r *Room) StartGame() (*engine.Game, error) {
	if r.Status != StatusLobby {
		return nil, ErrNotInLobby
	}
	seats := make([]engine.Seat, len(r.Seats))
	for i, s := range r.Seats {
		seats[i] = engine.Seat{ID: s.ID, Nickname: s.Nickname, IsHost: s.IsHost}
	}
	g, err := engine.Start(seats)
	if err != nil {
		return nil, err
	}
	r.Game = g
	r.Status = StatusPlaying
	r.ActionIndex = 0
	return g, nil
}

// FinishGame records that the running match has ended. Callers must hold Mu.
func (r *Room) FinishGame() {
	if r.Status == StatusPlaying {
		r.Status = StatusFinished
	}
}

// ToLobby resets a finished room for a rematch: same seats, no game. Callers
// must hold Mu.
func (r *Room) ToLobby() error {
	if r.Status != StatusFinished {
		return ErrNotInLobby
	}
	r.Game = nil
	r.Status = StatusLobby
	return nil
}
