// internal/handlers/server.go
package handlers

import (
	"github.com/conquianhq/conquian/internal/history"
	"github.com/conquianhq/conquian/internal/room"
)

// RoomServer bundles the room registry and the action-log publisher for the
// HTTP and WebSocket handlers. Both are explicit handles; the handlers keep
// no state of their own.
type RoomServer struct {
	Rooms   *room.Store
	History *history.Publisher
}

// NewRoomServer builds a RoomServer. history may be nil, which disables the
// action log.
func NewRoomServer(rooms *room.Store, hist *history.Publisher) *RoomServer {
	return &RoomServer{
		Rooms:   rooms,
		History: hist,
	}
}
