// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/conquianhq/conquian/internal/auth"
	"github.com/conquianhq/conquian/internal/engine"
	"github.com/conquianhq/conquian/internal/history"
	"github.com/conquianhq/conquian/internal/room"
)

// RoomMessage is the envelope for every client-to-server WebSocket message.
// Which fields matter depends on Type.
type RoomMessage struct {
	Type string `json:"type"`

	// Source selects the pile for game_draw ("stock" or "discard").
	Source string `json:"source,omitempty"`

	// Kind selects the meld shape for game_meld ("set" or "run").
	Kind string `json:"kind,omitempty"`

	// CardID names the card for game_discard.
	CardID uuid.UUID `json:"cardId,omitempty"`

	// MeldID names the target meld for game_layoff.
	MeldID uuid.UUID `json:"meldId,omitempty"`

	// CardIDs names the hand cards for game_meld and game_layoff.
	CardIDs []uuid.UUID `json:"cardIds,omitempty"`

	// Message carries chat_send text.
	Message string `json:"message,omitempty"`
}

// RoomWSHandler upgrades the connection for a room at /room/ws/{room_id}.
// A `token` query parameter resumes an existing seat; otherwise `nickname`
// takes a fresh seat, or a spectator slot once the table is full.
func RoomWSHandler(logger *logrus.Logger, srv *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/room/ws/"), "/")
		if len(pathParts) < 1 || pathParts[0] == "" {
			http.Error(w, "Missing room_id in path (/room/ws/{room_id})", http.StatusBadRequest)
			return
		}
		roomID, err := uuid.Parse(pathParts[0])
		if err != nil {
			http.Error(w, "Invalid room_id format", http.StatusBadRequest)
			return
		}
		rm, ok := srv.Rooms.Get(roomID)
		if !ok {
			http.Error(w, "Room not found", http.StatusNotFound)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"conquian"},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("WebSocket accept error for room %s: %v", roomID, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		if c.Subprotocol() != "conquian" {
			c.Close(websocket.StatusPolicyViolation, "Client must use the 'conquian' subprotocol.")
			return
		}

		seat, spectator, err := attachToRoom(rm, c, r, srv, logger)
		if err != nil {
			logger.Warnf("Attach failed for room %s: %v", roomID, err)
			c.Close(websocket.StatusPolicyViolation, err.Error())
			return
		}

		srv.broadcastRoomState(rm, logger)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		readRoomMessages(ctx, c, rm, srv, seat, logger)

		// Cleanup after the read loop exits. Disconnect checks connection
		// identity so a stale handler cannot knock out a resumed seat.
		rm.Mu.Lock()
		if spectator {
			rm.RemoveSpectator(c)
		} else if seat != nil {
			rm.Disconnect(seat.ID, c)
		}
		rm.Mu.Unlock()
		if seat != nil {
			logger.Infof("Player %s left room %s", seat.ID, rm.ID)
			srv.broadcastRoomState(rm, logger)
		}
	}
}

// attachToRoom resolves the connecting client to a seat, a resumed seat, or
// a spectator slot, and sends the private welcome frames.
func attachToRoom(rm *room.Room, c *websocket.Conn, r *http.Request, srv *RoomServer, logger *logrus.Logger) (*room.Seat, bool, error) {
	token := r.URL.Query().Get("token")
	nickname := r.URL.Query().Get("nickname")
	if nickname == "" {
		nickname = "guest"
	}

	if token != "" {
		tokenRoomID, playerID, err := auth.VerifySeatToken(token)
		if err != nil {
			return nil, false, fmt.Errorf("invalid seat token: %w", err)
		}
		if tokenRoomID != rm.ID {
			return nil, false, errors.New("seat token was issued for a different room")
		}
		rm.Mu.Lock()
		seat, err := rm.Resume(playerID, c)
		var frames [][]byte
		if err == nil {
			frames = welcomeFramesLocked(rm, seat, "", false)
		}
		rm.Mu.Unlock()
		if err != nil {
			return nil, false, err
		}
		logger.Infof("Player %s resumed seat in room %s", seat.ID, rm.ID)
		writeFrames(c, frames, logger)
		return seat, false, nil
	}

	rm.Mu.Lock()
	seat, err := rm.Join(nickname, c)
	if errors.Is(err, room.ErrRoomFull) {
		rm.AddSpectator(c)
		frames := welcomeFramesLocked(rm, nil, "", true)
		rm.Mu.Unlock()
		logger.Infof("Spectator joined room %s", rm.ID)
		writeFrames(c, frames, logger)
		return nil, true, nil
	}
	if err != nil {
		rm.Mu.Unlock()
		return nil, false, err
	}
	seatToken, err := auth.CreateSeatToken(rm.ID, seat.ID)
	if err != nil {
		rm.Mu.Unlock()
		return nil, false, fmt.Errorf("failed to issue seat token: %w", err)
	}
	frames := welcomeFramesLocked(rm, seat, seatToken, false)
	rm.Mu.Unlock()
	logger.Infof("Player %s (%s) joined room %s", seat.ID, seat.Nickname, rm.ID)
	writeFrames(c, frames, logger)
	return seat, false, nil
}

// welcomeFramesLocked builds the private frames for a freshly attached
// connection: the join acknowledgement and, if a match is running, the
// current game state. Callers must hold rm.Mu.
func welcomeFramesLocked(rm *room.Room, seat *room.Seat, token string, spectator bool) [][]byte {
	joined := map[string]interface{}{
		"type":      "room_joined",
		"roomId":    rm.ID.String(),
		"spectator": spectator,
	}
	if seat != nil {
		joined["playerId"] = seat.ID.String()
		joined["isHost"] = seat.IsHost
	}
	if token != "" {
		joined["token"] = token
	}

	frames := [][]byte{mustJSON(joined)}
	if rm.Game != nil {
		frames = append(frames, mustJSON(gameStateMsg(rm.Game)))
	}
	return frames
}

// readRoomMessages reads and dispatches client messages until the connection
// drops or the context is cancelled.
func readRoomMessages(ctx context.Context, c *websocket.Conn, rm *room.Room, srv *RoomServer, seat *room.Seat, logger *logrus.Logger) {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				logger.Infof("WebSocket closed normally for room %s.", rm.ID)
			} else if !errors.Is(err, context.Canceled) {
				logger.Warnf("Error reading from WebSocket in room %s: %v", rm.ID, err)
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg RoomMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warnf("Invalid JSON in room %s: %v", rm.ID, err)
			sendWsError(c, "", "Invalid JSON format.")
			continue
		}

		switch msg.Type {
		case "ping":
			sendWsMessage(c, map[string]string{"type": "pong"}, logger)

		case "chat_send":
			srv.handleChat(rm, seat, msg, logger)

		case "game_start", "game_draw", "game_meld", "game_layoff",
			"game_discard", "game_forfeit", "room_to_lobby":
			if seat == nil {
				sendWsError(c, "", "Spectators cannot act.")
				continue
			}
			srv.handleRoomAction(rm, seat, msg, c, logger)

		default:
			logger.Warnf("Unknown message type %q in room %s.", msg.Type, rm.ID)
			sendWsError(c, "", fmt.Sprintf("Unknown message type: %s", msg.Type))
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// handleRoomAction runs one room or game mutation under the room lock, then
// broadcasts the resulting state and queues the action for the historian.
func (srv *RoomServer) handleRoomAction(rm *room.Room, seat *room.Seat, msg RoomMessage, c *websocket.Conn, logger *logrus.Logger) {
	rm.Mu.Lock()

	// Ignore actions from a superseded connection: the player resumed the
	// seat elsewhere and this handler is on its way out.
	if seat.Conn != c {
		rm.Mu.Unlock()
		logger.Infof("Ignoring %s from a stale connection for player %s in room %s", msg.Type, seat.ID, rm.ID)
		return
	}

	var err error
	g := rm.Game

	switch msg.Type {
	case "game_start":
		if seat.ID != rm.HostID() {
			err = errors.New("only the host can deal")
		} else {
			g, err = rm.StartGame()
		}
	case "room_to_lobby":
		g = nil
		err = rm.ToLobby()
	default:
		if g == nil {
			err = errors.New("no game in progress")
		} else {
			switch msg.Type {
			case "game_draw":
				err = g.Draw(seat.ID, engine.DrawSource(msg.Source))
			case "game_meld":
				err = g.Meld(seat.ID, engine.MeldKind(msg.Kind), msg.CardIDs)
			case "game_layoff":
				err = g.Layoff(seat.ID, msg.MeldID, msg.CardIDs)
			case "game_discard":
				err = g.Discard(seat.ID, msg.CardID)
			case "game_forfeit":
				err = g.Forfeit(seat.ID)
			}
		}
	}

	if err != nil {
		rm.Mu.Unlock()
		sendWsError(c, engine.CodeOf(err), err.Error())
		return
	}

	finished := g != nil && g.Status == engine.StatusFinished
	if finished {
		rm.FinishGame()
	}

	var frames [][]byte
	if msg.Type == "game_start" || msg.Type == "room_to_lobby" || finished {
		frames = append(frames, mustJSON(roomStateMsg(rm)))
	}
	if g != nil {
		frames = append(frames, mustJSON(gameStateMsg(g)))
	}
	if finished {
		winner := "unknown"
		if p := g.PlayerByID(g.WinnerID); p != nil {
			winner = p.Nickname
		}
		frames = append(frames, mustJSON(map[string]interface{}{
			"type": "toast", "kind": "success",
			"message": fmt.Sprintf("Game over, %s wins", winner),
		}))
	}

	var records []history.ActionRecord
	if g != nil {
		rm.ActionIndex++
		records = append(records, history.ActionRecord{
			RoomID:      rm.ID,
			GameID:      g.ID,
			ActionIndex: rm.ActionIndex,
			ActorID:     seat.ID,
			ActionType:  msg.Type,
			Payload:     actionPayload(msg),
			Timestamp:   time.Now().UnixMilli(),
		})
		if finished {
			rm.ActionIndex++
			records = append(records, history.ActionRecord{
				RoomID:      rm.ID,
				GameID:      g.ID,
				ActionIndex: rm.ActionIndex,
				ActorID:     seat.ID,
				ActionType:  "game_finished",
				Payload:     map[string]interface{}{"winnerId": g.WinnerID.String()},
				Timestamp:   time.Now().UnixMilli(),
			})
		}
	}

	conns := rm.Connections()
	rm.Mu.Unlock()

	broadcastFrames(conns, frames, logger)
	srv.publishRecords(records, logger)
}

// handleChat relays a chat line to the whole room.
func (srv *RoomServer) handleChat(rm *room.Room, seat *room.Seat, msg RoomMessage, logger *logrus.Logger) {
	out := map[string]interface{}{
		"type":    "chat_message",
		"message": msg.Message,
		"ts":      time.Now().UnixMilli(),
	}
	if seat != nil {
		out["playerId"] = seat.ID.String()
		out["nickname"] = seat.Nickname
	}
	frame := mustJSON(out)

	rm.Mu.Lock()
	conns := rm.Connections()
	rm.Mu.Unlock()

	broadcastFrames(conns, [][]byte{frame}, logger)
}

// broadcastRoomState pushes the seat roster to everyone in the room.
func (srv *RoomServer) broadcastRoomState(rm *room.Room, logger *logrus.Logger) {
	rm.Mu.Lock()
	frame := mustJSON(roomStateMsg(rm))
	conns := rm.Connections()
	rm.Mu.Unlock()

	broadcastFrames(conns, [][]byte{frame}, logger)
}

// publishRecords queues action records for the historian. Best effort: a
// failed publish is logged and play continues.
func (srv *RoomServer) publishRecords(records []history.ActionRecord, logger *logrus.Logger) {
	if srv.History == nil || len(records) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		for _, rec := range records {
			if err := srv.History.Publish(ctx, rec); err != nil {
				logger.Warnf("Failed to publish action record for game %s: %v", rec.GameID, err)
			}
		}
	}()
}

// summarizeRoomLocked builds the roster view of a room. Callers must hold
// rm.Mu.
func summarizeRoomLocked(rm *room.Room) roomSummary {
	sum := roomSummary{
		RoomID: rm.ID.String(),
		Status: string(rm.Status),
	}
	if hostID := rm.HostID(); hostID != uuid.Nil {
		sum.HostID = hostID.String()
	}
	for _, s := range rm.Seats {
		sum.Players = append(sum.Players, seatSummary{
			ID:        s.ID.String(),
			Nickname:  s.Nickname,
			IsHost:    s.IsHost,
			Connected: s.Connected,
		})
	}
	return sum
}

func roomStateMsg(rm *room.Room) map[string]interface{} {
	return map[string]interface{}{
		"type": "room_state",
		"room": summarizeRoomLocked(rm),
	}
}

// gameStateMsg wraps the full game snapshot. Hands of every player are
// included; redacting opponents' hands for display is the client's concern.
func gameStateMsg(g *engine.Game) map[string]interface{} {
	return map[string]interface{}{
		"type":  "game_state",
		"state": g,
	}
}

// actionPayload extracts the history payload for a game action message.
func actionPayload(msg RoomMessage) map[string]interface{} {
	payload := map[string]interface{}{}
	if msg.Source != "" {
		payload["source"] = msg.Source
	}
	if msg.Kind != "" {
		payload["kind"] = msg.Kind
	}
	if msg.CardID != uuid.Nil {
		payload["cardId"] = msg.CardID.String()
	}
	if msg.MeldID != uuid.Nil {
		payload["meldId"] = msg.MeldID.String()
	}
	if len(msg.CardIDs) > 0 {
		ids := make([]string, len(msg.CardIDs))
		for i, id := range msg.CardIDs {
			ids[i] = id.String()
		}
		payload["cardIds"] = ids
	}
	if len(payload) == 0 {
		return nil
	}
	return payload
}

// mustJSON marshals v, logging and returning "{}" on failure so a bad frame
// never takes the room down.
func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		logrus.Warnf("Failed to marshal outbound frame: %v", err)
		return []byte("{}")
	}
	return data
}

// writeFrames writes frames to one connection with a per-write timeout.
func writeFrames(c *websocket.Conn, frames [][]byte, logger *logrus.Logger) {
	for _, frame := range frames {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := c.Write(ctx, websocket.MessageText, frame)
		cancel()
		if err != nil {
			logger.Warnf("Failed to write WebSocket frame: %v", err)
			return
		}
	}
}

// broadcastFrames fans frames out to every connection asynchronously so the
// room lock is never held across a network write.
func broadcastFrames(conns []*websocket.Conn, frames [][]byte, logger *logrus.Logger) {
	if len(frames) == 0 {
		return
	}
	for _, conn := range conns {
		go writeFrames(conn, frames, logger)
	}
}

// sendWsMessage marshals and sends one message to a single client.
func sendWsMessage(c *websocket.Conn, message interface{}, logger *logrus.Logger) {
	writeFrames(c, [][]byte{mustJSON(message)}, logger)
}

// sendWsError sends a structured rejection to the client. code is the engine
// rejection code, or empty for transport-level errors.
func sendWsError(c *websocket.Conn, code engine.Code, errorMsg string) {
	frame := mustJSON(map[string]interface{}{
		"type":    "game_invalid",
		"code":    string(code),
		"message": errorMsg,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = c.Write(ctx, websocket.MessageText, frame)
}
