// internal/engine/errors.go
package engine

import (
	"errors"
	"fmt"
)

// Code identifies why an operation was rejected. Codes are stable strings so
// the transport layer can forward them to clients verbatim.
type Code string

const (
	CodeNotYourTurn         Code = "NOT_YOUR_TURN"
	CodeInvalidPhase        Code = "INVALID_PHASE"
	CodeMustDrawFirst       Code = "MUST_DRAW_FIRST"
	CodeDeckEmpty           Code = "DECK_EMPTY"
	CodeDiscardEmpty        Code = "DISCARD_EMPTY"
	CodeNeedPointsOrMelds   Code = "NEED_41_OR_3_MELDS"
	CodeCardNotInHand       Code = "CARD_NOT_IN_HAND"
	CodeInvalidSet          Code = "INVALID_SET"
	CodeInvalidRun          Code = "INVALID_RUN"
	CodeInvalidLayoff       Code = "INVALID_LAYOFF"
	CodeLayoffOnlyOnThree   Code = "LAYOFF_ONLY_ON_THREE"
	CodeMeldNotFound        Code = "MELD_NOT_FOUND"
	CodeMustUseDrawnDiscard Code = "MUST_USE_DRAWN_DISCARD_CARD"
	CodeInvalidDrawSource   Code = "INVALID_DRAW_SOURCE"
	CodeNoHost              Code = "NO_HOST"
	CodeNeedTwoPlayers      Code = "NEED_2_PLAYERS"
	CodeGameFinished        Code = "GAME_FINISHED"
)

// Error is a rejected operation. The game state is guaranteed to be exactly
// as it was before the call whenever one of these is returned.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the rejection code from an error, or "" if err is not an
// engine rejection.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
