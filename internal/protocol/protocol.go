// Package protocol defines the JSON messages exchanged on the matchmaking and
// match channels, and the Peer contract both channels send through.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// client → server actions
const (
	ActionJoin         = "join"
	ActionEscrow       = "escrow"
	ActionReady        = "ready"
	ActionSignedCreate = "signed_create"
	ActionSignedJoin   = "signed_join"
	ActionCancel       = "cancel"

	ActionMove   = "move"
	ActionChoice = "choice"
	ActionEnd    = "end"
)

// server → client events
const (
	EventMatchFound   = "match_found"
	EventMatchTimeout = "match_timeout"
	EventEscrow       = "escrow"
	EventReady        = "ready"
	EventSignedCreate = "signed_create"
	EventSignedJoin   = "signed_join"
	EventMatchCancel  = "match_cancel"

	EventStart        = "start"
	EventState        = "state"
	EventRPSReveal    = "rps_reveal"
	EventGameEnd      = "game_end"
	EventOpponentMove = "opponent_move"

	EventError = "error"
)

// Matchmaking error reasons.
const (
	ReasonBadRequest    = "bad_request"
	ReasonAlreadyQueued = "already_queued"
)

// Outbound is the envelope of every server → client message.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Peer is one live client channel. Send never fails: transport errors are
// logged by the implementation and otherwise swallowed.
type Peer interface {
	Send(msg Outbound)
	Close()
}

// Envelope is decoded first to route a message by its action.
type Envelope struct {
	Action string `json:"action"`
}

func Decode(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

func ErrorMsg(reason string) Outbound {
	return Outbound{Event: EventError, Data: ErrorData{Reason: reason}}
}

type ErrorData struct {
	Reason string `json:"reason"`
}

// Number accepts a JSON number or a numeric string. NaN and infinities are
// rejected.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("not a number: %q", s)
	}
	*n = Number(f)
	return nil
}

// String renders the number without trailing zeros, e.g. 10 or 2.5.
func (n Number) String() string {
	return strconv.FormatFloat(float64(n), 'f', -1, 64)
}

func (n Number) Finite() bool {
	f := float64(n)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
