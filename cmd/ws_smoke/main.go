// Command ws_smoke plays one Rock Paper Scissors match against a running
// server: two sockets join the lobby, meet in the match room and play until
// game_end.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"arcade_arena/internal/game"
	"arcade_arena/internal/logger"
	"arcade_arena/internal/protocol"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/websocket"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func main() {
	addr := flag.String("addr", "127.0.0.1:8787", "server host:port")
	flag.Parse()
	logger.Init("debug", false)

	walletA, walletB := newWallet(), newWallet()

	lobbyA := mustDial(*addr, "/matchmaking")
	defer lobbyA.Close()
	lobbyB := mustDial(*addr, "/matchmaking")
	defer lobbyB.Close()

	mustWrite(lobbyA, joinRequest(walletA))
	time.Sleep(100 * time.Millisecond)
	mustWrite(lobbyB, joinRequest(walletB))

	var found protocol.MatchFoundData
	await(lobbyA, protocol.EventMatchFound, &found)
	await(lobbyB, protocol.EventMatchFound, nil)
	logger.Info("match found", "match_id", found.MatchID, "a", walletA, "b", walletB)

	gameA := mustDial(*addr, fmt.Sprintf("/game/%s?wallet=%s", found.MatchID, walletA))
	defer gameA.Close()
	time.Sleep(100 * time.Millisecond)
	gameB := mustDial(*addr, fmt.Sprintf("/game/%s?wallet=%s", found.MatchID, walletB))
	defer gameB.Close()

	await(gameA, protocol.EventStart, nil)
	await(gameB, protocol.EventStart, nil)

	// A always throws rock and B scissors, so A wins every round
	for {
		mustWrite(gameA, protocol.MatchMessage{Action: protocol.ActionChoice, Choice: game.Rock})
		mustWrite(gameB, protocol.MatchMessage{Action: protocol.ActionChoice, Choice: game.Scissors})

		ev, data := next(gameA, protocol.EventRPSReveal, protocol.EventGameEnd)
		if ev == protocol.EventGameEnd {
			logger.Info("game over", "data", string(data))
			break
		}
		var reveal protocol.RevealData
		if err := json.Unmarshal(data, &reveal); err != nil {
			logger.Fatal("decode reveal", "error", err)
		}
		logger.Info("round", "round", reveal.Round, "a", reveal.AChoice, "b", reveal.BChoice)
		next(gameB, protocol.EventRPSReveal, protocol.EventGameEnd)
	}

	logger.Info("smoke test finished")
}

func newWallet() string {
	key, err := crypto.GenerateKey()
	if err != nil {
		logger.Fatal("generate key", "error", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func joinRequest(wallet string) map[string]any {
	return map[string]any{
		"action":      protocol.ActionJoin,
		"wallet":      wallet,
		"gameId":      "rockpaperscissors",
		"playMode":    "free",
		"stakeAmount": 0,
		"playerXP":    0,
	}
}

func mustDial(addr, path string) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+path, nil)
	if err != nil {
		logger.Fatal("dial", "path", path, "error", err)
	}
	return conn
}

func mustWrite(conn *websocket.Conn, v any) {
	if err := conn.WriteJSON(v); err != nil {
		logger.Fatal("write", "error", err)
	}
}

func await(conn *websocket.Conn, event string, into any) {
	_, data := next(conn, event)
	if into == nil {
		return
	}
	if err := json.Unmarshal(data, into); err != nil {
		logger.Fatal("decode", "event", event, "error", err)
	}
}

// next reads until one of events arrives, logging whatever else comes by.
func next(conn *websocket.Conn, events ...string) (string, json.RawMessage) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg envelope
		if err := conn.ReadJSON(&msg); err != nil {
			logger.Error("read", "waiting_for", events, "error", err)
			os.Exit(1)
		}
		for _, ev := range events {
			if msg.Event == ev {
				return msg.Event, msg.Data
			}
		}
		logger.Debug("skipped", "event", msg.Event, "data", string(msg.Data))
	}
}
