package lobby

import (
	"errors"
	"time"

	"stockmarket/internal/game"
)

var (
	ErrGameNotFound   = errors.New("game not found")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrUnauthorized   = errors.New("only the host can do that")
	ErrNotSeated      = errors.New("player is not seated at this table")
	ErrNotStarted     = errors.New("game has not started")
	ErrAlreadyStarted = errors.New("game already started")
	ErrGameOver       = errors.New("game is over")
	ErrNoPlayers      = errors.New("no game in progress")
)

type Status string

const (
	StatusLobby    Status = "lobby"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Event types fanned out to subscribers and the journal.
const (
	EventLobby       = "lobby"
	EventStarted     = "game_started"
	EventUpdate      = "update"
	EventActivity    = "activity"
	EventFlashNews   = "flash_news"
	EventNews        = "news"
	EventMillionaire = "millionaire"
	EventGameOver    = "game_over"
	EventReset       = "game_reset"
)

type Event struct {
	Type    string    `json:"type"`
	GameID  string    `json:"game_id"`
	Actor   string    `json:"actor,omitempty"`
	Message string    `json:"message,omitempty"`
	Lines   []string  `json:"lines,omitempty"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// Broadcaster receives every event after the table lock is released.
type Broadcaster interface {
	Publish(ev Event)
}

// Journal durably appends events. *journal.Writer satisfies it.
type Journal interface {
	Append(v any) error
}

type Lobby struct {
	GameID  string   `json:"game_id"`
	Host    string   `json:"host"`
	Players []string `json:"players"`
	Status  Status   `json:"status"`
}

type Seat struct {
	GameID string `json:"game_id"`
	Player string `json:"player"`
	Host   bool   `json:"host"`
	// Added is false when the name was already seated.
	Added bool `json:"added"`
}

// State is the request_update view. Round and Turn are 1-based for display.
// Version grows with every update event of a table.
type State struct {
	GameID  string        `json:"game_id"`
	Host    string        `json:"host"`
	Status  Status        `json:"status"`
	Round   int           `json:"round"`
	Turn    int           `json:"turn"`
	Game    game.Snapshot `json:"game"`
	Final   *Final        `json:"final,omitempty"`
	Version uint64        `json:"version"`
}

// Final is the end-of-game summary kept on a finished table.
type Final struct {
	Reason     string          `json:"reason"`
	Winners    []string        `json:"winners"`
	Scores     []game.ScoreRow `json:"final_scores"`
	EndedEarly bool            `json:"ended_early,omitempty"`
}

type TradeOutcome struct {
	Receipt game.Receipt `json:"receipt"`
	Flash   []string     `json:"flash_news,omitempty"`
}

type TurnOutcome struct {
	game.TurnResult
	Final *Final `json:"final,omitempty"`
}
