package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrNoSeat = errors.New("no seat saved for this game; run `smk join` first")

// Seat is a joined player's credentials for one table.
type Seat struct {
	GameID string `json:"game_id"`
	Player string `json:"player"`
	Host   bool   `json:"host"`
	Added  bool   `json:"added,omitempty"`
	Token  string `json:"token"`
}

// Sessions is the on-disk seat book. Current is the game commands default to.
type Sessions struct {
	Current string          `json:"current"`
	Seats   map[string]Seat `json:"seats"`
}

func baseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".smk")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

func sessionPath() (string, error) {
	dir, err := baseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "seats.json"), nil
}

func loadSessions() (Sessions, error) {
	s := Sessions{Seats: map[string]Seat{}}
	path, err := sessionPath()
	if err != nil {
		return s, err
	}
	body, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, err
	}
	if err := json.Unmarshal(body, &s); err != nil {
		return s, err
	}
	if s.Seats == nil {
		s.Seats = map[string]Seat{}
	}
	return s, nil
}

func saveSessions(s Sessions) error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	body, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, body, 0o600)
}

// SaveSeat stores the seat and makes its game current.
func SaveSeat(seat Seat) error {
	if strings.TrimSpace(seat.Token) == "" {
		return fmt.Errorf("seat for %s has no token", seat.GameID)
	}
	s, err := loadSessions()
	if err != nil {
		return err
	}
	seat.Added = false
	s.Seats[seat.GameID] = seat
	s.Current = seat.GameID
	return saveSessions(s)
}

// LoadSeat returns the seat for gameID, or for the current game when gameID is empty.
func LoadSeat(gameID string) (Seat, error) {
	s, err := loadSessions()
	if err != nil {
		return Seat{}, err
	}
	if gameID = strings.TrimSpace(gameID); gameID == "" {
		gameID = s.Current
	}
	seat, ok := s.Seats[gameID]
	if !ok || gameID == "" {
		return Seat{}, ErrNoSeat
	}
	return seat, nil
}

// CurrentGame returns the game most recently joined, if any.
func CurrentGame() (string, error) {
	s, err := loadSessions()
	if err != nil {
		return "", err
	}
	return s.Current, nil
}

func ClearSeat(gameID string) error {
	s, err := loadSessions()
	if err != nil {
		return err
	}
	delete(s.Seats, gameID)
	if s.Current == gameID {
		s.Current = ""
	}
	return saveSessions(s)
}
