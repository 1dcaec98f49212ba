package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"stockmarket/internal/lobby"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func gamePath(gameID, suffix string) string {
	return "/v1/games/" + url.PathEscape(gameID) + suffix
}

func (c *Client) CreateGame(ctx context.Context) (lobby.Lobby, error) {
	var out lobby.Lobby
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/games", "", nil, &out)
	return out, err
}

func (c *Client) ListGames(ctx context.Context) ([]lobby.Lobby, error) {
	var out struct {
		Games []lobby.Lobby `json:"games"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/games", "", nil, &out)
	return out.Games, err
}

// Join seats player and returns the seat with its bearer token.
func (c *Client) Join(ctx context.Context, gameID, player string) (Seat, error) {
	var out Seat
	err := c.jsonRequest(ctx, http.MethodPost, gamePath(gameID, "/join"), "", map[string]any{
		"player": player,
	}, &out)
	return out, err
}

func (c *Client) State(ctx context.Context, gameID string) (lobby.State, error) {
	var out lobby.State
	err := c.jsonRequest(ctx, http.MethodGet, gamePath(gameID, ""), "", nil, &out)
	return out, err
}

func (c *Client) Lobby(ctx context.Context, gameID string) (lobby.Lobby, error) {
	var out lobby.Lobby
	err := c.jsonRequest(ctx, http.MethodGet, gamePath(gameID, "/lobby"), "", nil, &out)
	return out, err
}

func (c *Client) Start(ctx context.Context, seat Seat, difficulty int, target int64) (lobby.State, error) {
	var out lobby.State
	err := c.jsonRequest(ctx, http.MethodPost, gamePath(seat.GameID, "/start"), seat.Token, map[string]any{
		"difficulty": difficulty,
		"target":     target,
	}, &out)
	return out, err
}

// Trade places a buy or sell. A refused trade is not an error: the result
// carries ok=false with the engine's message.
func (c *Client) Trade(ctx context.Context, seat Seat, side, commodity string, qty int64) (TradeResult, error) {
	var out TradeResult
	err := c.jsonRequest(ctx, http.MethodPost, gamePath(seat.GameID, "/"+side), seat.Token, map[string]any{
		"commodity": commodity,
		"quantity":  qty,
	}, &out)
	return out, err
}

func (c *Client) Repay(ctx context.Context, seat Seat, amount int64) (TradeResult, error) {
	var out TradeResult
	err := c.jsonRequest(ctx, http.MethodPost, gamePath(seat.GameID, "/repay"), seat.Token, map[string]any{
		"amount": amount,
	}, &out)
	return out, err
}

func (c *Client) EndTurn(ctx context.Context, seat Seat) (lobby.TurnOutcome, error) {
	var out lobby.TurnOutcome
	err := c.jsonRequest(ctx, http.MethodPost, gamePath(seat.GameID, "/end-turn"), seat.Token, nil, &out)
	return out, err
}

func (c *Client) EndEarly(ctx context.Context, seat Seat) (lobby.Final, error) {
	var out lobby.Final
	err := c.jsonRequest(ctx, http.MethodPost, gamePath(seat.GameID, "/end-early"), seat.Token, nil, &out)
	return out, err
}

func (c *Client) Reset(ctx context.Context, seat Seat) error {
	return c.jsonRequest(ctx, http.MethodPost, gamePath(seat.GameID, "/reset"), seat.Token, nil, nil)
}

func (c *Client) Scores(ctx context.Context, gameID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, gamePath(gameID, "/scores"), "", nil, &out)
	return out, err
}

func (c *Client) Leaderboard(ctx context.Context, limit int) (map[string]any, error) {
	path := "/v1/leaderboard"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, path, "", nil, &out)
	return out, err
}

// Watch dials the game's event stream. The caller owns the connection.
func (c *Client) Watch(ctx context.Context, gameID string) (*websocket.Conn, error) {
	u, err := url.Parse(c.BaseURL + gamePath(gameID, "/ws"))
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial event stream: %w", err)
	}
	return conn, nil
}

type TradeResult struct {
	OK        bool           `json:"ok"`
	Kind      string         `json:"kind,omitempty"`
	Message   string         `json:"message"`
	Receipt   map[string]any `json:"receipt,omitempty"`
	FlashNews []string       `json:"flash_news,omitempty"`
}

// jsonRequest sends one API call. Seat actions carry an Idempotency-Key and
// are retried once with the same key when the transport fails, so a request
// that reached the server before the connection dropped is not applied twice.
func (c *Client) jsonRequest(ctx context.Context, method, path, accessToken string, in any, out any) error {
	var raw []byte
	if in != nil {
		var err error
		if raw, err = json.Marshal(in); err != nil {
			return err
		}
	}
	idem := ""
	attempts := 1
	if accessToken != "" && method == http.MethodPost {
		idem = uuid.NewString()
		attempts = 2
	}

	var resp *http.Response
	for i := 0; i < attempts; i++ {
		var body io.Reader
		if raw != nil {
			body = bytes.NewReader(raw)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if raw != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if accessToken != "" {
			req.Header.Set("Authorization", "Bearer "+accessToken)
		}
		if idem != "" {
			req.Header.Set("Idempotency-Key", idem)
		}
		resp, err = c.HTTP.Do(req)
		if err == nil {
			break
		}
		if i == attempts-1 || ctx.Err() != nil {
			return err
		}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, apiMessage(msg))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// apiMessage unwraps {"error": "..."} bodies.
func apiMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}
