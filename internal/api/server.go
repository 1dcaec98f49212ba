package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stockmarket/internal/auth"
	"stockmarket/internal/config"
	"stockmarket/internal/game"
	"stockmarket/internal/lobby"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const seatContextKey contextKey = "seat"

type Server struct {
	cfg     config.APIConfig
	log     *slog.Logger
	tokens  *auth.Signer
	lobby   *lobby.Service
	hub     *Hub
	replays *replayGuard
	mux     *chi.Mux
}

// New wires the HTTP surface and installs the websocket hub as the lobby's
// broadcaster.
func New(cfg config.APIConfig, logger *slog.Logger, tokens *auth.Signer, svc *lobby.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		log:     logger,
		tokens:  tokens,
		lobby:   svc,
		hub:     NewHub(logger),
		replays: newReplayGuard(replayWindow),
		mux:     chi.NewRouter(),
	}
	svc.SetBroadcaster(s.hub)
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		// The event stream is long-lived and must stay outside the request timeout.
		r.Get("/games/{id}/ws", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Get("/leaderboard", s.handleLeaderboard)
			r.Get("/games", s.handleListGames)
			r.Post("/games", s.handleCreateGame)

			r.Route("/games/{id}", func(r chi.Router) {
				r.Get("/", s.handleState)
				r.Get("/lobby", s.handleLobby)
				r.Get("/scores", s.handleScores)
				r.Post("/join", s.handleJoin)

				r.Group(func(r chi.Router) {
					r.Use(s.seatMiddleware)
					r.Use(s.idempotencyMiddleware)
					r.Post("/start", s.handleStart)
					r.Post("/buy", s.handleBuy)
					r.Post("/sell", s.handleSell)
					r.Post("/repay", s.handleRepay)
					r.Post("/end-turn", s.handleEndTurn)
					r.Post("/end-early", s.handleEndEarly)
					r.Post("/reset", s.handleReset)
				})
			})
		})
	})
}

// seatMiddleware requires a seat token issued for the table in the path.
func (s *Server) seatMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := s.tokens.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, fmt.Sprintf("invalid token: %v", err))
			return
		}
		if claims.GameID != chi.URLParam(r, "id") {
			writeError(w, http.StatusForbidden, "token was issued for another game")
			return
		}
		ctx := context.WithValue(r.Context(), seatContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func seatFromContext(ctx context.Context) (auth.Claims, error) {
	claims, ok := ctx.Value(seatContextKey).(auth.Claims)
	if !ok || claims.Player == "" {
		return auth.Claims{}, errors.New("missing seat context")
	}
	return claims, nil
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"games": s.lobby.ListGames(r.Context())})
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	l, err := s.lobby.CreateGame(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, err := s.lobby.State(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleLobby(w http.ResponseWriter, r *http.Request) {
	l, err := s.lobby.Lobby(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	rows, err := s.lobby.Scores(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scores": rows})
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Player string `json:"player"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := game.ValidatePlayerName(in.Player); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	seat, err := s.lobby.Join(r.Context(), chi.URLParam(r, "id"), in.Player)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !seat.Added {
		// A seat token is only ever handed to the caller that took the seat.
		writeError(w, http.StatusConflict, fmt.Sprintf("%s is already seated at this table", seat.Player))
		return
	}
	token, err := s.tokens.Issue(seat.GameID, seat.Player, seat.Host)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"game_id": seat.GameID,
		"player":  seat.Player,
		"host":    seat.Host,
		"added":   seat.Added,
		"token":   token,
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	seat, err := seatFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Difficulty int   `json:"difficulty"`
		Target     int64 `json:"target"`
	}
	if err := decodeOptionalJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Difficulty < 0 || in.Target < 0 {
		writeError(w, http.StatusBadRequest, "difficulty and target must not be negative")
		return
	}
	st, err := s.lobby.Start(r.Context(), seat.GameID, seat.Player, in.Difficulty, in.Target)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, s.lobby.Buy)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, s.lobby.Sell)
}

type tradeFunc func(ctx context.Context, id, actor, symbol string, qty int64) (lobby.TradeOutcome, error)

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request, trade tradeFunc) {
	seat, err := seatFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Commodity string `json:"commodity"`
		Quantity  int64  `json:"quantity"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := trade(r.Context(), seat.GameID, seat.Player, in.Commodity, in.Quantity)
	if kind, ok := tradeFailure(err); ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":         false,
			"kind":       kind,
			"message":    err.Error(),
			"flash_news": out.Flash,
		})
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"message":    out.Receipt.Message,
		"receipt":    out.Receipt,
		"flash_news": out.Flash,
	})
}

func (s *Server) handleRepay(w http.ResponseWriter, r *http.Request) {
	seat, err := seatFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Amount int64 `json:"amount"`
	}
	if err := decodeOptionalJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	receipt, err := s.lobby.Repay(r.Context(), seat.GameID, seat.Player, in.Amount)
	if kind, ok := tradeFailure(err); ok {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "kind": kind, "message": err.Error()})
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": receipt.Message, "receipt": receipt})
}

func (s *Server) handleEndTurn(w http.ResponseWriter, r *http.Request) {
	seat, err := seatFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.lobby.EndTurn(r.Context(), seat.GameID, seat.Player)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEndEarly(w http.ResponseWriter, r *http.Request) {
	seat, err := seatFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	final, err := s.lobby.EndEarly(r.Context(), seat.GameID, seat.Player)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, final)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	seat, err := seatFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err := s.lobby.Reset(r.Context(), seat.GameID, seat.Player); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.LeaderboardLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, 100)
	}
	rows, err := s.lobby.Leaderboard(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": rows})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := s.lobby.State(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.hub.Serve(w, r, id, lobby.Event{
		Type:    lobby.EventUpdate,
		GameID:  id,
		Payload: st,
		At:      time.Now().UTC(),
	})
}

// tradeFailure reports the engine errors a client sees as a refused trade
// rather than a failed request.
func tradeFailure(err error) (string, bool) {
	switch {
	case err == nil:
		return "", false
	case errors.Is(err, game.ErrBankrupt):
		return "bankrupt", true
	case errors.Is(err, game.ErrInsufficientFunds):
		return "insufficient_funds", true
	case errors.Is(err, game.ErrInsufficientShares):
		return "insufficient_shares", true
	case errors.Is(err, game.ErrNoLoan):
		return "no_loan", true
	}
	return "", false
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lobby.ErrGameNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, lobby.ErrNotYourTurn), errors.Is(err, lobby.ErrUnauthorized), errors.Is(err, lobby.ErrNotSeated):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, lobby.ErrNotStarted), errors.Is(err, lobby.ErrAlreadyStarted), errors.Is(err, lobby.ErrGameOver):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, lobby.ErrNoPlayers):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrUnknownCommodity), errors.Is(err, game.ErrInvalidQuantity), errors.Is(err, game.ErrUnknownPlayer):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

// decodeOptionalJSON accepts an empty body and leaves out at its zero value.
func decodeOptionalJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return nil
	}
	if err := decodeJSON(r, out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
