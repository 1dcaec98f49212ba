package cli

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stockmarket/internal/api"
	"stockmarket/internal/auth"
	"stockmarket/internal/config"
	"stockmarket/internal/game"
	"stockmarket/internal/lobby"
)

// calmRand keeps every newsflash to "market very weak".
type calmRand struct{}

func (calmRand) Intn(int) int     { return 0 }
func (calmRand) Float64() float64 { return 0 }

func TestSeatBook(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if _, err := LoadSeat(""); !errors.Is(err, ErrNoSeat) {
		t.Fatalf("expected ErrNoSeat, got %v", err)
	}
	if err := SaveSeat(Seat{GameID: "g1", Player: "alice", Token: "t1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := SaveSeat(Seat{GameID: "g2", Player: "bob", Token: "t2", Added: true}); err != nil {
		t.Fatalf("save: %v", err)
	}

	seat, err := LoadSeat("")
	if err != nil || seat.GameID != "g2" || seat.Added {
		t.Fatalf("current seat=%+v err=%v", seat, err)
	}
	seat, err = LoadSeat("g1")
	if err != nil || seat.Token != "t1" {
		t.Fatalf("g1 seat=%+v err=%v", seat, err)
	}

	if err := ClearSeat("g2"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cur, _ := CurrentGame(); cur != "" {
		t.Fatalf("current=%q after clearing it", cur)
	}
	if err := SaveSeat(Seat{GameID: "g3"}); err == nil {
		t.Fatalf("seat without token saved")
	}
}

func TestClientAgainstServer(t *testing.T) {
	signer, err := auth.NewSigner("cli-test", time.Hour)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	srv := api.New(config.APIConfig{}, nil, signer, lobby.New(lobby.Options{NewRand: func() game.Rand { return calmRand{} }}))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx := context.Background()
	c := NewClient(ts.URL + "/")
	l, err := c.CreateGame(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	seat, err := c.Join(ctx, l.GameID, "alice")
	if err != nil || !seat.Host || seat.Token == "" {
		t.Fatalf("join seat=%+v err=%v", seat, err)
	}
	if _, err := c.Start(ctx, seat, 1, 0); err != nil {
		t.Fatalf("start: %v", err)
	}

	res, err := c.Trade(ctx, seat, "sell", "GOLD", 1)
	if err != nil {
		t.Fatalf("trade: %v", err)
	}
	if res.OK || res.Kind != "insufficient_shares" {
		t.Fatalf("refused trade=%+v", res)
	}
	res, err = c.Trade(ctx, seat, "buy", "LEAD", 3)
	if err != nil || !res.OK {
		t.Fatalf("buy=%+v err=%v", res, err)
	}

	if _, err := c.Start(ctx, seat, 1, 0); err == nil {
		t.Fatalf("second start succeeded")
	} else if want := "api status 409: game already started"; err.Error() != want {
		t.Fatalf("err=%q want %q", err, want)
	}

	st, err := c.State(ctx, l.GameID)
	if err != nil || st.Game.Players[0].Holdings["LEAD"] != 3 {
		t.Fatalf("state=%+v err=%v", st, err)
	}
	games, err := c.ListGames(ctx)
	if err != nil || len(games) != 1 {
		t.Fatalf("games=%v err=%v", games, err)
	}

	conn, err := c.Watch(ctx, l.GameID)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer conn.Close()
	var ev lobby.Event
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&ev); err != nil || ev.Type != lobby.EventUpdate {
		t.Fatalf("first event=%+v err=%v", ev, err)
	}

	if _, err := c.Scores(ctx, "missing"); err == nil {
		t.Fatalf("scores for unknown game succeeded")
	}
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
}
