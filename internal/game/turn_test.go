package game

import (
	"slices"
	"testing"
)

func TestEndTurnSkipsBankrupt(t *testing.T) {
	g := newTestGame(t, nil, "A", "B", "C")
	g.ledger.players["B"].Bankrupt = true

	res := g.EndTurn()
	if name, _ := g.CurrentPlayer(); name != "C" {
		t.Fatalf("current=%q want C", name)
	}
	if res.RoundEnd {
		t.Fatalf("skipping a seat closed the round")
	}

	res = g.EndTurn()
	if name, _ := g.CurrentPlayer(); name != "A" {
		t.Fatalf("current=%q want A", name)
	}
	if !res.RoundEnd || g.Round() != 1 {
		t.Fatalf("wrap did not close round: res=%+v round=%d", res, g.Round())
	}
}

func TestEndTurnAllBankrupt(t *testing.T) {
	g := newTestGame(t, nil, "A", "B")
	g.ledger.players["A"].Bankrupt = true
	g.ledger.players["B"].Bankrupt = true

	res := g.EndTurn()
	if !res.AllBankrupt || !res.RoundEnd {
		t.Fatalf("res=%+v", res)
	}
	if len(res.Winners) != 1 || res.Winners[0] != AllBankruptResult {
		t.Fatalf("winners=%v", res.Winners)
	}
	if g.Phase() != PhaseGameOver {
		t.Fatalf("phase=%s", g.Phase())
	}
}

func TestEndTurnLeavesLastSolventSeatPlaying(t *testing.T) {
	tests := []struct {
		name  string
		start int
		turns int
	}{
		{name: "from first seat", start: 0, turns: 4},
		{name: "from last seat", start: 2, turns: 6},
	}
	for _, tc := range tests {
		g := newTestGame(t, nil, "A", "B", "C")
		g.ledger.players["A"].Bankrupt = true
		g.ledger.players["B"].Bankrupt = true
		g.current = tc.start

		round := g.Round()
		for i := 0; i < tc.turns; i++ {
			// Leaving seat 0 reaches C without passing the end of the order.
			wraps := !(i == 0 && tc.start == 0)
			res := g.EndTurn()
			if name, _ := g.CurrentPlayer(); name != "C" {
				t.Fatalf("%s: turn %d current=%q want C", tc.name, i, name)
			}
			if res.RoundEnd != wraps {
				t.Fatalf("%s: turn %d round_end=%v want %v", tc.name, i, res.RoundEnd, wraps)
			}
			if wraps {
				round++
			}
			if g.Round() != round {
				t.Fatalf("%s: turn %d round=%d want %d", tc.name, i, g.Round(), round)
			}
			if res.AllBankrupt || g.Phase() != PhaseAwaitingAction {
				t.Fatalf("%s: turn %d res=%+v phase=%s", tc.name, i, res, g.Phase())
			}
		}
	}
}

func TestEndTurnLiquidationBankruptsEveryone(t *testing.T) {
	g := newTestGame(t, nil, "A", "B")
	for _, name := range []string{"A", "B"} {
		p := g.ledger.players[name]
		p.Balance = 0
		p.Loan = 500
	}

	res := g.EndTurn()
	if !res.AllBankrupt || g.Phase() != PhaseGameOver || res.Phase != PhaseGameOver {
		t.Fatalf("res=%+v phase=%s", res, g.Phase())
	}
	if len(res.Winners) != 1 || res.Winners[0] != AllBankruptResult {
		t.Fatalf("winners=%v", res.Winners)
	}
	if !slices.Contains(res.News, "A IS BANKRUPT!") || !slices.Contains(res.News, "B IS BANKRUPT!") {
		t.Fatalf("news=%v", res.News)
	}
}

func TestRoundClosesOncePerRotation(t *testing.T) {
	g := newTestGame(t, nil, "A", "B")
	before := g.market.Prices()

	res := g.EndTurn()
	if res.RoundEnd || g.Round() != 0 {
		t.Fatalf("first turn closed the round: %+v", res)
	}
	if g.market.Prices() != before {
		t.Fatalf("prices moved mid-round")
	}
	if len(res.News) != 0 {
		t.Fatalf("mid-round news: %v", res.News)
	}

	res = g.EndTurn()
	if !res.RoundEnd || g.Round() != 1 || g.Turn() != 2 {
		t.Fatalf("res=%+v round=%d turn=%d", res, g.Round(), g.Turn())
	}
	if g.Phase() != PhaseAwaitingAction {
		t.Fatalf("phase=%s", g.Phase())
	}
}

func TestRoundCloseResetsCounters(t *testing.T) {
	g := newTestGame(t, nil, "A", "B")
	if _, err := g.Buy("A", Lead, 5); err != nil {
		t.Fatalf("buy: %v", err)
	}
	g.EndTurn()
	g.EndTurn()

	if p := mustPlayer(t, g, "A"); p.TradesThisRound != 0 {
		t.Fatalf("trades not reset: %d", p.TradesThisRound)
	}
	if g.market.buys[Lead] != 0 {
		t.Fatalf("volumes not reset: %d", g.market.buys[Lead])
	}
	if g.TradeAttempts() != 1 {
		t.Fatalf("attempts should persist across rounds: %d", g.TradeAttempts())
	}
}

func TestInterestAccruesAtRoundEnd(t *testing.T) {
	g := newTestGame(t, nil, "A", "B")
	g.ledger.players["A"].Loan = 100

	g.EndTurn()
	if p := mustPlayer(t, g, "A"); p.Loan != 100 {
		t.Fatalf("interest charged mid-round: %d", p.Loan)
	}
	g.EndTurn()
	if p := mustPlayer(t, g, "A"); p.Loan != 110 {
		t.Fatalf("loan=%d want 110", p.Loan)
	}
}

func TestBankruptcyEvaluation(t *testing.T) {
	g := newTestGame(t, nil, "A", "B")
	a := g.ledger.players["A"]
	a.Balance = 50
	a.Loan = 1000

	res := g.EndTurn()
	if !slices.Contains(res.News, "A IS BANKRUPT!") {
		t.Fatalf("news=%v", res.News)
	}
	p := mustPlayer(t, g, "A")
	if !p.Bankrupt || p.Balance != 0 || p.Loan != 0 {
		t.Fatalf("bankrupt record=%+v", p)
	}
	if g.Phase() != PhaseAwaitingAction {
		t.Fatalf("phase=%s", g.Phase())
	}
	if name, ok := g.CheckLastPlayerStanding(); !ok || name != "B" {
		t.Fatalf("last standing=%q,%v", name, ok)
	}
}

func TestMillionairesEndGame(t *testing.T) {
	g := newTestGame(t, nil, "A", "B")
	if err := g.Configure(1, 500); err != nil {
		t.Fatalf("configure: %v", err)
	}
	g.ledger.players["B"].Bankrupt = true

	res := g.EndTurn()
	if len(res.Winners) != 1 || res.Winners[0] != "A" {
		t.Fatalf("winners=%v", res.Winners)
	}
	if res.Phase != PhaseGameOver {
		t.Fatalf("phase=%s", res.Phase)
	}
}

func TestFinalScores(t *testing.T) {
	g := newTestGame(t, nil, "A", "B", "C")
	g.ledger.players["C"].Balance = 3000
	g.ledger.players["B"].Bankrupt = true
	g.ledger.players["B"].Balance = 0

	rows := g.FinalScores()
	if len(rows) != 3 {
		t.Fatalf("rows=%v", rows)
	}
	want := []struct {
		name   string
		score  int64
		profit int64
	}{
		{name: "C", score: 600, profit: 2000},
		{name: "A", score: 200, profit: 0},
		{name: "B", score: 0, profit: -1000},
	}
	for i, w := range want {
		r := rows[i]
		if r.Rank != i+1 || r.Name != w.name || r.Score != w.score || r.Profit != w.profit {
			t.Fatalf("row %d=%+v want %+v", i, r, w)
		}
	}
	if !rows[2].Bankrupt {
		t.Fatalf("bankrupt flag lost")
	}
}
