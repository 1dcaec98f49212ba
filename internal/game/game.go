package game

import (
	"fmt"
	"strings"
	"time"
)

// Options configures a new Game. Zero values fall back to the defaults.
type Options struct {
	Rules      Rules
	Difficulty int
	Target     int64
	Rand       Rand
	Now        func() time.Time
}

// Game is the complete state of one table. It is not safe for concurrent
// use: callers serialize every mutating call.
type Game struct {
	rules Rules
	rand  Rand
	now   func() time.Time

	ledger *Ledger
	market *Market

	current    int
	round      int
	turn       int
	difficulty int
	target     int64
	phase      Phase

	tradeAttempts  int
	flashThisRound int
	lastFlash      time.Time

	lastBonusPay Commodity
	hasBonusPay  bool
	lastSplit    Commodity
	hasSplit     bool
}

func New(opts Options) *Game {
	opts.Rules = opts.Rules.WithDefaults()
	if opts.Difficulty <= 0 {
		opts.Difficulty = opts.Rules.DefaultDifficulty
	}
	if opts.Target <= 0 {
		opts.Target = opts.Rules.DefaultTarget
	}
	if opts.Rand == nil {
		opts.Rand = NewTimeRand()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	g := &Game{
		rules:      opts.Rules,
		rand:       opts.Rand,
		now:        opts.Now,
		difficulty: opts.Difficulty,
		target:     opts.Target,
	}
	g.init()
	return g
}

func (g *Game) init() {
	g.ledger = newLedger()
	g.market = newMarket()
	g.current = 0
	g.round = 0
	g.turn = 0
	g.phase = PhaseAwaitingAction
	g.tradeAttempts = 0
	g.flashThisRound = 0
	g.lastFlash = time.Time{}
	g.hasBonusPay = false
	g.hasSplit = false
}

// Reset discards every player and all market state, keeping difficulty and target.
func (g *Game) Reset() {
	g.init()
}

// Configure sets difficulty and target, as chosen by the host at game start.
func (g *Game) Configure(difficulty int, target int64) error {
	if difficulty < 1 {
		return fmt.Errorf("difficulty must be >= 1")
	}
	if target <= 0 {
		return fmt.Errorf("target must be > 0")
	}
	g.difficulty = difficulty
	g.target = target
	return nil
}

// AddPlayer seats name at the end of the turn order. Joining twice is a no-op
// and reports false.
func (g *Game) AddPlayer(name string) (bool, error) {
	name = strings.TrimSpace(name)
	if err := ValidatePlayerName(name); err != nil {
		return false, err
	}
	_, added := g.ledger.add(name, g.rules.InitialBalance)
	return added, nil
}

// CurrentPlayer returns the active player's name, or "" with false when nobody has joined.
func (g *Game) CurrentPlayer() (string, bool) {
	if g.ledger.len() == 0 {
		return "", false
	}
	return g.ledger.order[g.current], true
}

func (g *Game) Players() []string       { return g.ledger.names() }
func (g *Game) Round() int              { return g.round }
func (g *Game) Turn() int               { return g.turn }
func (g *Game) Difficulty() int         { return g.difficulty }
func (g *Game) Target() int64           { return g.target }
func (g *Game) Phase() Phase            { return g.phase }
func (g *Game) Rules() Rules            { return g.rules }
func (g *Game) TradeAttempts() int      { return g.tradeAttempts }
func (g *Game) Price(c Commodity) int64 { return g.market.Price(c) }

// Player returns a copy of the named player's record.
func (g *Game) Player(name string) (Player, error) {
	p, err := g.ledger.get(name)
	if err != nil {
		return Player{}, err
	}
	return *p, nil
}

// NetWorth is balance + holdings value - loan at current prices.
func (g *Game) NetWorth(name string) (int64, error) {
	p, err := g.ledger.get(name)
	if err != nil {
		return 0, err
	}
	return p.NetWorth(g.market.Prices()), nil
}

// MaxLoan is the remaining margin ceiling: ratio x (holdings value + balance) - loan.
func (g *Game) MaxLoan(name string) (int64, error) {
	p, err := g.ledger.get(name)
	if err != nil {
		return 0, err
	}
	return g.maxLoan(p), nil
}

func (g *Game) maxLoan(p *Player) int64 {
	return p.Assets(g.market.Prices())*g.rules.MarginRatioPct/100 - p.Loan
}

func (g *Game) outstanding() [numCommodities]int64 {
	var out [numCommodities]int64
	g.ledger.each(func(p *Player) {
		for _, c := range Commodities {
			out[c] += p.Holdings[c]
		}
	})
	return out
}

// Snapshot is a read-only copy of the whole table for broadcast.
func (g *Game) Snapshot() Snapshot {
	prices := g.market.Prices()
	out := Snapshot{
		Round:      g.round,
		Turn:       g.turn,
		Difficulty: g.difficulty,
		Target:     g.target,
		Phase:      g.phase,
		Players:    make([]PlayerView, 0, g.ledger.len()),
	}
	out.CurrentPlayer, _ = g.CurrentPlayer()
	for _, c := range Commodities {
		out.Market = append(out.Market, CommodityView{
			Symbol:    c.String(),
			Price:     prices[c],
			LastPrice: g.market.lastPrices[c],
			MinPrice:  c.MinPrice(),
			MaxPrice:  c.MaxPrice(),
			Suspended: g.market.Suspended(c),
		})
	}
	g.ledger.each(func(p *Player) {
		holdings := make(map[string]int64, numCommodities)
		for _, c := range Commodities {
			holdings[c.String()] = p.Holdings[c]
		}
		out.Players = append(out.Players, PlayerView{
			Name:            p.Name,
			Balance:         p.Balance,
			Holdings:        holdings,
			Loan:            p.Loan,
			Bankrupt:        p.Bankrupt,
			TradesThisRound: p.TradesThisRound,
			NetWorth:        p.NetWorth(prices),
		})
	})
	return out
}
