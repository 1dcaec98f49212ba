package game

import "fmt"

// Player is one seat's ledger record.
type Player struct {
	Name            string
	Balance         int64
	Holdings        [numCommodities]int64
	Loan            int64
	Bankrupt        bool
	TradesThisRound int
}

// Ledger owns every player record, in join order.
type Ledger struct {
	order   []string
	players map[string]*Player
}

func newLedger() *Ledger {
	return &Ledger{players: make(map[string]*Player)}
}

// add seats a new player. A name already seated is left untouched.
func (l *Ledger) add(name string, balance int64) (*Player, bool) {
	if p, ok := l.players[name]; ok {
		return p, false
	}
	p := &Player{Name: name, Balance: balance}
	l.players[name] = p
	l.order = append(l.order, name)
	return p, true
}

func (l *Ledger) get(name string) (*Player, error) {
	p, ok := l.players[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlayer, name)
	}
	return p, nil
}

func (l *Ledger) len() int { return len(l.order) }

func (l *Ledger) at(i int) *Player { return l.players[l.order[i]] }

func (l *Ledger) each(fn func(p *Player)) {
	for _, name := range l.order {
		fn(l.players[name])
	}
}

func (l *Ledger) names() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

func (l *Ledger) resetTradeCounts() {
	l.each(func(p *Player) { p.TradesThisRound = 0 })
}

// accrueInterest compounds every open loan by ratePct, rounding down.
func (l *Ledger) accrueInterest(ratePct int64) {
	l.each(func(p *Player) {
		if p.Bankrupt || p.Loan <= 0 {
			return
		}
		p.Loan += p.Loan * ratePct / 100
	})
}

// HoldingsValue prices the player's shares at the given prices.
func (p *Player) HoldingsValue(prices [numCommodities]int64) int64 {
	var total int64
	for _, c := range Commodities {
		total += p.Holdings[c] * prices[c]
	}
	return total
}

// Assets is balance plus holdings value, the amount a forced liquidation raises.
func (p *Player) Assets(prices [numCommodities]int64) int64 {
	return p.Balance + p.HoldingsValue(prices)
}

func (p *Player) NetWorth(prices [numCommodities]int64) int64 {
	return p.Assets(prices) - p.Loan
}
