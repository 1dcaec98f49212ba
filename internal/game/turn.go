package game

import (
	"fmt"
	"sort"
)

// EndTurn passes play to the next solvent player. When rotation wraps back to
// the start of the order the round closes: interest accrues, volumes reset and
// the round news and price step run. Bankruptcy is evaluated on every call.
func (g *Game) EndTurn() TurnResult {
	n := g.ledger.len()
	if n == 0 {
		return TurnResult{Phase: g.phase}
	}
	g.phase = PhaseTurnEnding

	next, wrapped, ok := g.nextSolvent()
	if !ok {
		g.phase = PhaseGameOver
		return TurnResult{
			Winners:     []string{AllBankruptResult},
			RoundEnd:    true,
			AllBankrupt: true,
			Phase:       g.phase,
		}
	}
	g.current = next
	g.turn++

	var out TurnResult
	if wrapped {
		g.phase = PhaseRoundClosing
		out.RoundEnd = true
		out.News = g.closeRound()
	}

	if msgs := g.evaluateBankruptcy(); len(msgs) > 0 {
		out.News = append(out.News, msgs...)
	}

	out.Winners = g.CheckMillionaires()
	if g.allBankrupt() {
		// The liquidation pass above took out every remaining player.
		out.Winners = []string{AllBankruptResult}
		out.AllBankrupt = true
	}
	if len(out.Winners) > 0 {
		g.phase = PhaseGameOver
	} else {
		g.phase = PhaseAwaitingAction
	}
	out.Phase = g.phase
	return out
}

// nextSolvent walks the order from the current seat and reports the next
// non-bankrupt index and whether the walk passed the end of the order.
func (g *Game) nextSolvent() (idx int, wrapped bool, ok bool) {
	n := g.ledger.len()
	idx = g.current
	for range n {
		idx++
		if idx >= n {
			idx = 0
			wrapped = true
		}
		if !g.ledger.at(idx).Bankrupt {
			return idx, wrapped, true
		}
	}
	return g.current, false, false
}

// closeRound runs the round boundary. The closing round's volumes feed the
// price step inside roundNews and are cleared once it has run.
func (g *Game) closeRound() []string {
	g.round++
	g.market.snapshotPrices()
	g.market.clearSuspensions()
	g.ledger.accrueInterest(g.rules.InterestRatePct)
	g.ledger.resetTradeCounts()
	g.flashThisRound = 0
	news := g.roundNews()
	g.market.resetVolumes()
	return news
}

// evaluateBankruptcy force-liquidates any player whose loan exceeds their
// assets and marks them bankrupt when the sale cannot clear the debt.
func (g *Game) evaluateBankruptcy() []string {
	var msgs []string
	prices := g.market.Prices()
	g.ledger.each(func(p *Player) {
		if p.Bankrupt || p.Loan <= p.Assets(prices) {
			return
		}
		for _, c := range Commodities {
			if qty := p.Holdings[c]; qty > 0 {
				p.Balance += qty * prices[c]
				g.market.recordSell(c, qty)
				p.Holdings[c] = 0
			}
		}
		if p.Balance >= p.Loan {
			p.Balance -= p.Loan
			p.Loan = 0
			msgs = append(msgs, fmt.Sprintf("%s: forced liquidation completed, loan repaid", p.Name))
			return
		}
		p.Balance = 0
		p.Loan = 0
		p.Bankrupt = true
		msgs = append(msgs, fmt.Sprintf("%s IS BANKRUPT!", p.Name))
	})
	return msgs
}

func (g *Game) allBankrupt() bool {
	all := true
	g.ledger.each(func(p *Player) {
		if !p.Bankrupt {
			all = false
		}
	})
	return all
}

// CheckMillionaires lists solvent players whose net worth reached the target.
func (g *Game) CheckMillionaires() []string {
	var out []string
	prices := g.market.Prices()
	g.ledger.each(func(p *Player) {
		if !p.Bankrupt && p.NetWorth(prices) >= g.target {
			out = append(out, p.Name)
		}
	})
	return out
}

// CheckLastPlayerStanding returns the only solvent player, if exactly one remains.
func (g *Game) CheckLastPlayerStanding() (string, bool) {
	var solvent []string
	g.ledger.each(func(p *Player) {
		if !p.Bankrupt {
			solvent = append(solvent, p.Name)
		}
	})
	if len(solvent) != 1 {
		return "", false
	}
	return solvent[0], true
}

// FinalScores ranks every player, bankrupt included, by net worth.
func (g *Game) FinalScores() []ScoreRow {
	prices := g.market.Prices()
	divisor := int64(max(1, g.round+g.difficulty*5))
	rows := make([]ScoreRow, 0, g.ledger.len())
	g.ledger.each(func(p *Player) {
		nw := p.NetWorth(prices)
		rows = append(rows, ScoreRow{
			Name:     p.Name,
			NetWorth: nw,
			Profit:   nw - g.rules.InitialBalance,
			Score:    nw / divisor,
			Bankrupt: p.Bankrupt,
		})
	})
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].NetWorth > rows[j].NetWorth })
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}
