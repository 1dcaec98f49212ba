package game

import "fmt"

const newsflashHeader = "!! NEWSFLASH !!"

type flashKind int

const (
	flashWeakMarket flashKind = iota
	flashTaxAudit
	flashInvestigation
	flashBonusIssue
	flashTaxRefund
)

// flashChance is the probability any newsflash fires. It decays as the game
// sees more trade attempts, bottoming out at 20%.
func flashChance(attempts int) float64 {
	return max(0.2, 0.9/(1+float64(attempts)/25))
}

// GenerateFlashNews may fire one mid-turn newsflash. It returns nil when the
// cooldown has not elapsed or the roll decides nothing happens.
func (g *Game) GenerateFlashNews() []string {
	now := g.now()
	if !g.lastFlash.IsZero() && now.Sub(g.lastFlash) < g.rules.FlashCooldown {
		return nil
	}
	g.lastFlash = now

	if g.rand.Float64() < float64(g.flashThisRound)*0.2 {
		return nil
	}
	if g.rand.Float64() >= flashChance(g.tradeAttempts) {
		return nil
	}
	g.flashThisRound++

	var actor *Player
	if name, ok := g.CurrentPlayer(); ok {
		actor = g.ledger.players[name]
	}
	trades := 0
	if actor != nil {
		trades = actor.TradesThisRound
	}

	news := []string{newsflashHeader}
	switch g.pickFlash(trades) {
	case flashWeakMarket:
		news = append(news, "MARKET VERY WEAK")
	case flashTaxAudit:
		news = append(news, g.taxAudit(actor, trades)...)
	case flashInvestigation:
		news = append(news, "TRADING PRACTICES UNDER SUSPICION", "TAX OFFICIALS INVESTIGATE")
	case flashBonusIssue:
		news = append(news, g.bonusIssue()...)
	case flashTaxRefund:
		news = append(news, g.taxRefund(actor)...)
	}
	return news
}

// pickFlash rolls the weighted outcome table. Busy traders draw the tax man.
func (g *Game) pickFlash(trades int) flashKind {
	weights := [...]int{
		flashWeakMarket:    2,
		flashTaxAudit:      1 + min(trades, 6),
		flashInvestigation: 1,
		flashBonusIssue:    2,
		flashTaxRefund:     3,
	}
	total := 0
	for _, w := range weights {
		total += w
	}
	roll := g.rand.Intn(total)
	for kind, w := range weights {
		if roll < w {
			return flashKind(kind)
		}
		roll -= w
	}
	return flashTaxRefund
}

func (g *Game) taxAudit(actor *Player, trades int) []string {
	lines := []string{"CAPITAL GAINS TAX INVESTIGATIONS"}
	if g.rand.Intn(10) == 0 {
		return append(lines, "TAX OFFICE RELENTS !...NO TAX DEMAND")
	}
	rate := 10 * int64(between(g.rand, 1, min(9, 1+trades)))
	lines = append(lines, fmt.Sprintf("DEMAND OF %d%% OF BANK BALANCE", rate))
	if actor != nil {
		tax := actor.Balance * rate / 100
		actor.Balance = max(0, actor.Balance-tax)
	}
	return lines
}

func (g *Game) taxRefund(actor *Player) []string {
	lines := []string{"TAX .. REFUND"}
	r := g.rand.Intn(10)
	if r == 0 {
		return append(lines, "ERROR IN TAX OFFICE ! NO REFUND")
	}
	lines = append(lines, fmt.Sprintf("REFUND = %d%% OF BANK BALANCE", 10*r))
	if actor != nil {
		actor.Balance += actor.Balance * int64(10*r) / 100
	}
	return lines
}

// bonusIssue hands every holder one share for every two held.
func (g *Game) bonusIssue() []string {
	c := Commodities[g.rand.Intn(len(Commodities))]
	g.ledger.each(func(p *Player) {
		p.Holdings[c] += p.Holdings[c] / 2
	})
	g.market.markBonusIssue(c)
	return []string{
		fmt.Sprintf("%s SHARES BONUS ISSUE OF 1 SHARE", c),
		"FOR EVERY TWO SHARES HELD",
	}
}

// roundNews runs the end-of-round event pass and the price step.
func (g *Game) roundNews() []string {
	var news []string

	if !g.market.anySuspended() && g.rand.Intn(10) < 2 {
		c := Commodities[g.rand.Intn(len(Commodities))]
		g.market.suspended[c] = between(g.rand, 1, 3)
		news = append(news, fmt.Sprintf("%s MARKET DEALINGS SUSPENDED", c))
	}

	if g.rand.Intn(10) < 3 {
		c := g.pickExcluding(g.lastBonusPay, g.hasBonusPay)
		g.lastBonusPay, g.hasBonusPay = c, true
		news = append(news, g.bonusPayment(c)...)
	}

	if g.rand.Intn(10) < 2 {
		c := g.pickExcluding(g.lastSplit, g.hasSplit)
		g.lastSplit, g.hasSplit = c, true
		news = append(news, g.shareSplit(c)...)
	}

	for _, c := range g.market.tickSuspensions() {
		news = append(news, fmt.Sprintf("%s MARKET DEALINGS RESUMED", c))
	}

	g.market.updatePrices(g.rand, g.outstanding(), g.difficulty)

	for _, c := range Commodities {
		if g.market.Suspended(c) {
			continue
		}
		before, after := g.market.lastPrices[c], g.market.prices[c]
		switch {
		case after > before:
			news = append(news, fmt.Sprintf("%s UP BY £%d", c, after-before))
		case after < before:
			news = append(news, fmt.Sprintf("%s DOWN BY £%d", c, before-after))
		}
	}
	return news
}

func (g *Game) pickExcluding(last Commodity, has bool) Commodity {
	if !has {
		return Commodities[g.rand.Intn(len(Commodities))]
	}
	pool := make([]Commodity, 0, len(Commodities)-1)
	for _, c := range Commodities {
		if c != last {
			pool = append(pool, c)
		}
	}
	return pool[g.rand.Intn(len(pool))]
}

// bonusPayment pays holders a cash dividend of 10-50% of their position value.
func (g *Game) bonusPayment(c Commodity) []string {
	rate := 10 * int64(between(g.rand, 1, 5))
	price := g.market.Price(c)
	g.ledger.each(func(p *Player) {
		if p.Bankrupt || p.Holdings[c] <= 0 {
			return
		}
		p.Balance += p.Holdings[c] * price * rate / 100
	})
	return []string{
		fmt.Sprintf("BONUS PAYMENT TO ALL %s SHAREHOLDERS", c),
		fmt.Sprintf("PAYMENT = %d%% OF SHARE VALUE", rate),
	}
}

func (g *Game) shareSplit(c Commodity) []string {
	g.ledger.each(func(p *Player) {
		if !p.Bankrupt {
			p.Holdings[c] *= 2
		}
	})
	g.market.split(c)
	return []string{
		fmt.Sprintf("%s SHARES SPLIT", c),
		"TWO FOR EVERY ONE HELD",
	}
}
