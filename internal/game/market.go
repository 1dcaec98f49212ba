package game

import "math"

// Market holds per-commodity price state, round volumes and momentum history.
type Market struct {
	prices     [numCommodities]int64
	lastPrices [numCommodities]int64
	buys       [numCommodities]int64
	sells      [numCommodities]int64
	history    [numCommodities][]float64
	suspended  [numCommodities]int
	// bonusBase is the pre-issue price of a commodity whose holdings were just
	// inflated by a bonus issue; zero when nothing is pending.
	bonusBase [numCommodities]int64
}

func newMarket() *Market {
	m := &Market{}
	for _, c := range Commodities {
		m.prices[c] = c.InitialPrice()
	}
	m.lastPrices = m.prices
	return m
}

func (m *Market) Price(c Commodity) int64 { return m.prices[c] }

func (m *Market) Prices() [numCommodities]int64 { return m.prices }

func (m *Market) recordBuy(c Commodity, qty int64)  { m.buys[c] += qty }
func (m *Market) recordSell(c Commodity, qty int64) { m.sells[c] += qty }

func (m *Market) resetVolumes() {
	m.buys = [numCommodities]int64{}
	m.sells = [numCommodities]int64{}
}

func (m *Market) snapshotPrices() { m.lastPrices = m.prices }

func (m *Market) Suspended(c Commodity) bool { return m.suspended[c] > 0 }

func (m *Market) anySuspended() bool {
	for _, c := range Commodities {
		if m.suspended[c] > 0 {
			return true
		}
	}
	return false
}

func (m *Market) clearSuspensions() { m.suspended = [numCommodities]int{} }

// tickSuspensions decrements every suspension and returns the commodities lifted.
func (m *Market) tickSuspensions() []Commodity {
	var lifted []Commodity
	for _, c := range Commodities {
		if m.suspended[c] == 0 {
			continue
		}
		m.suspended[c]--
		if m.suspended[c] <= 0 {
			m.suspended[c] = 0
			lifted = append(lifted, c)
		}
	}
	return lifted
}

// split doubles the share count by halving the price, never below the floor.
func (m *Market) split(c Commodity) {
	m.prices[c] = max(c.MinPrice(), m.prices[c]/2)
}

func (m *Market) markBonusIssue(c Commodity) {
	if m.bonusBase[c] == 0 {
		m.bonusBase[c] = m.prices[c]
	}
}

func (m *Market) pushPressure(c Commodity, p float64) {
	h := append(m.history[c], p)
	if len(h) > historyDepth {
		h = h[len(h)-historyDepth:]
	}
	m.history[c] = h
}

func (m *Market) momentum(c Commodity) float64 {
	h := m.history[c]
	if len(h) == 0 {
		return 0
	}
	var sum float64
	for _, p := range h {
		sum += p
	}
	return sum / float64(len(h))
}

// updatePrices runs the end-of-round price step for every commodity.
// outstanding is the total number of shares held across all players.
func (m *Market) updatePrices(r Rand, outstanding [numCommodities]int64, difficulty int) {
	for _, c := range Commodities {
		m.prices[c] = m.evolve(r, c, outstanding[c], difficulty)
	}
}

func (m *Market) evolve(r Rand, c Commodity, outstanding int64, difficulty int) int64 {
	price := m.prices[c]
	if m.Suspended(c) {
		return price
	}

	var next int64
	if base := m.bonusBase[c]; base > 0 {
		m.bonusBase[c] = 0
		next = price
		if target := base / 2; price > target {
			gap := float64(price - target)
			next = price - int64(math.Ceil(gap*(0.5+0.5*r.Float64())))
		}
	} else {
		next = price + m.volumeMove(r, c, price, outstanding, difficulty)
	}

	next = clampPrice(c, next)
	if next == price {
		next = m.nudge(r, c, price)
	}
	return next
}

// volumeMove derives a quantized price change from this round's order flow.
func (m *Market) volumeMove(r Rand, c Commodity, price, outstanding int64, difficulty int) int64 {
	step := float64(c.Step())
	buy, sell := m.buys[c], m.sells[c]
	total := buy + sell
	traded := total > 0

	var pressure, magnitude float64
	if traded {
		base := max(outstanding, total)
		buyPct := 100 * float64(buy) / float64(base)
		sellPct := 100 * float64(sell) / float64(base)
		pressure = (buyPct - sellPct) / (buyPct + sellPct)
		activity := math.Min(1, (buyPct+sellPct)/100)
		magnitude = 1 + 2*activity*math.Abs(pressure)
		m.pushPressure(c, pressure)
	}

	delta := step*pressure*magnitude + step*0.5*m.momentum(c)
	if traded {
		delta += step * spread(r, 0.5)
	} else {
		delta += step * spread(r, 1.5)
	}

	if traded {
		floor := math.Max(1, 0.05*float64(price))
		if math.Abs(delta) < floor {
			delta = floor * direction(r, pressure, delta)
		}
	}

	if difficulty >= 2 {
		delta *= 1 + 0.5*float64(difficulty-1)
	}

	steps := math.Round(delta / step)
	if traded && steps == 0 {
		steps = direction(r, pressure, delta)
	}
	return int64(steps) * c.Step()
}

// nudge moves a price that came out unchanged by one step, following momentum
// when there is any and picking a side at random otherwise.
func (m *Market) nudge(r Rand, c Commodity, price int64) int64 {
	dir := int64(direction(r, m.momentum(c), 0))
	next := clampPrice(c, price+dir*c.Step())
	if next == price {
		next = clampPrice(c, price-dir*c.Step())
	}
	return next
}

func direction(r Rand, preferred, fallback float64) float64 {
	switch {
	case preferred > 0:
		return 1
	case preferred < 0:
		return -1
	case fallback > 0:
		return 1
	case fallback < 0:
		return -1
	case r.Intn(2) == 0:
		return -1
	default:
		return 1
	}
}

func clampPrice(c Commodity, p int64) int64 {
	return min(max(p, c.MinPrice()), c.MaxPrice())
}
