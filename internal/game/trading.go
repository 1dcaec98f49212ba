package game

import "fmt"

// Buy purchases qty shares for name, borrowing the shortfall against the
// margin ceiling when cash alone does not cover the cost.
func (g *Game) Buy(name string, c Commodity, qty int64) (Receipt, error) {
	// Every call counts, refused or not.
	g.tradeAttempts++
	p, err := g.tradeTarget(name, c, qty)
	if err != nil {
		return Receipt{}, err
	}

	price := g.market.Price(c)
	cost := price * qty
	out := Receipt{Player: name, Commodity: c.String(), Quantity: qty, Price: price, Amount: cost}

	if p.Balance >= cost {
		p.Balance -= cost
		out.Message = "Bought successfully"
	} else {
		shortfall := cost - p.Balance
		// loan + shortfall <= ratio*(assets) - loan, kept in integers.
		if 100*(2*p.Loan+shortfall) > g.rules.MarginRatioPct*p.Assets(g.market.Prices()) {
			return Receipt{}, fmt.Errorf("%w: need %d, margin left %d", ErrInsufficientFunds, shortfall, max(0, g.maxLoan(p)-p.Loan))
		}
		p.Loan += shortfall
		p.Balance = 0
		out.Borrowed = shortfall
		out.Message = fmt.Sprintf("Bought on margin (borrowed £%d)", shortfall)
	}

	p.Holdings[c] += qty
	p.TradesThisRound++
	g.market.recordBuy(c, qty)
	out.Balance, out.Loan = p.Balance, p.Loan
	return out, nil
}

// Sell disposes of qty shares. Proceeds pay off an open loan only when they
// cover it in full; a smaller sale leaves the loan untouched.
func (g *Game) Sell(name string, c Commodity, qty int64) (Receipt, error) {
	g.tradeAttempts++
	p, err := g.tradeTarget(name, c, qty)
	if err != nil {
		return Receipt{}, err
	}

	if p.Holdings[c] < qty {
		return Receipt{}, fmt.Errorf("%w: hold %d %s, tried to sell %d", ErrInsufficientShares, p.Holdings[c], c, qty)
	}

	price := g.market.Price(c)
	proceeds := price * qty
	p.Holdings[c] -= qty
	p.Balance += proceeds
	p.TradesThisRound++
	g.market.recordSell(c, qty)

	out := Receipt{Player: name, Commodity: c.String(), Quantity: qty, Price: price, Amount: proceeds}
	switch {
	case p.Loan == 0:
		out.Message = "Sold successfully"
	case proceeds >= p.Loan:
		out.Repaid = p.Loan
		p.Balance -= p.Loan
		p.Loan = 0
		out.Message = fmt.Sprintf("Sold successfully. Bank loan of £%d repaid", out.Repaid)
	default:
		out.Message = "Sold successfully. You need more cash to repay the bank"
	}
	out.Balance, out.Loan = p.Balance, p.Loan
	return out, nil
}

// RepayLoan pays down the loan from cash. amount <= 0 repays as much as the
// balance allows.
func (g *Game) RepayLoan(name string, amount int64) (Receipt, error) {
	p, err := g.ledger.get(name)
	if err != nil {
		return Receipt{}, err
	}
	if p.Loan <= 0 {
		return Receipt{}, ErrNoLoan
	}
	if amount <= 0 {
		amount = min(p.Loan, p.Balance)
	}
	if amount > p.Balance {
		return Receipt{}, fmt.Errorf("%w: cannot repay £%d from a balance of £%d", ErrInsufficientFunds, amount, p.Balance)
	}
	amount = min(amount, p.Loan)

	p.Balance -= amount
	p.Loan -= amount

	out := Receipt{Player: name, Amount: amount, Repaid: amount, Balance: p.Balance, Loan: p.Loan}
	if p.Loan == 0 {
		out.Message = fmt.Sprintf("Loan fully repaid (£%d)", amount)
	} else {
		out.Message = fmt.Sprintf("Partial loan repayment (£%d). Remaining: £%d", amount, p.Loan)
	}
	return out, nil
}

func (g *Game) tradeTarget(name string, c Commodity, qty int64) (*Player, error) {
	p, err := g.ledger.get(name)
	if err != nil {
		return nil, err
	}
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCommodity, int(c))
	}
	if qty <= 0 || qty > MaxQuantity {
		return nil, ErrInvalidQuantity
	}
	if p.Bankrupt {
		return nil, ErrBankrupt
	}
	return p, nil
}
