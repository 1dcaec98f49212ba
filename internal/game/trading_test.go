package game

import (
	"errors"
	"testing"
)

func TestBuySellScenario(t *testing.T) {
	g := newTestGame(t, nil, "A")

	r, err := g.Buy("A", Lead, 40)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if r.Amount != 400 || r.Borrowed != 0 {
		t.Fatalf("receipt=%+v", r)
	}
	p := mustPlayer(t, g, "A")
	if p.Balance != 600 || p.Holdings[Lead] != 40 {
		t.Fatalf("after buy: balance=%d lead=%d", p.Balance, p.Holdings[Lead])
	}

	if _, err := g.Sell("A", Lead, 20); err != nil {
		t.Fatalf("sell: %v", err)
	}
	p = mustPlayer(t, g, "A")
	if p.Balance != 800 || p.Holdings[Lead] != 20 {
		t.Fatalf("after sell: balance=%d lead=%d", p.Balance, p.Holdings[Lead])
	}
	if p.TradesThisRound != 2 || g.TradeAttempts() != 2 {
		t.Fatalf("trades=%d attempts=%d", p.TradesThisRound, g.TradeAttempts())
	}
}

func TestBuyOnMargin(t *testing.T) {
	g := newTestGame(t, nil, "A")

	// 1500 cost, 500 short: 2*(0+500) <= 1000 sits exactly on the ceiling.
	r, err := g.Buy("A", Lead, 150)
	if err != nil {
		t.Fatalf("margin buy: %v", err)
	}
	if r.Borrowed != 500 {
		t.Fatalf("borrowed=%d want 500", r.Borrowed)
	}
	p := mustPlayer(t, g, "A")
	if p.Balance != 0 || p.Loan != 500 || p.Holdings[Lead] != 150 {
		t.Fatalf("after margin buy: %+v", p)
	}
}

func TestBuyAboveMarginCeilingLeavesStateUnchanged(t *testing.T) {
	g := newTestGame(t, nil, "A")
	before := mustPlayer(t, g, "A")

	_, err := g.Buy("A", Lead, 151)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	after := mustPlayer(t, g, "A")
	if after != before {
		t.Fatalf("state changed: before=%+v after=%+v", before, after)
	}
	if g.TradeAttempts() != 1 {
		t.Fatalf("failed attempt not counted: %d", g.TradeAttempts())
	}
	if g.market.buys[Lead] != 0 {
		t.Fatalf("failed buy recorded volume %d", g.market.buys[Lead])
	}
}

func TestMarginCountsExistingLoanTwice(t *testing.T) {
	g := newTestGame(t, nil, "A")
	if _, err := g.Buy("A", Lead, 120); err != nil { // loan 200, holdings 1200
		t.Fatalf("first buy: %v", err)
	}
	// assets 1200, loan 200: 200+s <= 0.5*1200-200 allows s <= 200.
	if _, err := g.Buy("A", Lead, 21); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ceiling failure, got %v", err)
	}
	if _, err := g.Buy("A", Lead, 20); err != nil {
		t.Fatalf("buy at ceiling: %v", err)
	}
	if p := mustPlayer(t, g, "A"); p.Loan != 400 {
		t.Fatalf("loan=%d want 400", p.Loan)
	}
}

func TestTradeValidation(t *testing.T) {
	g := newTestGame(t, nil, "A")
	tests := []struct {
		name string
		fn   func() error
		want error
	}{
		{name: "unknown player", fn: func() error { _, err := g.Buy("Z", Lead, 1); return err }, want: ErrUnknownPlayer},
		{name: "zero qty", fn: func() error { _, err := g.Buy("A", Lead, 0); return err }, want: ErrInvalidQuantity},
		{name: "negative qty", fn: func() error { _, err := g.Sell("A", Lead, -3); return err }, want: ErrInvalidQuantity},
		{name: "bad commodity", fn: func() error { _, err := g.Buy("A", Commodity(9), 1); return err }, want: ErrUnknownCommodity},
		{name: "oversell", fn: func() error { _, err := g.Sell("A", Gold, 1); return err }, want: ErrInsufficientShares},
	}
	for _, tc := range tests {
		if err := tc.fn(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, err, tc.want)
		}
	}
}

func TestBankruptCannotTrade(t *testing.T) {
	g := newTestGame(t, nil, "A")
	g.ledger.players["A"].Bankrupt = true

	if _, err := g.Buy("A", Lead, 1); !errors.Is(err, ErrBankrupt) {
		t.Fatalf("buy: expected ErrBankrupt, got %v", err)
	}
	if _, err := g.Sell("A", Lead, 1); !errors.Is(err, ErrBankrupt) {
		t.Fatalf("sell: expected ErrBankrupt, got %v", err)
	}
	if g.TradeAttempts() != 2 {
		t.Fatalf("bankrupt attempts not counted: %d", g.TradeAttempts())
	}
}

func TestSellRepaysLoanOnlyInFull(t *testing.T) {
	g := newTestGame(t, nil, "A")
	if _, err := g.Buy("A", Lead, 150); err != nil { // loan 500
		t.Fatalf("buy: %v", err)
	}

	r, err := g.Sell("A", Lead, 10)
	if err != nil {
		t.Fatalf("partial sell: %v", err)
	}
	if r.Repaid != 0 || r.Loan != 500 || r.Balance != 100 {
		t.Fatalf("partial sale touched loan: %+v", r)
	}
	if r.Message != "Sold successfully. You need more cash to repay the bank" {
		t.Fatalf("message=%q", r.Message)
	}

	r, err = g.Sell("A", Lead, 50)
	if err != nil {
		t.Fatalf("full sell: %v", err)
	}
	if r.Repaid != 500 || r.Loan != 0 || r.Balance != 100 {
		t.Fatalf("full payoff receipt: %+v", r)
	}
}

func TestRepayLoan(t *testing.T) {
	g := newTestGame(t, nil, "A")

	if _, err := g.RepayLoan("A", 0); !errors.Is(err, ErrNoLoan) {
		t.Fatalf("expected ErrNoLoan, got %v", err)
	}

	p := g.ledger.players["A"]
	p.Loan = 300
	p.Balance = 200

	if _, err := g.RepayLoan("A", 250); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if p.Loan != 300 || p.Balance != 200 {
		t.Fatalf("failed repay changed state: loan=%d balance=%d", p.Loan, p.Balance)
	}

	r, err := g.RepayLoan("A", 150)
	if err != nil {
		t.Fatalf("partial repay: %v", err)
	}
	if r.Loan != 150 || r.Balance != 50 {
		t.Fatalf("partial repay receipt: %+v", r)
	}

	r, err = g.RepayLoan("A", 0)
	if err != nil {
		t.Fatalf("default repay: %v", err)
	}
	if r.Repaid != 50 || r.Loan != 100 || r.Balance != 0 {
		t.Fatalf("default repay receipt: %+v", r)
	}

	p.Balance = 1000
	r, err = g.RepayLoan("A", 400)
	if err != nil {
		t.Fatalf("clamped repay: %v", err)
	}
	if r.Repaid != 100 || r.Loan != 0 || r.Balance != 900 {
		t.Fatalf("clamped repay receipt: %+v", r)
	}
	if r.Message != "Loan fully repaid (£100)" {
		t.Fatalf("message=%q", r.Message)
	}
}

func TestMaxLoan(t *testing.T) {
	g := newTestGame(t, nil, "A")
	got, err := g.MaxLoan("A")
	if err != nil {
		t.Fatalf("max loan: %v", err)
	}
	if got != 500 {
		t.Fatalf("max loan=%d want 500", got)
	}
}
