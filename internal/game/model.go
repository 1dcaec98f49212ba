package game

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	InitialBalance    = int64(1_000)
	DefaultTarget     = int64(1_000_000)
	DefaultDifficulty = 1

	InterestRatePct = int64(10)
	MarginRatioPct  = int64(50)

	FlashCooldown = 5 * time.Second

	MaxQuantity = int64(1_000_000_000)

	// AllBankruptResult is reported as the sole winner entry when nobody is left.
	AllBankruptResult = "GAME OVER - ALL BANKRUPT"

	historyDepth = 3
)

var (
	ErrBankrupt           = errors.New("cannot trade - you are bankrupt")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("not enough shares")
	ErrNoLoan             = errors.New("no loan to repay")
	ErrUnknownPlayer      = errors.New("unknown player")
	ErrUnknownCommodity   = errors.New("unknown commodity")
	ErrInvalidQuantity    = errors.New("quantity must be between 1 and 1000000000")
)

// Commodity indexes the fixed, ordered set of tradable instruments.
type Commodity int

const (
	Lead Commodity = iota
	Zinc
	Tin
	Gold
	numCommodities
)

// Commodities lists every commodity in board order.
var Commodities = [numCommodities]Commodity{Lead, Zinc, Tin, Gold}

type commoditySpec struct {
	Symbol  string
	Initial int64
	Min     int64
	Step    int64
}

var commoditySpecs = [numCommodities]commoditySpec{
	Lead: {Symbol: "LEAD", Initial: 10, Min: 1, Step: 1},
	Zinc: {Symbol: "ZINC", Initial: 50, Min: 5, Step: 5},
	Tin:  {Symbol: "TIN", Initial: 250, Min: 25, Step: 25},
	Gold: {Symbol: "GOLD", Initial: 1250, Min: 125, Step: 125},
}

func (c Commodity) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Commodity(%d)", int(c))
	}
	return commoditySpecs[c].Symbol
}

func (c Commodity) Valid() bool {
	return c >= 0 && c < numCommodities
}

func (c Commodity) InitialPrice() int64 { return commoditySpecs[c].Initial }
func (c Commodity) MinPrice() int64     { return commoditySpecs[c].Min }
func (c Commodity) MaxPrice() int64     { return 2 * commoditySpecs[c].Initial }
func (c Commodity) Step() int64         { return commoditySpecs[c].Step }

// ParseCommodity accepts a symbol in any case, e.g. "lead" or "GOLD".
func ParseCommodity(symbol string) (Commodity, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, c := range Commodities {
		if commoditySpecs[c].Symbol == symbol {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCommodity, symbol)
}

// Phase is the turn scheduler state.
type Phase string

const (
	PhaseAwaitingAction Phase = "awaiting_action"
	PhaseTurnEnding     Phase = "turn_ending"
	PhaseRoundClosing   Phase = "round_closing"
	PhaseGameOver       Phase = "game_over"
)

// Rules are the tunable economic constants of a game.
type Rules struct {
	InitialBalance    int64         `yaml:"initial_balance" json:"initial_balance"`
	DefaultTarget     int64         `yaml:"default_target" json:"default_target"`
	DefaultDifficulty int           `yaml:"default_difficulty" json:"default_difficulty"`
	InterestRatePct   int64         `yaml:"interest_rate_pct" json:"interest_rate_pct"`
	MarginRatioPct    int64         `yaml:"margin_ratio_pct" json:"margin_ratio_pct"`
	FlashCooldown     time.Duration `yaml:"flash_cooldown" json:"flash_cooldown"`
}

func DefaultRules() Rules {
	return Rules{
		InitialBalance:    InitialBalance,
		DefaultTarget:     DefaultTarget,
		DefaultDifficulty: DefaultDifficulty,
		InterestRatePct:   InterestRatePct,
		MarginRatioPct:    MarginRatioPct,
		FlashCooldown:     FlashCooldown,
	}
}

// WithDefaults fills zero fields from DefaultRules.
func (r Rules) WithDefaults() Rules {
	d := DefaultRules()
	if r.InitialBalance <= 0 {
		r.InitialBalance = d.InitialBalance
	}
	if r.DefaultTarget <= 0 {
		r.DefaultTarget = d.DefaultTarget
	}
	if r.DefaultDifficulty <= 0 {
		r.DefaultDifficulty = d.DefaultDifficulty
	}
	if r.InterestRatePct <= 0 {
		r.InterestRatePct = d.InterestRatePct
	}
	if r.MarginRatioPct <= 0 {
		r.MarginRatioPct = d.MarginRatioPct
	}
	if r.FlashCooldown <= 0 {
		r.FlashCooldown = d.FlashCooldown
	}
	return r
}

func ValidatePlayerName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("player name is required")
	}
	if len(name) > 32 {
		return fmt.Errorf("player name must be at most 32 characters")
	}
	return nil
}
