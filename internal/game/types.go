package game

type Snapshot struct {
	Round         int             `json:"round"`
	Turn          int             `json:"turn"`
	Difficulty    int             `json:"difficulty"`
	Target        int64           `json:"target"`
	Phase         Phase           `json:"phase"`
	CurrentPlayer string          `json:"current_player"`
	Market        []CommodityView `json:"market"`
	Players       []PlayerView    `json:"players"`
}

type CommodityView struct {
	Symbol    string `json:"symbol"`
	Price     int64  `json:"price"`
	LastPrice int64  `json:"last_price"`
	MinPrice  int64  `json:"min_price"`
	MaxPrice  int64  `json:"max_price"`
	Suspended bool   `json:"suspended"`
}

type PlayerView struct {
	Name            string           `json:"name"`
	Balance         int64            `json:"balance"`
	Holdings        map[string]int64 `json:"holdings"`
	Loan            int64            `json:"loan"`
	Bankrupt        bool             `json:"bankrupt"`
	TradesThisRound int              `json:"trades_this_round"`
	NetWorth        int64            `json:"net_worth"`
}

// Receipt describes a committed trade or repayment.
type Receipt struct {
	Player    string `json:"player"`
	Commodity string `json:"commodity,omitempty"`
	Quantity  int64  `json:"quantity,omitempty"`
	Price     int64  `json:"price,omitempty"`
	Amount    int64  `json:"amount"`
	Borrowed  int64  `json:"borrowed,omitempty"`
	Repaid    int64  `json:"repaid,omitempty"`
	Balance   int64  `json:"balance"`
	Loan      int64  `json:"loan"`
	Message   string `json:"message"`
}

type TurnResult struct {
	Winners     []string `json:"winners"`
	News        []string `json:"news"`
	RoundEnd    bool     `json:"round_end"`
	AllBankrupt bool     `json:"all_bankrupt"`
	Phase       Phase    `json:"phase"`
}

type ScoreRow struct {
	Rank     int    `json:"rank"`
	Name     string `json:"name"`
	NetWorth int64  `json:"net_worth"`
	Profit   int64  `json:"profit"`
	Score    int64  `json:"score"`
	Bankrupt bool   `json:"bankrupt"`
}
