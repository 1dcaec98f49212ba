package main

import (
	"fmt"
	"time"

	"stockmarket/internal/config"
	"stockmarket/internal/game"

	"github.com/spf13/cobra"
)

type simOptions struct {
	Players    int
	Seed       int64
	Rounds     int
	Difficulty int
	Target     int64
	Rules      game.Rules
}

type simReport struct {
	Seed    int64
	Rounds  int
	Trades  int
	Reason  string
	Winners []string
	Flashes int
	Scores  []game.ScoreRow
}

func newSimCmd() *cobra.Command {
	var (
		opts      simOptions
		rulesPath string
		verbose   bool
	)
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Play a seeded game between bots on the local engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Players < 1 {
				return fmt.Errorf("--players must be at least 1")
			}
			if rulesPath != "" {
				rules, err := config.LoadRules(rulesPath)
				if err != nil {
					return err
				}
				opts.Rules = rules
			}
			if opts.Seed == 0 {
				opts.Seed = time.Now().UnixNano()
			}
			var logf func(string)
			if verbose {
				logf = printInfo
			}
			rep := runSim(opts, logf)

			accent.Printf("\n== SIMULATION (seed %d) ==\n", rep.Seed)
			fmt.Printf("Rounds played: %d   Trades: %d   Newsflashes: %d\n", rep.Rounds, rep.Trades, rep.Flashes)
			switch rep.Reason {
			case "winners", "last_standing":
				printSuccess(fmt.Sprintf("Winner(s): %v (%s)", rep.Winners, rep.Reason))
			case "all_bankrupt":
				printError(game.AllBankruptResult)
			default:
				printWarn("Round limit reached with no winner.")
			}
			renderScoreRows(rep.Scores)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Players, "players", 3, "number of bots")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "random seed (default from the clock)")
	cmd.Flags().IntVar(&opts.Rounds, "rounds", 50, "stop after this many rounds")
	cmd.Flags().IntVar(&opts.Difficulty, "difficulty", 0, "difficulty level")
	cmd.Flags().Int64Var(&opts.Target, "target", 0, "winning net worth")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "YAML rules file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every trade and news line")
	return cmd
}

// runSim plays bots against one engine until the game ends or the round
// limit is hit. The same options and seed always produce the same report.
func runSim(opts simOptions, logf func(string)) simReport {
	if logf == nil {
		logf = func(string) {}
	}
	if opts.Rounds <= 0 {
		opts.Rounds = 50
	}
	clock := time.Unix(0, 0).UTC()
	g := game.New(game.Options{
		Rules:      opts.Rules,
		Difficulty: opts.Difficulty,
		Target:     opts.Target,
		Rand:       game.NewRand(opts.Seed),
		Now:        func() time.Time { return clock },
	})
	bots := game.NewRand(opts.Seed ^ 0x5eed)
	for i := 1; i <= opts.Players; i++ {
		_, _ = g.AddPlayer(fmt.Sprintf("bot%d", i))
	}

	rep := simReport{Seed: opts.Seed}
	for g.Round() < opts.Rounds {
		name, ok := g.CurrentPlayer()
		if !ok {
			break
		}
		for _, act := range botTurn(g, bots, name) {
			clock = clock.Add(time.Minute)
			rep.Trades++
			logf(act)
			if flash := g.GenerateFlashNews(); len(flash) > 0 {
				rep.Flashes++
				for _, line := range flash {
					logf("  " + line)
				}
			}
		}
		res := g.EndTurn()
		for _, line := range res.News {
			logf("  " + line)
		}
		switch {
		case res.AllBankrupt:
			rep.Reason = "all_bankrupt"
		case len(res.Winners) > 0:
			rep.Reason, rep.Winners = "winners", res.Winners
		case opts.Players > 1:
			if last, ok := g.CheckLastPlayerStanding(); ok {
				rep.Reason, rep.Winners = "last_standing", []string{last}
			}
		}
		if rep.Reason != "" {
			break
		}
	}
	if rep.Reason == "" {
		rep.Reason = "round_limit"
	}
	rep.Rounds = g.Round()
	rep.Scores = g.FinalScores()
	return rep
}

// botTurn takes profit on anything above its opening price, clears debt,
// then buys one commodity trading below its opening price.
func botTurn(g *game.Game, r game.Rand, name string) []string {
	p, err := g.Player(name)
	if err != nil || p.Bankrupt {
		return nil
	}
	var acts []string
	for _, c := range game.Commodities {
		held := p.Holdings[c]
		if held == 0 || g.Price(c) <= c.InitialPrice() {
			continue
		}
		if rc, err := g.Sell(name, c, held); err == nil {
			acts = append(acts, fmt.Sprintf("%s sold %d %s at £%d", name, held, c, rc.Price))
		}
	}
	if p, _ = g.Player(name); p.Loan > 0 && p.Balance > 0 {
		if rc, err := g.RepayLoan(name, 0); err == nil {
			acts = append(acts, fmt.Sprintf("%s repaid £%d", name, rc.Repaid))
		}
	}

	c := game.Commodities[r.Intn(len(game.Commodities))]
	if g.Price(c) > c.InitialPrice() {
		return acts
	}
	p, _ = g.Player(name)
	budget := p.Balance / int64(2+r.Intn(3))
	if qty := budget / g.Price(c); qty > 0 {
		if rc, err := g.Buy(name, c, qty); err == nil {
			acts = append(acts, fmt.Sprintf("%s bought %d %s at £%d", name, qty, c, rc.Price))
		}
	}
	return acts
}
