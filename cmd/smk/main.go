package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	cl "stockmarket/internal/cli"
	"stockmarket/internal/config"
	"stockmarket/internal/game"

	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL
	gameID := ""

	root := &cobra.Command{
		Use:          "smk",
		Short:        "Stock market board game client",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupColor()
		},
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL")
	root.PersistentFlags().StringVarP(&gameID, "game", "g", "", "game ID (defaults to the last game joined)")

	root.AddCommand(
		newCreateCmd(&apiBase),
		newListCmd(&apiBase),
		newJoinCmd(&apiBase),
		newStartCmd(&apiBase, &gameID),
		newStateCmd(&apiBase, &gameID),
		newTradeCmd(&apiBase, &gameID, "buy"),
		newTradeCmd(&apiBase, &gameID, "sell"),
		newRepayCmd(&apiBase, &gameID),
		newEndTurnCmd(&apiBase, &gameID),
		newEndEarlyCmd(&apiBase, &gameID),
		newResetCmd(&apiBase, &gameID),
		newScoresCmd(&apiBase, &gameID),
		newLeaderboardCmd(&apiBase),
		newWatchCmd(&apiBase, &gameID),
		newSimCmd(),
		newJournalCmd(&gameID),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

// resolveGame picks the --game flag, then the current seat's game.
func resolveGame(gameID *string) (string, error) {
	if id := strings.TrimSpace(*gameID); id != "" {
		return id, nil
	}
	id, err := cl.CurrentGame()
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("no game selected: pass --game or run `smk join` first")
	}
	return id, nil
}

func loadSeat(gameID *string) (cl.Seat, error) {
	id, err := resolveGame(gameID)
	if err != nil {
		return cl.Seat{}, err
	}
	return cl.LoadSeat(id)
}

func newCreateCmd(apiBase *string) *cobra.Command {
	var player string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a new table, optionally joining it as host",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			l, err := client.CreateGame(ctx)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Created game %s", l.GameID))
			if strings.TrimSpace(player) == "" {
				return nil
			}
			return joinAndSave(ctx, client, l.GameID, player)
		},
	}
	cmd.Flags().StringVarP(&player, "player", "p", "", "join the new table as this player")
	return cmd
}

func newListCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List open tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			games, err := newClient(apiBase).ListGames(ctx)
			if err != nil {
				return err
			}
			renderGames(games)
			return nil
		},
	}
}

func newJoinCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "join <game-id> [player]",
		Short: "Take a seat at a table",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			player := ""
			if len(args) == 2 {
				player = args[1]
			} else {
				var err error
				if player, err = promptRequired("Player name"); err != nil {
					return err
				}
			}
			if err := game.ValidatePlayerName(player); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			return joinAndSave(ctx, newClient(apiBase), args[0], player)
		},
	}
}

func joinAndSave(ctx context.Context, client *cl.Client, gameID, player string) error {
	seat, err := client.Join(ctx, gameID, player)
	if err != nil {
		return err
	}
	if err := cl.SaveSeat(seat); err != nil {
		return err
	}
	if seat.Host {
		printSuccess(fmt.Sprintf("Joined %s as %s. You are the host: run `smk start` when everyone is in.", seat.GameID, seat.Player))
		return nil
	}
	printSuccess(fmt.Sprintf("Joined %s as %s.", seat.GameID, seat.Player))
	return nil
}

func newStartCmd(apiBase, gameID *string) *cobra.Command {
	var (
		difficulty int
		target     int64
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the game (host only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			seat, err := loadSeat(gameID)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			st, err := newClient(apiBase).Start(ctx, seat, difficulty, target)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Game started: difficulty %d, target £%s.", st.Game.Difficulty, comma(st.Game.Target)))
			renderState(st)
			return nil
		},
	}
	cmd.Flags().IntVar(&difficulty, "difficulty", 0, "difficulty level, 1 and up (default from server rules)")
	cmd.Flags().Int64Var(&target, "target", 0, "winning net worth (default from server rules)")
	return cmd
}

func newStateCmd(apiBase, gameID *string) *cobra.Command {
	return &cobra.Command{
		Use:     "state",
		Short:   "Show the board",
		Aliases: []string{"board"},
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveGame(gameID)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			st, err := newClient(apiBase).State(ctx, id)
			if err != nil {
				return err
			}
			renderState(st)
			return nil
		},
	}
}

func newTradeCmd(apiBase, gameID *string, side string) *cobra.Command {
	return &cobra.Command{
		Use:   side + " <commodity> [quantity]",
		Short: strings.ToUpper(side[:1]) + side[1:] + " shares on your turn",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := game.ParseCommodity(args[0])
			if err != nil {
				return err
			}
			var qty int64
			if len(args) == 2 {
				qty, err = strconv.ParseInt(args[1], 10, 64)
				if err != nil || qty <= 0 {
					return fmt.Errorf("quantity must be a positive whole number")
				}
			} else if qty, err = promptInt64("Quantity", 1); err != nil {
				return err
			}
			seat, err := loadSeat(gameID)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			res, err := newClient(apiBase).Trade(ctx, seat, side, c.String(), qty)
			if err != nil {
				return err
			}
			renderTradeResult(res)
			return nil
		},
	}
}

func newRepayCmd(apiBase, gameID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "repay [amount]",
		Short: "Repay your bank loan, in full when no amount is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var amount int64
			if len(args) == 1 {
				v, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil || v <= 0 {
					return fmt.Errorf("amount must be a positive whole number")
				}
				amount = v
			}
			seat, err := loadSeat(gameID)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			res, err := newClient(apiBase).Repay(ctx, seat, amount)
			if err != nil {
				return err
			}
			renderTradeResult(res)
			return nil
		},
	}
}

func newEndTurnCmd(apiBase, gameID *string) *cobra.Command {
	return &cobra.Command{
		Use:     "end-turn",
		Short:   "Pass play to the next player",
		Aliases: []string{"end"},
		RunE: func(cmd *cobra.Command, args []string) error {
			seat, err := loadSeat(gameID)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).EndTurn(ctx, seat)
			if err != nil {
				return err
			}
			renderNews(out.News)
			if out.Final != nil {
				renderFinal(*out.Final)
				return nil
			}
			printInfo("Turn ended.")
			return nil
		},
	}
}

func newEndEarlyCmd(apiBase, gameID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "end-early",
		Short: "Stop the game now and show final scores (host only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			seat, err := loadSeat(gameID)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			final, err := newClient(apiBase).EndEarly(ctx, seat)
			if err != nil {
				return err
			}
			renderFinal(final)
			return nil
		},
	}
}

func newResetCmd(apiBase, gameID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the table for another game (host only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			seat, err := loadSeat(gameID)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := newClient(apiBase).Reset(ctx, seat); err != nil {
				return err
			}
			// Reset empties the seat list, so the old token names a player who is gone.
			if err := cl.ClearSeat(seat.GameID); err != nil {
				return err
			}
			printSuccess("Table reset. Everyone must join again.")
			return nil
		},
	}
}

func newScoresCmd(apiBase, gameID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "scores",
		Short: "Show the table's standings",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveGame(gameID)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Scores(ctx, id)
			if err != nil {
				return err
			}
			return renderScores(out)
		},
	}
}

func newLeaderboardCmd(apiBase *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Best results across finished games",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Leaderboard(ctx, limit)
			if err != nil {
				return err
			}
			return renderLeaderboard(out)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "rows to show")
	return cmd
}
