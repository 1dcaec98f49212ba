package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	cl "stockmarket/internal/cli"
	"stockmarket/internal/game"
	"stockmarket/internal/lobby"
	"stockmarket/internal/store"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

type scoresPayload struct {
	Scores []game.ScoreRow `json:"scores"`
}

type leaderboardPayload struct {
	Rows []store.LeaderRow `json:"leaderboard"`
}

// setupColor turns colour off when stdout is not a terminal.
func setupColor() {
	if !isTerminal() {
		color.NoColor = true
	}
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptInt64(label string, min int64) (int64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			printWarn("Enter a whole number.")
			continue
		}
		if v < min {
			printWarn(fmt.Sprintf("Value must be >= %d", min))
			continue
		}
		return v, nil
	}
}

func renderGames(games []lobby.Lobby) {
	accent.Println("\n== TABLES ==")
	if len(games) == 0 {
		printInfo("No tables open. Run `smk create` to open one.")
		return
	}
	fmt.Printf("%-36s %-9s %-12s %s\n", "GAME", "STATUS", "HOST", "PLAYERS")
	for _, g := range games {
		fmt.Printf("%-36s %-9s %-12s %s\n", g.GameID, g.Status, truncate(g.Host, 12), strings.Join(g.Players, ", "))
	}
	fmt.Println()
}

func renderState(st lobby.State) {
	accent.Printf("\n== ROUND %d  TURN %d  (%s) ==\n", st.Round, st.Turn, st.Status)
	if st.Game.CurrentPlayer != "" {
		fmt.Printf("Current player: %s   Host: %s   Target: £%s\n\n", warn.Sprint(st.Game.CurrentPlayer), st.Host, comma(st.Game.Target))
	}

	fmt.Printf("%-6s %8s %8s %10s\n", "SHARE", "PRICE", "LAST", "CHANGE")
	for _, c := range st.Game.Market {
		change := colorizeDelta(c.Price - c.LastPrice)
		if c.Suspended {
			change = warn.Sprint("SUSPENDED")
		}
		fmt.Printf("%-6s %8s %8s %10s\n", c.Symbol, "£"+comma(c.Price), "£"+comma(c.LastPrice), change)
	}
	fmt.Println()

	fmt.Printf("%-14s %10s %10s %6s %6s %6s %6s %12s\n", "PLAYER", "BALANCE", "LOAN", "LEAD", "ZINC", "TIN", "GOLD", "NET WORTH")
	for _, p := range st.Game.Players {
		name := fmt.Sprintf("%-14s", truncate(p.Name, 14))
		if p.Bankrupt {
			name = danger.Sprint(name)
		}
		fmt.Printf("%s %10s %10s %6d %6d %6d %6d %12s\n",
			name,
			"£"+comma(p.Balance),
			"£"+comma(p.Loan),
			p.Holdings["LEAD"], p.Holdings["ZINC"], p.Holdings["TIN"], p.Holdings["GOLD"],
			"£"+comma(p.NetWorth),
		)
	}
	fmt.Println()
	if st.Final != nil {
		renderFinal(*st.Final)
	}
}

func renderTradeResult(res cl.TradeResult) {
	if res.OK {
		printSuccess(res.Message)
	} else {
		printError(res.Message)
	}
	renderNews(res.FlashNews)
}

func renderNews(lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Println()
	for _, line := range lines {
		warn.Println("  " + line)
	}
	fmt.Println()
}

func renderFinal(f lobby.Final) {
	accent.Println("\n== GAME OVER ==")
	switch {
	case f.EndedEarly:
		printInfo("The host ended the game early.")
	case len(f.Winners) == 1 && f.Winners[0] == game.AllBankruptResult:
		printError(game.AllBankruptResult)
	case len(f.Winners) > 0:
		printSuccess("Winner(s): " + strings.Join(f.Winners, ", "))
	}
	renderScoreRows(f.Scores)
}

func renderScores(raw map[string]any) error {
	out, err := decodeInto[scoresPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== SCORES ==")
	renderScoreRows(out.Scores)
	return nil
}

func renderScoreRows(rows []game.ScoreRow) {
	fmt.Printf("%-5s %-14s %12s %12s %8s\n", "RANK", "PLAYER", "NET WORTH", "PROFIT", "SCORE")
	for _, r := range rows {
		name := truncate(r.Name, 14)
		if r.Bankrupt {
			name += " (B)"
		}
		fmt.Printf("%-5d %-14s %12s %12s %8d\n", r.Rank, name, "£"+comma(r.NetWorth), colorizeDelta(r.Profit), r.Score)
	}
	fmt.Println()
}

func renderLeaderboard(raw map[string]any) error {
	out, err := decodeInto[leaderboardPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== LEADERBOARD ==")
	if len(out.Rows) == 0 {
		printInfo("No finished games yet.")
		return nil
	}
	fmt.Printf("%-6s %-18s %6s %6s %10s %14s\n", "RANK", "PLAYER", "GAMES", "WINS", "BEST", "BEST WORTH")
	for _, row := range out.Rows {
		fmt.Printf("%-6d %-18s %6d %6d %10d %14s\n",
			row.Rank,
			truncate(row.Name, 18),
			row.Games,
			row.Wins,
			row.BestScore,
			"£"+comma(row.BestNetWorth),
		)
	}
	fmt.Println()
	return nil
}

func decodeInto[T any](in any) (T, error) {
	var out T
	raw, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func colorizeDelta(v int64) string {
	text := signed(v)
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func signed(v int64) string {
	switch {
	case v > 0:
		return "+" + comma(v)
	case v < 0:
		return "-" + comma(-v)
	}
	return "0"
}

func comma(v int64) string {
	if v < 0 {
		return "-" + comma(-v)
	}
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		b.WriteByte(',')
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
