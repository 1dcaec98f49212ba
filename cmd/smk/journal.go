package main

import (
	"encoding/json"
	"fmt"
	"os"

	"stockmarket/internal/journal"
	"stockmarket/internal/lobby"

	"github.com/spf13/cobra"
)

func newJournalCmd(gameID *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the server's event journal",
	}
	cmd.AddCommand(newJournalCatCmd(gameID))
	return cmd
}

func newJournalCatCmd(gameID *string) *cobra.Command {
	var (
		prefix string
		raw    bool
	)
	cmd := &cobra.Command{
		Use:   "cat [dir]",
		Short: "Print journaled events in order, filtered by --game when set",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := os.Getenv("STOCKMARKET_JOURNAL_DIR")
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return fmt.Errorf("journal directory required: pass it or set STOCKMARKET_JOURNAL_DIR")
			}
			files, err := journal.Files(dir, prefix)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				printWarn("No journal files in " + dir)
				return nil
			}
			for _, path := range files {
				err := journal.Read(path, func(line json.RawMessage) error {
					if raw {
						fmt.Println(string(line))
						return nil
					}
					var ev lobby.Event
					if err := json.Unmarshal(line, &ev); err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					if *gameID != "" && ev.GameID != *gameID {
						return nil
					}
					printJournalEvent(ev)
					return nil
				})
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "events", "journal file prefix")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the JSON lines unchanged")
	return cmd
}

func printJournalEvent(ev lobby.Event) {
	stamp := ev.At.Local().Format("2006-01-02 15:04:05")
	lines := describeEvent(ev)
	if len(lines) == 0 {
		fmt.Printf("%s %s %s\n", stamp, truncate(ev.GameID, 8), neutral.Sprint(ev.Type))
		return
	}
	for _, line := range lines {
		fmt.Printf("%s %s %s\n", stamp, truncate(ev.GameID, 8), line)
	}
}
