package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oddsmith/arbiter/errors"
	"github.com/oddsmith/arbiter/watch"
)

// WatchCmd represents the watch command - watchlist management
var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage the watched-market list",
	Long: `Manage the list of watched markets.

Watched markets are refreshed by the watch-poll job and fed to the
scan kinds.

Watchlist commands:
  arbiter watch add <market>  # Watch a market
  arbiter watch ls            # List watched markets
  arbiter watch purge         # Remove all watched markets`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// WatchAddCmd adds a market to the watchlist
var WatchAddCmd = &cobra.Command{
	Use:   "add <market>",
	Short: "Watch a market",
	Long: `Add a market to the watchlist.

Example:
  arbiter watch add nba/lakers-celtics/ml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatchAdd(args[0])
	},
}

// WatchLsCmd lists watched markets
var WatchLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List watched markets",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatchLs()
	},
}

// WatchPurgeCmd removes all watched markets
var WatchPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove all watched markets",
	Long: `Remove every market from the watchlist.

Job records are untouched; only watched markets are removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatchPurge()
	},
}

func init() {
	WatchCmd.AddCommand(WatchAddCmd)
	WatchCmd.AddCommand(WatchLsCmd)
	WatchCmd.AddCommand(WatchPurgeCmd)
}

func runWatchAdd(market string) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	item, err := watch.NewStore(database).Add(market)
	if err != nil {
		return errors.Wrapf(err, "failed to watch %s", market)
	}

	fmt.Printf("Watching %s (%s)\n", item.Market, item.ID)
	return nil
}

func runWatchLs() error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	items, err := watch.NewStore(database).List()
	if err != nil {
		return errors.Wrap(err, "failed to list watchlist")
	}

	if len(items) == 0 {
		fmt.Println("No watched markets")
		return nil
	}

	fmt.Printf("%-14s %-40s %-10s %s\n", "ITEM ID", "MARKET", "PRICE", "LAST CHECKED")
	fmt.Printf("%-14s %-40s %-10s %s\n", "-------", "------", "-----", "------------")
	for _, item := range items {
		price := "-"
		if item.LastPrice != nil {
			price = fmt.Sprintf("%.3f", *item.LastPrice)
		}
		checked := "never"
		if item.LastCheckedAt != nil {
			checked = item.LastCheckedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Printf("%-14s %-40s %-10s %s\n", truncate(item.ID, 14), truncate(item.Market, 40), price, checked)
	}

	fmt.Printf("\nTotal: %d market(s)\n", len(items))
	return nil
}

func runWatchPurge() error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	removed, err := watch.NewStore(database).DeleteAll()
	if err != nil {
		return errors.Wrap(err, "failed to purge watchlist")
	}

	fmt.Printf("Removed %d watched market(s)\n", removed)
	return nil
}
