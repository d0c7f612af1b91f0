package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jfmyers9/scrobbled/internal/scrobbler"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

var queueDataDir string

// queueCmd groups operator commands for the submission queue
var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and manage the scrobble submission queue",
	Long: `Inspect and manage the durable scrobble submission queue.

Queued scrobbles persist until Last.fm confirms them. Records that were
rejected permanently (for example after a credential change) are held in
the queue rather than discarded; use 'queue release' to resubmit them
after fixing the underlying problem.`,
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued scrobble submissions",
	RunE:  runQueueList,
}

var queueCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Show the number of queued submissions",
	RunE:  runQueueCount,
}

var queueReleaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Move held submissions back to pending",
	RunE:  runQueueRelease,
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueCountCmd)
	queueCmd.AddCommand(queueReleaseCmd)

	queueCmd.PersistentFlags().StringVar(&queueDataDir, "data-dir", "", "Data directory for the submission queue (default: ~/.local/share/scrobbled)")
}

// openQueueStore opens the submission store used by the daemon
func openQueueStore() (*scrobbler.Store, error) {
	dataDir := queueDataDir
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share", "scrobbled")
	}

	store, err := scrobbler.NewStore(filepath.Join(dataDir, "queue.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open submission queue: %w", err)
	}
	return store, nil
}

func runQueueList(cmd *cobra.Command, args []string) error {
	store, err := openQueueStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list submissions: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("Queue is empty.")
		return nil
	}

	const (
		trackWidth  = 30
		artistWidth = 24
	)

	fmt.Printf("%s  %s  %-10s  %-7s  %s\n",
		formatCell("TRACK", trackWidth),
		formatCell("ARTIST", artistWidth),
		"STATE", "RETRIES", "STARTED")

	for _, r := range records {
		fmt.Printf("%s  %s  %-10s  %-7d  %s\n",
			formatCell(r.Title, trackWidth),
			formatCell(r.Artist, artistWidth),
			r.State,
			r.RetryCount,
			r.StartedAt.Format(time.RFC3339))

		if r.LastError != "" {
			fmt.Printf("  last error: %s\n", r.LastError)
		}
	}

	return nil
}

func runQueueCount(cmd *cobra.Command, args []string) error {
	store, err := openQueueStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	total, err := store.Count(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to count submissions: %w", err)
	}

	held := scrobbler.StateHeld
	heldCount, err := store.Count(ctx, &held)
	if err != nil {
		return fmt.Errorf("failed to count held submissions: %w", err)
	}

	fmt.Printf("%d queued (%d held)\n", total, heldCount)
	return nil
}

func runQueueRelease(cmd *cobra.Command, args []string) error {
	store, err := openQueueStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	released, err := store.Release(context.Background())
	if err != nil {
		return fmt.Errorf("failed to release held submissions: %w", err)
	}

	if released == 0 {
		fmt.Println("No held submissions.")
		return nil
	}

	fmt.Printf("Released %d held submission(s) for retry.\n", released)
	return nil
}

// formatCell fits text into a fixed-width column, truncating with an
// ellipsis when it is too long. Widths are display cells, so wide
// characters and emoji line up correctly.
func formatCell(text string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(text, width, "…"), width)
}
