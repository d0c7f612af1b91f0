/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "scrobbled",
	Short: "Remote playback session scrobbler for Last.fm",
	Long: `scrobbled observes a remote music playback session and scrobbles
completed listens to Last.fm.

It consumes a stream of playback events from a session bridge (piped to
stdin or read from a FIFO), tracks how long each track was actually
listened to across pauses and seeks, and submits qualifying listens to
Last.fm. Qualifying listens are queued durably, so nothing is lost to
network failures or restarts; submissions are retried with backoff until
Last.fm confirms them.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags can be added here if needed
}
