package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jfmyers9/scrobbled/internal/config"
	"github.com/jfmyers9/scrobbled/internal/engine"
	"github.com/jfmyers9/scrobbled/internal/playback"
	"github.com/jfmyers9/scrobbled/internal/scrobbler"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	daemonLogFile    string
	daemonLogLevel   string
	daemonDataDir    string
	daemonEventsPath string
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the scrobbling daemon",
	Long: `Run the scrobbling daemon that consumes playback events and scrobbles
completed listens to Last.fm.

The daemon will:
- Read newline-delimited JSON playback events from stdin (or --events)
- Track listened time per session, handling pause/resume and seeks
- Queue listens that meet the scrobbling threshold (50% or 4 minutes)
- Submit queued scrobbles with exponential backoff on failure
- Recover pending submissions after a restart
- Handle graceful shutdown on SIGINT/SIGTERM and on stream close

The daemon runs in the foreground and logs to stderr by default.
Use the --log-file flag to log to a file instead.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	// Command-line flags
	daemonCmd.Flags().StringVar(&daemonLogFile, "log-file", "", "Log file path (default: stderr)")
	daemonCmd.Flags().StringVar(&daemonLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	daemonCmd.Flags().StringVar(&daemonDataDir, "data-dir", "", "Data directory for the submission queue (default: ~/.local/share/scrobbled)")
	daemonCmd.Flags().StringVar(&daemonEventsPath, "events", "-", "Playback event source: '-' for stdin, or a path to a FIFO/file")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Validate Last.fm credentials
	if cfg.LastFM.APIKey == "" || cfg.LastFM.APISecret == "" || cfg.LastFM.SessionKey == "" {
		return fmt.Errorf("Last.fm credentials not configured. Run 'scrobbled auth' first")
	}

	// Set up logging
	logger := setupLogger(daemonLogFile, daemonLogLevel)

	logger.Info().
		Str("version", version).
		Msg("Starting scrobbled daemon")

	// Determine data directory
	dataDir := daemonDataDir
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share", "scrobbled")
	}

	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	logger.Info().Str("data_dir", dataDir).Msg("Using data directory")

	// Open the playback event source
	events, closer, err := openEventSource(daemonEventsPath)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	stream := playback.NewJSONStream(events, logger)

	// Create the Last.fm submission client
	client, err := scrobbler.NewLastFM(
		cfg.LastFM.APIKey,
		cfg.LastFM.APISecret,
		cfg.LastFM.SessionKey,
		logger,
	)
	if err != nil {
		return err
	}

	// Create engine config
	engineCfg := engine.Config{
		QueueDB:           filepath.Join(dataDir, "queue.db"),
		NowPlayingTimeout: cfg.NowPlayingTimeout,
		SubmitTimeout:     cfg.SubmitTimeout,
		PollInterval:      cfg.PollInterval,
		BaseDelay:         cfg.BackoffBase,
		MaxDelay:          cfg.BackoffMax,
	}

	// Create engine
	e, err := engine.New(engineCfg, stream, client, logger)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	// Run engine (blocks until stream close or shutdown signal)
	runErr := e.Run()

	// Graceful shutdown
	if err := e.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
		if runErr == nil {
			runErr = err
		}
	}

	if runErr != nil {
		return fmt.Errorf("engine error: %w", runErr)
	}

	logger.Info().Msg("Daemon stopped")
	return nil
}

// openEventSource resolves the --events flag to a reader
func openEventSource(path string) (io.Reader, io.Closer, error) {
	if path == "" || path == "-" {
		return os.Stdin, nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open event source: %w", err)
	}
	return f, f, nil
}

// setupLogger creates a logger with the specified configuration
func setupLogger(logFile, logLevel string) zerolog.Logger {
	// Parse log level
	level := zerolog.InfoLevel
	switch logLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	// Set up output
	var output *os.File
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			output = os.Stderr
		} else {
			output = f
		}
	} else {
		output = os.Stderr
	}

	// Create logger
	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	// Use pretty console output if logging to stderr
	if output == os.Stderr {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	return logger
}
