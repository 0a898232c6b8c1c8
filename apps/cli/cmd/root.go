package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/courier/packages/core/config"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag  string
	envFlag     string
	envFileFlag string
	verboseFlag int // 0=warn, 1=-v info, 2=-vv debug
	quietFlag   bool
	noColorFlag bool

	profile *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "courier",
	Short: "Send HTTP requests. Check what comes back.",
	Long: `courier is a promise-style HTTP client with a command line.

Requests can be sent ad hoc, replayed from YAML request files, converted
from curl commands or fired in bulk as a benchmark. Every exchange can be
asserted on, captured from and recorded to a local history database.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command and exits with the code attached to any
// returned error.
func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
		}
		os.Exit(exitCode(err))
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFlag, "config", getEnvString("COURIER_CONFIG", ""), "Path to config file (env: COURIER_CONFIG)")
	flags.StringVarP(&envFlag, "env", "e", getEnvString("COURIER_ENV", ""), "Environment to use for {{variables}} (env: COURIER_ENV)")
	flags.StringVar(&envFileFlag, "env-file", getEnvString("COURIER_ENV_FILE", ""), "Path to .env file for variable interpolation (env: COURIER_ENV_FILE)")
	flags.CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v, -vv for more detail)")
	flags.BoolVarP(&quietFlag, "quiet", "q", getEnvBool("COURIER_QUIET", false), "Only log errors (env: COURIER_QUIET)")
	flags.BoolVar(&noColorFlag, "no-color", getEnvBool("COURIER_NO_COLOR", false), "Disable colored output (env: COURIER_NO_COLOR)")

	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(curlCmd)
	rootCmd.AddCommand(uriCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
	for _, c := range methodCommands() {
		rootCmd.AddCommand(c)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	logger = newLogger(cmd.ErrOrStderr())

	p, err := config.LoadConfig(configFlag)
	if err != nil {
		return withExit(ExitConfigError, fmt.Errorf("load config: %w", err))
	}
	profile = p
	if profile.GetNoColor() {
		noColorFlag = true
	}
	if profile.GetVerbose() && verboseFlag == 0 {
		verboseFlag = 1
	}
	logger.Debug("profile loaded", "path", configFlag, "baseURL", profile.BaseURL)
	return nil
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case quietFlag:
		level = slog.LevelError
	case verboseFlag >= 2:
		level = slog.LevelDebug
	case verboseFlag == 1:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
