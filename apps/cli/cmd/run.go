package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/courier/packages/core/config"
	"github.com/abdul-hamid-achik/courier/packages/core/env"
	"github.com/abdul-hamid-achik/courier/packages/core/parser"
	"github.com/abdul-hamid-achik/courier/packages/core/runner"
	"github.com/abdul-hamid-achik/courier/packages/output"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>...",
	Short: "Run request collections",
	Long: `Run the requests defined in YAML collection files.

Requests run in dependency order; captures from one request are available
to later ones as {{requestName.captureName}}.

Examples:
  courier run api.yaml
  courier run api.yaml --env staging
  courier run ./collections/ --tags smoke
  courier run api.yaml --name "create*" -o junit --output-file report.xml
  courier run api.yaml --watch`,
	Args: requireArgs(cobra.MinimumNArgs(1)),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	nameFlag        string
	tagsFlag        string
	bailFlag        bool
	parallelFlag    bool
	concurrencyFlag int
	watchFlag       bool
	runOutput       outputFlags
)

func init() {
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only requests matching name pattern")
	runCmd.Flags().StringVarP(&tagsFlag, "tags", "t", getEnvString("COURIER_TAGS", ""), "Run only requests with specified tags (comma-separated) (env: COURIER_TAGS)")
	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("COURIER_BAIL", false), "Stop on first failure (env: COURIER_BAIL)")
	runCmd.Flags().BoolVarP(&parallelFlag, "parallel", "P", getEnvBool("COURIER_PARALLEL", false), "Run requests in parallel when none has dependencies (env: COURIER_PARALLEL)")
	runCmd.Flags().IntVar(&concurrencyFlag, "concurrency", getEnvInt("COURIER_CONCURRENCY", runner.DefaultConcurrency), "Concurrent requests in parallel mode (env: COURIER_CONCURRENCY)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and re-run")
	runCmd.Flags().StringVarP(&runOutput.format, "output", "o", getEnvString("COURIER_OUTPUT", "pretty"), "Output format: pretty, json, raw, junit, tap (env: COURIER_OUTPUT)")
	runCmd.Flags().StringVar(&runOutput.file, "output-file", getEnvString("COURIER_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: COURIER_OUTPUT_FILE)")
	addClientFlags(runCmd.Flags())
}

func runCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return withExit(ExitUsageError, err)
	}
	if len(files) == 0 {
		return withExit(ExitUsageError, fmt.Errorf("no collection files found"))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := runFiles(ctx, cmd, files)
	if !watchFlag {
		return runErr
	}
	if runErr != nil && exitCode(runErr) != ExitCheckFailure && exitCode(runErr) != ExitNetworkError {
		logger.Error("run failed", "error", runErr)
	}
	return watch(ctx, cmd, args, files)
}

// runFiles runs every file with a fresh session so captures do not leak
// between runs.
func runFiles(ctx context.Context, cmd *cobra.Command, files []string) error {
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	f, closeOut, err := runOutput.formatter(cmd.OutOrStdout(), "courier")
	if err != nil {
		return err
	}
	defer closeOut()

	var tags []string
	for _, tag := range strings.Split(tagsFlag, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	var all []*output.Exchange
	passed, failed, skipped := 0, 0, 0
	for _, file := range files {
		r := runner.NewRunner(s.client, s.resolver, &runner.Config{
			Bail:        bailFlag,
			NameFilter:  nameFlag,
			TagsFilter:  tags,
			Parallel:    parallelFlag,
			Concurrency: concurrencyFlag,
			Logger:      logger,
		})
		result, err := r.RunFile(ctx, file)
		if err != nil {
			var perr *parser.ParseError
			if errors.As(err, &perr) {
				return withExit(ExitParseError, err)
			}
			return withExit(ExitConfigError, err)
		}

		for _, x := range result.Exchanges() {
			if err := f.Format(x); err != nil {
				return err
			}
			all = append(all, x)
		}
		passed += result.Passed
		failed += result.Failed
		skipped += result.Skipped
		logger.Info("collection finished", "file", file, "passed", result.Passed, "failed", result.Failed, "skipped", result.Skipped, "duration", result.Duration)

		if failed > 0 && bailFlag {
			break
		}
	}

	if err := f.Flush(); err != nil {
		return err
	}
	if runOutput.format == "pretty" && !quietFlag {
		fmt.Fprintf(cmd.ErrOrStderr(), "\n%d passed, %d failed, %d skipped\n", passed, failed, skipped)
	}
	return settle(all)
}

func watch(ctx context.Context, cmd *cobra.Command, args, files []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	for _, file := range files {
		dir := filepath.Dir(file)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				logger.Warn("cannot watch directory", "dir", dir, "error", err)
			}
			watchedDirs[dir] = true
		}
	}
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			continue
		}
		_ = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err == nil && d.IsDir() && !watchedDirs[path] {
				_ = watcher.Add(path)
				watchedDirs[path] = true
			}
			return nil
		})
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	rerun := make(chan string, 1)
	var debounceTimer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !parser.IsCollection(event.Name) && !isConfigFile(event.Name) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				select {
				case rerun <- name:
				default:
				}
			})

		case name := <-rerun:
			fmt.Fprintf(cmd.ErrOrStderr(), "\nFile changed: %s\nRe-running...\n\n", name)
			if isConfigFile(name) {
				if p, err := config.LoadConfig(configFlag); err != nil {
					logger.Error("reload config", "error", err)
				} else {
					profile = p
				}
			}
			current, err := collectFiles(args)
			if err != nil {
				logger.Error("collect files", "error", err)
				continue
			}
			if err := runFiles(ctx, cmd, current); err != nil && exitCode(err) != ExitCheckFailure {
				logger.Error("run failed", "error", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)
		}
	}
}

// collectFiles expands directories into the collections they contain.
// Files named on the command line are taken as-is.
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && parser.IsCollection(path) && !isConfigFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

// isConfigFile reports whether path is a profile or environment file
// rather than a collection.
func isConfigFile(path string) bool {
	base := filepath.Base(path)
	return slices.Contains(config.ConfigFilenames, base) || slices.Contains(env.EnvironmentFilenames, base)
}
