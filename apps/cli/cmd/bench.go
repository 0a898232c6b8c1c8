package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/courier/packages/bench"
	"github.com/abdul-hamid-achik/courier/packages/core/parser"
	"github.com/abdul-hamid-achik/courier/packages/telemetry"
)

var benchCmd = &cobra.Command{
	Use:   "bench [target]...",
	Short: "Load test endpoints",
	Long: `Send requests at a fixed arrival rate or from a pool of virtual users
and report throughput, latency percentiles and errors.

A target is "[weight*]METHOD url" or a bare URL. Targets can also be taken
from the requests of a collection with --from.

Examples:
  courier bench https://api.example.com/health -d 30s -r 50
  courier bench "3*GET /items" "1*POST /orders" --base-url https://api.example.com
  courier bench --from api.yaml --vus 20 --think-time 500ms --ramp-up 10s
  courier bench /items -r 100 --threshold "p95<200ms,errors<1%,rps>90"
  courier bench /items --metrics-addr :9090`,
	RunE: benchCommand,
}

var (
	benchDurationFlag   time.Duration
	benchRateFlag       float64
	benchVUsFlag        int
	benchConcurrency    int
	benchThinkFlag      time.Duration
	benchRampUpFlag     time.Duration
	benchThresholdFlag  string
	benchNoProgressFlag bool
	benchJSONFlag       bool
	benchFromFlag       string
	benchMetricsAddr    string
)

func init() {
	defaults := bench.DefaultOptions()
	benchCmd.Flags().DurationVarP(&benchDurationFlag, "duration", "d", defaults.Duration, "Measurement window (e.g., 30s, 5m)")
	benchCmd.Flags().Float64VarP(&benchRateFlag, "rate", "r", defaults.Rate, "Target requests per second")
	benchCmd.Flags().IntVar(&benchVUsFlag, "vus", 0, "Number of virtual users (switches to VU mode)")
	benchCmd.Flags().IntVar(&benchConcurrency, "concurrency", defaults.Concurrency, "Maximum requests in flight")
	benchCmd.Flags().DurationVar(&benchThinkFlag, "think-time", 0, "Pause between requests per virtual user")
	benchCmd.Flags().DurationVar(&benchRampUpFlag, "ramp-up", 0, "Time to reach the target rate or VUs")
	benchCmd.Flags().StringVar(&benchThresholdFlag, "threshold", getEnvString("COURIER_BENCH_THRESHOLD", ""), "Pass/fail thresholds (e.g., \"p95<200ms,errors<0.1%\") (env: COURIER_BENCH_THRESHOLD)")
	benchCmd.Flags().BoolVar(&benchNoProgressFlag, "no-progress", false, "Disable real-time progress display")
	benchCmd.Flags().BoolVar(&benchJSONFlag, "json", false, "Print results as JSON")
	benchCmd.Flags().StringVar(&benchFromFlag, "from", "", "Use the requests of a collection as targets")
	benchCmd.Flags().StringVar(&benchMetricsAddr, "metrics-addr", getEnvString("COURIER_METRICS_ADDR", ""), "Serve Prometheus metrics on this address during the run (env: COURIER_METRICS_ADDR)")
	addClientFlags(benchCmd.Flags())
}

func benchCommand(cmd *cobra.Command, args []string) error {
	opts, err := benchOptions()
	if err != nil {
		return withExit(ExitUsageError, err)
	}

	targets, err := benchTargets(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if benchMetricsAddr != "" {
		shutdown, err := serveMetrics(s, benchMetricsAddr)
		if err != nil {
			return withExit(ExitConfigError, err)
		}
		defer shutdown()
	}

	var w io.Writer = cmd.ErrOrStderr()
	if benchJSONFlag {
		w = io.Discard
	}
	reporter := bench.NewReporter(
		bench.WithWriter(w),
		bench.WithNoColor(noColorFlag),
		bench.WithNoProgress(benchNoProgressFlag || quietFlag),
		bench.WithVerbose(verboseFlag > 0),
	)

	runner := bench.NewRunner(s.client, opts, targets,
		bench.WithReporter(reporter),
		bench.WithLogger(logger),
	)
	result, err := runner.Run(ctx)
	if err != nil {
		return withExit(ExitConfigError, err)
	}

	if benchJSONFlag {
		if err := bench.NewReporter(bench.WithWriter(cmd.OutOrStdout())).JSON(result.Summary, result.Checks); err != nil {
			return err
		}
	}
	if !result.Passed() {
		return withExit(ExitCheckFailure, nil)
	}
	return nil
}

func benchOptions() (*bench.Options, error) {
	opts := bench.DefaultOptions()
	opts.Duration = benchDurationFlag
	opts.Rate = benchRateFlag
	opts.Concurrency = benchConcurrency
	opts.Think = benchThinkFlag
	opts.RampUp = benchRampUpFlag
	if benchVUsFlag > 0 {
		opts.Mode = bench.ModeVU
		opts.VUs = benchVUsFlag
	}
	if benchThresholdFlag != "" {
		t, err := bench.ParseThresholds(benchThresholdFlag)
		if err != nil {
			return nil, err
		}
		opts.Thresholds = t
	}
	return opts, opts.Validate()
}

func benchTargets(args []string) ([]*bench.Target, error) {
	var targets []*bench.Target
	for _, spec := range args {
		t, err := bench.ParseTarget(spec)
		if err != nil {
			return nil, withExit(ExitUsageError, err)
		}
		targets = append(targets, t)
	}

	if benchFromFlag != "" {
		file, err := parser.ParseFile(benchFromFlag)
		if err != nil {
			return nil, withExit(ExitParseError, err)
		}
		baseDir := filepath.Dir(benchFromFlag)
		for _, req := range file.Requests {
			if req.Skip != "" {
				continue
			}
			name := req.Name
			if name == "" {
				name = req.Method + " " + req.URL
			}
			targets = append(targets, &bench.Target{Name: name, Config: req.Config(baseDir), Weight: 1})
		}
	}

	if len(targets) == 0 {
		return nil, withExit(ExitUsageError, fmt.Errorf("no targets: pass URLs or --from"))
	}
	return targets, nil
}

// serveMetrics instruments the session client and exposes it on addr.
func serveMetrics(s *session, addr string) (func(), error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m, err := telemetry.NewMetrics(reg)
	if err != nil {
		return nil, err
	}
	m.Install(s.client)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
