package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/abdul-hamid-achik/courier/packages/auth/awssig"
	"github.com/abdul-hamid-achik/courier/packages/auth/digest"
	"github.com/abdul-hamid-achik/courier/packages/auth/oauth2"
	"github.com/abdul-hamid-achik/courier/packages/core/env"
	"github.com/abdul-hamid-achik/courier/packages/history"
	courier "github.com/abdul-hamid-achik/courier/packages/http"
	"github.com/abdul-hamid-achik/courier/packages/middleware"
	"github.com/abdul-hamid-achik/courier/packages/telemetry"
)

// Flags shared by every command that sends requests.
var (
	baseURLFlag      string
	headerFlags      []string
	timeoutFlag      string
	proxyFlag        string
	insecureFlag     bool
	noFollowFlag     bool
	maxRedirectsFlag int
	requestIDFlag    string
	rateLimitFlag    float64
	digestFlag       string
	awsSigV4Flag     string
	oauth2Flag       string
	historyFlag      bool
	historyPathFlag  string
	otlpEndpointFlag string
	otlpInsecureFlag bool
)

func addClientFlags(fs *pflag.FlagSet) {
	fs.StringVar(&baseURLFlag, "base-url", getEnvString("COURIER_BASE_URL", ""), "Prefix for relative URLs (env: COURIER_BASE_URL)")
	fs.StringArrayVarP(&headerFlags, "header", "H", nil, "Default header as 'Name: value' (repeatable)")
	fs.StringVar(&timeoutFlag, "timeout", getEnvString("COURIER_TIMEOUT", ""), "Request timeout (e.g., 30s, 1m) (env: COURIER_TIMEOUT)")
	fs.StringVar(&proxyFlag, "proxy", getEnvString("COURIER_PROXY", ""), "Proxy URL for HTTP requests (env: COURIER_PROXY)")
	fs.BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("COURIER_INSECURE", false), "Disable SSL certificate validation (env: COURIER_INSECURE)")
	fs.BoolVar(&noFollowFlag, "no-follow", false, "Do not follow redirects")
	fs.IntVar(&maxRedirectsFlag, "max-redirects", -1, "Maximum redirects to follow")
	fs.StringVar(&requestIDFlag, "request-id", getEnvString("COURIER_REQUEST_ID", ""), "Tag requests with a UUID in this header (env: COURIER_REQUEST_ID)")
	fs.Float64Var(&rateLimitFlag, "rate-limit", getEnvFloat("COURIER_RATE_LIMIT", 0), "Maximum requests per second (env: COURIER_RATE_LIMIT)")
	fs.StringVar(&digestFlag, "digest", "", "Answer digest challenges as user:password")
	fs.StringVar(&awsSigV4Flag, "aws-sigv4", "", "Sign requests as accessKey:secretKey:region:service")
	fs.StringVar(&oauth2Flag, "oauth2", getEnvString("COURIER_OAUTH2", ""), "OAuth2 spec: 'grant tokenURL clientID secret [...]' (env: COURIER_OAUTH2)")
	fs.BoolVar(&historyFlag, "history", getEnvBool("COURIER_HISTORY", false), "Record exchanges to the history database (env: COURIER_HISTORY)")
	fs.StringVar(&historyPathFlag, "history-file", getEnvString("COURIER_HISTORY_FILE", ""), "History database path (env: COURIER_HISTORY_FILE)")
	fs.StringVar(&otlpEndpointFlag, "otlp-endpoint", getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", ""), "Export traces over OTLP/gRPC (env: OTEL_EXPORTER_OTLP_ENDPOINT)")
	fs.BoolVar(&otlpInsecureFlag, "otlp-insecure", getEnvBool("COURIER_OTLP_INSECURE", false), "Disable TLS for the OTLP exporter (env: COURIER_OTLP_INSECURE)")
}

// session is a configured client plus the resources it holds.
type session struct {
	client   *courier.Client
	resolver *env.Resolver
	closers  []func(context.Context) error
}

func (s *session) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			logger.Warn("shutdown failed", "error", err)
		}
	}
}

// newSession builds a client from the profile and the client flags and
// installs the interceptors the flags ask for.
func newSession(ctx context.Context) (*session, error) {
	defaults, err := profile.ToRequestConfig()
	if err != nil {
		return nil, withExit(ExitConfigError, err)
	}

	opts := []courier.ClientOption{courier.WithConfig(defaults), courier.WithLogger(logger)}
	if baseURLFlag != "" {
		opts = append(opts, courier.WithBaseURL(baseURLFlag))
	}
	if timeoutFlag != "" {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return nil, withExit(ExitUsageError, fmt.Errorf("invalid timeout %q: %w", timeoutFlag, err))
		}
		opts = append(opts, courier.WithTimeout(d))
	}
	if proxyFlag != "" {
		if _, err := courier.ParseProxy(proxyFlag); err != nil {
			return nil, withExit(ExitUsageError, fmt.Errorf("invalid proxy %q: %w", proxyFlag, err))
		}
		opts = append(opts, courier.WithProxy(proxyFlag))
	}
	if insecureFlag {
		opts = append(opts, courier.WithValidateSSL(false))
	}
	if maxRedirectsFlag >= 0 {
		opts = append(opts, courier.WithMaxRedirects(maxRedirectsFlag))
	}
	if noFollowFlag {
		opts = append(opts, courier.WithFollowRedirects(false))
	}
	for _, h := range headerFlags {
		name, value, err := splitHeader(h)
		if err != nil {
			return nil, withExit(ExitUsageError, err)
		}
		opts = append(opts, courier.WithDefaultHeader(name, value))
	}

	s := &session{client: courier.NewClient(opts...)}

	vars, err := loadVariables()
	if err != nil {
		return nil, err
	}
	s.resolver = env.NewResolver()
	s.resolver.SetLogger(logger)
	s.resolver.SetVariables(vars)
	s.resolver.Install(s.client)

	if err := s.installAuth(); err != nil {
		return nil, err
	}
	if requestIDFlag != "" {
		middleware.RequestID(s.client, requestIDFlag)
	}
	if rateLimitFlag > 0 {
		middleware.RateLimit(s.client, middleware.NewLimiter(rateLimitFlag, 1))
	}
	if verboseFlag > 0 {
		middleware.Logging(s.client, logger)
	}

	if historyFlag || historyPathFlag != "" {
		store, err := history.Open(historyPath())
		if err != nil {
			return nil, withExit(ExitConfigError, err)
		}
		s.closers = append(s.closers, func(context.Context) error { return store.Close() })
		history.Install(s.client, store, logger)
	}

	if otlpEndpointFlag != "" {
		shutdown, err := telemetry.SetupProvider(ctx, telemetry.Config{
			ServiceName: "courier",
			Endpoint:    otlpEndpointFlag,
			Insecure:    otlpInsecureFlag,
		})
		if err != nil {
			s.Close()
			return nil, withExit(ExitConfigError, err)
		}
		s.closers = append(s.closers, shutdown)
		telemetry.NewTracer(nil).Install(s.client)
	}

	return s, nil
}

func (s *session) installAuth() error {
	if digestFlag != "" {
		user, pass, ok := strings.Cut(digestFlag, ":")
		if !ok {
			return withExit(ExitUsageError, fmt.Errorf("--digest wants user:password"))
		}
		digest.Install(s.client, user, pass)
	}

	if awsSigV4Flag != "" {
		parts := strings.Split(awsSigV4Flag, ":")
		if len(parts) != 4 {
			return withExit(ExitUsageError, fmt.Errorf("--aws-sigv4 wants accessKey:secretKey:region:service"))
		}
		signer := awssig.NewSigner(awssig.Credentials{
			AccessKey: parts[0],
			SecretKey: parts[1],
			Region:    parts[2],
			Service:   parts[3],
		})
		s.client.Defaults.TransformRequest = signer.Append(s.client.Defaults.TransformRequest)
	}

	if oauth2Flag != "" {
		cfg, err := oauth2.ParseSpec(strings.Fields(oauth2Flag))
		if err != nil {
			return withExit(ExitUsageError, err)
		}
		tokenClient := courier.NewClient(courier.WithConfig(s.client.Defaults), courier.WithLogger(logger))
		oauth2.NewProvider(cfg, tokenClient).Install(s.client)
	}
	return nil
}

// loadVariables merges, lowest first: the environment file, the profile
// environment, the .env file and COURIER_VAR_* process variables.
func loadVariables() (map[string]any, error) {
	envs := map[string]map[string]any{}
	if path := env.FindEnvironmentFile("."); path != "" {
		fileEnvs, err := env.LoadEnvironmentFile(path)
		if err != nil {
			return nil, withExit(ExitConfigError, err)
		}
		for name, vars := range fileEnvs {
			envs[name] = vars
		}
	}
	for name, vars := range profile.Environments {
		envs[name] = env.MergeVariables(envs[name], vars)
	}

	name := envFlag
	if name == "" {
		name = profile.DefaultEnvironment
		if _, ok := envs[name]; !ok {
			name = ""
		}
	}
	environment, err := env.LoadEnvironment(name, envs)
	if err != nil {
		return nil, withExit(ExitConfigError, err)
	}

	dotenv := map[string]any{}
	if envFileFlag != "" {
		values, err := env.LoadDotEnv(envFileFlag)
		if err != nil {
			return nil, withExit(ExitConfigError, err)
		}
		for k, v := range values {
			dotenv[k] = v
		}
	}

	return env.MergeVariables(environment.Variables, dotenv, env.LoadSystemEnv("COURIER_VAR_")), nil
}

func historyPath() string {
	if historyPathFlag != "" {
		return historyPathFlag
	}
	if profile != nil && profile.HistoryPath != "" {
		return profile.HistoryPath
	}
	if dir, err := os.UserCacheDir(); err == nil {
		_ = os.MkdirAll(filepath.Join(dir, "courier"), 0o755)
		return filepath.Join(dir, "courier", "history.db")
	}
	return ".courier-history.db"
}

func splitHeader(h string) (string, string, error) {
	name, value, ok := strings.Cut(h, ":")
	if !ok || strings.TrimSpace(name) == "" {
		return "", "", fmt.Errorf("invalid header %q (want 'Name: value')", h)
	}
	return strings.TrimSpace(name), strings.TrimSpace(value), nil
}

// requireArgs wraps cobra argument validation so usage errors get their
// own exit code.
func requireArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return withExit(ExitUsageError, err)
		}
		return nil
	}
}
