package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/abdul-hamid-achik/courier/packages/capture"
	"github.com/abdul-hamid-achik/courier/packages/curl"
	courier "github.com/abdul-hamid-achik/courier/packages/http"
	"github.com/abdul-hamid-achik/courier/packages/output"
)

var requestCmd = &cobra.Command{
	Use:   "request [METHOD] <url>",
	Short: "Send a single request",
	Long: `Send a single HTTP request and print the response.

Examples:
  courier request https://api.example.com/users
  courier request POST /users --base-url https://api.example.com --json '{"name":"ada"}'
  courier request /users/1 -a 'status == 200' -a 'body.name == ada'
  courier request /users -p page=2 --query 'items.#.id'
  courier request PUT /upload -F file=@report.csv -F kind=csv
  courier request /users --print-curl`,
	Args: requireArgs(cobra.RangeArgs(1, 2)),
	RunE: requestCommand,
}

// Flags describing a single request.
var (
	methodFlag       string
	dataFlag         string
	jsonFlag         string
	formFlags        []string
	paramFlags       []string
	userFlag         string
	responseTypeFlag string
	assertFlags      []string
	captureFlags     []string
	schemaFlag       string
	queryFlag        string
	printCurlFlag    bool
	requestOutput    outputFlags
)

func init() {
	addRequestFlags(requestCmd.Flags())
	requestCmd.Flags().StringVarP(&methodFlag, "method", "X", "", "HTTP method (default GET, or POST with a body)")
}

func addRequestFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&dataFlag, "data", "d", "", "Request body; @file reads a file, @- reads stdin")
	fs.StringVar(&jsonFlag, "json", "", "JSON request body; sets Content-Type and Accept")
	fs.StringArrayVarP(&formFlags, "form", "F", nil, "Multipart field name=value or name=@path (repeatable)")
	fs.StringArrayVarP(&paramFlags, "param", "p", nil, "Query parameter key=value (repeatable)")
	fs.StringVarP(&userFlag, "user", "u", "", "Basic auth as user:password")
	fs.StringVar(&responseTypeFlag, "response-type", "", "Response type: json, text, arraybuffer")
	fs.StringArrayVarP(&assertFlags, "assert", "a", nil, "Assertion such as 'status == 200' (repeatable)")
	fs.StringArrayVarP(&captureFlags, "capture", "c", nil, "Capture name=source:path (repeatable)")
	fs.StringVar(&schemaFlag, "schema", "", "Validate the body against a JSON Schema file")
	fs.StringVar(&queryFlag, "query", "", "Print only the value at this gjson path")
	fs.BoolVar(&printCurlFlag, "print-curl", false, "Print the equivalent curl command instead of sending")
	fs.StringVarP(&requestOutput.format, "output", "o", getEnvString("COURIER_OUTPUT", "pretty"), "Output format: pretty, json, raw, junit, tap (env: COURIER_OUTPUT)")
	fs.StringVar(&requestOutput.file, "output-file", getEnvString("COURIER_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: COURIER_OUTPUT_FILE)")
	addClientFlags(fs)
}

func requestCommand(cmd *cobra.Command, args []string) error {
	method, target := methodFlag, args[len(args)-1]
	if len(args) == 2 {
		method = args[0]
	}
	return sendOne(cmd, method, target)
}

// methodCommands returns the get, post, ... shortcuts for request.
func methodCommands() []*cobra.Command {
	methods := []string{"get", "post", "put", "patch", "delete", "head", "options"}
	cmds := make([]*cobra.Command, 0, len(methods))
	for _, m := range methods {
		c := &cobra.Command{
			Use:   m + " <url>",
			Short: fmt.Sprintf("Send a %s request", strings.ToUpper(m)),
			Args:  requireArgs(cobra.ExactArgs(1)),
			RunE: func(cmd *cobra.Command, args []string) error {
				return sendOne(cmd, m, args[0])
			},
		}
		addRequestFlags(c.Flags())
		cmds = append(cmds, c)
	}
	return cmds
}

func sendOne(cmd *cobra.Command, method, target string) error {
	cfg, err := buildRequest(method, target, cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if printCurlFlag {
		merged := courier.MergeConfig(s.client.Defaults, s.resolver.ResolveConfig(cfg))
		line, err := curl.Command(merged)
		if err != nil {
			return withExit(ExitUsageError, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
		return nil
	}

	c, err := parseChecks(assertFlags, captureFlags, schemaFlag, ".")
	if err != nil {
		return err
	}
	x := s.exchange(ctx, "", "cli", cfg, c)

	if queryFlag != "" && x.Response != nil {
		value, ok := capture.Query(x.Response, queryFlag)
		if !ok {
			return withExit(ExitCheckFailure, fmt.Errorf("no value at %q", queryFlag))
		}
		if err := printValue(cmd.OutOrStdout(), value); err != nil {
			return err
		}
		return settle([]*output.Exchange{x})
	}

	f, closeOut, err := requestOutput.formatter(cmd.OutOrStdout(), "courier")
	if err != nil {
		return err
	}
	defer closeOut()
	if err := f.Format(x); err != nil {
		return err
	}
	if err := f.Flush(); err != nil {
		return err
	}
	return settle([]*output.Exchange{x})
}

// buildRequest turns the request flags into a config.
func buildRequest(method, target string, stdin io.Reader) (*courier.Config, error) {
	cfg := &courier.Config{URL: target, Method: strings.ToLower(method)}

	if len(paramFlags) > 0 {
		cfg.Params = courier.Params{}
		for _, p := range paramFlags {
			k, v, _ := strings.Cut(p, "=")
			cfg.Params[k] = appendParam(cfg.Params[k], v)
		}
	}

	if userFlag != "" {
		user, pass, _ := strings.Cut(userFlag, ":")
		cfg.Auth = &courier.BasicAuth{Username: user, Password: pass}
	}
	if responseTypeFlag != "" {
		cfg.ResponseType = courier.ResponseType(strings.ToLower(responseTypeFlag))
	}

	switch {
	case jsonFlag != "":
		if !json.Valid([]byte(jsonFlag)) {
			return nil, withExit(ExitUsageError, fmt.Errorf("--json is not valid JSON"))
		}
		cfg.Data = jsonFlag
		cfg.Headers = courier.Header{"Content-Type": "application/json", "Accept": "application/json"}
	case len(formFlags) > 0:
		form := courier.NewFormData(".")
		for _, f := range formFlags {
			name, value, ok := strings.Cut(f, "=")
			if !ok {
				return nil, withExit(ExitUsageError, fmt.Errorf("invalid form field %q (want name=value)", f))
			}
			if path, isFile := strings.CutPrefix(value, "@"); isFile {
				form.AppendFile(name, path)
			} else {
				form.Append(name, value)
			}
		}
		cfg.Data = form
	case dataFlag != "":
		body, err := readData(dataFlag, stdin)
		if err != nil {
			return nil, withExit(ExitUsageError, err)
		}
		cfg.Data = body
		if json.Valid([]byte(body)) {
			cfg.Headers = courier.Header{"Content-Type": "application/json"}
		}
	}

	if cfg.Method == "" {
		cfg.Method = courier.MethodGet
		if cfg.Data != nil {
			cfg.Method = courier.MethodPost
		}
	}
	return cfg, nil
}

func readData(value string, stdin io.Reader) (string, error) {
	path, ok := strings.CutPrefix(value, "@")
	if !ok {
		return value, nil
	}
	if path == "-" {
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(b), nil
}

func printValue(w io.Writer, value any) error {
	if s, ok := value.(string); ok {
		_, err := fmt.Fprintln(w, s)
		return err
	}
	b, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
