package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/courier/packages/core/parser"
	"github.com/abdul-hamid-achik/courier/packages/curl"
	courier "github.com/abdul-hamid-achik/courier/packages/http"
	"github.com/abdul-hamid-achik/courier/packages/output"
)

var curlCmd = &cobra.Command{
	Use:   "curl [command]",
	Short: "Send or convert curl commands",
	Long: `Parse curl command lines and send them through courier, or convert
them into a request collection.

Commands come from the argument, or from --file / stdin with one command
per line (backslash continuations and # comments are allowed).

Examples:
  courier curl "curl -X POST https://api.example.com/users -d '{\"a\":1}'"
  courier curl --file commands.sh --convert > api.yaml
  pbpaste | courier curl --convert`,
	Args: requireArgs(cobra.MaximumNArgs(1)),
	RunE: curlCommand,
}

var (
	curlFileFlag    string
	curlConvertFlag bool
	curlOutput      outputFlags
)

func init() {
	curlCmd.Flags().StringVarP(&curlFileFlag, "file", "f", "", "Read curl commands from a file (- for stdin)")
	curlCmd.Flags().BoolVar(&curlConvertFlag, "convert", false, "Print a request collection instead of sending")
	curlCmd.Flags().StringVarP(&curlOutput.format, "output", "o", getEnvString("COURIER_OUTPUT", "pretty"), "Output format: pretty, json, raw, junit, tap (env: COURIER_OUTPUT)")
	curlCmd.Flags().StringVar(&curlOutput.file, "output-file", "", "Write output to file (default: stdout)")
	addClientFlags(curlCmd.Flags())
}

func curlCommand(cmd *cobra.Command, args []string) error {
	commands, err := readCurlCommands(cmd.InOrStdin(), args)
	if err != nil {
		return withExit(ExitUsageError, err)
	}
	if len(commands) == 0 {
		return withExit(ExitUsageError, fmt.Errorf("no curl commands given"))
	}

	configs := make([]*courier.Config, 0, len(commands))
	for i, line := range commands {
		cfg, err := curl.Parse(line)
		if err != nil {
			return withExit(ExitParseError, fmt.Errorf("command %d: %w", i+1, err))
		}
		configs = append(configs, cfg)
	}

	if curlConvertFlag {
		return convertCurl(cmd.OutOrStdout(), configs)
	}

	ctx := cmd.Context()
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	f, closeOut, err := curlOutput.formatter(cmd.OutOrStdout(), "curl")
	if err != nil {
		return err
	}
	defer closeOut()

	exchanges := make([]*output.Exchange, 0, len(configs))
	for _, cfg := range configs {
		x := s.exchange(ctx, "", "curl", cfg, nil)
		if err := f.Format(x); err != nil {
			return err
		}
		exchanges = append(exchanges, x)
	}
	if err := f.Flush(); err != nil {
		return err
	}
	return settle(exchanges)
}

func readCurlCommands(stdin io.Reader, args []string) ([]string, error) {
	if len(args) == 1 && curlFileFlag == "" {
		return curl.SplitCommands(strings.NewReader(args[0]))
	}

	var r io.Reader = stdin
	if curlFileFlag != "" && curlFileFlag != "-" {
		f, err := os.Open(curlFileFlag)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return curl.SplitCommands(r)
}

func convertCurl(w io.Writer, configs []*courier.Config) error {
	file := &parser.File{}
	for i, cfg := range configs {
		req, err := parser.FromConfig(fmt.Sprintf("request%d", i+1), cfg)
		if err != nil {
			return withExit(ExitParseError, err)
		}
		file.Requests = append(file.Requests, req)
	}

	data, err := parser.Marshal(file)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
