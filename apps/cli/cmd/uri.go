package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

var uriCmd = &cobra.Command{
	Use:   "uri <url>",
	Short: "Print the URI a request would be sent to",
	Long: `Print the path and query a request would use, after profile params,
--param values and {{variables}} are applied.

Examples:
  courier uri /users -p page=2 -p tag=a -p tag=b
  courier uri /users --full --base-url https://api.example.com`,
	Args: requireArgs(cobra.ExactArgs(1)),
	RunE: uriCommand,
}

var (
	uriParams []string
	uriFull   bool
)

func init() {
	uriCmd.Flags().StringArrayVarP(&uriParams, "param", "p", nil, "Query parameter key=value (repeatable)")
	uriCmd.Flags().BoolVar(&uriFull, "full", false, "Include the base URL")
	uriCmd.Flags().StringVar(&baseURLFlag, "base-url", getEnvString("COURIER_BASE_URL", ""), "Prefix for relative URLs (env: COURIER_BASE_URL)")
}

func uriCommand(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	cfg := &courier.Config{URL: args[0]}
	if len(uriParams) > 0 {
		cfg.Params = courier.Params{}
		for _, p := range uriParams {
			k, v, _ := strings.Cut(p, "=")
			cfg.Params[k] = appendParam(cfg.Params[k], v)
		}
	}
	cfg = s.resolver.ResolveConfig(cfg)

	if !uriFull {
		fmt.Fprintln(cmd.OutOrStdout(), s.client.GetURI(cfg))
		return nil
	}
	merged := courier.MergeConfig(s.client.Defaults, cfg)
	fmt.Fprintln(cmd.OutOrStdout(), courier.BuildURL(courier.BuildFullPath(merged.BaseURL, merged.URL), merged.Params, merged.ParamsSerializer))
	return nil
}

// appendParam adds v to a param value, turning repeats into a list.
func appendParam(existing any, v string) any {
	switch e := existing.(type) {
	case nil:
		return v
	case []any:
		return append(e, v)
	default:
		return []any{e, v}
	}
}
