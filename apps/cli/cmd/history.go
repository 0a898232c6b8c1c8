package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/courier/packages/history"
	courier "github.com/abdul-hamid-achik/courier/packages/http"
	"github.com/abdul-hamid-achik/courier/packages/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded exchanges",
	Long: `Inspect the exchanges recorded with --history.

Examples:
  courier history list -n 20
  courier history show 42
  courier history replay 42
  courier history sql "SELECT status, COUNT(*) AS n FROM exchanges GROUP BY status"
  courier history clear`,
}

var (
	historyLimitFlag int
	historyJSONFlag  bool
	historyReplayOut outputFlags
)

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent exchanges",
	Args:  requireArgs(cobra.NoArgs),
	RunE:  historyList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one exchange with headers and body",
	Args:  requireArgs(cobra.ExactArgs(1)),
	RunE:  historyShow,
}

var historyReplayCmd = &cobra.Command{
	Use:   "replay <id>",
	Short: "Send a recorded request again",
	Args:  requireArgs(cobra.ExactArgs(1)),
	RunE:  historyReplay,
}

var historySQLCmd = &cobra.Command{
	Use:   "sql <query>",
	Short: "Run a SQL query against the history database",
	Args:  requireArgs(cobra.ExactArgs(1)),
	RunE:  historySQL,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all recorded exchanges",
	Args:  requireArgs(cobra.NoArgs),
	RunE:  historyClear,
}

func init() {
	historyCmd.PersistentFlags().StringVar(&historyPathFlag, "history-file", getEnvString("COURIER_HISTORY_FILE", ""), "History database path (env: COURIER_HISTORY_FILE)")
	historyCmd.PersistentFlags().BoolVar(&historyJSONFlag, "json", false, "Print results as JSON")
	historyListCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 20, "Number of exchanges to show")

	historyReplayCmd.Flags().StringVarP(&historyReplayOut.format, "output", "o", getEnvString("COURIER_OUTPUT", "pretty"), "Output format: pretty, json, raw, junit, tap (env: COURIER_OUTPUT)")
	historyReplayCmd.Flags().StringVar(&historyReplayOut.file, "output-file", "", "Write output to file (default: stdout)")
	addClientFlags(historyReplayCmd.Flags())

	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyReplayCmd, historySQLCmd, historyClearCmd)
}

func openHistory() (*history.Store, error) {
	store, err := history.Open(historyPath())
	if err != nil {
		return nil, withExit(ExitConfigError, err)
	}
	return store, nil
}

func historyList(cmd *cobra.Command, _ []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(cmd.Context(), historyLimitFlag)
	if err != nil {
		return err
	}
	if historyJSONFlag {
		return writeJSON(cmd.OutOrStdout(), entries)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tMETHOD\tSTATUS\tDURATION\tURL")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%dms\t%s\n",
			e.ID, e.RecordedAt.Local().Format("2006-01-02 15:04:05"),
			strings.ToUpper(e.Method), statusLabel(e), e.DurationMs, e.URL)
	}
	return tw.Flush()
}

func statusLabel(e *history.Entry) string {
	paint := func(c *color.Color, s string) string {
		if noColorFlag {
			return s
		}
		return c.Sprint(s)
	}
	switch {
	case e.Status == 0:
		label := "ERR"
		if e.ErrorCode != "" {
			label = e.ErrorCode
		}
		return paint(color.New(color.FgRed), label)
	case e.Status >= 400:
		return paint(color.New(color.FgRed), strconv.Itoa(e.Status))
	case e.Status >= 300:
		return paint(color.New(color.FgYellow), strconv.Itoa(e.Status))
	default:
		return paint(color.New(color.FgGreen), strconv.Itoa(e.Status))
	}
}

func historyEntry(cmd *cobra.Command, arg string) (*history.Entry, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return nil, withExit(ExitUsageError, fmt.Errorf("invalid id %q", arg))
	}
	store, err := openHistory()
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return store.Get(cmd.Context(), id)
}

func historyShow(cmd *cobra.Command, args []string) error {
	e, err := historyEntry(cmd, args[0])
	if err != nil {
		return err
	}
	if historyJSONFlag {
		return writeJSON(cmd.OutOrStdout(), e)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "#%d  %s\n", e.ID, e.RecordedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "%s %s\n", strings.ToUpper(e.Method), e.URL)
	for _, k := range sortedHeaderKeys(e.RequestHeaders) {
		fmt.Fprintf(w, "%s: %s\n", k, e.RequestHeaders[k])
	}
	fmt.Fprintln(w)
	if e.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", e.Error)
	}
	if e.Status > 0 {
		fmt.Fprintf(w, "%s (%dms)\n", statusLabel(e), e.DurationMs)
		keys := make([]string, 0, len(e.ResponseHeaders))
		for k := range e.ResponseHeaders {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%s: %s\n", k, strings.Join(e.ResponseHeaders[k], ", "))
		}
	}
	if e.ResponseBody != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, e.ResponseBody)
	}
	return nil
}

func historyReplay(cmd *cobra.Command, args []string) error {
	e, err := historyEntry(cmd, args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	f, closeOut, err := historyReplayOut.formatter(cmd.OutOrStdout(), "history")
	if err != nil {
		return err
	}
	defer closeOut()

	x := s.exchange(ctx, fmt.Sprintf("replay #%d", e.ID), "history", replayConfig(e), nil)
	if err := f.Format(x); err != nil {
		return err
	}
	if err := f.Flush(); err != nil {
		return err
	}
	return settle([]*output.Exchange{x})
}

// replayConfig rebuilds the request of a recorded exchange. Request bodies
// are not recorded, so the replay carries none.
func replayConfig(e *history.Entry) *courier.Config {
	cfg := &courier.Config{
		Method: strings.ToLower(e.Method),
		URL:    e.URL,
	}
	if len(e.RequestHeaders) > 0 {
		cfg.Headers = courier.Header{}
		for k, v := range e.RequestHeaders {
			if http.CanonicalHeaderKey(k) == "Content-Length" {
				continue
			}
			cfg.Headers.Set(k, v)
		}
	}
	return cfg
}

func historySQL(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := store.Query(cmd.Context(), args[0])
	if err != nil {
		return withExit(ExitUsageError, err)
	}
	if historyJSONFlag {
		return writeJSON(cmd.OutOrStdout(), result.Rows)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(result.Columns, "\t")))
	for _, row := range result.Rows {
		cells := make([]string, len(result.Columns))
		for i, col := range result.Columns {
			if v := row[col]; v != nil {
				cells[i] = fmt.Sprint(v)
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func historyClear(cmd *cobra.Command, _ []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Clear(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d exchanges\n", n)
	return nil
}

func sortedHeaderKeys(h map[string]string) []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONLine(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
