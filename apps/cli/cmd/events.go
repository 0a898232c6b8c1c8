package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	courier "github.com/abdul-hamid-achik/courier/packages/http"
	"github.com/abdul-hamid-achik/courier/packages/sse"
)

var eventsCmd = &cobra.Command{
	Use:   "events <url>",
	Short: "Print Server-Sent Events from a stream",
	Long: `Open a text/event-stream response and print each event as it arrives.

Examples:
  courier events https://api.example.com/stream
  courier events /notifications -n 10 --json
  courier events /feed --last-event-id 42`,
	Args: requireArgs(cobra.ExactArgs(1)),
	RunE: eventsCommand,
}

var (
	eventsMaxFlag    int
	eventsJSONFlag   bool
	eventsLastIDFlag string
)

func init() {
	eventsCmd.Flags().IntVarP(&eventsMaxFlag, "max", "n", 0, "Stop after this many events (0 = until the stream ends)")
	eventsCmd.Flags().BoolVar(&eventsJSONFlag, "json", false, "Print one JSON object per event")
	eventsCmd.Flags().StringVar(&eventsLastIDFlag, "last-event-id", "", "Resume after this event id")
	addClientFlags(eventsCmd.Flags())
}

func eventsCommand(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	cfg := &courier.Config{URL: args[0]}
	if eventsLastIDFlag != "" {
		cfg.Headers = courier.Header{"Last-Event-ID": eventsLastIDFlag}
	}

	w := cmd.OutOrStdout()
	seen := 0
	err = sse.Stream(ctx, s.client, cfg, func(e sse.Event) error {
		seen++
		if eventsJSONFlag {
			if err := writeJSONLine(w, e); err != nil {
				return err
			}
		} else {
			if e.ID != "" {
				fmt.Fprintf(w, "id: %s\n", e.ID)
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, e.Data)
		}
		if eventsMaxFlag > 0 && seen >= eventsMaxFlag {
			return sse.ErrStop
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("stream closed", "events", seen)
	return nil
}
