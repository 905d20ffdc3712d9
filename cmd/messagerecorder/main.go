// Command messagerecorder runs the message-recorder node: durably logs
// every message observed on the exchange for later audit or replay.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/modelrailcontrolsystems/mrcs-control/internal/config"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/messaging"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/recorder"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/store"
)

func main() {
	var test, verbose bool
	var report int

	root := &cobra.Command{
		Use:   "messagerecorder",
		Short: "Record every message observed on the exchange",
		RunE: func(cmd *cobra.Command, args []string) error {
			if report > 0 {
				return printReport(test, report)
			}
			return run(test, verbose)
		},
	}
	root.Flags().BoolVar(&test, "test", false, "use the test exchange and databases instead of live")
	root.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	root.Flags().IntVar(&report, "report", 0, "print the N most recently recorded messages and exit, instead of subscribing")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printReport(test bool, n int) error {
	svc, err := config.Load(test)
	if err != nil {
		return fmt.Errorf("messagerecorder: %w", err)
	}

	h, err := store.Open(store.DbMessageLog, svc.DbPath(store.DbMessageLog))
	if err != nil {
		return fmt.Errorf("messagerecorder: %w", err)
	}
	defer h.Close()

	ls, err := store.NewMessageLogStore(h)
	if err != nil {
		return fmt.Errorf("messagerecorder: %w", err)
	}

	records, err := ls.FindLatest(n)
	if err != nil {
		return fmt.Errorf("messagerecorder: %w", err)
	}

	for _, r := range records {
		fmt.Printf("#%d %s %s origin=%s %s\n",
			r.Id, r.Recorded.Format("2006-01-02T15:04:05Z07:00"), r.RoutingKey, r.Origin, string(r.Body))
	}
	return nil
}

func run(test, verbose bool) error {
	log := logrus.New()
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	entry := logrus.NewEntry(log)

	svc, err := config.Load(test)
	if err != nil {
		return fmt.Errorf("messagerecorder: %w", err)
	}

	h, err := store.Open(store.DbMessageLog, svc.DbPath(store.DbMessageLog))
	if err != nil {
		return fmt.Errorf("messagerecorder: %w", err)
	}
	defer h.Close()

	ls, err := store.NewMessageLogStore(h)
	if err != nil {
		return fmt.Errorf("messagerecorder: %w", err)
	}

	transport := messaging.NewSubscriber(messaging.Config{
		URL:      svc.BrokerURL,
		Exchange: svc.Mode.Exchange(),
	}, recorder.Identity(), entry)

	n := recorder.New(transport, ls, entry)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	entry.WithField("identity", recorder.Identity()).Info("messagerecorder: starting")
	return n.Run(ctx)
}
