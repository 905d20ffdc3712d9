// Command clockmanager runs the ClockManager node: the single
// authoritative owner of the fleet's virtual clock.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/modelrailcontrolsystems/mrcs-control/internal/clockmanager"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/config"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/messaging"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/store"
)

const host = "default"

func main() {
	var test, verbose bool

	root := &cobra.Command{
		Use:   "clockmanager",
		Short: "Run the fleet's authoritative virtual clock",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(test, verbose)
		},
	}
	root.Flags().BoolVar(&test, "test", false, "use the test exchange and databases instead of live")
	root.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(test, verbose bool) error {
	log := logrus.New()
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	entry := logrus.NewEntry(log)

	svc, err := config.Load(test)
	if err != nil {
		return fmt.Errorf("clockmanager: %w", err)
	}

	h, err := store.Open(store.DbCron, svc.DbPath(store.DbCron))
	if err != nil {
		return fmt.Errorf("clockmanager: %w", err)
	}
	defer h.Close()

	cs, err := store.NewClockStore(h, host)
	if err != nil {
		return fmt.Errorf("clockmanager: %w", err)
	}

	transport := messaging.NewSubscriber(messaging.Config{
		URL:      svc.BrokerURL,
		Exchange: svc.Mode.Exchange(),
	}, clockmanager.Identity(), entry)

	n := clockmanager.New(transport, cs, entry)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	entry.WithField("identity", clockmanager.Identity()).Info("clockmanager: starting")
	return n.Run(ctx)
}
