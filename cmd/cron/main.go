// Command cron runs the Cron node: tracks the virtual clock broadcast by
// ClockManager and fires due Cronjobs as model time passes them.
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
	"github.com/modelrailcontrolsystems/mrcs-control/internal/cron"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/messaging"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/store"
)

const host = "default"

func main() {
	var test, verbose, clean, runSave bool

	root := &cobra.Command{
		Use:   "cron",
		Short: "Track model time and fire due cronjobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(test, verbose, clean, runSave)
		},
	}
	root.Flags().BoolVar(&test, "test", false, "use the test exchange and databases instead of live")
	root.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	root.Flags().BoolVar(&clean, "clean", false, "clear the persisted model-time bookmark and exit")
	root.Flags().BoolVar(&runSave, "run-save", false, "persist the model-time bookmark across restarts while running")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(test, verbose, clean, runSave bool) error {
	log := logrus.New()
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	entry := logrus.NewEntry(log)

	svc, err := config.Load(test)
	if err != nil {
		return fmt.Errorf("cron: %w", err)
	}

	h, err := store.Open(store.DbCron, svc.DbPath(store.DbCron))
	if err != nil {
		return fmt.Errorf("cron: %w", err)
	}
	defer h.Close()

	cs, err := store.NewClockStore(h, host)
	if err != nil {
		return fmt.Errorf("cron: %w", err)
	}
	mts, err := store.NewModelTimeStore(h, host)
	if err != nil {
		return fmt.Errorf("cron: %w", err)
	}
	cjs, err := store.NewCronjobStore(h)
	if err != nil {
		return fmt.Errorf("cron: %w", err)
	}

	if clean {
		if err := mts.Delete(); err != nil {
			return fmt.Errorf("cron: %w", err)
		}
		fmt.Println("cleared persisted model-time bookmark")
		return nil
	}

	transport := messaging.NewSubscriber(messaging.Config{
		URL:      svc.BrokerURL,
		Exchange: svc.Mode.Exchange(),
	}, cron.Identity(), entry)

	n := cron.New(transport, cs, mts, cjs, runSave, entry)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	entry.WithField("identity", cron.Identity()).WithField("save_model_time", runSave).Info("cron: starting")
	return n.Run(ctx)
}
