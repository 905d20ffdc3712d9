// Command crontab runs the Crontab node: the fleet-facing intake that
// turns a schedule request into a persisted Cronjob row for Cron to fire.
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
	"github.com/modelrailcontrolsystems/mrcs-control/internal/crontab"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/messaging"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/store"
)

func main() {
	var test, verbose, clean bool

	root := &cobra.Command{
		Use:   "crontab",
		Short: "Run the fleet's cron-schedule intake node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(test, verbose, clean)
		},
	}
	root.Flags().BoolVar(&test, "test", false, "use the test exchange and databases instead of live")
	root.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	root.Flags().BoolVar(&clean, "clean", false, "report the count of pending cronjobs and exit, without subscribing")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(test, verbose, clean bool) error {
	log := logrus.New()
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	entry := logrus.NewEntry(log)

	svc, err := config.Load(test)
	if err != nil {
		return fmt.Errorf("crontab: %w", err)
	}

	h, err := store.Open(store.DbCron, svc.DbPath(store.DbCron))
	if err != nil {
		return fmt.Errorf("crontab: %w", err)
	}
	defer h.Close()

	cjs, err := store.NewCronjobStore(h)
	if err != nil {
		return fmt.Errorf("crontab: %w", err)
	}

	if clean {
		jobs, err := cjs.FindAll()
		if err != nil {
			return fmt.Errorf("crontab: %w", err)
		}
		fmt.Printf("%d pending cronjob(s)\n", len(jobs))
		for _, j := range jobs {
			fmt.Printf("  #%d target=%s event=%s on=%s\n", *j.Id, j.Target, j.EventId, j.OnDatetime.Format("2006-01-02T15:04:05Z07:00"))
		}
		return nil
	}

	transport := messaging.NewSubscriber(messaging.Config{
		URL:      svc.BrokerURL,
		Exchange: svc.Mode.Exchange(),
	}, crontab.Identity(), entry)

	n := crontab.New(transport, cjs, entry)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	entry.WithField("identity", crontab.Identity()).Info("crontab: starting")
	return n.Run(ctx)
}
