// Command clockconf is the one-shot interlock tool for inspecting and
// changing the fleet's virtual clock: it talks to ClockManager over the
// exchange for anything that must be broadcast to the fleet, and reads the
// persisted configuration directly for anything that is purely local
// inspection or cleanup.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/modelrailcontrolsystems/mrcs-control/internal/clock"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/clockconf"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/config"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/messaging"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/store"
)

const host = "default"

type setFlags struct {
	running bool
	speed   int
	year    int
	month   int
	day     int
	hour    int
	minute  int
}

func main() {
	var test, verbose bool
	var now, conf, set, reload, del bool
	var sf setFlags

	root := &cobra.Command{
		Use:   "clockconf",
		Short: "Inspect or change the fleet's virtual clock",
		RunE: func(cmd *cobra.Command, args []string) error {
			modes := 0
			for _, b := range []bool{now, conf, set, reload, del} {
				if b {
					modes++
				}
			}
			if modes != 1 {
				return fmt.Errorf("clockconf: exactly one of --now, --conf, --set, --reload, --delete is required")
			}
			return run(test, verbose, now, conf, set, reload, del, sf)
		},
	}
	root.Flags().BoolVar(&test, "test", false, "use the test exchange and databases instead of live")
	root.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	root.Flags().BoolVar(&now, "now", false, "print the current model time")
	root.Flags().BoolVar(&conf, "conf", false, "print the persisted clock configuration")
	root.Flags().BoolVar(&set, "set", false, "publish a new clock configuration built from --running/--speed/--year/--month/--day/--hour/--minute")
	root.Flags().BoolVar(&reload, "reload", false, "re-publish the persisted clock configuration to the fleet")
	root.Flags().BoolVar(&del, "delete", false, "erase the persisted clock configuration")

	root.Flags().BoolVar(&sf.running, "running", false, "clock runs forward in model time (for --set)")
	root.Flags().IntVar(&sf.speed, "speed", 1, "model minutes per real minute, 1-10 (for --set)")
	root.Flags().IntVar(&sf.year, "year", 0, "model year (for --set)")
	root.Flags().IntVar(&sf.month, "month", 1, "model month (for --set)")
	root.Flags().IntVar(&sf.day, "day", 1, "model day (for --set)")
	root.Flags().IntVar(&sf.hour, "hour", 0, "model hour (for --set)")
	root.Flags().IntVar(&sf.minute, "minute", 0, "model minute (for --set)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(test, verbose, now, conf, set, reload, del bool, sf setFlags) error {
	log := logrus.New()
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	entry := logrus.NewEntry(log)

	svc, err := config.Load(test)
	if err != nil {
		return fmt.Errorf("clockconf: %w", err)
	}

	h, err := store.Open(store.DbCron, svc.DbPath(store.DbCron))
	if err != nil {
		return fmt.Errorf("clockconf: %w", err)
	}
	defer h.Close()

	cs, err := store.NewClockStore(h, host)
	if err != nil {
		return fmt.Errorf("clockconf: %w", err)
	}

	switch {
	case now:
		return printNow(cs)
	case conf:
		return printConf(cs)
	case del:
		if err := cs.Delete(); err != nil {
			return fmt.Errorf("clockconf: %w", err)
		}
		fmt.Println("deleted persisted clock configuration")
		return nil
	case set:
		proposal, err := clock.New(sf.running, sf.speed, time.Now(),
			time.Date(sf.year, time.Month(sf.month), sf.day, sf.hour, sf.minute, 0, 0, time.UTC),
			time.Minute)
		if err != nil {
			return fmt.Errorf("clockconf: %w", err)
		}
		return publishAndWait(svc, proposal, entry)
	case reload:
		c, ok, err := cs.Load()
		if err != nil {
			return fmt.Errorf("clockconf: %w", err)
		}
		if !ok {
			return fmt.Errorf("clockconf: no persisted clock configuration to reload")
		}
		return publishAndWait(svc, c, entry)
	default:
		return fmt.Errorf("clockconf: no mode selected")
	}
}

func printNow(cs *store.ClockStore) error {
	c, ok, err := cs.Load()
	if err != nil {
		return fmt.Errorf("clockconf: %w", err)
	}
	if !ok {
		return fmt.Errorf("clockconf: no persisted clock configuration")
	}
	fmt.Println(c.Now().Format(time.RFC3339))
	return nil
}

func printConf(cs *store.ClockStore) error {
	c, ok, err := cs.Load()
	if err != nil {
		return fmt.Errorf("clockconf: %w", err)
	}
	if !ok {
		fmt.Println("no persisted clock configuration")
		return nil
	}
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Errorf("clockconf: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func publishAndWait(svc config.OperationService, proposal clock.Clock, log *logrus.Entry) error {
	transport := messaging.NewSubscriber(messaging.Config{
		URL:      svc.BrokerURL,
		Exchange: svc.Mode.Exchange(),
	}, clockconf.Identity(), log)

	n := clockconf.New(transport, proposal, log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	go n.Run(ctx)

	select {
	case <-n.Done():
		fmt.Println("clock configuration accepted")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("clockconf: timed out waiting for ClockManager to echo the proposal")
	}
}
