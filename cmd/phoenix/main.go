// Command phoenix watches a fleet of services and repairs the ones that fail.
//
//	phoenix run                 start the monitor, the recovery loop and the API
//	phoenix check [service]     probe once and print a health table
//	phoenix catalog             print the active recovery strategies
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/jonwraymond/phoenix/api"
	"github.com/jonwraymond/phoenix/config"
	"github.com/jonwraymond/phoenix/health"
)

// errUnhealthy makes check exit non-zero without printing an error.
type errUnhealthy int

func (e errUnhealthy) Error() string {
	return fmt.Sprintf("%d service(s) unhealthy", int(e))
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if _, ok := err.(errUnhealthy); !ok {
			fmt.Fprintf(os.Stderr, "phoenix: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	var (
		app        = kingpin.New("phoenix", "Fleet health monitor with automatic recovery")
		configPath = app.Flag("config", "Path to the YAML configuration file").Short('c').OverrideDefaultFromEnvar(config.EnvConfigPath).String()
		dryRun     = app.Flag("dry-run", "Log recovery actions instead of executing them").Bool()

		crun = app.Command("run", "Start the monitor, the recovery loop and the API").Default()

		ccheck        = app.Command("check", "Probe services once and print their health")
		ccheckService = ccheck.Arg("service", "Only probe this service").String()
		ccheckTimeout = ccheck.Flag("timeout", "Overall deadline for the probes").Default("30s").Duration()

		ccatalog = app.Command("catalog", "Print the active recovery strategies")
	)
	app.Writer(out)

	cmd, err := app.Parse(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *dryRun {
		cfg.Recovery.DryRun = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := build(ctx, cfg, buildOptions{})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
		defer cancel()
		_ = d.close(closeCtx)
	}()

	switch cmd {
	case crun.FullCommand():
		return d.serve(ctx)
	case ccheck.FullCommand():
		checkCtx, cancel := context.WithTimeout(ctx, *ccheckTimeout)
		defer cancel()
		return d.check(checkCtx, out, *ccheckService)
	case ccatalog.FullCommand():
		return printCatalog(out, api.CatalogView(d.engine.Catalog()))
	}
	return nil
}

// check probes once and prints the resulting records. It returns
// errUnhealthy when any printed service is not healthy.
func (d *daemon) check(ctx context.Context, out io.Writer, service string) error {
	var records []health.ServiceHealth
	if service != "" {
		if _, err := d.monitor.CheckService(ctx, service); err != nil {
			return err
		}
		h, err := d.monitor.ServiceHealth(service)
		if err != nil {
			return err
		}
		records = []health.ServiceHealth{h}
	} else {
		d.monitor.CheckAll(ctx)
		records = d.monitor.AllHealth()
	}

	if err := printHealth(out, records); err != nil {
		return err
	}
	unhealthy := 0
	for _, h := range records {
		if !h.Healthy() {
			unhealthy++
		}
	}
	if unhealthy > 0 {
		return errUnhealthy(unhealthy)
	}
	return nil
}

var statusColors = map[health.Status]*color.Color{
	health.StatusHealthy:  color.New(color.FgGreen),
	health.StatusDegraded: color.New(color.FgYellow),
	health.StatusDown:     color.New(color.FgRed),
}

// printHealth writes one row per record. The status escape codes all have
// the same width, which keeps the tabwriter columns aligned.
func printHealth(out io.Writer, records []health.ServiceHealth) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tSTATUS\tRESPONSE\tUPTIME\tERRORS\tLAST ERROR")
	for _, h := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%.1f\t%s\n",
			h.Name, statusColors[h.Status].Sprint(h.Status), time.Duration(h.ResponseTimeMs)*time.Millisecond,
			h.UptimeScore, h.ErrorRate, h.LastError)
	}
	return w.Flush()
}

func printCatalog(out io.Writer, views []api.StrategyView) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PRIORITY\tNAME\tACTION\tDESCRIPTION")
	for _, v := range views {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", v.Priority, v.Name, v.Action, v.Description)
	}
	return w.Flush()
}
