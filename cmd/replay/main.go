package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/delaneyj/reactor/metrics"
	"github.com/delaneyj/reactor/reactive"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	maxUpdatesKey = "max-updates"
	prodKey       = "prod"
	verboseKey    = "verbose"
	stateKey      = "state"
)

func main() {
	cmd := &cli.Command{
		Name:      "replay",
		Usage:     "Replay a YAML script of state mutations and print what every watcher saw",
		ArgsUsage: "<script.yaml>",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  maxUpdatesKey,
				Usage: "Re-queues of one watcher allowed per flush before it is dropped",
				Value: reactive.DefaultMaxUpdateCount,
			},
			&cli.BoolFlag{
				Name:  prodKey,
				Usage: "Disable development warnings",
			},
			&cli.BoolFlag{
				Name:  verboseKey,
				Usage: "Log at debug level",
			},
			&cli.BoolFlag{
				Name:  stateKey,
				Usage: "Print the final state as YAML",
				Value: true,
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return errors.New("missing script path")
	}

	level := slog.LevelInfo
	if cmd.Bool(verboseKey) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	s, err := loadScript(path)
	if err != nil {
		return err
	}
	logger.Debug("script loaded", "path", path, "watchers", len(s.Watch), "ticks", len(s.Ticks))

	rep, err := replay(ctx, s,
		reactive.WithLogger(logger),
		reactive.WithDevMode(!cmd.Bool(prodKey)),
		reactive.WithMaxUpdateCount(int(cmd.Uint(maxUpdatesKey))),
	)
	if err != nil {
		return err
	}
	logger.Debug("replay finished", "events", len(rep.Events), "errors", len(rep.Errors))

	return printReport(os.Stdout, rep, cmd.Bool(stateKey))
}

func printReport(w io.Writer, rep *report, withState bool) error {
	events := table.NewWriter()
	events.SetTitle("Watchers")
	events.SetOutputMirror(w)
	events.AppendHeader(table.Row{"tick", "source", "new", "old"})
	for _, e := range rep.Events {
		tick := any(e.Tick)
		if e.Tick < 0 {
			tick = "setup"
		}
		events.AppendRow(table.Row{tick, e.Source, e.NewValue, e.OldValue})
	}
	events.Render()

	if len(rep.Errors)+len(rep.Warnings) > 0 {
		diag := table.NewWriter()
		diag.SetTitle("Diagnostics")
		diag.SetOutputMirror(w)
		diag.AppendHeader(table.Row{"kind", "message"})
		for _, msg := range rep.Errors {
			diag.AppendRow(table.Row{"error", msg})
		}
		for _, msg := range rep.Warnings {
			diag.AppendRow(table.Row{"warning", msg})
		}
		diag.Render()
	}

	if err := printMetrics(w, rep.Stats); err != nil {
		return err
	}

	fmt.Fprintf(w, "state digest: %016x\n", rep.Digest)
	if withState {
		fmt.Fprintln(w, "final state:")
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep.State); err != nil {
			return err
		}
		return enc.Close()
	}
	return nil
}

type statsSnapshot reactive.Stats

func (s statsSnapshot) Stats() reactive.Stats {
	return reactive.Stats(s)
}

// printMetrics renders the runtime counters the way a scrape would see them.
func printMetrics(w io.Writer, stats reactive.Stats) error {
	reg := prometheus.NewRegistry()
	if _, err := metrics.Register(reg, statsSnapshot(stats)); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}

	tbl := table.NewWriter()
	tbl.SetTitle("Metrics")
	tbl.SetOutputMirror(w)
	tbl.AppendHeader(table.Row{"metric", "value"})
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			tbl.AppendRow(table.Row{mf.GetName(), m.GetCounter().GetValue()})
		}
	}
	tbl.Render()
	return nil
}
