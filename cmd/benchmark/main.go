package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"time"

	"github.com/delaneyj/reactor/reactive"
	"github.com/delaneyj/reactor/tick"
	"github.com/dustin/go-humanize"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

const (
	itersKey   = "iters"
	profileKey = "profile"
	deepKey    = "deep"
)

var (
	ww = []int{1, 10, 100, 1_000}
	hh = []int{1, 10, 100, 1_000}
)

func main() {
	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "Measure how long one write takes to propagate through chains of computed values",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  itersKey,
				Usage: "Writes measured per graph",
				Value: 100,
			},
			&cli.StringFlag{
				Name:  profileKey,
				Usage: "Write a CPU profile to this file",
			},
			&cli.BoolFlag{
				Name:  deepKey,
				Usage: "Also measure deep watchers over a wide nested object",
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if path := cmd.String(profileKey); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	iters := int(cmd.Uint(itersKey))
	log.Printf("warming up")
	if err := benchmarkPropagate(iters, false); err != nil {
		return err
	}
	if err := benchmarkPropagate(iters, true); err != nil {
		return err
	}
	if cmd.Bool(deepKey) {
		return benchmarkDeep(iters)
	}
	return nil
}

func addOne(prev *reactive.Computed) reactive.Getter {
	return func(any) (any, error) {
		v, err := prev.Value()
		if err != nil {
			return nil, err
		}
		return v.(int) + 1, nil
	}
}

// newRuntime returns a runtime whose flushes run when the caller drains m,
// plus a pointer to the first error it reported.
func newRuntime() (*reactive.Runtime, *tick.Manual, *error) {
	var failed error
	m := tick.NewManual()
	rt := reactive.New(m, reactive.WithErrorHandler(func(err error, vm any, info string) {
		if failed == nil {
			failed = fmt.Errorf("%s: %w", info, err)
		}
	}))
	return rt, m, &failed
}

func newTable(title string) table.Writer {
	tbl := table.NewWriter()
	tbl.SetTitle(title)
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max", "watcher runs"})
	return tbl
}

func appendResult(tbl table.Writer, name string, tach *tachymeter.Tachymeter, rt *reactive.Runtime) {
	calc := tach.Calc()
	tbl.AppendRow(table.Row{
		name,
		calc.Time.Avg,
		calc.Time.Min,
		calc.Time.P75,
		calc.Time.P99,
		calc.Time.Max,
		humanize.Comma(int64(rt.Stats().WatcherRuns)),
	})
}

func benchmarkPropagate(iters int, shouldRender bool) error {
	tbl := newTable("Propagate")

	for _, w := range ww {
		for _, h := range hh {
			tach := tachymeter.New(&tachymeter.Config{Size: iters})

			rt, m, failed := newRuntime()
			state := reactive.NewObject("src", 1)
			rt.Observe(state)
			for i := 0; i < w; i++ {
				last := rt.NewComputed(state, func(vm any) (any, error) {
					return vm.(*reactive.Object).Get("src").(int) + 1, nil
				})
				for j := 1; j < h; j++ {
					last = rt.NewComputed(state, addOne(last))
				}

				rt.NewRenderWatcher(state, func(any) error {
					_, err := last.Value()
					return err
				}, nil, nil)
			}

			for i := 0; i < iters; i++ {
				start := time.Now()
				state.Set("src", state.Get("src").(int)+1)
				m.RunPending()
				tach.AddTime(time.Since(start))
			}
			if *failed != nil {
				return *failed
			}

			appendResult(tbl, fmt.Sprintf("propagate: %d * %d", w, h), tach, rt)
		}
	}

	if shouldRender {
		tbl.Render()
	}
	return nil
}

// benchmarkDeep measures deep watchers over an object with w keys, each
// holding an array of h items. Every write touches one leaf.
func benchmarkDeep(iters int) error {
	tbl := newTable("Deep watch")

	for _, w := range ww[:3] {
		for _, h := range hh[:3] {
			tach := tachymeter.New(&tachymeter.Config{Size: iters})

			rt, m, failed := newRuntime()
			state := reactive.NewObject()
			for i := 0; i < w; i++ {
				items := reactive.NewArray()
				for j := 0; j < h; j++ {
					items.Push(reactive.NewObject("v", j))
				}
				state.Set(fmt.Sprintf("k%d", i), items)
			}
			rt.Observe(state)
			rt.Watch(state, func(vm any) (any, error) { return vm, nil }, nil, reactive.WatchOptions{Deep: true})

			leaf := state.Get("k0").(*reactive.Array).At(0).(*reactive.Object)
			for i := 0; i < iters; i++ {
				start := time.Now()
				leaf.Set("v", leaf.Get("v").(int)+1)
				m.RunPending()
				tach.AddTime(time.Since(start))
			}
			if *failed != nil {
				return *failed
			}

			appendResult(tbl, fmt.Sprintf("deep: %d * %d", w, h), tach, rt)
		}
	}

	tbl.Render()
	return nil
}
