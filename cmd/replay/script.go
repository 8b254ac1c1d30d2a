package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/delaneyj/reactor/reactive"
	"github.com/delaneyj/reactor/tick"
	"gopkg.in/yaml.v3"
)

// script is a replayable session: initial state, the paths to watch and a
// list of ticks. Each tick is one macrotask whose steps are applied together,
// so the watchers they trigger flush once after the tick.
type script struct {
	State *reactive.Object `yaml:"state"`
	Watch []watchSpec      `yaml:"watch"`
	Ticks [][]step         `yaml:"ticks"`
}

type watchSpec struct {
	Path      string `yaml:"path"`
	Deep      bool   `yaml:"deep"`
	Immediate bool   `yaml:"immediate"`
	Sync      bool   `yaml:"sync"`
}

type step struct {
	Op    string      `yaml:"op"`
	Path  string      `yaml:"path"`
	Value yaml.Node   `yaml:"value"`
	Args  []yaml.Node `yaml:"args"`
}

var errEmptyScript = errors.New("script has no state")

func loadScript(path string) (*script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseScript(data)
}

func parseScript(data []byte) (*script, error) {
	s := &script{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if s.State == nil {
		return nil, errEmptyScript
	}
	return s, nil
}

// event is one observable outcome of a replay. Values are rendered when the
// event happens since objects keep changing afterwards.
type event struct {
	Tick     int
	Source   string
	NewValue string
	OldValue string
}

func render(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

type report struct {
	Events   []event
	Errors   []string
	Warnings []string
	Stats    reactive.Stats
	State    *reactive.Object
	// Digest fingerprints the final state so runs can be compared.
	Digest uint64
}

func digest(state *reactive.Object) (uint64, error) {
	b, err := json.Marshal(state)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(b), nil
}

// replay runs s on its own event loop and returns what happened. The runtime
// only ever runs on the loop goroutine; the report is read after the loop
// has stopped.
func replay(ctx context.Context, s *script, opts ...reactive.Option) (*report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rep := &report{State: s.State}
	current := -1

	loop := tick.NewLoop(len(s.Ticks) + 2)
	opts = append(opts,
		reactive.WithErrorHandler(func(err error, vm any, info string) {
			rep.Errors = append(rep.Errors, fmt.Sprintf("tick %d: %s: %v", current, info, err))
		}),
		reactive.WithWarnHandler(func(err error, vm any) {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("tick %d: %v", current, err))
		}),
	)
	rt := reactive.New(loop, opts...)

	done := make(chan error, 1)
	go func() {
		done <- loop.Run(ctx)
	}()

	loop.Post(func() {
		rt.Observe(s.State)
		for _, w := range s.Watch {
			source := w.Path
			rt.WatchPath(s.State, w.Path, func(newValue, oldValue any) error {
				rep.Events = append(rep.Events, event{current, source, render(newValue), render(oldValue)})
				return nil
			}, reactive.WatchOptions{Deep: w.Deep, Immediate: w.Immediate, Sync: w.Sync})
		}
	})
	for i, steps := range s.Ticks {
		loop.Post(func() {
			current = i
			for j, st := range steps {
				if err := applyStep(rt, s.State, st, func(source string) {
					rep.Events = append(rep.Events, event{Tick: i, Source: source})
				}); err != nil {
					rep.Errors = append(rep.Errors, fmt.Sprintf("tick %d step %d: %v", i, j, err))
				}
			}
		})
	}
	finished := false
	var digestErr error
	loop.Post(func() {
		rep.Stats = rt.Stats()
		rep.Digest, digestErr = digest(s.State)
		finished = true
		cancel()
	})

	err := <-done
	if !finished {
		return nil, err
	}
	if digestErr != nil {
		return nil, fmt.Errorf("digest final state: %w", digestErr)
	}
	return rep, nil
}

// applyStep performs one mutation. onTick is called from a nextTick callback
// registered by the "nextTick" op.
func applyStep(rt *reactive.Runtime, root *reactive.Object, st step, onTick func(source string)) error {
	switch st.Op {
	case "set", "del":
		parent, key, err := resolveParent(root, st.Path)
		if err != nil {
			return err
		}
		if st.Op == "del" {
			rt.Del(parent, key)
			return nil
		}
		v, err := reactive.FromYAML(&st.Value)
		if err != nil {
			return fmt.Errorf("%s value: %w", st.Path, err)
		}
		rt.Set(parent, key, v)
		return nil

	case reactive.MethodPush, reactive.MethodPop, reactive.MethodShift, reactive.MethodUnshift,
		reactive.MethodSplice, reactive.MethodSort, reactive.MethodReverse:
		target, err := resolve(root, st.Path)
		if err != nil {
			return err
		}
		arr, ok := target.(*reactive.Array)
		if !ok {
			return fmt.Errorf("%s is %T, not an array", st.Path, target)
		}
		args := make([]any, 0, len(st.Args))
		for i := range st.Args {
			v, err := reactive.FromYAML(&st.Args[i])
			if err != nil {
				return fmt.Errorf("%s arg %d: %w", st.Path, i, err)
			}
			args = append(args, v)
		}
		_, err = arr.Call(st.Op, args...)
		return err

	case "nextTick":
		rt.NextTick(func() error {
			onTick("nextTick")
			return nil
		})
		return nil

	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}
}

// resolve walks a dot-delimited path from root. The empty path is root.
func resolve(root *reactive.Object, path string) (any, error) {
	var v any = root
	if path == "" {
		return v, nil
	}
	for _, seg := range strings.Split(path, ".") {
		switch x := v.(type) {
		case *reactive.Object:
			next, ok := x.Lookup(seg)
			if !ok {
				return nil, fmt.Errorf("%s: no key %q", path, seg)
			}
			v = next
		case *reactive.Array:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= x.Len() {
				return nil, fmt.Errorf("%s: bad index %q", path, seg)
			}
			v = x.At(i)
		default:
			return nil, fmt.Errorf("%s: cannot descend into %T", path, v)
		}
	}
	return v, nil
}

// resolveParent splits path into its container and last key. Keys of arrays
// are returned as ints.
func resolveParent(root *reactive.Object, path string) (any, any, error) {
	if path == "" {
		return nil, nil, errors.New("empty path")
	}
	parentPath, last := "", path
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		parentPath, last = path[:i], path[i+1:]
	}
	parent, err := resolve(root, parentPath)
	if err != nil {
		return nil, nil, err
	}
	switch parent.(type) {
	case *reactive.Object:
		return parent, last, nil
	case *reactive.Array:
		i, err := strconv.Atoi(last)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: bad index %q", path, last)
		}
		return parent, i, nil
	default:
		return nil, nil, fmt.Errorf("%s: %T has no keys", path, parent)
	}
}
