package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robolibs/consens/internal/persistence/runlog"
	"github.com/robolibs/consens/internal/sim/fleet"
)

func main() {
	var (
		dataDir  = flag.String("data", "./data", "runtime data directory")
		runID    = flag.String("run", "", "run id (file name under <data>/runs without extension)")
		fromTick = flag.Int("from_tick", 0, "start printing from tick (inclusive)")
		toTick   = flag.Int("to_tick", 0, "stop at tick (inclusive, 0 = end)")
	)
	flag.Parse()

	if *runID == "" {
		fmt.Fprintln(os.Stderr, "missing -run")
		os.Exit(2)
	}

	path := runlog.PathFor(*dataDir, *runID)
	holders := map[string]string{}
	events := 0

	err := runlog.Read(path, func(line []byte) error {
		var ev fleet.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return fmt.Errorf("bad event line: %w", err)
		}
		if ev.Tick < *fromTick {
			return nil
		}
		if *toTick > 0 && ev.Tick > *toTick {
			return nil
		}
		events++
		switch ev.Kind {
		case "claim":
			holders[ev.Task] = ev.Agent
			fmt.Printf("tick %4d  %-12s claims   %s\n", ev.Tick, ev.Agent, ev.Task)
		case "release":
			if holders[ev.Task] == ev.Agent {
				delete(holders, ev.Task)
			}
			fmt.Printf("tick %4d  %-12s releases %s\n", ev.Tick, ev.Agent, ev.Task)
		case "converged":
			fmt.Printf("tick %4d  fleet converged\n", ev.Tick)
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", filepath.Base(path), err)
		os.Exit(1)
	}

	fmt.Printf("%d events; final holders:\n", events)
	for task, agent := range holders {
		fmt.Printf("  %-12s -> %s\n", task, agent)
	}
}
