package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robolibs/consens/internal/metrics"
	"github.com/robolibs/consens/internal/persistence/runlog"
	"github.com/robolibs/consens/internal/persistence/runsdb"
	"github.com/robolibs/consens/internal/sim/fleet"
	"github.com/robolibs/consens/internal/sim/scenario"
)

func main() {
	var (
		scenarioPath  = flag.String("scenario", "./configs/scenarios/cross_field.yaml", "scenario yaml path")
		dataDir       = flag.String("data", "./data", "runtime data directory")
		dbPath        = flag.String("db", "", "runs db path (default: <data>/index/runs.db)")
		disableDB     = flag.Bool("disable_db", false, "disable run recording")
		metricsListen = flag.String("metrics_listen", "", "prometheus /metrics listen address (empty to disable)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[simulate] ", log.LstdFlags|log.Lmicroseconds)

	sc, err := scenario.Load(*scenarioPath)
	if err != nil {
		logger.Fatalf("load scenario: %v", err)
	}

	runID := uuid.NewString()
	startedAt := time.Now()
	logger.Printf("run %s scenario=%s agents=%d tasks=%d ticks=%d", runID, sc.Name, len(sc.Agents), len(sc.Tasks), sc.Ticks)

	sink, err := runlog.NewWriter(*dataDir, runID)
	if err != nil {
		logger.Fatalf("open run log: %v", err)
	}
	defer sink.Close()

	var db *runsdb.DB
	if !*disableDB {
		path := *dbPath
		if path == "" {
			path = filepath.Join(*dataDir, "index", "runs.db")
		}
		db, err = runsdb.Open(path)
		if err != nil {
			logger.Fatalf("open runs db: %v", err)
		}
		defer db.Close()
	}

	var collector *metrics.Collector
	if *metricsListen != "" {
		collector = metrics.NewCollector("consens")
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Printf("metrics on %s", *metricsListen)
			if err := http.ListenAndServe(*metricsListen, mux); err != nil {
				logger.Printf("metrics server: %v", err)
			}
		}()
	}

	f, err := fleet.New(sc, logger)
	if err != nil {
		logger.Fatalf("build fleet: %v", err)
	}
	f.Sink = sink
	f.Collector = collector
	if db != nil {
		f.OnTick = func(ts fleet.TickStats) {
			db.RecordTickStats(runsdb.TickStatsRow{
				RunID:           runID,
				Tick:            ts.Tick,
				AssignedTasks:   ts.AssignedTasks,
				ConvergedAgents: ts.ConvergedAgents,
			})
		}
	}

	res := f.Run()

	if db != nil {
		db.RecordRun(runsdb.RunRow{
			RunID:     runID,
			Scenario:  sc.Name,
			Agents:    len(sc.Agents),
			Tasks:     len(sc.Tasks),
			TicksRun:  res.TicksRun,
			Converged: res.Converged,
			StartedAt: startedAt,
		})
		for agentID, path := range res.Paths {
			for pos, taskID := range path {
				db.RecordAllocation(runsdb.AllocationRow{
					RunID:    runID,
					AgentID:  agentID,
					TaskID:   taskID,
					Position: pos,
					Score:    res.Scores[agentID],
				})
			}
		}
	}

	fmt.Printf("run %s: ticks=%d converged=%v assigned=%d/%d\n",
		runID, res.TicksRun, res.Converged, len(res.Assignments), len(sc.Tasks))

	agents := make([]string, 0, len(res.Paths))
	for id := range res.Paths {
		agents = append(agents, id)
	}
	sort.Strings(agents)
	for _, id := range agents {
		fmt.Printf("  %-12s score=%8.3f path=%v\n", id, res.Scores[id], res.Paths[id])
	}
}
